package worker

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"notify-dispatch/internal/infra/intake"
	pkgconfig "notify-dispatch/pkg/config"
)

// ErrInvalidConfig wraps every worker configuration error.
var ErrInvalidConfig = errors.New("invalid worker configuration")

// WorkerConfig holds the intake worker settings.
//
// Environment variables:
//   - INTAKE_DRIVER: redis, kafka, nsq or empty for heartbeat only
//   - INTAKE_REDIS_ADDR, INTAKE_REDIS_PASSWORD, INTAKE_REDIS_DB, INTAKE_REDIS_KEY
//   - INTAKE_KAFKA_BROKERS (comma separated), INTAKE_KAFKA_TOPIC, INTAKE_KAFKA_GROUP
//   - INTAKE_NSQD_ADDRS, INTAKE_NSQLOOKUPD_ADDRS, INTAKE_NSQ_TOPIC, INTAKE_NSQ_CHANNEL,
//     INTAKE_NSQ_MAX_IN_FLIGHT, INTAKE_NSQ_MAX_ATTEMPTS
//   - WORKER_METRICS_PORT: port for /metrics and /health (default 9091)
//   - WORKER_SHUTDOWN_TIMEOUT: grace period for in-flight messages (default 30s)
type WorkerConfig struct {
	Driver string

	RedisAddr       string
	RedisPassword   string
	RedisDB         int
	RedisKey        string
	RedisPopTimeout time.Duration

	KafkaBrokers []string
	KafkaTopic   string
	KafkaGroupID string

	NSQDAddrs       []string
	NSQLookupdAddrs []string
	NSQTopic        string
	NSQChannel      string
	NSQMaxInFlight  int
	NSQMaxAttempts  int

	MetricsPort     int
	ShutdownTimeout time.Duration
}

// DefaultConfig returns a heartbeat-only configuration with local defaults
// for every driver.
func DefaultConfig() WorkerConfig {
	return WorkerConfig{
		RedisAddr:       "localhost:6379",
		RedisKey:        "notify:intake",
		RedisPopTimeout: 5 * time.Second,
		KafkaTopic:      "notify.intake",
		KafkaGroupID:    "notify-dispatch",
		NSQTopic:        "notify_intake",
		NSQChannel:      "dispatch",
		NSQMaxInFlight:  8,
		NSQMaxAttempts:  5,
		MetricsPort:     9091,
		ShutdownTimeout: 30 * time.Second,
	}
}

// LoadConfigFromEnv reads the worker variables over DefaultConfig and
// validates the result.
func LoadConfigFromEnv() (WorkerConfig, error) {
	def := DefaultConfig()
	cfg := WorkerConfig{
		Driver: pkgconfig.GetEnvString("INTAKE_DRIVER", ""),

		RedisAddr:       pkgconfig.GetEnvString("INTAKE_REDIS_ADDR", def.RedisAddr),
		RedisPassword:   pkgconfig.GetEnvString("INTAKE_REDIS_PASSWORD", ""),
		RedisDB:         pkgconfig.GetEnvInt("INTAKE_REDIS_DB", 0),
		RedisKey:        pkgconfig.GetEnvString("INTAKE_REDIS_KEY", def.RedisKey),
		RedisPopTimeout: pkgconfig.GetEnvDuration("INTAKE_REDIS_POP_TIMEOUT", def.RedisPopTimeout),

		KafkaBrokers: pkgconfig.GetEnvStringList("INTAKE_KAFKA_BROKERS", nil),
		KafkaTopic:   pkgconfig.GetEnvString("INTAKE_KAFKA_TOPIC", def.KafkaTopic),
		KafkaGroupID: pkgconfig.GetEnvString("INTAKE_KAFKA_GROUP", def.KafkaGroupID),

		NSQDAddrs:       pkgconfig.GetEnvStringList("INTAKE_NSQD_ADDRS", nil),
		NSQLookupdAddrs: pkgconfig.GetEnvStringList("INTAKE_NSQLOOKUPD_ADDRS", nil),
		NSQTopic:        pkgconfig.GetEnvString("INTAKE_NSQ_TOPIC", def.NSQTopic),
		NSQChannel:      pkgconfig.GetEnvString("INTAKE_NSQ_CHANNEL", def.NSQChannel),
		NSQMaxInFlight:  pkgconfig.GetEnvInt("INTAKE_NSQ_MAX_IN_FLIGHT", def.NSQMaxInFlight),
		NSQMaxAttempts:  pkgconfig.GetEnvInt("INTAKE_NSQ_MAX_ATTEMPTS", def.NSQMaxAttempts),

		MetricsPort:     pkgconfig.GetEnvInt("WORKER_METRICS_PORT", def.MetricsPort),
		ShutdownTimeout: pkgconfig.GetEnvDuration("WORKER_SHUTDOWN_TIMEOUT", def.ShutdownTimeout),
	}
	if err := cfg.Validate(); err != nil {
		return WorkerConfig{}, err
	}
	return cfg, nil
}

// Validate reports every invalid field at once. Driver-specific fields are
// only checked for the selected driver.
func (c WorkerConfig) Validate() error {
	var errs []error

	switch c.Driver {
	case "":
	case intake.DriverRedis:
		if c.RedisAddr == "" {
			errs = append(errs, errors.New("INTAKE_REDIS_ADDR is required"))
		}
		if c.RedisKey == "" {
			errs = append(errs, errors.New("INTAKE_REDIS_KEY is required"))
		}
		if err := pkgconfig.ValidateDurationRange(c.RedisPopTimeout, time.Second, time.Minute); err != nil {
			errs = append(errs, fmt.Errorf("INTAKE_REDIS_POP_TIMEOUT: %w", err))
		}
	case intake.DriverKafka:
		if len(c.KafkaBrokers) == 0 {
			errs = append(errs, errors.New("INTAKE_KAFKA_BROKERS is required"))
		}
		if c.KafkaTopic == "" || c.KafkaGroupID == "" {
			errs = append(errs, errors.New("INTAKE_KAFKA_TOPIC and INTAKE_KAFKA_GROUP are required"))
		}
	case intake.DriverNSQ:
		if len(c.NSQDAddrs) == 0 && len(c.NSQLookupdAddrs) == 0 {
			errs = append(errs, errors.New("INTAKE_NSQD_ADDRS or INTAKE_NSQLOOKUPD_ADDRS is required"))
		}
		if c.NSQTopic == "" || c.NSQChannel == "" {
			errs = append(errs, errors.New("INTAKE_NSQ_TOPIC and INTAKE_NSQ_CHANNEL are required"))
		}
		if c.NSQMaxInFlight < 1 {
			errs = append(errs, fmt.Errorf("INTAKE_NSQ_MAX_IN_FLIGHT must be at least 1, got %d", c.NSQMaxInFlight))
		}
		if c.NSQMaxAttempts < 1 || c.NSQMaxAttempts > 65535 {
			errs = append(errs, fmt.Errorf("INTAKE_NSQ_MAX_ATTEMPTS must be between 1 and 65535, got %d", c.NSQMaxAttempts))
		}
	default:
		errs = append(errs, fmt.Errorf("INTAKE_DRIVER must be one of %v, got %q", drivers, c.Driver))
	}

	if c.MetricsPort < 1024 || c.MetricsPort > 65535 {
		errs = append(errs, fmt.Errorf("WORKER_METRICS_PORT must be between 1024 and 65535, got %d", c.MetricsPort))
	}
	if err := pkgconfig.ValidatePositiveDuration(c.ShutdownTimeout); err != nil {
		errs = append(errs, fmt.Errorf("WORKER_SHUTDOWN_TIMEOUT: %w", err))
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}

var drivers = []string{intake.DriverRedis, intake.DriverKafka, intake.DriverNSQ}

// IntakeEnabled reports whether a queue driver is selected.
func (c WorkerConfig) IntakeEnabled() bool {
	return slices.Contains(drivers, c.Driver)
}
