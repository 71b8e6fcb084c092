package notify

import (
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	pkgconfig "notify-dispatch/pkg/config"
)

// Config holds dispatch engine settings loaded from the environment.
type Config struct {
	// MaxConcurrent bounds the number of deliveries in flight for one Send.
	MaxConcurrent int

	// AttemptTimeout bounds a single adapter call.
	AttemptTimeout time.Duration

	// MaxAttempts is the number of tries per channel, including the first.
	MaxAttempts int

	// SendTimeout bounds a whole Send issued from the HTTP API.
	SendTimeout time.Duration

	// BlockPrivateTargets rejects webhook URLs that resolve to private hosts.
	BlockPrivateTargets bool

	// ChannelsFile is an optional YAML file seeding channel configs at startup.
	ChannelsFile string

	// HeartbeatCron schedules a worker heartbeat message; empty disables it.
	HeartbeatCron string

	// HeartbeatTZ is the IANA zone the heartbeat schedule is evaluated in.
	HeartbeatTZ string
}

// DefaultConfig returns the engine defaults.
func DefaultConfig() Config {
	return Config{
		MaxConcurrent:  32,
		AttemptTimeout: 10 * time.Second,
		MaxAttempts:    3,
		SendTimeout:    30 * time.Second,
		HeartbeatTZ:    "UTC",
	}
}

// LoadConfigFromEnv reads NOTIFY_* variables over DefaultConfig and validates the result.
func LoadConfigFromEnv() (Config, error) {
	def := DefaultConfig()
	cfg := Config{
		MaxConcurrent:       pkgconfig.GetEnvInt("NOTIFY_MAX_CONCURRENT", def.MaxConcurrent),
		AttemptTimeout:      pkgconfig.GetEnvDuration("NOTIFY_ATTEMPT_TIMEOUT", def.AttemptTimeout),
		MaxAttempts:         pkgconfig.GetEnvInt("NOTIFY_MAX_ATTEMPTS", def.MaxAttempts),
		SendTimeout:         pkgconfig.GetEnvDuration("NOTIFY_SEND_TIMEOUT", def.SendTimeout),
		BlockPrivateTargets: pkgconfig.GetEnvBool("NOTIFY_BLOCK_PRIVATE_TARGETS", false),
		ChannelsFile:        pkgconfig.GetEnvString("NOTIFY_CHANNELS_FILE", ""),
		HeartbeatCron:       pkgconfig.GetEnvString("NOTIFY_HEARTBEAT_CRON", ""),
		HeartbeatTZ:         pkgconfig.GetEnvString("NOTIFY_HEARTBEAT_TZ", def.HeartbeatTZ),
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports every invalid field at once.
func (c Config) Validate() error {
	var errs []error

	if c.MaxConcurrent < 1 {
		errs = append(errs, fmt.Errorf("NOTIFY_MAX_CONCURRENT must be at least 1, got %d", c.MaxConcurrent))
	}
	if err := pkgconfig.ValidateDurationRange(c.AttemptTimeout, 100*time.Millisecond, 5*time.Minute); err != nil {
		errs = append(errs, fmt.Errorf("NOTIFY_ATTEMPT_TIMEOUT: %w", err))
	}
	if c.MaxAttempts < 1 || c.MaxAttempts > 10 {
		errs = append(errs, fmt.Errorf("NOTIFY_MAX_ATTEMPTS must be between 1 and 10, got %d", c.MaxAttempts))
	}
	if err := pkgconfig.ValidatePositiveDuration(c.SendTimeout); err != nil {
		errs = append(errs, fmt.Errorf("NOTIFY_SEND_TIMEOUT: %w", err))
	}
	if c.HeartbeatCron != "" {
		if _, err := c.HeartbeatSchedule(); err != nil {
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}

// HeartbeatSchedule parses HeartbeatCron in HeartbeatTZ.
func (c Config) HeartbeatSchedule() (cron.Schedule, error) {
	loc, err := time.LoadLocation(c.HeartbeatTZ)
	if err != nil {
		return nil, fmt.Errorf("NOTIFY_HEARTBEAT_TZ: %w", err)
	}
	expr := c.HeartbeatCron
	if loc != time.UTC {
		expr = "CRON_TZ=" + loc.String() + " " + expr
	}
	schedule, err := cron.ParseStandard(expr)
	if err != nil {
		return nil, fmt.Errorf("NOTIFY_HEARTBEAT_CRON: %w", err)
	}
	return schedule, nil
}
