package metrics

import (
	"database/sql"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Process identifies the binary in build info, "api" or "worker".
type Process string

const (
	ProcessAPI    Process = "api"
	ProcessWorker Process = "worker"
)

// Register adds notify_build_info and, when db is not nil, the go_sql_*
// connection pool collector labelled db_name="notify" to reg.
func Register(reg prometheus.Registerer, process Process, version string, db *sql.DB) error {
	info := prometheus.NewGauge(prometheus.GaugeOpts{
		Name:        "notify_build_info",
		Help:        "Build information; the value is always 1",
		ConstLabels: prometheus.Labels{"process": string(process), "version": version},
	})
	info.Set(1)
	if err := reg.Register(info); err != nil {
		return err
	}

	if db == nil {
		return nil
	}
	return reg.Register(collectors.NewDBStatsCollector(db, "notify"))
}
