// Package metrics exposes Prometheus metrics for memcore operations.
package metrics

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/common/expfmt"

	"github.com/asecn/memcore/pkg/errclass"
	"github.com/asecn/memcore/pkg/model"
)

// Operation names used as the "operation" label.
const (
	OpWrite   = "write"
	OpRead    = "read"
	OpRecall  = "recall"
	OpPurge   = "purge"
	OpBackup  = "backup"
	OpRestore = "restore"
)

const statusOK = "ok"

var (
	enabled         bool
	enabledMutex    sync.RWMutex
	defaultRegistry *Registry
)

// Init enables metrics and installs a fresh default registry.
func Init() {
	enabledMutex.Lock()
	defer enabledMutex.Unlock()
	enabled = true
	defaultRegistry = NewRegistry()
}

// Enabled returns true if metrics are enabled.
func Enabled() bool {
	enabledMutex.RLock()
	defer enabledMutex.RUnlock()
	return enabled
}

// Default returns the default registry, or nil when metrics are disabled.
// A nil *Registry is valid and records nothing.
func Default() *Registry {
	enabledMutex.RLock()
	defer enabledMutex.RUnlock()
	if !enabled {
		return nil
	}
	return defaultRegistry
}

// Registry holds all memcore metrics on a private Prometheus registry.
type Registry struct {
	reg *prometheus.Registry

	operations *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	backups    *prometheus.CounterVec
	recoveries prometheus.Counter
	entries    prometheus.Gauge
	storeBytes prometheus.Gauge
	recallHits prometheus.Histogram
}

// NewRegistry creates a new metrics registry.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Registry{
		reg: reg,
		operations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "memcore_operations_total",
			Help: "Store operations by operation and outcome",
		}, []string{"operation", "status"}),
		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "memcore_operation_duration_seconds",
			Help:    "Latency of store operations",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}, []string{"operation"}),
		backups: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "memcore_backups_created_total",
			Help: "Backups written by kind",
		}, []string{"kind"}),
		recoveries: factory.NewCounter(prometheus.CounterOpts{
			Name: "memcore_corruption_recoveries_total",
			Help: "Corrupted stores quarantined and reset",
		}),
		entries: factory.NewGauge(prometheus.GaugeOpts{
			Name: "memcore_store_entries",
			Help: "Entries in the store after the last persisted change",
		}),
		storeBytes: factory.NewGauge(prometheus.GaugeOpts{
			Name: "memcore_store_size_bytes",
			Help: "Size of the store file after the last persisted change",
		}),
		recallHits: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "memcore_recall_results",
			Help:    "Entries returned per recall",
			Buckets: prometheus.ExponentialBuckets(1, 4, 6),
		}),
	}
}

// Observe records one operation with its outcome and latency.
func (r *Registry) Observe(op string, err error, d time.Duration) {
	if r == nil {
		return
	}
	r.operations.WithLabelValues(op, status(err)).Inc()
	r.duration.WithLabelValues(op).Observe(d.Seconds())
}

// SetStoreSize records the entry count and byte size of the store.
func (r *Registry) SetStoreSize(entries int, bytes int64) {
	if r == nil {
		return
	}
	r.entries.Set(float64(entries))
	r.storeBytes.Set(float64(bytes))
}

// RecordBackup counts a written backup.
func (r *Registry) RecordBackup(kind model.BackupKind) {
	if r == nil {
		return
	}
	r.backups.WithLabelValues(string(kind)).Inc()
}

// RecordRecovery counts a corruption quarantine-and-reset.
func (r *Registry) RecordRecovery() {
	if r == nil {
		return
	}
	r.recoveries.Inc()
}

// RecordRecall records the number of entries a recall returned.
func (r *Registry) RecordRecall(results int) {
	if r == nil {
		return
	}
	r.recallHits.Observe(float64(results))
}

// Gatherer exposes the underlying registry.
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.reg
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{Registry: r.reg})
}

// WriteText writes every metric family in the text exposition format.
func (r *Registry) WriteText(w io.Writer) error {
	families, err := r.reg.Gather()
	if err != nil {
		return fmt.Errorf("gather metrics: %w", err)
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return fmt.Errorf("write metrics: %w", err)
		}
	}
	return nil
}

// StartServer serves /metrics for r on addr until the server fails.
func StartServer(addr string, r *Registry) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", r.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func status(err error) string {
	if err == nil {
		return statusOK
	}
	if code := errclass.Code(err); code != "" {
		return code
	}
	return "error"
}
