package metrics

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder owns a private registry of pipeline metrics. A nil Recorder
// discards observations.
type Recorder struct {
	registry *prometheus.Registry

	operationsTotal   *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
	cacheLookups      *prometheus.CounterVec
	chunksWritten     prometheus.Counter
	composeSamples    prometheus.Histogram
}

// New registers the compressure metrics on a fresh registry.
func New() *Recorder {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Recorder{
		registry: reg,
		operationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "compressure_operations_total",
				Help: "Total number of pipeline operations by outcome",
			},
			[]string{"operation", "status"},
		),
		operationDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "compressure_operation_duration_seconds",
				Help:    "Pipeline operation duration in seconds",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 15, 60, 300, 900, 3600},
			},
			[]string{"operation"},
		),
		cacheLookups: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "compressure_cache_lookups_total",
				Help: "Derivation cache lookups by kind and result",
			},
			[]string{"kind", "result"}, // kind: "encode", "slices"; result: "hit", "miss"
		),
		chunksWritten: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "compressure_slice_chunks_written_total",
				Help: "Total number of chunk files extracted by the slicer",
			},
		),
		composeSamples: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "compressure_compose_samples",
				Help:    "Number of chunks concatenated per compose run",
				Buckets: prometheus.ExponentialBuckets(10, 2, 10),
			},
		),
	}
}

// Registry exposes the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

// ObserveOperation records one operation and its duration. status is one of
// "succeeded", "failed" or "cached".
func (r *Recorder) ObserveOperation(operation, status string, elapsed time.Duration) {
	if r == nil {
		return
	}
	r.operationsTotal.WithLabelValues(operation, status).Inc()
	r.operationDuration.WithLabelValues(operation).Observe(elapsed.Seconds())
}

// CacheLookup records a derivation cache hit or miss.
func (r *Recorder) CacheLookup(kind string, hit bool) {
	if r == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	r.cacheLookups.WithLabelValues(kind, result).Inc()
}

// ChunkWritten records one extracted chunk.
func (r *Recorder) ChunkWritten() {
	if r == nil {
		return
	}
	r.chunksWritten.Inc()
}

// ComposeSamples records the chunk count of a compose run.
func (r *Recorder) ComposeSamples(n int) {
	if r == nil {
		return
	}
	r.composeSamples.Observe(float64(n))
}

// WriteTextfile writes the registry in the Prometheus text format for the
// node_exporter textfile collector. A blank path is a no-op.
func (r *Recorder) WriteTextfile(path string) error {
	if r == nil || strings.TrimSpace(path) == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("ensure metrics directory: %w", err)
	}
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
