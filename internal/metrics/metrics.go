// Package metrics collects per-run ingestion metrics in a private
// Prometheus registry and writes them as a node_exporter textfile.
package metrics

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// File outcomes. Filter rejections use the filter reason as outcome.
const (
	OutcomeIndexed     = "indexed"
	OutcomeSecret      = "secret"
	OutcomeUndecodable = "undecodable"
)

// Pipeline stages.
const (
	StageAcquire = "acquire"
	StageScan    = "scan"
	StageChunk   = "chunk"
	StageLoad    = "load"
	StageTotal   = "total"
)

// Metrics holds the run metrics.
//
// Metrics:
//   - repovec_files_total{outcome} - files seen, by outcome
//   - repovec_tokens_total - tokens counted over indexed files
//   - repovec_chunks_total - chunks sent to the vector index
//   - repovec_stage_duration_seconds{stage} - wall time per stage
//   - repovec_last_run_timestamp_seconds - completion time of the run
type Metrics struct {
	Files         *prometheus.CounterVec
	Tokens        prometheus.Counter
	Chunks        prometheus.Counter
	StageDuration *prometheus.GaugeVec
	LastRun       prometheus.Gauge

	registry *prometheus.Registry
}

// New creates metrics registered on a fresh registry, so several runs in
// one process never collide.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)

	return &Metrics{
		Files: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "repovec_files_total",
				Help: "Total number of files seen, by outcome",
			},
			[]string{"outcome"},
		),
		Tokens: f.NewCounter(prometheus.CounterOpts{
			Name: "repovec_tokens_total",
			Help: "Total number of tokens in indexed files",
		}),
		Chunks: f.NewCounter(prometheus.CounterOpts{
			Name: "repovec_chunks_total",
			Help: "Total number of chunks loaded into the vector index",
		}),
		StageDuration: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "repovec_stage_duration_seconds",
				Help: "Duration of each pipeline stage in seconds",
			},
			[]string{"stage"},
		),
		LastRun: f.NewGauge(prometheus.GaugeOpts{
			Name: "repovec_last_run_timestamp_seconds",
			Help: "Unix time the last run completed",
		}),
		registry: reg,
	}
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// File counts one file with the given outcome.
func (m *Metrics) File(outcome string) {
	m.Files.WithLabelValues(outcome).Inc()
}

// AddTokens adds n counted tokens.
func (m *Metrics) AddTokens(n int) {
	m.Tokens.Add(float64(n))
}

// AddChunks adds n loaded chunks.
func (m *Metrics) AddChunks(n int) {
	m.Chunks.Add(float64(n))
}

// Stage starts timing a stage. Call the returned func when it ends.
func (m *Metrics) Stage(stage string) func() {
	start := time.Now()
	return func() {
		m.StageDuration.WithLabelValues(stage).Set(time.Since(start).Seconds())
	}
}

// Finish records the completion time.
func (m *Metrics) Finish(t time.Time) {
	m.LastRun.Set(float64(t.Unix()))
}

// WriteTextfile writes all metrics in the text exposition format to path.
// The file is replaced atomically.
func (m *Metrics) WriteTextfile(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create metrics directory: %w", err)
		}
	}
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
