// Package metrics records merge outcomes as Prometheus metrics. The
// registry is private to each Recorder so a CLI run can dump it as a
// node-exporter textfile and the server can expose it at /metrics.
package metrics

import (
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/backmassage/dramamerge/internal/merge"
)

// Recorder implements merge.Observer.
type Recorder struct {
	reg *prometheus.Registry

	groups        *prometheus.CounterVec
	files         prometheus.Counter
	inputBytes    prometheus.Counter
	inputSeconds  prometheus.Counter
	mergeDuration prometheus.Histogram
	lastRun       prometheus.Gauge
}

// NewRecorder registers the merge metrics on a fresh registry.
func NewRecorder() *Recorder {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Recorder{
		reg: reg,
		groups: f.NewCounterVec(prometheus.CounterOpts{
			Name: "dramamerge_groups_total",
			Help: "Total number of merged groups, by outcome.",
		}, []string{"outcome"}),
		files: f.NewCounter(prometheus.CounterOpts{
			Name: "dramamerge_files_total",
			Help: "Total number of input files handed to merge steps.",
		}),
		inputBytes: f.NewCounter(prometheus.CounterOpts{
			Name: "dramamerge_input_bytes_total",
			Help: "Total size of input files handed to merge steps.",
		}),
		inputSeconds: f.NewCounter(prometheus.CounterOpts{
			Name: "dramamerge_input_seconds_total",
			Help: "Total measured playback duration of input files handed to merge steps.",
		}),
		mergeDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "dramamerge_merge_duration_seconds",
			Help:    "Wall time of a merge step, including the consistency check.",
			Buckets: []float64{0.5, 1, 5, 15, 30, 60, 120, 300, 600},
		}),
		lastRun: f.NewGauge(prometheus.GaugeOpts{
			Name: "dramamerge_last_run_timestamp_seconds",
			Help: "Unix time at which the last run finished.",
		}),
	}
}

// GroupDone records one finished merge step.
func (r *Recorder) GroupDone(g merge.Group, res merge.Result, elapsed time.Duration) {
	r.groups.WithLabelValues(merge.Outcome(res.Err)).Inc()
	r.files.Add(float64(len(g.Files)))
	r.inputBytes.Add(float64(g.Size))
	r.inputSeconds.Add(g.Duration)
	r.mergeDuration.Observe(elapsed.Seconds())
}

// RunFinished records a whole-run outcome that produced no groups
// (directory failure or nothing to merge) and stamps the run time.
func (r *Recorder) RunFinished(err error, groups int) {
	if groups == 0 && err != nil {
		r.groups.WithLabelValues(merge.Outcome(err)).Inc()
	}
	r.lastRun.SetToCurrentTime()
}

// Registry exposes the underlying registry for tests and custom exporters.
func (r *Recorder) Registry() *prometheus.Registry { return r.reg }

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{Registry: r.reg})
}

// WriteTextfile writes the registry to path for the node-exporter
// textfile collector. The file is replaced atomically.
func (r *Recorder) WriteTextfile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return prometheus.WriteToTextfile(path, r.reg)
}
