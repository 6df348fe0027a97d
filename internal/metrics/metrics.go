// Package metrics records per-run counters in a private Prometheus
// registry and publishes them once the run ends.
package metrics

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
	dto "github.com/prometheus/client_model/go"
)

const namespace = "space_images"

// Drop reasons.
const (
	ReasonNoImageURL = "no_image_url"
	ReasonDuplicate  = "duplicate"
)

// Run holds the metrics of one batch run. A nil *Run is valid and records
// nothing.
type Run struct {
	reg   *prometheus.Registry
	start time.Time

	pages         *prometheus.CounterVec
	sourceErrors  *prometheus.CounterVec
	records       *prometheus.CounterVec
	dropped       *prometheus.CounterVec
	imagesSaved   prometheus.Counter
	imageFailures prometheus.Counter
	datasetSize   prometheus.Gauge
	duration      prometheus.Gauge
	lastSuccessTS prometheus.Gauge
}

func NewRun() *Run {
	r := &Run{reg: prometheus.NewRegistry(), start: time.Now()}
	r.pages = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "pages_fetched_total",
		Help:      "Pages fetched successfully by source",
	}, []string{"source"})
	r.sourceErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "source_errors_total",
		Help:      "Pages that could not be fetched by source",
	}, []string{"source"})
	r.records = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "records_total",
		Help:      "Records added to the dataset by source",
	}, []string{"source"})
	r.dropped = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "records_dropped_total",
		Help:      "Normalized items left out of the dataset by source and reason",
	}, []string{"source", "reason"})
	r.imagesSaved = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "images_saved_total",
		Help:      "Images downloaded and written to disk",
	})
	r.imageFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "image_failures_total",
		Help:      "Images that could not be downloaded, decoded or written",
	})
	r.datasetSize = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "dataset_size",
		Help:      "Records in the exported dataset",
	})
	r.duration = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "run_duration_seconds",
		Help:      "Wall time of the run",
	})
	r.lastSuccessTS = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "last_success_timestamp_seconds",
		Help:      "Unix timestamp of the last run that exported its dataset",
	})
	r.reg.MustRegister(
		r.pages, r.sourceErrors, r.records, r.dropped,
		r.imagesSaved, r.imageFailures,
		r.datasetSize, r.duration, r.lastSuccessTS,
	)
	return r
}

func (r *Run) Registry() *prometheus.Registry { return r.reg }

func (r *Run) PageFetched(source string) {
	if r != nil {
		r.pages.WithLabelValues(source).Inc()
	}
}

func (r *Run) SourceError(source string) {
	if r != nil {
		r.sourceErrors.WithLabelValues(source).Inc()
	}
}

func (r *Run) RecordAdded(source string) {
	if r != nil {
		r.records.WithLabelValues(source).Inc()
	}
}

func (r *Run) RecordDropped(source, reason string) {
	if r != nil {
		r.dropped.WithLabelValues(source, reason).Inc()
	}
}

func (r *Run) ImageSaved() {
	if r != nil {
		r.imagesSaved.Inc()
	}
}

func (r *Run) ImageFailed() {
	if r != nil {
		r.imageFailures.Inc()
	}
}

// Finish records the final dataset size and marks the run successful.
func (r *Run) Finish(size int) {
	if r == nil {
		return
	}
	r.datasetSize.Set(float64(size))
	r.duration.Set(time.Since(r.start).Seconds())
	r.lastSuccessTS.Set(float64(time.Now().Unix()))
}

// WriteTextfile writes the registry in the text exposition format for the
// node_exporter textfile collector. The write is atomic.
func (r *Run) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, r.reg); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}

// Push replaces the job's metrics on a Pushgateway.
func (r *Run) Push(ctx context.Context, url, job string) error {
	if err := push.New(url, job).Gatherer(r.reg).PushContext(ctx); err != nil {
		return fmt.Errorf("push metrics: %w", err)
	}
	return nil
}

// Snapshot returns a single-line, sorted dump of every sample (for logging).
func (r *Run) Snapshot() string {
	if r == nil {
		return ""
	}
	mfs, err := r.reg.Gather()
	if err != nil {
		return ""
	}
	var out []string
	for _, mf := range mfs {
		for _, m := range mf.GetMetric() {
			pairs := make([]string, 0, len(m.GetLabel()))
			for _, lp := range m.GetLabel() {
				pairs = append(pairs, lp.GetName()+"="+lp.GetValue())
			}
			out = append(out, fmt.Sprintf("%s{%s} %g", mf.GetName(), strings.Join(pairs, ","), value(m)))
		}
	}
	sort.Strings(out)
	return strings.Join(out, " ")
}

func value(m *dto.Metric) float64 {
	switch {
	case m.GetCounter() != nil:
		return m.GetCounter().GetValue()
	case m.GetGauge() != nil:
		return m.GetGauge().GetValue()
	case m.GetUntyped() != nil:
		return m.GetUntyped().GetValue()
	}
	return 0
}
