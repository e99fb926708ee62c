package metrics

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder records pipeline run metrics on its own registry.
// 배치 프로세스이므로 기본 레지스트리 대신 textfile 로 내보낼 수 있는 전용 레지스트리 사용
type Recorder struct {
	registry       *prometheus.Registry
	stepDuration   *prometheus.HistogramVec
	stepStatus     *prometheus.CounterVec
	adapterStatus  *prometheus.GaugeVec
	findings       *prometheus.CounterVec
	confidence     prometheus.Gauge
	lastRunSeconds prometheus.Gauge
}

// adapter status gauge values
const (
	AdapterOK     = 0
	AdapterCached = 1
	AdapterError  = 2
)

// New creates a new Prometheus metrics recorder.
func New() *Recorder {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Recorder{
		registry: reg,
		stepDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "agrimacro_step_duration_seconds",
				Help:    "Duration of pipeline steps in seconds",
				Buckets: []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300},
			},
			[]string{"step"},
		),
		stepStatus: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agrimacro_step_status_total",
				Help: "Pipeline step outcomes by status",
			},
			[]string{"step", "status"},
		),
		adapterStatus: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "agrimacro_adapter_status",
				Help: "Last adapter status (0=ok, 1=cached, 2=error)",
			},
			[]string{"adapter"},
		),
		findings: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agrimacro_audit_findings_total",
				Help: "Audit findings by severity and code",
			},
			[]string{"severity", "code"},
		),
		confidence: factory.NewGauge(prometheus.GaugeOpts{
			Name: "agrimacro_verdict_confidence",
			Help: "Confidence of the last audit verdict",
		}),
		lastRunSeconds: factory.NewGauge(prometheus.GaugeOpts{
			Name: "agrimacro_last_run_timestamp_seconds",
			Help: "Unix time of the last completed run",
		}),
	}
}

// RecordStep records a finished step.
func (r *Recorder) RecordStep(step, status string, seconds float64) {
	r.stepDuration.WithLabelValues(step).Observe(seconds)
	r.stepStatus.WithLabelValues(step, status).Inc()
}

// RecordAdapter records the last status of an adapter.
func (r *Recorder) RecordAdapter(adapter string, status int) {
	r.adapterStatus.WithLabelValues(adapter).Set(float64(status))
}

// RecordFinding records one audit finding.
func (r *Recorder) RecordFinding(severity, code string) {
	r.findings.WithLabelValues(severity, code).Inc()
}

// RecordVerdict records the verdict confidence and the run completion time.
func (r *Recorder) RecordVerdict(confidence float64, unixSeconds int64) {
	r.confidence.Set(confidence)
	r.lastRunSeconds.Set(float64(unixSeconds))
}

// WriteTextfile writes all metrics in the node_exporter textfile format.
func (r *Recorder) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("failed to write metrics textfile: %w", err)
	}
	return nil
}

// Handler exposes the registry over HTTP.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// Gather returns the current metric families (used in tests).
func (r *Recorder) Gather() (map[string]int, error) {
	families, err := r.registry.Gather()
	if err != nil {
		return nil, err
	}
	out := make(map[string]int, len(families))
	for _, f := range families {
		out[f.GetName()] = len(f.GetMetric())
	}
	return out, nil
}
