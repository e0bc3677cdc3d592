package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups all Prometheus instruments used by the service.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	Turns            *prometheus.CounterVec
	BackendOutcomes  *prometheus.CounterVec
	Transcriptions   *prometheus.CounterVec
	SynthesisLatency *prometheus.HistogramVec
	PrunedArtifacts  prometheus.Counter
}

func NewMetrics(reg prometheus.Registerer, namespace string) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Turns: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "turns_total",
			Help:      "Handled conversation requests by endpoint.",
		}, []string{"endpoint"}),
		BackendOutcomes: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "backend_outcomes_total",
			Help:      "Generation backend outcomes by backend and kind.",
		}, []string{"backend", "kind"}),
		Transcriptions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transcriptions_total",
			Help:      "Speech recognition attempts by outcome.",
		}, []string{"outcome"}),
		SynthesisLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "synthesis_latency_ms",
			Help:      "Speech synthesis latency in milliseconds.",
			Buckets:   []float64{100, 250, 500, 1000, 2000, 4000, 8000},
		}, []string{"backend", "outcome"}),
		PrunedArtifacts: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pruned_audio_artifacts_total",
			Help:      "Audio artifacts removed by the retention janitor.",
		}),
	}
}

func (m *Metrics) ObserveTurn(endpoint string) {
	if m == nil {
		return
	}
	m.Turns.WithLabelValues(endpoint).Inc()
}

func (m *Metrics) ObserveBackendOutcome(backend, kind string) {
	if m == nil {
		return
	}
	m.BackendOutcomes.WithLabelValues(backend, kind).Inc()
}

func (m *Metrics) ObserveTranscription(outcome string) {
	if m == nil {
		return
	}
	m.Transcriptions.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveSynthesis(backend string, d time.Duration, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.SynthesisLatency.WithLabelValues(backend, outcome).Observe(float64(d.Milliseconds()))
}

func (m *Metrics) AddPrunedArtifacts(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.PrunedArtifacts.Add(float64(n))
}

func MetricsHandler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
