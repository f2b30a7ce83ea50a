package notify

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics records evaluation outcomes. A nil *Metrics records nothing.
type Metrics struct {
	outcomes *prometheus.CounterVec
	latency  prometheus.Histogram
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mailhook",
			Name:      "evaluations_total",
			Help:      "Outgoing emails evaluated by the webhook filter, by outcome.",
		}, []string{"outcome"}),
		latency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "mailhook",
			Name:      "webhook_dispatch_seconds",
			Help:      "Duration of webhook POST attempts.",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5},
		}),
	}
	reg.MustRegister(m.outcomes, m.latency)
	return m
}

func (m *Metrics) observeOutcome(o Outcome) {
	if m == nil {
		return
	}
	m.outcomes.WithLabelValues(o.String()).Inc()
}

func (m *Metrics) observeDispatch(d time.Duration) {
	if m == nil {
		return
	}
	m.latency.Observe(d.Seconds())
}
