package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// NegotiationMetrics exposes counters/histograms for negotiation flows.
type NegotiationMetrics struct {
	turnsTotal       *prometheus.CounterVec
	turnLatency      *prometheus.HistogramVec
	escalationsTotal *prometheus.CounterVec
	dealPrice        prometheus.Histogram
}

func NewNegotiationMetrics(reg prometheus.Registerer) *NegotiationMetrics {
	m := &NegotiationMetrics{
		turnsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "adol",
			Subsystem: "negotiation",
			Name:      "turns_total",
			Help:      "Total buyer turns processed, by decision outcome",
		}, []string{"decision"}),
		turnLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "adol",
			Subsystem: "negotiation",
			Name:      "turn_latency_seconds",
			Help:      "Latency of a full turn including reply generation",
			Buckets:   prometheus.DefBuckets,
		}, []string{"decision"}),
		escalationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "adol",
			Subsystem: "negotiation",
			Name:      "escalations_total",
			Help:      "Threads handed to the seller, by reason",
		}, []string{"reason"}),
		dealPrice: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "adol",
			Subsystem: "negotiation",
			Name:      "deal_price",
			Help:      "Final agreed price of closed deals",
			Buckets:   prometheus.ExponentialBuckets(10_000, 4, 10),
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.turnsTotal, m.turnLatency, m.escalationsTotal, m.dealPrice)
	return m
}

func (m *NegotiationMetrics) ObserveTurn(decision string, duration time.Duration) {
	if m == nil {
		return
	}
	m.turnsTotal.WithLabelValues(decision).Inc()
	m.turnLatency.WithLabelValues(decision).Observe(duration.Seconds())
}

func (m *NegotiationMetrics) IncEscalation(reason string) {
	if m == nil {
		return
	}
	m.escalationsTotal.WithLabelValues(reason).Inc()
}

func (m *NegotiationMetrics) ObserveDeal(finalPrice int64) {
	if m == nil {
		return
	}
	m.dealPrice.Observe(float64(finalPrice))
}
