package service

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/Michaelch2406/MascotaLink-sub003/module/tracking/domain"
)

const metricsNamespace = "walktrack"

type Metrics struct {
	fixes       prometheus.Counter
	rejected    *prometheus.CounterVec
	emissions   *prometheus.CounterVec
	failures    *prometheus.CounterVec
	liveDropped prometheus.Counter
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		fixes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "fixes_total",
			Help:      "Position fixes received by tracking sessions.",
		}),
		rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "fixes_rejected_total",
			Help:      "Position fixes rejected by the sample validator.",
		}, []string{"reason"}),
		emissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "sink_emissions_total",
			Help:      "Emissions issued to each sink.",
		}, []string{"sink"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "sink_failures_total",
			Help:      "Emissions that failed, per sink.",
		}, []string{"sink"}),
		liveDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "live_dropped_total",
			Help:      "Fixes dropped because the live transport was disconnected.",
		}),
	}
	reg.MustRegister(m.fixes, m.rejected, m.emissions, m.failures, m.liveDropped)
	return m
}

func (m *Metrics) fixReceived() { m.fixes.Inc() }

func (m *Metrics) fixRejected(err error) { m.rejected.WithLabelValues(rejectReason(err)).Inc() }

func (m *Metrics) emitted(sink domain.SinkID) { m.emissions.WithLabelValues(string(sink)).Inc() }

func (m *Metrics) failed(sink domain.SinkID) { m.failures.WithLabelValues(string(sink)).Inc() }

func (m *Metrics) dropped() { m.liveDropped.Inc() }
