package metrics

import "github.com/prometheus/client_golang/prometheus"

// EngineMetrics exposes counters/histograms for the messaging engine.
type EngineMetrics struct {
	sendsTotal       *prometheus.CounterVec
	rollbacksTotal   prometheus.Counter
	transitionsTotal *prometheus.CounterVec
	syncTicksTotal   *prometheus.CounterVec
	syncDuration     prometheus.Histogram
	unreadMessages   prometheus.Gauge
	activeLeads      prometheus.Gauge
}

func NewEngineMetrics(reg prometheus.Registerer) *EngineMetrics {
	m := &EngineMetrics{
		sendsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "leadflow",
			Subsystem: "outbox",
			Name:      "sends_total",
			Help:      "Total optimistic sends by outcome",
		}, []string{"type", "outcome"}),
		rollbacksTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "leadflow",
			Subsystem: "outbox",
			Name:      "rollbacks_total",
			Help:      "Total optimistic sends rolled back after remote failure",
		}),
		transitionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "leadflow",
			Subsystem: "leads",
			Name:      "transitions_total",
			Help:      "Total lead status transition attempts by outcome",
		}, []string{"outcome"}),
		syncTicksTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "leadflow",
			Subsystem: "sync",
			Name:      "ticks_total",
			Help:      "Total synchronizer ticks by result",
		}, []string{"result"}),
		syncDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "leadflow",
			Subsystem: "sync",
			Name:      "refresh_duration_seconds",
			Help:      "Duration of synchronizer refresh cycles",
			Buckets:   prometheus.DefBuckets,
		}),
		unreadMessages: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "leadflow",
			Subsystem: "dashboard",
			Name:      "unread_messages",
			Help:      "Unread message count from the last refresh",
		}),
		activeLeads: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "leadflow",
			Subsystem: "dashboard",
			Name:      "active_leads",
			Help:      "Active lead count from the last refresh",
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(
		m.sendsTotal,
		m.rollbacksTotal,
		m.transitionsTotal,
		m.syncTicksTotal,
		m.syncDuration,
		m.unreadMessages,
		m.activeLeads,
	)
	return m
}

func (m *EngineMetrics) ObserveSend(messageType, outcome string) {
	if m == nil {
		return
	}
	m.sendsTotal.WithLabelValues(messageType, outcome).Inc()
}

func (m *EngineMetrics) ObserveRollback() {
	if m == nil {
		return
	}
	m.rollbacksTotal.Inc()
}

func (m *EngineMetrics) ObserveTransition(outcome string) {
	if m == nil {
		return
	}
	m.transitionsTotal.WithLabelValues(outcome).Inc()
}

func (m *EngineMetrics) ObserveSyncTick(result string, seconds float64) {
	if m == nil {
		return
	}
	m.syncTicksTotal.WithLabelValues(result).Inc()
	if seconds >= 0 {
		m.syncDuration.Observe(seconds)
	}
}

func (m *EngineMetrics) SetCounters(unread, active int) {
	if m == nil {
		return
	}
	m.unreadMessages.Set(float64(unread))
	m.activeLeads.Set(float64(active))
}
