package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts launches, refreshes and mount engine interactions.
// All methods are nil-safe: calls on a nil *Metrics are no-ops.
type Metrics struct {
	LaunchesTotal        *prometheus.CounterVec
	RefreshesTotal       *prometheus.CounterVec
	MountStartsTotal     prometheus.Counter
	ReloadSignalsTotal   prometheus.Counter
	ReloadNoTargetsTotal prometheus.Counter
	EngineErrorsTotal    prometheus.Counter
}

// New creates the metrics and registers them with reg. If reg is nil, the
// metrics are created but not registered.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		LaunchesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "autolaunch",
			Name:      "launches_total",
			Help:      "Launch requests by provider and outcome",
		}, []string{"provider", "outcome"}),
		RefreshesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "autolaunch",
			Name:      "refreshes_total",
			Help:      "Applied credential refreshes by provider and outcome",
		}, []string{"provider", "outcome"}),
		MountStartsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "autolaunch",
			Subsystem: "mount",
			Name:      "starts_total",
			Help:      "Times the mount engine was started",
		}),
		ReloadSignalsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "autolaunch",
			Subsystem: "mount",
			Name:      "reload_signals_total",
			Help:      "Reload signals delivered to mount engine instances",
		}),
		ReloadNoTargetsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "autolaunch",
			Subsystem: "mount",
			Name:      "reload_no_targets_total",
			Help:      "Reloads that found no running mount engine instance",
		}),
		EngineErrorsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "autolaunch",
			Subsystem: "mount",
			Name:      "engine_errors_total",
			Help:      "Failures starting or signaling the mount engine",
		}),
	}

	if reg != nil {
		reg.MustRegister(
			m.LaunchesTotal,
			m.RefreshesTotal,
			m.MountStartsTotal,
			m.ReloadSignalsTotal,
			m.ReloadNoTargetsTotal,
			m.EngineErrorsTotal,
		)
	}
	return m
}

func (m *Metrics) Launch(provider, outcome string) {
	if m == nil {
		return
	}
	m.LaunchesTotal.WithLabelValues(provider, outcome).Inc()
}

func (m *Metrics) Refresh(provider, outcome string) {
	if m == nil {
		return
	}
	m.RefreshesTotal.WithLabelValues(provider, outcome).Inc()
}

func (m *Metrics) MountStarted() {
	if m == nil {
		return
	}
	m.MountStartsTotal.Inc()
}

// Reloaded records a reload that reached signaled instances.
func (m *Metrics) Reloaded(signaled int) {
	if m == nil {
		return
	}
	if signaled == 0 {
		m.ReloadNoTargetsTotal.Inc()
		return
	}
	m.ReloadSignalsTotal.Add(float64(signaled))
}

func (m *Metrics) EngineError() {
	if m == nil {
		return
	}
	m.EngineErrorsTotal.Inc()
}
