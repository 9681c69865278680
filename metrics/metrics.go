// Package metrics provides Prometheus metrics for session engine operations.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the session engine.
// The zero-value-like instance returned by Nop records nothing.
type Metrics struct {
	enabled bool

	// Login metrics
	loginTotal *prometheus.CounterVec

	// Refresh protocol metrics
	refreshTotal   *prometheus.CounterVec
	replaysTotal   prometheus.Counter
	refreshWaiters prometheus.Gauge

	// Guard metrics
	guardDecisions *prometheus.CounterVec
}

// New creates and registers metrics on the default Prometheus registry.
func New() *Metrics {
	return NewWith(prometheus.DefaultRegisterer)
}

// NewWith creates and registers metrics on the given registerer.
// Tests use a private registry to avoid duplicate registration.
func NewWith(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	m := &Metrics{enabled: true}

	m.loginTotal = factory.NewCounterVec(prometheus.CounterOpts{
		Name: "authkit_login_total",
		Help: "Login attempts by classified result",
	}, []string{"result"})

	m.refreshTotal = factory.NewCounterVec(prometheus.CounterOpts{
		Name: "authkit_refresh_total",
		Help: "Token refresh exchanges by result",
	}, []string{"result"})

	m.replaysTotal = factory.NewCounter(prometheus.CounterOpts{
		Name: "authkit_request_replays_total",
		Help: "Requests replayed after a successful token refresh",
	})

	m.refreshWaiters = factory.NewGauge(prometheus.GaugeOpts{
		Name: "authkit_refresh_waiters",
		Help: "Requests currently waiting on an in-flight refresh",
	})

	m.guardDecisions = factory.NewCounterVec(prometheus.CounterOpts{
		Name: "authkit_guard_decisions_total",
		Help: "Access guard decisions",
	}, []string{"decision"})

	return m
}

// Nop returns a no-op Metrics instance; every method is safe to call.
func Nop() *Metrics {
	return &Metrics{}
}

// RecordLogin counts a login attempt with its classified result
// ("success", "bad_credentials", ...).
func (m *Metrics) RecordLogin(result string) {
	if !m.enabled {
		return
	}
	m.loginTotal.WithLabelValues(result).Inc()
}

// RecordRefresh counts a refresh exchange.
func (m *Metrics) RecordRefresh(ok bool) {
	if !m.enabled {
		return
	}
	if ok {
		m.refreshTotal.WithLabelValues("success").Inc()
	} else {
		m.refreshTotal.WithLabelValues("failure").Inc()
	}
}

// RecordReplay counts a request replayed with a renewed token.
func (m *Metrics) RecordReplay() {
	if !m.enabled {
		return
	}
	m.replaysTotal.Inc()
}

// RefreshWaiterAdd tracks requests blocked behind the in-flight refresh.
func (m *Metrics) RefreshWaiterAdd(delta float64) {
	if !m.enabled {
		return
	}
	m.refreshWaiters.Add(delta)
}

// RecordGuard counts a guard decision ("allowed", "denied", "checking").
func (m *Metrics) RecordGuard(decision string) {
	if !m.enabled {
		return
	}
	m.guardDecisions.WithLabelValues(decision).Inc()
}
