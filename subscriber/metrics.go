package subscriber

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/alvarolm/datastar-resilient/retryer"
)

// Metrics exposes lifecycle transitions as Prometheus metrics.
type Metrics struct {
	transitions *prometheus.CounterVec
	connected   *prometheus.GaugeVec
}

// NewMetrics creates a metrics subscriber and registers its collectors
// against reg. A nil reg skips registration, which is useful in tests.
// Namespace defaults to "resilient" when empty.
func NewMetrics(reg prometheus.Registerer, namespace string) (*Metrics, error) {
	if namespace == "" {
		namespace = "resilient"
	}

	m := &Metrics{
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connection_transitions_total",
			Help:      "Connection lifecycle transitions per element and status.",
		}, []string{"element", "status"}),
		connected: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connected",
			Help:      "Whether the element's connection is currently up.",
		}, []string{"element"}),
	}

	if reg != nil {
		if err := reg.Register(m.transitions); err != nil {
			return nil, fmt.Errorf("subscriber: register transitions: %w", err)
		}
		if err := reg.Register(m.connected); err != nil {
			return nil, fmt.Errorf("subscriber: register connected gauge: %w", err)
		}
	}
	return m, nil
}

// Send records the transition.
func (m *Metrics) Send(n Notification) {
	m.transitions.WithLabelValues(n.Element, string(n.Status)).Inc()

	switch n.Status {
	case retryer.StatusConnected:
		m.connected.WithLabelValues(n.Element).Set(1)
	case retryer.StatusDisconnected:
		m.connected.WithLabelValues(n.Element).Set(0)
	}
}

// Close is a no-op; collectors stay registered.
func (m *Metrics) Close() {}
