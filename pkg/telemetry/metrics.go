// Package telemetry exports controller state as Prometheus metrics and
// publishes it to an MQTT broker.
package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/itohio/keyclimate/pkg/control"
	"github.com/itohio/keyclimate/pkg/gate"
)

const namespace = "keyclimate"

// Metrics holds the collectors fed from loop statuses and gate events.
type Metrics struct {
	registry *prometheus.Registry

	temperature prometheus.Gauge
	tempValid   prometheus.Gauge
	brightness  prometheus.Gauge
	presence    prometheus.Gauge
	locked      prometheus.Gauge
	duty        *prometheus.GaugeVec
	gateEvents  *prometheus.CounterVec
	ticks       prometheus.Counter
}

// NewMetrics creates the collectors on a private registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		temperature: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "temperature_celsius",
			Help:      "Last temperature reading.",
		}),
		tempValid: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "temperature_valid",
			Help:      "1 when the last temperature read succeeded.",
		}),
		brightness: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "brightness_ratio",
			Help:      "Brightness knob position in [0,1].",
		}),
		presence: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "presence",
			Help:      "1 while motion is detected.",
		}),
		locked: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "locked",
			Help:      "1 while the access gate is locked.",
		}),
		duty: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "output_duty_percent",
			Help:      "Output duty cycle in percent.",
		}, []string{"output"}),
		gateEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "gate_events_total",
			Help:      "Keys consumed by the access gate by outcome.",
		}, []string{"action"}),
		ticks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "control_ticks_total",
			Help:      "Control loop iterations.",
		}),
	}

	m.registry.MustRegister(
		m.temperature,
		m.tempValid,
		m.brightness,
		m.presence,
		m.locked,
		m.duty,
		m.gateEvents,
		m.ticks,
	)
	return m
}

// Registry returns the registry the collectors are registered on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Observe records a loop status. Suitable as a control.Loop callback.
func (m *Metrics) Observe(st control.Status) {
	m.ticks.Inc()
	if st.TempValid {
		m.temperature.Set(st.Temperature)
		m.tempValid.Set(1)
	} else {
		m.tempValid.Set(0)
	}
	m.brightness.Set(st.Brightness)
	m.presence.Set(boolValue(st.Presence))
	m.locked.Set(boolValue(st.State == gate.Locked))
	m.duty.WithLabelValues("fan").Set(float64(st.Outputs.Fan))
	m.duty.WithLabelValues("red").Set(float64(st.Outputs.Red))
	m.duty.WithLabelValues("green").Set(float64(st.Outputs.Green))
	m.duty.WithLabelValues("blue").Set(float64(st.Outputs.Blue))
}

// ObserveGate counts a gate event. Idle ticks are not counted.
func (m *Metrics) ObserveGate(ev gate.Event) {
	if ev.Action == gate.None {
		return
	}
	m.gateEvents.WithLabelValues(ev.Action.String()).Inc()
}

func boolValue(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
