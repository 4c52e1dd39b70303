// Package metrics exposes simulator counters to Prometheus.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics is safe to use as a nil pointer: every method becomes a no-op.
type Metrics struct {
	Cycles          prometheus.Counter
	Readings        *prometheus.CounterVec
	PumpCommands    *prometheus.CounterVec
	TransportErrors *prometheus.CounterVec
	StatusPolls     *prometheus.CounterVec
	PumpActive      prometheus.Gauge
	SoilHumidity    prometheus.Gauge
	Temperature     prometheus.Gauge
	SessionRunning  prometheus.Gauge
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Cycles: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "regador_sim_cycles_total",
			Help: "Simulator cycles executed",
		}),
		Readings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "regador_sim_readings_total",
			Help: "Sensor readings sent, by result (ok|rejected|transport_error)",
		}, []string{"result"}),
		PumpCommands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "regador_sim_pump_commands_total",
			Help: "Pump control commands, by action, trigger and result",
		}, []string{"action", "trigger", "result"}),
		TransportErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "regador_sim_transport_errors_total",
			Help: "Requests that failed before an HTTP status was received",
		}, []string{"kind"}),
		StatusPolls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "regador_sim_status_polls_total",
			Help: "Pump status polls, by result (ok|error)",
		}, []string{"result"}),
		PumpActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "regador_sim_pump_active",
			Help: "Local belief about the pump (1=active)",
		}),
		SoilHumidity: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "regador_sim_soil_humidity_percent",
			Help: "Last generated soil humidity (%)",
		}),
		Temperature: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "regador_sim_temperature_celsius",
			Help: "Last generated temperature (celsius)",
		}),
		SessionRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "regador_sim_session_running",
			Help: "1 while a simulation session is running",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.Cycles, m.Readings, m.PumpCommands, m.TransportErrors,
			m.StatusPolls, m.PumpActive, m.SoilHumidity, m.Temperature, m.SessionRunning)
	}
	return m
}

func (m *Metrics) Cycle() {
	if m == nil {
		return
	}
	m.Cycles.Inc()
}

func (m *Metrics) Reading(result string, temperature float64, humidity int) {
	if m == nil {
		return
	}
	m.Readings.WithLabelValues(result).Inc()
	m.Temperature.Set(temperature)
	m.SoilHumidity.Set(float64(humidity))
}

func (m *Metrics) PumpCommand(action, trigger string, ok bool) {
	if m == nil {
		return
	}
	m.PumpCommands.WithLabelValues(action, trigger, result(ok)).Inc()
}

func (m *Metrics) StatusPoll(ok bool) {
	if m == nil {
		return
	}
	m.StatusPolls.WithLabelValues(result(ok)).Inc()
}

func (m *Metrics) TransportError(kind string) {
	if m == nil {
		return
	}
	m.TransportErrors.WithLabelValues(kind).Inc()
}

func (m *Metrics) SetPumpActive(active bool) {
	if m == nil {
		return
	}
	m.PumpActive.Set(boolFloat(active))
}

func (m *Metrics) SetRunning(running bool) {
	if m == nil {
		return
	}
	m.SessionRunning.Set(boolFloat(running))
}

func result(ok bool) string {
	if ok {
		return "ok"
	}
	return "error"
}

func boolFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
