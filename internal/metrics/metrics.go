// Package metrics defines the Prometheus collectors that describe launches,
// stops and the state of a supervised engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const namespace = "enginectl"

// Label values for Launches.
const (
	ResultSuccess        = "success"
	ResultAlreadyRunning = "already_running"
	ResultPortInUse      = "port_in_use"
	ResultError          = "error"
)

// Metrics bundles the collectors and the registry they are registered with.
type Metrics struct {
	Registry *prometheus.Registry

	// Launches counts launch attempts by result.
	Launches *prometheus.CounterVec
	// Stops counts stop operations by method and outcome.
	Stops *prometheus.CounterVec
	// StoppedProcesses counts individual processes stopped, by final signal.
	StoppedProcesses *prometheus.CounterVec
	// EngineUp is 1 while a supervised engine process is running.
	EngineUp prometheus.Gauge
	// EngineReady is 1 while the engine's health endpoint answers 200.
	EngineReady prometheus.Gauge
}

// New creates the collectors on a fresh registry that also carries the Go
// runtime and process collectors.
func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		Launches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "launches_total",
			Help:      "Engine launch attempts by result.",
		}, []string{"result"}),
		Stops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stops_total",
			Help:      "Stop operations by method and outcome.",
		}, []string{"method", "outcome"}),
		StoppedProcesses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stopped_processes_total",
			Help:      "Processes stopped, by the last signal they received.",
		}, []string{"signal"}),
		EngineUp: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "engine_up",
			Help:      "Whether the supervised engine process is running.",
		}),
		EngineReady: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "engine_ready",
			Help:      "Whether the supervised engine reports healthy.",
		}),
	}
	m.Registry.MustRegister(
		m.Launches,
		m.Stops,
		m.StoppedProcesses,
		m.EngineUp,
		m.EngineReady,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// SetUp records whether the engine is running.
func (m *Metrics) SetUp(up bool) {
	m.EngineUp.Set(boolToFloat(up))
}

// SetReady records whether the engine is healthy.
func (m *Metrics) SetReady(ready bool) {
	m.EngineReady.Set(boolToFloat(ready))
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
