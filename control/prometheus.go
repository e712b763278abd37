// control/prometheus.go
// Author: momentics <momentics@gmail.com>
//
// Prometheus probe sink. Every notification becomes a counter increment;
// open connections are tracked as a gauge.

package control

import (
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/momentics/hioload-nio/api"
)

// PrometheusProbe exports probe notifications as Prometheus metrics.
type PrometheusProbe struct {
	lifecycle *prometheus.CounterVec
	conns     *prometheus.CounterVec
	open      prometheus.Gauge
	openN     atomic.Int64
	readBytes prometheus.Counter
	wroteByte prometheus.Counter
	errors    prometheus.Counter
}

var _ api.Probe = (*PrometheusProbe)(nil)

// NewPrometheusProbe creates the collectors under namespace and registers
// them with reg (prometheus.DefaultRegisterer if nil).
func NewPrometheusProbe(reg prometheus.Registerer, namespace string) (*PrometheusProbe, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	p := &PrometheusProbe{
		lifecycle: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "transport",
			Name:      "lifecycle_events_total",
			Help:      "Transport lifecycle transitions by event.",
		}, []string{"transport", "event"}),
		conns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "connection",
			Name:      "events_total",
			Help:      "Connection events by kind.",
		}, []string{"event"}),
		open: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "connection",
			Name:      "open",
			Help:      "Connections accepted or connected and not yet closed.",
		}),
		readBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "connection",
			Name:      "read_bytes_total",
			Help:      "Bytes read from channels.",
		}),
		wroteByte: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "connection",
			Name:      "written_bytes_total",
			Help:      "Bytes accepted by channels.",
		}),
		errors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "connection",
			Name:      "errors_total",
			Help:      "Failures surfaced by event dispatch and writes.",
		}),
	}
	for _, c := range []prometheus.Collector{p.lifecycle, p.conns, p.open, p.readBytes, p.wroteByte, p.errors} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return p, nil
}

func (p *PrometheusProbe) OnStart(name string)        { p.lifecycle.WithLabelValues(name, "start").Inc() }
func (p *PrometheusProbe) OnStop(name string)         { p.lifecycle.WithLabelValues(name, "stop").Inc() }
func (p *PrometheusProbe) OnPause(name string)        { p.lifecycle.WithLabelValues(name, "pause").Inc() }
func (p *PrometheusProbe) OnResume(name string)       { p.lifecycle.WithLabelValues(name, "resume").Inc() }
func (p *PrometheusProbe) OnConfigChange(name string) { p.lifecycle.WithLabelValues(name, "config").Inc() }

func (p *PrometheusProbe) OnAccept(string) {
	p.conns.WithLabelValues("accept").Inc()
	p.open.Set(float64(p.openN.Add(1)))
}

func (p *PrometheusProbe) OnConnect(string) {
	p.conns.WithLabelValues("connect").Inc()
	p.open.Set(float64(p.openN.Add(1)))
}

// OnClose also fires for listeners and never-connected channels; the gauge
// does not go below zero.
func (p *PrometheusProbe) OnClose(string) {
	p.conns.WithLabelValues("close").Inc()
	for {
		n := p.openN.Load()
		if n <= 0 {
			return
		}
		if p.openN.CompareAndSwap(n, n-1) {
			p.open.Set(float64(n - 1))
			return
		}
	}
}

func (p *PrometheusProbe) OnRead(_ string, n int)  { p.readBytes.Add(float64(n)) }
func (p *PrometheusProbe) OnWrite(_ string, n int) { p.wroteByte.Add(float64(n)) }
func (p *PrometheusProbe) OnError(string, error)   { p.errors.Inc() }
