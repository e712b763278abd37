// control/otel.go
// Author: momentics <momentics@gmail.com>
//
// OpenTelemetry metric probe sink.

package control

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/momentics/hioload-nio/api"
)

// MetricProbe records probe notifications with an OpenTelemetry meter.
type MetricProbe struct {
	lifecycle metric.Int64Counter
	conns     metric.Int64Counter
	open      metric.Int64UpDownCounter
	read      metric.Int64Counter
	written   metric.Int64Counter
	errors    metric.Int64Counter
}

var _ api.Probe = (*MetricProbe)(nil)

// NewMetricProbe creates the instruments on meter.
func NewMetricProbe(meter metric.Meter) (*MetricProbe, error) {
	var (
		p    MetricProbe
		errs []error
		err  error
	)
	p.lifecycle, err = meter.Int64Counter("transport.lifecycle.events",
		metric.WithDescription("Transport lifecycle transitions by event."))
	errs = append(errs, err)
	p.conns, err = meter.Int64Counter("connection.events",
		metric.WithDescription("Connection events by kind."))
	errs = append(errs, err)
	p.open, err = meter.Int64UpDownCounter("connection.open",
		metric.WithDescription("Connections accepted or connected and not yet closed."))
	errs = append(errs, err)
	p.read, err = meter.Int64Counter("connection.read",
		metric.WithUnit("By"), metric.WithDescription("Bytes read from channels."))
	errs = append(errs, err)
	p.written, err = meter.Int64Counter("connection.written",
		metric.WithUnit("By"), metric.WithDescription("Bytes accepted by channels."))
	errs = append(errs, err)
	p.errors, err = meter.Int64Counter("connection.errors",
		metric.WithDescription("Failures surfaced by event dispatch and writes."))
	errs = append(errs, err)
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return &p, nil
}

func (p *MetricProbe) lifecycleEvent(name, event string) {
	p.lifecycle.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("transport", name), attribute.String("event", event)))
}

func (p *MetricProbe) connEvent(event string) {
	p.conns.Add(context.Background(), 1, metric.WithAttributes(attribute.String("event", event)))
}

func (p *MetricProbe) OnStart(name string)        { p.lifecycleEvent(name, "start") }
func (p *MetricProbe) OnStop(name string)         { p.lifecycleEvent(name, "stop") }
func (p *MetricProbe) OnPause(name string)        { p.lifecycleEvent(name, "pause") }
func (p *MetricProbe) OnResume(name string)       { p.lifecycleEvent(name, "resume") }
func (p *MetricProbe) OnConfigChange(name string) { p.lifecycleEvent(name, "config") }

func (p *MetricProbe) OnAccept(string) {
	p.connEvent("accept")
	p.open.Add(context.Background(), 1)
}

func (p *MetricProbe) OnConnect(string) {
	p.connEvent("connect")
	p.open.Add(context.Background(), 1)
}

func (p *MetricProbe) OnClose(string) {
	p.connEvent("close")
	p.open.Add(context.Background(), -1)
}

func (p *MetricProbe) OnRead(_ string, n int) {
	p.read.Add(context.Background(), int64(n))
}

func (p *MetricProbe) OnWrite(_ string, n int) {
	p.written.Add(context.Background(), int64(n))
}

func (p *MetricProbe) OnError(string, error) {
	p.errors.Add(context.Background(), 1)
}
