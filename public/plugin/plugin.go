// Package plugin is the host-facing callback surface: a thin adapter a
// broker process loads and calls into through the four lifecycle entry points
// a host needs (Init, OnMessage, OnTick, Cleanup), plus a Context accessor
// for hosts that need the interceptor context directly.
package plugin

import (
	"time"

	"github.com/trustmesh/interceptor/internal/config"
	"github.com/trustmesh/interceptor/internal/interceptor"
	"github.com/trustmesh/interceptor/internal/metrics"
)

// Plugin is the handle a host keeps for the lifetime of one broker process.
type Plugin struct {
	ctx *interceptor.Context
}

// Init loads the broker's options and trust state, returning a ready-to-use
// Plugin. metricsSet may be nil if the host doesn't want Prometheus output.
func Init(opts config.Options, metricsSet *metrics.Set) (*Plugin, error) {
	ctx, err := interceptor.NewContext(opts, metricsSet)
	if err != nil {
		return nil, err
	}
	return &Plugin{ctx: ctx}, nil
}

// OnMessage runs one inbound event through the interceptor state machine.
func (p *Plugin) OnMessage(topic string, payload []byte) interceptor.Decision {
	return p.ctx.OnMessage(interceptor.Event{Topic: topic, Payload: payload})
}

// OnTick drives the periodic trust-map refresh.
func (p *Plugin) OnTick(now time.Time) {
	p.ctx.OnTick(now)
}

// Cleanup flushes trust-store state before shutdown.
func (p *Plugin) Cleanup() error {
	return p.ctx.Cleanup()
}

// Context exposes the underlying interceptor context for hosts (like
// hostsim) that need direct access rather than going through the plugin
// boundary, e.g. to read Self or Metrics.
func (p *Plugin) Context() *interceptor.Context {
	return p.ctx
}
