// Package metrics registers the OpenTelemetry counters for the presence and
// voice cores. Exporter wiring belongs to the deployment; with no SDK
// installed these are no-ops.
package metrics

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

type Metrics struct {
	Connects      metric.Int64Counter
	Disconnects   metric.Int64Counter
	Heartbeats    metric.Int64Counter
	StatusUpdates metric.Int64Counter
	IdleSweeps    metric.Int64Counter
	VoiceJoins    metric.Int64Counter
	VoiceLeaves   metric.Int64Counter
	Signals       metric.Int64Counter
}

func New() *Metrics {
	meter := otel.Meter("pulse")
	m := &Metrics{}
	m.Connects, _ = meter.Int64Counter("pulse_connects_total",
		metric.WithDescription("Total transport sessions connected"))
	m.Disconnects, _ = meter.Int64Counter("pulse_disconnects_total",
		metric.WithDescription("Total transport sessions closed"))
	m.Heartbeats, _ = meter.Int64Counter("pulse_heartbeats_total",
		metric.WithDescription("Total activity heartbeats received"))
	m.StatusUpdates, _ = meter.Int64Counter("pulse_status_updates_total",
		metric.WithDescription("Total explicit status updates"))
	m.IdleSweeps, _ = meter.Int64Counter("pulse_idle_transitions_total",
		metric.WithDescription("Total users moved to IDLE by the sweep"))
	m.VoiceJoins, _ = meter.Int64Counter("pulse_voice_joins_total",
		metric.WithDescription("Total voice room joins"))
	m.VoiceLeaves, _ = meter.Int64Counter("pulse_voice_leaves_total",
		metric.WithDescription("Total voice room leaves"))
	m.Signals, _ = meter.Int64Counter("pulse_signals_relayed_total",
		metric.WithDescription("Total call-setup payloads relayed"))
	return m
}
