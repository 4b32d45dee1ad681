package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

const meterName = "watch-buddy"

type Metrics struct {
	Events           metric.Int64Counter
	SignalRouted     metric.Int64Counter
	SignalMisses     metric.Int64Counter
	RoomsReaped      metric.Int64Counter
	BroadcastDropped metric.Int64Counter
	Connections      metric.Int64UpDownCounter
}

// NewMetrics creates the instruments on mp, or on the global provider when mp is nil.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	if mp == nil {
		mp = otel.GetMeterProvider()
	}
	meter := mp.Meter(meterName)

	var (
		m   Metrics
		err error
	)
	if m.Events, err = meter.Int64Counter("room_events_total",
		metric.WithDescription("Client events handled by the session coordinator")); err != nil {
		return nil, err
	}
	if m.SignalRouted, err = meter.Int64Counter("signaling_routed_total",
		metric.WithDescription("Signaling payloads delivered to their target")); err != nil {
		return nil, err
	}
	if m.SignalMisses, err = meter.Int64Counter("signaling_misses_total",
		metric.WithDescription("Signaling payloads dropped because the target was not connected")); err != nil {
		return nil, err
	}
	if m.RoomsReaped, err = meter.Int64Counter("rooms_reaped_total",
		metric.WithDescription("Idle rooms deleted by the reaper")); err != nil {
		return nil, err
	}
	if m.BroadcastDropped, err = meter.Int64Counter("broadcast_dropped_total",
		metric.WithDescription("Fan-out messages dropped for slow or closed connections")); err != nil {
		return nil, err
	}
	if m.Connections, err = meter.Int64UpDownCounter("ws_connections_active",
		metric.WithDescription("Open room sockets")); err != nil {
		return nil, err
	}
	return &m, nil
}

// Noop returns instruments that record nothing. Used when a component is
// built without explicit metrics.
func Noop() *Metrics {
	m, _ := NewMetrics(noop.NewMeterProvider())
	return m
}

func (m *Metrics) Event(ctx context.Context, msgType string) {
	m.Events.Add(ctx, 1, metric.WithAttributes(attribute.String("type", msgType)))
}
