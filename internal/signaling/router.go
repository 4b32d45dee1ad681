// Package signaling relays WebRTC negotiation payloads between two members
// of the same room.
package signaling

import (
	"context"
	"log/slog"

	"github.com/cwrk-planet/watch-buddy/internal/domain"
	"github.com/cwrk-planet/watch-buddy/internal/presence"
	"github.com/cwrk-planet/watch-buddy/internal/protocol"
	"github.com/cwrk-planet/watch-buddy/internal/telemetry"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

type Directory interface {
	FindConnection(roomID domain.RoomID, identity domain.Identity) (*presence.Handle, bool)
}

type Router struct {
	dir     Directory
	metrics *telemetry.Metrics
	log     *slog.Logger
}

func NewRouter(dir Directory, m *telemetry.Metrics) *Router {
	if m == nil {
		m = telemetry.Noop()
	}
	return &Router{
		dir:     dir,
		metrics: m,
		log:     slog.Default().With("module", "signaling"),
	}
}

// Route delivers sig to its target as {from, payload} under the same type.
// A target that is not connected is a normal outcome during peer churn: it is
// logged and counted, never reported to the sender.
func (r *Router) Route(ctx context.Context, roomID domain.RoomID, from domain.Identity, sig protocol.Signal) bool {
	attrs := metric.WithAttributes(attribute.String("type", sig.Type))

	target, ok := r.dir.FindConnection(roomID, sig.To)
	if !ok {
		r.metrics.SignalMisses.Add(ctx, 1, attrs)
		r.log.DebugContext(ctx, "signaling target not connected",
			"room", roomID, "from", from, "to", sig.To, "type", sig.Type)
		return false
	}

	err := target.Send(protocol.Message{
		Type:    sig.Type,
		Payload: protocol.SignalDelivery{From: from, Payload: sig.Payload},
	})
	if err != nil {
		r.metrics.SignalMisses.Add(ctx, 1, attrs)
		r.log.DebugContext(ctx, "signaling delivery failed",
			"room", roomID, "from", from, "to", sig.To, "type", sig.Type, "err", err)
		return false
	}
	r.metrics.SignalRouted.Add(ctx, 1, attrs)
	return true
}
