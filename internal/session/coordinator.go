// Package session runs the per-connection room protocol: join, the event
// relay while joined, and disconnect cleanup.
package session

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/cwrk-planet/watch-buddy/internal/domain"
	"github.com/cwrk-planet/watch-buddy/internal/events"
	"github.com/cwrk-planet/watch-buddy/internal/presence"
	"github.com/cwrk-planet/watch-buddy/internal/protocol"
	"github.com/cwrk-planet/watch-buddy/internal/telemetry"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

type RoomStore interface {
	Ensure(ctx context.Context, id domain.RoomID) (domain.Room, error)
	State(ctx context.Context, id domain.RoomID) (domain.PlaybackState, error)
	Merge(ctx context.Context, id domain.RoomID, patch domain.StatePatch) (domain.PlaybackState, error)
	Touch(ctx context.Context, id domain.RoomID) error
}

type ChatStore interface {
	Send(ctx context.Context, roomID domain.RoomID, sender domain.Member, text string) (domain.ChatEntry, error)
	History(ctx context.Context, roomID domain.RoomID) ([]domain.ChatEntry, error)
	React(ctx context.Context, roomID domain.RoomID, entryID, emoji string) (domain.ChatEntry, bool, error)
}

type MemberStore interface {
	Join(ctx context.Context, roomID domain.RoomID, m domain.Member) error
	Leave(ctx context.Context, roomID domain.RoomID, identity domain.Identity) error
}

type SignalRouter interface {
	Route(ctx context.Context, roomID domain.RoomID, from domain.Identity, sig protocol.Signal) bool
}

const DefaultCleanupTimeout = 5 * time.Second

type Deps struct {
	Rooms    RoomStore
	Chat     ChatStore
	Members  MemberStore
	Presence *presence.Registry
	Router   SignalRouter
	Events   events.Publisher
	Metrics  *telemetry.Metrics
	Logger   *slog.Logger

	// CleanupTimeout bounds disconnect cleanup. Zero means DefaultCleanupTimeout.
	CleanupTimeout time.Duration
}

type Coordinator struct {
	rooms    RoomStore
	chat     ChatStore
	members  MemberStore
	presence *presence.Registry
	router   SignalRouter
	events   events.Publisher
	metrics  *telemetry.Metrics
	log      *slog.Logger

	cleanupTimeout time.Duration
	now            func() time.Time
}

func NewCoordinator(d Deps) *Coordinator {
	c := &Coordinator{
		rooms:          d.Rooms,
		chat:           d.Chat,
		members:        d.Members,
		presence:       d.Presence,
		router:         d.Router,
		events:         d.Events,
		metrics:        d.Metrics,
		log:            d.Logger,
		cleanupTimeout: d.CleanupTimeout,
		now:            time.Now,
	}
	if c.events == nil {
		c.events = events.Nop{}
	}
	if c.metrics == nil {
		c.metrics = telemetry.Noop()
	}
	if c.log == nil {
		c.log = slog.Default()
	}
	c.log = c.log.With("module", "session")
	if c.cleanupTimeout <= 0 {
		c.cleanupTimeout = DefaultCleanupTimeout
	}
	return c
}

// SetClock overrides the source of action receive timestamps.
func (c *Coordinator) SetClock(now func() time.Time) {
	if now != nil {
		c.now = now
	}
}

// Open starts a session for a freshly accepted connection to roomID.
// The session stays in Connecting until the client sends room:join.
func (c *Coordinator) Open(roomID domain.RoomID, conn presence.Conn) *Session {
	return &Session{c: c, roomID: roomID, conn: conn, state: Connecting}
}

// broadcast fans msg out to every live handle in the room except skip.
// A target whose buffer is full loses the message and is closed; its own
// teardown then runs the disconnect path.
func (c *Coordinator) broadcast(ctx context.Context, roomID domain.RoomID, msg protocol.Message, skip *presence.Handle) {
	for _, h := range c.presence.Handles(roomID) {
		if h == skip {
			continue
		}
		err := h.Send(msg)
		if err == nil {
			continue
		}
		c.metrics.BroadcastDropped.Add(ctx, 1, metric.WithAttributes(attribute.String("type", msg.Type)))
		c.log.DebugContext(ctx, "broadcast dropped",
			"room", roomID, "to", h.Identity(), "conn", h.ConnID, "type", msg.Type, "err", err)
		if errors.Is(err, presence.ErrBackpressure) {
			_ = h.Close()
		}
	}
}

func (c *Coordinator) touch(ctx context.Context, roomID domain.RoomID) {
	if err := c.rooms.Touch(ctx, roomID); err != nil {
		c.log.WarnContext(ctx, "touch room failed", "room", roomID, "err", err)
	}
}
