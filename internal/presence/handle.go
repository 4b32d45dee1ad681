package presence

import (
	"errors"
	"sync/atomic"
	"time"

	"github.com/cwrk-planet/watch-buddy/internal/domain"
	"github.com/cwrk-planet/watch-buddy/internal/protocol"

	"github.com/google/uuid"
)

// ErrBackpressure is returned by Conn.Send when the outbound buffer is full.
var ErrBackpressure = errors.New("presence: send buffer full")

// Conn is the outbound half of one client transport.
// Send must not block on the network.
type Conn interface {
	Send(msg protocol.Message) error
	Close() error
}

// Handle binds one transport connection to a room identity. It is created
// once at join and is the only thing routing and fan-out look at.
type Handle struct {
	ConnID   string
	RoomID   domain.RoomID
	Member   domain.Member
	JoinedAt time.Time

	conn    Conn
	retired atomic.Bool
}

func NewHandle(roomID domain.RoomID, m domain.Member, conn Conn) *Handle {
	return &Handle{
		ConnID:   uuid.NewString(),
		RoomID:   roomID,
		Member:   m,
		JoinedAt: time.Now(),
		conn:     conn,
	}
}

func (h *Handle) Identity() domain.Identity { return h.Member.Identity }

func (h *Handle) Send(msg protocol.Message) error { return h.conn.Send(msg) }

func (h *Handle) Close() error { return h.conn.Close() }

// Retire marks the handle's connection as torn down. A retired handle is
// never restored into the registry.
func (h *Handle) Retire() { h.retired.Store(true) }

func (h *Handle) Retired() bool { return h.retired.Load() }
