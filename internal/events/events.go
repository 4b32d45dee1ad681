// Package events publishes room lifecycle notifications for other services.
package events

import (
	"context"
	"time"

	"github.com/cwrk-planet/watch-buddy/internal/domain"
)

type Type string

const (
	RoomCreated  Type = "room.created"
	RoomsReaped  Type = "room.reaped"
	MemberJoined Type = "member.joined"
	MemberLeft   Type = "member.left"
)

type Event struct {
	Type     Type            `json:"type"`
	RoomID   domain.RoomID   `json:"roomId,omitempty"`
	Identity domain.Identity `json:"identity,omitempty"`
	Count    int64           `json:"count,omitempty"`
	At       time.Time       `json:"at"`
}

// Publisher is best-effort: implementations log failures instead of returning them.
type Publisher interface {
	Publish(ctx context.Context, e Event)
}

type Nop struct{}

func (Nop) Publish(context.Context, Event) {}
