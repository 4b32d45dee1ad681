package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/cwrk-planet/watch-buddy/internal/domain"
	"github.com/cwrk-planet/watch-buddy/internal/events"
	"github.com/cwrk-planet/watch-buddy/internal/repository"
)

type recordedEvents struct {
	mu  sync.Mutex
	got []events.Event
}

func (r *recordedEvents) Publish(_ context.Context, e events.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.got = append(r.got, e)
}

func (r *recordedEvents) types() []events.Type {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]events.Type, 0, len(r.got))
	for _, e := range r.got {
		out = append(out, e.Type)
	}
	return out
}

var errBackend = errors.New("connection refused")

// brokenRooms fails every call the way an unreachable database would.
type brokenRooms struct{}

func (brokenRooms) Ensure(context.Context, domain.RoomID, time.Time) (domain.Room, bool, error) {
	return domain.Room{}, false, errBackend
}
func (brokenRooms) Get(context.Context, domain.RoomID) (domain.Room, error) {
	return domain.Room{}, errBackend
}
func (brokenRooms) Update(context.Context, domain.RoomID, time.Time, repository.UpdateFunc) (domain.PlaybackState, error) {
	return domain.PlaybackState{}, errBackend
}
func (brokenRooms) Touch(context.Context, domain.RoomID, time.Time) error { return errBackend }
func (brokenRooms) DeleteIdleBefore(context.Context, time.Time) (int64, error) {
	return 0, errBackend
}
func (brokenRooms) Ping(context.Context) error { return errBackend }
