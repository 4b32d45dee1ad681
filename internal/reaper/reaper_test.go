package reaper

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cwrk-planet/watch-buddy/internal/domain"
	"github.com/cwrk-planet/watch-buddy/internal/memstore"
	"github.com/cwrk-planet/watch-buddy/internal/service"
)

func TestTick_ReapsOnlyIdleRooms(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	now := base

	rooms := service.NewRoomService(memstore.New(), nil)
	rooms.SetClock(func() time.Time { return now })

	if _, err := rooms.Ensure(ctx, "OLD"); err != nil {
		t.Fatalf("ensure: %v", err)
	}
	now = base.Add(time.Hour)
	if _, err := rooms.Ensure(ctx, "EDGE"); err != nil {
		t.Fatalf("ensure: %v", err)
	}
	now = base.Add(2 * time.Hour)
	if _, err := rooms.Ensure(ctx, "FRESH"); err != nil {
		t.Fatalf("ensure: %v", err)
	}

	r := New(rooms, 2*time.Hour, time.Minute, nil)
	r.SetClock(func() time.Time { return base.Add(3 * time.Hour) })

	// cutoff = base+1h: OLD is strictly before, EDGE sits exactly on it
	n, err := r.Tick(ctx)
	if err != nil {
		t.Fatalf("tick: %v", err)
	}
	if n != 1 {
		t.Fatalf("reaped %d rooms, want 1", n)
	}
	if _, err := rooms.Get(ctx, "OLD"); !errors.Is(err, domain.ErrRoomNotFound) {
		t.Fatalf("OLD should be gone, got %v", err)
	}
	for _, id := range []domain.RoomID{"EDGE", "FRESH"} {
		if _, err := rooms.Get(ctx, id); err != nil {
			t.Fatalf("%s should survive: %v", id, err)
		}
	}
}

type failingStore struct{ calls int }

func (f *failingStore) ReapBefore(context.Context, time.Time) (int64, error) {
	f.calls++
	return 0, errors.New("database is locked")
}

func TestRun_KeepsGoingAfterErrors(t *testing.T) {
	store := &failingStore{}
	r := New(store, time.Hour, 5*time.Millisecond, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Millisecond)
	defer cancel()
	r.Run(ctx)

	if store.calls < 2 {
		t.Fatalf("reaper stopped after an error, calls = %d", store.calls)
	}
}
