// Package repotest holds behaviour checks every storage backend must pass.
package repotest

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cwrk-planet/watch-buddy/internal/domain"
	"github.com/cwrk-planet/watch-buddy/internal/repository"
)

type Backend struct {
	Rooms   repository.RoomRepository
	Chat    repository.ChatRepository
	Members repository.MemberRepository
}

// Factory returns a fresh, empty backend for one subtest.
type Factory func(t *testing.T) Backend

func Run(t *testing.T, newBackend Factory) {
	t.Run("EnsureIsIdempotent", func(t *testing.T) { testEnsure(t, newBackend(t)) })
	t.Run("GetMissingRoom", func(t *testing.T) { testGetMissing(t, newBackend(t)) })
	t.Run("ConcurrentDisjointUpdates", func(t *testing.T) { testConcurrentUpdates(t, newBackend(t)) })
	t.Run("UpdateErrorKeepsState", func(t *testing.T) { testUpdateError(t, newBackend(t)) })
	t.Run("ReapBoundary", func(t *testing.T) { testReapBoundary(t, newBackend(t)) })
	t.Run("ReapCascades", func(t *testing.T) { testReapCascades(t, newBackend(t)) })
	t.Run("ChatOrderingAndPaging", func(t *testing.T) { testChatPaging(t, newBackend(t)) })
	t.Run("Reactions", func(t *testing.T) { testReactions(t, newBackend(t)) })
	t.Run("MemberUpsert", func(t *testing.T) { testMembers(t, newBackend(t)) })
}

var base = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func testEnsure(t *testing.T, b Backend) {
	ctx := context.Background()
	room, created, err := b.Rooms.Ensure(ctx, "ABC123", base)
	if err != nil || !created {
		t.Fatalf("first ensure: created=%v err=%v", created, err)
	}
	if room.State.Theme != domain.DefaultTheme || room.State.Playlist == nil {
		t.Fatalf("fresh room not defaulted: %+v", room.State)
	}

	theme := "noir"
	if _, err := b.Rooms.Update(ctx, "ABC123", base, func(cur domain.PlaybackState) (domain.PlaybackState, error) {
		return domain.StatePatch{Theme: &theme}.Apply(cur), nil
	}); err != nil {
		t.Fatalf("update: %v", err)
	}

	room, created, err = b.Rooms.Ensure(ctx, "ABC123", base.Add(time.Hour))
	if err != nil || created {
		t.Fatalf("second ensure: created=%v err=%v", created, err)
	}
	if room.State.Theme != "noir" {
		t.Fatalf("ensure must not reset state, got %+v", room.State)
	}
}

func testGetMissing(t *testing.T, b Backend) {
	ctx := context.Background()
	if _, err := b.Rooms.Get(ctx, "nope"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("get: expected ErrNotFound, got %v", err)
	}
	if err := b.Rooms.Touch(ctx, "nope", base); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("touch: expected ErrNotFound, got %v", err)
	}
	_, err := b.Rooms.Update(ctx, "nope", base, func(cur domain.PlaybackState) (domain.PlaybackState, error) {
		return cur, nil
	})
	if !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("update: expected ErrNotFound, got %v", err)
	}
}

func testConcurrentUpdates(t *testing.T, b Backend) {
	ctx := context.Background()
	if _, _, err := b.Rooms.Ensure(ctx, "R", base); err != nil {
		t.Fatalf("ensure: %v", err)
	}

	const writers = 8
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			var patch domain.StatePatch
			switch i % 4 {
			case 0:
				playing := true
				patch.IsPlaying = &playing
			case 1:
				theme := "noir"
				patch.Theme = &theme
			case 2:
				at := 42.0
				patch.Time = &at
			case 3:
				pl := []domain.PlaylistItem{{Title: "t", URL: "u"}}
				patch.Playlist = &pl
			}
			_, err := b.Rooms.Update(ctx, "R", base, func(cur domain.PlaybackState) (domain.PlaybackState, error) {
				return patch.Apply(cur), nil
			})
			if err != nil {
				t.Errorf("writer %d: %v", i, err)
			}
		}(i)
	}
	wg.Wait()

	room, err := b.Rooms.Get(ctx, "R")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	st := room.State
	if !st.IsPlaying || st.Theme != "noir" || st.Time != 42 || len(st.Playlist) != 1 {
		t.Fatalf("a concurrent field update was lost: %+v", st)
	}
}

func testUpdateError(t *testing.T, b Backend) {
	ctx := context.Background()
	if _, _, err := b.Rooms.Ensure(ctx, "R", base); err != nil {
		t.Fatalf("ensure: %v", err)
	}
	boom := errors.New("boom")
	_, err := b.Rooms.Update(ctx, "R", base.Add(time.Hour), func(cur domain.PlaybackState) (domain.PlaybackState, error) {
		cur.IsPlaying = true
		return cur, boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected fn error, got %v", err)
	}
	room, err := b.Rooms.Get(ctx, "R")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if room.State.IsPlaying || !room.LastActiveAt.Equal(base) {
		t.Fatalf("failed update must not persist: %+v", room)
	}
}

func testReapBoundary(t *testing.T, b Backend) {
	ctx := context.Background()
	for i, id := range []domain.RoomID{"old", "edge", "fresh"} {
		if _, _, err := b.Rooms.Ensure(ctx, id, base.Add(time.Duration(i)*time.Millisecond)); err != nil {
			t.Fatalf("ensure %s: %v", id, err)
		}
	}

	cutoff := base.Add(time.Millisecond)
	n, err := b.Rooms.DeleteIdleBefore(ctx, cutoff)
	if err != nil {
		t.Fatalf("reap: %v", err)
	}
	if n != 1 {
		t.Fatalf("reaped %d rooms, want 1", n)
	}
	if _, err := b.Rooms.Get(ctx, "old"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("old room should be gone, got %v", err)
	}
	for _, id := range []domain.RoomID{"edge", "fresh"} {
		if _, err := b.Rooms.Get(ctx, id); err != nil {
			t.Fatalf("%s should survive: %v", id, err)
		}
	}

	if err := b.Rooms.Touch(ctx, "edge", base.Add(time.Hour)); err != nil {
		t.Fatalf("touch: %v", err)
	}
	n, err = b.Rooms.DeleteIdleBefore(ctx, base.Add(time.Minute))
	if err != nil {
		t.Fatalf("reap: %v", err)
	}
	if n != 1 {
		t.Fatalf("after touch reaped %d rooms, want 1 (fresh)", n)
	}
	if _, err := b.Rooms.Get(ctx, "edge"); err != nil {
		t.Fatalf("touched room should survive: %v", err)
	}
}

func testReapCascades(t *testing.T, b Backend) {
	ctx := context.Background()
	if _, _, err := b.Rooms.Ensure(ctx, "R", base); err != nil {
		t.Fatalf("ensure: %v", err)
	}
	if err := b.Chat.Append(ctx, entry("R", "01", 1)); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := b.Members.Upsert(ctx, member("R", "alice", "Alice")); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	if _, err := b.Rooms.DeleteIdleBefore(ctx, base.Add(time.Second)); err != nil {
		t.Fatalf("reap: %v", err)
	}
	hist, err := b.Chat.History(ctx, "R")
	if err != nil || len(hist) != 0 {
		t.Fatalf("chat survived reap: %v %v", hist, err)
	}
	list, err := b.Members.List(ctx, "R")
	if err != nil || len(list) != 0 {
		t.Fatalf("members survived reap: %v %v", list, err)
	}
}

func testChatPaging(t *testing.T, b Backend) {
	ctx := context.Background()
	if _, _, err := b.Rooms.Ensure(ctx, "R", base); err != nil {
		t.Fatalf("ensure: %v", err)
	}
	// inserted out of order, same ts for 02/03
	for _, e := range []domain.ChatEntry{entry("R", "03", 20), entry("R", "01", 10), entry("R", "02", 20), entry("R", "04", 30)} {
		if err := b.Chat.Append(ctx, e); err != nil {
			t.Fatalf("append %s: %v", e.ID, err)
		}
	}
	if err := b.Chat.Append(ctx, entry("R", "01", 99)); !errors.Is(err, repository.ErrAlreadyExists) {
		t.Fatalf("duplicate id: expected ErrAlreadyExists, got %v", err)
	}

	hist, err := b.Chat.History(ctx, "R")
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if got := ids(hist); got != "01,02,03,04" {
		t.Fatalf("history order = %s", got)
	}

	page, err := b.Chat.Page(ctx, "R", nil, 2)
	if err != nil {
		t.Fatalf("page 1: %v", err)
	}
	if got := ids(page); got != "04,03" {
		t.Fatalf("page 1 = %s", got)
	}
	last := page[len(page)-1]
	page, err = b.Chat.Page(ctx, "R", &repository.Cursor{Ts: last.Ts, ID: last.ID}, 2)
	if err != nil {
		t.Fatalf("page 2: %v", err)
	}
	if got := ids(page); got != "02,01" {
		t.Fatalf("page 2 = %s", got)
	}
	if page[0].Sender.Name != "Alice" || page[0].Reactions == nil {
		t.Fatalf("entry fields not round-tripped: %+v", page[0])
	}

	if err := b.Chat.Append(ctx, entry("missing-room", "x", 1)); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("append to missing room: expected ErrNotFound, got %v", err)
	}
}

func testReactions(t *testing.T, b Backend) {
	ctx := context.Background()
	if _, _, err := b.Rooms.Ensure(ctx, "R", base); err != nil {
		t.Fatalf("ensure: %v", err)
	}
	if err := b.Chat.Append(ctx, entry("R", "01", 1)); err != nil {
		t.Fatalf("append: %v", err)
	}

	if _, err := b.Chat.AddReaction(ctx, "R", "ghost", "👍"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("missing entry: expected ErrNotFound, got %v", err)
	}
	hist, _ := b.Chat.History(ctx, "R")
	if len(hist) != 1 || len(hist[0].Reactions) != 0 {
		t.Fatalf("history changed by missing-entry reaction: %+v", hist)
	}

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := b.Chat.AddReaction(ctx, "R", "01", "🎉"); err != nil {
				t.Errorf("react: %v", err)
			}
		}()
	}
	wg.Wait()

	e, err := b.Chat.AddReaction(ctx, "R", "01", "👍")
	if err != nil {
		t.Fatalf("react: %v", err)
	}
	if len(e.Reactions) != 6 || e.Reactions[5] != "👍" {
		t.Fatalf("reactions = %v", e.Reactions)
	}
}

func testMembers(t *testing.T, b Backend) {
	ctx := context.Background()
	if _, _, err := b.Rooms.Ensure(ctx, "R", base); err != nil {
		t.Fatalf("ensure: %v", err)
	}
	if err := b.Members.Upsert(ctx, member("R", "alice", "Alice")); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	m := member("R", "bob", "Bob")
	m.JoinedAt = base.Add(time.Second)
	if err := b.Members.Upsert(ctx, m); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	again := member("R", "alice", "Alice 2")
	again.JoinedAt = base.Add(time.Minute)
	if err := b.Members.Upsert(ctx, again); err != nil {
		t.Fatalf("re-upsert: %v", err)
	}

	list, err := b.Members.List(ctx, "R")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 || list[0].Identity != "alice" || list[0].Name != "Alice 2" {
		t.Fatalf("unexpected members: %+v", list)
	}

	if err := b.Members.Delete(ctx, "R", "carol"); err != nil {
		t.Fatalf("delete of absent member must be a no-op, got %v", err)
	}
	if err := b.Members.Delete(ctx, "R", "alice"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	list, _ = b.Members.List(ctx, "R")
	if len(list) != 1 || list[0].Identity != "bob" {
		t.Fatalf("unexpected members after delete: %+v", list)
	}
}

func entry(room domain.RoomID, id string, ts int64) domain.ChatEntry {
	return domain.ChatEntry{
		ID:        id,
		RoomID:    room,
		Sender:    domain.Member{Identity: "alice", Name: "Alice"},
		Text:      "msg " + id,
		Reactions: []string{},
		Ts:        ts,
	}
}

func member(room domain.RoomID, identity, name string) domain.MemberRecord {
	return domain.MemberRecord{
		RoomID:   room,
		Member:   domain.Member{Identity: domain.Identity(identity), Name: name},
		JoinedAt: base,
	}
}

func ids(entries []domain.ChatEntry) string {
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.ID)
	}
	return strings.Join(out, ",")
}
