// Package memstore keeps rooms, chat and membership in process memory.
// It backs single-instance deployments and the service tests.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/cwrk-planet/watch-buddy/internal/domain"
	"github.com/cwrk-planet/watch-buddy/internal/repository"
)

type roomEntry struct {
	mu      sync.Mutex
	room    domain.Room
	chat    []domain.ChatEntry
	members map[domain.Identity]domain.MemberRecord
	deleted bool
}

type Store struct {
	mu    sync.RWMutex
	rooms map[domain.RoomID]*roomEntry
}

func New() *Store {
	return &Store{rooms: make(map[domain.RoomID]*roomEntry)}
}

// lock returns the room entry locked, or ErrNotFound.
func (s *Store) lock(id domain.RoomID) (*roomEntry, error) {
	s.mu.RLock()
	e, ok := s.rooms[id]
	s.mu.RUnlock()
	if !ok {
		return nil, repository.ErrNotFound
	}
	e.mu.Lock()
	if e.deleted {
		e.mu.Unlock()
		return nil, repository.ErrNotFound
	}
	return e, nil
}

// ---- RoomRepository ----

func (s *Store) Ensure(_ context.Context, id domain.RoomID, now time.Time) (domain.Room, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.rooms[id]; ok {
		e.mu.Lock()
		defer e.mu.Unlock()
		return cloneRoom(e.room), false, nil
	}
	e := &roomEntry{
		room: domain.Room{
			ID:           id,
			State:        domain.DefaultPlaybackState(),
			LastActiveAt: now,
			CreatedAt:    now,
		},
		members: make(map[domain.Identity]domain.MemberRecord),
	}
	s.rooms[id] = e
	return cloneRoom(e.room), true, nil
}

func (s *Store) Get(_ context.Context, id domain.RoomID) (domain.Room, error) {
	e, err := s.lock(id)
	if err != nil {
		return domain.Room{}, err
	}
	defer e.mu.Unlock()
	return cloneRoom(e.room), nil
}

func (s *Store) Update(_ context.Context, id domain.RoomID, now time.Time, fn repository.UpdateFunc) (domain.PlaybackState, error) {
	e, err := s.lock(id)
	if err != nil {
		return domain.PlaybackState{}, err
	}
	defer e.mu.Unlock()

	next, err := fn(e.room.State.Clone())
	if err != nil {
		return domain.PlaybackState{}, err
	}
	e.room.State = next.Clone()
	e.room.LastActiveAt = now
	return next, nil
}

func (s *Store) Touch(_ context.Context, id domain.RoomID, now time.Time) error {
	e, err := s.lock(id)
	if err != nil {
		return err
	}
	defer e.mu.Unlock()
	e.room.LastActiveAt = now
	return nil
}

func (s *Store) DeleteIdleBefore(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for id, e := range s.rooms {
		e.mu.Lock()
		if e.room.LastActiveAt.Before(cutoff) {
			e.deleted = true
			delete(s.rooms, id)
			n++
		}
		e.mu.Unlock()
	}
	return n, nil
}

func (s *Store) Ping(context.Context) error { return nil }

// ---- ChatRepository ----

func (s *Store) Append(_ context.Context, entry domain.ChatEntry) error {
	e, err := s.lock(entry.RoomID)
	if err != nil {
		return err
	}
	defer e.mu.Unlock()

	for _, c := range e.chat {
		if c.ID == entry.ID {
			return repository.ErrAlreadyExists
		}
	}
	e.chat = append(e.chat, cloneEntry(entry))
	sort.SliceStable(e.chat, func(i, j int) bool {
		return entryLess(e.chat[i], e.chat[j])
	})
	return nil
}

func (s *Store) History(_ context.Context, roomID domain.RoomID) ([]domain.ChatEntry, error) {
	e, err := s.lock(roomID)
	if err != nil {
		if err == repository.ErrNotFound {
			return []domain.ChatEntry{}, nil
		}
		return nil, err
	}
	defer e.mu.Unlock()

	out := make([]domain.ChatEntry, 0, len(e.chat))
	for _, c := range e.chat {
		out = append(out, cloneEntry(c))
	}
	return out, nil
}

func (s *Store) Page(_ context.Context, roomID domain.RoomID, before *repository.Cursor, limit int) ([]domain.ChatEntry, error) {
	e, err := s.lock(roomID)
	if err != nil {
		if err == repository.ErrNotFound {
			return []domain.ChatEntry{}, nil
		}
		return nil, err
	}
	defer e.mu.Unlock()

	out := make([]domain.ChatEntry, 0, limit)
	for i := len(e.chat) - 1; i >= 0 && len(out) < limit; i-- {
		c := e.chat[i]
		if before != nil && !before.Before(c.Ts, c.ID) {
			continue
		}
		out = append(out, cloneEntry(c))
	}
	return out, nil
}

func (s *Store) AddReaction(_ context.Context, roomID domain.RoomID, entryID, emoji string) (domain.ChatEntry, error) {
	e, err := s.lock(roomID)
	if err != nil {
		return domain.ChatEntry{}, err
	}
	defer e.mu.Unlock()

	for i := range e.chat {
		if e.chat[i].ID == entryID {
			e.chat[i].Reactions = append(e.chat[i].Reactions, emoji)
			return cloneEntry(e.chat[i]), nil
		}
	}
	return domain.ChatEntry{}, repository.ErrNotFound
}

// ---- MemberRepository ----

func (s *Store) Upsert(_ context.Context, m domain.MemberRecord) error {
	e, err := s.lock(m.RoomID)
	if err != nil {
		return err
	}
	defer e.mu.Unlock()

	if prev, ok := e.members[m.Identity]; ok {
		m.JoinedAt = prev.JoinedAt
	}
	e.members[m.Identity] = m
	return nil
}

func (s *Store) Delete(_ context.Context, roomID domain.RoomID, identity domain.Identity) error {
	e, err := s.lock(roomID)
	if err != nil {
		if err == repository.ErrNotFound {
			return nil
		}
		return err
	}
	defer e.mu.Unlock()
	delete(e.members, identity)
	return nil
}

func (s *Store) List(_ context.Context, roomID domain.RoomID) ([]domain.MemberRecord, error) {
	e, err := s.lock(roomID)
	if err != nil {
		if err == repository.ErrNotFound {
			return []domain.MemberRecord{}, nil
		}
		return nil, err
	}
	defer e.mu.Unlock()

	out := make([]domain.MemberRecord, 0, len(e.members))
	for _, m := range e.members {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].JoinedAt.Equal(out[j].JoinedAt) {
			return out[i].JoinedAt.Before(out[j].JoinedAt)
		}
		return out[i].Identity < out[j].Identity
	})
	return out, nil
}

// ---- helpers ----

func entryLess(a, b domain.ChatEntry) bool {
	if a.Ts != b.Ts {
		return a.Ts < b.Ts
	}
	return a.ID < b.ID
}

func cloneRoom(r domain.Room) domain.Room {
	r.State = r.State.Clone()
	return r
}

func cloneEntry(c domain.ChatEntry) domain.ChatEntry {
	reactions := make([]string, len(c.Reactions))
	copy(reactions, c.Reactions)
	c.Reactions = reactions
	return c
}

var (
	_ repository.RoomRepository   = (*Store)(nil)
	_ repository.ChatRepository   = (*Store)(nil)
	_ repository.MemberRepository = (*Store)(nil)
)
