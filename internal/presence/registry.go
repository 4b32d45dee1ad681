// Package presence tracks which identities are live in which room and the
// connection that currently speaks for each of them.
package presence

import (
	"sort"
	"sync"

	"github.com/cwrk-planet/watch-buddy/internal/domain"
)

type room struct {
	mu      sync.RWMutex
	members map[domain.Identity]*Handle
}

type Registry struct {
	mu    sync.RWMutex
	rooms map[domain.RoomID]*room
}

func NewRegistry() *Registry {
	return &Registry{rooms: make(map[domain.RoomID]*room)}
}

// Add registers h for (room, identity). A handle already registered for the
// same identity is replaced and returned so the caller can retire it.
func (r *Registry) Add(h *Handle) (replaced *Handle) {
	for {
		rm := r.getOrCreate(h.RoomID)
		rm.mu.Lock()
		if rm.members == nil {
			// room emptied and dropped between lookup and lock
			rm.mu.Unlock()
			continue
		}
		prev := rm.members[h.Identity()]
		if prev == h {
			prev = nil
		} else if prev != nil {
			h.JoinedAt = prev.JoinedAt
		}
		rm.members[h.Identity()] = h
		rm.mu.Unlock()
		return prev
	}
}

// Restore puts back a handle that a failed join replaced. It does nothing
// when the handle was retired or the identity slot is already taken.
func (r *Registry) Restore(h *Handle) bool {
	for {
		rm := r.getOrCreate(h.RoomID)
		rm.mu.Lock()
		if rm.members == nil {
			rm.mu.Unlock()
			continue
		}
		_, taken := rm.members[h.Identity()]
		ok := !taken && !h.Retired()
		if ok {
			rm.members[h.Identity()] = h
		}
		empty := len(rm.members) == 0
		rm.mu.Unlock()

		if empty {
			r.dropIfEmpty(h.RoomID, rm)
		}
		return ok
	}
}

// Remove drops whatever handle is registered for identity. Absent is a no-op.
func (r *Registry) Remove(roomID domain.RoomID, identity domain.Identity) (*Handle, bool) {
	rm := r.get(roomID)
	if rm == nil {
		return nil, false
	}
	rm.mu.Lock()
	h, ok := rm.members[identity]
	if ok {
		delete(rm.members, identity)
	}
	empty := rm.members != nil && len(rm.members) == 0
	rm.mu.Unlock()

	if empty {
		r.dropIfEmpty(roomID, rm)
	}
	return h, ok
}

// RemoveHandle drops h only if it is still the current handle for its
// identity, so a stale connection cannot evict a reconnected member.
func (r *Registry) RemoveHandle(h *Handle) bool {
	rm := r.get(h.RoomID)
	if rm == nil {
		return false
	}
	rm.mu.Lock()
	cur, ok := rm.members[h.Identity()]
	removed := ok && cur == h
	if removed {
		delete(rm.members, h.Identity())
	}
	empty := rm.members != nil && len(rm.members) == 0
	rm.mu.Unlock()

	if empty {
		r.dropIfEmpty(h.RoomID, rm)
	}
	return removed
}

// ListMembers returns live members ordered by join time, then identity.
func (r *Registry) ListMembers(roomID domain.RoomID) []domain.Member {
	hs := r.Handles(roomID)
	out := make([]domain.Member, 0, len(hs))
	for _, h := range hs {
		out = append(out, h.Member)
	}
	return out
}

func (r *Registry) FindConnection(roomID domain.RoomID, identity domain.Identity) (*Handle, bool) {
	rm := r.get(roomID)
	if rm == nil {
		return nil, false
	}
	rm.mu.RLock()
	defer rm.mu.RUnlock()
	h, ok := rm.members[identity]
	return h, ok
}

// Handles snapshots the room's live handles in ListMembers order.
func (r *Registry) Handles(roomID domain.RoomID) []*Handle {
	rm := r.get(roomID)
	if rm == nil {
		return nil
	}
	rm.mu.RLock()
	out := make([]*Handle, 0, len(rm.members))
	for _, h := range rm.members {
		out = append(out, h)
	}
	rm.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].JoinedAt.Equal(out[j].JoinedAt) {
			return out[i].JoinedAt.Before(out[j].JoinedAt)
		}
		return out[i].Identity() < out[j].Identity()
	})
	return out
}

// Stats reports the number of rooms with at least one live member and the
// total number of live handles.
func (r *Registry) Stats() (rooms, handles int) {
	r.mu.RLock()
	all := make([]*room, 0, len(r.rooms))
	for _, rm := range r.rooms {
		all = append(all, rm)
	}
	r.mu.RUnlock()

	for _, rm := range all {
		rm.mu.RLock()
		if n := len(rm.members); n > 0 {
			rooms++
			handles += n
		}
		rm.mu.RUnlock()
	}
	return rooms, handles
}

func (r *Registry) get(roomID domain.RoomID) *room {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.rooms[roomID]
}

func (r *Registry) getOrCreate(roomID domain.RoomID) *room {
	if rm := r.get(roomID); rm != nil {
		return rm
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	rm, ok := r.rooms[roomID]
	if !ok {
		rm = &room{members: make(map[domain.Identity]*Handle)}
		r.rooms[roomID] = rm
	}
	return rm
}

// dropIfEmpty forgets an empty room. members is set to nil under the room
// lock so a concurrent Add retries against a fresh entry.
func (r *Registry) dropIfEmpty(roomID domain.RoomID, rm *room) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.rooms[roomID] != rm {
		return
	}
	rm.mu.Lock()
	defer rm.mu.Unlock()
	if len(rm.members) == 0 {
		rm.members = nil
		delete(r.rooms, roomID)
	}
}
