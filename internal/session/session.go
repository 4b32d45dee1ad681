package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/cwrk-planet/watch-buddy/internal/domain"
	"github.com/cwrk-planet/watch-buddy/internal/events"
	"github.com/cwrk-planet/watch-buddy/internal/presence"
	"github.com/cwrk-planet/watch-buddy/internal/protocol"
)

type State int

const (
	Connecting State = iota
	Joining
	Joined
	Disconnected
)

func (s State) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Joining:
		return "joining"
	case Joined:
		return "joined"
	case Disconnected:
		return "disconnected"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Session is the coordinator's view of one connection. Handle must be called
// from a single goroutine in receive order; Close may be called from anywhere
// and any number of times.
type Session struct {
	c      *Coordinator
	roomID domain.RoomID
	conn   presence.Conn

	mu     sync.Mutex
	state  State
	handle *presence.Handle
}

func (s *Session) RoomID() domain.RoomID { return s.roomID }

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Member returns the joined identity, or false before a successful join.
func (s *Session) Member() (domain.Member, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.handle == nil || s.state != Joined {
		return domain.Member{}, false
	}
	return s.handle.Member, true
}

// Handle processes one decoded client frame.
func (s *Session) Handle(ctx context.Context, in protocol.Inbound) {
	s.c.metrics.Event(ctx, in.MessageType())

	if _, ok := in.(protocol.Ping); ok {
		s.reply(protocol.Pong())
		return
	}
	if j, ok := in.(protocol.Join); ok {
		s.join(ctx, j.Member)
		return
	}

	s.mu.Lock()
	state, h := s.state, s.handle
	s.mu.Unlock()
	if state != Joined {
		s.reply(protocol.Error(domain.ErrNotJoined))
		return
	}

	err := s.dispatch(ctx, h, in)
	if errors.Is(err, domain.ErrRoomNotFound) && s.revive(ctx) {
		err = s.dispatch(ctx, h, in)
	}
	if err != nil {
		s.c.log.InfoContext(ctx, "room event failed",
			"room", s.roomID, "identity", h.Identity(), "type", in.MessageType(), "err", err)
		s.reply(protocol.Error(err))
	}
}

func (s *Session) dispatch(ctx context.Context, h *presence.Handle, in protocol.Inbound) error {
	switch m := in.(type) {
	case protocol.VideoAction:
		return s.videoAction(ctx, h, m)
	case protocol.ChatSend:
		return s.chatMessage(ctx, h, m)
	case protocol.ChatReaction:
		return s.chatReaction(ctx, m)
	case protocol.PlaylistUpdate:
		items := m.Items
		return s.merge(ctx, domain.StatePatch{Playlist: &items}, func(st domain.PlaybackState) protocol.Message {
			return protocol.Message{Type: protocol.TypePlaylistUpdate, Payload: st.Playlist}
		})
	case protocol.ThemeUpdate:
		theme := m.Theme
		return s.merge(ctx, domain.StatePatch{Theme: &theme}, func(st domain.PlaybackState) protocol.Message {
			return protocol.Message{Type: protocol.TypeThemeUpdate, Payload: st.Theme}
		})
	case protocol.Signal:
		s.c.router.Route(ctx, s.roomID, h.Identity(), m)
		s.c.touch(ctx, s.roomID)
		return nil
	default:
		return fmt.Errorf("%w: %s", protocol.ErrUnknownType, in.MessageType())
	}
}

// revive recreates a room the reaper deleted while members were still
// connected and restores their durable records. It reports whether the
// event should be retried.
func (s *Session) revive(ctx context.Context) bool {
	if _, err := s.c.rooms.Ensure(ctx, s.roomID); err != nil {
		s.c.log.WarnContext(ctx, "revive room failed", "room", s.roomID, "err", err)
		return false
	}
	for _, live := range s.c.presence.Handles(s.roomID) {
		if err := s.c.members.Join(ctx, s.roomID, live.Member); err != nil {
			s.c.log.WarnContext(ctx, "restore member failed", "room", s.roomID, "identity", live.Identity(), "err", err)
		}
	}
	s.c.log.InfoContext(ctx, "room revived", "room", s.roomID)
	return true
}

func (s *Session) join(ctx context.Context, m domain.Member) {
	s.mu.Lock()
	switch s.state {
	case Disconnected:
		s.mu.Unlock()
		return
	case Joining, Joined:
		s.mu.Unlock()
		s.reply(protocol.Error(domain.ErrAlreadyJoined))
		return
	}
	s.state = Joining
	s.mu.Unlock()

	snap, replaced, err := s.admit(ctx, m)

	s.mu.Lock()
	closed := s.state != Joining
	switch {
	case closed:
	case err != nil:
		s.state = Connecting
	default:
		s.state = Joined
	}
	h := s.handle
	s.mu.Unlock()

	if closed {
		s.abandon(ctx, m.Identity, replaced)
		return
	}
	if err != nil {
		s.c.log.WarnContext(ctx, "join failed", "room", s.roomID, "identity", m.Identity, "err", err)
		s.reply(protocol.Error(err))
		return
	}

	if replaced != nil {
		_ = replaced.Send(protocol.ErrorCode(domain.CodeReplaced, "signed in from another connection"))
		_ = replaced.Close()
	}

	s.reply(protocol.State(snap.state))
	s.reply(protocol.History(snap.history))
	s.c.broadcast(ctx, s.roomID, protocol.UserList(snap.members), nil)
	s.c.broadcast(ctx, s.roomID, protocol.NewPeer(h.Member), h)

	s.c.events.Publish(ctx, events.Event{
		Type:     events.MemberJoined,
		RoomID:   s.roomID,
		Identity: h.Identity(),
		At:       s.c.now().UTC(),
	})
	s.c.log.InfoContext(ctx, "member joined",
		"room", s.roomID, "identity", h.Identity(), "conn", h.ConnID, "replaced", replaced != nil)
}

type snapshot struct {
	state   domain.PlaybackState
	history []domain.ChatEntry
	members []domain.Member
}

// abandon finishes a join whose session was closed before it completed.
// The connection it displaced is told and closed unless a failed join
// already put it back.
func (s *Session) abandon(ctx context.Context, identity domain.Identity, replaced *presence.Handle) {
	if replaced != nil {
		if cur, ok := s.c.presence.FindConnection(s.roomID, identity); !ok || cur != replaced {
			_ = replaced.Send(protocol.ErrorCode(domain.CodeReplaced, "signed in from another connection"))
			_ = replaced.Close()
		}
	}
	// Close may have run before the durable upsert
	if _, live := s.c.presence.FindConnection(s.roomID, identity); !live {
		_ = s.c.members.Leave(context.WithoutCancel(ctx), s.roomID, identity)
	}
}

// admit runs the join steps in order. Any failure undoes presence so the
// client can retry from Connecting. The displaced handle is returned even on
// failure so the caller can settle it.
func (s *Session) admit(ctx context.Context, m domain.Member) (snapshot, *presence.Handle, error) {
	if _, err := s.c.rooms.Ensure(ctx, s.roomID); err != nil {
		return snapshot{}, nil, err
	}

	h := presence.NewHandle(s.roomID, m, s.conn)
	s.mu.Lock()
	if s.state != Joining {
		s.mu.Unlock()
		return snapshot{}, nil, domain.ErrNotJoined
	}
	replaced := s.c.presence.Add(h)
	s.handle = h
	s.mu.Unlock()

	undo := func() {
		s.mu.Lock()
		if s.handle == h {
			s.handle = nil
		}
		s.mu.Unlock()
		if !s.c.presence.RemoveHandle(h) || replaced == nil {
			return
		}
		if s.c.presence.Restore(replaced) {
			return
		}
		// the displaced connection went away while it was not current
		if _, live := s.c.presence.FindConnection(s.roomID, m.Identity); !live && replaced.Retired() {
			s.depart(ctx, replaced)
		}
	}

	if err := s.c.members.Join(ctx, s.roomID, m); err != nil {
		undo()
		return snapshot{}, replaced, err
	}
	if err := s.c.rooms.Touch(ctx, s.roomID); err != nil {
		undo()
		return snapshot{}, replaced, err
	}

	st, err := s.c.rooms.State(ctx, s.roomID)
	if err != nil {
		undo()
		return snapshot{}, replaced, err
	}
	history, err := s.c.chat.History(ctx, s.roomID)
	if err != nil {
		undo()
		return snapshot{}, replaced, err
	}
	return snapshot{
		state:   st,
		history: history,
		members: s.c.presence.ListMembers(s.roomID),
	}, replaced, nil
}

func (s *Session) videoAction(ctx context.Context, h *presence.Handle, a protocol.VideoAction) error {
	received := s.c.now().UnixMilli()
	if _, err := s.c.rooms.Merge(ctx, s.roomID, a.Patch(received)); err != nil {
		return err
	}
	s.c.broadcast(ctx, s.roomID, protocol.Message{
		Type: protocol.TypeVideoAction,
		Payload: protocol.VideoActionRelay{
			Kind:       a.Kind,
			Source:     a.Source,
			TargetTime: a.TargetTime,
			Ts:         received,
			From:       h.Identity(),
		},
	}, h)
	return nil
}

func (s *Session) chatMessage(ctx context.Context, h *presence.Handle, m protocol.ChatSend) error {
	entry, err := s.c.chat.Send(ctx, s.roomID, h.Member, m.Text)
	s.c.touch(ctx, s.roomID)
	if err != nil {
		return err
	}
	s.c.broadcast(ctx, s.roomID, protocol.Message{Type: protocol.TypeChatMessage, Payload: entry}, nil)
	return nil
}

func (s *Session) chatReaction(ctx context.Context, m protocol.ChatReaction) error {
	entry, ok, err := s.c.chat.React(ctx, s.roomID, m.EntryID, m.Emoji)
	s.c.touch(ctx, s.roomID)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	s.c.broadcast(ctx, s.roomID, protocol.Message{
		Type: protocol.TypeChatReaction,
		Payload: protocol.ReactionDelta{
			EntryID:   entry.ID,
			Emoji:     m.Emoji,
			Reactions: entry.Reactions,
		},
	}, nil)
	return nil
}

func (s *Session) merge(ctx context.Context, patch domain.StatePatch, render func(domain.PlaybackState) protocol.Message) error {
	st, err := s.c.rooms.Merge(ctx, s.roomID, patch)
	if err != nil {
		return err
	}
	s.c.broadcast(ctx, s.roomID, render(st), nil)
	return nil
}

// reply writes to this connection only, joined or not.
func (s *Session) reply(msg protocol.Message) {
	if err := s.conn.Send(msg); err != nil {
		s.c.log.Debug("reply dropped", "room", s.roomID, "type", msg.Type, "err", err)
	}
}

// Close tears the session down. It is idempotent and runs on a context
// detached from ctx so a cancelled request cannot skip cleanup. When the
// handle was already superseded by a reconnect, presence is left alone.
func (s *Session) Close(ctx context.Context) {
	s.mu.Lock()
	if s.state == Disconnected {
		s.mu.Unlock()
		return
	}
	s.state = Disconnected
	h := s.handle
	s.mu.Unlock()

	if h == nil {
		return
	}
	h.Retire()
	if !s.c.presence.RemoveHandle(h) {
		s.c.log.DebugContext(ctx, "stale connection closed", "room", s.roomID, "identity", h.Identity(), "conn", h.ConnID)
		return
	}
	s.depart(ctx, h)
}

// depart announces that h's identity left the room.
func (s *Session) depart(ctx context.Context, h *presence.Handle) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.c.cleanupTimeout)
	defer cancel()

	if err := s.c.members.Leave(ctx, s.roomID, h.Identity()); err != nil {
		s.c.log.WarnContext(ctx, "member leave failed", "room", s.roomID, "identity", h.Identity(), "err", err)
	}
	s.c.broadcast(ctx, s.roomID, protocol.UserList(s.c.presence.ListMembers(s.roomID)), nil)
	s.c.broadcast(ctx, s.roomID, protocol.RemovePeer(h.Identity()), nil)
	s.c.events.Publish(ctx, events.Event{
		Type:     events.MemberLeft,
		RoomID:   s.roomID,
		Identity: h.Identity(),
		At:       s.c.now().UTC(),
	})
	s.c.log.InfoContext(ctx, "member left", "room", s.roomID, "identity", h.Identity(), "conn", h.ConnID)
}
