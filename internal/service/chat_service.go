package service

import (
	"context"
	"crypto/rand"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/cwrk-planet/watch-buddy/internal/domain"
	"github.com/cwrk-planet/watch-buddy/internal/repository"

	"github.com/oklog/ulid/v2"
)

const (
	defaultPageLimit = 50
	maxPageLimit     = 100
)

type ChatService struct {
	chatRepo repository.ChatRepository
	now      func() time.Time

	mu      sync.Mutex
	entropy io.Reader
}

func NewChatService(chatRepo repository.ChatRepository) *ChatService {
	return &ChatService{
		chatRepo: chatRepo,
		now:      func() time.Time { return time.Now().UTC() },
		entropy:  ulid.Monotonic(rand.Reader, 0),
	}
}

func (s *ChatService) SetClock(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// Send validates text, stamps id and server time, and appends the entry.
func (s *ChatService) Send(ctx context.Context, roomID domain.RoomID, sender domain.Member, text string) (domain.ChatEntry, error) {
	text, err := domain.NormalizeChatText(text)
	if err != nil {
		return domain.ChatEntry{}, err
	}

	now := s.now()
	id, err := s.newID(now)
	if err != nil {
		return domain.ChatEntry{}, err
	}
	entry := domain.ChatEntry{
		ID:        id,
		RoomID:    roomID,
		Sender:    sender,
		Text:      text,
		Reactions: []string{},
		Ts:        now.UnixMilli(),
	}
	if err := s.chatRepo.Append(ctx, entry); err != nil {
		return domain.ChatEntry{}, mapRoomErr("chatRepo.Append", err)
	}
	return entry, nil
}

func (s *ChatService) newID(now time.Time) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, err := ulid.New(ulid.Timestamp(now), s.entropy)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// History: вся история комнаты по возрастанию (ts, id).
func (s *ChatService) History(ctx context.Context, roomID domain.RoomID) ([]domain.ChatEntry, error) {
	out, err := s.chatRepo.History(ctx, roomID)
	if err != nil {
		return nil, domain.Persistence("chatRepo.History", err)
	}
	return out, nil
}

// Page возвращает историю с курсорной пагинацией (ts,id DESC).
func (s *ChatService) Page(ctx context.Context, roomID domain.RoomID, after string, limit int) ([]domain.ChatEntry, string, error) {
	if limit <= 0 {
		limit = defaultPageLimit
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}
	cur, err := repository.DecodeCursor(after)
	if err != nil {
		return nil, "", domain.Validation(err.Error())
	}

	out, err := s.chatRepo.Page(ctx, roomID, cur, limit)
	if err != nil {
		return nil, "", domain.Persistence("chatRepo.Page", err)
	}

	var next string
	if len(out) == limit {
		last := out[len(out)-1]
		if c, e := repository.EncodeCursor(repository.Cursor{Ts: last.Ts, ID: last.ID}); e == nil {
			next = c
		}
	}
	return out, next, nil
}

// React appends emoji to an entry. A missing entry is not an error: ok is false.
func (s *ChatService) React(ctx context.Context, roomID domain.RoomID, entryID, emoji string) (domain.ChatEntry, bool, error) {
	if entryID == "" {
		return domain.ChatEntry{}, false, domain.Validation("entryId is required")
	}
	if err := domain.ValidateEmoji(emoji); err != nil {
		return domain.ChatEntry{}, false, err
	}
	entry, err := s.chatRepo.AddReaction(ctx, roomID, entryID, emoji)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.ChatEntry{}, false, nil
		}
		return domain.ChatEntry{}, false, domain.Persistence("chatRepo.AddReaction", err)
	}
	return entry, true, nil
}
