package service

import (
	"context"
	"crypto/rand"
	"errors"
	"time"

	"github.com/cwrk-planet/watch-buddy/internal/domain"
	"github.com/cwrk-planet/watch-buddy/internal/events"
	"github.com/cwrk-planet/watch-buddy/internal/repository"
)

const (
	generatedIDLen      = 6
	generatedIDAttempts = 5
	idAlphabet          = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
)

// RoomService owns the durable per-room playback document.
// Merge is the only way room state changes.
type RoomService struct {
	roomRepo repository.RoomRepository
	events   events.Publisher
	now      func() time.Time
}

func NewRoomService(roomRepo repository.RoomRepository, pub events.Publisher) *RoomService {
	if pub == nil {
		pub = events.Nop{}
	}
	return &RoomService{
		roomRepo: roomRepo,
		events:   pub,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (s *RoomService) SetClock(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

func (s *RoomService) Now() time.Time { return s.now() }

// Ensure создаёт комнату с дефолтами, если её нет.
func (s *RoomService) Ensure(ctx context.Context, id domain.RoomID) (domain.Room, error) {
	if err := id.Validate(); err != nil {
		return domain.Room{}, err
	}
	room, created, err := s.roomRepo.Ensure(ctx, id, s.now())
	if err != nil {
		return domain.Room{}, domain.Persistence("roomRepo.Ensure", err)
	}
	if created {
		s.events.Publish(ctx, events.Event{Type: events.RoomCreated, RoomID: id, At: room.CreatedAt})
	}
	return room, nil
}

// Create: идемпотентное создание: для существующей комнаты patch мёржится,
// незаданные поля не трогаются. Пустой id: генерируем короткий код.
func (s *RoomService) Create(ctx context.Context, id domain.RoomID, patch domain.StatePatch) (domain.Room, bool, error) {
	if err := patch.Validate(); err != nil {
		return domain.Room{}, false, err
	}

	var (
		room    domain.Room
		created bool
		err     error
	)
	if id == "" {
		room, err = s.createGenerated(ctx)
		created = err == nil
	} else {
		if err := id.Validate(); err != nil {
			return domain.Room{}, false, err
		}
		room, created, err = s.roomRepo.Ensure(ctx, id, s.now())
		if err != nil {
			err = domain.Persistence("roomRepo.Ensure", err)
		}
	}
	if err != nil {
		return domain.Room{}, false, err
	}
	if created {
		s.events.Publish(ctx, events.Event{Type: events.RoomCreated, RoomID: room.ID, At: room.CreatedAt})
	}

	if !patch.Empty() {
		st, err := s.Merge(ctx, room.ID, patch)
		if err != nil {
			return domain.Room{}, false, err
		}
		room.State = st
	}
	return room, created, nil
}

func (s *RoomService) createGenerated(ctx context.Context) (domain.Room, error) {
	for i := 0; i < generatedIDAttempts; i++ {
		id, err := NewRoomID()
		if err != nil {
			return domain.Room{}, err
		}
		room, created, err := s.roomRepo.Ensure(ctx, id, s.now())
		if err != nil {
			return domain.Room{}, domain.Persistence("roomRepo.Ensure", err)
		}
		if created {
			return room, nil
		}
	}
	return domain.Room{}, domain.Persistence("generate room id", errors.New("no free id after retries"))
}

func (s *RoomService) Get(ctx context.Context, id domain.RoomID) (domain.Room, error) {
	room, err := s.roomRepo.Get(ctx, id)
	if err != nil {
		return domain.Room{}, mapRoomErr("roomRepo.Get", err)
	}
	return room, nil
}

// State returns the playback document merged over defaults.
func (s *RoomService) State(ctx context.Context, id domain.RoomID) (domain.PlaybackState, error) {
	room, err := s.Get(ctx, id)
	if err != nil {
		return domain.PlaybackState{}, err
	}
	return room.State, nil
}

// Merge применяет patch поверх текущего состояния атомарно и освежает last_active_at.
func (s *RoomService) Merge(ctx context.Context, id domain.RoomID, patch domain.StatePatch) (domain.PlaybackState, error) {
	if err := patch.Validate(); err != nil {
		return domain.PlaybackState{}, err
	}
	st, err := s.roomRepo.Update(ctx, id, s.now(), func(cur domain.PlaybackState) (domain.PlaybackState, error) {
		return patch.Apply(cur), nil
	})
	if err != nil {
		return domain.PlaybackState{}, mapRoomErr("roomRepo.Update", err)
	}
	return st, nil
}

func (s *RoomService) Touch(ctx context.Context, id domain.RoomID) error {
	if err := s.roomRepo.Touch(ctx, id, s.now()); err != nil {
		return mapRoomErr("roomRepo.Touch", err)
	}
	return nil
}

// ReapBefore удаляет комнаты с last_active_at строго раньше cutoff.
func (s *RoomService) ReapBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	n, err := s.roomRepo.DeleteIdleBefore(ctx, cutoff)
	if err != nil {
		return 0, domain.Persistence("roomRepo.DeleteIdleBefore", err)
	}
	if n > 0 {
		s.events.Publish(ctx, events.Event{Type: events.RoomsReaped, Count: n, At: s.now()})
	}
	return n, nil
}

func (s *RoomService) Ping(ctx context.Context) error {
	return s.roomRepo.Ping(ctx)
}

// NewRoomID returns a short human-friendly code without ambiguous characters.
func NewRoomID() (domain.RoomID, error) {
	buf := make([]byte, generatedIDLen)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	for i, b := range buf {
		buf[i] = idAlphabet[int(b)%len(idAlphabet)]
	}
	return domain.RoomID(buf), nil
}

func mapRoomErr(op string, err error) error {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return domain.ErrRoomNotFound
	case errors.Is(err, domain.ErrValidation):
		return err
	default:
		return domain.Persistence(op, err)
	}
}
