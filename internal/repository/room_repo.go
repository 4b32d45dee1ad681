package repository

import (
	"context"
	"time"

	"github.com/cwrk-planet/watch-buddy/internal/domain"
)

// UpdateFunc computes the next state from the current one inside the room lock.
type UpdateFunc func(cur domain.PlaybackState) (domain.PlaybackState, error)

type RoomRepository interface {
	// Создаёт комнату с дефолтным состоянием, если её ещё нет
	Ensure(ctx context.Context, id domain.RoomID, now time.Time) (domain.Room, bool, error)
	// Возвращает комнату или ErrNotFound
	Get(ctx context.Context, id domain.RoomID) (domain.Room, error)
	// Атомарный read-modify-write состояния, заодно обновляет last_active_at
	Update(ctx context.Context, id domain.RoomID, now time.Time, fn UpdateFunc) (domain.PlaybackState, error)
	// Обновляет только last_active_at
	Touch(ctx context.Context, id domain.RoomID, now time.Time) error
	// Удаляет комнаты с last_active_at строго меньше cutoff (каскадом чат и участников)
	DeleteIdleBefore(ctx context.Context, cutoff time.Time) (int64, error)
	Ping(ctx context.Context) error
}
