package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/cwrk-planet/watch-buddy/internal/domain"
	"github.com/cwrk-planet/watch-buddy/internal/repository"

	"github.com/jackc/pgx/v5"
)

type RoomRepository struct {
	db txBeginner
}

func NewRoomRepository(db txBeginner) *RoomRepository {
	return &RoomRepository{db: db}
}

// Ensure: INSERT ... ON CONFLICT DO NOTHING; если строка уже была, дочитываем её.
func (r *RoomRepository) Ensure(ctx context.Context, id domain.RoomID, now time.Time) (domain.Room, bool, error) {
	raw, err := domain.EncodeState(domain.DefaultPlaybackState())
	if err != nil {
		return domain.Room{}, false, err
	}

	room, err := scanRoom(r.db.QueryRow(ctx, queryEnsureRoom, string(id), raw, now))
	if err == nil {
		return room, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return domain.Room{}, false, mapPgError(err)
	}

	room, err = r.Get(ctx, id)
	if err != nil {
		return domain.Room{}, false, err
	}
	return room, false, nil
}

func (r *RoomRepository) Get(ctx context.Context, id domain.RoomID) (domain.Room, error) {
	room, err := scanRoom(r.db.QueryRow(ctx, queryGetRoom, string(id)))
	if err != nil {
		return domain.Room{}, mapPgError(err)
	}
	return room, nil
}

// Update: read-modify-write под блокировкой строки комнаты.
// Параллельные Update по той же комнате ждут друг друга, разные комнаты не блокируются.
func (r *RoomRepository) Update(ctx context.Context, id domain.RoomID, now time.Time, fn repository.UpdateFunc) (domain.PlaybackState, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return domain.PlaybackState{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var raw []byte
	if err := tx.QueryRow(ctx, queryLockRoomState, string(id)).Scan(&raw); err != nil {
		return domain.PlaybackState{}, mapPgError(err)
	}
	cur, err := domain.DecodeState(raw)
	if err != nil {
		return domain.PlaybackState{}, err
	}

	next, err := fn(cur)
	if err != nil {
		return domain.PlaybackState{}, err
	}
	out, err := domain.EncodeState(next)
	if err != nil {
		return domain.PlaybackState{}, err
	}
	if _, err := tx.Exec(ctx, queryUpdateRoomState, string(id), out, now); err != nil {
		return domain.PlaybackState{}, mapPgError(err)
	}
	if err := tx.Commit(ctx); err != nil {
		return domain.PlaybackState{}, err
	}
	return next, nil
}

func (r *RoomRepository) Touch(ctx context.Context, id domain.RoomID, now time.Time) error {
	tag, err := r.db.Exec(ctx, queryTouchRoom, string(id), now)
	if err != nil {
		return mapPgError(err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *RoomRepository) DeleteIdleBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.db.Exec(ctx, queryDeleteIdleRooms, cutoff)
	if err != nil {
		return 0, mapPgError(err)
	}
	return tag.RowsAffected(), nil
}

func (r *RoomRepository) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var one int
	return r.db.QueryRow(ctx, `SELECT 1`).Scan(&one)
}

func scanRoom(row pgx.Row) (domain.Room, error) {
	var (
		id         string
		raw        []byte
		lastActive time.Time
		createdAt  time.Time
	)
	if err := row.Scan(&id, &raw, &lastActive, &createdAt); err != nil {
		return domain.Room{}, err
	}
	st, err := domain.DecodeState(raw)
	if err != nil {
		return domain.Room{}, err
	}
	return domain.Room{
		ID:           domain.RoomID(id),
		State:        st,
		LastActiveAt: lastActive,
		CreatedAt:    createdAt,
	}, nil
}
