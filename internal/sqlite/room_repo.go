package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/cwrk-planet/watch-buddy/internal/domain"
	"github.com/cwrk-planet/watch-buddy/internal/repository"
)

// Timestamps are stored as unix nanoseconds so the reap comparison is exact.
type RoomRepository struct {
	db *sql.DB
}

func NewRoomRepository(db *sql.DB) *RoomRepository {
	return &RoomRepository{db: db}
}

func (r *RoomRepository) Ensure(ctx context.Context, id domain.RoomID, now time.Time) (domain.Room, bool, error) {
	raw, err := domain.EncodeState(domain.DefaultPlaybackState())
	if err != nil {
		return domain.Room{}, false, err
	}
	res, err := r.db.ExecContext(ctx, queryEnsureRoom, string(id), string(raw), now.UnixNano(), now.UnixNano())
	if err != nil {
		return domain.Room{}, false, mapSQLiteError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return domain.Room{}, false, err
	}

	room, err := r.Get(ctx, id)
	if err != nil {
		return domain.Room{}, false, err
	}
	return room, n == 1, nil
}

func (r *RoomRepository) Get(ctx context.Context, id domain.RoomID) (domain.Room, error) {
	var (
		rid        string
		raw        string
		lastActive int64
		createdAt  int64
	)
	err := r.db.QueryRowContext(ctx, queryGetRoom, string(id)).Scan(&rid, &raw, &lastActive, &createdAt)
	if err != nil {
		return domain.Room{}, mapSQLiteError(err)
	}
	st, err := domain.DecodeState([]byte(raw))
	if err != nil {
		return domain.Room{}, err
	}
	return domain.Room{
		ID:           domain.RoomID(rid),
		State:        st,
		LastActiveAt: time.Unix(0, lastActive),
		CreatedAt:    time.Unix(0, createdAt),
	}, nil
}

func (r *RoomRepository) Update(ctx context.Context, id domain.RoomID, now time.Time, fn repository.UpdateFunc) (domain.PlaybackState, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.PlaybackState{}, err
	}
	defer func() { _ = tx.Rollback() }()

	var raw string
	if err := tx.QueryRowContext(ctx, queryRoomState, string(id)).Scan(&raw); err != nil {
		return domain.PlaybackState{}, mapSQLiteError(err)
	}
	cur, err := domain.DecodeState([]byte(raw))
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
	if _, err := tx.ExecContext(ctx, queryUpdateRoomState, string(out), now.UnixNano(), string(id)); err != nil {
		return domain.PlaybackState{}, mapSQLiteError(err)
	}
	if err := tx.Commit(); err != nil {
		return domain.PlaybackState{}, err
	}
	return next, nil
}

func (r *RoomRepository) Touch(ctx context.Context, id domain.RoomID, now time.Time) error {
	res, err := r.db.ExecContext(ctx, queryTouchRoom, now.UnixNano(), string(id))
	if err != nil {
		return mapSQLiteError(err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *RoomRepository) DeleteIdleBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, queryDeleteIdleRooms, cutoff.UnixNano())
	if err != nil {
		return 0, mapSQLiteError(err)
	}
	return res.RowsAffected()
}

func (r *RoomRepository) Ping(ctx context.Context) error {
	return Ping(ctx, r.db)
}
