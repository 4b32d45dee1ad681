package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/cwrk-planet/watch-buddy/internal/domain"
)

type MemberRepository struct {
	db *sql.DB
}

func NewMemberRepository(db *sql.DB) *MemberRepository {
	return &MemberRepository{db: db}
}

func (r *MemberRepository) Upsert(ctx context.Context, m domain.MemberRecord) error {
	_, err := r.db.ExecContext(ctx, queryUpsertMember,
		string(m.RoomID),
		string(m.Identity),
		m.Name,
		m.AvatarRef,
		m.JoinedAt.UnixNano(),
	)
	return mapSQLiteError(err)
}

func (r *MemberRepository) Delete(ctx context.Context, roomID domain.RoomID, identity domain.Identity) error {
	_, err := r.db.ExecContext(ctx, queryDeleteMember, string(roomID), string(identity))
	return mapSQLiteError(err)
}

func (r *MemberRepository) List(ctx context.Context, roomID domain.RoomID) ([]domain.MemberRecord, error) {
	rows, err := r.db.QueryContext(ctx, queryListMembers, string(roomID))
	if err != nil {
		return nil, mapSQLiteError(err)
	}
	defer rows.Close()

	out := make([]domain.MemberRecord, 0)
	for rows.Next() {
		var (
			m        domain.MemberRecord
			identity string
			joinedAt int64
		)
		if err := rows.Scan(&identity, &m.Name, &m.AvatarRef, &joinedAt); err != nil {
			return nil, err
		}
		m.RoomID = roomID
		m.Identity = domain.Identity(identity)
		m.JoinedAt = time.Unix(0, joinedAt)
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, mapSQLiteError(err)
	}
	return out, nil
}
