package postgres

import (
	"context"
	"time"

	"github.com/cwrk-planet/watch-buddy/internal/domain"
)

type MemberRepository struct {
	db querier
}

func NewMemberRepository(db querier) *MemberRepository {
	return &MemberRepository{db: db}
}

// Upsert: повторный вход перезаписывает name/avatar, joined_at остаётся первым.
func (r *MemberRepository) Upsert(ctx context.Context, m domain.MemberRecord) error {
	_, err := r.db.Exec(ctx, queryUpsertMember,
		string(m.RoomID),
		string(m.Identity),
		m.Name,
		m.AvatarRef,
		m.JoinedAt,
	)
	return mapPgError(err)
}

func (r *MemberRepository) Delete(ctx context.Context, roomID domain.RoomID, identity domain.Identity) error {
	_, err := r.db.Exec(ctx, queryDeleteMember, string(roomID), string(identity))
	return mapPgError(err)
}

func (r *MemberRepository) List(ctx context.Context, roomID domain.RoomID) ([]domain.MemberRecord, error) {
	rows, err := r.db.Query(ctx, queryListMembers, string(roomID))
	if err != nil {
		return nil, mapPgError(err)
	}
	defer rows.Close()

	out := make([]domain.MemberRecord, 0)
	for rows.Next() {
		var (
			identity string
			m        domain.MemberRecord
			joinedAt time.Time
		)
		if err := rows.Scan(&identity, &m.Name, &m.AvatarRef, &joinedAt); err != nil {
			return nil, err
		}
		m.RoomID = roomID
		m.Identity = domain.Identity(identity)
		m.JoinedAt = joinedAt
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, mapPgError(err)
	}
	return out, nil
}
