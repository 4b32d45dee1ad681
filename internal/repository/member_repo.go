package repository

import (
	"context"

	"github.com/cwrk-planet/watch-buddy/internal/domain"
)

type MemberRepository interface {
	// Вставка или перезапись name/avatar для (room, identity)
	Upsert(ctx context.Context, m domain.MemberRecord) error
	// Отсутствующая запись не ошибка
	Delete(ctx context.Context, roomID domain.RoomID, identity domain.Identity) error
	List(ctx context.Context, roomID domain.RoomID) ([]domain.MemberRecord, error)
}
