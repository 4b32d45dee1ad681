package repository

import (
	"context"

	"github.com/cwrk-planet/watch-buddy/internal/domain"
)

type ChatRepository interface {
	Append(ctx context.Context, e domain.ChatEntry) error
	// Вся история комнаты по возрастанию (ts, id)
	History(ctx context.Context, roomID domain.RoomID) ([]domain.ChatEntry, error)
	// Страница истории от новых к старым строго до курсора
	Page(ctx context.Context, roomID domain.RoomID, before *Cursor, limit int) ([]domain.ChatEntry, error)
	// Дописывает реакцию к записи; ErrNotFound если записи нет
	AddReaction(ctx context.Context, roomID domain.RoomID, entryID, emoji string) (domain.ChatEntry, error)
}
