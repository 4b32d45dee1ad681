package postgres

import (
	"context"

	"github.com/cwrk-planet/watch-buddy/internal/domain"
	"github.com/cwrk-planet/watch-buddy/internal/repository"

	"github.com/jackc/pgx/v5"
)

type ChatRepository struct {
	db querier
}

func NewChatRepository(db querier) *ChatRepository {
	return &ChatRepository{db: db}
}

func (r *ChatRepository) Append(ctx context.Context, e domain.ChatEntry) error {
	reactions := e.Reactions
	if reactions == nil {
		reactions = []string{}
	}
	_, err := r.db.Exec(ctx, queryInsertMessage,
		string(e.RoomID),
		e.ID,
		string(e.Sender.Identity),
		e.Sender.Name,
		e.Sender.AvatarRef,
		e.Text,
		reactions,
		e.Ts,
	)
	return mapPgError(err)
}

func (r *ChatRepository) History(ctx context.Context, roomID domain.RoomID) ([]domain.ChatEntry, error) {
	rows, err := r.db.Query(ctx, queryHistory, string(roomID))
	if err != nil {
		return nil, mapPgError(err)
	}
	return collectEntries(rows, roomID)
}

// Page: история от новых к старым с курсором (ts,id DESC).
func (r *ChatRepository) Page(ctx context.Context, roomID domain.RoomID, before *repository.Cursor, limit int) ([]domain.ChatEntry, error) {
	var ts, id any
	if before != nil {
		ts, id = before.Ts, before.ID
	}
	rows, err := r.db.Query(ctx, queryHistoryPage, string(roomID), ts, id, limit)
	if err != nil {
		return nil, mapPgError(err)
	}
	return collectEntries(rows, roomID)
}

// AddReaction: array_append в одном UPDATE, конкурентные реакции не теряются.
func (r *ChatRepository) AddReaction(ctx context.Context, roomID domain.RoomID, entryID, emoji string) (domain.ChatEntry, error) {
	e, err := scanEntry(r.db.QueryRow(ctx, queryAddReaction, string(roomID), entryID, emoji))
	if err != nil {
		return domain.ChatEntry{}, mapPgError(err)
	}
	e.RoomID = roomID
	return e, nil
}

func collectEntries(rows pgx.Rows, roomID domain.RoomID) ([]domain.ChatEntry, error) {
	defer rows.Close()

	out := make([]domain.ChatEntry, 0)
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		e.RoomID = roomID
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, mapPgError(err)
	}
	return out, nil
}

func scanEntry(row pgx.Row) (domain.ChatEntry, error) {
	var (
		e        domain.ChatEntry
		identity string
	)
	if err := row.Scan(&e.ID, &identity, &e.Sender.Name, &e.Sender.AvatarRef, &e.Text, &e.Reactions, &e.Ts); err != nil {
		return domain.ChatEntry{}, err
	}
	e.Sender.Identity = domain.Identity(identity)
	if e.Reactions == nil {
		e.Reactions = []string{}
	}
	return e, nil
}
