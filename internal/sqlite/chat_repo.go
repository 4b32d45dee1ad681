package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/cwrk-planet/watch-buddy/internal/domain"
	"github.com/cwrk-planet/watch-buddy/internal/repository"
)

type ChatRepository struct {
	db *sql.DB
}

func NewChatRepository(db *sql.DB) *ChatRepository {
	return &ChatRepository{db: db}
}

func (r *ChatRepository) Append(ctx context.Context, e domain.ChatEntry) error {
	reactions := e.Reactions
	if reactions == nil {
		reactions = []string{}
	}
	raw, err := json.Marshal(reactions)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, queryInsertMessage,
		string(e.RoomID),
		e.ID,
		string(e.Sender.Identity),
		e.Sender.Name,
		e.Sender.AvatarRef,
		e.Text,
		string(raw),
		e.Ts,
	)
	return mapSQLiteError(err)
}

func (r *ChatRepository) History(ctx context.Context, roomID domain.RoomID) ([]domain.ChatEntry, error) {
	rows, err := r.db.QueryContext(ctx, queryHistory, string(roomID))
	if err != nil {
		return nil, mapSQLiteError(err)
	}
	return collectEntries(rows, roomID)
}

func (r *ChatRepository) Page(ctx context.Context, roomID domain.RoomID, before *repository.Cursor, limit int) ([]domain.ChatEntry, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if before == nil {
		rows, err = r.db.QueryContext(ctx, queryHistoryHead, string(roomID), limit)
	} else {
		rows, err = r.db.QueryContext(ctx, queryHistoryPage, string(roomID), before.Ts, before.Ts, before.ID, limit)
	}
	if err != nil {
		return nil, mapSQLiteError(err)
	}
	return collectEntries(rows, roomID)
}

func (r *ChatRepository) AddReaction(ctx context.Context, roomID domain.RoomID, entryID, emoji string) (domain.ChatEntry, error) {
	e, err := scanEntry(r.db.QueryRowContext(ctx, queryAddReaction, emoji, string(roomID), entryID))
	if err != nil {
		return domain.ChatEntry{}, mapSQLiteError(err)
	}
	e.RoomID = roomID
	return e, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func collectEntries(rows *sql.Rows, roomID domain.RoomID) ([]domain.ChatEntry, error) {
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
		return nil, mapSQLiteError(err)
	}
	return out, nil
}

func scanEntry(row rowScanner) (domain.ChatEntry, error) {
	var (
		e         domain.ChatEntry
		identity  string
		reactions string
	)
	if err := row.Scan(&e.ID, &identity, &e.Sender.Name, &e.Sender.AvatarRef, &e.Text, &reactions, &e.Ts); err != nil {
		return domain.ChatEntry{}, err
	}
	e.Sender.Identity = domain.Identity(identity)
	if err := json.Unmarshal([]byte(reactions), &e.Reactions); err != nil {
		return domain.ChatEntry{}, fmt.Errorf("decode reactions of %s: %w", e.ID, err)
	}
	if e.Reactions == nil {
		e.Reactions = []string{}
	}
	return e, nil
}
