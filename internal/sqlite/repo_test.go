package sqlite

import (
	"context"
	"testing"

	"github.com/cwrk-planet/watch-buddy/internal/repository/repotest"
)

func TestRepositories(t *testing.T) {
	repotest.Run(t, func(t *testing.T) repotest.Backend {
		ctx := context.Background()
		db, err := Open(ctx, MemoryPath)
		if err != nil {
			t.Fatalf("open: %v", err)
		}
		t.Cleanup(func() { _ = db.Close() })
		if err := Migrate(ctx, db); err != nil {
			t.Fatalf("migrate: %v", err)
		}
		return repotest.Backend{
			Rooms:   NewRoomRepository(db),
			Chat:    NewChatRepository(db),
			Members: NewMemberRepository(db),
		}
	})
}

func TestMigrateIsIdempotent(t *testing.T) {
	ctx := context.Background()
	db, err := Open(ctx, MemoryPath)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()

	for i := 0; i < 2; i++ {
		if err := Migrate(ctx, db); err != nil {
			t.Fatalf("migrate #%d: %v", i+1, err)
		}
	}
}
