package memstore

import (
	"testing"

	"github.com/cwrk-planet/watch-buddy/internal/repository/repotest"
)

func TestStore(t *testing.T) {
	repotest.Run(t, func(t *testing.T) repotest.Backend {
		s := New()
		return repotest.Backend{Rooms: s, Chat: s, Members: s}
	})
}
