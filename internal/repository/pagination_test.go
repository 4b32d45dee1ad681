package repository

import (
	"errors"
	"testing"
)

func TestCursorRoundTrip(t *testing.T) {
	s, err := EncodeCursor(Cursor{Ts: 1700000000123, ID: "01HZX"})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	c, err := DecodeCursor(s)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if c.Ts != 1700000000123 || c.ID != "01HZX" {
		t.Fatalf("unexpected cursor %+v", c)
	}
}

func TestDecodeCursor_Empty(t *testing.T) {
	c, err := DecodeCursor("")
	if err != nil || c != nil {
		t.Fatalf("empty cursor should decode to nil, got %+v, %v", c, err)
	}
}

func TestDecodeCursor_Invalid(t *testing.T) {
	for _, s := range []string{"%%%", "bm90LWpzb24", "e30"} {
		if _, err := DecodeCursor(s); !errors.Is(err, ErrInvalidCursor) {
			t.Fatalf("%q: expected ErrInvalidCursor, got %v", s, err)
		}
	}
}

func TestCursorBefore(t *testing.T) {
	c := Cursor{Ts: 10, ID: "b"}
	if !c.Before(9, "z") || !c.Before(10, "a") {
		t.Fatal("expected entries to sort before cursor")
	}
	if c.Before(10, "b") || c.Before(11, "a") {
		t.Fatal("cursor itself and later entries must not sort before")
	}
}
