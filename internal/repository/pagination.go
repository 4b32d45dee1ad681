package repository

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// Cursor points at a chat entry by its (ts, id) ordering key.
type Cursor struct {
	Ts int64  `json:"ts"`
	ID string `json:"id"`
}

func EncodeCursor(c Cursor) (string, error) {
	data, err := json.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("encode cursor: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(data), nil
}

func DecodeCursor(s string) (*Cursor, error) {
	if s == "" {
		return nil, nil
	}
	data, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: decode base64: %v", ErrInvalidCursor, err)
	}
	var c Cursor
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("%w: decode json: %v", ErrInvalidCursor, err)
	}
	if c.ID == "" {
		return nil, fmt.Errorf("%w: empty id", ErrInvalidCursor)
	}
	return &c, nil
}

// Before reports whether the entry key (ts, id) sorts strictly before c.
func (c Cursor) Before(ts int64, id string) bool {
	return ts < c.Ts || (ts == c.Ts && id < c.ID)
}
