package domain

import (
	"errors"
	"fmt"
)

var (
	ErrValidation    = errors.New("validation failed")
	ErrRoomNotFound  = errors.New("room not found")
	ErrEntryNotFound = errors.New("chat entry not found")
	ErrPersistence   = errors.New("persistence failure")
	ErrNotJoined     = errors.New("connection has not joined the room")
	ErrAlreadyJoined = errors.New("connection already joined the room")
)

// Error codes carried in room:error payloads.
const (
	CodeValidation  = "validation"
	CodeNotFound    = "not_found"
	CodePersistence = "persistence"
	CodeNotJoined   = "not_joined"
	CodeRateLimited = "rate_limited"
	CodeReplaced    = "replaced"
	CodeInternal    = "internal"
)

func Validation(msg string) error {
	return fmt.Errorf("%w: %s", ErrValidation, msg)
}

// Persistence wraps a backend failure so callers can tell it from bad input.
func Persistence(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrPersistence) {
		return err
	}
	return fmt.Errorf("%w: %s: %v", ErrPersistence, op, err)
}

// Classify maps an error to its wire code and whether a retry may succeed.
func Classify(err error) (code string, retryable bool) {
	switch {
	case errors.Is(err, ErrValidation):
		return CodeValidation, false
	case errors.Is(err, ErrRoomNotFound), errors.Is(err, ErrEntryNotFound):
		return CodeNotFound, false
	case errors.Is(err, ErrPersistence):
		return CodePersistence, true
	case errors.Is(err, ErrNotJoined):
		return CodeNotJoined, false
	case errors.Is(err, ErrAlreadyJoined):
		return CodeValidation, false
	default:
		return CodeInternal, true
	}
}
