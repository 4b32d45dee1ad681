package repository

import "errors"

var (
	ErrNotFound      = errors.New("repository: not found")
	ErrAlreadyExists = errors.New("repository: already exists")
	ErrInvalidCursor = errors.New("repository: invalid cursor")
)
