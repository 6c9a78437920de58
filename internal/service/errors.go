package service

import (
	"errors"

	"stash/internal/field"
)

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")

	// ErrInvalidImage is returned when an image column receives bytes that
	// do not decode.
	ErrInvalidImage = field.ErrInvalidImage
)
