package core

import (
	"errors"

	"github.com/jo-hoe/imagequiz/internal/quiz"
)

var (
	ErrNotFound         = errors.New("not found")
	ErrInsufficientData = quiz.ErrInsufficientData
	ErrUnauthorized     = errors.New("unauthorized")
	ErrValidation       = errors.New("validation failed")
	ErrStorage          = errors.New("storage failure")
)

// ErrorCode returns the machine readable kind of err as sent to API clients.
func ErrorCode(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrInsufficientData):
		return "insufficient_data"
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, ErrValidation):
		return "validation_error"
	default:
		return "storage_error"
	}
}
