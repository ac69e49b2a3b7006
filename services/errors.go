package services

import (
	"errors"

	"gorm.io/gorm"
)

var (
	ErrInvalidUserID       = errors.New("user id is required")
	ErrInvalidActivity     = errors.New("unsupported activity type")
	ErrAchievementNotFound = errors.New("achievement not found")
	// ErrConcurrentUpdate means another writer changed the profile first; the unit can be retried.
	ErrConcurrentUpdate = errors.New("progression profile was modified concurrently")
)

// IsRetryable reports whether the whole progression unit may be run again.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrConcurrentUpdate) {
		return true
	}
	switch {
	case errors.Is(err, ErrInvalidUserID),
		errors.Is(err, ErrInvalidActivity),
		errors.Is(err, ErrAchievementNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		return false
	}
	// storage failures roll the unit back completely, so a retry is safe
	return true
}
