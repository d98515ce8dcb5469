package guard

import (
	"errors"
	"time"
)

var (
	ErrSubscriptionNotActive = errors.New("subscription_not_active")
	ErrOutsideWindow         = errors.New("subscription_outside_window")
	ErrInvalidWindow         = errors.New("invalid_window")
)

// EnsureRenewalDue reports whether a subscription ending at endDate belongs to
// the half-open window [from, to).
func EnsureRenewalDue(active bool, endDate, from, to time.Time) error {
	if !to.After(from) {
		return ErrInvalidWindow
	}
	if !active {
		return ErrSubscriptionNotActive
	}
	if endDate.Before(from) || !endDate.Before(to) {
		return ErrOutsideWindow
	}
	return nil
}
