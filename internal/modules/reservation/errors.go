package reservation

import "errors"

var (
	ErrValidation            = errors.New("validation error")
	ErrNotFound              = errors.New("reservation not found")
	ErrAccommodationNotFound = errors.New("accommodation not found")
	// ErrBusy means the date range is being processed by another request
	// (lock held) or the lock store is unavailable; the caller may retry.
	ErrBusy = errors.New("dates are being processed, try again")
	// ErrOverlap means the storage exclusion constraint rejected the insert.
	ErrOverlap           = errors.New("date overlap")
	ErrExpired           = errors.New("pre-reservation expired")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrAlreadyExtended   = errors.New("hold already extended")
)
