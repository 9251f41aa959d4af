package consultations

import "errors"

var (
	ErrNotFound         = errors.New("consultation not found")
	ErrConflict         = errors.New("employee already booked at this time")
	ErrCanceled         = errors.New("consultation is canceled")
	ErrAlreadyConducted = errors.New("consultation was already conducted")
	ErrNotYetHeld       = errors.New("meeting time has not passed yet")
	ErrBadTransition    = errors.New("status transition not allowed")
	ErrBadWindow        = errors.New("startedAt must not be after endedAt")
)
