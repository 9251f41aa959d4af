package availability

import (
	"context"
	"errors"
	"time"

	"github.com/carelink/backend/internal/models"
)

var (
	ErrEmptySlots     = errors.New("availability: slot set is empty")
	ErrPastSlot       = errors.New("availability: slot is in the past")
	ErrExpiryNotAfter = errors.New("availability: expiresAt must be after createdAt")
	ErrNotFound       = errors.New("availability: not found")
)

// IsValidation reports whether err is a submission validation failure, i.e.
// the input was rejected before any state mutation.
func IsValidation(err error) bool {
	return errors.Is(err, ErrEmptySlots) || errors.Is(err, ErrPastSlot) || errors.Is(err, ErrExpiryNotAfter)
}

// Store holds pending guardian requests and employee open-slot declarations
// until the matcher consumes them. Expired schedules are filtered at read
// time; nothing sweeps them eagerly.
type Store interface {
	// SubmitGuardianRequest stores a guardian's requested slots for one
	// senior, replacing any previous pending request from the same guardian.
	SubmitGuardianRequest(ctx context.Context, req models.AvailabilityRequest) error

	// SubmitEmployeeSchedule stores an employee's offered slots.
	SubmitEmployeeSchedule(ctx context.Context, sched models.AvailabilitySchedule) error

	// EmployeeSchedule returns the employee's live schedule, ErrNotFound when
	// absent or expired.
	EmployeeSchedule(ctx context.Context, employeeID int) (*models.AvailabilitySchedule, error)

	// SchedulesForSenior returns unexpired schedules naming the senior,
	// earliest submission first.
	SchedulesForSenior(ctx context.Context, seniorID int) ([]models.AvailabilitySchedule, error)

	// GuardianRequests returns pending requests for the senior, earliest
	// requestedAt first (first-come priority for matching).
	GuardianRequests(ctx context.Context, seniorID int) ([]models.AvailabilityRequest, error)

	// GuardianRequest returns one guardian's pending request for a senior.
	GuardianRequest(ctx context.Context, seniorID, guardianID int) (*models.AvailabilityRequest, error)

	// SeniorsWithRequests lists senior ids that currently have at least one
	// pending request, for the background matching pass.
	SeniorsWithRequests(ctx context.Context) ([]int, error)

	// MarkMatched removes a matched guardian request from the pool. A failed
	// match never calls it, so the request stays pending for a later pass.
	MarkMatched(ctx context.Context, seniorID, guardianID int) error

	// ConsumeSlot removes one matched slot from an employee's schedule.
	ConsumeSlot(ctx context.Context, employeeID int, slot time.Time) error

	// CancelGuardianRequest drops a pending request on guardian action.
	CancelGuardianRequest(ctx context.Context, seniorID, guardianID int) error
}

// validateRequest applies the submission rules shared by both backends.
func validateRequest(req models.AvailabilityRequest, now time.Time) error {
	if len(req.Slots) == 0 {
		return ErrEmptySlots
	}
	for _, slot := range req.Slots {
		if slot.Before(now) {
			return ErrPastSlot
		}
	}
	return nil
}

func validateSchedule(sched models.AvailabilitySchedule) error {
	if len(sched.Slots) == 0 {
		return ErrEmptySlots
	}
	if !sched.ExpiresAt.After(sched.CreatedAt) {
		return ErrExpiryNotAfter
	}
	return nil
}
