package matching

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/carelink/backend/internal/availability"
	"github.com/carelink/backend/internal/consultations"
	"github.com/carelink/backend/internal/models"
	"github.com/rs/zerolog"
)

// Booker persists a matched meeting as a consultation.
// *consultations.Service satisfies it.
type Booker interface {
	CreateFromMatch(ctx context.Context, match models.MatchedMeeting) (*models.Consultation, error)
}

// Matcher reconciles guardian requests with employee schedules into
// consultations. A pass over one senior never touches another senior's
// state, so passes are independent per senior.
type Matcher struct {
	store availability.Store
	svc   Booker
	now   func() time.Time
}

func NewMatcher(store availability.Store, svc Booker) *Matcher {
	return &Matcher{store: store, svc: svc, now: time.Now}
}

// WithClock overrides the time source. Test hook.
func (m *Matcher) WithClock(now func() time.Time) *Matcher {
	m.now = now
	return m
}

// MatchSenior runs one matching pass for a single senior. Guardian requests
// are served in requestedAt order (first come wins a contested slot); each
// request gets its earliest common slot with any unexpired schedule naming
// the senior. targetDate, when non-zero, restricts candidate slots to that
// calendar day.
//
// Finding no intersection is the normal stay-pending outcome and returns an
// empty result, not an error.
func (m *Matcher) MatchSenior(ctx context.Context, seniorID int, targetDate time.Time) ([]models.MatchedMeeting, error) {
	schedules, err := m.store.SchedulesForSenior(ctx, seniorID)
	if err != nil {
		return nil, err
	}
	if len(schedules) == 0 {
		return nil, nil
	}

	requests, err := m.store.GuardianRequests(ctx, seniorID)
	if err != nil {
		return nil, err
	}

	now := m.now()
	// Slots consumed during this pass, per employee. The store is updated as
	// well, but schedules here are already-loaded snapshots.
	taken := make(map[int]map[time.Time]bool)

	var matched []models.MatchedMeeting
	for _, req := range requests {
		pick, ok := m.pick(req, schedules, taken, now, targetDate)
		if !ok {
			continue
		}

		meeting := models.MatchedMeeting{
			EmployeeID:  pick.employeeID,
			GuardianID:  req.UserID,
			SeniorID:    seniorID,
			MeetingTime: pick.slot,
			MatchedAt:   now,
		}

		if _, err := m.svc.CreateFromMatch(ctx, meeting); err != nil {
			if errors.Is(err, consultations.ErrConflict) {
				// Slot lost to a concurrent booking. The request stays in the
				// pool unchanged for a later pass.
				zerolog.Ctx(ctx).Warn().
					Int("employee_id", pick.employeeID).
					Int("guardian_id", req.UserID).
					Time("slot", pick.slot).
					Msg("match lost slot to concurrent booking")
				m.markTaken(taken, pick.employeeID, pick.slot)
				continue
			}
			return matched, err
		}

		// Consultation is durable; now retire the request and the slot.
		if err := m.store.MarkMatched(ctx, seniorID, req.UserID); err != nil {
			zerolog.Ctx(ctx).Error().Err(err).Int("senior_id", seniorID).Msg("failed to retire matched request")
		}
		if err := m.store.ConsumeSlot(ctx, pick.employeeID, pick.slot); err != nil && !errors.Is(err, availability.ErrNotFound) {
			zerolog.Ctx(ctx).Error().Err(err).Int("employee_id", pick.employeeID).Msg("failed to consume schedule slot")
		}
		m.markTaken(taken, pick.employeeID, pick.slot)

		matched = append(matched, meeting)
	}
	return matched, nil
}

type slotPick struct {
	employeeID int
	slot       time.Time
}

// pick returns the earliest common slot between the request and any
// schedule. Candidates already taken this pass, or in the past, are skipped.
func (m *Matcher) pick(req models.AvailabilityRequest, schedules []models.AvailabilitySchedule, taken map[int]map[time.Time]bool, now, targetDate time.Time) (slotPick, bool) {
	requested := make(map[time.Time]bool, len(req.Slots))
	for _, slot := range req.Slots {
		requested[slot.UTC().Truncate(time.Minute)] = true
	}

	var candidates []slotPick
	for _, sched := range schedules {
		for _, slot := range sched.Slots {
			slot = slot.UTC().Truncate(time.Minute)
			if !requested[slot] || slot.Before(now) {
				continue
			}
			if !targetDate.IsZero() && !sameDay(slot, targetDate) {
				continue
			}
			if taken[sched.EmployeeID][slot] {
				continue
			}
			candidates = append(candidates, slotPick{employeeID: sched.EmployeeID, slot: slot})
		}
	}
	if len(candidates) == 0 {
		return slotPick{}, false
	}

	sort.Slice(candidates, func(i, j int) bool {
		if !candidates[i].slot.Equal(candidates[j].slot) {
			return candidates[i].slot.Before(candidates[j].slot)
		}
		return candidates[i].employeeID < candidates[j].employeeID
	})
	return candidates[0], true
}

func (m *Matcher) markTaken(taken map[int]map[time.Time]bool, employeeID int, slot time.Time) {
	if taken[employeeID] == nil {
		taken[employeeID] = make(map[time.Time]bool)
	}
	taken[employeeID][slot] = true
}

// MatchAll runs a pass over every senior with pending requests. The loop
// checkpoints the context between seniors; an in-flight senior is always
// finished.
func (m *Matcher) MatchAll(ctx context.Context, targetDate time.Time) ([]models.MatchedMeeting, error) {
	seniorIDs, err := m.store.SeniorsWithRequests(ctx)
	if err != nil {
		return nil, err
	}

	var all []models.MatchedMeeting
	for _, seniorID := range seniorIDs {
		if err := ctx.Err(); err != nil {
			return all, err
		}
		matched, err := m.MatchSenior(ctx, seniorID, targetDate)
		if err != nil {
			zerolog.Ctx(ctx).Error().Err(err).Int("senior_id", seniorID).Msg("matching pass failed for senior")
			continue
		}
		all = append(all, matched...)
	}
	return all, nil
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.UTC().Date()
	by, bm, bd := b.UTC().Date()
	return ay == by && am == bm && ad == bd
}
