package matching

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carelink/backend/internal/availability"
	"github.com/carelink/backend/internal/consultations"
	"github.com/carelink/backend/internal/models"
)

var testNow = time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)

func slot(day, hour int) time.Time {
	return time.Date(2025, 6, day, hour, 0, 0, 0, time.UTC)
}

// fakeBooker accepts every match unless the slot is listed as taken.
type fakeBooker struct {
	created []models.MatchedMeeting
	taken   map[string]bool
}

func newFakeBooker() *fakeBooker {
	return &fakeBooker{taken: make(map[string]bool)}
}

func bookKey(employeeID int, t time.Time) string {
	return fmt.Sprintf("%d/%s", employeeID, t.Format("20060102150405"))
}

func (b *fakeBooker) markTaken(employeeID int, t time.Time) {
	b.taken[bookKey(employeeID, t)] = true
}

func (b *fakeBooker) CreateFromMatch(_ context.Context, match models.MatchedMeeting) (*models.Consultation, error) {
	if b.taken[bookKey(match.EmployeeID, match.MeetingTime)] {
		return nil, consultations.ErrConflict
	}
	b.created = append(b.created, match)
	return &models.Consultation{
		ID:          len(b.created),
		EmployeeID:  match.EmployeeID,
		GuardianID:  match.GuardianID,
		SeniorID:    match.SeniorID,
		MeetingTime: match.MeetingTime,
		Status:      models.StatusPending,
	}, nil
}

func newTestMatcher(store availability.Store, booker Booker) *Matcher {
	return NewMatcher(store, booker).WithClock(func() time.Time { return testNow })
}

func submitRequest(t *testing.T, store availability.Store, guardianID, seniorID int, requestedAt time.Time, slots ...time.Time) {
	t.Helper()
	err := store.SubmitGuardianRequest(context.Background(), models.AvailabilityRequest{
		UserID:      guardianID,
		SeniorID:    seniorID,
		Slots:       slots,
		RequestedAt: requestedAt,
		Status:      models.StatusPending,
	})
	require.NoError(t, err)
}

func submitSchedule(t *testing.T, store availability.Store, employeeID int, seniors []int, expiresAt time.Time, slots ...time.Time) {
	t.Helper()
	err := store.SubmitEmployeeSchedule(context.Background(), models.AvailabilitySchedule{
		EmployeeID: employeeID,
		SeniorIDs:  seniors,
		Slots:      slots,
		CreatedAt:  testNow,
		ExpiresAt:  expiresAt,
	})
	require.NoError(t, err)
}

func TestEarliestCommonSlot(t *testing.T) {
	store := availability.NewMemoryStore().WithClock(func() time.Time { return testNow })
	booker := newFakeBooker()
	matcher := newTestMatcher(store, booker)
	ctx := context.Background()

	// Guardian can do 09:00 and 10:00; employee offers 10:00 and 11:00.
	// The only common slot is 10:00.
	submitRequest(t, store, 200, 300, testNow, slot(5, 9), slot(5, 10))
	submitSchedule(t, store, 100, []int{300}, testNow.Add(7*24*time.Hour), slot(5, 10), slot(5, 11))

	matched, err := matcher.MatchSenior(ctx, 300, time.Time{})
	require.NoError(t, err)
	require.Len(t, matched, 1)

	assert.Equal(t, 100, matched[0].EmployeeID)
	assert.Equal(t, 200, matched[0].GuardianID)
	assert.True(t, matched[0].MeetingTime.Equal(slot(5, 10)))

	// The request leaves the pool and the slot leaves the schedule.
	_, err = store.GuardianRequest(ctx, 300, 200)
	assert.ErrorIs(t, err, availability.ErrNotFound)

	sched, err := store.EmployeeSchedule(ctx, 100)
	require.NoError(t, err)
	require.Len(t, sched.Slots, 1)
	assert.True(t, sched.Slots[0].Equal(slot(5, 11)))
}

func TestNoIntersectionStaysPending(t *testing.T) {
	store := availability.NewMemoryStore().WithClock(func() time.Time { return testNow })
	booker := newFakeBooker()
	matcher := newTestMatcher(store, booker)
	ctx := context.Background()

	submitRequest(t, store, 200, 300, testNow, slot(5, 9))
	submitSchedule(t, store, 100, []int{300}, testNow.Add(7*24*time.Hour), slot(5, 14))

	matched, err := matcher.MatchSenior(ctx, 300, time.Time{})
	require.NoError(t, err)
	assert.Empty(t, matched)

	got, err := store.GuardianRequest(ctx, 300, 200)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, got.Status)
}

func TestExpiredScheduleNeverMatches(t *testing.T) {
	store := availability.NewMemoryStore().WithClock(func() time.Time { return testNow })
	booker := newFakeBooker()
	matcher := newTestMatcher(store, booker)
	ctx := context.Background()

	submitRequest(t, store, 200, 300, testNow, slot(5, 10))
	submitSchedule(t, store, 100, []int{300}, testNow.Add(time.Hour), slot(5, 10))

	// Schedule expires before the pass runs.
	store.WithClock(func() time.Time { return testNow.Add(2 * time.Hour) })
	matcher.WithClock(func() time.Time { return testNow.Add(2 * time.Hour) })

	matched, err := matcher.MatchSenior(ctx, 300, time.Time{})
	require.NoError(t, err)
	assert.Empty(t, matched)

	// The guardian request survives for a future pass.
	got, err := store.GuardianRequest(ctx, 300, 200)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, got.Status)
}

func TestFirstComeWinsContestedSlot(t *testing.T) {
	store := availability.NewMemoryStore().WithClock(func() time.Time { return testNow })
	booker := newFakeBooker()
	matcher := newTestMatcher(store, booker)
	ctx := context.Background()

	// Both guardians want the employee's only slot; the earlier request wins.
	submitRequest(t, store, 201, 300, testNow.Add(5*time.Minute), slot(5, 10))
	submitRequest(t, store, 200, 300, testNow.Add(time.Minute), slot(5, 10))
	submitSchedule(t, store, 100, []int{300}, testNow.Add(7*24*time.Hour), slot(5, 10))

	matched, err := matcher.MatchSenior(ctx, 300, time.Time{})
	require.NoError(t, err)
	require.Len(t, matched, 1)
	assert.Equal(t, 200, matched[0].GuardianID)

	// The loser stays pending.
	got, err := store.GuardianRequest(ctx, 300, 201)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, got.Status)
}

func TestPastSlotsSkipped(t *testing.T) {
	store := availability.NewMemoryStore().WithClock(func() time.Time { return testNow })
	booker := newFakeBooker()
	matcher := newTestMatcher(store, booker)
	ctx := context.Background()

	submitRequest(t, store, 200, 300, testNow, slot(2, 10), slot(5, 10))
	submitSchedule(t, store, 100, []int{300}, testNow.Add(7*24*time.Hour), slot(2, 10), slot(5, 10))

	// Advance past the first common slot; only the later one is eligible.
	later := time.Date(2025, 6, 3, 0, 0, 0, 0, time.UTC)
	store.WithClock(func() time.Time { return later })
	matcher.WithClock(func() time.Time { return later })

	matched, err := matcher.MatchSenior(ctx, 300, time.Time{})
	require.NoError(t, err)
	require.Len(t, matched, 1)
	assert.True(t, matched[0].MeetingTime.Equal(slot(5, 10)))
}

func TestTargetDateRestrictsCandidates(t *testing.T) {
	store := availability.NewMemoryStore().WithClock(func() time.Time { return testNow })
	booker := newFakeBooker()
	matcher := newTestMatcher(store, booker)
	ctx := context.Background()

	submitRequest(t, store, 200, 300, testNow, slot(4, 10), slot(5, 10))
	submitSchedule(t, store, 100, []int{300}, testNow.Add(7*24*time.Hour), slot(4, 10), slot(5, 10))

	matched, err := matcher.MatchSenior(ctx, 300, time.Date(2025, 6, 5, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, matched, 1)
	assert.True(t, matched[0].MeetingTime.Equal(slot(5, 10)))
}

func TestEarliestSlotTieBreaksByEmployee(t *testing.T) {
	store := availability.NewMemoryStore().WithClock(func() time.Time { return testNow })
	booker := newFakeBooker()
	matcher := newTestMatcher(store, booker)
	ctx := context.Background()

	submitRequest(t, store, 200, 300, testNow, slot(5, 10))
	submitSchedule(t, store, 102, []int{300}, testNow.Add(7*24*time.Hour), slot(5, 10))
	submitSchedule(t, store, 101, []int{300}, testNow.Add(7*24*time.Hour), slot(5, 10))

	matched, err := matcher.MatchSenior(ctx, 300, time.Time{})
	require.NoError(t, err)
	require.Len(t, matched, 1)
	assert.Equal(t, 101, matched[0].EmployeeID)
}

func TestNoDoubleBookingWithinPass(t *testing.T) {
	store := availability.NewMemoryStore().WithClock(func() time.Time { return testNow })
	booker := newFakeBooker()
	matcher := newTestMatcher(store, booker)
	ctx := context.Background()

	// Two guardians, one employee slot plus a later one. The second guardian
	// must not land on the slot the first just took.
	submitRequest(t, store, 200, 300, testNow.Add(time.Minute), slot(5, 10), slot(5, 11))
	submitRequest(t, store, 201, 300, testNow.Add(2*time.Minute), slot(5, 10), slot(5, 11))
	submitSchedule(t, store, 100, []int{300}, testNow.Add(7*24*time.Hour), slot(5, 10), slot(5, 11))

	matched, err := matcher.MatchSenior(ctx, 300, time.Time{})
	require.NoError(t, err)
	require.Len(t, matched, 2)

	assert.True(t, matched[0].MeetingTime.Equal(slot(5, 10)))
	assert.True(t, matched[1].MeetingTime.Equal(slot(5, 11)))
	assert.NotEqual(t, matched[0].GuardianID, matched[1].GuardianID)
}

func TestConflictKeepsRequestInPool(t *testing.T) {
	store := availability.NewMemoryStore().WithClock(func() time.Time { return testNow })
	booker := newFakeBooker()
	matcher := newTestMatcher(store, booker)
	ctx := context.Background()

	submitRequest(t, store, 200, 300, testNow, slot(5, 10))
	submitSchedule(t, store, 100, []int{300}, testNow.Add(7*24*time.Hour), slot(5, 10))

	// Another pass already booked this employee slot.
	booker.markTaken(100, slot(5, 10))

	matched, err := matcher.MatchSenior(ctx, 300, time.Time{})
	require.NoError(t, err)
	assert.Empty(t, matched)

	got, err := store.GuardianRequest(ctx, 300, 200)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, got.Status)
}

func TestMatchAllCoversEverySenior(t *testing.T) {
	store := availability.NewMemoryStore().WithClock(func() time.Time { return testNow })
	booker := newFakeBooker()
	matcher := newTestMatcher(store, booker)
	ctx := context.Background()

	submitRequest(t, store, 200, 300, testNow, slot(5, 10))
	submitRequest(t, store, 201, 301, testNow, slot(5, 11))
	submitSchedule(t, store, 100, []int{300, 301}, testNow.Add(7*24*time.Hour), slot(5, 10), slot(5, 11))

	matched, err := matcher.MatchAll(ctx, time.Time{})
	require.NoError(t, err)
	assert.Len(t, matched, 2)
}
