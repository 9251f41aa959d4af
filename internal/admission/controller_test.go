package admission

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carelink/backend/internal/models"
	"github.com/carelink/backend/internal/session"
)

var testNow = time.Date(2025, 6, 5, 10, 0, 0, 0, time.UTC)

func testMeeting() *models.Consultation {
	return &models.Consultation{
		ID:          42,
		EmployeeID:  100,
		GuardianID:  200,
		SeniorID:    300,
		MeetingTime: testNow,
		Status:      models.StatusPending,
		StartedAt:   testNow.Add(-20 * time.Minute),
		EndedAt:     testNow.Add(40 * time.Minute),
	}
}

// fakeCodes is a map-backed stand-in for the Redis code keys. missOnce makes
// the next Get of a key report absence, which is how another instance's
// write landing between lookup and claim is simulated.
type fakeCodes struct {
	mu       sync.Mutex
	values   map[string]string
	missOnce map[string]bool
}

func newFakeCodes() *fakeCodes {
	return &fakeCodes{values: make(map[string]string), missOnce: make(map[string]bool)}
}

func (f *fakeCodes) Get(_ context.Context, key string) *redis.StringCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.missOnce[key] {
		delete(f.missOnce, key)
		return redis.NewStringResult("", redis.Nil)
	}
	v, ok := f.values[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (f *fakeCodes) Set(_ context.Context, key string, value interface{}, _ time.Duration) *redis.StatusCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.values[key] = asString(value)
	return redis.NewStatusResult("OK", nil)
}

func (f *fakeCodes) SetNX(_ context.Context, key string, value interface{}, _ time.Duration) *redis.BoolCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.values[key]; ok {
		return redis.NewBoolResult(false, nil)
	}
	f.values[key] = asString(value)
	return redis.NewBoolResult(true, nil)
}

func (f *fakeCodes) Del(_ context.Context, keys ...string) *redis.IntCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, key := range keys {
		if _, ok := f.values[key]; ok {
			delete(f.values, key)
			n++
		}
	}
	return redis.NewIntResult(n, nil)
}

func asString(v interface{}) string {
	switch s := v.(type) {
	case string:
		return s
	case []byte:
		return string(s)
	}
	return fmt.Sprint(v)
}

type fakeRecords struct {
	mu       sync.Mutex
	meetings map[int]*models.Consultation
	seniors  map[int]*models.Senior
}

func newFakeRecords(meetings ...*models.Consultation) *fakeRecords {
	f := &fakeRecords{
		meetings: make(map[int]*models.Consultation),
		seniors:  map[int]*models.Senior{300: {ID: 300, Name: "Kim Yongja"}},
	}
	for _, m := range meetings {
		f.meetings[m.ID] = m
	}
	return f
}

func (f *fakeRecords) GetConsultation(id int) (*models.Consultation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.meetings[id]
	if !ok {
		return nil, errors.New("record not found")
	}
	cp := *m
	return &cp, nil
}

func (f *fakeRecords) GetSenior(id int) (*models.Senior, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.seniors[id]
	if !ok {
		return nil, errors.New("record not found")
	}
	cp := *s
	return &cp, nil
}

func (f *fakeRecords) setStatus(id int, status models.ConsultationStatus) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.meetings[id].Status = status
}

type fakeLocker struct {
	mu sync.Mutex
}

func (l *fakeLocker) WithLock(_ int, fn func() error) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return fn()
}

type fakeProvider struct{}

func (fakeProvider) AccessToken(room, identity string) (string, error) {
	return "token:" + room + ":" + identity, nil
}

func (fakeProvider) StartRoomRecording(context.Context, string, string) (*session.EgressInfo, error) {
	return nil, errors.New("not used")
}

func (fakeProvider) StopRecording(context.Context, string) (*session.EgressInfo, error) {
	return nil, errors.New("not used")
}

func newTestController(rec *fakeRecords, codes *fakeCodes) *Controller {
	return NewController(codes, rec, &fakeLocker{}, fakeProvider{}).
		WithClock(func() time.Time { return testNow })
}

func TestRoomNameRoundTrip(t *testing.T) {
	room := RoomName(42)
	assert.Equal(t, "consult-42", room)

	id, err := MeetingIDFromRoom(room)
	require.NoError(t, err)
	assert.Equal(t, 42, id)

	_, err = MeetingIDFromRoom("lobby")
	assert.Error(t, err)
}

func TestIssueMeetingCodeIdempotent(t *testing.T) {
	ctx := context.Background()
	ctrl := newTestController(newFakeRecords(testMeeting()), newFakeCodes())

	code, err := ctrl.IssueMeetingCode(ctx, 42)
	require.NoError(t, err)
	assert.Len(t, code, 8)
	assert.Equal(t, strings.ToUpper(code), code)

	again, err := ctrl.IssueMeetingCode(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, code, again)

	info, err := ctrl.ResolveCode(ctx, code)
	require.NoError(t, err)
	assert.Equal(t, 42, info.MeetingID)
	assert.Equal(t, 100, info.EmployeeID)
	assert.Equal(t, 200, info.GuardianID)
	assert.Equal(t, "Kim Yongja", info.SeniorName)
}

func TestIssueMeetingCodeConcurrentCallsShareCode(t *testing.T) {
	ctx := context.Background()
	ctrl := newTestController(newFakeRecords(testMeeting()), newFakeCodes())

	var wg sync.WaitGroup
	codes := make([]string, 4)
	errs := make([]error, 4)
	for i := range codes {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			codes[i], errs[i] = ctrl.IssueMeetingCode(ctx, 42)
		}(i)
	}
	wg.Wait()

	for i := range codes {
		require.NoError(t, errs[i])
		assert.Equal(t, codes[0], codes[i])
	}
}

func TestIssueMeetingCodeAdoptsRacingWinner(t *testing.T) {
	ctx := context.Background()
	codes := newFakeCodes()

	// Another instance already claimed the meeting key, but our lookup races
	// ahead of that write and misses.
	codes.values[meetingKeyPrefix+"42"] = "WINNER42"
	codes.values[codeKeyPrefix+"WINNER42"] = `{"meetingId":42,"employeeId":100,"guardianId":200,"seniorId":300,"seniorName":"Kim Yongja"}`
	codes.missOnce[meetingKeyPrefix+"42"] = true

	ctrl := newTestController(newFakeRecords(testMeeting()), codes)

	code, err := ctrl.IssueMeetingCode(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, "WINNER42", code)

	// The losing code was discarded; exactly one code resolves.
	assert.Len(t, codes.values, 2)
	_, err = ctrl.ResolveCode(ctx, "WINNER42")
	assert.NoError(t, err)
}

func TestIssueMeetingCodeRejectsClosedMeetings(t *testing.T) {
	ctx := context.Background()

	canceled := testMeeting()
	canceled.Status = models.StatusCanceled
	ctrl := newTestController(newFakeRecords(canceled), newFakeCodes())
	_, err := ctrl.IssueMeetingCode(ctx, 42)
	assert.ErrorIs(t, err, ErrMeetingNotFound)

	past := testMeeting()
	past.StartedAt = testNow.Add(-2 * time.Hour)
	past.EndedAt = testNow.Add(-time.Hour)
	ctrl = newTestController(newFakeRecords(past), newFakeCodes())
	_, err = ctrl.IssueMeetingCode(ctx, 42)
	assert.True(t, IsWindowError(err))

	ctrl = newTestController(newFakeRecords(), newFakeCodes())
	_, err = ctrl.IssueMeetingCode(ctx, 7)
	assert.ErrorIs(t, err, ErrMeetingNotFound)
}

func TestResolveCodeHidesCanceledMeeting(t *testing.T) {
	ctx := context.Background()
	records := newFakeRecords(testMeeting())
	ctrl := newTestController(records, newFakeCodes())

	code, err := ctrl.IssueMeetingCode(ctx, 42)
	require.NoError(t, err)

	records.setStatus(42, models.StatusCanceled)
	_, err = ctrl.ResolveCode(ctx, code)
	assert.ErrorIs(t, err, ErrCodeNotFound)

	_, err = ctrl.ResolveCode(ctx, "NOPE1234")
	assert.ErrorIs(t, err, ErrCodeNotFound)
}

func TestJoinSessionHappyPathAndRejoin(t *testing.T) {
	ctx := context.Background()
	ctrl := newTestController(newFakeRecords(testMeeting()), newFakeCodes())

	code, err := ctrl.IssueMeetingCode(ctx, 42)
	require.NoError(t, err)

	res, err := ctrl.JoinSession(ctx, JoinRequest{MeetingCode: code, UserID: 100, UserType: UserTypeEmployee})
	require.NoError(t, err)
	assert.Equal(t, "consult-42", res.Room)
	assert.Equal(t, "employee-100", res.Identity)
	assert.Equal(t, "token:consult-42:employee-100", res.Token)
	assert.Equal(t, 42, res.Info.MeetingID)

	// Rejoining signs a fresh token for the same room.
	again, err := ctrl.JoinSession(ctx, JoinRequest{MeetingCode: code, UserID: 200, UserType: UserTypeGuardian})
	require.NoError(t, err)
	assert.Equal(t, res.Room, again.Room)
}

func TestJoinSessionRejectsWrongCaller(t *testing.T) {
	ctx := context.Background()
	ctrl := newTestController(newFakeRecords(testMeeting()), newFakeCodes())

	code, err := ctrl.IssueMeetingCode(ctx, 42)
	require.NoError(t, err)

	_, err = ctrl.JoinSession(ctx, JoinRequest{MeetingCode: code, UserID: 999, UserType: UserTypeEmployee})
	assert.ErrorIs(t, err, ErrIdentityMismatch)
}

func TestJoinSessionCanceledAfterIssue(t *testing.T) {
	ctx := context.Background()
	records := newFakeRecords(testMeeting())
	ctrl := newTestController(records, newFakeCodes())

	code, err := ctrl.IssueMeetingCode(ctx, 42)
	require.NoError(t, err)

	records.setStatus(42, models.StatusCanceled)
	_, err = ctrl.JoinSession(ctx, JoinRequest{MeetingCode: code, UserID: 100, UserType: UserTypeEmployee})
	assert.ErrorIs(t, err, ErrCodeNotFound)
}

func TestValidateJoinInsideWindow(t *testing.T) {
	meeting := testMeeting()

	err := validateJoin(meeting, JoinRequest{UserID: 100, UserType: UserTypeEmployee}, testNow)
	assert.NoError(t, err)

	err = validateJoin(meeting, JoinRequest{UserID: 200, UserType: UserTypeGuardian}, testNow)
	assert.NoError(t, err)

	// Window edges are inclusive.
	err = validateJoin(meeting, JoinRequest{UserID: 100, UserType: UserTypeEmployee}, meeting.StartedAt)
	assert.NoError(t, err)
	err = validateJoin(meeting, JoinRequest{UserID: 100, UserType: UserTypeEmployee}, meeting.EndedAt)
	assert.NoError(t, err)
}

func TestValidateJoinTooEarly(t *testing.T) {
	meeting := testMeeting()

	err := validateJoin(meeting, JoinRequest{UserID: 100, UserType: UserTypeEmployee}, meeting.StartedAt.Add(-time.Second))
	require.True(t, IsWindowError(err))

	var we *WindowError
	require.ErrorAs(t, err, &we)
	assert.True(t, we.TooEarly)
	assert.True(t, we.OpensAt.Equal(meeting.StartedAt))
}

func TestValidateJoinTooLate(t *testing.T) {
	meeting := testMeeting()

	err := validateJoin(meeting, JoinRequest{UserID: 100, UserType: UserTypeEmployee}, meeting.EndedAt.Add(time.Second))
	require.True(t, IsWindowError(err))

	var we *WindowError
	require.ErrorAs(t, err, &we)
	assert.False(t, we.TooEarly)
	assert.True(t, we.ClosedAt.Equal(meeting.EndedAt))
}

func TestValidateJoinWindowBeatsIdentity(t *testing.T) {
	meeting := testMeeting()

	// Outside the window the verdict is the window error even for a caller
	// who would also fail the identity check.
	err := validateJoin(meeting, JoinRequest{UserID: 999, UserType: UserTypeEmployee}, meeting.EndedAt.Add(time.Hour))
	assert.True(t, IsWindowError(err))
}

func TestValidateJoinIdentity(t *testing.T) {
	meeting := testMeeting()

	err := validateJoin(meeting, JoinRequest{UserID: 200, UserType: UserTypeEmployee}, testNow)
	assert.ErrorIs(t, err, ErrIdentityMismatch)

	err = validateJoin(meeting, JoinRequest{UserID: 100, UserType: UserTypeGuardian}, testNow)
	assert.ErrorIs(t, err, ErrIdentityMismatch)

	err = validateJoin(meeting, JoinRequest{UserID: 100, UserType: "doctor"}, testNow)
	assert.ErrorIs(t, err, ErrBadUserType)
}
