package recording

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carelink/backend/internal/session"
)

var testNow = time.Date(2025, 6, 5, 10, 0, 0, 0, time.UTC)

type fakePresence struct{ active map[string]bool }

func (p fakePresence) RoomActive(room string) bool { return p.active[room] }

type fakeProvider struct {
	started []string
	stopped []string
	fail    bool
}

func (p *fakeProvider) AccessToken(room, identity string) (string, error) { return "token", nil }

func (p *fakeProvider) StartRoomRecording(_ context.Context, room, filepath string) (*session.EgressInfo, error) {
	if p.fail {
		return nil, &session.ProviderError{Op: "StartRoomCompositeEgress", Err: errors.New("boom")}
	}
	p.started = append(p.started, room)
	return &session.EgressInfo{EgressID: "EG-" + room, RoomName: room, FileName: filepath}, nil
}

func (p *fakeProvider) StopRecording(_ context.Context, egressID string) (*session.EgressInfo, error) {
	p.stopped = append(p.stopped, egressID)
	return &session.EgressInfo{EgressID: egressID, Status: "EGRESS_COMPLETE"}, nil
}

type fakeStore struct {
	objects map[string]bool
}

func (s fakeStore) Exists(_ context.Context, object string) (bool, error) {
	return s.objects[object], nil
}

func (s fakeStore) PresignedURL(_ context.Context, object string, _ time.Duration) (string, error) {
	return "https://storage.local/" + object, nil
}

type fakePublisher struct {
	published []int
}

func (p *fakePublisher) PublishVideoSummary(_ context.Context, meetingID int, _ string) error {
	p.published = append(p.published, meetingID)
	return nil
}

type fakeUpdater struct {
	urls      map[int]string
	conducted []int
}

func newFakeUpdater() *fakeUpdater { return &fakeUpdater{urls: make(map[int]string)} }

func (u *fakeUpdater) SetRecordingURL(id int, url string) error {
	u.urls[id] = url
	return nil
}

func (u *fakeUpdater) MarkConducted(_ context.Context, id int) error {
	u.conducted = append(u.conducted, id)
	return nil
}

func newTestCoordinator(provider *fakeProvider, active map[string]bool, objects map[string]bool, publisher *fakePublisher, updater *fakeUpdater) *Coordinator {
	return NewCoordinator(provider, fakePresence{active: active}, fakeStore{objects: objects}, publisher, updater).
		WithClock(func() time.Time { return testNow })
}

func TestStartRecordingRequiresActiveSession(t *testing.T) {
	provider := &fakeProvider{}
	coord := newTestCoordinator(provider, map[string]bool{}, nil, &fakePublisher{}, newFakeUpdater())

	_, err := coord.StartRecording(context.Background(), "consult-42")
	assert.ErrorIs(t, err, ErrNoActiveSession)
	assert.Empty(t, provider.started)
}

func TestStartRecordingOncePerRoom(t *testing.T) {
	provider := &fakeProvider{}
	coord := newTestCoordinator(provider, map[string]bool{"consult-42": true}, nil, &fakePublisher{}, newFakeUpdater())
	ctx := context.Background()

	info, err := coord.StartRecording(ctx, "consult-42")
	require.NoError(t, err)
	assert.Equal(t, "consult-42-20250605100000.ogg", info.Name)
	assert.Equal(t, testNow.UnixMilli(), info.StartedAt)

	_, err = coord.StartRecording(ctx, "consult-42")
	assert.ErrorIs(t, err, ErrRecordingInProgress)
	assert.Len(t, provider.started, 1)

	id, ok := coord.ActiveEgress("consult-42")
	assert.True(t, ok)
	assert.Equal(t, "EG-consult-42", id)
}

func TestStartRecordingProviderFailureFreesRoom(t *testing.T) {
	provider := &fakeProvider{fail: true}
	coord := newTestCoordinator(provider, map[string]bool{"consult-42": true}, nil, &fakePublisher{}, newFakeUpdater())
	ctx := context.Background()

	_, err := coord.StartRecording(ctx, "consult-42")
	assert.True(t, session.IsProviderError(err))

	// The failed attempt must not leave the room reserved.
	provider.fail = false
	_, err = coord.StartRecording(ctx, "consult-42")
	assert.NoError(t, err)
}

func TestStopRecordingIsIdempotent(t *testing.T) {
	provider := &fakeProvider{}
	coord := newTestCoordinator(provider, map[string]bool{"consult-42": true}, nil, &fakePublisher{}, newFakeUpdater())
	ctx := context.Background()

	// Nothing running: stop is a no-op.
	require.NoError(t, coord.StopRecording(ctx, "consult-42"))
	assert.Empty(t, provider.stopped)

	_, err := coord.StartRecording(ctx, "consult-42")
	require.NoError(t, err)

	require.NoError(t, coord.StopRecording(ctx, "consult-42"))
	require.NoError(t, coord.StopRecording(ctx, "consult-42"))
	assert.Equal(t, []string{"EG-consult-42"}, provider.stopped)

	_, ok := coord.ActiveEgress("consult-42")
	assert.False(t, ok)
}

func TestHandleEgressEnded(t *testing.T) {
	provider := &fakeProvider{}
	publisher := &fakePublisher{}
	updater := newFakeUpdater()
	objects := map[string]bool{"consult-42-20250605100000.ogg": true}
	coord := newTestCoordinator(provider, map[string]bool{"consult-42": true}, objects, publisher, updater)
	ctx := context.Background()

	_, err := coord.StartRecording(ctx, "consult-42")
	require.NoError(t, err)

	err = coord.HandleEgressEnded(ctx, EgressEndedEvent{
		EgressID: "EG-consult-42",
		RoomName: "consult-42",
		FileName: "consult-42-20250605100000.ogg",
		Status:   "EGRESS_COMPLETE",
	})
	require.NoError(t, err)

	assert.Equal(t, "https://storage.local/consult-42-20250605100000.ogg", updater.urls[42])
	assert.Equal(t, []int{42}, publisher.published)
	assert.Equal(t, []int{42}, updater.conducted)

	_, ok := coord.ActiveEgress("consult-42")
	assert.False(t, ok)
}

func TestHandleEgressEndedFallsBackToLatestRecording(t *testing.T) {
	provider := &fakeProvider{}
	publisher := &fakePublisher{}
	updater := newFakeUpdater()
	objects := map[string]bool{"consult-42-20250605100000.ogg": true}
	coord := newTestCoordinator(provider, map[string]bool{"consult-42": true}, objects, publisher, updater)
	ctx := context.Background()

	_, err := coord.StartRecording(ctx, "consult-42")
	require.NoError(t, err)

	// Event without a file name; the retained recording metadata fills it in.
	err = coord.HandleEgressEnded(ctx, EgressEndedEvent{
		EgressID: "EG-consult-42",
		RoomName: "consult-42",
	})
	require.NoError(t, err)
	assert.Equal(t, []int{42}, updater.conducted)
}

func TestHandleEgressEndedMissingObject(t *testing.T) {
	provider := &fakeProvider{}
	publisher := &fakePublisher{}
	updater := newFakeUpdater()
	coord := newTestCoordinator(provider, map[string]bool{"consult-42": true}, map[string]bool{}, publisher, updater)
	ctx := context.Background()

	err := coord.HandleEgressEnded(ctx, EgressEndedEvent{
		EgressID: "EG-consult-42",
		RoomName: "consult-42",
		FileName: "consult-42-20250605100000.ogg",
	})
	assert.Error(t, err)
	assert.Empty(t, publisher.published)
	assert.Empty(t, updater.conducted)
}

func TestHandleEgressEndedBadRoom(t *testing.T) {
	coord := newTestCoordinator(&fakeProvider{}, nil, nil, &fakePublisher{}, newFakeUpdater())

	err := coord.HandleEgressEnded(context.Background(), EgressEndedEvent{
		EgressID: "EG-1",
		RoomName: "lobby",
	})
	assert.Error(t, err)
}
