package recording

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/carelink/backend/internal/admission"
	"github.com/carelink/backend/internal/consultations"
	"github.com/carelink/backend/internal/database"
	"github.com/carelink/backend/internal/session"
	"github.com/carelink/backend/pkg/timefmt"
	"github.com/patrickmn/go-cache"
	"github.com/rs/zerolog"
)

var (
	ErrNoActiveSession     = errors.New("no active session for room")
	ErrRecordingInProgress = errors.New("recording already in progress for room")
)

// retainFor keeps finished recording metadata queryable for a day.
const retainFor = 24 * time.Hour

// Presence answers whether anyone is connected to a session room.
type Presence interface {
	RoomActive(room string) bool
}

// ObjectStore is the slice of object storage the coordinator needs once an
// egress has finished.
type ObjectStore interface {
	Exists(ctx context.Context, object string) (bool, error)
	PresignedURL(ctx context.Context, object string, expiry time.Duration) (string, error)
}

// SummaryPublisher hands a finished recording to the AI pipeline.
type SummaryPublisher interface {
	PublishVideoSummary(ctx context.Context, meetingID int, recordingURL string) error
}

// ConsultationUpdater is the consultation side of recording completion.
type ConsultationUpdater interface {
	SetRecordingURL(id int, url string) error
	MarkConducted(ctx context.Context, id int) error
}

// DBUpdater wires ConsultationUpdater onto the real persistence layer.
type DBUpdater struct {
	DB  *database.Database
	Svc *consultations.Service
}

func (u DBUpdater) SetRecordingURL(id int, url string) error {
	return u.DB.UpdateConsultationRecordingURL(id, url)
}

func (u DBUpdater) MarkConducted(ctx context.Context, id int) error {
	return u.Svc.MarkConducted(ctx, id)
}

// RecordingInfo is what clients see about the recording of a room.
// StartedAt is epoch milliseconds.
type RecordingInfo struct {
	Name      string `json:"name"`
	StartedAt int64  `json:"startedAt"`
}

// EgressEndedEvent is the provider webhook payload the coordinator consumes.
type EgressEndedEvent struct {
	EgressID string
	RoomName string
	FileName string
	Status   string
}

// Coordinator enforces one active recording per room and drives the
// completion pipeline when the provider reports an egress has ended.
type Coordinator struct {
	provider  session.Provider
	presence  Presence
	store     ObjectStore
	publisher SummaryPublisher
	updater   ConsultationUpdater

	active *cache.Cache // room -> egress id
	recent *cache.Cache // room -> RecordingInfo

	now func() time.Time
}

func NewCoordinator(provider session.Provider, presence Presence, store ObjectStore, publisher SummaryPublisher, updater ConsultationUpdater) *Coordinator {
	return &Coordinator{
		provider:  provider,
		presence:  presence,
		store:     store,
		publisher: publisher,
		updater:   updater,
		active:    cache.New(cache.NoExpiration, 10*time.Minute),
		recent:    cache.New(retainFor, time.Hour),
		now:       time.Now,
	}
}

// WithClock overrides the time source. Test hook.
func (c *Coordinator) WithClock(now func() time.Time) *Coordinator {
	c.now = now
	return c
}

// StartRecording begins an audio egress for the room. The room must have an
// admitted participant connected, and at most one recording runs per room.
// The room slot is reserved before the provider call so two concurrent
// starts cannot both go through.
func (c *Coordinator) StartRecording(ctx context.Context, room string) (*RecordingInfo, error) {
	if !c.presence.RoomActive(room) {
		return nil, ErrNoActiveSession
	}

	if err := c.active.Add(room, "", cache.NoExpiration); err != nil {
		return nil, ErrRecordingInProgress
	}

	started := c.now().UTC()
	filename := fmt.Sprintf("%s-%s.ogg", room, timefmt.Format(started))

	egress, err := c.provider.StartRoomRecording(ctx, room, filename)
	if err != nil {
		c.active.Delete(room)
		return nil, err
	}
	c.active.Set(room, egress.EgressID, cache.NoExpiration)

	info := RecordingInfo{Name: filename, StartedAt: started.UnixMilli()}
	c.recent.Set(room, info, cache.DefaultExpiration)

	zerolog.Ctx(ctx).Info().
		Str("room", room).
		Str("egress_id", egress.EgressID).
		Str("file", filename).
		Msg("recording started")
	return &info, nil
}

// StopRecording stops the room's egress. Stopping a room with no active
// recording is a no-op, so clients can always send a stop on teardown.
func (c *Coordinator) StopRecording(ctx context.Context, room string) error {
	v, ok := c.active.Get(room)
	if !ok {
		return nil
	}
	egressID, _ := v.(string)
	if egressID == "" {
		return nil
	}

	if _, err := c.provider.StopRecording(ctx, egressID); err != nil {
		return err
	}
	c.active.Delete(room)

	zerolog.Ctx(ctx).Info().
		Str("room", room).
		Str("egress_id", egressID).
		Msg("recording stopped")
	return nil
}

// ActiveEgress returns the running egress id for a room, if any.
func (c *Coordinator) ActiveEgress(room string) (string, bool) {
	v, ok := c.active.Get(room)
	if !ok {
		return "", false
	}
	id, _ := v.(string)
	return id, id != ""
}

// LatestRecording returns the most recent recording metadata for a room.
func (c *Coordinator) LatestRecording(room string) (*RecordingInfo, bool) {
	v, ok := c.recent.Get(room)
	if !ok {
		return nil, false
	}
	info, ok := v.(RecordingInfo)
	if !ok {
		return nil, false
	}
	return &info, true
}

// HandleEgressEnded completes the recording pipeline: confirm the object
// landed in storage, attach its URL to the consultation, hand it to the AI
// pipeline and mark the consultation conducted.
func (c *Coordinator) HandleEgressEnded(ctx context.Context, event EgressEndedEvent) error {
	c.active.Delete(event.RoomName)

	meetingID, err := admission.MeetingIDFromRoom(event.RoomName)
	if err != nil {
		return err
	}

	object := event.FileName
	if object == "" {
		if info, ok := c.LatestRecording(event.RoomName); ok {
			object = info.Name
		}
	}
	if object == "" {
		return fmt.Errorf("egress %s ended without a file name", event.EgressID)
	}

	exists, err := c.store.Exists(ctx, object)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("recording object %s not found in storage", object)
	}

	url, err := c.store.PresignedURL(ctx, object, 7*24*time.Hour)
	if err != nil {
		return err
	}

	if err := c.updater.SetRecordingURL(meetingID, url); err != nil {
		return err
	}
	if err := c.publisher.PublishVideoSummary(ctx, meetingID, url); err != nil {
		// The recording itself is safe; only the summary request is lost.
		zerolog.Ctx(ctx).Error().Err(err).
			Int("consultation_id", meetingID).
			Msg("failed to publish video summary request")
	}

	if err := c.updater.MarkConducted(ctx, meetingID); err != nil {
		if errors.Is(err, consultations.ErrCanceled) {
			zerolog.Ctx(ctx).Warn().
				Int("consultation_id", meetingID).
				Msg("session ended for a canceled consultation")
			return nil
		}
		return err
	}

	zerolog.Ctx(ctx).Info().
		Int("consultation_id", meetingID).
		Str("object", object).
		Msg("recording pipeline completed")
	return nil
}
