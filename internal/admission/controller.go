package admission

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/carelink/backend/internal/models"
	"github.com/carelink/backend/internal/session"
	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	codeKeyPrefix    = "meeting:code:"
	meetingKeyPrefix = "meeting:code:meeting:"

	UserTypeEmployee = "employee"
	UserTypeGuardian = "guardian"
)

// Codes is the Redis command surface the controller uses for code storage.
// *redis.Client satisfies it.
type Codes interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// Records is the consultation lookup surface the controller needs.
// *database.Database satisfies it.
type Records interface {
	GetConsultation(id int) (*models.Consultation, error)
	GetSenior(id int) (*models.Senior, error)
}

// Locker serializes mutating operations on one consultation.
// *consultations.Service satisfies it.
type Locker interface {
	WithLock(id int, fn func() error) error
}

// MeetingCodeInfo is what a resolved code reveals to the joining client.
type MeetingCodeInfo struct {
	MeetingID  int    `json:"meetingId"`
	EmployeeID int    `json:"employeeId"`
	GuardianID int    `json:"guardianId"`
	SeniorID   int    `json:"seniorId"`
	SeniorName string `json:"seniorName"`
}

// JoinRequest identifies who is trying to enter which meeting.
type JoinRequest struct {
	MeetingCode string
	UserID      int
	UserType    string
}

// JoinResult carries everything the client needs to attach to the live
// session.
type JoinResult struct {
	Token    string
	Room     string
	Identity string
	Info     MeetingCodeInfo
}

// Controller gates entry into live sessions: it issues short-lived meeting
// codes and exchanges them for provider tokens, but only inside the
// consultation's admission window.
type Controller struct {
	rdb      Codes
	db       Records
	svc      Locker
	provider session.Provider
	now      func() time.Time
}

func NewController(rdb Codes, db Records, svc Locker, provider session.Provider) *Controller {
	return &Controller{
		rdb:      rdb,
		db:       db,
		svc:      svc,
		provider: provider,
		now:      time.Now,
	}
}

// WithClock overrides the time source. Test hook.
func (c *Controller) WithClock(now func() time.Time) *Controller {
	c.now = now
	return c
}

// RoomName derives the provider room for a consultation. One consultation,
// one room, always the same name, so reissued tokens land in the same
// session.
func RoomName(meetingID int) string {
	return fmt.Sprintf("consult-%d", meetingID)
}

// MeetingIDFromRoom inverts RoomName. Used by the recording webhook to map a
// provider room back onto its consultation.
func MeetingIDFromRoom(room string) (int, error) {
	var id int
	if _, err := fmt.Sscanf(room, "consult-%d", &id); err != nil {
		return 0, fmt.Errorf("room %q is not a consultation room", room)
	}
	return id, nil
}

// validateJoin applies the admission rules in order: window first, then
// identity. The window verdict never depends on who is asking.
func validateJoin(meeting *models.Consultation, req JoinRequest, now time.Time) error {
	if now.Before(meeting.StartedAt) {
		return &WindowError{TooEarly: true, OpensAt: meeting.StartedAt, ClosedAt: meeting.EndedAt}
	}
	if now.After(meeting.EndedAt) {
		return &WindowError{OpensAt: meeting.StartedAt, ClosedAt: meeting.EndedAt}
	}

	switch req.UserType {
	case UserTypeEmployee:
		if req.UserID != meeting.EmployeeID {
			return ErrIdentityMismatch
		}
	case UserTypeGuardian:
		if req.UserID != meeting.GuardianID {
			return ErrIdentityMismatch
		}
	default:
		return ErrBadUserType
	}
	return nil
}

// IssueMeetingCode creates (or returns the existing) code for a pending
// consultation. The code expires with the admission window, so a stale code
// can never admit anyone.
//
// The issue path runs under the consultation's lock, and the meeting key is
// claimed with SetNX so that concurrent issuers on other instances converge
// on a single code per consultation.
func (c *Controller) IssueMeetingCode(ctx context.Context, meetingID int) (string, error) {
	var code string
	err := c.svc.WithLock(meetingID, func() error {
		meeting, err := c.db.GetConsultation(meetingID)
		if err != nil {
			return ErrMeetingNotFound
		}
		switch meeting.Status {
		case models.StatusCanceled:
			return ErrMeetingNotFound
		case models.StatusConducted:
			return &WindowError{ClosedAt: meeting.EndedAt}
		}

		now := c.now()
		ttl := meeting.EndedAt.Sub(now)
		if ttl <= 0 {
			return &WindowError{ClosedAt: meeting.EndedAt}
		}

		meetingKey := fmt.Sprintf("%s%d", meetingKeyPrefix, meetingID)
		if existing, err := c.rdb.Get(ctx, meetingKey).Result(); err == nil && existing != "" {
			code = existing
			return nil
		}

		senior, err := c.db.GetSenior(meeting.SeniorID)
		if err != nil {
			return ErrMeetingNotFound
		}

		info := MeetingCodeInfo{
			MeetingID:  meeting.ID,
			EmployeeID: meeting.EmployeeID,
			GuardianID: meeting.GuardianID,
			SeniorID:   meeting.SeniorID,
			SeniorName: senior.Name,
		}
		payload, err := json.Marshal(info)
		if err != nil {
			return err
		}

		fresh := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
		if err := c.rdb.Set(ctx, codeKeyPrefix+fresh, payload, ttl).Err(); err != nil {
			return err
		}

		claimed, err := c.rdb.SetNX(ctx, meetingKey, fresh, ttl).Result()
		if err != nil {
			return err
		}
		if !claimed {
			// Another instance issued between our lookup and the claim. Adopt
			// its code and drop ours so exactly one code stays resolvable.
			c.rdb.Del(ctx, codeKeyPrefix+fresh)
			existing, err := c.rdb.Get(ctx, meetingKey).Result()
			if err != nil {
				return err
			}
			code = existing
			return nil
		}

		code = fresh
		return nil
	})
	if err != nil {
		return "", err
	}

	zerolog.Ctx(ctx).Info().
		Int("consultation_id", meetingID).
		Msg("meeting code issued")
	return code, nil
}

// ResolveCode looks a code up. Codes pointing at canceled consultations
// resolve as unknown; cancellation must not leak through a stale code.
func (c *Controller) ResolveCode(ctx context.Context, code string) (*MeetingCodeInfo, error) {
	raw, err := c.rdb.Get(ctx, codeKeyPrefix+strings.ToUpper(strings.TrimSpace(code))).Result()
	if err == redis.Nil {
		return nil, ErrCodeNotFound
	}
	if err != nil {
		return nil, err
	}

	var info MeetingCodeInfo
	if err := json.Unmarshal([]byte(raw), &info); err != nil {
		return nil, ErrCodeNotFound
	}

	meeting, err := c.db.GetConsultation(info.MeetingID)
	if err != nil || meeting.Status == models.StatusCanceled {
		return nil, ErrCodeNotFound
	}
	return &info, nil
}

// JoinSession validates the code, the window and the caller's identity, in
// that order, then signs a provider token. Joining twice just signs a fresh
// token for the same room.
//
// The whole check runs under the consultation's lock so a concurrent cancel
// either lands before the check (join fails) or after the token is signed
// (the session closes when the provider room is torn down).
func (c *Controller) JoinSession(ctx context.Context, req JoinRequest) (*JoinResult, error) {
	info, err := c.ResolveCode(ctx, req.MeetingCode)
	if err != nil {
		return nil, err
	}

	var result *JoinResult
	err = c.svc.WithLock(info.MeetingID, func() error {
		meeting, err := c.db.GetConsultation(info.MeetingID)
		if err != nil || meeting.Status == models.StatusCanceled {
			return ErrCodeNotFound
		}

		if err := validateJoin(meeting, req, c.now()); err != nil {
			return err
		}

		room := RoomName(meeting.ID)
		identity := fmt.Sprintf("%s-%d", req.UserType, req.UserID)
		token, err := c.provider.AccessToken(room, identity)
		if err != nil {
			return err
		}

		result = &JoinResult{Token: token, Room: room, Identity: identity, Info: *info}
		return nil
	})
	if err != nil {
		return nil, err
	}

	zerolog.Ctx(ctx).Info().
		Int("consultation_id", info.MeetingID).
		Int("user_id", req.UserID).
		Str("user_type", req.UserType).
		Msg("session join admitted")
	return result, nil
}
