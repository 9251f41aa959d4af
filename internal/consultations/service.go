package consultations

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/carelink/backend/internal/database"
	"github.com/carelink/backend/internal/models"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

// Repository is the persistence surface the service needs. *database.Database
// satisfies it; tests substitute an in-memory variant.
type Repository interface {
	GetUser(id int) (*models.User, error)
	GetSenior(id int) (*models.Senior, error)
	CreateConsultation(c *models.Consultation) error
	GetConsultation(id int) (*models.Consultation, error)
	UpdateConsultation(c *models.Consultation) error
	UpdateConsultationStatus(id int, status models.ConsultationStatus) error
	FindConsultationsByParticipant(userID int, role models.Role, meetingType string, start, end time.Time, offset, limit int) ([]models.Consultation, int64, error)
}

// Service owns the consultation lifecycle. Every mutation of a single record
// runs under that record's lock so racing transitions (cancel vs join, two
// matching passes) serialize deterministically.
type Service struct {
	db           Repository
	windowBefore time.Duration
	windowAfter  time.Duration
	now          func() time.Time

	mu    sync.Mutex
	locks map[int]*sync.Mutex
}

func NewService(db Repository, windowBefore, windowAfter time.Duration) *Service {
	return &Service{
		db:           db,
		windowBefore: windowBefore,
		windowAfter:  windowAfter,
		now:          time.Now,
		locks:        make(map[int]*sync.Mutex),
	}
}

// WithClock overrides the time source. Test hook.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// WithLock runs fn while holding the per-record lock. Locks are never held
// across calls; callers must not block inside fn.
func (s *Service) WithLock(id int, fn func() error) error {
	s.mu.Lock()
	l, ok := s.locks[id]
	if !ok {
		l = &sync.Mutex{}
		s.locks[id] = l
	}
	s.mu.Unlock()

	l.Lock()
	defer l.Unlock()
	return fn()
}

// CreateParams describes a staff-initiated consultation that bypasses the
// matcher.
type CreateParams struct {
	EmployeeID  int
	GuardianID  int
	SeniorID    int
	MeetingTime time.Time
	Title       string
	MeetingType string
}

// CreateFromMatch persists a consultation seeded from a matcher pick. The
// record starts PENDING; ErrConflict means the slot was lost to a concurrent
// booking and the caller must return the guardian request to the pool.
func (s *Service) CreateFromMatch(ctx context.Context, match models.MatchedMeeting) (*models.Consultation, error) {
	senior, err := s.db.GetSenior(match.SeniorID)
	if err != nil {
		return nil, mapDBErr(err)
	}
	if _, err := s.db.GetUser(match.EmployeeID); err != nil {
		return nil, mapDBErr(err)
	}
	if _, err := s.db.GetUser(match.GuardianID); err != nil {
		return nil, mapDBErr(err)
	}

	c := &models.Consultation{
		EmployeeID:    match.EmployeeID,
		GuardianID:    match.GuardianID,
		SeniorID:      match.SeniorID,
		MeetingTime:   match.MeetingTime,
		MatchedAt:     match.MatchedAt,
		Status:        models.StatusPending,
		Title:         fmt.Sprintf("Consultation for %s", senior.Name),
		MeetingType:   models.MeetingTypeEmployee,
		AlgorithmInfo: "slot intersection, earliest common slot",
		StartedAt:     match.MeetingTime.Add(-s.windowBefore),
		EndedAt:       match.MeetingTime.Add(s.windowAfter),
		CreatedAt:     s.now(),
	}

	if err := s.create(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// Create handles direct staff creation, e.g. doctor consultations that never
// pass through the matcher.
func (s *Service) Create(ctx context.Context, p CreateParams) (*models.Consultation, error) {
	if _, err := s.db.GetUser(p.EmployeeID); err != nil {
		return nil, mapDBErr(err)
	}
	if _, err := s.db.GetUser(p.GuardianID); err != nil {
		return nil, mapDBErr(err)
	}
	if _, err := s.db.GetSenior(p.SeniorID); err != nil {
		return nil, mapDBErr(err)
	}

	meetingType := p.MeetingType
	if meetingType == "" {
		meetingType = models.MeetingTypeEmployee
	}

	now := s.now()
	c := &models.Consultation{
		EmployeeID:  p.EmployeeID,
		GuardianID:  p.GuardianID,
		SeniorID:    p.SeniorID,
		MeetingTime: p.MeetingTime,
		MatchedAt:   now,
		Status:      models.StatusPending,
		Title:       p.Title,
		MeetingType: meetingType,
		StartedAt:   p.MeetingTime.Add(-s.windowBefore),
		EndedAt:     p.MeetingTime.Add(s.windowAfter),
		CreatedAt:   now,
	}

	if err := s.create(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *Service) create(ctx context.Context, c *models.Consultation) error {
	if c.StartedAt.After(c.EndedAt) {
		return ErrBadWindow
	}
	err := s.db.CreateConsultation(c)
	if errors.Is(err, database.ErrTimeSlotTaken) {
		return ErrConflict
	}
	if err != nil {
		return err
	}
	zerolog.Ctx(ctx).Info().
		Int("consultation_id", c.ID).
		Int("employee_id", c.EmployeeID).
		Int("guardian_id", c.GuardianID).
		Int("senior_id", c.SeniorID).
		Time("meeting_time", c.MeetingTime).
		Msg("consultation created")
	return nil
}

// Get returns the consultation when the requester is a participant or staff.
// Non-participants get ErrNotFound rather than a permission hint.
func (s *Service) Get(_ context.Context, id int, requester *models.User) (*models.Consultation, error) {
	c, err := s.db.GetConsultation(id)
	if err != nil {
		return nil, mapDBErr(err)
	}
	if requester != nil && requester.Role != models.RoleAdmin &&
		c.EmployeeID != requester.ID && c.GuardianID != requester.ID {
		return nil, ErrNotFound
	}
	return c, nil
}

// Metadata carries the optional fields that may change after creation. Nil
// pointers leave the stored value untouched.
type Metadata struct {
	Title          *string
	Content        *string
	Classification *string
	HospitalName   *string
	DoctorName     *string
}

// UpdateMetadata applies partial updates. Canceled records are immutable.
func (s *Service) UpdateMetadata(ctx context.Context, id int, m Metadata) (*models.Consultation, error) {
	var updated *models.Consultation
	err := s.WithLock(id, func() error {
		c, err := s.db.GetConsultation(id)
		if err != nil {
			return mapDBErr(err)
		}
		if c.Status == models.StatusCanceled {
			return ErrCanceled
		}

		if m.Title != nil {
			c.Title = *m.Title
		}
		if m.Content != nil {
			c.Content = *m.Content
		}
		if m.Classification != nil {
			c.Classification = *m.Classification
		}
		if m.HospitalName != nil {
			c.HospitalName = *m.HospitalName
		}
		if m.DoctorName != nil {
			c.DoctorName = *m.DoctorName
		}
		c.UpdatedAt = s.now()

		if err := s.db.UpdateConsultation(c); err != nil {
			return err
		}
		updated = c
		return nil
	})
	return updated, err
}

// Confirm is the staff path to CONDUCTED, allowed only after the meeting
// time has passed.
func (s *Service) Confirm(ctx context.Context, id int) error {
	return s.WithLock(id, func() error {
		c, err := s.db.GetConsultation(id)
		if err != nil {
			return mapDBErr(err)
		}
		switch c.Status {
		case models.StatusConducted:
			return nil // already there, confirmation is idempotent
		case models.StatusCanceled:
			return ErrCanceled
		}
		if s.now().Before(c.MeetingTime) {
			return ErrNotYetHeld
		}
		return s.transition(ctx, c, models.StatusConducted)
	})
}

// MarkConducted is the automatic path: the live session for this
// consultation ended, so the meeting took place. No meeting-time gate; the
// session may legitimately finish before the nominal slot.
func (s *Service) MarkConducted(ctx context.Context, id int) error {
	return s.WithLock(id, func() error {
		c, err := s.db.GetConsultation(id)
		if err != nil {
			return mapDBErr(err)
		}
		if c.Status == models.StatusConducted {
			return nil
		}
		if c.Status == models.StatusCanceled {
			return ErrCanceled
		}
		return s.transition(ctx, c, models.StatusConducted)
	})
}

// Cancel moves a pending consultation to CANCELED. Canceling twice is a
// no-op; canceling a conducted consultation is rejected.
func (s *Service) Cancel(ctx context.Context, id int) error {
	return s.WithLock(id, func() error {
		c, err := s.db.GetConsultation(id)
		if err != nil {
			return mapDBErr(err)
		}
		switch c.Status {
		case models.StatusCanceled:
			return nil
		case models.StatusConducted:
			return ErrAlreadyConducted
		}
		return s.transition(ctx, c, models.StatusCanceled)
	})
}

func (s *Service) transition(ctx context.Context, c *models.Consultation, to models.ConsultationStatus) error {
	if !c.Status.CanTransition(to) {
		return ErrBadTransition
	}
	if err := s.db.UpdateConsultationStatus(c.ID, to); err != nil {
		return err
	}
	zerolog.Ctx(ctx).Info().
		Int("consultation_id", c.ID).
		Str("from", string(c.Status)).
		Str("to", string(to)).
		Msg("consultation status changed")
	c.Status = to
	return nil
}

// ListByType pages a participant's consultations of one meeting type.
func (s *Service) ListByType(_ context.Context, user *models.User, meetingType string, start, end time.Time, page, size int) ([]models.Consultation, int64, error) {
	if page < 1 {
		page = 1
	}
	if size < 1 {
		size = 10
	}
	return s.db.FindConsultationsByParticipant(user.ID, user.Role, meetingType, start, end, (page-1)*size, size)
}

func mapDBErr(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}
