package availability

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/carelink/backend/internal/models"
)

// MemoryStore mirrors RedisStore semantics without a server. Used by tests
// and by local development runs.
type MemoryStore struct {
	mu        sync.RWMutex
	schedules map[int]models.AvailabilitySchedule
	requests  map[[2]int]models.AvailabilityRequest // [seniorID, guardianID]
	now       func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		schedules: make(map[int]models.AvailabilitySchedule),
		requests:  make(map[[2]int]models.AvailabilityRequest),
		now:       time.Now,
	}
}

// WithClock overrides the time source. Test hook.
func (s *MemoryStore) WithClock(now func() time.Time) *MemoryStore {
	s.now = now
	return s
}

func (s *MemoryStore) SubmitGuardianRequest(_ context.Context, req models.AvailabilityRequest) error {
	if err := validateRequest(req, s.now()); err != nil {
		return err
	}
	req.Status = models.StatusPending
	s.mu.Lock()
	s.requests[[2]int{req.SeniorID, req.UserID}] = req
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) SubmitEmployeeSchedule(_ context.Context, sched models.AvailabilitySchedule) error {
	if err := validateSchedule(sched); err != nil {
		return err
	}
	s.mu.Lock()
	s.schedules[sched.EmployeeID] = sched
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) EmployeeSchedule(_ context.Context, employeeID int) (*models.AvailabilitySchedule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sched, ok := s.schedules[employeeID]
	if !ok || sched.Expired(s.now()) {
		return nil, ErrNotFound
	}
	out := sched
	return &out, nil
}

func (s *MemoryStore) SchedulesForSenior(_ context.Context, seniorID int) ([]models.AvailabilitySchedule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	now := s.now()
	var out []models.AvailabilitySchedule
	for _, sched := range s.schedules {
		if sched.Expired(now) {
			continue
		}
		for _, id := range sched.SeniorIDs {
			if id == seniorID {
				out = append(out, sched)
				break
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *MemoryStore) GuardianRequests(_ context.Context, seniorID int) ([]models.AvailabilityRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.AvailabilityRequest
	for key, req := range s.requests {
		if key[0] != seniorID || req.Status != models.StatusPending {
			continue
		}
		out = append(out, req)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RequestedAt.Before(out[j].RequestedAt) })
	return out, nil
}

func (s *MemoryStore) GuardianRequest(_ context.Context, seniorID, guardianID int) (*models.AvailabilityRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	req, ok := s.requests[[2]int{seniorID, guardianID}]
	if !ok {
		return nil, ErrNotFound
	}
	out := req
	return &out, nil
}

func (s *MemoryStore) SeniorsWithRequests(_ context.Context) ([]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[int]bool)
	var out []int
	for key, req := range s.requests {
		if req.Status != models.StatusPending || seen[key[0]] {
			continue
		}
		seen[key[0]] = true
		out = append(out, key[0])
	}
	sort.Ints(out)
	return out, nil
}

func (s *MemoryStore) MarkMatched(_ context.Context, seniorID, guardianID int) error {
	s.mu.Lock()
	delete(s.requests, [2]int{seniorID, guardianID})
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) ConsumeSlot(_ context.Context, employeeID int, slot time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sched, ok := s.schedules[employeeID]
	if !ok {
		return ErrNotFound
	}
	kept := make([]time.Time, 0, len(sched.Slots))
	for _, t := range sched.Slots {
		if !t.Equal(slot) {
			kept = append(kept, t)
		}
	}
	sched.Slots = kept
	s.schedules[employeeID] = sched
	return nil
}

func (s *MemoryStore) CancelGuardianRequest(_ context.Context, seniorID, guardianID int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := [2]int{seniorID, guardianID}
	if _, ok := s.requests[key]; !ok {
		return ErrNotFound
	}
	delete(s.requests, key)
	return nil
}
