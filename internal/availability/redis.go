package availability

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/carelink/backend/internal/models"
	"github.com/go-redis/redis/v8"
)

const (
	employeeKeyPrefix = "employee:schedule:"
	requestKeyPrefix  = "senior:request:"
)

// RedisStore keeps availability in Redis with a TTL so abandoned entries age
// out on their own. Key layout follows the rest of the system:
// employee:schedule:<employeeID> and senior:request:<seniorID>:<guardianID>.
type RedisStore struct {
	rdb *redis.Client
	ttl time.Duration
	now func() time.Time
}

func NewRedisStore(rdb *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{rdb: rdb, ttl: ttl, now: time.Now}
}

func employeeKey(employeeID int) string {
	return fmt.Sprintf("%s%d", employeeKeyPrefix, employeeID)
}

func requestKey(seniorID, guardianID int) string {
	return fmt.Sprintf("%s%d:%d", requestKeyPrefix, seniorID, guardianID)
}

func (s *RedisStore) SubmitGuardianRequest(ctx context.Context, req models.AvailabilityRequest) error {
	if err := validateRequest(req, s.now()); err != nil {
		return err
	}
	req.Status = models.StatusPending
	data, err := json.Marshal(req)
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, requestKey(req.SeniorID, req.UserID), data, s.ttl).Err()
}

func (s *RedisStore) SubmitEmployeeSchedule(ctx context.Context, sched models.AvailabilitySchedule) error {
	if err := validateSchedule(sched); err != nil {
		return err
	}
	data, err := json.Marshal(sched)
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, employeeKey(sched.EmployeeID), data, s.ttl).Err()
}

func (s *RedisStore) EmployeeSchedule(ctx context.Context, employeeID int) (*models.AvailabilitySchedule, error) {
	data, err := s.rdb.Get(ctx, employeeKey(employeeID)).Bytes()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var sched models.AvailabilitySchedule
	if err := json.Unmarshal(data, &sched); err != nil {
		return nil, err
	}
	if sched.Expired(s.now()) {
		return nil, ErrNotFound
	}
	return &sched, nil
}

func (s *RedisStore) SchedulesForSenior(ctx context.Context, seniorID int) ([]models.AvailabilitySchedule, error) {
	keys, err := s.scan(ctx, employeeKeyPrefix+"*")
	if err != nil {
		return nil, err
	}

	now := s.now()
	var out []models.AvailabilitySchedule
	for _, key := range keys {
		data, err := s.rdb.Get(ctx, key).Bytes()
		if err == redis.Nil {
			continue
		}
		if err != nil {
			return nil, err
		}
		var sched models.AvailabilitySchedule
		if err := json.Unmarshal(data, &sched); err != nil {
			continue
		}
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

func (s *RedisStore) GuardianRequests(ctx context.Context, seniorID int) ([]models.AvailabilityRequest, error) {
	keys, err := s.scan(ctx, fmt.Sprintf("%s%d:*", requestKeyPrefix, seniorID))
	if err != nil {
		return nil, err
	}

	var out []models.AvailabilityRequest
	for _, key := range keys {
		data, err := s.rdb.Get(ctx, key).Bytes()
		if err == redis.Nil {
			continue
		}
		if err != nil {
			return nil, err
		}
		var req models.AvailabilityRequest
		if err := json.Unmarshal(data, &req); err != nil {
			continue
		}
		if req.Status != models.StatusPending {
			continue
		}
		out = append(out, req)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RequestedAt.Before(out[j].RequestedAt) })
	return out, nil
}

func (s *RedisStore) GuardianRequest(ctx context.Context, seniorID, guardianID int) (*models.AvailabilityRequest, error) {
	data, err := s.rdb.Get(ctx, requestKey(seniorID, guardianID)).Bytes()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var req models.AvailabilityRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, err
	}
	return &req, nil
}

func (s *RedisStore) SeniorsWithRequests(ctx context.Context) ([]int, error) {
	keys, err := s.scan(ctx, requestKeyPrefix+"*")
	if err != nil {
		return nil, err
	}
	seen := make(map[int]bool)
	var out []int
	for _, key := range keys {
		var seniorID, guardianID int
		if _, err := fmt.Sscanf(key, requestKeyPrefix+"%d:%d", &seniorID, &guardianID); err != nil {
			continue
		}
		if !seen[seniorID] {
			seen[seniorID] = true
			out = append(out, seniorID)
		}
	}
	sort.Ints(out)
	return out, nil
}

func (s *RedisStore) MarkMatched(ctx context.Context, seniorID, guardianID int) error {
	return s.rdb.Del(ctx, requestKey(seniorID, guardianID)).Err()
}

// ConsumeSlot rewrites the employee schedule without the matched slot,
// preserving the remaining TTL.
func (s *RedisStore) ConsumeSlot(ctx context.Context, employeeID int, slot time.Time) error {
	key := employeeKey(employeeID)
	sched, err := s.EmployeeSchedule(ctx, employeeID)
	if err != nil {
		return err
	}

	kept := sched.Slots[:0]
	for _, t := range sched.Slots {
		if !t.Equal(slot) {
			kept = append(kept, t)
		}
	}
	sched.Slots = kept

	data, err := json.Marshal(sched)
	if err != nil {
		return err
	}

	ttl, err := s.rdb.TTL(ctx, key).Result()
	if err != nil || ttl <= 0 {
		ttl = s.ttl
	}
	return s.rdb.Set(ctx, key, data, ttl).Err()
}

func (s *RedisStore) CancelGuardianRequest(ctx context.Context, seniorID, guardianID int) error {
	n, err := s.rdb.Del(ctx, requestKey(seniorID, guardianID)).Result()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *RedisStore) scan(ctx context.Context, pattern string) ([]string, error) {
	var keys []string
	var cursor uint64
	for {
		batch, next, err := s.rdb.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			return nil, err
		}
		keys = append(keys, batch...)
		if next == 0 {
			return keys, nil
		}
		cursor = next
	}
}
