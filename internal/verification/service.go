package verification

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"time"

	"github.com/carelink/backend/internal/notify"
	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"
)

const codeKeyPrefix = "org:code:"

var ErrCodeInvalid = errors.New("verification code is invalid or expired")

// Service issues one-time organization enrollment codes delivered over SMS.
// A code admits exactly one verification and expires on its own.
type Service struct {
	rdb    *redis.Client
	sender notify.Sender
	ttl    time.Duration
}

func NewService(rdb *redis.Client, sender notify.Sender, ttl time.Duration) *Service {
	return &Service{rdb: rdb, sender: sender, ttl: ttl}
}

// IssueOrgCode generates a six-digit code bound to the organization and
// texts it to the recipient. When delivery fails the code is revoked so an
// undelivered code can never be guessed into an enrollment.
func (s *Service) IssueOrgCode(ctx context.Context, orgID int, phone string) (string, error) {
	code, err := randomCode()
	if err != nil {
		return "", err
	}

	key := codeKeyPrefix + code
	if err := s.rdb.Set(ctx, key, strconv.Itoa(orgID), s.ttl).Err(); err != nil {
		return "", err
	}

	body := fmt.Sprintf("Your CareLink organization code is %s. It expires in %d minutes.", code, int(s.ttl.Minutes()))
	if err := s.sender.Send(ctx, phone, body); err != nil {
		s.rdb.Del(ctx, key)
		return "", fmt.Errorf("code delivery failed: %w", err)
	}

	zerolog.Ctx(ctx).Info().Int("org_id", orgID).Msg("organization code issued")
	return code, nil
}

// VerifyOrgCode consumes a code and returns the organization it was issued
// for.
func (s *Service) VerifyOrgCode(ctx context.Context, code string) (int, error) {
	key := codeKeyPrefix + code
	raw, err := s.rdb.Get(ctx, key).Result()
	if err == redis.Nil {
		return 0, ErrCodeInvalid
	}
	if err != nil {
		return 0, err
	}

	orgID, err := strconv.Atoi(raw)
	if err != nil {
		return 0, ErrCodeInvalid
	}

	s.rdb.Del(ctx, key)
	return orgID, nil
}

func randomCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}
