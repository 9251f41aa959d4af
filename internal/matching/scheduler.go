package matching

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Scheduler drives the periodic background matching pass. It is an explicit
// task with its own cancellation, started once from server wiring.
type Scheduler struct {
	matcher  *Matcher
	interval time.Duration
	leadDays int
	cancel   context.CancelFunc
	done     chan struct{}
}

func NewScheduler(matcher *Matcher, interval time.Duration, leadDays int) *Scheduler {
	return &Scheduler{matcher: matcher, interval: interval, leadDays: leadDays}
}

// Start launches the loop. Each tick matches availability for the target
// date leadDays ahead, mirroring how far in advance participants plan.
func (s *Scheduler) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})

	go func() {
		defer close(s.done)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				target := time.Now().UTC().AddDate(0, 0, s.leadDays)
				matched, err := s.matcher.MatchAll(ctx, target)
				if err != nil && ctx.Err() == nil {
					zerolog.Ctx(ctx).Error().Err(err).Msg("background matching pass failed")
					continue
				}
				zerolog.Ctx(ctx).Info().
					Time("target_date", target).
					Int("matched", len(matched)).
					Msg("background matching pass finished")
			}
		}
	}()
}

// Stop cancels the loop and waits for the current pass to finish its
// in-flight senior.
func (s *Scheduler) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
}
