package services

import (
	"context"
	"time"

	"contract-qa-platform/internal/logger"

	"github.com/go-co-op/gocron"
)

type StaleMarker interface {
	MarkStaleProcessing(ctx context.Context, olderThan time.Duration) (int64, error)
}

// Sweeper periodically fails documents whose processing stopped without
// reaching a final status, e.g. after a worker crash.
type Sweeper struct {
	scheduler  *gocron.Scheduler
	store      StaleMarker
	staleAfter time.Duration
}

func NewSweeper(store StaleMarker, staleAfter time.Duration) *Sweeper {
	s := gocron.NewScheduler(time.UTC)
	s.TagsUnique()

	return &Sweeper{
		scheduler:  s,
		store:      store,
		staleAfter: staleAfter,
	}
}

// Start schedules the sweep every interval, starting immediately
func (s *Sweeper) Start(interval time.Duration) error {
	if _, err := s.scheduler.Every(interval).Tag("stale-processing-sweep").Do(s.Sweep); err != nil {
		return err
	}
	s.scheduler.StartAsync()
	return nil
}

func (s *Sweeper) Stop() {
	s.scheduler.Stop()
}

// Sweep runs a single pass
func (s *Sweeper) Sweep() error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	n, err := s.store.MarkStaleProcessing(ctx, s.staleAfter)
	if err != nil {
		logger.Error("Stale processing sweep failed", "error", err)
		return err
	}
	if n > 0 {
		logger.Warn("Marked stale documents as failed", "count", n, "stale_after", s.staleAfter.String())
	}
	return nil
}
