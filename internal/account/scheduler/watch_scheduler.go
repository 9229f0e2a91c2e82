package scheduler

import (
	"context"
	"time"

	"mailsync-backend/internal/account/usecase"

	"github.com/rs/zerolog"
)

// WatchRenewalScheduler periodically re-registers Gmail watches before they lapse.
// Gmail expires a watch after seven days.
type WatchRenewalScheduler struct {
	watch    usecase.WatchUsecase
	interval time.Duration
	within   time.Duration
	stopChan chan struct{}
	log      zerolog.Logger
}

// NewWatchRenewalScheduler creates a new scheduler
func NewWatchRenewalScheduler(watch usecase.WatchUsecase, interval, within time.Duration, log zerolog.Logger) *WatchRenewalScheduler {
	return &WatchRenewalScheduler{
		watch:    watch,
		interval: interval,
		within:   within,
		stopChan: make(chan struct{}),
		log:      log,
	}
}

// Start begins the scheduler loop
func (s *WatchRenewalScheduler) Start() {
	s.log.Info().Dur("interval", s.interval).Dur("within", s.within).Msg("starting watch renewal scheduler")

	go func() {
		s.renew()

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				s.renew()
			case <-s.stopChan:
				s.log.Info().Msg("watch renewal scheduler stopped")
				return
			}
		}
	}()
}

// Stop gracefully stops the scheduler
func (s *WatchRenewalScheduler) Stop() {
	close(s.stopChan)
}

func (s *WatchRenewalScheduler) renew() {
	ctx, cancel := context.WithTimeout(context.Background(), s.interval)
	defer cancel()

	n, err := s.watch.RenewExpiring(ctx, s.within)
	if err != nil {
		s.log.Error().Err(err).Msg("watch renewal pass failed")
		return
	}
	if n > 0 {
		s.log.Info().Int("renewed", n).Msg("renewed gmail watches")
	}
}
