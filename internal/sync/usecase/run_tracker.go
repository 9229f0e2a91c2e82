package usecase

import (
	syncdomain "mailsync-backend/internal/sync/domain"
	"mailsync-backend/internal/sync/repository"

	"github.com/rs/zerolog"
)

// runTracker records state transitions of one sync unit. Bookkeeping failures
// are logged and never fail the sync itself.
type runTracker struct {
	repo repository.SyncRunRepository
	run  *syncdomain.SyncRun
	log  zerolog.Logger
}

func (o *Orchestrator) startRun(accountID string, kind syncdomain.JobKind, start, target uint64) *runTracker {
	t := &runTracker{
		repo: o.runs,
		run: &syncdomain.SyncRun{
			GmailAccountID: accountID,
			Kind:           kind,
			StartMarker:    start,
			NewMarker:      target,
		},
		log: o.log.With().Str("account_id", accountID).Str("kind", string(kind)).Logger(),
	}
	if t.repo != nil {
		if err := t.repo.Start(t.run); err != nil {
			t.log.Warn().Err(err).Msg("failed to record sync run")
			t.repo = nil
		}
	}
	t.log.Debug().Str("state", string(syncdomain.StateReceived)).Msg("sync state")
	return t
}

func (t *runTracker) transition(state syncdomain.SyncState) {
	t.run.State = state
	t.log.Debug().Str("state", string(state)).Msg("sync state")
	if t.repo == nil {
		return
	}
	if err := t.repo.Transition(t.run.ID, state); err != nil {
		t.log.Warn().Err(err).Msg("failed to record sync state")
	}
}

func (t *runTracker) finish(state syncdomain.SyncState) error {
	t.run.State = state
	t.log.Info().Str("state", string(state)).Int("added", t.run.Added).Int("deleted", t.run.Deleted).Msg("sync unit finished")
	t.save()
	return nil
}

func (t *runTracker) fail(err error) error {
	t.run.State = syncdomain.StateFailed
	t.run.Error = err.Error()
	t.log.Error().Err(err).Msg("sync unit failed")
	t.save()
	return err
}

func (t *runTracker) save() {
	if t.repo == nil {
		return
	}
	if err := t.repo.Finish(t.run); err != nil {
		t.log.Warn().Err(err).Msg("failed to store sync run result")
	}
}
