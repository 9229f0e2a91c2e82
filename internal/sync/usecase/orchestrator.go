package usecase

import (
	"context"
	"errors"
	"fmt"

	accountdomain "mailsync-backend/internal/account/domain"
	accountrepo "mailsync-backend/internal/account/repository"
	accountusecase "mailsync-backend/internal/account/usecase"
	emaildomain "mailsync-backend/internal/email/domain"
	syncdomain "mailsync-backend/internal/sync/domain"
	"mailsync-backend/internal/sync/repository"

	"github.com/rs/zerolog"
)

// ErrIncompleteSync is returned when part of a sync unit failed. The watermark
// is left where it was so the range is retried.
var ErrIncompleteSync = errors.New("sync unit incomplete, watermark not advanced")

// ClassificationDispatcher hands newly stored messages to background classification.
type ClassificationDispatcher interface {
	DispatchNewMessages(appUserID string, messages []*emaildomain.Message) bool
}

// Orchestrator drives one sync unit from fetch to watermark advance.
type Orchestrator struct {
	accounts    accountrepo.AccountRepository
	mailboxes   accountusecase.MailboxSource
	runs        repository.SyncRunRepository
	reconciler  *Reconciler
	fetcher     *Fetcher
	upserter    *Upserter
	classify    ClassificationDispatcher
	fullSyncMax int
	log         zerolog.Logger
}

func NewOrchestrator(
	accounts accountrepo.AccountRepository,
	mailboxes accountusecase.MailboxSource,
	runs repository.SyncRunRepository,
	reconciler *Reconciler,
	fetcher *Fetcher,
	upserter *Upserter,
	classify ClassificationDispatcher,
	fullSyncMax int,
	log zerolog.Logger,
) *Orchestrator {
	return &Orchestrator{
		accounts:    accounts,
		mailboxes:   mailboxes,
		runs:        runs,
		reconciler:  reconciler,
		fetcher:     fetcher,
		upserter:    upserter,
		classify:    classify,
		fullSyncMax: fullSyncMax,
		log:         log,
	}
}

// Run executes a queued job.
func (o *Orchestrator) Run(ctx context.Context, job syncdomain.SyncJob) error {
	if job.Kind == syncdomain.JobFull {
		return o.RunFullSync(ctx, job.GmailAccountID, job.MaxMessages)
	}
	return o.RunIncrementalSync(ctx, job)
}

// RunIncrementalSync reconciles history from the stored watermark up to the
// notified marker. The stored watermark is read at run time, so a job that
// was queued behind a newer one finds nothing left to do.
func (o *Orchestrator) RunIncrementalSync(ctx context.Context, job syncdomain.SyncJob) error {
	account, err := o.loadAccount(job.GmailAccountID)
	if err != nil {
		return err
	}
	stored := account.LastHistoryID
	newMarker := uint64(job.NewMarker)
	log := o.log.With().Str("account_id", account.ID).Uint64("stored_marker", stored).Uint64("new_marker", newMarker).Logger()

	if stored == 0 {
		log.Info().Msg("no watermark stored, running full sync")
		return o.RunFullSync(ctx, account.ID, 0)
	}
	if newMarker != 0 && newMarker <= stored {
		log.Debug().Msg("range already reconciled")
		return nil
	}

	tracker := o.startRun(account.ID, syncdomain.JobIncremental, stored, newMarker)

	mailbox, err := o.mailboxes.ForAccount(ctx, account)
	if err != nil {
		return tracker.fail(err)
	}

	res, err := o.reconciler.Reconcile(ctx, mailbox, account, stored, tracker.transition)
	if errors.Is(err, ErrHistoryExpired) {
		log.Warn().Msg("history expired, falling back to full sync")
		tracker.fail(err)
		return o.RunFullSync(ctx, account.ID, 0)
	}
	if err != nil {
		return tracker.fail(err)
	}

	tracker.run.Added = len(res.Added)
	tracker.run.Deleted = int(res.Deleted)
	tracker.run.LabelsUpdated = res.LabelsUpdated

	o.dispatch(account.AppUserID, res.Added, tracker)

	if !res.Complete {
		return tracker.fail(ErrIncompleteSync)
	}

	target := newMarker
	if res.LatestMarker > target {
		target = res.LatestMarker
	}
	return o.advance(account.ID, target, tracker)
}

// RunFullSync mirrors the newest maxMessages messages and moves the watermark
// to the history id read before listing. When the listing covers the whole
// mailbox, stored messages Gmail no longer returns are removed.
func (o *Orchestrator) RunFullSync(ctx context.Context, accountID string, maxMessages int) error {
	account, err := o.loadAccount(accountID)
	if err != nil {
		return err
	}
	if maxMessages <= 0 {
		maxMessages = o.fullSyncMax
	}
	log := o.log.With().Str("account_id", account.ID).Int("max_messages", maxMessages).Logger()

	tracker := o.startRun(account.ID, syncdomain.JobFull, account.LastHistoryID, 0)

	mailbox, err := o.mailboxes.ForAccount(ctx, account)
	if err != nil {
		return tracker.fail(err)
	}

	tracker.transition(syncdomain.StateFetching)
	profile, err := mailbox.GetProfile(ctx)
	if err != nil {
		return tracker.fail(fmt.Errorf("get profile: %w", err))
	}
	marker := profile.HistoryId
	tracker.run.NewMarker = marker

	ids, complete, err := o.fetcher.ListAllIDs(ctx, mailbox, maxMessages)
	if err != nil {
		return tracker.fail(err)
	}
	fetched := o.fetcher.FetchDetails(ctx, mailbox, ids)

	tracker.transition(syncdomain.StateNormalizing)
	normalized := normalizeAll(fetched.Messages, account, log)

	tracker.transition(syncdomain.StatePersisting)
	persisted, failedBatches := o.upserter.Upsert(normalized)
	tracker.run.Added = len(persisted)

	pruneFailed := false
	if complete {
		pruned, err := o.reconciler.PruneAbsent(account.ID, ids)
		if err != nil {
			log.Error().Err(err).Msg("failed to prune removed messages")
			pruneFailed = true
		}
		tracker.run.Deleted = int(pruned)
	}

	o.dispatch(account.AppUserID, persisted, tracker)

	log.Info().
		Int("listed", len(ids)).
		Bool("listing_complete", complete).
		Int("persisted", len(persisted)).
		Int("pruned", tracker.run.Deleted).
		Int("fetch_failed", len(fetched.Failed)).
		Int("failed_batches", failedBatches).
		Msg("full sync finished")

	if len(fetched.Failed) > 0 || failedBatches > 0 || pruneFailed {
		return tracker.fail(ErrIncompleteSync)
	}
	return o.advance(account.ID, marker, tracker)
}

func (o *Orchestrator) dispatch(appUserID string, messages []*emaildomain.Message, tracker *runTracker) {
	classifiable := emaildomain.FilterClassifiable(messages)
	if len(classifiable) == 0 || o.classify == nil {
		return
	}
	tracker.transition(syncdomain.StateClassifying)
	if !o.classify.DispatchNewMessages(appUserID, classifiable) {
		o.log.Warn().Str("app_user_id", appUserID).Int("messages", len(classifiable)).Msg("classification not queued")
	}
}

func (o *Orchestrator) advance(accountID string, marker uint64, tracker *runTracker) error {
	if marker == 0 {
		return tracker.finish(syncdomain.StateWatermarkAdvanced)
	}
	moved, err := o.accounts.AdvanceWatermark(accountID, marker)
	if err != nil {
		return tracker.fail(fmt.Errorf("advance watermark: %w", err))
	}
	if !moved {
		o.log.Debug().Str("account_id", accountID).Uint64("marker", marker).Msg("watermark already at or past marker")
	}
	return tracker.finish(syncdomain.StateWatermarkAdvanced)
}

func (o *Orchestrator) loadAccount(id string) (*accountdomain.GmailAccount, error) {
	account, err := o.accounts.FindByID(id)
	if err != nil {
		return nil, fmt.Errorf("load account: %w", err)
	}
	if account == nil {
		return nil, accountdomain.ErrAccountNotFound
	}
	return account, nil
}
