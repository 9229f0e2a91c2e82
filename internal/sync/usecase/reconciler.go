package usecase

import (
	"context"
	"errors"
	"fmt"

	accountdomain "mailsync-backend/internal/account/domain"
	emaildomain "mailsync-backend/internal/email/domain"
	emailrepo "mailsync-backend/internal/email/repository"
	syncdomain "mailsync-backend/internal/sync/domain"
	"mailsync-backend/pkg/gmail"

	"github.com/rs/zerolog"
	gmailapi "google.golang.org/api/gmail/v1"
)

// ErrHistoryExpired means Gmail no longer holds history from the start marker
// and the account needs a full sync.
var ErrHistoryExpired = errors.New("gmail history no longer available from start marker")

// ReconcileResult reports what one history range changed locally. Complete is
// false when any deletion, fetch, upsert batch or label write failed.
type ReconcileResult struct {
	Records       int
	LatestMarker  uint64
	Added         []*emaildomain.Message
	Deleted       int64
	LabelsUpdated int
	LabelsSkipped int
	Complete      bool
}

// Reconciler applies a Gmail history range to the local store.
type Reconciler struct {
	fetcher  *Fetcher
	upserter *Upserter
	messages emailrepo.MessageRepository
	log      zerolog.Logger
}

func NewReconciler(fetcher *Fetcher, upserter *Upserter, messages emailrepo.MessageRepository, log zerolog.Logger) *Reconciler {
	return &Reconciler{fetcher: fetcher, upserter: upserter, messages: messages, log: log}
}

// CollectDelta reads every history page after startMarker.
func (r *Reconciler) CollectDelta(ctx context.Context, mailbox gmail.Mailbox, startMarker uint64) (*syncdomain.HistoryDelta, int, uint64, error) {
	delta := syncdomain.NewHistoryDelta()
	var (
		records   int
		latest    uint64
		pageToken string
	)
	for {
		resp, err := mailbox.ListHistory(ctx, startMarker, pageToken)
		if err != nil {
			if gmail.IsNotFound(err) {
				return nil, 0, 0, ErrHistoryExpired
			}
			return nil, 0, 0, fmt.Errorf("list history: %w", err)
		}
		if resp.HistoryId > latest {
			latest = resp.HistoryId
		}
		for _, h := range resp.History {
			records++
			accumulate(delta, h)
		}
		if resp.NextPageToken == "" {
			return delta, records, latest, nil
		}
		pageToken = resp.NextPageToken
	}
}

func accumulate(delta *syncdomain.HistoryDelta, h *gmailapi.History) {
	for _, m := range h.MessagesAdded {
		if m.Message != nil {
			delta.AddAdded(m.Message.Id)
		}
	}
	for _, m := range h.MessagesDeleted {
		if m.Message != nil {
			delta.AddDeleted(m.Message.Id)
		}
	}
	for _, l := range h.LabelsAdded {
		if l.Message != nil {
			delta.AddLabels(l.Message.Id, l.LabelIds, nil)
		}
	}
	for _, l := range h.LabelsRemoved {
		if l.Message != nil {
			delta.AddLabels(l.Message.Id, nil, l.LabelIds)
		}
	}
}

// Reconcile applies deletions, then additions, then label changes for ids
// not already handled. track is called as the run moves through its states.
func (r *Reconciler) Reconcile(
	ctx context.Context,
	mailbox gmail.Mailbox,
	account *accountdomain.GmailAccount,
	startMarker uint64,
	track func(syncdomain.SyncState),
) (*ReconcileResult, error) {
	log := r.log.With().Str("account_id", account.ID).Uint64("start_marker", startMarker).Logger()

	track(syncdomain.StateFetching)
	delta, records, latest, err := r.CollectDelta(ctx, mailbox, startMarker)
	if err != nil {
		return nil, err
	}
	res := &ReconcileResult{Records: records, LatestMarker: latest, Complete: true}
	if records == 0 || delta.Empty() {
		log.Debug().Msg("no history records in range")
		return res, nil
	}

	if len(delta.Deleted) > 0 {
		n, err := r.messages.DeleteByGmailIDs(account.ID, delta.Deleted)
		if err != nil {
			log.Error().Err(err).Int("count", len(delta.Deleted)).Msg("failed to delete messages")
			res.Complete = false
		}
		res.Deleted = n
	}

	var toFetch []string
	for _, id := range delta.Added {
		if !delta.IsDeleted(id) {
			toFetch = append(toFetch, id)
		}
	}
	if len(toFetch) > 0 {
		fetched := r.fetcher.FetchDetails(ctx, mailbox, toFetch)
		if len(fetched.Failed) > 0 {
			res.Complete = false
		}

		track(syncdomain.StateNormalizing)
		normalized := normalizeAll(fetched.Messages, account, log)

		track(syncdomain.StatePersisting)
		persisted, failedBatches := r.upserter.Upsert(normalized)
		if failedBatches > 0 {
			res.Complete = false
		}
		res.Added = persisted
	}

	for _, id := range delta.LabelOrder {
		if delta.IsDeleted(id) || delta.IsAdded(id) {
			continue
		}
		updated, err := r.applyLabelChange(account.ID, id, delta.LabelChanges[id], log)
		if err != nil {
			log.Error().Err(err).Str("gmail_message_id", id).Msg("failed to apply label change")
			res.Complete = false
			continue
		}
		if updated {
			res.LabelsUpdated++
		} else {
			res.LabelsSkipped++
		}
	}

	log.Info().
		Int("records", records).
		Int("added", len(res.Added)).
		Int64("deleted", res.Deleted).
		Int("labels_updated", res.LabelsUpdated).
		Int("labels_skipped", res.LabelsSkipped).
		Bool("complete", res.Complete).
		Msg("history reconciled")
	return res, nil
}

// PruneAbsent deletes stored messages of the account that are missing from a
// complete mailbox listing. Trashed and spam messages are kept since the
// listing leaves them out.
func (r *Reconciler) PruneAbsent(accountID string, listed []string) (int64, error) {
	local, err := r.messages.ListLabelState(accountID)
	if err != nil {
		return 0, fmt.Errorf("list stored messages: %w", err)
	}
	seen := make(map[string]struct{}, len(listed))
	for _, id := range listed {
		seen[id] = struct{}{}
	}
	var stale []string
	for _, m := range local {
		if _, ok := seen[m.GmailMessageID]; ok {
			continue
		}
		if m.LabelIDs.Contains(emaildomain.LabelTrash) || m.LabelIDs.Contains(emaildomain.LabelSpam) {
			continue
		}
		stale = append(stale, m.GmailMessageID)
	}
	if len(stale) == 0 {
		return 0, nil
	}
	return r.messages.DeleteByGmailIDs(accountID, stale)
}

// applyLabelChange reports whether a write happened. A message missing locally
// is skipped without error.
func (r *Reconciler) applyLabelChange(accountID, gmailMessageID string, change *syncdomain.LabelChange, log zerolog.Logger) (bool, error) {
	msg, err := r.messages.FindByGmailID(accountID, gmailMessageID)
	if err != nil {
		return false, err
	}
	if msg == nil {
		log.Warn().Str("gmail_message_id", gmailMessageID).Msg("label change for unknown message, skipping")
		return false, nil
	}
	if !msg.ApplyLabelDelta(change.Added, change.Removed) {
		return false, nil
	}
	if err := r.messages.UpdateLabels(msg); err != nil {
		return false, err
	}
	return true, nil
}

func normalizeAll(raw []*gmailapi.Message, account *accountdomain.GmailAccount, log zerolog.Logger) []*emaildomain.Message {
	out := make([]*emaildomain.Message, 0, len(raw))
	for _, m := range raw {
		normalized := gmail.NormalizeMessage(m, account.AppUserID, account.ID)
		if normalized == nil {
			log.Warn().Msg("dropping message without id or thread id")
			continue
		}
		out = append(out, normalized)
	}
	return out
}
