package usecase

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	accountdomain "mailsync-backend/internal/account/domain"
	accountrepo "mailsync-backend/internal/account/repository"
	syncdomain "mailsync-backend/internal/sync/domain"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
)

var ErrInvalidNotification = errors.New("invalid gmail push notification")

// JobPublisher appends a job to the durable queue.
type JobPublisher interface {
	Publish(ctx context.Context, v any) (string, error)
}

// Deduper reports whether a key is seen for the first time.
type Deduper interface {
	FirstSeen(ctx context.Context, key string) (bool, error)
	// Forget releases a key so a redelivery is not treated as a duplicate.
	Forget(ctx context.Context, key string) error
}

// pushEnvelope is the body Pub/Sub posts to a push endpoint.
type pushEnvelope struct {
	Message struct {
		Data      string `json:"data"`
		MessageID string `json:"messageId"`
	} `json:"message"`
	Subscription string `json:"subscription"`
}

// Ingest turns Gmail push notifications into queued sync jobs.
type Ingest struct {
	accounts    accountrepo.AccountRepository
	publisher   JobPublisher
	dedupe      Deduper
	fullSyncMax int
	log         zerolog.Logger
}

func NewIngest(accounts accountrepo.AccountRepository, publisher JobPublisher, dedupe Deduper, fullSyncMax int, log zerolog.Logger) *Ingest {
	return &Ingest{
		accounts:    accounts,
		publisher:   publisher,
		dedupe:      dedupe,
		fullSyncMax: fullSyncMax,
		log:         log,
	}
}

// HandlePush decodes a Pub/Sub push body and enqueues the sync job.
func (i *Ingest) HandlePush(ctx context.Context, body []byte) error {
	var env pushEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidNotification, err)
	}
	data, err := decodeBase64(env.Message.Data)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidNotification, err)
	}
	return i.HandleNotification(ctx, data)
}

// HandleNotification enqueues an incremental sync for the decoded
// {emailAddress, historyId} payload.
func (i *Ingest) HandleNotification(ctx context.Context, data []byte) error {
	var n syncdomain.PushNotification
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidNotification, err)
	}
	if n.EmailAddress == "" || n.HistoryID == 0 {
		return fmt.Errorf("%w: missing emailAddress or historyId", ErrInvalidNotification)
	}

	log := i.log.With().Str("gmail", n.EmailAddress).Uint64("history_id", uint64(n.HistoryID)).Logger()

	account, err := i.accounts.FindByGmailAddress(n.EmailAddress)
	if err != nil {
		return fmt.Errorf("find account: %w", err)
	}
	if account == nil {
		log.Warn().Msg("notification for unknown mailbox")
		return accountdomain.ErrAccountNotFound
	}

	key := fmt.Sprintf("%s:%d", account.ID, n.HistoryID)
	if i.dedupe != nil {
		first, err := i.dedupe.FirstSeen(ctx, key)
		if err != nil {
			log.Warn().Err(err).Msg("dedupe check failed, enqueueing anyway")
		} else if !first {
			log.Debug().Msg("duplicate notification")
			return nil
		}
	}

	job := syncdomain.SyncJob{
		Kind:           syncdomain.JobIncremental,
		AppUserID:      account.AppUserID,
		GmailAccountID: account.ID,
		StartMarker:    syncdomain.HistoryID(account.LastHistoryID),
		NewMarker:      n.HistoryID,
	}
	id, err := i.publisher.Publish(ctx, job)
	if err != nil {
		if i.dedupe != nil {
			if ferr := i.dedupe.Forget(ctx, key); ferr != nil {
				log.Warn().Err(ferr).Msg("release dedupe key")
			}
		}
		return fmt.Errorf("enqueue sync job: %w", err)
	}
	log.Info().Str("entry_id", id).Str("account_id", account.ID).Msg("sync job queued")
	return nil
}

// EnqueueFullSync queues a full sync of the account.
func (i *Ingest) EnqueueFullSync(ctx context.Context, account *accountdomain.GmailAccount) error {
	_, err := i.publisher.Publish(ctx, syncdomain.SyncJob{
		Kind:           syncdomain.JobFull,
		AppUserID:      account.AppUserID,
		GmailAccountID: account.ID,
		StartMarker:    syncdomain.HistoryID(account.LastHistoryID),
		MaxMessages:    i.fullSyncMax,
	})
	return err
}

func decodeBase64(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, errors.New("empty message data")
	}
	for _, enc := range []*base64.Encoding{base64.StdEncoding, base64.URLEncoding, base64.RawStdEncoding, base64.RawURLEncoding} {
		if b, err := enc.DecodeString(s); err == nil {
			return b, nil
		}
	}
	return nil, errors.New("message data is not base64")
}
