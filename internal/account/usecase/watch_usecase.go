package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	accountdomain "mailsync-backend/internal/account/domain"
	"mailsync-backend/internal/account/repository"
	"mailsync-backend/pkg/gmail"

	"github.com/rs/zerolog"
)

var ErrWatchNotConfigured = errors.New("pub/sub topic for gmail watch is not configured")

// WatchUsecase manages the Gmail push subscription of each account.
type WatchUsecase interface {
	// StartWatch registers a watch unless a recorded one is still valid.
	StartWatch(ctx context.Context, accountID string) error
	// StopWatch deregisters the watch. A 404 from Gmail counts as stopped.
	StopWatch(ctx context.Context, accountID string) error
	// RenewExpiring re-watches every account whose watch ends within the window
	// and returns how many were renewed.
	RenewExpiring(ctx context.Context, within time.Duration) (int, error)
}

type watchUsecase struct {
	repo      repository.AccountRepository
	mailboxes MailboxSource
	topic     string
	labelIDs  []string
	log       zerolog.Logger
	now       func() time.Time
}

func NewWatchUsecase(repo repository.AccountRepository, mailboxes MailboxSource, topic string, labelIDs []string, log zerolog.Logger) WatchUsecase {
	return &watchUsecase{
		repo:      repo,
		mailboxes: mailboxes,
		topic:     topic,
		labelIDs:  labelIDs,
		log:       log,
		now:       time.Now,
	}
}

func (u *watchUsecase) StartWatch(ctx context.Context, accountID string) error {
	account, err := u.load(accountID)
	if err != nil {
		return err
	}
	return u.watch(ctx, account, false)
}

func (u *watchUsecase) watch(ctx context.Context, account *accountdomain.GmailAccount, force bool) error {
	if !force && account.WatchActive(u.now()) {
		u.log.Debug().Str("account_id", account.ID).Time("expires", *account.WatchExpiry).Msg("watch still active")
		return nil
	}
	if u.topic == "" {
		return ErrWatchNotConfigured
	}

	mailbox, err := u.mailboxes.ForAccount(ctx, account)
	if err != nil {
		return err
	}
	resp, err := mailbox.Watch(ctx, u.topic, u.labelIDs)
	if err != nil {
		return fmt.Errorf("gmail watch for %s: %w", account.GmailAddress, err)
	}

	expiry := time.UnixMilli(resp.Expiration).UTC()
	if err := u.repo.SetWatch(account.ID, resp.HistoryId, expiry); err != nil {
		return fmt.Errorf("failed to store watch: %w", err)
	}
	u.log.Info().
		Str("account_id", account.ID).
		Uint64("history_id", resp.HistoryId).
		Time("expires", expiry).
		Msg("gmail watch registered")
	return nil
}

func (u *watchUsecase) StopWatch(ctx context.Context, accountID string) error {
	account, err := u.load(accountID)
	if err != nil {
		return err
	}
	mailbox, err := u.mailboxes.ForAccount(ctx, account)
	if err != nil {
		return err
	}
	if err := mailbox.Stop(ctx); err != nil {
		if !gmail.IsNotFound(err) {
			return fmt.Errorf("gmail stop for %s: %w", account.GmailAddress, err)
		}
		u.log.Info().Str("account_id", account.ID).Msg("watch already gone on gmail side")
	}
	return u.repo.ClearWatch(account.ID)
}

func (u *watchUsecase) RenewExpiring(ctx context.Context, within time.Duration) (int, error) {
	accounts, err := u.repo.ListWatchesExpiringBefore(u.now().Add(within))
	if err != nil {
		return 0, fmt.Errorf("failed to list expiring watches: %w", err)
	}

	renewed := 0
	for _, account := range accounts {
		if ctx.Err() != nil {
			return renewed, ctx.Err()
		}
		if err := u.watch(ctx, account, true); err != nil {
			u.log.Error().Err(err).Str("account_id", account.ID).Msg("watch renewal failed")
			continue
		}
		renewed++
	}
	return renewed, nil
}

func (u *watchUsecase) load(accountID string) (*accountdomain.GmailAccount, error) {
	account, err := u.repo.FindByID(accountID)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, accountdomain.ErrAccountNotFound
	}
	return account, nil
}
