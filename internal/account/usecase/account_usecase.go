package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	accountdomain "mailsync-backend/internal/account/domain"
	"mailsync-backend/internal/account/dto"
	"mailsync-backend/internal/account/repository"

	"github.com/rs/zerolog"
)

var ErrAccountOwnedElsewhere = errors.New("gmail account is linked to another user")

// LabelSeeder creates the default classification labels of an owner.
type LabelSeeder interface {
	EnsureDefaults(appUserID string) error
}

// SyncScheduler enqueues a full mailbox sync.
type SyncScheduler interface {
	EnqueueFullSync(ctx context.Context, account *accountdomain.GmailAccount) error
}

type AccountUsecase interface {
	// Link stores the tokens for the mailbox they authorize and activates it.
	Link(ctx context.Context, appUserID string, req *dto.LinkAccountRequest) (*accountdomain.GmailAccount, error)
	// Activate seeds default labels, starts the watch and queues a full sync.
	Activate(ctx context.Context, account *accountdomain.GmailAccount) error
	Get(appUserID, accountID string) (*accountdomain.GmailAccount, error)
	List(appUserID string) ([]*accountdomain.GmailAccount, error)
}

type accountUsecase struct {
	repo      repository.AccountRepository
	factory   MailboxFactory
	watch     WatchUsecase
	labels    LabelSeeder
	scheduler SyncScheduler
	log       zerolog.Logger
}

func NewAccountUsecase(
	repo repository.AccountRepository,
	factory MailboxFactory,
	watch WatchUsecase,
	labels LabelSeeder,
	scheduler SyncScheduler,
	log zerolog.Logger,
) AccountUsecase {
	return &accountUsecase{
		repo:      repo,
		factory:   factory,
		watch:     watch,
		labels:    labels,
		scheduler: scheduler,
		log:       log,
	}
}

func (u *accountUsecase) Link(ctx context.Context, appUserID string, req *dto.LinkAccountRequest) (*accountdomain.GmailAccount, error) {
	var expiry time.Time
	if req.Expiry != nil {
		expiry = *req.Expiry
	}

	probe := &accountdomain.GmailAccount{
		AppUserID:    appUserID,
		AccessToken:  req.AccessToken,
		RefreshToken: req.RefreshToken,
		TokenExpiry:  expiry,
	}
	// The token refresh callback needs a row; until the account exists the
	// refreshed token is captured on probe instead.
	mailbox, err := u.factory.Mailbox(ctx, credentialsOf(probe), captureToken(probe))
	if err != nil {
		return nil, err
	}
	profile, err := mailbox.GetProfile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read gmail profile: %w", err)
	}

	account, err := u.repo.FindByGmailAddress(profile.EmailAddress)
	if err != nil {
		return nil, err
	}
	if account != nil {
		if account.AppUserID != appUserID {
			return nil, ErrAccountOwnedElsewhere
		}
		if err := u.repo.UpdateTokens(account.ID, probe.AccessToken, probe.RefreshToken, probe.TokenExpiry); err != nil {
			return nil, fmt.Errorf("failed to update tokens: %w", err)
		}
		account.AccessToken, account.RefreshToken, account.TokenExpiry = probe.AccessToken, probe.RefreshToken, probe.TokenExpiry
	} else {
		probe.GmailAddress = profile.EmailAddress
		if err := u.repo.Create(probe); err != nil {
			return nil, fmt.Errorf("failed to create account: %w", err)
		}
		account = probe
		u.log.Info().Str("account_id", account.ID).Str("gmail", account.GmailAddress).Msg("gmail account linked")
	}

	if err := u.Activate(ctx, account); err != nil {
		return nil, err
	}
	return account, nil
}

func (u *accountUsecase) Activate(ctx context.Context, account *accountdomain.GmailAccount) error {
	if err := u.labels.EnsureDefaults(account.AppUserID); err != nil {
		u.log.Warn().Err(err).Str("app_user_id", account.AppUserID).Msg("failed to create default labels")
	}
	// A missing watch only delays updates until the next renewal tick.
	if err := u.watch.StartWatch(ctx, account.ID); err != nil {
		u.log.Warn().Err(err).Str("account_id", account.ID).Msg("failed to start watch")
	}
	if err := u.scheduler.EnqueueFullSync(ctx, account); err != nil {
		return fmt.Errorf("failed to queue full sync: %w", err)
	}
	return nil
}

func (u *accountUsecase) Get(appUserID, accountID string) (*accountdomain.GmailAccount, error) {
	account, err := u.repo.FindByID(accountID)
	if err != nil {
		return nil, err
	}
	if account == nil || account.AppUserID != appUserID {
		return nil, accountdomain.ErrAccountNotFound
	}
	return account, nil
}

func (u *accountUsecase) List(appUserID string) ([]*accountdomain.GmailAccount, error) {
	return u.repo.FindByOwner(appUserID)
}
