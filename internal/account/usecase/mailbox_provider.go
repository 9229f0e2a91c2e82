package usecase

import (
	"context"

	accountdomain "mailsync-backend/internal/account/domain"
	"mailsync-backend/internal/account/repository"
	"mailsync-backend/pkg/gmail"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
)

// MailboxFactory builds an authenticated Gmail client from stored credentials.
type MailboxFactory interface {
	Mailbox(ctx context.Context, creds gmail.Credentials, onTokenRefresh gmail.TokenUpdateFunc) (gmail.Mailbox, error)
}

// MailboxSource resolves the Gmail client for a linked account.
type MailboxSource interface {
	ForAccount(ctx context.Context, account *accountdomain.GmailAccount) (gmail.Mailbox, error)
}

// MailboxProvider persists refreshed tokens back onto the account row.
type MailboxProvider struct {
	factory MailboxFactory
	repo    repository.AccountRepository
	log     zerolog.Logger
}

func NewMailboxProvider(factory MailboxFactory, repo repository.AccountRepository, log zerolog.Logger) *MailboxProvider {
	return &MailboxProvider{factory: factory, repo: repo, log: log}
}

func (p *MailboxProvider) ForAccount(ctx context.Context, account *accountdomain.GmailAccount) (gmail.Mailbox, error) {
	accountID := account.ID
	onRefresh := func(token *oauth2.Token) error {
		p.log.Debug().Str("account_id", accountID).Msg("persisting refreshed gmail token")
		return p.repo.UpdateTokens(accountID, token.AccessToken, token.RefreshToken, token.Expiry)
	}
	return p.factory.Mailbox(ctx, credentialsOf(account), onRefresh)
}
