package usecase

import (
	"context"
	"fmt"

	accountdomain "mailsync-backend/internal/account/domain"
	accountusecase "mailsync-backend/internal/account/usecase"
	emaildomain "mailsync-backend/internal/email/domain"
	emailrepo "mailsync-backend/internal/email/repository"
	syncdomain "mailsync-backend/internal/sync/domain"

	"github.com/rs/zerolog"
)

// LabelModifier changes Gmail labels of a message and mirrors the change locally
// through the same delta path the history reconciler uses.
type LabelModifier struct {
	mailboxes  accountusecase.MailboxSource
	messages   emailrepo.MessageRepository
	reconciler *Reconciler
	log        zerolog.Logger
}

func NewLabelModifier(mailboxes accountusecase.MailboxSource, messages emailrepo.MessageRepository, reconciler *Reconciler, log zerolog.Logger) *LabelModifier {
	return &LabelModifier{mailboxes: mailboxes, messages: messages, reconciler: reconciler, log: log}
}

func (m *LabelModifier) Modify(ctx context.Context, account *accountdomain.GmailAccount, gmailMessageID string, add, remove []string) (*emaildomain.Message, error) {
	mailbox, err := m.mailboxes.ForAccount(ctx, account)
	if err != nil {
		return nil, err
	}
	if err := mailbox.ModifyLabels(ctx, gmailMessageID, add, remove); err != nil {
		return nil, fmt.Errorf("gmail modify: %w", err)
	}

	log := m.log.With().Str("account_id", account.ID).Logger()
	if _, err := m.reconciler.applyLabelChange(account.ID, gmailMessageID, &syncdomain.LabelChange{Added: add, Removed: remove}, log); err != nil {
		return nil, fmt.Errorf("mirror label change: %w", err)
	}
	return m.messages.FindByGmailID(account.ID, gmailMessageID)
}
