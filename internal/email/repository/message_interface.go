package repository

import (
	emaildomain "mailsync-backend/internal/email/domain"
)

// MessageRepository defines persistence for mirrored Gmail messages
type MessageRepository interface {
	// UpsertBatch inserts or overwrites messages keyed by (gmail_account_id, gmail_message_id)
	// in one statement and fills in the stored ids.
	UpsertBatch(messages []*emaildomain.Message) error
	DeleteByGmailIDs(gmailAccountID string, gmailMessageIDs []string) (int64, error)
	FindByGmailID(gmailAccountID, gmailMessageID string) (*emaildomain.Message, error)
	// UpdateLabels writes the label set and its derived flags.
	UpdateLabels(message *emaildomain.Message) error
	// ListClassifiable returns the owner's newest non SENT/DRAFT messages.
	ListClassifiable(appUserID string, limit int) ([]*emaildomain.Message, error)
	CountByAccount(gmailAccountID string) (int64, error)
	// ListLabelState returns the gmail id and labels of every stored message of the account.
	ListLabelState(gmailAccountID string) ([]*emaildomain.Message, error)
}
