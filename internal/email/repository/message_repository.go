package repository

import (
	"errors"
	"time"

	emaildomain "mailsync-backend/internal/email/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// messageRepository implements MessageRepository interface
type messageRepository struct {
	db *gorm.DB
}

// NewMessageRepository creates a new instance of messageRepository
func NewMessageRepository(db *gorm.DB) MessageRepository {
	return &messageRepository{
		db: db,
	}
}

func (r *messageRepository) UpsertBatch(messages []*emaildomain.Message) error {
	if len(messages) == 0 {
		return nil
	}
	now := time.Now()
	for _, m := range messages {
		if m.ID == "" {
			m.ID = uuid.New().String()
		}
		m.UpdatedAt = now
	}

	// Everything but the primary key and created_at is overwritten, so
	// RETURNING gives back the id of the row that already existed.
	return r.db.Clauses(
		clause.OnConflict{
			Columns: []clause.Column{{Name: "gmail_account_id"}, {Name: "gmail_message_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"app_user_id", "gmail_thread_id", "subject", "from_address", "from_name",
				"to_addresses", "sent_at", "received_at", "snippet", "body_plain_text", "body_html",
				"is_unread", "is_starred", "is_important", "category_label_id", "has_attachments",
				"label_ids", "updated_at",
			}),
		},
		clause.Returning{Columns: []clause.Column{{Name: "id"}, {Name: "created_at"}}},
	).Create(&messages).Error
}

func (r *messageRepository) DeleteByGmailIDs(gmailAccountID string, gmailMessageIDs []string) (int64, error) {
	if len(gmailMessageIDs) == 0 {
		return 0, nil
	}
	res := r.db.Where("gmail_account_id = ? AND gmail_message_id IN ?", gmailAccountID, gmailMessageIDs).
		Delete(&emaildomain.Message{})
	return res.RowsAffected, res.Error
}

func (r *messageRepository) FindByGmailID(gmailAccountID, gmailMessageID string) (*emaildomain.Message, error) {
	var message emaildomain.Message
	err := r.db.Select("id", "app_user_id", "gmail_account_id", "gmail_message_id", "label_ids", "is_unread", "is_starred", "is_important", "category_label_id").
		Where("gmail_account_id = ? AND gmail_message_id = ?", gmailAccountID, gmailMessageID).
		First(&message).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &message, nil
}

func (r *messageRepository) UpdateLabels(message *emaildomain.Message) error {
	return r.db.Model(&emaildomain.Message{}).
		Where("id = ?", message.ID).
		Updates(map[string]interface{}{
			"label_ids":         message.LabelIDs,
			"is_unread":         message.IsUnread,
			"is_starred":        message.IsStarred,
			"is_important":      message.IsImportant,
			"category_label_id": message.CategoryLabelID,
			"updated_at":        time.Now(),
		}).Error
}

func (r *messageRepository) ListClassifiable(appUserID string, limit int) ([]*emaildomain.Message, error) {
	var messages []*emaildomain.Message
	err := r.db.Where("app_user_id = ?", appUserID).
		Where("label_ids NOT LIKE ? AND label_ids NOT LIKE ?", `%"SENT"%`, `%"DRAFT"%`).
		Order("received_at DESC").
		Limit(limit).
		Find(&messages).Error
	return messages, err
}

func (r *messageRepository) CountByAccount(gmailAccountID string) (int64, error) {
	var n int64
	err := r.db.Model(&emaildomain.Message{}).Where("gmail_account_id = ?", gmailAccountID).Count(&n).Error
	return n, err
}

func (r *messageRepository) ListLabelState(gmailAccountID string) ([]*emaildomain.Message, error) {
	var messages []*emaildomain.Message
	err := r.db.Select("gmail_message_id", "label_ids").
		Where("gmail_account_id = ?", gmailAccountID).
		Find(&messages).Error
	return messages, err
}
