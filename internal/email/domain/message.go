package domain

import (
	"strings"
	"time"
)

// System label ids used by Gmail.
const (
	LabelUnread    = "UNREAD"
	LabelStarred   = "STARRED"
	LabelImportant = "IMPORTANT"
	LabelSent      = "SENT"
	LabelDraft     = "DRAFT"
	LabelTrash     = "TRASH"
	LabelSpam      = "SPAM"

	CategoryPrefix = "CATEGORY_"
)

// Message is the local mirror of one remote Gmail message.
// IsUnread, IsStarred and IsImportant are derived from LabelIDs and must only be
// changed through DeriveFlags or ApplyLabelDelta.
type Message struct {
	ID              string      `json:"id" gorm:"primaryKey"`
	AppUserID       string      `json:"app_user_id" gorm:"index;not null"`
	GmailAccountID  string      `json:"gmail_account_id" gorm:"uniqueIndex:idx_account_message;not null"`
	GmailMessageID  string      `json:"gmail_message_id" gorm:"uniqueIndex:idx_account_message;not null"`
	GmailThreadID   string      `json:"gmail_thread_id" gorm:"index"`
	Subject         string      `json:"subject"`
	FromAddress     string      `json:"from_address"`
	FromName        string      `json:"from_name"`
	ToAddresses     StringArray `json:"to_addresses" gorm:"type:text"`
	SentAt          *time.Time  `json:"sent_at,omitempty"`
	ReceivedAt      time.Time   `json:"received_at" gorm:"index"`
	Snippet         string      `json:"snippet"`
	BodyPlainText   string      `json:"body_plain_text" gorm:"type:text"`
	BodyHTML        string      `json:"body_html" gorm:"type:text"`
	IsUnread        bool        `json:"is_unread"`
	IsStarred       bool        `json:"is_starred"`
	IsImportant     bool        `json:"is_important"`
	CategoryLabelID string      `json:"gmail_category_label_id,omitempty"`
	HasAttachments  bool        `json:"has_attachments"`
	LabelIDs        StringArray `json:"label_ids" gorm:"type:text"`
	CreatedAt       time.Time   `json:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at"`
}

// DeriveFlags recomputes the boolean flags and category from LabelIDs.
func (m *Message) DeriveFlags() {
	m.IsUnread = m.LabelIDs.Contains(LabelUnread)
	m.IsStarred = m.LabelIDs.Contains(LabelStarred)
	m.IsImportant = m.LabelIDs.Contains(LabelImportant)
	m.CategoryLabelID = ""
	for _, l := range m.LabelIDs {
		if strings.HasPrefix(l, CategoryPrefix) {
			m.CategoryLabelID = l
			break
		}
	}
}

// IsSystem reports whether the message is outgoing mail that is never classified.
func (m *Message) IsSystem() bool {
	return m.LabelIDs.Contains(LabelSent) || m.LabelIDs.Contains(LabelDraft)
}

// ApplyLabelDelta adds then removes label ids, recomputes the derived flags and
// reports whether IsStarred or IsUnread changed. Only those two flags decide
// whether the new state has to be written back.
func (m *Message) ApplyLabelDelta(added, removed []string) bool {
	prevStarred, prevUnread := m.IsStarred, m.IsUnread

	seen := make(map[string]bool, len(m.LabelIDs)+len(added))
	next := make(StringArray, 0, len(m.LabelIDs)+len(added))
	for _, l := range m.LabelIDs {
		if !seen[l] {
			seen[l] = true
			next = append(next, l)
		}
	}
	for _, l := range added {
		if !seen[l] {
			seen[l] = true
			next = append(next, l)
		}
	}

	drop := make(map[string]bool, len(removed))
	for _, l := range removed {
		drop[l] = true
	}
	kept := next[:0]
	for _, l := range next {
		if !drop[l] {
			kept = append(kept, l)
		}
	}

	m.LabelIDs = kept
	m.DeriveFlags()
	return m.IsStarred != prevStarred || m.IsUnread != prevUnread
}

// FilterClassifiable drops SENT and DRAFT messages.
func FilterClassifiable(messages []*Message) []*Message {
	out := make([]*Message, 0, len(messages))
	for _, m := range messages {
		if m != nil && !m.IsSystem() {
			out = append(out, m)
		}
	}
	return out
}
