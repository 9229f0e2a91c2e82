package domain

import (
	"errors"
	"time"
)

// GmailAccount is one linked Gmail mailbox. LastHistoryID is the sync watermark:
// the newest history id already reconciled into the local store. It never decreases.
type GmailAccount struct {
	ID            string     `json:"id" gorm:"primaryKey"`
	AppUserID     string     `json:"app_user_id" gorm:"index;not null"`
	GmailAddress  string     `json:"gmail_address" gorm:"uniqueIndex;not null"`
	AccessToken   string     `json:"-"`
	RefreshToken  string     `json:"-"`
	TokenExpiry   time.Time  `json:"-"`
	LastHistoryID uint64     `json:"last_history_id" gorm:"not null;default:0"`
	WatchExpiry   *time.Time `json:"watch_expiry,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// WatchActive reports whether a recorded watch is still valid at now.
func (a *GmailAccount) WatchActive(now time.Time) bool {
	return a.WatchExpiry != nil && a.WatchExpiry.After(now)
}

// ErrAccountNotFound is returned when an account id or address does not resolve
// to a linked account of the caller.
var ErrAccountNotFound = errors.New("gmail account not found")
