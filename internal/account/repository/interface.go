package repository

import (
	"time"

	accountdomain "mailsync-backend/internal/account/domain"
)

// AccountRepository defines persistence for linked Gmail accounts
type AccountRepository interface {
	Create(account *accountdomain.GmailAccount) error
	FindByID(id string) (*accountdomain.GmailAccount, error)
	FindByGmailAddress(address string) (*accountdomain.GmailAccount, error)
	FindByOwner(appUserID string) ([]*accountdomain.GmailAccount, error)
	UpdateTokens(id, accessToken, refreshToken string, expiry time.Time) error
	// AdvanceWatermark moves LastHistoryID forward to marker. It reports false
	// when the stored watermark is already at or past marker.
	AdvanceWatermark(id string, marker uint64) (bool, error)
	// SetWatch records a watch expiry. historyID seeds the watermark only when
	// none is stored yet, so a renewal never skips an unreconciled range.
	SetWatch(id string, historyID uint64, expiry time.Time) error
	ClearWatch(id string) error
	ListWatchesExpiringBefore(t time.Time) ([]*accountdomain.GmailAccount, error)
}
