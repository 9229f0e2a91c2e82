package repository

import (
	"errors"
	"time"

	accountdomain "mailsync-backend/internal/account/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// accountRepository implements AccountRepository interface
type accountRepository struct {
	db *gorm.DB
}

// NewAccountRepository creates a new instance of accountRepository
func NewAccountRepository(db *gorm.DB) AccountRepository {
	return &accountRepository{
		db: db,
	}
}

func (r *accountRepository) Create(account *accountdomain.GmailAccount) error {
	if account.ID == "" {
		account.ID = uuid.New().String()
	}
	account.CreatedAt = time.Now()
	account.UpdatedAt = time.Now()
	return r.db.Create(account).Error
}

func (r *accountRepository) FindByID(id string) (*accountdomain.GmailAccount, error) {
	var account accountdomain.GmailAccount
	err := r.db.Where("id = ?", id).First(&account).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &account, nil
}

func (r *accountRepository) FindByGmailAddress(address string) (*accountdomain.GmailAccount, error) {
	var account accountdomain.GmailAccount
	err := r.db.Where("gmail_address = ?", address).First(&account).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &account, nil
}

func (r *accountRepository) FindByOwner(appUserID string) ([]*accountdomain.GmailAccount, error) {
	var accounts []*accountdomain.GmailAccount
	err := r.db.Where("app_user_id = ?", appUserID).Order("created_at ASC").Find(&accounts).Error
	return accounts, err
}

func (r *accountRepository) UpdateTokens(id, accessToken, refreshToken string, expiry time.Time) error {
	updates := map[string]interface{}{
		"access_token": accessToken,
		"token_expiry": expiry,
		"updated_at":   time.Now(),
	}
	// Google omits the refresh token on most refreshes.
	if refreshToken != "" {
		updates["refresh_token"] = refreshToken
	}
	return r.db.Model(&accountdomain.GmailAccount{}).Where("id = ?", id).Updates(updates).Error
}

func (r *accountRepository) AdvanceWatermark(id string, marker uint64) (bool, error) {
	res := r.db.Model(&accountdomain.GmailAccount{}).
		Where("id = ? AND last_history_id < ?", id, marker).
		Updates(map[string]interface{}{
			"last_history_id": marker,
			"updated_at":      time.Now(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *accountRepository) SetWatch(id string, historyID uint64, expiry time.Time) error {
	return r.db.Model(&accountdomain.GmailAccount{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"last_history_id": gorm.Expr("CASE WHEN last_history_id = 0 THEN ? ELSE last_history_id END", historyID),
			"watch_expiry":    expiry,
			"updated_at":      time.Now(),
		}).Error
}

func (r *accountRepository) ClearWatch(id string) error {
	return r.db.Model(&accountdomain.GmailAccount{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"watch_expiry": nil,
			"updated_at":   time.Now(),
		}).Error
}

func (r *accountRepository) ListWatchesExpiringBefore(t time.Time) ([]*accountdomain.GmailAccount, error) {
	var accounts []*accountdomain.GmailAccount
	err := r.db.Where("watch_expiry IS NOT NULL AND watch_expiry < ?", t).Find(&accounts).Error
	return accounts, err
}
