package dto

import "time"

// LinkAccountRequest carries tokens produced by the OAuth exchange of the client.
type LinkAccountRequest struct {
	AccessToken  string     `json:"access_token" binding:"required"`
	RefreshToken string     `json:"refresh_token" binding:"required"`
	Expiry       *time.Time `json:"expiry"`
}

type AccountResponse struct {
	ID            string     `json:"id"`
	GmailAddress  string     `json:"gmail_address"`
	LastHistoryID uint64     `json:"last_history_id"`
	WatchExpiry   *time.Time `json:"watch_expiry,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}
