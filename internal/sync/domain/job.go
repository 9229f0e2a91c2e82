package domain

import (
	"bytes"
	"fmt"
	"strconv"
)

type JobKind string

const (
	JobIncremental JobKind = "incremental"
	JobFull        JobKind = "full"
)

// SyncJob is the queue payload for one unit of sync work on one account.
type SyncJob struct {
	Kind           JobKind   `json:"kind"`
	AppUserID      string    `json:"appUserId"`
	GmailAccountID string    `json:"gmailAccountId"`
	StartMarker    HistoryID `json:"startHistoryId"`
	NewMarker      HistoryID `json:"newHistoryId"`
	MaxMessages    int       `json:"maxMessages,omitempty"`
}

// HistoryID is a Gmail history id. Gmail sends it as a JSON number in push
// payloads and as a string elsewhere, so both forms are accepted.
type HistoryID uint64

func (h *HistoryID) UnmarshalJSON(b []byte) error {
	b = bytes.Trim(bytes.TrimSpace(b), `"`)
	if len(b) == 0 || string(b) == "null" {
		*h = 0
		return nil
	}
	v, err := strconv.ParseUint(string(b), 10, 64)
	if err != nil {
		return fmt.Errorf("invalid history id %q: %w", b, err)
	}
	*h = HistoryID(v)
	return nil
}

// PushNotification is the decoded body of a Gmail push message.
type PushNotification struct {
	EmailAddress string    `json:"emailAddress"`
	HistoryID    HistoryID `json:"historyId"`
}
