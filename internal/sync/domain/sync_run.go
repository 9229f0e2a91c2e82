package domain

import "time"

// SyncState is a step of the per-job state machine.
type SyncState string

const (
	StateReceived          SyncState = "received"
	StateFetching          SyncState = "fetching"
	StateNormalizing       SyncState = "normalizing"
	StatePersisting        SyncState = "persisting"
	StateClassifying       SyncState = "classifying"
	StateWatermarkAdvanced SyncState = "watermark_advanced"
	StateSkipped           SyncState = "skipped"
	StateFailed            SyncState = "failed"
)

// SyncRun records the outcome of one sync unit of work.
type SyncRun struct {
	ID             string     `json:"id" gorm:"primaryKey"`
	GmailAccountID string     `json:"gmail_account_id" gorm:"index;not null"`
	Kind           JobKind    `json:"kind"`
	State          SyncState  `json:"state"`
	StartMarker    uint64     `json:"start_marker"`
	NewMarker      uint64     `json:"new_marker"`
	Added          int        `json:"added"`
	Deleted        int        `json:"deleted"`
	LabelsUpdated  int        `json:"labels_updated"`
	Error          string     `json:"error,omitempty" gorm:"type:text"`
	StartedAt      time.Time  `json:"started_at"`
	FinishedAt     *time.Time `json:"finished_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}
