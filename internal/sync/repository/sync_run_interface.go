package repository

import (
	syncdomain "mailsync-backend/internal/sync/domain"
)

// SyncRunRepository defines the interface for sync run bookkeeping
type SyncRunRepository interface {
	// Start creates a run in the received state
	Start(run *syncdomain.SyncRun) error
	// Transition moves a run to state without finishing it
	Transition(id string, state syncdomain.SyncState) error
	// Finish stores the terminal state and counters of a run
	Finish(run *syncdomain.SyncRun) error
	// LatestByAccount returns the most recent runs of an account, newest first
	LatestByAccount(gmailAccountID string, limit int) ([]*syncdomain.SyncRun, error)
}
