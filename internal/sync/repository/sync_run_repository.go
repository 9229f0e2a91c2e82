package repository

import (
	"time"

	syncdomain "mailsync-backend/internal/sync/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// syncRunRepository implements SyncRunRepository interface
type syncRunRepository struct {
	db *gorm.DB
}

// NewSyncRunRepository creates a new instance of syncRunRepository
func NewSyncRunRepository(db *gorm.DB) SyncRunRepository {
	return &syncRunRepository{
		db: db,
	}
}

func (r *syncRunRepository) Start(run *syncdomain.SyncRun) error {
	now := time.Now()
	run.ID = uuid.New().String()
	run.State = syncdomain.StateReceived
	run.StartedAt = now
	run.CreatedAt = now
	run.UpdatedAt = now
	return r.db.Create(run).Error
}

func (r *syncRunRepository) Transition(id string, state syncdomain.SyncState) error {
	return r.db.Model(&syncdomain.SyncRun{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{"state": state, "updated_at": time.Now()}).Error
}

func (r *syncRunRepository) Finish(run *syncdomain.SyncRun) error {
	now := time.Now()
	run.FinishedAt = &now
	run.UpdatedAt = now
	return r.db.Model(&syncdomain.SyncRun{}).
		Where("id = ?", run.ID).
		Updates(map[string]interface{}{
			"state":          run.State,
			"new_marker":     run.NewMarker,
			"added":          run.Added,
			"deleted":        run.Deleted,
			"labels_updated": run.LabelsUpdated,
			"error":          run.Error,
			"finished_at":    now,
			"updated_at":     now,
		}).Error
}

func (r *syncRunRepository) LatestByAccount(gmailAccountID string, limit int) ([]*syncdomain.SyncRun, error) {
	var runs []*syncdomain.SyncRun
	err := r.db.Where("gmail_account_id = ?", gmailAccountID).
		Order("started_at DESC").
		Limit(limit).
		Find(&runs).Error
	return runs, err
}
