package repository

import (
	"errors"
	"time"

	labeldomain "mailsync-backend/internal/label/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const uniqueViolation = "23505"

var ErrDuplicateLabel = errors.New("label with this name already exists")

// labelRepository implements LabelRepository interface
type labelRepository struct {
	db *gorm.DB
}

// NewLabelRepository creates a new instance of labelRepository
func NewLabelRepository(db *gorm.DB) LabelRepository {
	return &labelRepository{
		db: db,
	}
}

func (r *labelRepository) FindByOwner(appUserID string) ([]*labeldomain.UserLabel, error) {
	var labels []*labeldomain.UserLabel
	err := r.db.Where("app_user_id = ?", appUserID).Order("created_at ASC, id ASC").Find(&labels).Error
	return labels, err
}

func (r *labelRepository) FindByID(id string) (*labeldomain.UserLabel, error) {
	var label labeldomain.UserLabel
	err := r.db.Where("id = ?", id).First(&label).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &label, nil
}

func (r *labelRepository) Create(label *labeldomain.UserLabel) error {
	label.ID = uuid.New().String()
	label.CreatedAt = time.Now()
	label.UpdatedAt = label.CreatedAt
	if err := r.db.Create(label).Error; err != nil {
		if IsUniqueViolation(err) {
			return ErrDuplicateLabel
		}
		return err
	}
	return nil
}

func (r *labelRepository) CountByOwner(appUserID string) (int64, error) {
	var n int64
	err := r.db.Model(&labeldomain.UserLabel{}).Where("app_user_id = ?", appUserID).Count(&n).Error
	return n, err
}

func (r *labelRepository) AddAssociations(pairs []labeldomain.MessageLabel) error {
	if len(pairs) == 0 {
		return nil
	}
	now := time.Now()
	for i := range pairs {
		pairs[i].CreatedAt = now
	}
	err := r.db.Clauses(clause.OnConflict{DoNothing: true}).Create(&pairs).Error
	if err != nil && IsUniqueViolation(err) {
		return nil
	}
	return err
}

// IsUniqueViolation reports whether err is a Postgres unique constraint violation.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
