package repository

import (
	labeldomain "mailsync-backend/internal/label/domain"
)

// LabelRepository defines persistence for user labels and their message associations
type LabelRepository interface {
	// FindByOwner returns labels in a stable order (created_at, id).
	FindByOwner(appUserID string) ([]*labeldomain.UserLabel, error)
	FindByID(id string) (*labeldomain.UserLabel, error)
	Create(label *labeldomain.UserLabel) error
	CountByOwner(appUserID string) (int64, error)
	// AddAssociations inserts pairs, ignoring ones that already exist.
	AddAssociations(pairs []labeldomain.MessageLabel) error
}
