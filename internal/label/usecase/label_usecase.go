package usecase

import (
	"errors"
	"strings"

	labeldomain "mailsync-backend/internal/label/domain"
	"mailsync-backend/internal/label/dto"
	"mailsync-backend/internal/label/repository"

	"github.com/rs/zerolog"
)

var ErrLabelNameRequired = errors.New("label name is required")

// Backfiller schedules classification of existing mail for a new label.
type Backfiller interface {
	DispatchNewLabel(appUserID string, label *labeldomain.UserLabel, limit int) bool
}

type LabelUsecase interface {
	List(appUserID string) ([]*labeldomain.UserLabel, error)
	// Create stores the label and queues a backfill over recent messages.
	Create(appUserID string, req *dto.CreateLabelRequest) (*labeldomain.UserLabel, error)
	// EnsureDefaults creates the default labels when the owner has none.
	EnsureDefaults(appUserID string) error
}

type labelUsecase struct {
	repo          repository.LabelRepository
	backfill      Backfiller
	backfillLimit int
	log           zerolog.Logger
}

func NewLabelUsecase(repo repository.LabelRepository, backfill Backfiller, backfillLimit int, log zerolog.Logger) LabelUsecase {
	return &labelUsecase{
		repo:          repo,
		backfill:      backfill,
		backfillLimit: backfillLimit,
		log:           log,
	}
}

func (u *labelUsecase) List(appUserID string) ([]*labeldomain.UserLabel, error) {
	return u.repo.FindByOwner(appUserID)
}

func (u *labelUsecase) Create(appUserID string, req *dto.CreateLabelRequest) (*labeldomain.UserLabel, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, ErrLabelNameRequired
	}
	label := &labeldomain.UserLabel{
		AppUserID: appUserID,
		Name:      name,
		Color:     req.Color,
		Prompt:    strings.TrimSpace(req.Prompt),
	}
	if err := u.repo.Create(label); err != nil {
		return nil, err
	}

	if !u.backfill.DispatchNewLabel(appUserID, label, u.backfillLimit) {
		u.log.Warn().Str("label_id", label.ID).Msg("could not queue backfill for new label")
	}
	return label, nil
}

func (u *labelUsecase) EnsureDefaults(appUserID string) error {
	n, err := u.repo.CountByOwner(appUserID)
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	for _, def := range labeldomain.DefaultLabels {
		label := def
		label.AppUserID = appUserID
		if err := u.repo.Create(&label); err != nil && !errors.Is(err, repository.ErrDuplicateLabel) {
			return err
		}
	}
	u.log.Info().Str("app_user_id", appUserID).Int("count", len(labeldomain.DefaultLabels)).Msg("created default labels")
	return nil
}
