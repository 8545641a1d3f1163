package repos

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/mobatt/mobatt-backend/internal/logger"
	"github.com/mobatt/mobatt-backend/internal/types"
)

type FeatureFlagRepo interface {
	Get(ctx context.Context, tx *gorm.DB, name string) (bool, error)
	Set(ctx context.Context, tx *gorm.DB, name string, enabled bool) error
}

type featureFlagRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewFeatureFlagRepo(db *gorm.DB, baseLog *logger.Logger) FeatureFlagRepo {
	return &featureFlagRepo{db: db, log: baseLog.With("repo", "FeatureFlagRepo")}
}

// Get resolves a flag by name. Unknown flags are disabled.
func (r *featureFlagRepo) Get(ctx context.Context, tx *gorm.DB, name string) (bool, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var flag types.FeatureFlag
	if err := transaction.WithContext(ctx).Where("name = ?", name).First(&flag).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, err
	}
	return flag.Enabled, nil
}

func (r *featureFlagRepo) Set(ctx context.Context, tx *gorm.DB, name string, enabled bool) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	flag := types.FeatureFlag{Name: name, Enabled: enabled, UpdatedAt: time.Now().UTC()}
	return transaction.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "name"}},
			DoUpdates: clause.AssignmentColumns([]string{"enabled", "updated_at"}),
		}).
		Create(&flag).Error
}
