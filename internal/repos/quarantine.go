package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mobatt/mobatt-backend/internal/logger"
	"github.com/mobatt/mobatt-backend/internal/types"
)

type QuarantineRepo interface {
	Create(ctx context.Context, tx *gorm.DB, rec *types.QuarantineRecord) error
	GetByCollection(ctx context.Context, tx *gorm.DB, collection string) ([]*types.QuarantineRecord, error)
}

type quarantineRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewQuarantineRepo(db *gorm.DB, baseLog *logger.Logger) QuarantineRepo {
	return &quarantineRepo{db: db, log: baseLog.With("repo", "QuarantineRepo")}
}

func (r *quarantineRepo) Create(ctx context.Context, tx *gorm.DB, rec *types.QuarantineRecord) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if rec == nil {
		return nil
	}
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	return transaction.WithContext(ctx).Create(rec).Error
}

func (r *quarantineRepo) GetByCollection(ctx context.Context, tx *gorm.DB, collection string) ([]*types.QuarantineRecord, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var recs []*types.QuarantineRecord
	if collection == "" {
		return recs, nil
	}
	if err := transaction.WithContext(ctx).Where("collection = ?", collection).Find(&recs).Error; err != nil {
		return nil, err
	}
	return recs, nil
}
