package repos

import (
	"context"

	"gorm.io/gorm"

	"github.com/mobatt/mobatt-backend/internal/logger"
	"github.com/mobatt/mobatt-backend/internal/types"
)

type SourceItemRepo interface {
	CreateBatch(ctx context.Context, tx *gorm.DB, items []*types.SourceItem) error
	GetByExternalID(ctx context.Context, tx *gorm.DB, source, externalID string) ([]*types.SourceItem, error)
}

type sourceItemRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewSourceItemRepo(db *gorm.DB, baseLog *logger.Logger) SourceItemRepo {
	return &sourceItemRepo{db: db, log: baseLog.With("repo", "SourceItemRepo")}
}

func (r *sourceItemRepo) CreateBatch(ctx context.Context, tx *gorm.DB, items []*types.SourceItem) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if len(items) == 0 {
		return nil
	}
	return transaction.WithContext(ctx).CreateInBatches(items, 200).Error
}

func (r *sourceItemRepo) GetByExternalID(ctx context.Context, tx *gorm.DB, source, externalID string) ([]*types.SourceItem, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var items []*types.SourceItem
	if err := transaction.WithContext(ctx).
		Where("source = ? AND external_id = ?", source, externalID).
		Order("fetched_at ASC").
		Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}
