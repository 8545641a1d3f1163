package repos

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/mobatt/mobatt-backend/internal/logger"
	"github.com/mobatt/mobatt-backend/internal/types"
)

type CatalogItemRepo interface {
	GetByID(ctx context.Context, tx *gorm.DB, id string) (*types.CatalogItem, error)
	GetAll(ctx context.Context, tx *gorm.DB) ([]*types.CatalogItem, error)
	Create(ctx context.Context, tx *gorm.DB, item *types.CatalogItem) error
	Save(ctx context.Context, tx *gorm.DB, item *types.CatalogItem) error
	UpdateFields(ctx context.Context, tx *gorm.DB, id string, updates map[string]interface{}) error
}

type catalogItemRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewCatalogItemRepo(db *gorm.DB, baseLog *logger.Logger) CatalogItemRepo {
	return &catalogItemRepo{db: db, log: baseLog.With("repo", "CatalogItemRepo")}
}

func (r *catalogItemRepo) GetByID(ctx context.Context, tx *gorm.DB, id string) (*types.CatalogItem, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if id == "" {
		return nil, nil
	}
	var item types.CatalogItem
	err := transaction.WithContext(ctx).Where("id = ?", id).First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *catalogItemRepo) GetAll(ctx context.Context, tx *gorm.DB) ([]*types.CatalogItem, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var items []*types.CatalogItem
	if err := transaction.WithContext(ctx).Order("id ASC").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *catalogItemRepo) Create(ctx context.Context, tx *gorm.DB, item *types.CatalogItem) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if item == nil {
		return nil
	}
	return transaction.WithContext(ctx).Create(item).Error
}

func (r *catalogItemRepo) Save(ctx context.Context, tx *gorm.DB, item *types.CatalogItem) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if item == nil || item.ID == "" {
		return nil
	}
	return transaction.WithContext(ctx).Save(item).Error
}

func (r *catalogItemRepo) UpdateFields(ctx context.Context, tx *gorm.DB, id string, updates map[string]interface{}) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if id == "" || len(updates) == 0 {
		return nil
	}
	return transaction.WithContext(ctx).
		Model(&types.CatalogItem{}).
		Where("id = ?", id).
		Updates(updates).Error
}
