package repos

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/mobatt/mobatt-backend/internal/logger"
	"github.com/mobatt/mobatt-backend/internal/types"
)

type MonitoredItemRepo interface {
	GetByID(ctx context.Context, tx *gorm.DB, id string) (*types.MonitoredItem, error)
	GetAll(ctx context.Context, tx *gorm.DB) ([]*types.MonitoredItem, error)
	// UpsertMerge writes only the listed columns, creating the row when it
	// does not exist. Columns the stage does not own are preserved.
	UpsertMerge(ctx context.Context, tx *gorm.DB, item *types.MonitoredItem, columns []string) error
	UpdateFields(ctx context.Context, tx *gorm.DB, id string, updates map[string]interface{}) error
}

type monitoredItemRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewMonitoredItemRepo(db *gorm.DB, baseLog *logger.Logger) MonitoredItemRepo {
	return &monitoredItemRepo{db: db, log: baseLog.With("repo", "MonitoredItemRepo")}
}

func (r *monitoredItemRepo) GetByID(ctx context.Context, tx *gorm.DB, id string) (*types.MonitoredItem, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if id == "" {
		return nil, nil
	}
	var item types.MonitoredItem
	err := transaction.WithContext(ctx).Where("id = ?", id).First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *monitoredItemRepo) GetAll(ctx context.Context, tx *gorm.DB) ([]*types.MonitoredItem, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var items []*types.MonitoredItem
	if err := transaction.WithContext(ctx).Order("id ASC").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *monitoredItemRepo) UpsertMerge(ctx context.Context, tx *gorm.DB, item *types.MonitoredItem, columns []string) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if item == nil || item.ID == "" || len(columns) == 0 {
		return nil
	}
	return transaction.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns(columns),
		}).
		Create(item).Error
}

func (r *monitoredItemRepo) UpdateFields(ctx context.Context, tx *gorm.DB, id string, updates map[string]interface{}) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if id == "" || len(updates) == 0 {
		return nil
	}
	return transaction.WithContext(ctx).
		Model(&types.MonitoredItem{}).
		Where("id = ?", id).
		Updates(updates).Error
}
