package repos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mobatt/mobatt-backend/internal/logger"
	"github.com/mobatt/mobatt-backend/internal/types"
)

// AuditRepo persists the write-once audit trail of quality sweeps.
type AuditRepo interface {
	CreateRun(ctx context.Context, tx *gorm.DB, run *types.AuditRun) error
	FinishRun(ctx context.Context, tx *gorm.DB, id uuid.UUID, updates map[string]interface{}) error
	CreateIssues(ctx context.Context, tx *gorm.DB, issues []*types.AuditIssue) error
}

type auditRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewAuditRepo(db *gorm.DB, baseLog *logger.Logger) AuditRepo {
	return &auditRepo{db: db, log: baseLog.With("repo", "AuditRepo")}
}

func (r *auditRepo) CreateRun(ctx context.Context, tx *gorm.DB, run *types.AuditRun) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if run == nil {
		return nil
	}
	if run.ID == uuid.Nil {
		run.ID = uuid.New()
	}
	return transaction.WithContext(ctx).Create(run).Error
}

func (r *auditRepo) FinishRun(ctx context.Context, tx *gorm.DB, id uuid.UUID, updates map[string]interface{}) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil {
		return nil
	}
	if updates == nil {
		updates = map[string]interface{}{}
	}
	if _, ok := updates["finished_at"]; !ok {
		updates["finished_at"] = time.Now().UTC()
	}
	return transaction.WithContext(ctx).
		Model(&types.AuditRun{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *auditRepo) CreateIssues(ctx context.Context, tx *gorm.DB, issues []*types.AuditIssue) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if len(issues) == 0 {
		return nil
	}
	for _, issue := range issues {
		if issue.ID == uuid.Nil {
			issue.ID = uuid.New()
		}
	}
	return transaction.WithContext(ctx).Create(&issues).Error
}
