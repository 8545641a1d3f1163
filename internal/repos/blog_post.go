package repos

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/mobatt/mobatt-backend/internal/logger"
	"github.com/mobatt/mobatt-backend/internal/types"
)

type BlogPostRepo interface {
	Create(ctx context.Context, tx *gorm.DB, post *types.BlogPost) error
	GetAll(ctx context.Context, tx *gorm.DB) ([]*types.BlogPost, error)
	GetBySlug(ctx context.Context, tx *gorm.DB, slug string) (*types.BlogPost, error)
	GetByItemID(ctx context.Context, tx *gorm.DB, itemID string) ([]*types.BlogPost, error)
	UpdateFields(ctx context.Context, tx *gorm.DB, id string, updates map[string]interface{}) error
}

type blogPostRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewBlogPostRepo(db *gorm.DB, baseLog *logger.Logger) BlogPostRepo {
	return &blogPostRepo{db: db, log: baseLog.With("repo", "BlogPostRepo")}
}

func (r *blogPostRepo) Create(ctx context.Context, tx *gorm.DB, post *types.BlogPost) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if post == nil {
		return nil
	}
	return transaction.WithContext(ctx).Create(post).Error
}

func (r *blogPostRepo) GetAll(ctx context.Context, tx *gorm.DB) ([]*types.BlogPost, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var posts []*types.BlogPost
	if err := transaction.WithContext(ctx).Order("created_at DESC").Find(&posts).Error; err != nil {
		return nil, err
	}
	return posts, nil
}

func (r *blogPostRepo) GetBySlug(ctx context.Context, tx *gorm.DB, slug string) (*types.BlogPost, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if slug == "" {
		return nil, nil
	}
	var post types.BlogPost
	err := transaction.WithContext(ctx).Where("slug = ?", slug).First(&post).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &post, nil
}

func (r *blogPostRepo) GetByItemID(ctx context.Context, tx *gorm.DB, itemID string) ([]*types.BlogPost, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var posts []*types.BlogPost
	if itemID == "" {
		return posts, nil
	}
	if err := transaction.WithContext(ctx).Where("item_id = ?", itemID).Find(&posts).Error; err != nil {
		return nil, err
	}
	return posts, nil
}

func (r *blogPostRepo) UpdateFields(ctx context.Context, tx *gorm.DB, id string, updates map[string]interface{}) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if id == "" || len(updates) == 0 {
		return nil
	}
	return transaction.WithContext(ctx).
		Model(&types.BlogPost{}).
		Where("id = ?", id).
		Updates(updates).Error
}
