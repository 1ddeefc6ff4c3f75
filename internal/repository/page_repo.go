package repository

import (
	"context"

	"gorm.io/gorm"

	"storefront_dev_v1/internal/model"
)

// PageRepository 页面仓储接口
type PageRepository interface {
	Create(ctx context.Context, page *model.Page) error
	BatchCreate(ctx context.Context, pages []model.Page) error
	ListByStoreID(ctx context.Context, storeID int64) ([]model.Page, error)
	// ListEnabled footer 导航/法务链接用，只取启用页面
	ListEnabled(ctx context.Context, storeID int64) ([]model.Page, error)
	DeleteByStoreID(ctx context.Context, storeID int64) error
}

type pageRepo struct {
	db *gorm.DB
}

// NewPageRepository 创建页面仓储
func NewPageRepository(db *gorm.DB) PageRepository {
	return &pageRepo{db: db}
}

func (r *pageRepo) Create(ctx context.Context, page *model.Page) error {
	return r.db.WithContext(ctx).Create(page).Error
}

func (r *pageRepo) BatchCreate(ctx context.Context, pages []model.Page) error {
	if len(pages) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&pages).Error
}

func (r *pageRepo) ListByStoreID(ctx context.Context, storeID int64) ([]model.Page, error) {
	var pages []model.Page
	err := r.db.WithContext(ctx).
		Where("store_id = ?", storeID).
		Order("id ASC").
		Find(&pages).Error
	return pages, err
}

func (r *pageRepo) ListEnabled(ctx context.Context, storeID int64) ([]model.Page, error) {
	var pages []model.Page
	err := r.db.WithContext(ctx).
		Where("store_id = ? AND enabled = ?", storeID, true).
		Order("id ASC").
		Find(&pages).Error
	return pages, err
}

func (r *pageRepo) DeleteByStoreID(ctx context.Context, storeID int64) error {
	return r.db.WithContext(ctx).
		Where("store_id = ?", storeID).
		Delete(&model.Page{}).Error
}
