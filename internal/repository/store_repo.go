package repository

import (
	"context"
	"errors"

	"github.com/lib/pq"
	"gorm.io/gorm"

	"storefront_dev_v1/internal/apperr"
	"storefront_dev_v1/internal/model"
)

// ==================== 接口定义 ====================

// StoreRepository 店铺仓储接口
type StoreRepository interface {
	Create(ctx context.Context, store *model.Store) error
	GetByID(ctx context.Context, id int64) (*model.Store, error)
	GetByUUID(ctx context.Context, uuid string) (*model.Store, error)
	// GetByHost 按域名或子域精确匹配，路由热路径
	GetByHost(ctx context.Context, host string) (*model.Store, error)
	Update(ctx context.Context, store *model.Store) error
	UpdateFields(ctx context.Context, id int64, fields map[string]interface{}) error
	UpdateDeploymentStatus(ctx context.Context, id int64, status string) error
	Delete(ctx context.Context, id int64) error

	// 唯一性检查
	DomainExists(ctx context.Context, domain string) (bool, error)
	SubdomainExists(ctx context.Context, subdomain string) (bool, error)

	// 列表查询
	List(ctx context.Context, filter StoreFilter) ([]model.Store, int64, error)
	ListByStatus(ctx context.Context, status string) ([]model.Store, error)
}

// ==================== 过滤条件 ====================

// StoreFilter 店铺过滤条件
type StoreFilter struct {
	Keyword  string // 按名称模糊
	Status   string // "" 表示不筛选
	Page     int
	PageSize int
}

// ==================== 仓储实现 ====================

type storeRepo struct {
	db *gorm.DB
}

// NewStoreRepository 创建店铺仓储
func NewStoreRepository(db *gorm.DB) StoreRepository {
	return &storeRepo{db: db}
}

func (r *storeRepo) Create(ctx context.Context, store *model.Store) error {
	if err := r.db.WithContext(ctx).Create(store).Error; err != nil {
		// postgres 唯一约束冲突翻译成 ConflictError，调用方不用认识 pq
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return apperr.NewConflict("domain", store.Domain)
		}
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return apperr.NewConflict("domain", store.Domain)
		}
		return err
	}
	return nil
}

func (r *storeRepo) GetByID(ctx context.Context, id int64) (*model.Store, error) {
	var store model.Store
	if err := r.db.WithContext(ctx).First(&store, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NewNotFound("店铺", "")
		}
		return nil, err
	}
	return &store, nil
}

func (r *storeRepo) GetByUUID(ctx context.Context, uuid string) (*model.Store, error) {
	var store model.Store
	if err := r.db.WithContext(ctx).Where("uuid = ?", uuid).First(&store).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NewNotFound("店铺", uuid)
		}
		return nil, err
	}
	return &store, nil
}

func (r *storeRepo) GetByHost(ctx context.Context, host string) (*model.Store, error) {
	var store model.Store
	err := r.db.WithContext(ctx).
		Where("domain = ? OR subdomain = ?", host, host).
		First(&store).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NewNotFound("店铺", host)
		}
		return nil, err
	}
	return &store, nil
}

func (r *storeRepo) Update(ctx context.Context, store *model.Store) error {
	return r.db.WithContext(ctx).Save(store).Error
}

func (r *storeRepo) UpdateFields(ctx context.Context, id int64, fields map[string]interface{}) error {
	if len(fields) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Model(&model.Store{}).
		Where("id = ?", id).
		Updates(fields).Error
}

func (r *storeRepo) UpdateDeploymentStatus(ctx context.Context, id int64, status string) error {
	return r.db.WithContext(ctx).
		Model(&model.Store{}).
		Where("id = ?", id).
		Update("deployment_status", status).Error
}

func (r *storeRepo) Delete(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).Delete(&model.Store{}, id).Error
}

func (r *storeRepo) DomainExists(ctx context.Context, domain string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.Store{}).
		Where("domain = ?", domain).
		Count(&count).Error
	return count > 0, err
}

func (r *storeRepo) SubdomainExists(ctx context.Context, subdomain string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.Store{}).
		Where("subdomain = ?", subdomain).
		Count(&count).Error
	return count > 0, err
}

func (r *storeRepo) List(ctx context.Context, filter StoreFilter) ([]model.Store, int64, error) {
	query := r.db.WithContext(ctx).Model(&model.Store{})

	if filter.Keyword != "" {
		query = query.Where("name LIKE ?", "%"+filter.Keyword+"%")
	}
	if filter.Status != "" {
		query = query.Where("deployment_status = ?", filter.Status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if filter.Page > 0 && filter.PageSize > 0 {
		query = query.Offset((filter.Page - 1) * filter.PageSize).Limit(filter.PageSize)
	}

	var stores []model.Store
	if err := query.Order("id DESC").Find(&stores).Error; err != nil {
		return nil, 0, err
	}
	return stores, total, nil
}

func (r *storeRepo) ListByStatus(ctx context.Context, status string) ([]model.Store, error) {
	var stores []model.Store
	err := r.db.WithContext(ctx).
		Where("deployment_status = ?", status).
		Find(&stores).Error
	return stores, err
}
