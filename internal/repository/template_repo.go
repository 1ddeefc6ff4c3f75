package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"storefront_dev_v1/internal/apperr"
	"storefront_dev_v1/internal/model"
)

// TemplateRepository 商品页模板 + 绑定关系仓储
type TemplateRepository interface {
	GetByID(ctx context.Context, id int64) (*model.ProductPageTemplate, error)
	GetDefault(ctx context.Context) (*model.ProductPageTemplate, error)
	// SetDefault 全局最多一个默认模板，事务内先清后设
	SetDefault(ctx context.Context, id int64) error
	List(ctx context.Context) ([]model.ProductPageTemplate, error)

	// 绑定关系（admin 商品编辑器写入，渲染侧只读）
	GetAssignmentByHandle(ctx context.Context, handle string) (*model.TemplateAssignment, error)
	ListAssignments(ctx context.Context, templateID int64) ([]model.TemplateAssignment, error)
	// AllAssignments 站点生成时要为每个绑定的 handle 出静态商品页
	AllAssignments(ctx context.Context) ([]model.TemplateAssignment, error)
}

type templateRepo struct {
	db *gorm.DB
}

// NewTemplateRepository 创建模板仓储
func NewTemplateRepository(db *gorm.DB) TemplateRepository {
	return &templateRepo{db: db}
}

func (r *templateRepo) GetByID(ctx context.Context, id int64) (*model.ProductPageTemplate, error) {
	var tpl model.ProductPageTemplate
	if err := r.db.WithContext(ctx).First(&tpl, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NewNotFound("模板", "")
		}
		return nil, err
	}
	return &tpl, nil
}

func (r *templateRepo) GetDefault(ctx context.Context) (*model.ProductPageTemplate, error) {
	var tpl model.ProductPageTemplate
	err := r.db.WithContext(ctx).Where("is_default = ?", true).First(&tpl).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NewNotFound("默认模板", "")
		}
		return nil, err
	}
	return &tpl, nil
}

func (r *templateRepo) SetDefault(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&model.ProductPageTemplate{}).
			Where("is_default = ?", true).
			Update("is_default", false).Error; err != nil {
			return err
		}
		return tx.Model(&model.ProductPageTemplate{}).
			Where("id = ?", id).
			Update("is_default", true).Error
	})
}

func (r *templateRepo) List(ctx context.Context) ([]model.ProductPageTemplate, error) {
	var tpls []model.ProductPageTemplate
	err := r.db.WithContext(ctx).Order("id ASC").Find(&tpls).Error
	return tpls, err
}

func (r *templateRepo) GetAssignmentByHandle(ctx context.Context, handle string) (*model.TemplateAssignment, error) {
	var assignment model.TemplateAssignment
	err := r.db.WithContext(ctx).
		Where("product_handle = ?", handle).
		First(&assignment).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NewNotFound("模板绑定", handle)
		}
		return nil, err
	}
	return &assignment, nil
}

func (r *templateRepo) AllAssignments(ctx context.Context) ([]model.TemplateAssignment, error) {
	var assignments []model.TemplateAssignment
	err := r.db.WithContext(ctx).
		Order("product_handle ASC").
		Find(&assignments).Error
	return assignments, err
}

func (r *templateRepo) ListAssignments(ctx context.Context, templateID int64) ([]model.TemplateAssignment, error) {
	var assignments []model.TemplateAssignment
	err := r.db.WithContext(ctx).
		Where("template_id = ?", templateID).
		Find(&assignments).Error
	return assignments, err
}
