package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"gorm.io/datatypes"

	"storefront_dev_v1/internal/apperr"
	"storefront_dev_v1/internal/model"
	"storefront_dev_v1/internal/repository"
	"storefront_dev_v1/pkg/shopify"
)

// ProductRenderService 商户可配置的商品详情页渲染器
// elements 和 field_data 都是不可信的商户 JSON，进来先过安全闸
type ProductRenderService struct {
	templateRepo repository.TemplateRepository
	renderSvc    *RenderService
	registry     map[string]SectionRenderer
}

// NewProductRenderService 创建商品页渲染器
func NewProductRenderService(templateRepo repository.TemplateRepository, renderSvc *RenderService) *ProductRenderService {
	return &ProductRenderService{
		templateRepo: templateRepo,
		renderSvc:    renderSvc,
		registry:     defaultSectionRegistry(),
	}
}

// ==================== 入口 ====================

// RenderProductPage 按 handle 找绑定模板（找不到用默认模板），渲染完整页面
func (s *ProductRenderService) RenderProductPage(ctx context.Context, store *model.Store, product *shopify.ProductDTO) (string, error) {
	tpl, fieldData, err := s.resolveTemplate(ctx, product.Handle)
	if err != nil {
		return "", err
	}

	body, err := s.RenderSections(store, product, tpl.Elements, fieldData)
	if err != nil {
		return "", err
	}

	return s.renderSvc.RenderBody(ctx, store, product.Title, body)
}

// resolveTemplate handle 绑定优先，否则默认模板
func (s *ProductRenderService) resolveTemplate(ctx context.Context, handle string) (*model.ProductPageTemplate, datatypes.JSON, error) {
	assignment, err := s.templateRepo.GetAssignmentByHandle(ctx, handle)
	if err == nil {
		tpl, tplErr := s.templateRepo.GetByID(ctx, assignment.TemplateID)
		if tplErr != nil {
			return nil, nil, tplErr
		}
		return tpl, assignment.FieldData, nil
	}
	if !apperr.IsNotFound(err) {
		return nil, nil, err
	}

	tpl, err := s.templateRepo.GetDefault(ctx)
	if err != nil {
		return nil, nil, err
	}
	return tpl, nil, nil
}

// ==================== Section 渲染 ====================

// RenderSections 渲染有序 section 列表拼成 body 片段
//   - elements 或 field_data 原文含篡改特征 → SecurityViolation，整次渲染作废
//   - elements 解析失败 → 该页致命错误（没有安全的默认布局）
//   - field_data 解析失败 → 降级成空 map，页面用默认值照常出
func (s *ProductRenderService) RenderSections(store *model.Store, product *shopify.ProductDTO, rawElements, rawFieldData datatypes.JSON) (string, error) {
	elements, err := normalizeElements(rawElements)
	if err != nil {
		return "", err
	}

	fields, err := s.loadFieldData(rawFieldData)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString(`<main class="product-page">` + "\n")
	for _, el := range elements {
		renderer, ok := s.registry[el.Type]
		if !ok {
			// 未知类型跳过，不中断整页
			log.Printf("未注册的 section 类型，跳过: %q", el.Type)
			continue
		}
		b.WriteString(renderer(&SectionContext{
			Store:    store,
			Product:  product,
			Fields:   fields,
			Settings: el.Settings,
		}))
	}
	b.WriteString("</main>\n")
	return b.String(), nil
}

// normalizeElements 把两种历史格式统一成 SectionElement
// 加载时归一化一次，渲染路径不再按形态分支
func normalizeElements(raw datatypes.JSON) ([]SectionElement, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("elements 为空，无法渲染商品页")
	}
	if sig, bad := containsTamperSignature(string(raw)); bad {
		return nil, apperr.NewSecurityViolation(sig)
	}

	var entries []json.RawMessage
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("elements 解析失败: %w", err)
	}

	elements := make([]SectionElement, 0, len(entries))
	for _, entry := range entries {
		// 旧格式：裸类型名字符串
		var typeName string
		if err := json.Unmarshal(entry, &typeName); err == nil {
			elements = append(elements, SectionElement{Type: typeName})
			continue
		}
		// 新格式：{type, id, settings}
		var el SectionElement
		if err := json.Unmarshal(entry, &el); err != nil {
			return nil, fmt.Errorf("elements 条目格式非法: %w", err)
		}
		if el.Type == "" {
			return nil, fmt.Errorf("elements 条目缺少 type")
		}
		elements = append(elements, el)
	}
	return elements, nil
}

// loadFieldData 篡改特征和 elements 同等对待：按攻击处理，整次渲染作废
// 只有解析失败才算脏数据，降级为空 map
func (s *ProductRenderService) loadFieldData(raw datatypes.JSON) (map[string]string, error) {
	if len(raw) == 0 {
		return map[string]string{}, nil
	}
	if sig, bad := containsTamperSignature(string(raw)); bad {
		return nil, apperr.NewSecurityViolation(sig)
	}

	var parsed map[string]interface{}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		log.Printf("field_data 解析失败，降级为默认值: %v", err)
		return map[string]string{}, nil
	}
	return sanitizeFields(parsed), nil
}
