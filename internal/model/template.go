package model

import (
	"gorm.io/datatypes"
)

// ProductPageTemplate 商品详情页模板
// Elements 是有序 section 列表，两种历史格式并存：
//   - 旧格式：裸字符串 "ATCButton"
//   - 新格式：{"type":"ATCButton","id":"atc-1","settings":{...}}
//
// 渲染层加载时统一归一化，存储层不做迁移
type ProductPageTemplate struct {
	BaseModel
	Name     string         `gorm:"size:100;not null"`
	Elements datatypes.JSON `gorm:"type:jsonb"`
	// 全局最多一个默认模板，由仓储层在设置时清掉其他行的标记
	IsDefault bool `gorm:"default:false;index"`
}

// TemplateAssignment 模板与商品 handle 的绑定关系
// 每个 handle 最多绑定一个模板；FieldData 是商户填写的覆盖值，
// key 形如 template_<ElementType>_<fieldName>，渲染前必须过安全清洗
type TemplateAssignment struct {
	BaseModel
	TemplateID    int64          `gorm:"not null;index"`
	ProductHandle string         `gorm:"size:255;not null;uniqueIndex"`
	FieldData     datatypes.JSON `gorm:"type:jsonb"`
}
