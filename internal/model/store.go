package model

import (
	"gorm.io/datatypes"
)

// 部署状态常量
const (
	DeployStatusPending   = "pending"   // 已创建，未部署
	DeployStatusDeploying = "deploying" // 部署中
	DeployStatusDeployed  = "deployed"  // 已上线，路由可对外服务
	DeployStatusFailed    = "failed"    // 部署失败
)

// 页面类型常量
const (
	PageTypeHome     = "home"
	PageTypeProducts = "products"
	PageTypeAbout    = "about"
	PageTypeContact  = "contact"
	// legal-* 页面类型由法务索引动态生成，如 legal-privacy
	PageTypeLegalPrefix = "legal-"
)

// Store 商户店铺配置 + 生成站点的根记录
type Store struct {
	BaseModel
	// 1. 核心身份
	UUID      string `gorm:"size:36;uniqueIndex"` // 对外引用用 uuid，不暴露自增 ID
	Name      string `gorm:"size:100;not null"`
	Domain    string `gorm:"size:255;uniqueIndex"` // 客户自有域名，全局唯一
	Subdomain string `gorm:"size:100;uniqueIndex"` // 平台分配的子域，全局唯一

	// 2. 主题
	ThemePrimaryColor    string `gorm:"size:20;default:'#1a1a2e'"`
	ThemeSecondaryColor  string `gorm:"size:20;default:'#e94560'"`
	ThemeBackgroundColor string `gorm:"size:20;default:'#ffffff'"`

	// 3. 地区 / 语言 / 货币
	Country  string `gorm:"size:5;not null"`
	Language string `gorm:"size:5;not null"` // 两位语言码，同时决定 legal 页面语言
	Currency string `gorm:"size:10;not null"`

	// 4. 部署状态
	// 路由只看这个字段判断可服务性，不探测文件是否存在
	DeploymentStatus string `gorm:"size:20;index;default:'pending'"`

	// 5. 启用的页面类型列表，如 ["home","products","about","contact"]
	SelectedPages datatypes.JSON `gorm:"type:jsonb"`

	// 6. 联系方式（footer / 模板变量用）
	ContactEmail   string `gorm:"size:100"`
	ContactPhone   string `gorm:"size:50"`
	CompanyAddress string `gorm:"size:255"`

	// 7. 社交链接
	FacebookURL  string `gorm:"size:255"`
	InstagramURL string `gorm:"size:255"`
	TiktokURL    string `gorm:"size:255"`

	// 8. 关联页面 (Has Many)
	Pages []Page `gorm:"foreignKey:StoreID;constraint:OnDelete:CASCADE"`
}

// Page 店铺的一个内容单元（home/products/about/contact/legal-*）
type Page struct {
	BaseModel
	StoreID  int64  `gorm:"index;not null"`
	PageType string `gorm:"size:30;not null"`
	Slug     string `gorm:"size:100;not null"`
	Language string `gorm:"size:5"`
	Title    string `gorm:"size:255"`
	// 有序内容块，格式 [{"type":"hero","heading":"...","text":"..."}, ...]
	ContentBlocks datatypes.JSON `gorm:"type:jsonb"`
	Enabled       bool           `gorm:"default:true"`
}
