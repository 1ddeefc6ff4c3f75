package shopify

// ==========================================
// DTO: 用于接收 Shopify Storefront API 返回的原始 JSON 数据
// ==========================================

// VariantDTO 商品变体
type VariantDTO struct {
	ID             int64   `json:"id"`
	Title          string  `json:"title"`
	Price          string  `json:"price"`
	CompareAtPrice string  `json:"compare_at_price"`
	Available      bool    `json:"available"`
	Sku            string  `json:"sku"`
	Grams          int     `json:"grams"`
	Weight         float64 `json:"weight"`
	WeightUnit     string  `json:"weight_unit"`
	Position       int     `json:"position"`
}

// ImageDTO 商品图片
type ImageDTO struct {
	ID       int64  `json:"id"`
	Src      string `json:"src"`
	Alt      string `json:"alt"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
	Position int    `json:"position"`
}

// ProductDTO 单个商品结构 (对应 /products/<handle>.json 的 product 字段)
type ProductDTO struct {
	ID          int64        `json:"id"`
	Title       string       `json:"title"`
	Handle      string       `json:"handle"`
	BodyHTML    string       `json:"body_html"`
	Vendor      string       `json:"vendor"`
	ProductType string       `json:"product_type"`
	Tags        string       `json:"tags"`
	PublishedAt string       `json:"published_at"`
	Variants    []VariantDTO `json:"variants"`
	Images      []ImageDTO   `json:"images"`
}

// ProductResp 商品详情响应外层
type ProductResp struct {
	Product ProductDTO `json:"product"`
}

// PrimaryVariant 取第一个变体，商品页价格/库存判断都以它为准
// 没有变体时返回 nil，渲染层按缺货处理
func (p *ProductDTO) PrimaryVariant() *VariantDTO {
	if len(p.Variants) == 0 {
		return nil
	}
	return &p.Variants[0]
}

// FirstImage 取第一张图，没有则返回空串
func (p *ProductDTO) FirstImage() string {
	if len(p.Images) == 0 {
		return ""
	}
	return p.Images[0].Src
}
