package service

import (
	"fmt"
	"log"
	"regexp"
	"strconv"
	"strings"

	"storefront_dev_v1/internal/model"
	"storefront_dev_v1/pkg/shopify"
)

// ==================== Section 归一化 ====================

// SectionElement 模板里的一个 section
// 加载时把旧格式（裸字符串）和新格式（对象）统一成这个结构，
// 渲染时不再按形态分支
type SectionElement struct {
	Type     string                 `json:"type"`
	ID       string                 `json:"id,omitempty"`
	Settings map[string]interface{} `json:"settings,omitempty"`
}

// SectionContext 单个 section 渲染时可见的全部数据
type SectionContext struct {
	Store   *model.Store
	Product *shopify.ProductDTO
	// Fields 已清洗的商户覆盖值，key 形如 template_<Type>_<field>
	Fields   map[string]string
	Settings map[string]interface{}
}

// Field 取商户覆盖值，没有就用硬编码默认值
// 部分配置永远不能弄坏一个 section
func (c *SectionContext) Field(elementType, name, fallback string) string {
	if v, ok := c.Fields["template_"+elementType+"_"+name]; ok && v != "" {
		return v
	}
	return fallback
}

// SectionRenderer 单个 section 的渲染函数
type SectionRenderer func(c *SectionContext) string

// ==================== 字段清洗 ====================

var (
	fieldNameRe = regexp.MustCompile(`^[A-Za-z0-9_]+$`)
	scriptTagRe = regexp.MustCompile(`(?is)<script.*?</script\s*>`)
	jsProtoRe   = regexp.MustCompile(`(?i)javascript\s*:`)
	onAttrRe    = regexp.MustCompile(`(?i)\son[a-z]+\s*=\s*("[^"]*"|'[^']*'|[^\s>]+)`)
)

// containsTamperSignature 原始 JSON 文本级别的篡改特征
// 命中即按攻击处理，不当格式错误
func containsTamperSignature(raw string) (string, bool) {
	lower := strings.ToLower(raw)
	for _, sig := range []string{"<script", "javascript:", "eval("} {
		if strings.Contains(lower, sig) {
			return sig, true
		}
	}
	return "", false
}

// sanitizeFieldValue 清掉 script 块、javascript: 伪协议和内联 on* 处理器
func sanitizeFieldValue(v string) string {
	v = scriptTagRe.ReplaceAllString(v, "")
	v = jsProtoRe.ReplaceAllString(v, "")
	v = onAttrRe.ReplaceAllString(v, "")
	return v
}

// sanitizeFields 解析后的 field_data 逐字段过滤：
//   - 字段名必须匹配 ^[A-Za-z0-9_]+$
//   - 只保留 string/number/bool，对象和数组丢弃并告警
//   - 字符串值做内容清洗
func sanitizeFields(parsed map[string]interface{}) map[string]string {
	out := make(map[string]string, len(parsed))
	for name, raw := range parsed {
		if !fieldNameRe.MatchString(name) {
			log.Printf("丢弃非法字段名: %q", name)
			continue
		}
		switch v := raw.(type) {
		case string:
			out[name] = sanitizeFieldValue(v)
		case float64:
			out[name] = strconv.FormatFloat(v, 'f', -1, 64)
		case bool:
			out[name] = strconv.FormatBool(v)
		default:
			log.Printf("丢弃非标量字段: %s (%T)", name, raw)
		}
	}
	return out
}

// ==================== Section 注册表 ====================

// defaultSectionRegistry 类型名 → 渲染函数
// 新 section 类型在这里加一行，互不影响，单独可测
func defaultSectionRegistry() map[string]SectionRenderer {
	return map[string]SectionRenderer{
		"FreeShippingBar":     renderFreeShippingBar,
		"FreeShippingTeaser":  renderFreeShippingTeaser,
		"FlashSaleCountdown":  renderFlashSaleCountdown,
		"NavigationBar":       renderNavigationBar,
		"StarRating":          renderStarRating,
		"ProductTitle":        renderProductTitle,
		"PricingSection":      renderPricingSection,
		"ProductImageGallery": renderProductImageGallery,
		"FreeTextField":       renderFreeTextField,
		"ListSection":         renderListSection,
		"GuaranteeBadge":      renderGuaranteeBadge,
		"ScarcityNotice":      renderScarcityNotice,
		"ATCButton":           renderATCButton,
		"QuickBuyButton":      renderQuickBuyButton,
		"TrustIndicators":     renderTrustIndicators,
	}
}

// ==================== 各 Section 实现 ====================

func renderFreeShippingBar(c *SectionContext) string {
	text := c.Field("FreeShippingBar", "text", "Free shipping on all orders")
	return fmt.Sprintf(`<div class="free-shipping-bar">%s</div>`+"\n", text)
}

func renderFreeShippingTeaser(c *SectionContext) string {
	text := c.Field("FreeShippingTeaser", "text", "Free shipping today only")
	sub := c.Field("FreeShippingTeaser", "subtext", "No minimum order value")
	return fmt.Sprintf(`<div class="free-shipping-teaser"><strong>%s</strong><span>%s</span></div>`+"\n", text, sub)
}

func renderFlashSaleCountdown(c *SectionContext) string {
	title := c.Field("FlashSaleCountdown", "title", "Flash sale ends in")
	minutes := c.Field("FlashSaleCountdown", "minutes", "30")
	if _, err := strconv.Atoi(minutes); err != nil {
		minutes = "30"
	}
	return fmt.Sprintf(`<div class="flash-sale-countdown" data-minutes="%s"><span>%s</span><span class="countdown-timer"></span></div>`+"\n",
		minutes, title)
}

func renderNavigationBar(c *SectionContext) string {
	name := c.Store.Name
	return fmt.Sprintf(`<nav class="product-nav"><a class="logo" href="/">%s</a><a href="/products">Products</a></nav>`+"\n", name)
}

func renderStarRating(c *SectionContext) string {
	rating := c.Field("StarRating", "rating", "4.8")
	count := c.Field("StarRating", "count", "1247")
	if v, err := strconv.ParseFloat(rating, 64); err != nil || v < 0 || v > 5 {
		rating = "4.8"
	}
	return fmt.Sprintf(`<div class="star-rating" data-rating="%s"><span class="stars"></span><span class="rating-count">%s (%s reviews)</span></div>`+"\n",
		rating, rating, count)
}

func renderProductTitle(c *SectionContext) string {
	title := c.Field("ProductTitle", "title", c.Product.Title)
	subtitle := c.Field("ProductTitle", "subtitle", "")
	out := fmt.Sprintf(`<h1 class="product-title">%s</h1>`+"\n", title)
	if subtitle != "" {
		out += fmt.Sprintf(`<p class="product-subtitle">%s</p>`+"\n", subtitle)
	}
	return out
}

// renderPricingSection 划线价只在 compare_at > price 时出现，
// 省多少的角标还要额外吃一个模板级开关
func renderPricingSection(c *SectionContext) string {
	variant := c.Product.PrimaryVariant()
	if variant == nil {
		return `<div class="pricing-section"><span class="price">-</span></div>` + "\n"
	}

	price, errP := strconv.ParseFloat(variant.Price, 64)
	compareAt, errC := strconv.ParseFloat(variant.CompareAtPrice, 64)
	currency := c.Store.Currency

	var b strings.Builder
	b.WriteString(`<div class="pricing-section">`)
	if errP == nil && errC == nil && compareAt > price {
		b.WriteString(fmt.Sprintf(`<span class="compare-at-price">%s %.2f</span>`, currency, compareAt))
		b.WriteString(fmt.Sprintf(`<span class="price sale">%s %.2f</span>`, currency, price))
		if c.Field("PricingSection", "show_savings_badge", "false") == "true" {
			b.WriteString(fmt.Sprintf(`<span class="savings-badge">Save %s %.2f</span>`, currency, compareAt-price))
		}
	} else {
		b.WriteString(fmt.Sprintf(`<span class="price">%s %s</span>`, currency, variant.Price))
	}
	b.WriteString("</div>\n")
	return b.String()
}

func renderProductImageGallery(c *SectionContext) string {
	if len(c.Product.Images) == 0 {
		return `<div class="product-gallery"><div class="image-placeholder"></div></div>` + "\n"
	}
	var b strings.Builder
	b.WriteString(`<div class="product-gallery">`)
	b.WriteString(fmt.Sprintf(`<img class="main-image" src=%q alt=%q>`, c.Product.Images[0].Src, c.Product.Title))
	if len(c.Product.Images) > 1 {
		b.WriteString(`<div class="thumbnails">`)
		for _, img := range c.Product.Images[1:] {
			b.WriteString(fmt.Sprintf(`<img src=%q alt=%q>`, img.Src, img.Alt))
		}
		b.WriteString("</div>")
	}
	b.WriteString("</div>\n")
	return b.String()
}

func renderFreeTextField(c *SectionContext) string {
	text := c.Field("FreeTextField", "text", "")
	if text == "" {
		return ""
	}
	return fmt.Sprintf(`<div class="free-text">%s</div>`+"\n", text)
}

func renderListSection(c *SectionContext) string {
	title := c.Field("ListSection", "title", "Why you'll love it")
	items := c.Field("ListSection", "items", "Premium quality|Fast delivery|Easy returns")
	var b strings.Builder
	b.WriteString(`<div class="list-section"><h3>` + title + "</h3><ul>")
	for _, item := range strings.Split(items, "|") {
		item = strings.TrimSpace(item)
		if item != "" {
			b.WriteString("<li>" + item + "</li>")
		}
	}
	b.WriteString("</ul></div>\n")
	return b.String()
}

func renderGuaranteeBadge(c *SectionContext) string {
	text := c.Field("GuaranteeBadge", "text", "30-day money-back guarantee")
	return fmt.Sprintf(`<div class="guarantee-badge">%s</div>`+"\n", text)
}

func renderScarcityNotice(c *SectionContext) string {
	count := c.Field("ScarcityNotice", "count", "7")
	if _, err := strconv.Atoi(count); err != nil {
		count = "7"
	}
	text := c.Field("ScarcityNotice", "text", "Only {count} left in stock")
	text = strings.ReplaceAll(text, "{count}", count)
	return fmt.Sprintf(`<div class="scarcity-notice">%s</div>`+"\n", text)
}

// renderATCButton 主变体缺失或不可售时出禁用态的 Out of Stock
func renderATCButton(c *SectionContext) string {
	variant := c.Product.PrimaryVariant()
	if variant == nil || !variant.Available {
		return `<button class="atc-button" disabled>Out of Stock</button>` + "\n"
	}
	label := c.Field("ATCButton", "label", "Add to Cart")
	return fmt.Sprintf(`<button class="atc-button" data-variant-id="%d">%s — %s %s</button>`+"\n",
		variant.ID, label, c.Store.Currency, variant.Price)
}

func renderQuickBuyButton(c *SectionContext) string {
	variant := c.Product.PrimaryVariant()
	if variant == nil || !variant.Available {
		return `<button class="quick-buy-button" disabled>Out of Stock</button>` + "\n"
	}
	label := c.Field("QuickBuyButton", "label", "Buy Now")
	return fmt.Sprintf(`<button class="quick-buy-button" data-variant-id="%d">%s — %s %s</button>`+"\n",
		variant.ID, label, c.Store.Currency, variant.Price)
}

func renderTrustIndicators(c *SectionContext) string {
	secure := c.Field("TrustIndicators", "secure_text", "Secure checkout")
	support := c.Field("TrustIndicators", "support_text", "24/7 support")
	returns := c.Field("TrustIndicators", "returns_text", "Free returns")
	return fmt.Sprintf(`<div class="trust-indicators"><span>%s</span><span>%s</span><span>%s</span></div>`+"\n",
		secure, support, returns)
}
