package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"storefront_dev_v1/internal/model"
	"storefront_dev_v1/internal/repository"
)

// ==================== 数据结构 ====================

// FooterData footer 的全部可选变量
// 空值直接省掉对应区块，不渲染空占位
type FooterData struct {
	StoreName      string
	Domain         string
	Tagline        string
	ContactEmail   string
	ContactPhone   string
	CompanyAddress string
	PrivacyLink    string
	TermsLink      string
	RefundLink     string
	DeliveryLink   string
	FacebookURL    string
	InstagramURL   string
	TiktokURL      string
	CopyrightYear  int
	PaymentIcons   []string // 如 ["visa","mastercard","paypal"]
	QuickLinks     []FooterLink
}

// FooterLink footer 快捷导航项
type FooterLink struct {
	Href  string
	Label string
}

// contentBlock 页面内容块，类型决定渲染形态
type contentBlock struct {
	Type    string   `json:"type"`
	Heading string   `json:"heading"`
	Text    string   `json:"text"`
	Image   string   `json:"image"`
	Link    string   `json:"link"`
	Label   string   `json:"label"`
	Items   []string `json:"items"`
}

// ==================== 服务 ====================

// RenderService 页面合成器：骨架 + header + footer + 内容块
// 本层假定文本已在上游清洗过，只做结构拼装不做转义
type RenderService struct {
	pageRepo repository.PageRepository
	legalSvc *LegalPageService
}

// NewRenderService 创建渲染服务
func NewRenderService(pageRepo repository.PageRepository, legalSvc *LegalPageService) *RenderService {
	return &RenderService{
		pageRepo: pageRepo,
		legalSvc: legalSvc,
	}
}

// RenderPage 合成一个完整页面
// 唯一的异步点是 footer 要查启用页面，其余纯计算
func (s *RenderService) RenderPage(ctx context.Context, store *model.Store, page *model.Page) (string, error) {
	footer, err := s.composeFooter(ctx, store)
	if err != nil {
		return "", fmt.Errorf("合成 footer 失败: %w", err)
	}

	var b strings.Builder
	b.WriteString(s.renderSkeletonOpen(store, page.Title))
	b.WriteString(s.renderHeader(ctx, store))
	b.WriteString(`<main class="page-content">` + "\n")
	b.WriteString(s.renderContentBlocks(page))
	b.WriteString("</main>\n")
	b.WriteString(s.renderFooter(footer))
	b.WriteString(s.renderSkeletonClose())
	return b.String(), nil
}

// RenderBody 只渲染 body 片段（商品页渲染器复用骨架时用）
func (s *RenderService) RenderBody(ctx context.Context, store *model.Store, title, body string) (string, error) {
	footer, err := s.composeFooter(ctx, store)
	if err != nil {
		return "", fmt.Errorf("合成 footer 失败: %w", err)
	}

	var b strings.Builder
	b.WriteString(s.renderSkeletonOpen(store, title))
	b.WriteString(s.renderHeader(ctx, store))
	b.WriteString(body)
	b.WriteString(s.renderFooter(footer))
	b.WriteString(s.renderSkeletonClose())
	return b.String(), nil
}

// ==================== 骨架 ====================

func (s *RenderService) renderSkeletonOpen(store *model.Store, title string) string {
	if title == "" {
		title = store.Name
	}
	return fmt.Sprintf(`<!DOCTYPE html>
<html lang=%q>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>%s</title>
<link rel="stylesheet" href="/styles.css">
<style>:root{--primary:%s;--secondary:%s;--background:%s;}</style>
</head>
<body>
`, store.Language, title, store.ThemePrimaryColor, store.ThemeSecondaryColor, store.ThemeBackgroundColor)
}

func (s *RenderService) renderSkeletonClose() string {
	return "<script src=\"/scripts.js\"></script>\n</body>\n</html>\n"
}

// ==================== Header ====================

// renderHeader 导航只列启用页面，查库失败退化成纯 logo 头
func (s *RenderService) renderHeader(ctx context.Context, store *model.Store) string {
	var b strings.Builder
	b.WriteString(`<header class="site-header">` + "\n")
	b.WriteString(fmt.Sprintf(`<a class="logo" href="/">%s</a>`+"\n", store.Name))

	pages, err := s.pageRepo.ListEnabled(ctx, store.ID)
	if err != nil {
		log.Printf("查询启用页面失败 store=%d: %v", store.ID, err)
		b.WriteString("</header>\n")
		return b.String()
	}

	b.WriteString(`<nav class="main-nav">` + "\n")
	for _, p := range pages {
		href := "/" + p.Slug
		if p.PageType == model.PageTypeHome {
			href = "/"
		}
		b.WriteString(fmt.Sprintf(`<a href=%q>%s</a>`+"\n", href, p.Title))
	}
	b.WriteString("</nav>\n</header>\n")
	return b.String()
}

// ==================== 内容块 ====================

func (s *RenderService) renderContentBlocks(page *model.Page) string {
	if len(page.ContentBlocks) == 0 {
		return ""
	}

	var blocks []contentBlock
	if err := json.Unmarshal(page.ContentBlocks, &blocks); err != nil {
		// 脏数据降级：内容块整体跳过，页面其余部分照常出
		log.Printf("content_blocks 解析失败 page=%d: %v", page.ID, err)
		return ""
	}

	var b strings.Builder
	for _, block := range blocks {
		switch block.Type {
		case "hero":
			b.WriteString(`<section class="hero">`)
			if block.Heading != "" {
				b.WriteString("<h1>" + block.Heading + "</h1>")
			}
			if block.Text != "" {
				b.WriteString("<p>" + block.Text + "</p>")
			}
			if block.Link != "" && block.Label != "" {
				b.WriteString(fmt.Sprintf(`<a class="cta" href=%q>%s</a>`, block.Link, block.Label))
			}
			b.WriteString("</section>\n")
		case "text":
			b.WriteString(`<section class="text-block">`)
			if block.Heading != "" {
				b.WriteString("<h2>" + block.Heading + "</h2>")
			}
			b.WriteString("<p>" + block.Text + "</p></section>\n")
		case "image":
			b.WriteString(fmt.Sprintf(`<section class="image-block"><img src=%q alt=%q></section>`+"\n",
				block.Image, block.Heading))
		case "features":
			b.WriteString(`<section class="features">`)
			if block.Heading != "" {
				b.WriteString("<h2>" + block.Heading + "</h2>")
			}
			b.WriteString("<ul>")
			for _, item := range block.Items {
				b.WriteString("<li>" + item + "</li>")
			}
			b.WriteString("</ul></section>\n")
		case "cta":
			b.WriteString(fmt.Sprintf(`<section class="cta-block"><a class="cta" href=%q>%s</a></section>`+"\n",
				block.Link, block.Label))
		default:
			log.Printf("未知内容块类型，跳过: %s (page=%d)", block.Type, page.ID)
		}
	}
	return b.String()
}

// ==================== Footer ====================

// composeFooter 从 store + 法务索引拼 footer 变量
func (s *RenderService) composeFooter(ctx context.Context, store *model.Store) (FooterData, error) {
	data := FooterData{
		StoreName:      store.Name,
		Domain:         store.Domain,
		ContactEmail:   store.ContactEmail,
		ContactPhone:   store.ContactPhone,
		CompanyAddress: store.CompanyAddress,
		FacebookURL:    store.FacebookURL,
		InstagramURL:   store.InstagramURL,
		TiktokURL:      store.TiktokURL,
		CopyrightYear:  time.Now().Year(),
		PaymentIcons:   []string{"visa", "mastercard", "paypal"},
	}

	// 法务链接只放实际存在的本地化页面
	if s.legalSvc != nil {
		if slug, ok := s.legalSvc.SlugFor(store.Language, LegalTypePrivacy); ok {
			data.PrivacyLink = "/" + slug
		}
		if slug, ok := s.legalSvc.SlugFor(store.Language, LegalTypeTerms); ok {
			data.TermsLink = "/" + slug
		}
		if slug, ok := s.legalSvc.SlugFor(store.Language, LegalTypeRefund); ok {
			data.RefundLink = "/" + slug
		}
		if slug, ok := s.legalSvc.SlugFor(store.Language, LegalTypeDelivery); ok {
			data.DeliveryLink = "/" + slug
		}
	}

	// footer 导航需要启用页面，这一步是本方法唯一要等的查询
	pages, err := s.pageRepo.ListEnabled(ctx, store.ID)
	if err != nil {
		return data, err
	}
	for _, p := range pages {
		href := "/" + p.Slug
		if p.PageType == model.PageTypeHome {
			href = "/"
		}
		data.QuickLinks = append(data.QuickLinks, FooterLink{Href: href, Label: p.Title})
	}

	return data, nil
}

// renderFooter 每个变量独立可选，缺了就整块不出
func (s *RenderService) renderFooter(data FooterData) string {
	var b strings.Builder
	b.WriteString(`<footer class="site-footer">` + "\n")

	if data.StoreName != "" {
		b.WriteString(`<div class="footer-brand"><strong>` + data.StoreName + "</strong>")
		if data.Tagline != "" {
			b.WriteString("<p>" + data.Tagline + "</p>")
		}
		b.WriteString("</div>\n")
	}

	if data.ContactEmail != "" || data.ContactPhone != "" || data.CompanyAddress != "" {
		b.WriteString(`<div class="footer-contact">`)
		if data.ContactEmail != "" {
			b.WriteString(fmt.Sprintf(`<a href="mailto:%s">%s</a>`, data.ContactEmail, data.ContactEmail))
		}
		if data.ContactPhone != "" {
			b.WriteString("<span>" + data.ContactPhone + "</span>")
		}
		if data.CompanyAddress != "" {
			b.WriteString("<address>" + data.CompanyAddress + "</address>")
		}
		b.WriteString("</div>\n")
	}

	if len(data.QuickLinks) > 0 {
		b.WriteString(`<div class="footer-nav">`)
		for _, link := range data.QuickLinks {
			b.WriteString(fmt.Sprintf(`<a href=%q>%s</a>`, link.Href, link.Label))
		}
		b.WriteString("</div>\n")
	}

	if data.PrivacyLink != "" || data.TermsLink != "" || data.RefundLink != "" || data.DeliveryLink != "" {
		b.WriteString(`<div class="footer-legal">`)
		if data.PrivacyLink != "" {
			b.WriteString(fmt.Sprintf(`<a href=%q>Privacy</a>`, data.PrivacyLink))
		}
		if data.TermsLink != "" {
			b.WriteString(fmt.Sprintf(`<a href=%q>Terms</a>`, data.TermsLink))
		}
		if data.RefundLink != "" {
			b.WriteString(fmt.Sprintf(`<a href=%q>Refunds</a>`, data.RefundLink))
		}
		if data.DeliveryLink != "" {
			b.WriteString(fmt.Sprintf(`<a href=%q>Delivery</a>`, data.DeliveryLink))
		}
		b.WriteString("</div>\n")
	}

	if data.FacebookURL != "" || data.InstagramURL != "" || data.TiktokURL != "" {
		b.WriteString(`<div class="footer-social">`)
		if data.FacebookURL != "" {
			b.WriteString(fmt.Sprintf(`<a href=%q rel="noopener">Facebook</a>`, data.FacebookURL))
		}
		if data.InstagramURL != "" {
			b.WriteString(fmt.Sprintf(`<a href=%q rel="noopener">Instagram</a>`, data.InstagramURL))
		}
		if data.TiktokURL != "" {
			b.WriteString(fmt.Sprintf(`<a href=%q rel="noopener">TikTok</a>`, data.TiktokURL))
		}
		b.WriteString("</div>\n")
	}

	if len(data.PaymentIcons) > 0 {
		b.WriteString(`<div class="footer-payments">`)
		for _, icon := range data.PaymentIcons {
			b.WriteString(fmt.Sprintf(`<span class="payment-icon payment-%s"></span>`, icon))
		}
		b.WriteString("</div>\n")
	}

	if data.CopyrightYear > 0 && data.StoreName != "" {
		b.WriteString(fmt.Sprintf(`<div class="footer-copyright">&copy; %d %s</div>`+"\n",
			data.CopyrightYear, data.StoreName))
	}

	b.WriteString("</footer>\n")
	return b.String()
}
