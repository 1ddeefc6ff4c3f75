package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"storefront_dev_v1/internal/model"
	"storefront_dev_v1/internal/repository"
)

// GeneratorService 静态站点生成器
// 输出必须幂等：同样的输入重复跑要产出逐字节一致的文件，
// 下游部署按 diff 推送，抖动的输出会造成无意义的发布
type GeneratorService struct {
	pageRepo         repository.PageRepository
	templateRepo     repository.TemplateRepository
	renderSvc        *RenderService
	productRenderSvc *ProductRenderService
	legalSvc         *LegalPageService
	catalog          CatalogProvider
	baseDir          string
}

// NewGeneratorService 创建生成器
func NewGeneratorService(
	pageRepo repository.PageRepository,
	templateRepo repository.TemplateRepository,
	renderSvc *RenderService,
	productRenderSvc *ProductRenderService,
	legalSvc *LegalPageService,
	catalog CatalogProvider,
	baseDir string,
) *GeneratorService {
	if baseDir == "" {
		baseDir = "stores"
	}
	return &GeneratorService{
		pageRepo:         pageRepo,
		templateRepo:     templateRepo,
		renderSvc:        renderSvc,
		productRenderSvc: productRenderSvc,
		legalSvc:         legalSvc,
		catalog:          catalog,
		baseDir:          baseDir,
	}
}

// GenerateStoreFiles 重建 stores/<domain>/ 下的全部产物
func (s *GeneratorService) GenerateStoreFiles(ctx context.Context, store *model.Store) error {
	dir := filepath.Join(s.baseDir, store.Domain)
	if err := os.MkdirAll(filepath.Join(dir, "products"), 0o755); err != nil {
		return fmt.Errorf("创建站点目录失败: %w", err)
	}

	// 1. 常规页面
	pageSlugs, err := s.generatePages(ctx, store, dir)
	if err != nil {
		return err
	}

	// 2. 法务页面
	legalSlugs := s.generateLegalPages(ctx, store, dir)

	// 3. 静态商品页
	productHandles := s.generateProductPages(ctx, store, dir)

	// 4. robots / sitemap / 静态资源
	if err := writeFile(dir, "robots.txt", s.renderRobots(store)); err != nil {
		return err
	}
	sitemap := s.renderSitemap(store, pageSlugs, legalSlugs, productHandles)
	if err := writeFile(dir, "sitemap.xml", sitemap); err != nil {
		return err
	}
	if err := writeFile(dir, "styles.css", s.renderStyles(store)); err != nil {
		return err
	}
	if err := writeFile(dir, "scripts.js", baseScripts); err != nil {
		return err
	}

	log.Printf("站点生成完成 domain=%s pages=%d legal=%d products=%d",
		store.Domain, len(pageSlugs), len(legalSlugs), len(productHandles))
	return nil
}

// ==================== 常规页面 ====================

// generatePages 只出 SelectedPages 里启用的类型
func (s *GeneratorService) generatePages(ctx context.Context, store *model.Store, dir string) ([]string, error) {
	selected := map[string]bool{}
	if len(store.SelectedPages) > 0 {
		var types []string
		if err := json.Unmarshal(store.SelectedPages, &types); err == nil {
			for _, t := range types {
				selected[t] = true
			}
		}
	}

	pages, err := s.pageRepo.ListByStoreID(ctx, store.ID)
	if err != nil {
		return nil, err
	}

	var slugs []string
	for i := range pages {
		page := pages[i]
		if len(selected) > 0 && !selected[page.PageType] {
			continue
		}

		// 占位符替换走和 admin 预览同一条路径
		obj := ReplaceContentPlaceholders(store, map[string]interface{}{
			"title":          page.Title,
			"content_blocks": string(page.ContentBlocks),
		})
		if title, ok := obj["title"].(string); ok {
			page.Title = title
		}
		if blocks, ok := obj["content_blocks"].(string); ok {
			page.ContentBlocks = []byte(blocks)
		}

		html, renderErr := s.renderSvc.RenderPage(ctx, store, &page)
		if renderErr != nil {
			return nil, fmt.Errorf("渲染页面失败 type=%s: %w", page.PageType, renderErr)
		}

		filename := page.Slug + ".html"
		if page.PageType == model.PageTypeHome {
			filename = "index.html"
		}
		if err := writeFile(dir, filename, html); err != nil {
			return nil, err
		}
		slugs = append(slugs, strings.TrimSuffix(filename, ".html"))
	}
	return slugs, nil
}

// ==================== 法务页面 ====================

// generateLegalPages 法务内容里的 $ 变量在这里替换
// 单页失败只告警，法务页缺一张不该挡住整站发布
func (s *GeneratorService) generateLegalPages(ctx context.Context, store *model.Store, dir string) []string {
	entries := s.legalSvc.ListByLanguage(store.Language)
	sort.Slice(entries, func(i, j int) bool { return entries[i].Slug < entries[j].Slug })

	var slugs []string
	for _, entry := range entries {
		content := ReplaceTemplateVariables(store, entry.Content)
		body := `<main class="legal-page">` + "\n" + content + "\n</main>\n"
		html, err := s.renderSvc.RenderBody(ctx, store, entry.Title, body)
		if err != nil {
			log.Printf("渲染法务页面失败 slug=%s: %v", entry.Slug, err)
			continue
		}
		if err := writeFile(dir, entry.Slug+".html", html); err != nil {
			log.Printf("写入法务页面失败 slug=%s: %v", entry.Slug, err)
			continue
		}
		slugs = append(slugs, entry.Slug)
	}
	return slugs
}

// ==================== 静态商品页 ====================

// generateProductPages 为每个有模板绑定的 handle 出静态页
// 目录服务挂了就跳过，动态渲染路径兜底
func (s *GeneratorService) generateProductPages(ctx context.Context, store *model.Store, dir string) []string {
	assignments, err := s.templateRepo.AllAssignments(ctx)
	if err != nil {
		log.Printf("查询模板绑定失败，跳过静态商品页: %v", err)
		return nil
	}

	var handles []string
	for _, assignment := range assignments {
		product, prodErr := s.catalog.GetProduct(ctx, assignment.ProductHandle)
		if prodErr != nil || product == nil {
			log.Printf("商品不可用，跳过静态页 handle=%s: %v", assignment.ProductHandle, prodErr)
			continue
		}

		html, renderErr := s.productRenderSvc.RenderProductPage(ctx, store, product)
		if renderErr != nil {
			log.Printf("渲染商品页失败 handle=%s: %v", assignment.ProductHandle, renderErr)
			continue
		}
		if err := writeFile(filepath.Join(dir, "products"), assignment.ProductHandle+".html", html); err != nil {
			log.Printf("写入商品页失败 handle=%s: %v", assignment.ProductHandle, err)
			continue
		}
		handles = append(handles, assignment.ProductHandle)
	}
	return handles
}

// ==================== robots / sitemap / 静态资源 ====================

func (s *GeneratorService) renderRobots(store *model.Store) string {
	return fmt.Sprintf("User-agent: *\nAllow: /\n\nSitemap: https://%s/sitemap.xml\n", store.Domain)
}

// renderSitemap 输出顺序固定（页面→法务→商品，各自字典序），保证幂等
// 不写 lastmod：时间戳会破坏逐字节一致性
func (s *GeneratorService) renderSitemap(store *model.Store, pageSlugs, legalSlugs, productHandles []string) string {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?>` + "\n")
	b.WriteString(`<urlset xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">` + "\n")

	writeURL := func(path string) {
		b.WriteString(fmt.Sprintf("  <url><loc>https://%s%s</loc></url>\n", store.Domain, path))
	}

	sort.Strings(pageSlugs)
	for _, slug := range pageSlugs {
		if slug == "index" {
			writeURL("/")
			continue
		}
		writeURL("/" + slug)
	}
	sort.Strings(legalSlugs)
	for _, slug := range legalSlugs {
		writeURL("/" + slug)
	}
	sort.Strings(productHandles)
	for _, handle := range productHandles {
		writeURL("/products/" + handle)
	}

	b.WriteString("</urlset>\n")
	return b.String()
}

func (s *GeneratorService) renderStyles(store *model.Store) string {
	return fmt.Sprintf(`:root {
  --primary: %s;
  --secondary: %s;
  --background: %s;
}
body { margin: 0; font-family: system-ui, sans-serif; background: var(--background); color: #222; }
.site-header { display: flex; align-items: center; gap: 2rem; padding: 1rem 2rem; background: var(--primary); }
.site-header .logo { color: #fff; font-weight: 700; text-decoration: none; font-size: 1.25rem; }
.main-nav a { color: #fff; text-decoration: none; margin-right: 1rem; }
.hero { padding: 4rem 2rem; text-align: center; }
.cta { display: inline-block; padding: .75rem 2rem; background: var(--secondary); color: #fff; text-decoration: none; border-radius: 4px; }
.free-shipping-bar { background: var(--secondary); color: #fff; text-align: center; padding: .5rem; }
.pricing-section .compare-at-price { text-decoration: line-through; opacity: .6; margin-right: .5rem; }
.pricing-section .savings-badge { background: var(--secondary); color: #fff; padding: .15rem .5rem; border-radius: 3px; margin-left: .5rem; }
.atc-button, .quick-buy-button { padding: 1rem 2rem; border: 0; border-radius: 4px; background: var(--secondary); color: #fff; cursor: pointer; }
.atc-button:disabled, .quick-buy-button:disabled { background: #999; cursor: not-allowed; }
.site-footer { padding: 2rem; background: var(--primary); color: #fff; }
.site-footer a { color: #fff; margin-right: 1rem; }
`, store.ThemePrimaryColor, store.ThemeSecondaryColor, store.ThemeBackgroundColor)
}

// baseScripts 倒计时等轻量交互，所有店共用一份
const baseScripts = `document.addEventListener('DOMContentLoaded', function () {
  var countdown = document.querySelector('.flash-sale-countdown');
  if (countdown) {
    var minutes = parseInt(countdown.getAttribute('data-minutes'), 10) || 30;
    var deadline = Date.now() + minutes * 60 * 1000;
    var timer = countdown.querySelector('.countdown-timer');
    setInterval(function () {
      var left = Math.max(0, deadline - Date.now());
      var m = Math.floor(left / 60000);
      var s = Math.floor((left % 60000) / 1000);
      if (timer) timer.textContent = m + ':' + (s < 10 ? '0' : '') + s;
    }, 1000);
  }
});
`

// writeFile 统一落盘入口
// 已部署店铺重建时路由可能正在读同一文件，先写临时文件再 rename 原子替换，
// 在线请求永远只会读到完整的旧版或完整的新版
func writeFile(dir, name, content string) error {
	path := filepath.Join(dir, name)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, []byte(content), 0o644); err != nil {
		return fmt.Errorf("写文件失败 %s: %w", path, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("写文件失败 %s: %w", path, err)
	}
	return nil
}
