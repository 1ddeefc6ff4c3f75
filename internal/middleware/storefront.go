package middleware

import (
	"context"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"storefront_dev_v1/internal/apperr"
	"storefront_dev_v1/internal/model"
	"storefront_dev_v1/internal/repository"
	"storefront_dev_v1/internal/service"
)

// ==================== 常量表 ====================

// 保留前缀：这些路径属于后台应用本体，storefront 不接管
var reservedPrefixes = []string{"/api", "/admin", "/swagger", "/public", "/assets"}

// contentTypes 扩展名 → Content-Type
var contentTypes = map[string]string{
	".html":  "text/html; charset=utf-8",
	".css":   "text/css; charset=utf-8",
	".js":    "application/javascript; charset=utf-8",
	".json":  "application/json; charset=utf-8",
	".xml":   "application/xml; charset=utf-8",
	".txt":   "text/plain; charset=utf-8",
	".png":   "image/png",
	".jpg":   "image/jpeg",
	".jpeg":  "image/jpeg",
	".gif":   "image/gif",
	".svg":   "image/svg+xml",
	".webp":  "image/webp",
	".ico":   "image/x-icon",
	".woff":  "font/woff",
	".woff2": "font/woff2",
	".ttf":   "font/ttf",
}

// longCacheExts 一年不可变缓存的静态资源扩展名
var longCacheExts = map[string]bool{
	".css": true, ".js": true, ".png": true, ".jpg": true, ".jpeg": true,
	".gif": true, ".svg": true, ".webp": true, ".ico": true,
	".woff": true, ".woff2": true, ".ttf": true,
}

const (
	cacheStatic = "public, max-age=31536000, immutable"
	cacheHTML   = "public, max-age=300"
)

// ==================== Dispatcher ====================

// StorefrontDispatcher 按 Host 头把请求分发到对应店铺的静态站
// 只读：不写文件、不改库。可服务性只看 deployment_status，
// 不探测目录（半写状态的目录绝不能被探出来当成可服务）
type StorefrontDispatcher struct {
	storeRepo     repository.StoreRepository
	catalog       service.CatalogProvider
	productRender *service.ProductRenderService
	baseDir       string
}

// NewStorefrontDispatcher 创建分发器
func NewStorefrontDispatcher(
	storeRepo repository.StoreRepository,
	catalog service.CatalogProvider,
	productRender *service.ProductRenderService,
	baseDir string,
) *StorefrontDispatcher {
	if baseDir == "" {
		baseDir = "stores"
	}
	return &StorefrontDispatcher{
		storeRepo:     storeRepo,
		catalog:       catalog,
		productRender: productRender,
		baseDir:       baseDir,
	}
}

// Handler 返回 gin 中间件
// 任何未分类的内部错误都吞掉走 c.Next()，
// 路由层绝不让请求崩掉进程或漏出裸 500
func (d *StorefrontDispatcher) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				log.Printf("storefront 分发 panic: %v", r)
				// 响应已经开写就不能再移交下游，会二次写
				if c.Writer.Written() {
					c.Abort()
					return
				}
				c.Next()
			}
		}()

		// 1. 保留前缀直接放行
		for _, prefix := range reservedPrefixes {
			if strings.HasPrefix(c.Request.URL.Path, prefix) {
				c.Next()
				return
			}
		}

		// 2. Host 归一化
		host := normalizeHost(c.Request.Host)
		if host == "" || isLocalHost(host) {
			c.Next()
			return
		}

		// 3. 域名/子域精确匹配；查不到或查询出错都放行，让应用本体正常 404
		store, err := d.storeRepo.GetByHost(c.Request.Context(), host)
		if err != nil {
			if !apperr.IsNotFound(err) {
				log.Printf("按 host 查店铺失败 host=%s: %v", host, err)
			}
			c.Next()
			return
		}

		// 每个 storefront 响应都带店铺标识
		c.Header("X-Store-Name", store.Name)
		c.Header("X-Store-Domain", store.Domain)

		// 4. 未部署状态一律 503 等待页，不碰文件系统
		if store.DeploymentStatus != model.DeployStatusDeployed {
			c.Header("Content-Type", contentTypes[".html"])
			c.Header("Cache-Control", "no-cache")
			c.String(http.StatusServiceUnavailable, holdingPage(store))
			c.Abort()
			return
		}

		// 5. 解析产物并响应
		d.serve(c, store)
		c.Abort()
	}
}

// normalizeHost 去端口、去 www. 前缀、转小写
func normalizeHost(rawHost string) string {
	host := rawHost
	if h, _, err := net.SplitHostPort(rawHost); err == nil {
		host = h
	}
	host = strings.ToLower(host)
	host = strings.TrimPrefix(host, "www.")
	return host
}

// isLocalHost 本机/回环/.local 一律不接管
func isLocalHost(host string) bool {
	if host == "localhost" || host == "127.0.0.1" || host == "::1" {
		return true
	}
	return strings.HasSuffix(host, ".local")
}

// ==================== 产物解析 ====================

// serve 按 §路径规则逐级解析：
//  1. 空路径 → index.html
//  2. products/<handle> → 先试动态渲染，失败静默回落
//  3. 带扩展名 → 直接静态文件
//  4. 无扩展名 → <path>/index.html → <path>.html → 原样 <path>
//  5. 全不中 → 带主题的 404 页
func (d *StorefrontDispatcher) serve(c *gin.Context, store *model.Store) {
	rel := strings.Trim(path.Clean("/"+c.Request.URL.Path), "/")
	if strings.Contains(rel, "..") {
		d.notFound(c, store)
		return
	}
	dir := filepath.Join(d.baseDir, store.Domain)

	// 1. 首页
	if rel == "" || rel == "." {
		d.serveStatic(c, store, dir, "index.html")
		return
	}

	// 2. 动态商品页
	if handle, ok := productHandle(rel); ok {
		if d.serveDynamicProduct(c, store, handle) {
			return
		}
		// 动态失败回落到静态解析，绝不把失败原因漏给客户端
	}

	// 3. 带扩展名的静态资源
	if filepath.Ext(rel) != "" {
		d.serveStatic(c, store, dir, rel)
		return
	}

	// 4. 无扩展名，按约定依次探测
	for _, candidate := range []string{
		filepath.Join(rel, "index.html"),
		rel + ".html",
		rel,
	} {
		if fileExists(filepath.Join(dir, candidate)) {
			d.serveStatic(c, store, dir, candidate)
			return
		}
	}

	// 5. 无果
	d.notFound(c, store)
}

// productHandle 精确匹配 products/<handle>（不带扩展名、只有两段）
func productHandle(rel string) (string, bool) {
	parts := strings.Split(rel, "/")
	if len(parts) != 2 || parts[0] != "products" || parts[1] == "" {
		return "", false
	}
	if filepath.Ext(parts[1]) != "" {
		return "", false
	}
	return parts[1], true
}

// serveDynamicProduct 目录查询 + 模板渲染，任何一步失败返回 false
func (d *StorefrontDispatcher) serveDynamicProduct(c *gin.Context, store *model.Store, handle string) bool {
	ctx, cancel := context.WithTimeout(c.Request.Context(), catalogTimeout)
	defer cancel()

	product, err := d.catalog.GetProduct(ctx, handle)
	if err != nil || product == nil {
		if err != nil {
			log.Printf("目录查询失败，回落静态 handle=%s: %v", handle, err)
		}
		return false
	}

	html, err := d.productRender.RenderProductPage(ctx, store, product)
	if err != nil {
		log.Printf("动态渲染失败，回落静态 handle=%s: %v", handle, err)
		return false
	}

	c.Header("Content-Type", contentTypes[".html"])
	c.Header("Cache-Control", cacheHTML)
	c.String(http.StatusOK, html)
	return true
}

// serveStatic 读文件并按扩展名出头
func (d *StorefrontDispatcher) serveStatic(c *gin.Context, store *model.Store, dir, rel string) {
	data, err := os.ReadFile(filepath.Join(dir, rel))
	if err != nil {
		d.notFound(c, store)
		return
	}

	ext := strings.ToLower(filepath.Ext(rel))
	contentType, ok := contentTypes[ext]
	if !ok {
		contentType = "application/octet-stream"
	}
	c.Header("Content-Type", contentType)
	if longCacheExts[ext] {
		c.Header("Cache-Control", cacheStatic)
	} else {
		c.Header("Cache-Control", cacheHTML)
	}
	c.Data(http.StatusOK, contentType, data)
}

// ==================== 失败页面 ====================

// 失败响应也要长得像商户自己的站，主题色取自店铺配置

func (d *StorefrontDispatcher) notFound(c *gin.Context, store *model.Store) {
	c.Header("Content-Type", contentTypes[".html"])
	c.Header("Cache-Control", "no-cache")
	c.String(http.StatusNotFound, fmt.Sprintf(`<!DOCTYPE html>
<html><head><title>Not Found — %s</title>
<style>body{font-family:system-ui,sans-serif;background:%s;color:%s;display:flex;align-items:center;justify-content:center;min-height:100vh;margin:0}
.box{text-align:center}.box a{color:%s}</style></head>
<body><div class="box"><h1>404</h1><p>This page doesn't exist on %s.</p><a href="/">Back to the shop</a></div></body></html>
`, store.Name, store.ThemeBackgroundColor, store.ThemePrimaryColor, store.ThemeSecondaryColor, store.Name))
}

// holdingPage 部署中的等待页，10 秒自刷新
func holdingPage(store *model.Store) string {
	return fmt.Sprintf(`<!DOCTYPE html>
<html><head><title>%s</title>
<meta http-equiv="refresh" content="10">
<style>body{font-family:system-ui,sans-serif;background:%s;color:%s;display:flex;align-items:center;justify-content:center;min-height:100vh;margin:0}
.box{text-align:center}.spinner{width:40px;height:40px;margin:1rem auto;border:4px solid #eee;border-top-color:%s;border-radius:50%%;animation:spin 1s linear infinite}
@keyframes spin{to{transform:rotate(360deg)}}</style></head>
<body><div class="box"><h1>%s</h1><div class="spinner"></div><p>We're putting the finishing touches on this shop.<br>This page refreshes automatically.</p></div></body></html>
`, store.Name, store.ThemeBackgroundColor, store.ThemePrimaryColor, store.ThemeSecondaryColor, store.Name)
}

// ==================== 辅助 ====================

// 动态渲染必须 fail fast，目录再慢也不能拖住请求
const catalogTimeout = 3 * time.Second

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
