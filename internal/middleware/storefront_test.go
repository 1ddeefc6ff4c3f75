package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"storefront_dev_v1/internal/model"
	"storefront_dev_v1/internal/repository"
	"storefront_dev_v1/internal/service"
	"storefront_dev_v1/pkg/shopify"
)

// ==================== 测试辅助 ====================

// stubCatalog 可控的目录假实现
type stubCatalog struct {
	products map[string]*shopify.ProductDTO
}

func (s *stubCatalog) GetProduct(ctx context.Context, handle string) (*shopify.ProductDTO, error) {
	return s.products[handle], nil
}

type dispatcherFixture struct {
	router  *gin.Engine
	db      *gorm.DB
	baseDir string
	catalog *stubCatalog
}

func setupDispatcher(t *testing.T) *dispatcherFixture {
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("连接测试数据库失败: %v", err)
	}
	if err := db.AutoMigrate(
		&model.Store{}, &model.Page{},
		&model.ProductPageTemplate{}, &model.TemplateAssignment{},
	); err != nil {
		t.Fatalf("建表失败: %v", err)
	}

	baseDir := t.TempDir()
	storeRepo := repository.NewStoreRepository(db)
	pageRepo := repository.NewPageRepository(db)
	templateRepo := repository.NewTemplateRepository(db)

	legalSvc := service.NewLegalPageService(filepath.Join(baseDir, "no-legal"))
	_ = legalSvc.Load()
	renderSvc := service.NewRenderService(pageRepo, legalSvc)
	productRenderSvc := service.NewProductRenderService(templateRepo, renderSvc)
	catalog := &stubCatalog{products: map[string]*shopify.ProductDTO{}}

	dispatcher := NewStorefrontDispatcher(storeRepo, catalog, productRenderSvc, baseDir)

	r := gin.New()
	r.Use(dispatcher.Handler())
	r.GET("/api/health", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	r.NoRoute(func(c *gin.Context) { c.String(http.StatusOK, "downstream") })

	return &dispatcherFixture{router: r, db: db, baseDir: baseDir, catalog: catalog}
}

func (f *dispatcherFixture) seedStore(t *testing.T, domain, status string) *model.Store {
	store := &model.Store{
		UUID:                 "uuid-" + domain,
		Name:                 "Nordic Home",
		Domain:               domain,
		Subdomain:            strings.SplitN(domain, ".", 2)[0],
		Country:              "SE",
		Language:             "en",
		Currency:             "USD",
		DeploymentStatus:     status,
		ThemePrimaryColor:    "#1a1a2e",
		ThemeSecondaryColor:  "#e94560",
		ThemeBackgroundColor: "#ffffff",
	}
	if err := f.db.Create(store).Error; err != nil {
		t.Fatalf("预置店铺失败: %v", err)
	}
	return store
}

func (f *dispatcherFixture) seedFile(t *testing.T, domain, name, content string) {
	path := filepath.Join(f.baseDir, domain, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("建目录失败: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("写产物失败: %v", err)
	}
}

func (f *dispatcherFixture) get(host, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	req.Host = host
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

// ==================== 分发 ====================

func TestDispatch_DeployedStore(t *testing.T) {
	f := setupDispatcher(t)
	f.seedStore(t, "shop.example.com", model.DeployStatusDeployed)
	f.seedFile(t, "shop.example.com", "index.html", "<html><body>home</body></html>")

	w := f.get("shop.example.com", "/")
	if w.Code != http.StatusOK {
		t.Fatalf("首页应 200, 实际 %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "home") {
		t.Fatalf("应返回 index.html 内容: %s", w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Fatalf("Content-Type 错误: %s", ct)
	}
	if cc := w.Header().Get("Cache-Control"); cc != "public, max-age=300" {
		t.Fatalf("HTML 缓存头错误: %s", cc)
	}
	if w.Header().Get("X-Store-Name") != "Nordic Home" {
		t.Fatal("响应应带店铺标识头")
	}
}

func TestDispatch_HostNormalization(t *testing.T) {
	f := setupDispatcher(t)
	f.seedStore(t, "shop.example.com", model.DeployStatusDeployed)
	f.seedFile(t, "shop.example.com", "index.html", "home")

	// www. 前缀、端口、大小写都要归一化到同一家店
	for _, host := range []string{"WWW.Shop.Example.Com", "shop.example.com:8080", "www.shop.example.com:443"} {
		if w := f.get(host, "/"); w.Code != http.StatusOK {
			t.Fatalf("host %q 应命中店铺, 实际 %d", host, w.Code)
		}
	}
}

func TestDispatch_StaticAssetCache(t *testing.T) {
	f := setupDispatcher(t)
	f.seedStore(t, "shop.example.com", model.DeployStatusDeployed)
	f.seedFile(t, "shop.example.com", "styles.css", "body{}")

	w := f.get("shop.example.com", "/styles.css")
	if w.Code != http.StatusOK {
		t.Fatalf("静态资源应 200, 实际 %d", w.Code)
	}
	if cc := w.Header().Get("Cache-Control"); cc != "public, max-age=31536000, immutable" {
		t.Fatalf("静态资源应长缓存: %s", cc)
	}
}

func TestDispatch_ExtensionlessProbe(t *testing.T) {
	f := setupDispatcher(t)
	store := f.seedStore(t, "shop.example.com", model.DeployStatusDeployed)
	f.seedFile(t, "shop.example.com", "about.html", "about us")

	// /about → about.html
	w := f.get("shop.example.com", "/about")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "about us") {
		t.Fatalf("无扩展名路径应探到 about.html: %d %s", w.Code, w.Body.String())
	}

	// 全不中 → 带店名的主题 404
	w = f.get("shop.example.com", "/nope")
	if w.Code != http.StatusNotFound {
		t.Fatalf("未命中应 404, 实际 %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), store.Name) {
		t.Fatal("404 页应带店铺名")
	}
}

func TestDispatch_MissingAsset(t *testing.T) {
	f := setupDispatcher(t)
	f.seedStore(t, "shop.example.com", model.DeployStatusDeployed)

	if w := f.get("shop.example.com", "/missing.png"); w.Code != http.StatusNotFound {
		t.Fatalf("缺失资源应 404, 实际 %d", w.Code)
	}
}

func TestDispatch_PendingStoreHoldingPage(t *testing.T) {
	f := setupDispatcher(t)
	f.seedStore(t, "shop.example.com", model.DeployStatusPending)
	// 就算文件在磁盘上，状态不对也不许出
	f.seedFile(t, "shop.example.com", "index.html", "should not leak")

	w := f.get("shop.example.com", "/")
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("未部署应 503, 实际 %d", w.Code)
	}
	if strings.Contains(w.Body.String(), "should not leak") {
		t.Fatal("未部署状态不许读站点目录")
	}
	if !strings.Contains(w.Body.String(), `http-equiv="refresh"`) {
		t.Fatal("等待页应自动刷新")
	}
}

func TestDispatch_Bypass(t *testing.T) {
	f := setupDispatcher(t)
	f.seedStore(t, "shop.example.com", model.DeployStatusDeployed)

	// 保留前缀：即使 host 命中店铺也放行给应用本体
	w := f.get("shop.example.com", "/api/health")
	if w.Code != http.StatusOK || w.Body.String() != "ok" {
		t.Fatalf("保留前缀应放行: %d %s", w.Code, w.Body.String())
	}

	// 本机 host 不接管
	w = f.get("localhost:8080", "/anything")
	if w.Body.String() != "downstream" {
		t.Fatalf("localhost 应移交下游: %s", w.Body.String())
	}

	// 未知域名不接管
	w = f.get("unknown.example.org", "/")
	if w.Body.String() != "downstream" {
		t.Fatalf("未知域名应移交下游: %s", w.Body.String())
	}
}

// panickyStoreRepo 查询即 panic 的桩，只为验证分发器的兜底
type panickyStoreRepo struct {
	repository.StoreRepository
}

func (panickyStoreRepo) GetByHost(ctx context.Context, host string) (*model.Store, error) {
	panic("db connection lost")
}

func TestDispatch_PanicRecovered(t *testing.T) {
	gin.SetMode(gin.TestMode)
	dispatcher := NewStorefrontDispatcher(panickyStoreRepo{}, &stubCatalog{}, nil, t.TempDir())

	r := gin.New()
	r.Use(dispatcher.Handler())
	r.NoRoute(func(c *gin.Context) { c.String(http.StatusOK, "downstream") })

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Host = "shop.example.com"
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	// 还没写响应的 panic 移交下游，进程不崩、不漏裸 500
	if w.Body.String() != "downstream" {
		t.Fatalf("panic 后应移交下游: %d %s", w.Code, w.Body.String())
	}
}

// ==================== 动态商品页 ====================

func TestDispatch_DynamicProduct(t *testing.T) {
	f := setupDispatcher(t)
	f.seedStore(t, "shop.example.com", model.DeployStatusDeployed)

	// 默认模板 + 目录有货 → 动态渲染
	tpl := &model.ProductPageTemplate{
		Name:      "default",
		Elements:  datatypes.JSON(`["ProductTitle","ATCButton"]`),
		IsDefault: true,
	}
	if err := f.db.Create(tpl).Error; err != nil {
		t.Fatalf("预置模板失败: %v", err)
	}
	f.catalog.products["oak-cutting-board"] = &shopify.ProductDTO{
		ID:     1001,
		Title:  "Oak Cutting Board",
		Handle: "oak-cutting-board",
		Variants: []shopify.VariantDTO{
			{ID: 2001, Price: "29.99", Available: true},
		},
	}

	w := f.get("shop.example.com", "/products/oak-cutting-board")
	if w.Code != http.StatusOK {
		t.Fatalf("动态商品页应 200, 实际 %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "Oak Cutting Board") {
		t.Fatalf("应渲染商品标题: %s", w.Body.String())
	}
}

func TestDispatch_DynamicFallsBackToStatic(t *testing.T) {
	f := setupDispatcher(t)
	f.seedStore(t, "shop.example.com", model.DeployStatusDeployed)
	// 目录查不到商品 → 静默回落到生成期的静态页
	f.seedFile(t, "shop.example.com", filepath.Join("products", "oak-cutting-board.html"), "static product page")

	w := f.get("shop.example.com", "/products/oak-cutting-board")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "static product page") {
		t.Fatalf("动态失败应回落静态页: %d %s", w.Code, w.Body.String())
	}

	// 静态页也没有 → 404
	w = f.get("shop.example.com", "/products/nothing-here")
	if w.Code != http.StatusNotFound {
		t.Fatalf("双双失败应 404, 实际 %d", w.Code)
	}
}
