package service

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"storefront_dev_v1/internal/apperr"
	"storefront_dev_v1/internal/model"
	"storefront_dev_v1/internal/repository"
	"storefront_dev_v1/pkg/shopify"
)

// ==================== 测试辅助 ====================

func setupStoreTestDB(t *testing.T) *gorm.DB {
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
	return db
}

// fakeCatalog 目录假实现：什么都查不到
type fakeCatalog struct{}

func (fakeCatalog) GetProduct(ctx context.Context, handle string) (*shopify.ProductDTO, error) {
	return nil, nil
}

// fakeHosting 托管商假实现
type fakeHosting struct {
	failCreate bool
	failRemove bool
	created    []string
	removed    []string
}

func (h *fakeHosting) CreateDomainAlias(ctx context.Context, domain, target string) error {
	if h.failCreate {
		return errors.New("alias api down")
	}
	h.created = append(h.created, domain)
	return nil
}

func (h *fakeHosting) RemoveDomainAlias(ctx context.Context, domain string) error {
	if h.failRemove {
		return errors.New("alias api down")
	}
	h.removed = append(h.removed, domain)
	return nil
}

func newTestStoreService(t *testing.T, db *gorm.DB, hosting HostingProvider) (*StoreService, string) {
	baseDir := t.TempDir()
	storeRepo := repository.NewStoreRepository(db)
	pageRepo := repository.NewPageRepository(db)
	templateRepo := repository.NewTemplateRepository(db)

	legalSvc := NewLegalPageService(filepath.Join(baseDir, "no-legal"))
	_ = legalSvc.Load()
	renderSvc := NewRenderService(pageRepo, legalSvc)
	productRenderSvc := NewProductRenderService(templateRepo, renderSvc)
	generator := NewGeneratorService(pageRepo, templateRepo, renderSvc, productRenderSvc, legalSvc, fakeCatalog{}, baseDir)

	return NewStoreService(storeRepo, pageRepo, generator, hosting, baseDir), baseDir
}

func validInput(domain string) CreateStoreInput {
	return CreateStoreInput{
		Name:         "Nordic Home",
		Domain:       domain,
		Country:      "SE",
		Language:     "se",
		Currency:     "SEK",
		ContactEmail: "hello@nordic-home.com",
	}
}

// ==================== Create ====================

func TestStoreCreate(t *testing.T) {
	db := setupStoreTestDB(t)
	hosting := &fakeHosting{}
	svc, baseDir := newTestStoreService(t, db, hosting)

	store, err := svc.Create(context.Background(), validInput("nordic-home.com"))
	if err != nil {
		t.Fatalf("建店失败: %v", err)
	}
	if store.UUID == "" || store.Subdomain == "" {
		t.Fatalf("uuid/subdomain 未分配: %+v", store)
	}
	if store.DeploymentStatus != model.DeployStatusDeployed {
		t.Fatalf("部署成功后状态应为 deployed, 实际 %s", store.DeploymentStatus)
	}
	if len(hosting.created) != 1 {
		t.Fatal("应调用一次 CreateDomainAlias")
	}

	// 标准产物落盘
	for _, name := range []string{"index.html", "products.html", "about.html", "contact.html", "robots.txt", "sitemap.xml", "styles.css", "scripts.js"} {
		if _, err := os.Stat(filepath.Join(baseDir, "nordic-home.com", name)); err != nil {
			t.Fatalf("缺少产物 %s: %v", name, err)
		}
	}

	// 默认页面入库
	var count int64
	db.Model(&model.Page{}).Where("store_id = ?", store.ID).Count(&count)
	if count != 4 {
		t.Fatalf("默认页面应为 4 个, 实际 %d", count)
	}
}

func TestStoreCreate_MissingFields(t *testing.T) {
	db := setupStoreTestDB(t)
	svc, _ := newTestStoreService(t, db, &fakeHosting{})

	_, err := svc.Create(context.Background(), CreateStoreInput{Name: "X"})
	if !apperr.IsValidation(err) {
		t.Fatalf("缺字段应报 ValidationError: %v", err)
	}
	// 报错必须点名缺的字段
	for _, field := range []string{"domain", "country", "language", "currency"} {
		if !strings.Contains(err.Error(), field) {
			t.Fatalf("错误信息应包含 %q: %v", field, err)
		}
	}
}

func TestStoreCreate_DuplicateDomain(t *testing.T) {
	db := setupStoreTestDB(t)
	svc, _ := newTestStoreService(t, db, &fakeHosting{})

	if _, err := svc.Create(context.Background(), validInput("taken.com")); err != nil {
		t.Fatalf("首次建店失败: %v", err)
	}
	_, err := svc.Create(context.Background(), validInput("taken.com"))
	if !apperr.IsConflict(err) {
		t.Fatalf("域名重复应报 ConflictError: %v", err)
	}
	if !strings.Contains(err.Error(), "taken.com") {
		t.Fatalf("错误信息应点名冲突域名: %v", err)
	}
}

func TestStoreCreate_DirExists(t *testing.T) {
	db := setupStoreTestDB(t)
	svc, baseDir := newTestStoreService(t, db, &fakeHosting{})

	// 目录已存在：生成是增量创建，绝不合并进旧目录
	if err := os.MkdirAll(filepath.Join(baseDir, "squatted.com"), 0o755); err != nil {
		t.Fatalf("预置目录失败: %v", err)
	}
	_, err := svc.Create(context.Background(), validInput("squatted.com"))
	if !apperr.IsConflict(err) {
		t.Fatalf("目录占用应报 ConflictError: %v", err)
	}
}

func TestStoreCreate_DeployFailure(t *testing.T) {
	db := setupStoreTestDB(t)
	hosting := &fakeHosting{failCreate: true}
	svc, _ := newTestStoreService(t, db, hosting)

	store, err := svc.Create(context.Background(), validInput("failing.com"))
	if err == nil {
		t.Fatal("alias 失败应原样抛出")
	}
	if store.DeploymentStatus != model.DeployStatusFailed {
		t.Fatalf("部署失败后状态应为 failed, 实际 %s", store.DeploymentStatus)
	}
}

// flakyStatusRepo 指定状态写入必失败、其余照常的桩
type flakyStatusRepo struct {
	repository.StoreRepository
	failStatus string
}

func (r *flakyStatusRepo) UpdateDeploymentStatus(ctx context.Context, id int64, status string) error {
	if status == r.failStatus {
		return errors.New("db hiccup")
	}
	return r.StoreRepository.UpdateDeploymentStatus(ctx, id, status)
}

func TestStoreCreate_TransientStatusWriteFailure(t *testing.T) {
	db := setupStoreTestDB(t)
	baseDir := t.TempDir()

	// deploying 这种中间状态写失败只留痕，不挡部署
	storeRepo := &flakyStatusRepo{
		StoreRepository: repository.NewStoreRepository(db),
		failStatus:      model.DeployStatusDeploying,
	}
	pageRepo := repository.NewPageRepository(db)
	templateRepo := repository.NewTemplateRepository(db)
	legalSvc := NewLegalPageService(filepath.Join(baseDir, "no-legal"))
	_ = legalSvc.Load()
	renderSvc := NewRenderService(pageRepo, legalSvc)
	productRenderSvc := NewProductRenderService(templateRepo, renderSvc)
	generator := NewGeneratorService(pageRepo, templateRepo, renderSvc, productRenderSvc, legalSvc, fakeCatalog{}, baseDir)
	svc := NewStoreService(storeRepo, pageRepo, generator, &fakeHosting{}, baseDir)

	store, err := svc.Create(context.Background(), validInput("hiccup.com"))
	if err != nil {
		t.Fatalf("中间状态写失败不该让建店失败: %v", err)
	}
	if store.DeploymentStatus != model.DeployStatusDeployed {
		t.Fatalf("最终状态应为 deployed, 实际 %s", store.DeploymentStatus)
	}
}

// ==================== 子域生成 ====================

// stubSubdomainRepo 只关心 SubdomainExists 的桩，其余方法不会被调用
type stubSubdomainRepo struct {
	repository.StoreRepository
	taken map[string]bool
	calls []string
}

func (s *stubSubdomainRepo) SubdomainExists(ctx context.Context, subdomain string) (bool, error) {
	s.calls = append(s.calls, subdomain)
	return s.taken[subdomain], nil
}

func TestGenerateUniqueSubdomain(t *testing.T) {
	stub := &stubSubdomainRepo{taken: map[string]bool{}}
	svc := &StoreService{storeRepo: stub}

	// 1. 空闲的基础 slug 原样返回
	got, err := svc.GenerateUniqueSubdomain(context.Background(), "Nordic Home & Co.")
	if err != nil {
		t.Fatalf("生成失败: %v", err)
	}
	if got != "nordic-home-co" {
		t.Fatalf("slug 化错误: %q", got)
	}

	// 2. 过短的 slug 垫固定前缀
	got, _ = svc.GenerateUniqueSubdomain(context.Background(), "A!")
	if got != "store-a" {
		t.Fatalf("短 slug 应垫前缀, 实际 %q", got)
	}

	// 3. 基础被占 → 6 位时间戳后缀
	stub.taken["shop"] = true
	got, _ = svc.GenerateUniqueSubdomain(context.Background(), "Shop")
	if !regexp.MustCompile(`^shop-\d{6}$`).MatchString(got) {
		t.Fatalf("应为 shop-<6位数字>, 实际 %q", got)
	}

	// 4. 时间戳后缀也被占 → 6 位随机字母数字，反复取直到空闲
	stub2 := &stubSubdomainRepo{taken: map[string]bool{}}
	svc2 := &StoreService{storeRepo: stub2}
	stub2.taken["shop"] = true
	first, _ := svc2.GenerateUniqueSubdomain(context.Background(), "Shop")
	stub2.taken[first] = true
	got, err = svc2.GenerateUniqueSubdomain(context.Background(), "Shop")
	if err != nil {
		t.Fatalf("生成失败: %v", err)
	}
	if !regexp.MustCompile(`^shop-[a-z0-9]{6}$`).MatchString(got) {
		t.Fatalf("应为 shop-<6位随机>, 实际 %q", got)
	}
}

// ==================== Update ====================

func TestStoreUpdate_AllowList(t *testing.T) {
	db := setupStoreTestDB(t)
	svc, _ := newTestStoreService(t, db, &fakeHosting{})
	store, err := svc.Create(context.Background(), validInput("update-me.com"))
	if err != nil {
		t.Fatalf("建店失败: %v", err)
	}

	// 未识别 key 静默丢弃；放行的列正常更新
	err = svc.Update(context.Background(), store.ID, map[string]interface{}{
		"name":              "New Name",
		"deployment_status": "deployed", // 不在 allow-list，不许从这里改
		"evil_column":       "x",
	})
	if err != nil {
		t.Fatalf("更新失败: %v", err)
	}

	var reloaded model.Store
	db.First(&reloaded, store.ID)
	if reloaded.Name != "New Name" {
		t.Fatalf("name 应被更新: %q", reloaded.Name)
	}

	// 全部被过滤 → 完全不碰存储
	before := reloaded.UpdatedAt
	if err := svc.Update(context.Background(), store.ID, map[string]interface{}{"evil": 1}); err != nil {
		t.Fatalf("空更新不该报错: %v", err)
	}
	db.First(&reloaded, store.ID)
	if !reloaded.UpdatedAt.Equal(before) {
		t.Fatal("全被过滤的更新不该碰存储")
	}
}

// ==================== Delete ====================

func TestStoreDelete(t *testing.T) {
	db := setupStoreTestDB(t)
	hosting := &fakeHosting{}
	svc, baseDir := newTestStoreService(t, db, hosting)
	store, err := svc.Create(context.Background(), validInput("doomed.com"))
	if err != nil {
		t.Fatalf("建店失败: %v", err)
	}

	if err := svc.Delete(context.Background(), store.ID); err != nil {
		t.Fatalf("删除失败: %v", err)
	}
	if _, err := os.Stat(filepath.Join(baseDir, "doomed.com")); !os.IsNotExist(err) {
		t.Fatal("站点目录应被删除")
	}
	if len(hosting.removed) != 1 {
		t.Fatal("应调用一次 RemoveDomainAlias")
	}
	var count int64
	db.Model(&model.Store{}).Count(&count)
	if count != 0 {
		t.Fatal("数据库行应被删除")
	}
}

func TestStoreDelete_AliasFailurePropagates(t *testing.T) {
	db := setupStoreTestDB(t)
	hosting := &fakeHosting{}
	svc, _ := newTestStoreService(t, db, hosting)
	store, err := svc.Create(context.Background(), validInput("orphan.com"))
	if err != nil {
		t.Fatalf("建店失败: %v", err)
	}

	// 行和目录已删、alias 拆除失败：必须抛错，不然留孤儿 alias
	hosting.failRemove = true
	if err := svc.Delete(context.Background(), store.ID); err == nil {
		t.Fatal("alias 拆除失败必须抛错")
	}
}

// ==================== 模板变量替换 ====================

func TestReplaceTemplateVariables(t *testing.T) {
	store := &model.Store{Name: "Nordic Home", Domain: "nordic-home.com"}

	// 没有变量 → 原样返回
	if got := ReplaceTemplateVariables(store, "no vars here"); got != "no vars here" {
		t.Fatalf("无变量文本应原样返回: %q", got)
	}
	// 空输入 → 原样返回，不 panic
	if got := ReplaceTemplateVariables(store, ""); got != "" {
		t.Fatalf("空输入应原样返回: %q", got)
	}

	got := ReplaceTemplateVariables(store, "Welcome to $company_name, mail $contact_email")
	if !strings.Contains(got, "Nordic Home") {
		t.Fatalf("$company_name 未替换: %q", got)
	}
	// 没值的变量出哨兵 TBD，绝不留占位符
	if !strings.Contains(got, "TBD") || strings.Contains(got, "$contact_email") {
		t.Fatalf("缺值变量应替换为 TBD: %q", got)
	}
}

func TestReplaceContentPlaceholders(t *testing.T) {
	store := &model.Store{Name: "Nordic Home", Domain: "nordic-home.com"}

	obj := map[string]interface{}{
		"title":          "About {company_name}",
		"content_blocks": "not json",
		"count":          3,
	}
	out := ReplaceContentPlaceholders(store, obj)

	if out["title"] != "About Nordic Home" {
		t.Fatalf("字符串字段应替换: %q", out["title"])
	}
	// content_blocks 解析失败 → 原样保留
	if out["content_blocks"] != "not json" {
		t.Fatalf("非法 JSON 应原样保留: %q", out["content_blocks"])
	}
	if out["count"] != 3 {
		t.Fatalf("非字符串字段不动: %v", out["count"])
	}

	// 合法 JSON 的嵌套替换
	obj = map[string]interface{}{
		"content_blocks": `[{"type":"hero","heading":"Hi from {company_name}"}]`,
	}
	out = ReplaceContentPlaceholders(store, obj)
	if !strings.Contains(out["content_blocks"].(string), "Hi from Nordic Home") {
		t.Fatalf("嵌套文本应替换: %q", out["content_blocks"])
	}
}

// ==================== 幂等生成 ====================

func TestGenerateIdempotent(t *testing.T) {
	db := setupStoreTestDB(t)
	svc, baseDir := newTestStoreService(t, db, &fakeHosting{})
	store, err := svc.Create(context.Background(), validInput("stable.com"))
	if err != nil {
		t.Fatalf("建店失败: %v", err)
	}

	read := func(name string) string {
		data, err := os.ReadFile(filepath.Join(baseDir, "stable.com", name))
		if err != nil {
			t.Fatalf("读产物失败 %s: %v", name, err)
		}
		return string(data)
	}

	first := map[string]string{}
	for _, name := range []string{"index.html", "sitemap.xml", "robots.txt", "styles.css"} {
		first[name] = read(name)
	}

	// 输入不变，重跑必须逐字节一致（下游按 diff 部署）
	if err := svc.RegenerateStoreFiles(context.Background(), store.ID); err != nil {
		t.Fatalf("重建失败: %v", err)
	}
	for name, content := range first {
		if read(name) != content {
			t.Fatalf("重跑后 %s 内容变了，幂等性被破坏", name)
		}
	}

	// 原子替换的中间文件不能留在产物目录里
	for _, pattern := range []string{"*.tmp", filepath.Join("products", "*.tmp")} {
		leftovers, _ := filepath.Glob(filepath.Join(baseDir, "stable.com", pattern))
		if len(leftovers) != 0 {
			t.Fatalf("产物目录不该有临时文件: %v", leftovers)
		}
	}
}
