package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gorm.io/gorm"

	"storefront_dev_v1/internal/controller"
	"storefront_dev_v1/internal/middleware"
	"storefront_dev_v1/internal/model"
	"storefront_dev_v1/internal/repository"
	"storefront_dev_v1/internal/router"
	"storefront_dev_v1/internal/service"
	"storefront_dev_v1/internal/task"
	"storefront_dev_v1/pkg/database"
	"storefront_dev_v1/pkg/shopify"
)

func main() {
	// 1. 初始化数据库
	db := initDatabase()

	// 2. 初始化依赖
	deps := initDependencies(db)

	// 3. 启动定时任务
	deps.RegenTask.Start()
	defer deps.RegenTask.Stop()

	// 4. 初始化路由
	r := router.SetupRouter(deps.Dispatcher, deps.JWTConfig, deps.Controllers)

	// 5. 启动服务
	startServer(r)
}

// ==================== 依赖容器 ====================

// Dependencies 依赖容器
type Dependencies struct {
	DB          *gorm.DB
	Repos       *Repositories
	Services    *Services
	Dispatcher  *middleware.StorefrontDispatcher
	JWTConfig   *middleware.JWTConfig
	Controllers *router.Controllers
	RegenTask   *task.RegenTask
}

// Repositories 仓库集合
type Repositories struct {
	Store    repository.StoreRepository
	Page     repository.PageRepository
	Template repository.TemplateRepository
}

// Services 服务集合
type Services struct {
	Legal         *service.LegalPageService
	Render        *service.RenderService
	ProductRender *service.ProductRenderService
	Catalog       *service.CatalogService
	Hosting       *service.HostingService
	Generator     *service.GeneratorService
	Store         *service.StoreService
}

// ==================== 初始化函数 ====================

// initDatabase 初始化数据库
func initDatabase() *gorm.DB {
	dsn := getEnv("DATABASE_DSN",
		"host=localhost user=storefront password=storefront dbname=storefront port=5432 sslmode=disable")
	return database.InitDB(dsn,
		&model.Store{}, &model.Page{},
		&model.ProductPageTemplate{}, &model.TemplateAssignment{},
	)
}

// initDependencies 初始化所有依赖
func initDependencies(db *gorm.DB) *Dependencies {
	baseDir := getEnv("STORES_DIR", "stores")

	// -------- Repo 层 --------
	repos := &Repositories{
		Store:    repository.NewStoreRepository(db),
		Page:     repository.NewPageRepository(db),
		Template: repository.NewTemplateRepository(db),
	}

	// -------- 外部服务 --------
	catalogSvc := service.NewCatalogService(shopify.NewClient(&shopify.ClientConfig{
		ShopDomain:  getEnv("SHOPIFY_SHOP_DOMAIN", ""),
		AccessToken: getEnv("SHOPIFY_STOREFRONT_TOKEN", ""),
	}))
	hostingSvc := service.NewHostingService(&service.HostingConfig{
		BaseURL:  getEnv("HOSTING_API_URL", "http://localhost:9000"),
		APIToken: getEnv("HOSTING_API_TOKEN", ""),
	})

	// -------- 渲染 & 生成 --------
	legalSvc := service.NewLegalPageService(getEnv("LEGAL_PAGES_DIR", "legal-pages"))
	if err := legalSvc.Load(); err != nil {
		log.Printf("法务页面索引加载失败: %v", err)
	}

	renderSvc := service.NewRenderService(repos.Page, legalSvc)
	productRenderSvc := service.NewProductRenderService(repos.Template, renderSvc)
	generatorSvc := service.NewGeneratorService(
		repos.Page, repos.Template, renderSvc, productRenderSvc, legalSvc, catalogSvc, baseDir,
	)

	// -------- 业务服务 --------
	storeSvc := service.NewStoreService(repos.Store, repos.Page, generatorSvc, hostingSvc, baseDir)

	services := &Services{
		Legal:         legalSvc,
		Render:        renderSvc,
		ProductRender: productRenderSvc,
		Catalog:       catalogSvc,
		Hosting:       hostingSvc,
		Generator:     generatorSvc,
		Store:         storeSvc,
	}

	// -------- 路由依赖 --------
	dispatcher := middleware.NewStorefrontDispatcher(repos.Store, catalogSvc, productRenderSvc, baseDir)
	jwtCfg := &middleware.JWTConfig{
		SecretKey: getEnv("JWT_SECRET", "storefront-secret-change-in-production"),
		Issuer:    "storefront-admin",
	}
	controllers := &router.Controllers{
		Store: controller.NewStoreController(storeSvc, repos.Store),
	}

	return &Dependencies{
		DB:          db,
		Repos:       repos,
		Services:    services,
		Dispatcher:  dispatcher,
		JWTConfig:   jwtCfg,
		Controllers: controllers,
		RegenTask:   task.NewRegenTask(repos.Store, storeSvc),
	}
}

// startServer 启动 HTTP 服务并处理优雅退出
func startServer(handler http.Handler) {
	srv := &http.Server{
		Addr:    getEnv("LISTEN_ADDR", ":8080"),
		Handler: handler,
	}

	go func() {
		log.Printf("HTTP 服务启动: %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("HTTP 服务异常退出: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("收到退出信号，开始优雅关闭...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("优雅关闭失败: %v", err)
	}
	log.Println("服务已退出")
}

// getEnv 读环境变量，空则用默认值
func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
