package router

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"storefront_dev_v1/internal/controller"
	"storefront_dev_v1/internal/middleware"
)

// Controllers 路由需要的控制器集合
type Controllers struct {
	Store *controller.StoreController
}

// SetupRouter 组装 gin 引擎
// storefront 分发器挂在最前面：匹配到商户域名的请求到不了后面的路由
func SetupRouter(dispatcher *middleware.StorefrontDispatcher, jwtCfg *middleware.JWTConfig, ctls *Controllers) *gin.Engine {
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())

	// 1. storefront 按 Host 分发
	r.Use(dispatcher.Handler())

	// 2. 健康检查
	r.GET("/api/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// 3. admin API 路由组
	api := r.Group("/api", middleware.JWTAuth(jwtCfg))
	{
		stores := api.Group("/stores")
		{
			stores.GET("", ctls.Store.GetList)
			stores.POST("", ctls.Store.Create)
			stores.GET("/:id", ctls.Store.GetDetail)
			stores.PUT("/:id", ctls.Store.Update)
			stores.POST("/:id/regenerate", ctls.Store.Regenerate)
			stores.DELETE("/:id", ctls.Store.Delete)
		}
	}

	return r
}
