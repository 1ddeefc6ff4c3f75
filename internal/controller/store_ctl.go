package controller

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"storefront_dev_v1/internal/apperr"
	"storefront_dev_v1/internal/repository"
	"storefront_dev_v1/internal/service"
)

// StoreController 店铺管理接口
// 只是 service 层的薄壳，表单/界面在 admin 前端
type StoreController struct {
	storeSvc  *service.StoreService
	storeRepo repository.StoreRepository
}

// NewStoreController 创建店铺控制器
func NewStoreController(storeSvc *service.StoreService, storeRepo repository.StoreRepository) *StoreController {
	return &StoreController{
		storeSvc:  storeSvc,
		storeRepo: storeRepo,
	}
}

// respondErr 错误分类 → HTTP 状态码
func respondErr(c *gin.Context, err error) {
	switch {
	case apperr.IsValidation(err):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case apperr.IsConflict(err):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case apperr.IsNotFound(err):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

// Create 建店并触发首次生成部署
func (ctl *StoreController) Create(c *gin.Context) {
	var input service.CreateStoreInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "参数错误: " + err.Error()})
		return
	}

	store, err := ctl.storeSvc.Create(c.Request.Context(), input)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusCreated, store)
}

// GetList 店铺列表
func (ctl *StoreController) GetList(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))

	stores, total, err := ctl.storeRepo.List(c.Request.Context(), repository.StoreFilter{
		Keyword:  c.Query("keyword"),
		Status:   c.Query("status"),
		Page:     page,
		PageSize: pageSize,
	})
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"total": total, "items": stores})
}

// GetDetail 店铺详情
func (ctl *StoreController) GetDetail(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "ID 格式错误"})
		return
	}

	store, err := ctl.storeRepo.GetByID(c.Request.Context(), id)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, store)
}

// Update 按 allow-list 更新配置，随后重建站点
func (ctl *StoreController) Update(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "ID 格式错误"})
		return
	}

	var fields map[string]interface{}
	if err := c.ShouldBindJSON(&fields); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "参数错误: " + err.Error()})
		return
	}

	if err := ctl.storeSvc.Update(c.Request.Context(), id, fields); err != nil {
		respondErr(c, err)
		return
	}
	if err := ctl.storeSvc.RegenerateStoreFiles(c.Request.Context(), id); err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "updated"})
}

// Regenerate 手动触发站点重建
func (ctl *StoreController) Regenerate(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "ID 格式错误"})
		return
	}

	if err := ctl.storeSvc.RegenerateStoreFiles(c.Request.Context(), id); err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "regenerated"})
}

// Delete 整店拆除
func (ctl *StoreController) Delete(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "ID 格式错误"})
		return
	}

	if err := ctl.storeSvc.Delete(c.Request.Context(), id); err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "deleted"})
}
