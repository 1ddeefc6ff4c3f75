package task

import (
	"context"
	"log"
	"time"

	"github.com/robfig/cron/v3"

	"storefront_dev_v1/internal/model"
	"storefront_dev_v1/internal/repository"
	"storefront_dev_v1/internal/service"
)

// ==================== RegenTask 站点重建任务 ====================

// RegenTask 定时重建已部署店铺的静态站
// 商品价格/库存改在 Shopify 那边，本地静态页要定期追平
// 策略：每日凌晨 4 点全量重建；单店失败不影响其他店
type RegenTask struct {
	storeRepo repository.StoreRepository
	storeSvc  *service.StoreService
	cron      *cron.Cron

	// 节流
	sleepTime time.Duration
}

// NewRegenTask 创建重建任务
func NewRegenTask(storeRepo repository.StoreRepository, storeSvc *service.StoreService) *RegenTask {
	return &RegenTask{
		storeRepo: storeRepo,
		storeSvc:  storeSvc,
		cron:      cron.New(),
		sleepTime: 500 * time.Millisecond,
	}
}

// Start 启动定时任务
func (t *RegenTask) Start() {
	_, err := t.cron.AddFunc("0 4 * * *", func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Hour)
		defer cancel()
		t.runOnce(ctx)
	})
	if err != nil {
		log.Printf("注册重建任务失败: %v", err)
		return
	}
	t.cron.Start()
	log.Println("站点重建定时任务已启动 (每日 04:00)")
}

// Stop 停止任务，等在途执行结束
func (t *RegenTask) Stop() {
	ctx := t.cron.Stop()
	<-ctx.Done()
}

// runOnce 全量扫一遍已部署店铺
// StoreService 内部按 store id 上锁，和 admin 手动触发的重建天然互斥
func (t *RegenTask) runOnce(ctx context.Context) {
	stores, err := t.storeRepo.ListByStatus(ctx, model.DeployStatusDeployed)
	if err != nil {
		log.Printf("查询已部署店铺失败: %v", err)
		return
	}

	var failed int
	for _, store := range stores {
		if ctx.Err() != nil {
			log.Printf("重建任务超时中断，已处理 %d 家", len(stores)-failed)
			return
		}
		if err := t.storeSvc.RegenerateStoreFiles(ctx, store.ID); err != nil {
			failed++
			log.Printf("重建失败 domain=%s: %v", store.Domain, err)
		}
		time.Sleep(t.sleepTime)
	}
	log.Printf("定时重建完成: 共 %d 家, 失败 %d 家", len(stores), failed)
}
