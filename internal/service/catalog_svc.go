package service

import (
	"context"
	"time"

	"storefront_dev_v1/pkg/shopify"
	"storefront_dev_v1/pkg/utils"
)

// CatalogProvider 商品目录抽象
// 对外只承诺：查不到返回 (nil, nil)，其余错误照实返回
type CatalogProvider interface {
	GetProduct(ctx context.Context, handle string) (*shopify.ProductDTO, error)
}

// CatalogService Shopify 目录 + 进程内 TTL 缓存
// 动态渲染在请求路径上，缓存是为了 fail fast 而不是省钱
type CatalogService struct {
	client *shopify.Client
	cache  *utils.TTLCache
}

// NewCatalogService 创建目录服务
func NewCatalogService(client *shopify.Client) *CatalogService {
	return &CatalogService{
		client: client,
		cache:  utils.NewTTLCache(5 * time.Minute),
	}
}

// GetProduct 查商品，命中缓存直接返回
// 负缓存也存：短时间内反复查一个不存在的 handle 不该每次打外部接口
func (s *CatalogService) GetProduct(ctx context.Context, handle string) (*shopify.ProductDTO, error) {
	if cached, ok := s.cache.Get(handle); ok {
		if cached == nil {
			return nil, nil
		}
		return cached.(*shopify.ProductDTO), nil
	}

	product, err := s.client.GetProduct(ctx, handle)
	if err != nil {
		return nil, err
	}
	if product == nil {
		s.cache.Set(handle, nil)
		return nil, nil
	}

	s.cache.Set(handle, product)
	return product, nil
}
