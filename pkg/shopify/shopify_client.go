package shopify

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
)

// ==================== 配置 ====================

type ClientConfig struct {
	ShopDomain  string // 如 myshop.myshopify.com
	AccessToken string // Storefront token，可为空（公开商品接口不需要）
	Timeout     time.Duration
}

// ==================== 客户端 ====================

// Client Shopify 商品目录客户端
// 只暴露 GetProduct，凭证校验/全量抓取属于 admin 侧，不在这里
type Client struct {
	config *ClientConfig
	http   *resty.Client
}

// NewClient 创建客户端
func NewClient(cfg *ClientConfig) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 5 * time.Second
	}

	client := resty.New()
	// 动态渲染路径要求 fail fast，超时短、只重试一次
	client.SetTimeout(cfg.Timeout)
	client.SetRetryCount(1)
	if cfg.AccessToken != "" {
		client.SetHeader("X-Shopify-Storefront-Access-Token", cfg.AccessToken)
	}

	return &Client{config: cfg, http: client}
}

// GetProduct 按 handle 查询商品，404 返回 (nil, nil)
func (c *Client) GetProduct(ctx context.Context, handle string) (*ProductDTO, error) {
	url := fmt.Sprintf("https://%s/products/%s.json", c.config.ShopDomain, handle)

	var result ProductResp
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&result).
		Get(url)
	if err != nil {
		return nil, fmt.Errorf("shopify 请求失败: %w", err)
	}

	switch resp.StatusCode() {
	case http.StatusOK:
		return &result.Product, nil
	case http.StatusNotFound:
		// 商品不存在不算错误，路由层会回退到静态文件
		return nil, nil
	default:
		return nil, fmt.Errorf("shopify api error: %d", resp.StatusCode())
	}
}
