package service

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
)

// ==================== 配置 ====================

type HostingConfig struct {
	BaseURL  string // 托管商控制面地址
	APIToken string
	Timeout  time.Duration
}

// ==================== 服务 ====================

// HostingProvider 托管/部署商抽象（git 推送和 DNS 都在对面）
// 本核心只管 alias 的建立与拆除，失败原样抛出、不重试
type HostingProvider interface {
	CreateDomainAlias(ctx context.Context, domain, target string) error
	RemoveDomainAlias(ctx context.Context, domain string) error
}

// HostingService 托管商 REST 客户端
type HostingService struct {
	config *HostingConfig
	http   *resty.Client
}

// NewHostingService 创建托管服务客户端
func NewHostingService(cfg *HostingConfig) *HostingService {
	if cfg.Timeout == 0 {
		cfg.Timeout = 15 * time.Second
	}

	client := resty.New()
	client.SetTimeout(cfg.Timeout)
	client.SetBaseURL(cfg.BaseURL)
	client.SetAuthToken(cfg.APIToken)

	return &HostingService{config: cfg, http: client}
}

// CreateDomainAlias 把客户域名指到部署目标
func (s *HostingService) CreateDomainAlias(ctx context.Context, domain, target string) error {
	resp, err := s.http.R().
		SetContext(ctx).
		SetBody(map[string]string{"domain": domain, "target": target}).
		Post("/v1/aliases")
	if err != nil {
		return fmt.Errorf("创建域名 alias 请求失败: %w", err)
	}
	if resp.StatusCode() != http.StatusOK && resp.StatusCode() != http.StatusCreated {
		return fmt.Errorf("创建域名 alias 失败 domain=%s: %d %s", domain, resp.StatusCode(), resp.String())
	}
	return nil
}

// RemoveDomainAlias 拆除 alias；404 当成功（目标本来就不在）
func (s *HostingService) RemoveDomainAlias(ctx context.Context, domain string) error {
	resp, err := s.http.R().
		SetContext(ctx).
		Delete("/v1/aliases/" + domain)
	if err != nil {
		return fmt.Errorf("删除域名 alias 请求失败: %w", err)
	}
	if resp.StatusCode() != http.StatusOK && resp.StatusCode() != http.StatusNotFound {
		return fmt.Errorf("删除域名 alias 失败 domain=%s: %d %s", domain, resp.StatusCode(), resp.String())
	}
	return nil
}
