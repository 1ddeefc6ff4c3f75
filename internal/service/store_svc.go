package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math/rand"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"storefront_dev_v1/internal/apperr"
	"storefront_dev_v1/internal/model"
	"storefront_dev_v1/internal/repository"
)

// ==================== 输入 ====================

// CreateStoreInput 建店必填 + 可选字段
type CreateStoreInput struct {
	Name     string `json:"name"`
	Domain   string `json:"domain"`
	Country  string `json:"country"`
	Language string `json:"language"`
	Currency string `json:"currency"`

	ThemePrimaryColor    string `json:"theme_primary_color"`
	ThemeSecondaryColor  string `json:"theme_secondary_color"`
	ThemeBackgroundColor string `json:"theme_background_color"`
	ContactEmail         string `json:"contact_email"`
	ContactPhone         string `json:"contact_phone"`
	CompanyAddress       string `json:"company_address"`
}

// updateAllowList update 只放行这些列，其余 key 静默丢弃
var updateAllowList = map[string]bool{
	"name":                   true,
	"theme_primary_color":    true,
	"theme_secondary_color":  true,
	"theme_background_color": true,
	"country":                true,
	"language":               true,
	"currency":               true,
	"selected_pages":         true,
	"contact_email":          true,
	"contact_phone":          true,
	"company_address":        true,
	"facebook_url":           true,
	"instagram_url":          true,
	"tiktok_url":             true,
}

// ==================== 服务 ====================

// StoreService 店铺生命周期编排
type StoreService struct {
	storeRepo repository.StoreRepository
	pageRepo  repository.PageRepository
	generator *GeneratorService
	hosting   HostingProvider
	baseDir   string // 生成站点的根目录，默认 "stores"

	// 单店 regenerate 自身不可重入，按 store id 串行化
	regenLocks sync.Map
}

// NewStoreService 创建店铺服务
func NewStoreService(
	storeRepo repository.StoreRepository,
	pageRepo repository.PageRepository,
	generator *GeneratorService,
	hosting HostingProvider,
	baseDir string,
) *StoreService {
	if baseDir == "" {
		baseDir = "stores"
	}
	return &StoreService{
		storeRepo: storeRepo,
		pageRepo:  pageRepo,
		generator: generator,
		hosting:   hosting,
		baseDir:   baseDir,
	}
}

// storeDir 每个店铺独占 stores/<domain>/ 子树
func (s *StoreService) storeDir(domain string) string {
	return filepath.Join(s.baseDir, domain)
}

// ==================== Create ====================

// Create 建店：校验 → 唯一性 → 子域 → 落库 → 默认页面 → 生成 → 部署
func (s *StoreService) Create(ctx context.Context, input CreateStoreInput) (*model.Store, error) {
	// 1. 必填校验，缺哪些报哪些
	var missing []string
	for field, value := range map[string]string{
		"name":     input.Name,
		"domain":   input.Domain,
		"country":  input.Country,
		"language": input.Language,
		"currency": input.Currency,
	} {
		if strings.TrimSpace(value) == "" {
			missing = append(missing, field)
		}
	}
	if len(missing) > 0 {
		return nil, apperr.NewValidation(missing...)
	}

	// 2. 域名唯一
	domain := strings.ToLower(strings.TrimSpace(input.Domain))
	exists, err := s.storeRepo.DomainExists(ctx, domain)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, apperr.NewConflict("domain", domain)
	}

	// 3. 目标目录必须是全新的，生成只做增量创建、绝不合并进已有目录
	dir := s.storeDir(domain)
	if _, statErr := os.Stat(dir); statErr == nil {
		return nil, apperr.NewConflict("directory", dir)
	}

	// 4. 分配唯一子域
	subdomain, err := s.GenerateUniqueSubdomain(ctx, input.Name)
	if err != nil {
		return nil, err
	}

	selectedPages, _ := json.Marshal([]string{
		model.PageTypeHome, model.PageTypeProducts, model.PageTypeAbout, model.PageTypeContact,
	})

	store := &model.Store{
		UUID:             uuid.NewString(),
		Name:             input.Name,
		Domain:           domain,
		Subdomain:        subdomain,
		Country:          input.Country,
		Language:         input.Language,
		Currency:         input.Currency,
		DeploymentStatus: model.DeployStatusPending,
		SelectedPages:    selectedPages,
		ContactEmail:     input.ContactEmail,
		ContactPhone:     input.ContactPhone,
		CompanyAddress:   input.CompanyAddress,
	}
	if input.ThemePrimaryColor != "" {
		store.ThemePrimaryColor = input.ThemePrimaryColor
	}
	if input.ThemeSecondaryColor != "" {
		store.ThemeSecondaryColor = input.ThemeSecondaryColor
	}
	if input.ThemeBackgroundColor != "" {
		store.ThemeBackgroundColor = input.ThemeBackgroundColor
	}

	// 5. 落库
	if err := s.storeRepo.Create(ctx, store); err != nil {
		return nil, err
	}

	// 6. 默认页面
	if err := s.pageRepo.BatchCreate(ctx, defaultPages(store)); err != nil {
		return nil, err
	}

	// 7. 生成 + 部署
	if err := s.deploy(ctx, store); err != nil {
		return store, err
	}
	return store, nil
}

// defaultPages 建店时的四个标准页面
func defaultPages(store *model.Store) []model.Page {
	heroBlocks, _ := json.Marshal([]map[string]interface{}{
		{"type": "hero", "heading": "Welcome to {company_name}", "text": "Quality products, delivered to your door.", "link": "/products", "label": "Shop now"},
	})
	aboutBlocks, _ := json.Marshal([]map[string]interface{}{
		{"type": "text", "heading": "About {company_name}", "text": "We started {company_name} with one goal: honest products at honest prices."},
	})
	contactBlocks, _ := json.Marshal([]map[string]interface{}{
		{"type": "text", "heading": "Contact us", "text": "Reach us at {contact_email} or visit {company_address}."},
	})
	return []model.Page{
		{StoreID: store.ID, PageType: model.PageTypeHome, Slug: "index", Language: store.Language, Title: "Home", ContentBlocks: heroBlocks, Enabled: true},
		{StoreID: store.ID, PageType: model.PageTypeProducts, Slug: "products", Language: store.Language, Title: "Products", Enabled: true},
		{StoreID: store.ID, PageType: model.PageTypeAbout, Slug: "about", Language: store.Language, Title: "About", ContentBlocks: aboutBlocks, Enabled: true},
		{StoreID: store.ID, PageType: model.PageTypeContact, Slug: "contact", Language: store.Language, Title: "Contact", ContentBlocks: contactBlocks, Enabled: true},
	}
}

// deploy 生成文件并建 alias，状态机：pending→deployed / 失败→failed
func (s *StoreService) deploy(ctx context.Context, store *model.Store) error {
	s.setStatus(ctx, store.ID, model.DeployStatusDeploying)

	if err := s.generator.GenerateStoreFiles(ctx, store); err != nil {
		s.setStatus(ctx, store.ID, model.DeployStatusFailed)
		store.DeploymentStatus = model.DeployStatusFailed
		return fmt.Errorf("生成站点文件失败: %w", err)
	}

	if err := s.hosting.CreateDomainAlias(ctx, store.Domain, s.storeDir(store.Domain)); err != nil {
		s.setStatus(ctx, store.ID, model.DeployStatusFailed)
		store.DeploymentStatus = model.DeployStatusFailed
		return err
	}

	if err := s.storeRepo.UpdateDeploymentStatus(ctx, store.ID, model.DeployStatusDeployed); err != nil {
		return err
	}
	store.DeploymentStatus = model.DeployStatusDeployed
	return nil
}

// setStatus 中间状态的写失败不中断部署流程，但必须留痕
// 最终的 deployed 状态不走这里：那次写失败意味着店铺上不了线，要抛给调用方
func (s *StoreService) setStatus(ctx context.Context, id int64, status string) {
	if err := s.storeRepo.UpdateDeploymentStatus(ctx, id, status); err != nil {
		log.Printf("更新部署状态失败 id=%d status=%s: %v", id, status, err)
	}
}

// ==================== 子域生成 ====================

var (
	slugStripRe    = regexp.MustCompile(`[^a-z0-9-]+`)
	slugCollapseRe = regexp.MustCompile(`-+`)
	suffixAlphabet = []rune("abcdefghijklmnopqrstuvwxyz0123456789")
)

const (
	subdomainMinLen = 3
	subdomainPrefix = "store"
)

// Slugify 店名 → 子域基础 slug
func Slugify(name string) string {
	slug := strings.ToLower(strings.TrimSpace(name))
	slug = strings.ReplaceAll(slug, " ", "-")
	slug = slugStripRe.ReplaceAllString(slug, "")
	slug = slugCollapseRe.ReplaceAllString(slug, "-")
	slug = strings.Trim(slug, "-")
	return slug
}

// GenerateUniqueSubdomain 取号规则：
//  1. 基础 slug 没人用 → 直接用
//  2. 被占 → 加 6 位时间戳后缀
//  3. 还被占 → 6 位随机字母数字后缀，换着随机数一直试到空闲
func (s *StoreService) GenerateUniqueSubdomain(ctx context.Context, name string) (string, error) {
	slug := Slugify(name)
	// 过短的 slug 统一垫上固定前缀
	if len(slug) < subdomainMinLen {
		slug = strings.Trim(subdomainPrefix+"-"+slug, "-")
	}

	taken, err := s.storeRepo.SubdomainExists(ctx, slug)
	if err != nil {
		return "", err
	}
	if !taken {
		return slug, nil
	}

	// 时间戳后缀（秒级取后 6 位）
	candidate := fmt.Sprintf("%s-%06d", slug, time.Now().Unix()%1000000)
	taken, err = s.storeRepo.SubdomainExists(ctx, candidate)
	if err != nil {
		return "", err
	}
	if !taken {
		return candidate, nil
	}

	// 随机后缀，理论上必然终止
	for {
		suffix := make([]rune, 6)
		for i := range suffix {
			suffix[i] = suffixAlphabet[rand.Intn(len(suffixAlphabet))]
		}
		candidate = slug + "-" + string(suffix)
		taken, err = s.storeRepo.SubdomainExists(ctx, candidate)
		if err != nil {
			return "", err
		}
		if !taken {
			return candidate, nil
		}
	}
}

// ==================== Update ====================

// Update 只放行 allow-list 列；全部被过滤掉时不碰存储
func (s *StoreService) Update(ctx context.Context, id int64, fields map[string]interface{}) error {
	filtered := make(map[string]interface{}, len(fields))
	for key, value := range fields {
		if updateAllowList[key] {
			filtered[key] = value
		}
	}
	if len(filtered) == 0 {
		return nil
	}
	return s.storeRepo.UpdateFields(ctx, id, filtered)
}

// ==================== Regenerate ====================

// RegenerateStoreFiles 重建整个站点目录
// 同一店铺不允许并发 regenerate，这里直接按 id 上互斥锁
// 已部署的店铺重建后状态保持 deployed，不做状态往返
func (s *StoreService) RegenerateStoreFiles(ctx context.Context, id int64) error {
	lockVal, _ := s.regenLocks.LoadOrStore(id, &sync.Mutex{})
	lock := lockVal.(*sync.Mutex)
	lock.Lock()
	defer lock.Unlock()

	store, err := s.storeRepo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	return s.generator.GenerateStoreFiles(ctx, store)
}

// ==================== Delete ====================

// Delete 三步拆除：数据库行 → 生成目录 → 域名 alias
// 任何一步失败都原样抛出。alias 拆除失败尤其不能吞，
// 否则会留下指向已删内容的孤儿 alias
func (s *StoreService) Delete(ctx context.Context, id int64) error {
	store, err := s.storeRepo.GetByID(ctx, id)
	if err != nil {
		return err
	}

	if err := s.pageRepo.DeleteByStoreID(ctx, store.ID); err != nil {
		return fmt.Errorf("删除店铺页面失败: %w", err)
	}
	if err := s.storeRepo.Delete(ctx, store.ID); err != nil {
		return fmt.Errorf("删除店铺记录失败: %w", err)
	}
	if err := os.RemoveAll(s.storeDir(store.Domain)); err != nil {
		return fmt.Errorf("删除站点目录失败: %w", err)
	}
	if err := s.hosting.RemoveDomainAlias(ctx, store.Domain); err != nil {
		return fmt.Errorf("拆除域名 alias 失败: %w", err)
	}

	log.Printf("店铺已删除 id=%d domain=%s", store.ID, store.Domain)
	return nil
}

// ==================== 模板变量替换 ====================

// ReplaceTemplateVariables 替换固定的 $ 变量集
// 没值的变量替换成哨兵 "TBD"，绝不留占位符也绝不报错
// 空输入原样返回
func ReplaceTemplateVariables(store *model.Store, text string) string {
	if text == "" {
		return text
	}

	vars := map[string]string{
		"$company_name":    store.Name,
		"$domain":          store.Domain,
		"$contact_email":   store.ContactEmail,
		"$contact_phone":   store.ContactPhone,
		"$company_address": store.CompanyAddress,
		"$currency":        store.Currency,
	}
	for key, value := range vars {
		if value == "" {
			value = "TBD"
		}
		text = strings.ReplaceAll(text, key, value)
	}
	return text
}

// placeholderValues {variable} 风格占位符的取值表
func placeholderValues(store *model.Store) map[string]string {
	return map[string]string{
		"{company_name}":    store.Name,
		"{domain}":          store.Domain,
		"{contact_email}":   store.ContactEmail,
		"{contact_phone}":   store.ContactPhone,
		"{company_address}": store.CompanyAddress,
		"{currency}":        store.Currency,
	}
}

func replacePlaceholdersInString(store *model.Store, text string) string {
	for key, value := range placeholderValues(store) {
		if value == "" {
			value = "TBD"
		}
		text = strings.ReplaceAll(text, key, value)
	}
	return text
}

// ReplaceContentPlaceholders 对象所有 string 字段做 {variable} 替换
// content_blocks 字段先按 JSON 解析再替换嵌套文本，
// 解析失败时该字段原样保留（不报错、不丢内容）
func ReplaceContentPlaceholders(store *model.Store, obj map[string]interface{}) map[string]interface{} {
	if obj == nil {
		return nil
	}

	out := make(map[string]interface{}, len(obj))
	for key, value := range obj {
		str, isStr := value.(string)
		if !isStr {
			out[key] = value
			continue
		}

		if key == "content_blocks" {
			var blocks interface{}
			if err := json.Unmarshal([]byte(str), &blocks); err != nil {
				// 不是合法 JSON：原样保留
				out[key] = str
				continue
			}
			replaced := replacePlaceholdersDeep(store, blocks)
			encoded, err := json.Marshal(replaced)
			if err != nil {
				out[key] = str
				continue
			}
			out[key] = string(encoded)
			continue
		}

		out[key] = replacePlaceholdersInString(store, str)
	}
	return out
}

// replacePlaceholdersDeep 递归替换 JSON 树里的字符串
func replacePlaceholdersDeep(store *model.Store, node interface{}) interface{} {
	switch v := node.(type) {
	case string:
		return replacePlaceholdersInString(store, v)
	case map[string]interface{}:
		for key, child := range v {
			v[key] = replacePlaceholdersDeep(store, child)
		}
		return v
	case []interface{}:
		for i, child := range v {
			v[i] = replacePlaceholdersDeep(store, child)
		}
		return v
	default:
		return node
	}
}
