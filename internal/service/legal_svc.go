package service

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// ==================== 常量与字典 ====================

// 标准法务页面类型
const (
	LegalTypePrivacy  = "privacy"
	LegalTypeTerms    = "terms"
	LegalTypeRefund   = "refund"
	LegalTypeDelivery = "delivery"
)

// legalSlugDict 各语言本地化 slug → 标准页面类型
// 新语言上线时在这里补字典即可，文件本身不用改名
var legalSlugDict = map[string]map[string]string{
	"en": {
		"privacy-policy":       LegalTypePrivacy,
		"terms-of-service":     LegalTypeTerms,
		"terms-and-conditions": LegalTypeTerms,
		"refund-policy":        LegalTypeRefund,
		"shipping-policy":      LegalTypeDelivery,
		"delivery-policy":      LegalTypeDelivery,
	},
	"de": {
		"datenschutz":           LegalTypePrivacy,
		"datenschutzerklaerung": LegalTypePrivacy,
		"agb":                   LegalTypeTerms,
		"widerrufsbelehrung":    LegalTypeRefund,
		"rueckgabe":             LegalTypeRefund,
		"versand":               LegalTypeDelivery,
		"lieferung":             LegalTypeDelivery,
	},
	"se": {
		"integritetspolicy":    LegalTypePrivacy,
		"kopvillkor":           LegalTypeTerms,
		"villkor":              LegalTypeTerms,
		"aterbetalningspolicy": LegalTypeRefund,
		"returpolicy":          LegalTypeRefund,
		"leveranspolicy":       LegalTypeDelivery,
		"leverans":             LegalTypeDelivery,
	},
	"fr": {
		"politique-de-confidentialite": LegalTypePrivacy,
		"conditions-generales":         LegalTypeTerms,
		"politique-de-remboursement":   LegalTypeRefund,
		"livraison":                    LegalTypeDelivery,
	},
	"es": {
		"politica-de-privacidad": LegalTypePrivacy,
		"terminos-y-condiciones": LegalTypeTerms,
		"politica-de-reembolso":  LegalTypeRefund,
		"politica-de-envio":      LegalTypeDelivery,
	},
}

// legalDefaultTitles 各语言的默认标题，<title>/<h1> 都缺失时兜底
var legalDefaultTitles = map[string]map[string]string{
	"en": {
		LegalTypePrivacy:  "Privacy Policy",
		LegalTypeTerms:    "Terms of Service",
		LegalTypeRefund:   "Refund Policy",
		LegalTypeDelivery: "Delivery Policy",
	},
	"de": {
		LegalTypePrivacy:  "Datenschutzerklärung",
		LegalTypeTerms:    "AGB",
		LegalTypeRefund:   "Widerrufsbelehrung",
		LegalTypeDelivery: "Versandbedingungen",
	},
	"se": {
		LegalTypePrivacy:  "Integritetspolicy",
		LegalTypeTerms:    "Köpvillkor",
		LegalTypeRefund:   "Återbetalningspolicy",
		LegalTypeDelivery: "Leveranspolicy",
	},
	"fr": {
		LegalTypePrivacy:  "Politique de confidentialité",
		LegalTypeTerms:    "Conditions générales",
		LegalTypeRefund:   "Politique de remboursement",
		LegalTypeDelivery: "Livraison",
	},
	"es": {
		LegalTypePrivacy:  "Política de privacidad",
		LegalTypeTerms:    "Términos y condiciones",
		LegalTypeRefund:   "Política de reembolso",
		LegalTypeDelivery: "Política de envío",
	},
}

// ==================== 数据结构 ====================

// LegalPageEntry 索引中的一条法务页面
type LegalPageEntry struct {
	Language string
	PageType string // 标准类型，或未映射时的原始 slug（fallback）
	Slug     string // 本地化 slug，内链用
	Title    string
	Content  string
}

// ==================== 解析 ====================

var legalFileNameRe = regexp.MustCompile(`^([a-z]{2})-([a-z0-9-]+)\.html$`)

// ParseLegalFileName 严格解析 <lang>-<slug>.html
// 未映射的 slug 返回错误；Load 会捕获这种情况降级成 fallback 类型。
// 两种行为并存是有意保留的（见 DESIGN.md），不要在这里"顺手"统一
func ParseLegalFileName(filename string) (language, pageType string, err error) {
	m := legalFileNameRe.FindStringSubmatch(filename)
	if m == nil {
		return "", "", fmt.Errorf("文件名不符合 <lang>-<slug>.html 约定: %s", filename)
	}
	language = m[1]
	slug := m[2]

	dict, ok := legalSlugDict[language]
	if !ok {
		return language, "", fmt.Errorf("未支持的语言: %s", language)
	}
	pageType, ok = dict[slug]
	if !ok {
		return language, "", fmt.Errorf("语言 %s 下未映射的 slug: %s", language, slug)
	}
	return language, pageType, nil
}

var (
	titleTagRe = regexp.MustCompile(`(?is)<title[^>]*>(.*?)</title>`)
	h1TagRe    = regexp.MustCompile(`(?is)<h1[^>]*>(.*?)</h1>`)
	anyTagRe   = regexp.MustCompile(`<[^>]+>`)
)

// extractLegalTitle 提取顺序：<title> → <h1> → 按语言/类型生成默认值
func extractLegalTitle(content, language, pageType string) string {
	if m := titleTagRe.FindStringSubmatch(content); m != nil {
		if title := strings.TrimSpace(anyTagRe.ReplaceAllString(m[1], "")); title != "" {
			return title
		}
	}
	if m := h1TagRe.FindStringSubmatch(content); m != nil {
		if title := strings.TrimSpace(anyTagRe.ReplaceAllString(m[1], "")); title != "" {
			return title
		}
	}
	if titles, ok := legalDefaultTitles[language]; ok {
		if title, ok := titles[pageType]; ok {
			return title
		}
	}
	// 未映射类型的兜底：slug 转标题
	words := strings.Split(strings.ReplaceAll(pageType, "-", " "), " ")
	for i, w := range words {
		if w != "" {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
	}
	return strings.Join(words, " ")
}

// ==================== 加载器 ====================

// LegalPageService 法务页面本地化索引
// Load 一次性加载，之后只读，不加锁
type LegalPageService struct {
	dir string
	// index[language][pageType] = entry
	index map[string]map[string]LegalPageEntry
}

// NewLegalPageService 创建加载器，dir 为法务模板目录
func NewLegalPageService(dir string) *LegalPageService {
	return &LegalPageService{
		dir:   dir,
		index: make(map[string]map[string]LegalPageEntry),
	}
}

// Load 扫描目录建索引，可重复调用（幂等，整体重建）
// 目录不存在只告警，返回空索引
func (s *LegalPageService) Load() error {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			log.Printf("法务页面目录不存在，跳过加载: %s", s.dir)
			s.index = make(map[string]map[string]LegalPageEntry)
			return nil
		}
		return fmt.Errorf("读取法务页面目录失败: %w", err)
	}

	index := make(map[string]map[string]LegalPageEntry)
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".html") {
			continue
		}

		language, pageType, parseErr := ParseLegalFileName(entry.Name())
		if parseErr != nil {
			if language == "" {
				// 连文件名格式都不对，直接跳过
				log.Printf("忽略非法文件名: %s (%v)", entry.Name(), parseErr)
				continue
			}
			// 语言合法但 slug 未映射：保留为 fallback 类型，等字典更新，不丢内容
			m := legalFileNameRe.FindStringSubmatch(entry.Name())
			pageType = m[2]
			log.Printf("未映射的法务 slug，按 fallback 类型保留: %s", entry.Name())
		}

		raw, readErr := os.ReadFile(filepath.Join(s.dir, entry.Name()))
		if readErr != nil {
			log.Printf("读取法务页面失败: %s (%v)", entry.Name(), readErr)
			continue
		}

		slug := strings.TrimSuffix(strings.TrimPrefix(entry.Name(), language+"-"), ".html")
		content := string(raw)
		if index[language] == nil {
			index[language] = make(map[string]LegalPageEntry)
		}
		index[language][pageType] = LegalPageEntry{
			Language: language,
			PageType: pageType,
			Slug:     slug,
			Title:    extractLegalTitle(content, language, pageType),
			Content:  content,
		}
	}

	s.index = index
	return nil
}

// Get 正向查询 (language, pageType)
func (s *LegalPageService) Get(language, pageType string) (LegalPageEntry, bool) {
	byType, ok := s.index[language]
	if !ok {
		return LegalPageEntry{}, false
	}
	entry, ok := byType[pageType]
	return entry, ok
}

// ListByLanguage 取某语言下全部页面（含 fallback 类型）
func (s *LegalPageService) ListByLanguage(language string) []LegalPageEntry {
	byType, ok := s.index[language]
	if !ok {
		return nil
	}
	list := make([]LegalPageEntry, 0, len(byType))
	for _, entry := range byType {
		list = append(list, entry)
	}
	return list
}

// SlugFor 反查内链用的本地化 slug
func (s *LegalPageService) SlugFor(language, pageType string) (string, bool) {
	entry, ok := s.Get(language, pageType)
	if !ok {
		return "", false
	}
	return entry.Slug, true
}
