// Package apperr 定义本核心的错误分类
// 约定：
//   - ValidationError / ConflictError 直接抛给 admin 调用方
//   - NotFoundError 由路由层兜底成 fallback 响应，不透传给客户端
//   - SecurityViolation 整次渲染作废
//   - 可降级的脏输入（JSON 解析失败等）就地用默认值恢复，不走错误类型
package apperr

import (
	"errors"
	"fmt"
	"strings"
)

// ==================== ValidationError ====================

// ValidationError 输入缺失或格式错误，操作终止
type ValidationError struct {
	Fields []string // 缺失/非法的字段名
	Msg    string
}

func (e *ValidationError) Error() string {
	if len(e.Fields) > 0 {
		return fmt.Sprintf("参数校验失败: 缺少字段 [%s]", strings.Join(e.Fields, ", "))
	}
	return "参数校验失败: " + e.Msg
}

// NewValidation 按缺失字段构造
func NewValidation(fields ...string) *ValidationError {
	return &ValidationError{Fields: fields}
}

// ==================== ConflictError ====================

// ConflictError 域名/子域/目录冲突，create 操作终止
type ConflictError struct {
	Resource string // domain / subdomain / directory
	Value    string // 冲突的具体值
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("资源冲突: %s %q 已被占用", e.Resource, e.Value)
}

func NewConflict(resource, value string) *ConflictError {
	return &ConflictError{Resource: resource, Value: value}
}

// ==================== NotFoundError ====================

// NotFoundError 店铺/商品/模板不存在
type NotFoundError struct {
	Resource string
	Key      string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s 不存在: %s", e.Resource, e.Key)
}

func NewNotFound(resource, key string) *NotFoundError {
	return &NotFoundError{Resource: resource, Key: key}
}

// ==================== SecurityViolation ====================

// SecurityViolation 商户 JSON 中发现篡改特征，按攻击处理而不是格式问题
type SecurityViolation struct {
	Pattern string // 命中的特征，如 "<script"
}

func (e *SecurityViolation) Error() string {
	return fmt.Sprintf("安全违规: 输入包含被禁止的内容 %q", e.Pattern)
}

func NewSecurityViolation(pattern string) *SecurityViolation {
	return &SecurityViolation{Pattern: pattern}
}

// ==================== 判定辅助 ====================

func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

func IsConflict(err error) bool {
	var c *ConflictError
	return errors.As(err, &c)
}

func IsNotFound(err error) bool {
	var n *NotFoundError
	return errors.As(err, &n)
}

func IsSecurityViolation(err error) bool {
	var s *SecurityViolation
	return errors.As(err, &s)
}
