package utils

import (
	"sync"
	"time"
)

// TTLCache 进程内 TTL 缓存，目前只给商品详情的动态渲染路径用
// 不做包级单例，由调用方构造后注入
// 使用 sync.Map 保证并发安全
type TTLCache struct {
	items sync.Map
	ttl   time.Duration
}

// cacheItem 内部结构，包含值和过期时间
type cacheItem struct {
	value      interface{}
	expiration int64
}

// NewTTLCache 创建缓存，ttl 为统一过期时间
func NewTTLCache(ttl time.Duration) *TTLCache {
	return &TTLCache{ttl: ttl}
}

// Set 设置缓存
func (c *TTLCache) Set(key string, value interface{}) {
	c.items.Store(key, cacheItem{
		value:      value,
		expiration: time.Now().Add(c.ttl).UnixNano(),
	})
}

// Get 获取缓存并验证是否过期
func (c *TTLCache) Get(key string) (interface{}, bool) {
	val, ok := c.items.Load(key)
	if !ok {
		return nil, false
	}

	item := val.(cacheItem)

	// 检查是否过期
	if time.Now().UnixNano() > item.expiration {
		c.items.Delete(key) // 懒删除
		return nil, false
	}

	return item.value, true
}

// Delete 删除缓存
func (c *TTLCache) Delete(key string) {
	c.items.Delete(key)
}
