package settings

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/anoixa/mediastore/cache"
	"github.com/anoixa/mediastore/cache/types"
	"github.com/anoixa/mediastore/database"
)

// DefaultCacheTTL 默认缓存过期时间
const DefaultCacheTTL = 5 * time.Minute

// CachedRepository 带缓存的配置仓库装饰器
type CachedRepository struct {
	repo  Repository
	cache types.Provider
	ttl   time.Duration
	group singleflight.Group
}

// NewCachedRepository 创建带缓存的配置仓库
func NewCachedRepository(repo Repository, cacheProvider types.Provider, ttl time.Duration) *CachedRepository {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &CachedRepository{
		repo:  repo,
		cache: cacheProvider,
		ttl:   ttl,
	}
}

// Get 读取配置（带缓存）
// 事务内的读取直接查库，避免读到事务外的旧值
func (c *CachedRepository) Get(ctx context.Context, key string) (string, error) {
	if database.InTx(ctx) {
		return c.repo.Get(ctx, key)
	}

	cacheKey := cache.Setting.Build(key)

	var cached string
	if err := c.cache.Get(ctx, cacheKey, &cached); err == nil {
		return cached, nil
	} else if !types.IsCacheMiss(err) {
		log.Warnf("[SettingsCache] Failed to read cache for %s: %v", key, err)
	}

	v, err, _ := c.group.Do(key, func() (interface{}, error) {
		value, err := c.repo.Get(ctx, key)
		if err != nil {
			return "", err
		}
		if err := c.cache.Set(ctx, cacheKey, value, c.ttl); err != nil {
			log.Warnf("[SettingsCache] Failed to cache %s: %v", key, err)
		}
		return value, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// Set 写入配置，事务外写入时立即失效缓存
func (c *CachedRepository) Set(ctx context.Context, key, value string) error {
	if err := c.repo.Set(ctx, key, value); err != nil {
		return err
	}
	if !database.InTx(ctx) {
		c.Invalidate(ctx, key)
	}
	return nil
}

// Invalidate 丢弃缓存
func (c *CachedRepository) Invalidate(ctx context.Context, key string) {
	if err := c.cache.Delete(ctx, cache.Setting.Build(key)); err != nil {
		log.Warnf("[SettingsCache] Failed to invalidate %s: %v", key, err)
	}
}
