package cache

import (
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/anoixa/mediastore/cache/memory"
	"github.com/anoixa/mediastore/cache/redis"
	"github.com/anoixa/mediastore/cache/types"
	"github.com/anoixa/mediastore/config"
)

// NewProvider 根据配置创建缓存提供者
func NewProvider(cfg *config.Config) (types.Provider, error) {
	switch cfg.CacheType {
	case "redis":
		provider, err := redis.NewRedis(cfg.CacheRedisAddr, cfg.CacheRedisPassword, cfg.CacheRedisDB)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.CacheRedisAddr, err)
		}
		log.Printf("[Cache] Using redis cache at %s", cfg.CacheRedisAddr)
		return provider, nil
	case "memory", "":
		provider, err := memory.NewMemory(memory.DefaultConfig())
		if err != nil {
			return nil, fmt.Errorf("failed to create memory cache: %w", err)
		}
		log.Println("[Cache] Using in-memory cache")
		return provider, nil
	default:
		return nil, fmt.Errorf("unsupported cache type: %s", cfg.CacheType)
	}
}
