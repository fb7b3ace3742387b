package app

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/anoixa/mediastore/cache"
	"github.com/anoixa/mediastore/cache/types"
	"github.com/anoixa/mediastore/config"
	"github.com/anoixa/mediastore/database"
	"github.com/anoixa/mediastore/database/repo/settings"
	"github.com/anoixa/mediastore/internal/mover"
	"github.com/anoixa/mediastore/internal/worker"
	"github.com/anoixa/mediastore/storage"
)

// Container 依赖注入容器 - 管理所有服务的生命周期
type Container struct {
	config   *config.Config
	db       *gorm.DB
	cache    types.Provider
	settings settings.Repository
	pool     *worker.Pool
	registry *storage.Registry
	metrics  *mover.Metrics
	mover    *mover.Mover
}

// NewContainer 创建新的依赖注入容器
func NewContainer(cfg *config.Config) *Container {
	return &Container{
		config: cfg,
	}
}

// Init 初始化所有服务
func (c *Container) Init() error {
	log.Debug("Initializing container...")

	if err := c.initDatabase(); err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	if err := c.initSettings(); err != nil {
		return fmt.Errorf("failed to initialize settings: %w", err)
	}

	c.pool = worker.NewPool(c.config.GetWorkerCount(), c.config.WorkerQueueSize)

	if err := c.initStorage(); err != nil {
		return fmt.Errorf("failed to initialize storage providers: %w", err)
	}

	c.metrics = mover.MustNewMetrics(prometheus.DefaultRegisterer)
	c.mover = mover.New(c.db, c.registry, c.settings, mover.Options{
		PageSize: c.config.MovePageSize,
		Metrics:  c.metrics,
	})

	log.Debug("Container initialized successfully")
	return nil
}

func (c *Container) initDatabase() error {
	db, err := database.NewDB(c.config)
	if err != nil {
		return err
	}
	if err := database.AutoMigrate(db); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	c.db = db
	return nil
}

// initSettings 配置仓库前挂一层缓存
func (c *Container) initSettings() error {
	provider, err := cache.NewProvider(c.config)
	if err != nil {
		return err
	}
	c.cache = provider

	ttl := time.Duration(c.config.CacheSettingsTTL) * time.Second
	c.settings = settings.NewCachedRepository(settings.NewRepository(c.db), provider, ttl)
	return nil
}

// initStorage 注册所有已配置的存储提供者，远程存储初始化失败时跳过
func (c *Container) initStorage() error {
	cfg := c.config
	c.registry = storage.NewRegistry()

	if _, err := c.registry.Register(storage.NewDatabaseProvider(c.db, storage.DatabaseOptions{
		ChunkSize:      cfg.ChunkSize(),
		ValidationMode: cfg.MediaValidationMode,
	})); err != nil {
		return err
	}

	pathOpts := storage.PathOptions{
		Layout: storage.PathLayout{ShardLength: cfg.MediaShardLength},
		Jobs:   c.pool,
		Sweep: storage.SweepOptions{
			Concurrency:      cfg.CleanupConcurrency,
			DeletesPerSecond: cfg.CleanupDeletesPerSec,
		},
	}

	fsProvider, err := storage.NewLocalFileSystemProvider(cfg.MediaRootPath, pathOpts)
	if err != nil {
		return err
	}
	if _, err := c.registry.Register(fsProvider); err != nil {
		return err
	}

	if cfg.MinioEndpoint != "" {
		minioProvider, err := storage.NewMinioProvider(storage.MinioConfig{
			Endpoint:        cfg.MinioEndpoint,
			AccessKeyID:     cfg.MinioAccessKeyID,
			SecretAccessKey: cfg.MinioSecretAccessKey,
			BucketName:      cfg.MinioBucketName,
			UseSSL:          cfg.MinioUseSSL,
		}, pathOpts)
		if err != nil {
			log.Warnf("[Storage] Failed to initialize minio storage: %v", err)
		} else if _, err := c.registry.Register(minioProvider); err != nil {
			return err
		}
	}

	if cfg.WebDAVURL != "" {
		webdavProvider, err := storage.NewWebDAVProvider(storage.WebDAVConfig{
			URL:      cfg.WebDAVURL,
			Username: cfg.WebDAVUsername,
			Password: cfg.WebDAVPassword,
			RootPath: cfg.WebDAVRootPath,
		}, pathOpts)
		if err != nil {
			log.Warnf("[Storage] Failed to initialize webdav storage: %v", err)
		} else if _, err := c.registry.Register(webdavProvider); err != nil {
			return err
		}
	}

	for _, reg := range c.registry.List() {
		log.Debugf("[Storage] '%s' available (movable=%t)", reg.SystemName(), reg.SupportsMoving())
	}
	return nil
}

// GetConfig 获取配置
func (c *Container) GetConfig() *config.Config {
	return c.config
}

func (c *Container) DB() *gorm.DB {
	return c.db
}

func (c *Container) Registry() *storage.Registry {
	return c.registry
}

func (c *Container) Settings() settings.Repository {
	return c.settings
}

func (c *Container) Mover() *mover.Mover {
	return c.mover
}

// Close 等待后台清理完成后关闭所有服务
func (c *Container) Close() error {
	log.Debug("Closing container...")

	if c.pool != nil {
		c.pool.Stop()
	}

	if c.cache != nil {
		if err := c.cache.Close(); err != nil {
			log.Errorf("Error closing cache: %v", err)
		}
	}

	if c.db != nil {
		if err := database.Close(c.db); err != nil {
			log.Errorf("Error closing database: %v", err)
		}
	}

	log.Debug("Container closed")
	return nil
}
