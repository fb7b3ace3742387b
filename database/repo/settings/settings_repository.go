package settings

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/anoixa/mediastore/database"
	"github.com/anoixa/mediastore/database/models"
)

// KeyStorageProvider 当前生效的媒体存储提供者（系统名）
const KeyStorageProvider = "media.storage.provider"

// ErrNotFound 配置项不存在
var ErrNotFound = errors.New("setting not found")

// Repository 配置仓库接口
type Repository interface {
	// Get 读取配置值，不存在时返回 ErrNotFound
	Get(ctx context.Context, key string) (string, error)
	// Set 写入配置值，上下文中有事务时加入该事务
	Set(ctx context.Context, key, value string) error
	// Invalidate 丢弃该键的缓存（事务提交后调用）
	Invalidate(ctx context.Context, key string)
}

// SettingRepository 配置仓库实现
type SettingRepository struct {
	db *gorm.DB
}

// NewRepository 创建配置仓库
func NewRepository(db *gorm.DB) *SettingRepository {
	return &SettingRepository{db: db}
}

// Get 读取配置值
func (r *SettingRepository) Get(ctx context.Context, key string) (string, error) {
	var setting models.Setting
	err := database.Conn(ctx, r.db).Where("key = ?", key).First(&setting).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("failed to read setting %s: %w", key, err)
	}
	return setting.Value, nil
}

// Set 写入配置值（存在则更新）
func (r *SettingRepository) Set(ctx context.Context, key, value string) error {
	setting := models.Setting{Key: key, Value: value}
	err := database.Conn(ctx, r.db).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&setting).Error
	if err != nil {
		return fmt.Errorf("failed to write setting %s: %w", key, err)
	}
	return nil
}

// Invalidate 无缓存，什么都不做
func (r *SettingRepository) Invalidate(ctx context.Context, key string) {}
