package settings

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/anoixa/mediastore/database"
	"github.com/anoixa/mediastore/database/models"
)

// setupTestDB 创建测试数据库
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Setting{}))
	t.Cleanup(func() {
		sqlDB, _ := db.DB()
		_ = sqlDB.Close()
	})
	return db
}

func TestSettingRepository_GetMissing(t *testing.T) {
	repo := NewRepository(setupTestDB(t))

	_, err := repo.Get(context.Background(), KeyStorageProvider)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSettingRepository_SetAndOverwrite(t *testing.T) {
	repo := NewRepository(setupTestDB(t))
	ctx := context.Background()

	require.NoError(t, repo.Set(ctx, KeyStorageProvider, "MediaStorage.Database"))
	v, err := repo.Get(ctx, KeyStorageProvider)
	require.NoError(t, err)
	assert.Equal(t, "MediaStorage.Database", v)

	require.NoError(t, repo.Set(ctx, KeyStorageProvider, "MediaStorage.FileSystem"))
	v, err = repo.Get(ctx, KeyStorageProvider)
	require.NoError(t, err)
	assert.Equal(t, "MediaStorage.FileSystem", v)
}

func TestSettingRepository_JoinsTransaction(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()
	require.NoError(t, repo.Set(ctx, KeyStorageProvider, "MediaStorage.Database"))

	tx := db.Begin()
	require.NoError(t, repo.Set(database.WithTx(ctx, tx), KeyStorageProvider, "MediaStorage.FileSystem"))
	require.NoError(t, tx.Rollback().Error)

	v, err := repo.Get(ctx, KeyStorageProvider)
	require.NoError(t, err)
	assert.Equal(t, "MediaStorage.Database", v)
}
