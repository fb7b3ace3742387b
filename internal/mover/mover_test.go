package mover

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/anoixa/mediastore/database"
	"github.com/anoixa/mediastore/database/models"
	"github.com/anoixa/mediastore/database/repo/settings"
	"github.com/anoixa/mediastore/internal/worker"
	"github.com/anoixa/mediastore/storage"
)

// failingFs 路径包含 match 时创建文件失败
type failingFs struct {
	afero.Fs
	match string
}

func (f *failingFs) OpenFile(name string, flag int, perm os.FileMode) (afero.File, error) {
	if flag&os.O_CREATE != 0 && strings.Contains(name, f.match) {
		return nil, fmt.Errorf("injected write failure for %s", name)
	}
	return f.Fs.OpenFile(name, flag, perm)
}

func (f *failingFs) Create(name string) (afero.File, error) {
	if strings.Contains(name, f.match) {
		return nil, fmt.Errorf("injected write failure for %s", name)
	}
	return f.Fs.Create(name)
}

type testEnv struct {
	db       *gorm.DB
	fs       afero.Fs
	pool     *worker.Pool
	registry *storage.Registry
	settings settings.Repository
	dbReg    *storage.Registration
	fsReg    *storage.Registration
	dbp      *storage.DatabaseProvider
	fsp      *storage.PathProvider
	metrics  *Metrics
	mover    *Mover
}

func setupEnv(t *testing.T, fs afero.Fs) *testEnv {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:                 logger.Default.LogMode(logger.Silent),
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)
	require.NoError(t, database.AutoMigrate(db))
	t.Cleanup(func() {
		sqlDB, _ := db.DB()
		_ = sqlDB.Close()
	})

	if fs == nil {
		fs = afero.NewMemMapFs()
	}
	pool := worker.NewPool(2, 100)
	t.Cleanup(pool.Stop)

	env := &testEnv{
		db:       db,
		fs:       fs,
		pool:     pool,
		registry: storage.NewRegistry(),
		settings: settings.NewRepository(db),
		metrics:  MustNewMetrics(prometheus.NewRegistry()),
	}
	env.dbp = storage.NewDatabaseProvider(db, storage.DatabaseOptions{})
	env.fsp = storage.NewFileSystemProvider(fs, storage.PathOptions{Jobs: pool})
	env.dbReg = env.registry.MustRegister(env.dbp)
	env.fsReg = env.registry.MustRegister(env.fsp)
	env.mover = New(db, env.registry, env.settings, Options{PageSize: 100, Metrics: env.metrics})
	return env
}

func pictureContent(id uint) string {
	return fmt.Sprintf("picture-%d", id)
}

// seedPictures 写入 n 张图片，内容保存在数据库中
func (e *testEnv) seedPictures(t *testing.T, n int) {
	t.Helper()
	ctx := context.Background()
	for i := 0; i < n; i++ {
		pic := &models.Picture{MediaFile: models.MediaFile{MimeType: "image/jpeg", Extension: ".jpg"}}
		require.NoError(t, e.db.Create(pic).Error)
		item := storage.PictureItem(pic)
		require.NoError(t, e.dbp.Save(ctx, item, storage.FromStream(bytes.NewBufferString(pictureContent(pic.ID)))))
		require.NoError(t, e.db.Save(pic).Error)
	}
}

func (e *testEnv) allPictures(t *testing.T) []models.Picture {
	t.Helper()
	var pics []models.Picture
	require.NoError(t, e.db.Unscoped().Order("id").Find(&pics).Error)
	return pics
}

func (e *testEnv) blobCount(t *testing.T) int64 {
	t.Helper()
	var n int64
	require.NoError(t, e.db.Model(&models.MediaStorage{}).Count(&n).Error)
	return n
}

func (e *testEnv) fileCount(t *testing.T) int {
	t.Helper()
	n := 0
	err := afero.Walk(e.fs, "", func(_ string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			n++
		}
		return nil
	})
	require.NoError(t, err)
	return n
}

func (e *testEnv) currentProvider(t *testing.T) string {
	t.Helper()
	name, err := e.mover.CurrentProvider(context.Background())
	require.NoError(t, err)
	return name
}

func TestMove_DatabaseToFileSystem(t *testing.T) {
	env := setupEnv(t, nil)
	env.seedPictures(t, 250)
	ctx := context.Background()

	ok, err := env.mover.Move(ctx, env.dbReg, env.fsReg)
	require.NoError(t, err)
	require.True(t, ok)
	env.pool.Stop()

	pics := env.allPictures(t)
	require.Len(t, pics, 250)
	for _, pic := range pics {
		assert.Nil(t, pic.MediaStorageID, "picture %d still references a blob", pic.ID)

		path := fmt.Sprintf("pictures/%s/%07d-0.jpg", fmt.Sprintf("%07d", pic.ID)[:4], pic.ID)
		data, err := afero.ReadFile(env.fs, path)
		require.NoError(t, err)
		assert.Equal(t, pictureContent(pic.ID), string(data))
	}

	assert.Equal(t, int64(0), env.blobCount(t))
	assert.Equal(t, 250, env.fileCount(t))
	assert.Equal(t, storage.FileSystemSystemName, env.currentProvider(t))

	assert.Equal(t, float64(250), testutil.ToFloat64(env.metrics.movedItems.WithLabelValues("pictures")))
	assert.Equal(t, float64(1), testutil.ToFloat64(env.metrics.runs.WithLabelValues(storage.DatabaseSystemName, storage.FileSystemSystemName, "success")))
}

func TestMove_FailureRollsBackEverything(t *testing.T) {
	fs := &failingFs{Fs: afero.NewMemMapFs(), match: "0000151-0"}
	env := setupEnv(t, fs)
	env.seedPictures(t, 250)
	ctx := context.Background()

	before := env.allPictures(t)

	ok, err := env.mover.Move(ctx, env.dbReg, env.fsReg)
	require.Error(t, err)
	assert.False(t, ok)
	assert.Contains(t, err.Error(), "pictures#151")

	// 等待后台清理完成
	env.pool.Stop()

	after := env.allPictures(t)
	require.Len(t, after, 250)
	for i := range after {
		require.NotNil(t, after[i].MediaStorageID)
		assert.Equal(t, *before[i].MediaStorageID, *after[i].MediaStorageID)

		data, err := env.dbp.Load(ctx, storage.PictureItem(&after[i]))
		require.NoError(t, err)
		assert.Equal(t, pictureContent(after[i].ID), string(data))
	}

	assert.Equal(t, int64(250), env.blobCount(t))
	assert.Equal(t, 0, env.fileCount(t), "target files were not cleaned up")

	_, err = env.settings.Get(ctx, settings.KeyStorageProvider)
	assert.ErrorIs(t, err, settings.ErrNotFound)
	assert.Equal(t, float64(1), testutil.ToFloat64(env.metrics.runs.WithLabelValues(storage.DatabaseSystemName, storage.FileSystemSystemName, "failure")))
}

func TestMove_RoundTripBackToDatabase(t *testing.T) {
	env := setupEnv(t, nil)
	env.seedPictures(t, 30)
	ctx := context.Background()

	ok, err := env.mover.Move(ctx, env.dbReg, env.fsReg)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = env.mover.MoveByName(ctx, "", storage.DatabaseSystemName)
	require.NoError(t, err)
	require.True(t, ok)
	env.pool.Stop()

	for _, pic := range env.allPictures(t) {
		require.NotNil(t, pic.MediaStorageID)
		data, err := env.dbp.Load(ctx, storage.PictureItem(&pic))
		require.NoError(t, err)
		assert.Equal(t, pictureContent(pic.ID), string(data))
		assert.Equal(t, int64(len(pictureContent(pic.ID))), pic.Size)
	}

	assert.Equal(t, int64(30), env.blobCount(t))
	assert.Equal(t, 0, env.fileCount(t), "source files were not cleaned up")
	assert.Equal(t, storage.DatabaseSystemName, env.currentProvider(t))
}

func TestMove_AllMediaSetsIncludingSoftDeleted(t *testing.T) {
	env := setupEnv(t, nil)
	ctx := context.Background()

	env.seedPictures(t, 3)
	require.NoError(t, env.db.Delete(&models.Picture{}, 2).Error)

	download := &models.Download{Filename: "manual.pdf", MediaFile: models.MediaFile{MimeType: "application/pdf", Extension: "pdf"}}
	require.NoError(t, env.db.Create(download).Error)
	require.NoError(t, env.dbp.Save(ctx, storage.DownloadItem(download), storage.FromStream(bytes.NewBufferString("pdf"))))
	require.NoError(t, env.db.Save(download).Error)

	attachment := &models.QueuedEmailAttachment{Name: "invoice.png", MediaFile: models.MediaFile{MimeType: "image/png", Extension: ".png"}}
	require.NoError(t, env.db.Create(attachment).Error)
	require.NoError(t, env.dbp.Save(ctx, storage.AttachmentItem(attachment), storage.FromStream(bytes.NewBufferString("png"))))
	require.NoError(t, env.db.Save(attachment).Error)

	// 没有内容的实体也会被遍历
	empty := &models.Download{Filename: "external", UseDownloadURL: true, DownloadURL: "https://example.com/file", MediaFile: models.MediaFile{MimeType: "text/html"}}
	require.NoError(t, env.db.Create(empty).Error)

	ok, err := env.mover.Move(ctx, env.dbReg, env.fsReg)
	require.NoError(t, err)
	require.True(t, ok)

	exists, err := afero.Exists(env.fs, "pictures/0000/0000002-0.jpg")
	require.NoError(t, err)
	assert.True(t, exists, "soft-deleted picture was not moved")

	data, err := afero.ReadFile(env.fs, "downloads/0000/0000001-0.pdf")
	require.NoError(t, err)
	assert.Equal(t, "pdf", string(data))

	data, err = afero.ReadFile(env.fs, "attachments/0000/0000001-0.png")
	require.NoError(t, err)
	assert.Equal(t, "png", string(data))

	assert.Equal(t, 5, env.fileCount(t))
	assert.Equal(t, int64(0), env.blobCount(t))
}

func TestMove_Preconditions(t *testing.T) {
	env := setupEnv(t, nil)
	ctx := context.Background()

	_, err := env.mover.Move(ctx, nil, env.fsReg)
	assert.ErrorIs(t, err, ErrNilProvider)

	_, err = env.mover.Move(ctx, env.dbReg, env.dbReg)
	assert.ErrorIs(t, err, ErrSameProvider)

	ok, err := env.mover.MoveByName(ctx, storage.FileSystemSystemName, storage.FileSystemSystemName)
	assert.ErrorIs(t, err, ErrSameProvider)
	assert.False(t, ok)

	readOnly := &storage.Registration{Provider: env.fsp}
	_, err = env.mover.Move(ctx, readOnly, env.dbReg)
	assert.ErrorIs(t, err, ErrMovingNotSupported)

	_, err = env.mover.MoveByName(ctx, "", "MediaStorage.Unknown")
	assert.ErrorIs(t, err, storage.ErrProviderNotFound)

	// 前置检查失败时不写入配置
	_, err = env.settings.Get(ctx, settings.KeyStorageProvider)
	assert.ErrorIs(t, err, settings.ErrNotFound)
}

func TestMove_RejectsConcurrentRun(t *testing.T) {
	env := setupEnv(t, nil)
	env.mover.running.Store(true)

	ok, err := env.mover.Move(context.Background(), env.dbReg, env.fsReg)
	assert.False(t, ok)
	assert.True(t, errors.Is(err, ErrMoveInProgress))
}

func TestMove_CancelledContext(t *testing.T) {
	env := setupEnv(t, nil)
	env.seedPictures(t, 5)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ok, err := env.mover.Move(ctx, env.dbReg, env.fsReg)
	assert.False(t, ok)
	assert.Error(t, err)
	env.pool.Stop()

	assert.Equal(t, int64(5), env.blobCount(t))
	assert.Equal(t, storage.DatabaseSystemName, env.currentProvider(t))
}

func TestCurrentProvider_DefaultsToDatabase(t *testing.T) {
	env := setupEnv(t, nil)
	assert.Equal(t, storage.DatabaseSystemName, env.currentProvider(t))

	require.NoError(t, env.settings.Set(context.Background(), settings.KeyStorageProvider, storage.FileSystemSystemName))
	assert.Equal(t, storage.FileSystemSystemName, env.currentProvider(t))
}
