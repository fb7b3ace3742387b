package storage

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/anoixa/mediastore/database/models"
)

// setupTestDB 创建内存 SQLite 数据库
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.MediaStorage{}, &models.Picture{}, &models.Download{}))
	t.Cleanup(func() {
		sqlDB, _ := db.DB()
		_ = sqlDB.Close()
	})
	return db
}

func newPicture(id uint, ext string) MediaItem {
	return PictureItem(&models.Picture{ID: id, MediaFile: models.MediaFile{MimeType: "image/jpeg", Extension: ext}})
}

// recordingReceiver 记录收到的载荷
type recordingReceiver struct {
	mu       sync.Mutex
	received map[string][]byte
	nilItems []string
	failOn   uint
}

func newRecordingReceiver() *recordingReceiver {
	return &recordingReceiver{received: make(map[string][]byte)}
}

func (r *recordingReceiver) Receive(_ context.Context, _ *MigrationContext, item MediaItem, payload io.Reader) error {
	if r.failOn != 0 && item.ID() == r.failOn {
		return fmt.Errorf("receiver rejected %s", item)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if payload == nil {
		r.nilItems = append(r.nilItems, item.String())
		return nil
	}
	data, err := io.ReadAll(payload)
	if err != nil {
		return err
	}
	r.received[item.String()] = data
	return nil
}

// syncJobs 同步执行后台任务
type syncJobs struct {
	submitted int
}

func (j *syncJobs) Submit(task func()) bool {
	j.submitted++
	task()
	return true
}
