package mover

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/anoixa/mediastore/database"
	"github.com/anoixa/mediastore/database/models"
	"github.com/anoixa/mediastore/database/paging"
	"github.com/anoixa/mediastore/database/repo/settings"
	"github.com/anoixa/mediastore/storage"
	"github.com/anoixa/mediastore/utils"
	"github.com/anoixa/mediastore/utils/format"
)

var (
	ErrNilProvider        = errors.New("source and target storage providers are required")
	ErrMovingNotSupported = errors.New("storage provider does not support moving media")
	ErrSameProvider       = errors.New("source and target storage providers are the same")
	ErrMoveInProgress     = errors.New("a media move is already in progress")
)

// Options 迁移选项
type Options struct {
	// PageSize 每页加载的实体数量
	PageSize int
	Metrics  *Metrics
}

// Mover 在存储提供者之间迁移全部媒体载荷
type Mover struct {
	db       *gorm.DB
	registry *storage.Registry
	settings settings.Repository
	pageSize int
	metrics  *Metrics
	running  atomic.Bool
}

// New 创建 Mover
func New(db *gorm.DB, registry *storage.Registry, settingsRepo settings.Repository, opts Options) *Mover {
	pageSize := opts.PageSize
	if pageSize <= 0 {
		pageSize = paging.DefaultPageSize
	}
	return &Mover{
		db:       db,
		registry: registry,
		settings: settingsRepo,
		pageSize: pageSize,
		metrics:  opts.Metrics,
	}
}

// CurrentProvider 当前生效的存储提供者，未设置时为数据库存储
func (m *Mover) CurrentProvider(ctx context.Context) (string, error) {
	name, err := m.settings.Get(ctx, settings.KeyStorageProvider)
	if err != nil {
		if errors.Is(err, settings.ErrNotFound) {
			return storage.DatabaseSystemName, nil
		}
		return "", err
	}
	if name == "" {
		return storage.DatabaseSystemName, nil
	}
	return name, nil
}

// MoveByName 按名称迁移，sourceName 为空时使用当前生效的提供者
func (m *Mover) MoveByName(ctx context.Context, sourceName, targetName string) (bool, error) {
	if sourceName == "" {
		current, err := m.CurrentProvider(ctx)
		if err != nil {
			return false, fmt.Errorf("failed to resolve current storage provider: %w", err)
		}
		sourceName = current
	}

	source, err := m.registry.Resolve(sourceName)
	if err != nil {
		return false, err
	}
	target, err := m.registry.Resolve(targetName)
	if err != nil {
		return false, err
	}
	return m.Move(ctx, source, target)
}

// Move 在一个事务中把所有媒体从 source 迁移到 target
// 任一实体失败则整体回滚，返回 false 和原因
func (m *Mover) Move(ctx context.Context, source, target *storage.Registration) (bool, error) {
	if source == nil || target == nil || source.Provider == nil || target.Provider == nil {
		return false, ErrNilProvider
	}
	if !source.SupportsMoving() {
		return false, fmt.Errorf("%w: %s", ErrMovingNotSupported, source.SystemName())
	}
	if !target.SupportsMoving() {
		return false, fmt.Errorf("%w: %s", ErrMovingNotSupported, target.SystemName())
	}
	if source.SystemName() == target.SystemName() {
		return false, fmt.Errorf("%w: %s", ErrSameProvider, source.SystemName())
	}

	if !m.running.CompareAndSwap(false, true) {
		return false, ErrMoveInProgress
	}
	defer m.running.Store(false)
	m.metrics.setRunning(true)
	defer m.metrics.setRunning(false)

	mc := storage.NewMigrationContext(source.SystemName(), target.SystemName())
	logger := log.WithFields(log.Fields{
		"run_id": mc.RunID,
		"source": mc.SourceSystemName,
		"target": mc.TargetSystemName,
	})
	logger.Info("[Mover] Starting media move")

	start := time.Now()
	err := m.run(ctx, source.Movable, target.Movable, mc, logger)
	succeeded := err == nil

	source.Movable.OnCompleted(ctx, mc, succeeded)
	target.Movable.OnCompleted(ctx, mc, succeeded)

	elapsed := time.Since(start)
	m.metrics.observeRun(mc.SourceSystemName, mc.TargetSystemName, succeeded, elapsed)

	if !succeeded {
		if utils.IsContextCanceled(err) {
			logger.WithError(err).Warnf("[Mover] Media move cancelled after %d items, all changes rolled back", mc.MovedItems())
			return false, err
		}
		logger.WithError(err).Errorf("[Mover] Media move failed after %d items, all changes rolled back", mc.MovedItems())
		return false, err
	}

	m.settings.Invalidate(ctx, settings.KeyStorageProvider)
	logger.Infof("[Mover] Moved %d items in %s", mc.MovedItems(), elapsed.Round(time.Millisecond))

	if source.Reclaimer != nil {
		if err := source.Reclaimer.ReclaimSpace(ctx); err != nil {
			logger.WithError(err).Warn("[Mover] Failed to reclaim space on source provider")
		}
	}
	return true, nil
}

// run 遍历所有媒体集合并在成功时提交
func (m *Mover) run(ctx context.Context, source, target storage.Movable, mc *storage.MigrationContext, logger *log.Entry) (err error) {
	tx := m.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return fmt.Errorf("failed to begin transaction: %w", tx.Error)
	}

	committed := false
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
			panic(r)
		}
		if !committed {
			if rbErr := tx.Rollback().Error; rbErr != nil && !errors.Is(rbErr, gorm.ErrInvalidTransaction) && !errors.Is(rbErr, sql.ErrTxDone) {
				logger.WithError(rbErr).Error("[Mover] Failed to roll back transaction")
			}
		}
	}()

	txCtx := database.WithTx(ctx, tx)
	step := func(ctx context.Context, item storage.MediaItem) error {
		if err := source.MoveTo(ctx, target, mc, item); err != nil {
			return fmt.Errorf("failed to move %s: %w", item, err)
		}
		item.File().UpdatedAt = time.Now().UTC()
		mc.IncMoved()
		m.metrics.incMoved(string(item.Kind))
		return nil
	}

	if err := moveAll[models.Picture](txCtx, tx, m.pageSize, storage.KindPicture, step, logger); err != nil {
		return err
	}
	if err := moveAll[models.Download](txCtx, tx, m.pageSize, storage.KindDownload, step, logger); err != nil {
		return err
	}
	if err := moveAll[models.QueuedEmailAttachment](txCtx, tx, m.pageSize, storage.KindAttachment, step, logger); err != nil {
		return err
	}

	if err := m.settings.Set(txCtx, settings.KeyStorageProvider, mc.TargetSystemName); err != nil {
		return fmt.Errorf("failed to update current storage provider: %w", err)
	}

	if err := tx.Commit().Error; err != nil {
		return fmt.Errorf("failed to commit media move: %w", err)
	}
	committed = true
	return nil
}

// mediaEntity 持有媒体内容的实体指针
type mediaEntity[T any] interface {
	*T
	models.MediaAware
}

// moveAll 按主键分页迁移一种实体，每页结束后写回媒体字段
func moveAll[T any, PT mediaEntity[T]](
	ctx context.Context,
	tx *gorm.DB,
	pageSize int,
	kind storage.MediaKind,
	step func(context.Context, storage.MediaItem) error,
	logger *log.Entry,
) error {
	total, err := paging.Count[T](ctx, tx.Unscoped())
	if err != nil {
		return fmt.Errorf("failed to count %s: %w", kind, err)
	}
	if total == 0 {
		logger.Debugf("[Mover] %s: nothing to move", kind)
		return nil
	}

	moved := 0
	var movedBytes int64
	err = paging.Each[T, PT](ctx, tx.Unscoped(), pageSize, func(page []*T) error {
		for _, entity := range page {
			if err := step(ctx, storage.MediaItem{Entity: PT(entity), Kind: kind}); err != nil {
				return err
			}
		}

		for _, entity := range page {
			e := PT(entity)
			f := e.File()
			err := tx.Unscoped().Model(e).UpdateColumns(map[string]any{
				"media_storage_id": f.MediaStorageID,
				"size":             f.Size,
				"updated_at":       f.UpdatedAt,
			}).Error
			if err != nil {
				return fmt.Errorf("failed to persist %s#%d: %w", kind, e.GetID(), err)
			}
			movedBytes += f.Size
		}

		moved += len(page)
		logger.Debugf("[Mover] %s: %d/%d moved", kind, moved, total)
		return nil
	})
	if err != nil {
		return err
	}

	if moved > 0 {
		logger.Infof("[Mover] %s: %d items moved (%s)", kind, moved, format.HumanReadableSize(movedBytes))
	}
	return nil
}
