package storage

import (
	"bufio"
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"

	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/anoixa/mediastore/database"
	"github.com/anoixa/mediastore/database/models"
)

// DatabaseSystemName 数据库存储提供者名称
const DatabaseSystemName = "MediaStorage.Database"

const defaultChunkSize = 256 * 1024

// DatabaseOptions 数据库存储选项
type DatabaseOptions struct {
	// ChunkSize 流式读写的分块大小
	ChunkSize int
	// ValidationMode 开启后禁用分块写入，整体缓冲后一次写入
	ValidationMode bool
}

// DatabaseProvider 将载荷保存在 media_storages 表中
type DatabaseProvider struct {
	db             *gorm.DB
	chunkSize      int
	validationMode bool
}

// NewDatabaseProvider 创建数据库存储提供者
func NewDatabaseProvider(db *gorm.DB, opts DatabaseOptions) *DatabaseProvider {
	chunk := opts.ChunkSize
	if chunk <= 0 {
		chunk = defaultChunkSize
	}
	return &DatabaseProvider{
		db:             db,
		chunkSize:      chunk,
		validationMode: opts.ValidationMode,
	}
}

func (p *DatabaseProvider) SystemName() string {
	return DatabaseSystemName
}

// streaming 是否可以分块读写 BLOB
func (p *DatabaseProvider) streaming(conn *gorm.DB) bool {
	return !p.validationMode && conn.Dialector.Name() == "postgres"
}

// OpenRead 打开载荷
func (p *DatabaseProvider) OpenRead(ctx context.Context, item MediaItem) (io.ReadCloser, error) {
	file := item.File()
	if !file.HasBlob() {
		return nil, nil
	}

	conn := database.Conn(ctx, p.db)
	id := *file.MediaStorageID

	if p.streaming(conn) {
		var length int64
		row := conn.Raw("SELECT octet_length(data) FROM media_storages WHERE id = ?", id).Row()
		if err := row.Scan(&length); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				log.Warnf("Media blob %d referenced by %s is missing", id, item)
				return nil, nil
			}
			return nil, fmt.Errorf("failed to stat media blob %d: %w", id, err)
		}
		return &blobReader{conn: conn, id: id, length: length, chunk: p.chunkSize}, nil
	}

	var blob models.MediaStorage
	if err := conn.First(&blob, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			log.Warnf("Media blob %d referenced by %s is missing", id, item)
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load media blob %d: %w", id, err)
	}
	return io.NopCloser(bytes.NewReader(blob.Data)), nil
}

// Load 读取全部载荷
func (p *DatabaseProvider) Load(ctx context.Context, item MediaItem) ([]byte, error) {
	r, err := p.OpenRead(ctx, item)
	if err != nil {
		return nil, err
	}
	if r == nil {
		return []byte{}, nil
	}
	defer func() { _ = r.Close() }()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read media blob for %s: %w", item, err)
	}
	return data, nil
}

// Save 保存载荷并更新实体的定位符和大小
func (p *DatabaseProvider) Save(ctx context.Context, item MediaItem, src *Item) error {
	if src == nil {
		return p.clear(ctx, item)
	}
	defer func() { _ = src.Close() }()

	conn := database.Conn(ctx, p.db)
	file := item.File()

	if p.streaming(conn) {
		return p.saveChunked(ctx, conn, file, src)
	}

	var buf bytes.Buffer
	if _, err := src.SaveTo(ctx, &buf, file); err != nil {
		return err
	}
	data := buf.Bytes()
	if data == nil {
		data = []byte{}
	}

	if file.HasBlob() {
		res := conn.Model(&models.MediaStorage{}).Where("id = ?", *file.MediaStorageID).Update("data", data)
		if res.Error != nil {
			return fmt.Errorf("failed to update media blob for %s: %w", item, res.Error)
		}
		if res.RowsAffected > 0 {
			return nil
		}
	}

	blob := &models.MediaStorage{Data: data}
	if err := conn.Create(blob).Error; err != nil {
		return fmt.Errorf("failed to insert media blob for %s: %w", item, err)
	}
	file.MediaStorageID = &blob.ID
	return nil
}

// saveChunked 先写入空行，再逐块追加
func (p *DatabaseProvider) saveChunked(ctx context.Context, conn *gorm.DB, file *models.MediaFile, src *Item) error {
	var id uint
	if file.HasBlob() {
		id = *file.MediaStorageID
		res := conn.Exec("UPDATE media_storages SET data = ? WHERE id = ?", []byte{}, id)
		if res.Error != nil {
			return fmt.Errorf("failed to reset media blob %d: %w", id, res.Error)
		}
		if res.RowsAffected == 0 {
			id = 0
		}
	}
	if id == 0 {
		blob := &models.MediaStorage{Data: []byte{}}
		if err := conn.Create(blob).Error; err != nil {
			return fmt.Errorf("failed to insert media blob: %w", err)
		}
		id = blob.ID
	}

	w := bufio.NewWriterSize(&blobAppender{conn: conn, id: id, chunk: p.chunkSize}, p.chunkSize)
	if _, err := src.SaveTo(ctx, w, file); err != nil {
		return err
	}
	if err := w.Flush(); err != nil {
		return err
	}

	file.MediaStorageID = &id
	return nil
}

// clear 删除载荷，实体大小归零
func (p *DatabaseProvider) clear(ctx context.Context, item MediaItem) error {
	if err := p.Remove(ctx, item); err != nil {
		return err
	}
	item.File().Size = 0
	return nil
}

// Remove 删除 BLOB 行，清空定位符和大小
func (p *DatabaseProvider) Remove(ctx context.Context, items ...MediaItem) error {
	ids := make([]uint, 0, len(items))
	for _, item := range items {
		if f := item.File(); f.HasBlob() {
			ids = append(ids, *f.MediaStorageID)
		}
	}
	if len(ids) == 0 {
		return nil
	}

	conn := database.Conn(ctx, p.db)
	if err := conn.Where("id IN ?", ids).Delete(&models.MediaStorage{}).Error; err != nil {
		return fmt.Errorf("failed to delete %d media blobs: %w", len(ids), err)
	}

	for _, item := range items {
		f := item.File()
		if f.HasBlob() {
			f.MediaStorageID = nil
			f.Size = 0
		}
	}
	return nil
}

// MoveTo 把载荷交给目标，成功后删除本地 BLOB 行
func (p *DatabaseProvider) MoveTo(ctx context.Context, target Receiver, mc *MigrationContext, item MediaItem) error {
	r, err := p.OpenRead(ctx, item)
	if err != nil {
		return err
	}

	var payload io.Reader
	if r != nil {
		defer func() { _ = r.Close() }()
		payload = r
	}

	if err := target.Receive(ctx, mc, item, payload); err != nil {
		return err
	}

	file := item.File()
	if !file.HasBlob() {
		return nil
	}
	if err := database.Conn(ctx, p.db).Delete(&models.MediaStorage{}, *file.MediaStorageID).Error; err != nil {
		return fmt.Errorf("failed to delete media blob for %s: %w", item, err)
	}
	file.MediaStorageID = nil
	return nil
}

// Receive 把源端的载荷写入 BLOB 行
func (p *DatabaseProvider) Receive(ctx context.Context, mc *MigrationContext, item MediaItem, payload io.Reader) error {
	if payload == nil {
		return nil
	}

	// 迁移只改写定位符，大小等元数据保持不变
	file := item.File()
	size := file.Size
	if err := p.Save(ctx, item, FromStream(io.NopCloser(payload))); err != nil {
		return err
	}
	file.Size = size
	return nil
}

// OnCompleted 数据库存储的变更随事务提交或回滚，无需额外处理
func (p *DatabaseProvider) OnCompleted(ctx context.Context, mc *MigrationContext, succeeded bool) {
	log.Debugf("[%s] migration %s completed (succeeded=%t, moved=%d)", DatabaseSystemName, mc.RunID, succeeded, mc.MovedItems())
}

// ReclaimSpace 回收已删除 BLOB 占用的空间
func (p *DatabaseProvider) ReclaimSpace(ctx context.Context) error {
	return database.Vacuum(ctx, p.db)
}

// blobAppender 按块追加数据，单次追加不超过 chunk
type blobAppender struct {
	conn  *gorm.DB
	id    uint
	chunk int
}

func (a *blobAppender) Write(b []byte) (int, error) {
	written := 0
	for written < len(b) {
		end := min(written+a.chunk, len(b))
		if err := a.conn.Exec("UPDATE media_storages SET data = data || ? WHERE id = ?", b[written:end], a.id).Error; err != nil {
			return written, fmt.Errorf("failed to append chunk to media blob %d: %w", a.id, err)
		}
		written = end
	}
	return written, nil
}

// blobReader 按块读取 BLOB
type blobReader struct {
	conn   *gorm.DB
	id     uint
	length int64
	offset int64
	chunk  int
	buf    []byte
}

func (r *blobReader) Read(p []byte) (int, error) {
	if len(r.buf) == 0 {
		if r.offset >= r.length {
			return 0, io.EOF
		}
		var chunk []byte
		// substring 的起始位置从 1 开始
		row := r.conn.Raw("SELECT substring(data from ? for ?) FROM media_storages WHERE id = ?", r.offset+1, r.chunk, r.id).Row()
		if err := row.Scan(&chunk); err != nil {
			return 0, fmt.Errorf("failed to read chunk of media blob %d: %w", r.id, err)
		}
		if len(chunk) == 0 {
			return 0, io.ErrUnexpectedEOF
		}
		r.offset += int64(len(chunk))
		r.buf = chunk
	}

	n := copy(p, r.buf)
	r.buf = r.buf[n:]
	return n, nil
}

func (r *blobReader) Close() error {
	r.buf = nil
	return nil
}
