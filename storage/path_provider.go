package storage

import (
	"context"
	"errors"
	"fmt"
	"io"

	log "github.com/sirupsen/logrus"

	"github.com/anoixa/mediastore/utils"
)

// objectStore 按相对路径存取对象的后端
type objectStore interface {
	Exists(ctx context.Context, path string) (bool, error)
	// Open 对象不存在时返回 errObjectNotFound
	Open(ctx context.Context, path string) (io.ReadCloser, error)
	// Write 写入完成前对象对读取方不可见
	Write(ctx context.Context, path string, r io.Reader) error
	// Delete 对象不存在时不报错
	Delete(ctx context.Context, path string) error
}

// JobSubmitter 后台任务队列
type JobSubmitter interface {
	Submit(task func()) bool
}

// PathOptions 路径存储提供者的公共选项
type PathOptions struct {
	Layout PathLayout
	Jobs   JobSubmitter
	Sweep  SweepOptions
}

// PathProvider 以 <kind>/<shard>/<file> 布局保存载荷的提供者
type PathProvider struct {
	name   string
	store  objectStore
	layout PathLayout
	jobs   JobSubmitter
	sweep  SweepOptions
}

func newPathProvider(name string, store objectStore, opts PathOptions) *PathProvider {
	return &PathProvider{
		name:   name,
		store:  store,
		layout: opts.Layout,
		jobs:   opts.Jobs,
		sweep:  opts.Sweep,
	}
}

func (p *PathProvider) SystemName() string {
	return p.name
}

// Path 实体的相对存储路径
func (p *PathProvider) Path(item MediaItem) (string, error) {
	return p.layout.Path(item)
}

// Exists 实体的载荷是否存在
func (p *PathProvider) Exists(ctx context.Context, item MediaItem) (bool, error) {
	path, err := p.Path(item)
	if err != nil {
		return false, err
	}
	return p.store.Exists(ctx, path)
}

// OpenRead 打开载荷
func (p *PathProvider) OpenRead(ctx context.Context, item MediaItem) (io.ReadCloser, error) {
	path, err := p.Path(item)
	if err != nil {
		return nil, err
	}

	r, err := p.store.Open(ctx, path)
	if err != nil {
		if errors.Is(err, errObjectNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("[%s] failed to open '%s': %w", p.name, path, err)
	}
	return r, nil
}

// Load 读取全部载荷
func (p *PathProvider) Load(ctx context.Context, item MediaItem) ([]byte, error) {
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
		return nil, fmt.Errorf("[%s] failed to read %s: %w", p.name, item, err)
	}
	return data, nil
}

// Save 写入载荷并记录大小，src 为 nil 时删除文件
func (p *PathProvider) Save(ctx context.Context, item MediaItem, src *Item) error {
	path, err := p.Path(item)
	if err != nil {
		return err
	}

	file := item.File()
	if src == nil {
		if err := p.store.Delete(ctx, path); err != nil {
			return fmt.Errorf("[%s] failed to delete '%s': %w", p.name, path, err)
		}
		file.Size = 0
		return nil
	}
	defer func() { _ = src.Close() }()

	err = src.pipeTo(ctx, file, func(r io.Reader) error {
		return p.store.Write(ctx, path, r)
	})
	if err != nil {
		return fmt.Errorf("[%s] failed to save '%s': %w", p.name, path, err)
	}
	return nil
}

// Remove 删除载荷文件
func (p *PathProvider) Remove(ctx context.Context, items ...MediaItem) error {
	for _, item := range items {
		path, err := p.Path(item)
		if err != nil {
			return err
		}
		if err := p.store.Delete(ctx, path); err != nil {
			return fmt.Errorf("[%s] failed to delete '%s': %w", p.name, path, err)
		}
	}
	return nil
}

// MoveTo 把文件内容交给目标，文件本身在迁移成功后统一清理
func (p *PathProvider) MoveTo(ctx context.Context, target Receiver, mc *MigrationContext, item MediaItem) error {
	path, err := p.Path(item)
	if err != nil {
		return err
	}

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

	if r != nil {
		mc.AddAffectedFile(path)
	}
	return nil
}

// Receive 写入源端的载荷，目标文件已存在时跳过写入
func (p *PathProvider) Receive(ctx context.Context, mc *MigrationContext, item MediaItem, payload io.Reader) error {
	if payload == nil {
		return nil
	}

	path, err := p.Path(item)
	if err != nil {
		return err
	}

	exists, err := p.store.Exists(ctx, path)
	if err != nil {
		return fmt.Errorf("[%s] failed to stat '%s': %w", p.name, path, err)
	}

	if exists {
		log.Debugf("[%s] '%s' already exists, skipping write", p.name, path)
	} else if err := p.store.Write(ctx, path, payload); err != nil {
		return fmt.Errorf("[%s] failed to write '%s': %w", p.name, path, err)
	}

	mc.AddAffectedFile(path)
	return nil
}

// OnCompleted 作为源成功时或作为目标失败时，在后台删除涉及的文件
func (p *PathProvider) OnCompleted(ctx context.Context, mc *MigrationContext, succeeded bool) {
	cleanup := (mc.IsSource(p.name) && succeeded) || (mc.IsTarget(p.name) && !succeeded)
	if !cleanup {
		return
	}

	files := mc.AffectedFiles()
	if len(files) == 0 {
		return
	}

	sweep := &sweepJob{
		ctx:      context.WithoutCancel(ctx),
		provider: p.name,
		runID:    mc.RunID,
		store:    p.store,
		files:    files,
		opts:     p.sweep,
	}

	log.Infof("[%s] scheduling cleanup of %d files for migration %s", p.name, len(files), mc.RunID)
	if p.jobs == nil || !p.jobs.Submit(sweep.Execute) {
		utils.SafeGo(sweep.Execute)
	}
}
