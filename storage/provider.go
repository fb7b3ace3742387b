package storage

import (
	"context"
	"io"
)

// Provider 媒体存储提供者
type Provider interface {
	// SystemName 全局唯一的提供者名称
	SystemName() string

	// OpenRead 打开载荷，没有载荷时返回 nil, nil
	OpenRead(ctx context.Context, item MediaItem) (io.ReadCloser, error)

	// Load 读取全部载荷，没有载荷时返回空切片
	Load(ctx context.Context, item MediaItem) ([]byte, error)

	// Save 保存载荷，src 为 nil 时清空载荷
	Save(ctx context.Context, item MediaItem, src *Item) error

	// Remove 删除载荷
	Remove(ctx context.Context, items ...MediaItem) error
}
