package storage

import (
	"context"
	"io"
)

// Receiver 迁移的接收方
type Receiver interface {
	// Receive 接收一个实体的载荷，payload 为 nil 表示源端没有内容
	Receive(ctx context.Context, mc *MigrationContext, item MediaItem, payload io.Reader) error
}

// Movable 支持迁移的提供者
type Movable interface {
	Provider
	Receiver

	// MoveTo 将一个实体的载荷交给目标
	MoveTo(ctx context.Context, target Receiver, mc *MigrationContext, item MediaItem) error

	// OnCompleted 迁移结束后调用，源和目标各调用一次
	OnCompleted(ctx context.Context, mc *MigrationContext, succeeded bool)
}

// SpaceReclaimer 迁移成功后可回收空间的提供者
type SpaceReclaimer interface {
	ReclaimSpace(ctx context.Context) error
}
