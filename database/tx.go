package database

import (
	"context"
	"fmt"

	"gorm.io/gorm"
)

type txKey struct{}

// WithTx 将事务绑定到上下文，后续的仓库和存储操作会加入该事务
func WithTx(ctx context.Context, tx *gorm.DB) context.Context {
	return context.WithValue(ctx, txKey{}, tx)
}

// Conn 返回上下文中的事务，没有事务时返回 fallback
func Conn(ctx context.Context, fallback *gorm.DB) *gorm.DB {
	if tx, ok := ctx.Value(txKey{}).(*gorm.DB); ok && tx != nil {
		return tx.WithContext(ctx)
	}
	return fallback.WithContext(ctx)
}

// InTx 上下文中是否已有事务
func InTx(ctx context.Context) bool {
	tx, ok := ctx.Value(txKey{}).(*gorm.DB)
	return ok && tx != nil
}

// Vacuum 回收数据库空间，必须在事务之外执行
func Vacuum(ctx context.Context, db *gorm.DB) error {
	switch db.Dialector.Name() {
	case "sqlite", "postgres":
		if err := db.WithContext(ctx).Exec("VACUUM").Error; err != nil {
			return fmt.Errorf("failed to vacuum %s database: %w", db.Dialector.Name(), err)
		}
		return nil
	default:
		return fmt.Errorf("vacuum is not supported for %s", db.Dialector.Name())
	}
}
