package paging

import (
	"context"
	"fmt"

	"gorm.io/gorm"
)

// DefaultPageSize 默认分页大小
const DefaultPageSize = 100

// Identifiable 带主键的实体指针
type Identifiable[T any] interface {
	*T
	GetID() uint
}

// PageFunc 处理一页数据
type PageFunc[T any] func(page []*T) error

// Each 按主键升序分页遍历整张表（keyset 分页）
// 每页处理完后释放该页的引用，内存占用只与 pageSize 相关，与总行数无关
func Each[T any, PT Identifiable[T]](ctx context.Context, db *gorm.DB, pageSize int, fn PageFunc[T]) error {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}

	var lastID uint
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		var page []*T
		err := db.WithContext(ctx).
			Where("id > ?", lastID).
			Order("id ASC").
			Limit(pageSize).
			Find(&page).Error
		if err != nil {
			return fmt.Errorf("failed to load page after id %d: %w", lastID, err)
		}
		if len(page) == 0 {
			return nil
		}

		if err := fn(page); err != nil {
			return err
		}

		lastID = PT(page[len(page)-1]).GetID()
		n := len(page)

		// gorm 不跟踪实体，清空切片即完成 detach
		clear(page)

		if n < pageSize {
			return nil
		}
	}
}

// Count 统计表中的行数
func Count[T any](ctx context.Context, db *gorm.DB) (int64, error) {
	var count int64
	if err := db.WithContext(ctx).Model(new(T)).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
