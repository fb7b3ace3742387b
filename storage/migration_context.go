package storage

import (
	"sync"

	"github.com/google/uuid"
)

// MigrationContext 一次迁移过程中在源和目标之间共享的状态
type MigrationContext struct {
	RunID            string
	SourceSystemName string
	TargetSystemName string

	mu            sync.Mutex
	movedItems    int64
	affectedFiles []string
	properties    map[string]any
}

// NewMigrationContext 创建迁移上下文
func NewMigrationContext(source, target string) *MigrationContext {
	return &MigrationContext{
		RunID:            uuid.NewString(),
		SourceSystemName: source,
		TargetSystemName: target,
		properties:       make(map[string]any),
	}
}

// IncMoved 已迁移数量加一
func (c *MigrationContext) IncMoved() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.movedItems++
	return c.movedItems
}

func (c *MigrationContext) MovedItems() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.movedItems
}

// AddAffectedFile 记录迁移过程中涉及的路径
func (c *MigrationContext) AddAffectedFile(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.affectedFiles = append(c.affectedFiles, path)
}

// AffectedFiles 返回涉及路径的副本
func (c *MigrationContext) AffectedFiles() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.affectedFiles))
	copy(out, c.affectedFiles)
	return out
}

// IsSource 提供者是否为本次迁移的源
func (c *MigrationContext) IsSource(name string) bool {
	return c.SourceSystemName == name
}

// IsTarget 提供者是否为本次迁移的目标
func (c *MigrationContext) IsTarget(name string) bool {
	return c.TargetSystemName == name
}

// Set 保存提供者自定义的属性
func (c *MigrationContext) Set(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.properties == nil {
		c.properties = make(map[string]any)
	}
	c.properties[key] = value
}

func (c *MigrationContext) Get(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.properties[key]
	return v, ok
}
