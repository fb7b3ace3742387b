package storage

import (
	"fmt"
	"sync"

	log "github.com/sirupsen/logrus"
)

// Registration 已注册的提供者及其能力
type Registration struct {
	Provider Provider

	// Movable 为 nil 时不支持迁移
	Movable Movable

	// Reclaimer 为 nil 时不支持空间回收
	Reclaimer SpaceReclaimer
}

// SystemName 提供者名称
func (r *Registration) SystemName() string {
	return r.Provider.SystemName()
}

// SupportsMoving 是否支持迁移
func (r *Registration) SupportsMoving() bool {
	return r.Movable != nil
}

// Registry 存储提供者注册表
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*Registration
	order   []string
}

// NewRegistry 创建注册表
func NewRegistry() *Registry {
	return &Registry{
		entries: make(map[string]*Registration),
	}
}

// Register 注册提供者，能力在此时确定
func (r *Registry) Register(p Provider) (*Registration, error) {
	if p == nil {
		return nil, fmt.Errorf("cannot register nil storage provider")
	}
	name := p.SystemName()
	if name == "" {
		return nil, fmt.Errorf("storage provider has empty system name")
	}

	reg := &Registration{Provider: p}
	if m, ok := p.(Movable); ok {
		reg.Movable = m
	}
	if rc, ok := p.(SpaceReclaimer); ok {
		reg.Reclaimer = rc
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.entries[name]; exists {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateProvider, name)
	}
	r.entries[name] = reg
	r.order = append(r.order, name)

	log.Debugf("Registered storage provider '%s' (movable=%t, reclaimer=%t)", name, reg.Movable != nil, reg.Reclaimer != nil)
	return reg, nil
}

// MustRegister 注册失败时 panic
func (r *Registry) MustRegister(p Provider) *Registration {
	reg, err := r.Register(p)
	if err != nil {
		panic(err)
	}
	return reg
}

// Resolve 按名称查找提供者
func (r *Registry) Resolve(name string) (*Registration, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	reg, ok := r.entries[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrProviderNotFound, name)
	}
	return reg, nil
}

// List 按注册顺序返回所有提供者
func (r *Registry) List() []*Registration {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Registration, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.entries[name])
	}
	return out
}
