package session

import (
	"fmt"
	"sort"

	"github.com/dep2p/go-tinynet/pkg/types"
)

// Networked 具有网络 ID 的对象
type Networked interface {
	NetworkID() types.NetworkID
}

// Registry 按网络 ID 索引的本地实体表
//
// 不是并发安全的，只能在控制线程上使用。
type Registry[T Networked] struct {
	items map[types.NetworkID]T
}

// NewRegistry 创建注册表
func NewRegistry[T Networked]() *Registry[T] {
	return &Registry[T]{items: make(map[types.NetworkID]T)}
}

// Register 注册实体
//
// ID 为 0 返回 ErrInvalidNetworkID，已存在返回 ErrDuplicateNetworkID。
func (r *Registry[T]) Register(item T) error {
	id := item.NetworkID()
	if !id.IsValid() {
		return ErrInvalidNetworkID
	}
	if _, ok := r.items[id]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateNetworkID, id)
	}
	r.items[id] = item
	return nil
}

// Unregister 移除实体，返回是否存在
func (r *Registry[T]) Unregister(id types.NetworkID) bool {
	if _, ok := r.items[id]; !ok {
		return false
	}
	delete(r.items, id)
	return true
}

// Lookup 查找实体
func (r *Registry[T]) Lookup(id types.NetworkID) (T, bool) {
	item, ok := r.items[id]
	return item, ok
}

// Contains 是否已注册
func (r *Registry[T]) Contains(id types.NetworkID) bool {
	_, ok := r.items[id]
	return ok
}

// Len 实体数量
func (r *Registry[T]) Len() int {
	return len(r.items)
}

// IDs 返回所有 ID（升序）
func (r *Registry[T]) IDs() []types.NetworkID {
	ids := make([]types.NetworkID, 0, len(r.items))
	for id := range r.items {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Range 按 ID 升序遍历，fn 返回 false 时停止
//
// 遍历期间可以安全地注销实体。
func (r *Registry[T]) Range(fn func(item T) bool) {
	for _, id := range r.IDs() {
		item, ok := r.items[id]
		if !ok {
			continue
		}
		if !fn(item) {
			return
		}
	}
}

// Clear 清空注册表
func (r *Registry[T]) Clear() {
	clear(r.items)
}

// ============================================================================
//                              ID 分配
// ============================================================================

// IDAllocator 单调递增的网络 ID 分配器
//
// 从 1 开始，同一会话内不会复用；分配到最大值后返回 ErrIDExhausted。
type IDAllocator struct {
	last types.NetworkID
}

// Next 分配下一个 ID
func (a *IDAllocator) Next() (types.NetworkID, error) {
	if a.last == ^types.NetworkID(0) {
		return types.InvalidNetworkID, ErrIDExhausted
	}
	a.last++
	return a.last, nil
}

// Last 最近分配的 ID
func (a *IDAllocator) Last() types.NetworkID {
	return a.last
}
