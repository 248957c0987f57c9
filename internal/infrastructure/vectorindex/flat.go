package vectorindex

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Flat 暴力内积索引
// vectors 按槽位平铺存储，ids[slot] 为外部 ID，两者长度始终一致
type Flat struct {
	mu      sync.RWMutex
	dim     int
	vectors []float32
	ids     []int64
}

// NewFlat 创建空索引
func NewFlat(dim int) *Flat {
	return &Flat{dim: dim}
}

var _ Index = (*Flat)(nil)

// Add 追加向量
func (f *Flat) Add(ctx context.Context, vectors [][]float32, ids []int64) error {
	if len(vectors) != len(ids) {
		return fmt.Errorf("%w: %d vectors, %d ids", ErrLengthMismatch, len(vectors), len(ids))
	}
	if len(vectors) == 0 {
		return nil
	}

	normalized := make([]float32, 0, len(vectors)*f.dim)
	for i, v := range vectors {
		if len(v) != f.dim {
			return fmt.Errorf("%w: vector %d has dimension %d, index expects %d", ErrDimensionMismatch, i, len(v), f.dim)
		}
		normalized = append(normalized, Normalize(v)...)
	}

	f.mu.Lock()
	f.vectors = append(f.vectors, normalized...)
	f.ids = append(f.ids, ids...)
	f.mu.Unlock()
	return nil
}

// Search 暴力检索，同分时保持槽位顺序
func (f *Flat) Search(ctx context.Context, query []float32, k int) ([]Hit, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	n := len(f.ids)
	if n == 0 || k <= 0 {
		return []Hit{}, nil
	}
	if len(query) != f.dim {
		return nil, fmt.Errorf("%w: query has dimension %d, index expects %d", ErrDimensionMismatch, len(query), f.dim)
	}
	if k > n {
		k = n
	}

	q := Normalize(query)
	hits := make([]Hit, n)
	for slot := 0; slot < n; slot++ {
		hits[slot] = Hit{ID: f.ids[slot], Score: Dot(q, f.vectors[slot*f.dim:(slot+1)*f.dim])}
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	return hits[:k], nil
}

// Size 当前向量数量
func (f *Flat) Size() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.ids)
}

// Dimension 向量维度
func (f *Flat) Dimension() int {
	return f.dim
}

// IDs 返回 ID 映射副本
func (f *Flat) IDs() []int64 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make([]int64, len(f.ids))
	copy(out, f.ids)
	return out
}

// Vector 返回指定槽位向量副本
func (f *Flat) Vector(slot int) []float32 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if slot < 0 || slot >= len(f.ids) {
		return nil
	}
	out := make([]float32, f.dim)
	copy(out, f.vectors[slot*f.dim:(slot+1)*f.dim])
	return out
}
