package vectorindex

import (
	"context"
	"fmt"
	"sync"
	"time"

	"media-search-api/pkg/logger"
	"media-search-api/pkg/metrics"
)

// FlatBackend 基于本地快照的 Flat 后端
type FlatBackend struct {
	Path string
	Dim  int
}

// NewFlatBackend 创建 Flat 后端
func NewFlatBackend(path string, dim int) *FlatBackend {
	return &FlatBackend{Path: path, Dim: dim}
}

var _ Backend = (*FlatBackend)(nil)

// Name 后端名称
func (b *FlatBackend) Name() string { return "flat" }

// Location 快照路径
func (b *FlatBackend) Location() string { return b.Path }

// Open 从快照装载
func (b *FlatBackend) Open(ctx context.Context) (Index, error) {
	return LoadFlat(b.Path, b.Dim)
}

// Persist 写快照
func (b *FlatBackend) Persist(ctx context.Context, idx Index) error {
	flat, ok := idx.(*Flat)
	if !ok {
		return fmt.Errorf("flat backend cannot persist %T", idx)
	}
	return flat.Save(b.Path)
}

// Info 索引状态
type Info struct {
	Backend   string `json:"backend" yaml:"backend"`
	Location  string `json:"location" yaml:"location"`
	Loaded    bool   `json:"loaded" yaml:"loaded"`
	Size      int    `json:"size" yaml:"size"`
	Dimension int    `json:"dimension" yaml:"dimension"`
}

// Manager 持有进程内唯一索引，负责懒加载、重载、清空与保存
type Manager struct {
	backend Backend

	mu    sync.Mutex
	index Index
}

// NewManager 创建索引管理器
func NewManager(backend Backend) *Manager {
	return &Manager{backend: backend}
}

// Backend 返回后端
func (m *Manager) Backend() Backend {
	return m.backend
}

// Get 返回索引，首次调用时从快照装载
func (m *Manager) Get(ctx context.Context) (Index, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.index != nil {
		return m.index, nil
	}
	return m.loadLocked(ctx)
}

// Reload 丢弃当前索引并重新装载
func (m *Manager) Reload(ctx context.Context) (Index, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.index = nil
	return m.loadLocked(ctx)
}

// Clear 丢弃进程内索引，不删除快照；下次 Get 重新装载
func (m *Manager) Clear() {
	m.mu.Lock()
	m.index = nil
	m.mu.Unlock()
}

// Save 持久化当前索引，尚未装载时不做任何事
func (m *Manager) Save(ctx context.Context) error {
	m.mu.Lock()
	idx := m.index
	m.mu.Unlock()

	if idx == nil {
		return nil
	}
	return m.persist(ctx, idx)
}

// SaveIndex 持久化调用方写入的那份索引
// 期间索引被清空或重载时，以 idx 为准重新设为常驻索引，保证快照与常驻索引一致
func (m *Manager) SaveIndex(ctx context.Context, idx Index) error {
	if idx == nil {
		return fmt.Errorf("cannot save nil %s index", m.backend.Name())
	}
	if err := m.persist(ctx, idx); err != nil {
		return err
	}

	m.mu.Lock()
	replaced := m.index != idx
	if replaced {
		m.index = idx
	}
	m.mu.Unlock()

	if replaced {
		logger.Warn(ctx, "resident vector index changed during write, reinstating saved index",
			"backend", m.backend.Name(),
			"size", idx.Size(),
		)
		metrics.VectorIndexSize.WithLabelValues(m.backend.Name()).Set(float64(idx.Size()))
	}
	return nil
}

func (m *Manager) persist(ctx context.Context, idx Index) error {
	ctx, span := tracer.Start(ctx, "vectorindex.Manager.Save")
	defer span.End()

	raw := idx
	if inst, ok := raw.(*instrumented); ok {
		raw = inst.Index
	}

	start := time.Now()
	if err := m.backend.Persist(ctx, raw); err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to save %s index: %w", m.backend.Name(), err)
	}
	logger.Info(ctx, "vector index saved",
		"backend", m.backend.Name(),
		"location", m.backend.Location(),
		"size", raw.Size(),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return nil
}

// Info 返回索引状态，不触发装载
func (m *Manager) Info() Info {
	m.mu.Lock()
	idx := m.index
	m.mu.Unlock()

	info := Info{Backend: m.backend.Name(), Location: m.backend.Location()}
	if idx != nil {
		info.Loaded = true
		info.Size = idx.Size()
		info.Dimension = idx.Dimension()
	}
	return info
}

func (m *Manager) loadLocked(ctx context.Context) (Index, error) {
	ctx, span := tracer.Start(ctx, "vectorindex.Manager.Load")
	defer span.End()

	idx, err := m.backend.Open(ctx)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to load %s index: %w", m.backend.Name(), err)
	}

	m.index = &instrumented{Index: idx, backend: m.backend.Name()}
	metrics.VectorIndexSize.WithLabelValues(m.backend.Name()).Set(float64(idx.Size()))
	logger.Info(ctx, "vector index loaded",
		"backend", m.backend.Name(),
		"location", m.backend.Location(),
		"size", idx.Size(),
	)
	return m.index, nil
}

// instrumented 为索引调用附加指标与链路
type instrumented struct {
	Index
	backend string
}

func (i *instrumented) Add(ctx context.Context, vectors [][]float32, ids []int64) error {
	ctx, span := tracer.Start(ctx, "vectorindex.Add")
	defer span.End()

	if err := i.Index.Add(ctx, vectors, ids); err != nil {
		span.RecordError(err)
		return err
	}
	metrics.VectorIndexSize.WithLabelValues(i.backend).Set(float64(i.Index.Size()))
	return nil
}

func (i *instrumented) Search(ctx context.Context, query []float32, k int) ([]Hit, error) {
	ctx, span := tracer.Start(ctx, "vectorindex.Search")
	defer span.End()

	start := time.Now()
	hits, err := i.Index.Search(ctx, query, k)
	metrics.VectorSearchDuration.WithLabelValues(i.backend).Observe(time.Since(start).Seconds())
	if err != nil {
		span.RecordError(err)
	}
	return hits, err
}
