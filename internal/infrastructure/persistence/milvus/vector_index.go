package milvus

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"media-search-api/internal/infrastructure/vectorindex"
	"media-search-api/pkg/logger"
)

// VectorIndex 基于 Milvus 的关键帧向量索引（IP 度量 + FLAT 索引）
type VectorIndex struct {
	client *Client
	dim    int
	size   atomic.Int64

	// 追加需与 Flush 串行
	mu sync.Mutex
}

var _ vectorindex.Index = (*VectorIndex)(nil)

// Add 归一化后写入集合
func (v *VectorIndex) Add(ctx context.Context, vectors [][]float32, ids []int64) error {
	if len(vectors) != len(ids) {
		return fmt.Errorf("%w: %d vectors, %d ids", vectorindex.ErrLengthMismatch, len(vectors), len(ids))
	}
	if len(vectors) == 0 {
		return nil
	}

	ctx, span := tracer.Start(ctx, "milvus.VectorIndex.Add",
		trace.WithAttributes(attribute.Int("count", len(ids))))
	defer span.End()

	normalized := make([][]float32, len(vectors))
	for i, vec := range vectors {
		if len(vec) != v.dim {
			return fmt.Errorf("%w: vector %d has dimension %d, index expects %d", vectorindex.ErrDimensionMismatch, i, len(vec), v.dim)
		}
		normalized[i] = vectorindex.Normalize(vec)
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	idCol := entity.NewColumnInt64(fieldID, ids)
	vectorCol := entity.NewColumnFloatVector(fieldVector, v.dim, normalized)

	if _, err := v.client.milvus.Insert(ctx, v.client.CollectionName(CollectionKeyframes), "", idCol, vectorCol); err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to insert vectors: %w", err)
	}
	v.size.Add(int64(len(ids)))
	return nil
}

// Search 内积检索
func (v *VectorIndex) Search(ctx context.Context, query []float32, k int) ([]vectorindex.Hit, error) {
	size := int(v.size.Load())
	if size == 0 || k <= 0 {
		return []vectorindex.Hit{}, nil
	}
	if len(query) != v.dim {
		return nil, fmt.Errorf("%w: query has dimension %d, index expects %d", vectorindex.ErrDimensionMismatch, len(query), v.dim)
	}
	if k > size {
		k = size
	}

	ctx, span := tracer.Start(ctx, "milvus.VectorIndex.Search",
		trace.WithAttributes(attribute.Int("top_k", k)))
	defer span.End()

	sp, err := entity.NewIndexFlatSearchParam()
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to create search param: %w", err)
	}

	results, err := v.client.milvus.Search(ctx,
		v.client.CollectionName(CollectionKeyframes),
		[]string{},
		"",
		[]string{fieldID},
		[]entity.Vector{entity.FloatVector(vectorindex.Normalize(query))},
		fieldVector,
		entity.IP,
		k,
		sp,
		client.WithSearchQueryConsistencyLevel(entity.ClStrong),
	)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to search: %w", err)
	}

	hits := make([]vectorindex.Hit, 0, k)
	for _, result := range results {
		idCol, ok := result.IDs.(*entity.ColumnInt64)
		if !ok {
			continue
		}
		ids := idCol.Data()
		for i := 0; i < result.ResultCount && i < len(ids); i++ {
			hits = append(hits, vectorindex.Hit{ID: ids[i], Score: result.Scores[i]})
		}
	}

	span.SetAttributes(attribute.Int("result_count", len(hits)))
	return hits, nil
}

// Size 已写入的向量数量
func (v *VectorIndex) Size() int {
	return int(v.size.Load())
}

// Dimension 向量维度
func (v *VectorIndex) Dimension() int {
	return v.dim
}

// Backend Milvus 索引后端
type Backend struct {
	client *Client
	dim    int
}

// NewBackend 创建 Milvus 索引后端
func NewBackend(client *Client, dim int) *Backend {
	return &Backend{client: client, dim: dim}
}

var _ vectorindex.Backend = (*Backend)(nil)

// Name 后端名称
func (b *Backend) Name() string { return "milvus" }

// Location 集合名
func (b *Backend) Location() string { return b.client.CollectionName(CollectionKeyframes) }

// Open 确保集合存在并加载，返回索引
func (b *Backend) Open(ctx context.Context) (vectorindex.Index, error) {
	if err := b.EnsureCollection(ctx); err != nil {
		return nil, err
	}

	rows, err := b.client.RowCount(ctx, CollectionKeyframes)
	if err != nil {
		return nil, err
	}

	idx := &VectorIndex{client: b.client, dim: b.dim}
	idx.size.Store(rows)
	return idx, nil
}

// Persist 刷盘
func (b *Backend) Persist(ctx context.Context, idx vectorindex.Index) error {
	if mv, ok := idx.(*VectorIndex); ok {
		mv.mu.Lock()
		defer mv.mu.Unlock()
	}
	return b.client.Flush(ctx, CollectionKeyframes)
}

// EnsureCollection 确保关键帧集合与索引可用（不存在则创建）
// 不做 drop/rebuild 等破坏性操作
func (b *Backend) EnsureCollection(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "milvus.EnsureCollection")
	defer span.End()

	exists, err := b.client.HasCollection(ctx, CollectionKeyframes)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to check collection: %w", err)
	}

	name := b.client.CollectionName(CollectionKeyframes)
	if !exists {
		if err := b.client.milvus.CreateCollection(ctx, KeyframeVectorsSchema(name, b.dim), entity.DefaultShardNumber); err != nil {
			span.RecordError(err)
			return fmt.Errorf("failed to create collection: %w", err)
		}

		idx, err := entity.NewIndexFlat(entity.IP)
		if err != nil {
			span.RecordError(err)
			return fmt.Errorf("failed to build index params: %w", err)
		}
		if err := b.client.milvus.CreateIndex(ctx, name, fieldVector, idx, false); err != nil {
			span.RecordError(err)
			return fmt.Errorf("failed to create index: %w", err)
		}
		logger.Info(ctx, "milvus collection created", "collection", name, "dimension", b.dim)
	}

	if err := b.client.LoadCollection(ctx, CollectionKeyframes); err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to load collection: %w", err)
	}
	return nil
}
