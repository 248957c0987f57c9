package postgres

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm/clause"

	"media-search-api/internal/infrastructure/vectorindex"
)

const keyframeVectorsTable = "keyframe_vectors"

// keyframeVector 关键帧向量行
type keyframeVector struct {
	ID        int64           `gorm:"primaryKey;autoIncrement:false"`
	Embedding pgvector.Vector `gorm:"type:vector"`
}

func (keyframeVector) TableName() string {
	return keyframeVectorsTable
}

// VectorIndex 基于 pgvector 的关键帧向量索引
type VectorIndex struct {
	client *Client
	dim    int
	size   atomic.Int64
}

var _ vectorindex.Index = (*VectorIndex)(nil)

// Add 归一化后写入向量表
func (v *VectorIndex) Add(ctx context.Context, vectors [][]float32, ids []int64) error {
	if len(vectors) != len(ids) {
		return fmt.Errorf("%w: %d vectors, %d ids", vectorindex.ErrLengthMismatch, len(vectors), len(ids))
	}
	if len(vectors) == 0 {
		return nil
	}

	ctx, span := tracer.Start(ctx, "postgres.VectorIndex.Add")
	defer span.End()

	rows := make([]keyframeVector, len(vectors))
	for i, vec := range vectors {
		if len(vec) != v.dim {
			return fmt.Errorf("%w: vector %d has dimension %d, index expects %d", vectorindex.ErrDimensionMismatch, i, len(vec), v.dim)
		}
		rows[i] = keyframeVector{ID: ids[i], Embedding: pgvector.NewVector(vectorindex.Normalize(vec))}
	}

	db := getDB(ctx, v.client.db)
	res := db.Clauses(clause.OnConflict{DoNothing: true}).CreateInBatches(rows, 100)
	if res.Error != nil {
		span.RecordError(res.Error)
		return fmt.Errorf("failed to insert vectors: %w", res.Error)
	}
	v.size.Add(res.RowsAffected)
	return nil
}

// Search 以负内积距离 (<#>) 排序检索
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

	ctx, span := tracer.Start(ctx, "postgres.VectorIndex.Search")
	defer span.End()

	q := pgvector.NewVector(vectorindex.Normalize(query))

	var rows []struct {
		ID    int64
		Score float32
	}
	err := getDB(ctx, v.client.db).Raw(`
		SELECT id, (embedding <#> ?) * -1 AS score
		FROM `+keyframeVectorsTable+`
		ORDER BY embedding <#> ?, id
		LIMIT ?
	`, q, q, k).Scan(&rows).Error
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to search vectors: %w", err)
	}

	hits := make([]vectorindex.Hit, len(rows))
	for i, row := range rows {
		hits[i] = vectorindex.Hit{ID: row.ID, Score: row.Score}
	}
	return hits, nil
}

// Size 向量数量
func (v *VectorIndex) Size() int {
	return int(v.size.Load())
}

// Dimension 向量维度
func (v *VectorIndex) Dimension() int {
	return v.dim
}

// VectorBackend pgvector 索引后端
type VectorBackend struct {
	client *Client
	dim    int
}

// NewVectorBackend 创建 pgvector 后端
func NewVectorBackend(client *Client, dim int) *VectorBackend {
	return &VectorBackend{client: client, dim: dim}
}

var _ vectorindex.Backend = (*VectorBackend)(nil)

// Name 后端名称
func (b *VectorBackend) Name() string { return "pgvector" }

// Location 表名
func (b *VectorBackend) Location() string { return keyframeVectorsTable }

// Open 确保向量表存在并统计行数
func (b *VectorBackend) Open(ctx context.Context) (vectorindex.Index, error) {
	if err := b.client.EnsureVectorTable(ctx, b.dim); err != nil {
		return nil, err
	}

	var count int64
	if err := b.client.db.WithContext(ctx).Table(keyframeVectorsTable).Count(&count).Error; err != nil {
		return nil, fmt.Errorf("failed to count vectors: %w", err)
	}

	idx := &VectorIndex{client: b.client, dim: b.dim}
	idx.size.Store(count)
	return idx, nil
}

// Persist 写入即持久化，无需额外动作
func (b *VectorBackend) Persist(ctx context.Context, idx vectorindex.Index) error {
	return nil
}
