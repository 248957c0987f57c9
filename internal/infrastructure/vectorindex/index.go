// Package vectorindex 提供关键帧向量索引（内积相似度）及其生命周期管理
package vectorindex

import (
	"context"
	"errors"
	"math"

	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("vectorindex")

var (
	// ErrIntegrity 向量与 ID 映射不一致
	ErrIntegrity = errors.New("vector index integrity violation")
	// ErrDimensionMismatch 向量维度不匹配
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
	// ErrLengthMismatch 向量数量与 ID 数量不一致
	ErrLengthMismatch = errors.New("vectors and ids length mismatch")
)

// normEpsilon 归一化时叠加到范数上的下限
const normEpsilon = 1e-8

// Hit 检索命中
type Hit struct {
	ID    int64   `json:"id"`
	Score float32 `json:"score"`
}

// Index 向量索引
type Index interface {
	// Add 追加向量（逐条重新归一化），ids 与 vectors 一一对应
	Add(ctx context.Context, vectors [][]float32, ids []int64) error

	// Search 返回按内积降序的至多 k 条结果，空索引返回空切片
	Search(ctx context.Context, query []float32, k int) ([]Hit, error)

	// Size 当前向量数量
	Size() int

	// Dimension 向量维度
	Dimension() int
}

// Backend 索引后端：负责装载与持久化
type Backend interface {
	// Name 后端名称（flat / milvus / pgvector）
	Name() string

	// Location 快照路径或集合名
	Location() string

	// Open 装载索引，快照不存在时返回空索引
	Open(ctx context.Context) (Index, error)

	// Persist 持久化索引
	Persist(ctx context.Context, idx Index) error
}

// Normalize 返回 L2 归一化后的副本
func Normalize(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	norm := math.Sqrt(sum) + normEpsilon

	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(float64(x) / norm)
	}
	return out
}

// Dot 内积
func Dot(a, b []float32) float32 {
	var sum float32
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}
