package redis

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"
)

var cacheTracer = otel.Tracer("redis.cache")

// Cache 缓存服务
type Cache struct {
	client *Client
	group  singleflight.Group
}

// NewCache 创建缓存服务
func NewCache(client *Client) *Cache {
	return &Cache{client: client}
}

// GetOrLoadSafe Read-Through 缓存，使用 singleflight 防止缓存击穿
func (c *Cache) GetOrLoadSafe(ctx context.Context, key string, ttl time.Duration, loader func() (any, error)) ([]byte, error) {
	ctx, span := cacheTracer.Start(ctx, "cache.GetOrLoadSafe",
		trace.WithAttributes(attribute.String("cache.key", key)))
	defer span.End()

	val, err := c.client.rdb.Get(ctx, key).Bytes()
	if err == nil {
		span.SetAttributes(attribute.Bool("cache.hit", true))
		return val, nil
	}
	if !IsNil(err) {
		span.RecordError(err)
		return nil, err
	}

	span.SetAttributes(attribute.Bool("cache.hit", false))

	result, err, shared := c.group.Do(key, func() (any, error) {
		// 再次检查缓存（可能已被其他请求填充）
		if val, err := c.client.rdb.Get(ctx, key).Bytes(); err == nil {
			return val, nil
		}

		data, err := loader()
		if err != nil {
			return nil, err
		}

		bytes, err := json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal data: %w", err)
		}

		// 缓存写入失败不影响返回结果
		if err := c.client.rdb.Set(ctx, key, bytes, ttl).Err(); err != nil {
			span.RecordError(err)
		}
		return bytes, nil
	})

	span.SetAttributes(attribute.Bool("cache.shared", shared))
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return result.([]byte), nil
}

// InvalidatePattern 按模式使缓存失效
func (c *Cache) InvalidatePattern(ctx context.Context, pattern string) (int, error) {
	ctx, span := cacheTracer.Start(ctx, "cache.InvalidatePattern",
		trace.WithAttributes(attribute.String("cache.pattern", pattern)))
	defer span.End()

	iter := c.client.rdb.Scan(ctx, 0, pattern, 0).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		span.RecordError(err)
		return 0, err
	}

	if len(keys) == 0 {
		return 0, nil
	}
	span.SetAttributes(attribute.Int("cache.invalidated_count", len(keys)))
	if err := c.client.rdb.Del(ctx, keys...).Err(); err != nil {
		span.RecordError(err)
		return 0, err
	}
	return len(keys), nil
}

// QueryVectorCache 查询文本向量缓存
type QueryVectorCache struct {
	cache *Cache
	model string
	ttl   time.Duration
}

// NewQueryVectorCache 创建查询向量缓存，key 按模型隔离
func NewQueryVectorCache(cache *Cache, model string, ttl time.Duration) *QueryVectorCache {
	return &QueryVectorCache{cache: cache, model: model, ttl: ttl}
}

// GetOrEmbed 命中缓存直接返回，否则调用 embed 并写回
func (q *QueryVectorCache) GetOrEmbed(ctx context.Context, text string, embed func(ctx context.Context) ([]float32, error)) ([]float32, error) {
	raw, err := q.cache.GetOrLoadSafe(ctx, q.key(text), q.ttl, func() (any, error) {
		return embed(ctx)
	})
	if err != nil {
		return nil, err
	}

	var vec []float32
	if err := json.Unmarshal(raw, &vec); err != nil {
		return nil, fmt.Errorf("failed to decode cached vector: %w", err)
	}
	return vec, nil
}

// Invalidate 清除当前模型的全部查询向量
func (q *QueryVectorCache) Invalidate(ctx context.Context) (int, error) {
	return q.cache.InvalidatePattern(ctx, fmt.Sprintf("qvec:%s:*", q.model))
}

func (q *QueryVectorCache) key(text string) string {
	sum := sha1.Sum([]byte(text))
	return fmt.Sprintf("qvec:%s:%s", q.model, hex.EncodeToString(sum[:]))
}
