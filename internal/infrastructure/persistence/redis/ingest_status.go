package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"media-search-api/internal/domain/entity"
	"media-search-api/internal/domain/repository"
)

const (
	ingestStatusKey = "ingest:status"
	ingestLockKey   = "ingest:lock"
	// 运行标记兜底过期，防止进程崩溃后永久占用
	ingestLockTTL = 12 * time.Hour
)

// 仅当锁持有者匹配时释放
var releaseLockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// IngestStatusStore 基于 Redis 的摄取状态存储，供网关与 worker 共享
type IngestStatusStore struct {
	client *Client
}

// NewIngestStatusStore 创建摄取状态存储
func NewIngestStatusStore(client *Client) *IngestStatusStore {
	return &IngestStatusStore{client: client}
}

var _ repository.IngestStatusStore = (*IngestStatusStore)(nil)

// TryBegin 抢占运行标记
func (s *IngestStatusStore) TryBegin(ctx context.Context, status *entity.IngestStatus) (bool, error) {
	ctx, span := tracer.Start(ctx, "redis.IngestStatusStore.TryBegin")
	defer span.End()

	ok, err := s.client.rdb.SetNX(ctx, ingestLockKey, status.JobID, ingestLockTTL).Result()
	if err != nil {
		span.RecordError(err)
		return false, fmt.Errorf("failed to acquire ingest lock: %w", err)
	}
	if !ok {
		return false, nil
	}
	if err := s.write(ctx, status); err != nil {
		span.RecordError(err)
		return false, err
	}
	return true, nil
}

// Update 写入状态
func (s *IngestStatusStore) Update(ctx context.Context, status *entity.IngestStatus) error {
	ctx, span := tracer.Start(ctx, "redis.IngestStatusStore.Update")
	defer span.End()

	if err := s.write(ctx, status); err != nil {
		span.RecordError(err)
		return err
	}
	if !status.Running {
		if err := releaseLockScript.Run(ctx, s.client.rdb, []string{ingestLockKey}, status.JobID).Err(); err != nil && !IsNil(err) {
			span.RecordError(err)
			return fmt.Errorf("failed to release ingest lock: %w", err)
		}
	}
	return nil
}

// Get 读取状态
func (s *IngestStatusStore) Get(ctx context.Context) (*entity.IngestStatus, error) {
	ctx, span := tracer.Start(ctx, "redis.IngestStatusStore.Get")
	defer span.End()

	raw, err := s.client.Get(ctx, ingestStatusKey)
	if err != nil {
		if IsNil(err) {
			return entity.NewIdleIngestStatus(), nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("failed to read ingest status: %w", err)
	}

	var status entity.IngestStatus
	if err := json.Unmarshal([]byte(raw), &status); err != nil {
		return nil, fmt.Errorf("failed to decode ingest status: %w", err)
	}
	return &status, nil
}

func (s *IngestStatusStore) write(ctx context.Context, status *entity.IngestStatus) error {
	data, err := json.Marshal(status)
	if err != nil {
		return fmt.Errorf("failed to encode ingest status: %w", err)
	}
	if err := s.client.Set(ctx, ingestStatusKey, data, 0); err != nil {
		return fmt.Errorf("failed to write ingest status: %w", err)
	}
	return nil
}
