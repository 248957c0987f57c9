package ingest

import (
	"context"
	"sync"

	"media-search-api/internal/domain/entity"
	"media-search-api/internal/domain/repository"
)

// MemoryStatusStore 进程内摄取状态（未启用 Redis 时使用）
type MemoryStatusStore struct {
	mu     sync.Mutex
	status entity.IngestStatus
}

// NewMemoryStatusStore 创建进程内状态存储
func NewMemoryStatusStore() *MemoryStatusStore {
	return &MemoryStatusStore{status: *entity.NewIdleIngestStatus()}
}

var _ repository.IngestStatusStore = (*MemoryStatusStore)(nil)

// TryBegin 无运行中任务时登记
func (s *MemoryStatusStore) TryBegin(_ context.Context, status *entity.IngestStatus) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status.Running {
		return false, nil
	}
	s.status = *status
	return true, nil
}

// Update 覆盖状态
func (s *MemoryStatusStore) Update(_ context.Context, status *entity.IngestStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = *status
	return nil
}

// Get 返回状态副本
func (s *MemoryStatusStore) Get(_ context.Context) (*entity.IngestStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.status
	return &st, nil
}
