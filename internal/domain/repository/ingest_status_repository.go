package repository

import (
	"context"

	"media-search-api/internal/domain/entity"
)

// IngestStatusStore 摄取状态存储
type IngestStatusStore interface {
	// TryBegin 若当前无运行中的任务则登记并返回 true
	TryBegin(ctx context.Context, status *entity.IngestStatus) (bool, error)

	// Update 更新状态；Running 为 false 时释放运行标记
	Update(ctx context.Context, status *entity.IngestStatus) error

	// Get 获取当前状态，从未运行时返回空闲状态
	Get(ctx context.Context) (*entity.IngestStatus, error)
}
