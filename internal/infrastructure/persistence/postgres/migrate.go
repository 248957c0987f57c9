package postgres

import (
	"context"
	"fmt"

	"media-search-api/internal/domain/entity"
)

// AutoMigrate 创建关系表
func (c *Client) AutoMigrate(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "postgres.AutoMigrate")
	defer span.End()

	err := c.db.WithContext(ctx).AutoMigrate(
		&entity.MediaItem{},
		&entity.TranscriptSegment{},
		&entity.KeyframeRecord{},
	)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	return nil
}

// EnsureVectorTable 启用 pgvector 扩展并创建关键帧向量表
func (c *Client) EnsureVectorTable(ctx context.Context, dim int) error {
	ctx, span := tracer.Start(ctx, "postgres.EnsureVectorTable")
	defer span.End()

	stmts := []string{
		"CREATE EXTENSION IF NOT EXISTS vector",
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id BIGINT PRIMARY KEY,
			embedding vector(%d) NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`, keyframeVectorsTable, dim),
	}
	for _, stmt := range stmts {
		if err := c.db.WithContext(ctx).Exec(stmt).Error; err != nil {
			span.RecordError(err)
			return fmt.Errorf("failed to prepare vector table: %w", err)
		}
	}
	return nil
}
