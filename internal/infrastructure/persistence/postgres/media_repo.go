// Package postgres 提供 PostgreSQL Repository 实现
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"media-search-api/internal/domain/entity"
	"media-search-api/internal/domain/repository"
)

// MediaRepository 媒体仓储实现
type MediaRepository struct {
	client *Client
	tx     *TxManager
}

// NewMediaRepository 创建媒体仓储
func NewMediaRepository(client *Client) *MediaRepository {
	return &MediaRepository{client: client, tx: NewTxManager(client)}
}

var _ repository.MediaRepository = (*MediaRepository)(nil)

// UpsertMediaItem 按路径插入或刷新媒体条目
func (r *MediaRepository) UpsertMediaItem(ctx context.Context, item *entity.MediaItem) (int64, error) {
	ctx, span := tracer.Start(ctx, "postgres.MediaRepository.UpsertMediaItem")
	defer span.End()

	if item.IngestedAt.IsZero() {
		item.IngestedAt = time.Now()
	}
	item.Status = entity.MediaStatusProcessing

	db := getDB(ctx, r.client.db)
	err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "path"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "duration", "width", "height", "fps", "ingested_at", "status"}),
	}).Create(item).Error
	if err != nil {
		span.RecordError(err)
		return 0, fmt.Errorf("failed to upsert media item: %w", err)
	}
	return item.ID, nil
}

// InsertSegments 批量写入转写片段
func (r *MediaRepository) InsertSegments(ctx context.Context, mediaID int64, segments []entity.TranscriptSegment) error {
	ctx, span := tracer.Start(ctx, "postgres.MediaRepository.InsertSegments")
	defer span.End()

	if len(segments) == 0 {
		return nil
	}

	rows := make([]entity.TranscriptSegment, len(segments))
	for i := range segments {
		rows[i] = segments[i]
		rows[i].ID = 0
		rows[i].MediaID = mediaID
		rows[i].Normalize()
	}

	err := r.tx.WithTransaction(ctx, func(ctx context.Context) error {
		return getDB(ctx, r.client.db).CreateInBatches(rows, 200).Error
	})
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to insert segments: %w", err)
	}
	return nil
}

// InsertKeyframe 写入关键帧记录
func (r *MediaRepository) InsertKeyframe(ctx context.Context, keyframe *entity.KeyframeRecord) (int64, error) {
	ctx, span := tracer.Start(ctx, "postgres.MediaRepository.InsertKeyframe")
	defer span.End()

	db := getDB(ctx, r.client.db)
	if err := db.Create(keyframe).Error; err != nil {
		span.RecordError(err)
		return 0, fmt.Errorf("failed to insert keyframe: %w", err)
	}
	return keyframe.ID, nil
}

// SetKeyframeVectorSlots 以单条 UPDATE ... FROM unnest 回填向量槽位
func (r *MediaRepository) SetKeyframeVectorSlots(ctx context.Context, slots map[int64]int64) error {
	ctx, span := tracer.Start(ctx, "postgres.MediaRepository.SetKeyframeVectorSlots")
	defer span.End()

	if len(slots) == 0 {
		return nil
	}

	ids := make([]int64, 0, len(slots))
	values := make([]int64, 0, len(slots))
	for keyframeID, slot := range slots {
		ids = append(ids, keyframeID)
		values = append(values, slot)
	}

	err := getDB(ctx, r.client.db).Exec(`
		UPDATE keyframes AS k
		SET vector_slot = u.slot
		FROM unnest(?::bigint[], ?::bigint[]) AS u(id, slot)
		WHERE k.id = u.id
	`, pq.Array(ids), pq.Array(values)).Error
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to set vector slots: %w", err)
	}
	return nil
}

// MarkComplete 标记媒体处理完成
func (r *MediaRepository) MarkComplete(ctx context.Context, mediaID int64) error {
	ctx, span := tracer.Start(ctx, "postgres.MediaRepository.MarkComplete")
	defer span.End()

	db := getDB(ctx, r.client.db)
	if err := db.Model(&entity.MediaItem{}).
		Where("id = ?", mediaID).
		Update("status", entity.MediaStatusComplete).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to mark media complete: %w", err)
	}
	return nil
}

// GetKeyframeByVectorSlot 根据向量槽位查找关键帧
func (r *MediaRepository) GetKeyframeByVectorSlot(ctx context.Context, slot int64) (*repository.KeyframeHit, error) {
	ctx, span := tracer.Start(ctx, "postgres.MediaRepository.GetKeyframeByVectorSlot")
	defer span.End()

	db := getDB(ctx, r.client.db)

	var hit repository.KeyframeHit
	err := db.Table("keyframes AS k").
		Select("k.id AS keyframe_id, k.media_id, m.path AS media_path, m.name AS media_name, k.timestamp, k.thumbnail_path").
		Joins("JOIN media_items m ON m.id = k.media_id").
		Where("k.vector_slot = ?", slot).
		Take(&hit).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get keyframe by slot: %w", err)
	}
	return &hit, nil
}

// SearchTranscripts 子串匹配转写文本（大小写不敏感）
func (r *MediaRepository) SearchTranscripts(ctx context.Context, query string, limit int) ([]*repository.TranscriptHit, error) {
	ctx, span := tracer.Start(ctx, "postgres.MediaRepository.SearchTranscripts")
	defer span.End()

	hits := make([]*repository.TranscriptHit, 0)
	if limit <= 0 {
		return hits, nil
	}

	db := getDB(ctx, r.client.db)
	err := db.Table("transcript_segments AS s").
		Select("s.id AS segment_id, s.media_id, m.path AS media_path, m.name AS media_name, s.start_time AS start, s.end_time AS \"end\", s.text").
		Joins("JOIN media_items m ON m.id = s.media_id").
		Where("s.text ILIKE ?", "%"+escapeLike(query)+"%").
		Order("s.start_time ASC, s.id ASC").
		Limit(limit).
		Scan(&hits).Error
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to search transcripts: %w", err)
	}
	return hits, nil
}

// GetMediaByPath 根据路径获取媒体
func (r *MediaRepository) GetMediaByPath(ctx context.Context, path string) (*entity.MediaItem, error) {
	ctx, span := tracer.Start(ctx, "postgres.MediaRepository.GetMediaByPath")
	defer span.End()

	db := getDB(ctx, r.client.db)
	var item entity.MediaItem
	if err := db.First(&item, "path = ?", path).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get media by path: %w", err)
	}
	return &item, nil
}

// ListMedia 按入库时间列出媒体
func (r *MediaRepository) ListMedia(ctx context.Context, order repository.SortOrder) ([]*entity.MediaItem, error) {
	ctx, span := tracer.Start(ctx, "postgres.MediaRepository.ListMedia")
	defer span.End()

	direction := "DESC"
	if order == repository.SortOrderAsc {
		direction = "ASC"
	}

	db := getDB(ctx, r.client.db)
	items := make([]*entity.MediaItem, 0)
	if err := db.Order("ingested_at " + direction).Order("id " + direction).Find(&items).Error; err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to list media: %w", err)
	}
	return items, nil
}

// Stats 统计库存
func (r *MediaRepository) Stats(ctx context.Context) (*repository.MediaStats, error) {
	ctx, span := tracer.Start(ctx, "postgres.MediaRepository.Stats")
	defer span.End()

	db := getDB(ctx, r.client.db)

	var stats repository.MediaStats
	err := db.Raw(`
		SELECT
			(SELECT COUNT(*) FROM media_items) AS media_count,
			(SELECT COUNT(*) FROM media_items WHERE status = ?) AS complete_count,
			(SELECT COUNT(*) FROM transcript_segments) AS segment_count,
			(SELECT COUNT(*) FROM keyframes) AS keyframe_count,
			(SELECT COUNT(*) FROM keyframes WHERE vector_slot IS NOT NULL) AS embedded_frames
	`, entity.MediaStatusComplete).Scan(&stats).Error
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to collect stats: %w", err)
	}
	return &stats, nil
}

// escapeLike 转义 LIKE 通配符
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
