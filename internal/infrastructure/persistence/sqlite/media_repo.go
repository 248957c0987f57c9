package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

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
	ctx, span := tracer.Start(ctx, "sqlite.MediaRepository.UpsertMediaItem")
	defer span.End()

	q := getQuerier(ctx, r.client.db)

	if item.IngestedAt.IsZero() {
		item.IngestedAt = time.Now()
	}
	item.Status = entity.MediaStatusProcessing

	query := `
		INSERT INTO media_items (path, name, duration, width, height, fps, ingested_at, status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			name = excluded.name,
			duration = excluded.duration,
			width = excluded.width,
			height = excluded.height,
			fps = excluded.fps,
			ingested_at = excluded.ingested_at,
			status = excluded.status
		RETURNING id
	`

	err := q.QueryRowContext(ctx, query,
		item.Path, item.Name, item.Duration, item.Width, item.Height, item.FPS,
		item.IngestedAt.UnixMilli(), string(item.Status),
	).Scan(&item.ID)
	if err != nil {
		span.RecordError(err)
		return 0, fmt.Errorf("failed to upsert media item: %w", err)
	}
	return item.ID, nil
}

// InsertSegments 批量写入转写片段
func (r *MediaRepository) InsertSegments(ctx context.Context, mediaID int64, segments []entity.TranscriptSegment) error {
	ctx, span := tracer.Start(ctx, "sqlite.MediaRepository.InsertSegments")
	defer span.End()

	if len(segments) == 0 {
		return nil
	}

	err := r.tx.WithTransaction(ctx, func(ctx context.Context) error {
		q := getQuerier(ctx, r.client.db)
		query := `INSERT INTO transcript_segments (media_id, start_time, end_time, text) VALUES (?, ?, ?, ?)`
		for i := range segments {
			seg := segments[i]
			seg.Normalize()
			if _, err := q.ExecContext(ctx, query, mediaID, seg.Start, seg.End, seg.Text); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to insert segments: %w", err)
	}
	return nil
}

// InsertKeyframe 写入关键帧记录
func (r *MediaRepository) InsertKeyframe(ctx context.Context, keyframe *entity.KeyframeRecord) (int64, error) {
	ctx, span := tracer.Start(ctx, "sqlite.MediaRepository.InsertKeyframe")
	defer span.End()

	q := getQuerier(ctx, r.client.db)

	var slot sql.NullInt64
	if keyframe.VectorSlot != nil {
		slot = sql.NullInt64{Int64: *keyframe.VectorSlot, Valid: true}
	}

	res, err := q.ExecContext(ctx,
		`INSERT INTO keyframes (media_id, timestamp, thumbnail_path, vector_slot) VALUES (?, ?, ?, ?)`,
		keyframe.MediaID, keyframe.Timestamp, keyframe.ThumbnailPath, slot,
	)
	if err != nil {
		span.RecordError(err)
		return 0, fmt.Errorf("failed to insert keyframe: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		span.RecordError(err)
		return 0, fmt.Errorf("failed to read keyframe id: %w", err)
	}
	keyframe.ID = id
	return id, nil
}

// SetKeyframeVectorSlots 回填向量槽位
func (r *MediaRepository) SetKeyframeVectorSlots(ctx context.Context, slots map[int64]int64) error {
	ctx, span := tracer.Start(ctx, "sqlite.MediaRepository.SetKeyframeVectorSlots")
	defer span.End()

	if len(slots) == 0 {
		return nil
	}

	err := r.tx.WithTransaction(ctx, func(ctx context.Context) error {
		q := getQuerier(ctx, r.client.db)
		for keyframeID, slot := range slots {
			if _, err := q.ExecContext(ctx, `UPDATE keyframes SET vector_slot = ? WHERE id = ?`, slot, keyframeID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to set vector slots: %w", err)
	}
	return nil
}

// MarkComplete 标记媒体处理完成
func (r *MediaRepository) MarkComplete(ctx context.Context, mediaID int64) error {
	ctx, span := tracer.Start(ctx, "sqlite.MediaRepository.MarkComplete")
	defer span.End()

	q := getQuerier(ctx, r.client.db)
	if _, err := q.ExecContext(ctx, `UPDATE media_items SET status = ? WHERE id = ?`, string(entity.MediaStatusComplete), mediaID); err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to mark media complete: %w", err)
	}
	return nil
}

// GetKeyframeByVectorSlot 根据向量槽位查找关键帧
func (r *MediaRepository) GetKeyframeByVectorSlot(ctx context.Context, slot int64) (*repository.KeyframeHit, error) {
	ctx, span := tracer.Start(ctx, "sqlite.MediaRepository.GetKeyframeByVectorSlot")
	defer span.End()

	q := getQuerier(ctx, r.client.db)

	query := `
		SELECT k.id, k.media_id, m.path, m.name, k.timestamp, k.thumbnail_path
		FROM keyframes k
		JOIN media_items m ON m.id = k.media_id
		WHERE k.vector_slot = ?
		LIMIT 1
	`

	var hit repository.KeyframeHit
	err := q.QueryRowContext(ctx, query, slot).Scan(
		&hit.KeyframeID, &hit.MediaID, &hit.MediaPath, &hit.MediaName, &hit.Timestamp, &hit.ThumbnailPath,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get keyframe by slot: %w", err)
	}
	return &hit, nil
}

// SearchTranscripts 子串匹配转写文本（ASCII 大小写不敏感）
func (r *MediaRepository) SearchTranscripts(ctx context.Context, query string, limit int) ([]*repository.TranscriptHit, error) {
	ctx, span := tracer.Start(ctx, "sqlite.MediaRepository.SearchTranscripts")
	defer span.End()

	if limit <= 0 {
		return []*repository.TranscriptHit{}, nil
	}

	q := getQuerier(ctx, r.client.db)

	sqlQuery := `
		SELECT s.id, s.media_id, m.path, m.name, s.start_time, s.end_time, s.text
		FROM transcript_segments s
		JOIN media_items m ON m.id = s.media_id
		WHERE s.text LIKE ? ESCAPE '\'
		ORDER BY s.start_time ASC, s.id ASC
		LIMIT ?
	`

	rows, err := q.QueryContext(ctx, sqlQuery, "%"+escapeLike(query)+"%", limit)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to search transcripts: %w", err)
	}
	defer rows.Close()

	hits := make([]*repository.TranscriptHit, 0, limit)
	for rows.Next() {
		var h repository.TranscriptHit
		if err := rows.Scan(&h.SegmentID, &h.MediaID, &h.MediaPath, &h.MediaName, &h.Start, &h.End, &h.Text); err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("failed to scan transcript: %w", err)
		}
		hits = append(hits, &h)
	}
	if err := rows.Err(); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to iterate transcripts: %w", err)
	}
	return hits, nil
}

// GetMediaByPath 根据路径获取媒体
func (r *MediaRepository) GetMediaByPath(ctx context.Context, path string) (*entity.MediaItem, error) {
	ctx, span := tracer.Start(ctx, "sqlite.MediaRepository.GetMediaByPath")
	defer span.End()

	q := getQuerier(ctx, r.client.db)

	row := q.QueryRowContext(ctx, `
		SELECT id, path, name, duration, width, height, fps, ingested_at, status
		FROM media_items
		WHERE path = ?
	`, path)

	item, err := scanMediaItem(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get media by path: %w", err)
	}
	return item, nil
}

// ListMedia 按入库时间列出媒体
func (r *MediaRepository) ListMedia(ctx context.Context, order repository.SortOrder) ([]*entity.MediaItem, error) {
	ctx, span := tracer.Start(ctx, "sqlite.MediaRepository.ListMedia")
	defer span.End()

	q := getQuerier(ctx, r.client.db)

	direction := "DESC"
	if order == repository.SortOrderAsc {
		direction = "ASC"
	}

	rows, err := q.QueryContext(ctx, `
		SELECT id, path, name, duration, width, height, fps, ingested_at, status
		FROM media_items
		ORDER BY ingested_at `+direction+`, id `+direction)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to list media: %w", err)
	}
	defer rows.Close()

	items := make([]*entity.MediaItem, 0)
	for rows.Next() {
		item, err := scanMediaItem(rows)
		if err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("failed to scan media: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to iterate media: %w", err)
	}
	return items, nil
}

// Stats 统计库存
func (r *MediaRepository) Stats(ctx context.Context) (*repository.MediaStats, error) {
	ctx, span := tracer.Start(ctx, "sqlite.MediaRepository.Stats")
	defer span.End()

	q := getQuerier(ctx, r.client.db)

	var stats repository.MediaStats
	err := q.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM media_items),
			(SELECT COUNT(*) FROM media_items WHERE status = ?),
			(SELECT COUNT(*) FROM transcript_segments),
			(SELECT COUNT(*) FROM keyframes),
			(SELECT COUNT(*) FROM keyframes WHERE vector_slot IS NOT NULL)
	`, string(entity.MediaStatusComplete)).Scan(
		&stats.MediaCount, &stats.CompleteCount, &stats.SegmentCount, &stats.KeyframeCount, &stats.EmbeddedFrames,
	)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to collect stats: %w", err)
	}
	return &stats, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMediaItem(row rowScanner) (*entity.MediaItem, error) {
	var item entity.MediaItem
	var ingestedAt int64
	var status string
	if err := row.Scan(
		&item.ID, &item.Path, &item.Name, &item.Duration, &item.Width, &item.Height, &item.FPS, &ingestedAt, &status,
	); err != nil {
		return nil, err
	}
	item.IngestedAt = time.UnixMilli(ingestedAt)
	item.Status = entity.MediaStatus(status)
	return &item, nil
}

// escapeLike 转义 LIKE 通配符
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
