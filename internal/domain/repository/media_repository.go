package repository

import (
	"context"

	"media-search-api/internal/domain/entity"
)

// KeyframeHit 关键帧及其所属媒体
type KeyframeHit struct {
	KeyframeID    int64
	MediaID       int64
	MediaPath     string
	MediaName     string
	Timestamp     float64
	ThumbnailPath string
}

// TranscriptHit 转写片段及其所属媒体
type TranscriptHit struct {
	SegmentID int64
	MediaID   int64
	MediaPath string
	MediaName string
	Start     float64
	End       float64
	Text      string
}

// MediaStats 库存统计
type MediaStats struct {
	MediaCount     int64 `json:"media_count" yaml:"media_count"`
	CompleteCount  int64 `json:"complete_count" yaml:"complete_count"`
	SegmentCount   int64 `json:"segment_count" yaml:"segment_count"`
	KeyframeCount  int64 `json:"keyframe_count" yaml:"keyframe_count"`
	EmbeddedFrames int64 `json:"embedded_frames" yaml:"embedded_frames"`
}

// MediaRepository 媒体仓储接口
type MediaRepository interface {
	// UpsertMediaItem 按路径插入或刷新媒体条目（状态置为 processing），返回 ID
	UpsertMediaItem(ctx context.Context, item *entity.MediaItem) (int64, error)

	// InsertSegments 批量写入转写片段
	InsertSegments(ctx context.Context, mediaID int64, segments []entity.TranscriptSegment) error

	// InsertKeyframe 写入关键帧记录，返回 ID
	InsertKeyframe(ctx context.Context, keyframe *entity.KeyframeRecord) (int64, error)

	// SetKeyframeVectorSlots 回填关键帧的向量槽位 (keyframeID -> slot)
	SetKeyframeVectorSlots(ctx context.Context, slots map[int64]int64) error

	// MarkComplete 标记媒体处理完成
	MarkComplete(ctx context.Context, mediaID int64) error

	// GetKeyframeByVectorSlot 根据向量槽位查找关键帧，不存在时返回 nil, nil
	GetKeyframeByVectorSlot(ctx context.Context, slot int64) (*KeyframeHit, error)

	// SearchTranscripts 子串匹配转写文本，按起始时间排序
	SearchTranscripts(ctx context.Context, query string, limit int) ([]*TranscriptHit, error)

	// GetMediaByPath 根据路径获取媒体，不存在时返回 nil, nil
	GetMediaByPath(ctx context.Context, path string) (*entity.MediaItem, error)

	// ListMedia 按入库时间列出媒体
	ListMedia(ctx context.Context, order SortOrder) ([]*entity.MediaItem, error)

	// Stats 统计媒体、片段与关键帧数量
	Stats(ctx context.Context) (*MediaStats, error)
}
