package ingest

import (
	"context"
	"time"

	"media-search-api/internal/domain/entity"
	"media-search-api/internal/infrastructure/media"
)

// Prober 媒体元数据探测
type Prober interface {
	Probe(ctx context.Context, path string) (*media.Info, error)
}

// Transcriber 语音转写
type Transcriber interface {
	Transcribe(ctx context.Context, mediaPath string) ([]entity.TranscriptSegment, error)
}

// FrameExtractor 关键帧抽取
type FrameExtractor interface {
	Extract(ctx context.Context, path, outDir string, interval float64, maxFrames int) ([]media.Frame, error)
}

// ImageEmbedder 图片编码，结果与输入一一对应
type ImageEmbedder interface {
	EmbedImages(ctx context.Context, paths []string) ([][]float32, error)
}

// ThumbnailUploader 缩略图上传
type ThumbnailUploader interface {
	Upload(ctx context.Context, mediaID int64, localPath string) (string, error)
}

// ProgressFunc 进度回调，done 为已完成条目数，current 为正在处理的路径
type ProgressFunc func(done, total int, current string)

// Options 单次摄取参数，零值字段取默认配置
type Options struct {
	Workers          int
	KeyframeInterval float64
	MaxFrames        int
	EmbedBatchSize   int
	StageTimeout     time.Duration
	ThumbnailDir     string
	OnProgress       ProgressFunc
}

func (o Options) withDefaults(d Options) Options {
	if o.Workers <= 0 {
		o.Workers = d.Workers
	}
	if o.Workers <= 0 {
		o.Workers = 1
	}
	if o.KeyframeInterval <= 0 {
		o.KeyframeInterval = d.KeyframeInterval
	}
	if o.KeyframeInterval <= 0 {
		o.KeyframeInterval = 2.0
	}
	if o.MaxFrames <= 0 {
		o.MaxFrames = d.MaxFrames
	}
	if o.MaxFrames <= 0 {
		o.MaxFrames = 100
	}
	if o.EmbedBatchSize <= 0 {
		o.EmbedBatchSize = d.EmbedBatchSize
	}
	if o.EmbedBatchSize <= 0 {
		o.EmbedBatchSize = 32
	}
	if o.StageTimeout <= 0 {
		o.StageTimeout = d.StageTimeout
	}
	if o.ThumbnailDir == "" {
		o.ThumbnailDir = d.ThumbnailDir
	}
	if o.OnProgress == nil {
		o.OnProgress = d.OnProgress
	}
	return o
}

// StageReport 阶段汇总
type StageReport struct {
	OK             bool    `json:"ok" yaml:"ok"`
	Count          int     `json:"count" yaml:"count"`
	ElapsedSeconds float64 `json:"elapsed_seconds" yaml:"elapsed_seconds"`
	Error          string  `json:"error,omitempty" yaml:"error,omitempty"`
}

// ItemSummary 单个媒体的摄取汇总
type ItemSummary struct {
	Path         string                    `json:"path" yaml:"path"`
	MediaID      int64                     `json:"media_id" yaml:"media_id"`
	Duration     float64                   `json:"duration" yaml:"duration"`
	Segments     int                       `json:"segments" yaml:"segments"`
	Keyframes    int                       `json:"keyframes" yaml:"keyframes"`
	Vectors      int                       `json:"vectors" yaml:"vectors"`
	Stages       map[StageKind]StageReport `json:"stages" yaml:"stages"`
	Warnings     []string                  `json:"warnings,omitempty" yaml:"warnings,omitempty"`
	Skipped      bool                      `json:"skipped,omitempty" yaml:"skipped,omitempty"`
	TotalSeconds float64                   `json:"total_seconds" yaml:"total_seconds"`
}

func (s *ItemSummary) warn(msg string) {
	s.Warnings = append(s.Warnings, msg)
}

// RunSummary 一次目录摄取的汇总
// AbandonedStages 为保存索引时仍未退出的超时阶段数
type RunSummary struct {
	Folder          string        `json:"folder" yaml:"folder"`
	Items           []ItemSummary `json:"items" yaml:"items"`
	ItemCount       int           `json:"item_count" yaml:"item_count"`
	TotalSegments   int           `json:"total_segments" yaml:"total_segments"`
	TotalKeyframes  int           `json:"total_keyframes" yaml:"total_keyframes"`
	TotalVectors    int           `json:"total_vectors" yaml:"total_vectors"`
	ElapsedSeconds  float64       `json:"elapsed_seconds" yaml:"elapsed_seconds"`
	Saved           bool          `json:"saved" yaml:"saved"`
	SaveError       string        `json:"save_error,omitempty" yaml:"save_error,omitempty"`
	AbandonedStages int           `json:"abandoned_stages,omitempty" yaml:"abandoned_stages,omitempty"`
	Message         string        `json:"message,omitempty" yaml:"message,omitempty"`
}

func newRunSummary(folder string) *RunSummary {
	return &RunSummary{Folder: folder, Items: []ItemSummary{}}
}

func (r *RunSummary) tally() {
	r.ItemCount = len(r.Items)
	r.TotalSegments, r.TotalKeyframes, r.TotalVectors = 0, 0, 0
	for _, it := range r.Items {
		r.TotalSegments += it.Segments
		r.TotalKeyframes += it.Keyframes
		r.TotalVectors += it.Vectors
	}
}
