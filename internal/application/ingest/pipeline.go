// Package ingest 实现目录摄取：阶段执行器与逐条目的转写、抽帧、编码、入索引流程
package ingest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"media-search-api/internal/domain/entity"
	"media-search-api/internal/domain/repository"
	"media-search-api/internal/infrastructure/media"
	"media-search-api/internal/infrastructure/vectorindex"
	apperrors "media-search-api/pkg/errors"
	"media-search-api/pkg/logger"
	"media-search-api/pkg/metrics"
)

// Deps 摄取依赖；Transcriber 与 Thumbnails 可为 nil
type Deps struct {
	Repo        repository.MediaRepository
	Index       *vectorindex.Manager
	Prober      Prober
	Transcriber Transcriber
	Extractor   FrameExtractor
	Embedder    ImageEmbedder
	Thumbnails  ThumbnailUploader
}

// Pipeline 摄取流水线
type Pipeline struct {
	deps     Deps
	defaults Options
}

// NewPipeline 创建摄取流水线
func NewPipeline(deps Deps, defaults Options) *Pipeline {
	return &Pipeline{deps: deps, defaults: defaults.withDefaults(Options{})}
}

// IngestFolder 摄取目录下所有媒体，结束后保存一次索引
// 目录不存在时返回空汇总和 CodeFileNotFound；目录中无媒体时返回空汇总
func (p *Pipeline) IngestFolder(ctx context.Context, folder string, opts Options) (*RunSummary, error) {
	opts = opts.withDefaults(p.defaults)
	start := time.Now()
	summary := newRunSummary(folder)

	info, err := os.Stat(folder)
	if err != nil || !info.IsDir() {
		summary.Message = fmt.Sprintf("folder not found: %s", folder)
		logger.Warn(ctx, "ingest folder not found", "folder", folder)
		return summary, apperrors.New(apperrors.CodeFileNotFound, "folder not found").WithDetail(folder)
	}

	paths, err := Discover(folder)
	if err != nil {
		return summary, apperrors.Wrap(err, apperrors.CodeIngestFailed, "failed to scan folder")
	}
	if len(paths) == 0 {
		summary.Message = fmt.Sprintf("no media files found in %s (supported: %v)", folder, SupportedExtensions)
		logger.Warn(ctx, "no media files found", "folder", folder)
		return summary, nil
	}

	idx, err := p.deps.Index.Get(ctx)
	if err != nil {
		summary.Message = "vector index unavailable"
		if errors.Is(err, vectorindex.ErrIntegrity) {
			return summary, apperrors.Wrap(err, apperrors.CodeIndexIntegrity, "vector index snapshot is corrupt")
		}
		return summary, apperrors.Wrap(err, apperrors.CodeVectorDBError, "failed to load vector index")
	}

	logger.Info(ctx, "ingest started", "folder", folder, "items", len(paths), "workers", opts.Workers)
	metrics.IngestRunning.Inc()
	defer metrics.IngestRunning.Dec()

	summary.Items = make([]ItemSummary, len(paths))
	progress := newProgressTracker(len(paths), opts.OnProgress)
	stages := &stageTracker{}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Workers)
	for i, path := range paths {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				summary.Items[i] = ItemSummary{Path: path, Skipped: true, Warnings: []string{err.Error()}}
				return nil
			}
			progress.started(path)
			summary.Items[i] = p.ingestItem(gctx, stages, idx, path, opts)
			progress.finished()
			return nil
		})
	}
	_ = g.Wait()

	summary.tally()

	// 超时阶段写入前会检查 ctx，这里再等待其退出，避免保存后仍有追加
	if n := stages.drain(opts.StageTimeout); n > 0 {
		summary.AbandonedStages = n
		logger.Warn(ctx, "stages still running at save time, their late writes may be lost", "stages", n)
	}

	if err := p.deps.Index.SaveIndex(ctx, idx); err != nil {
		summary.SaveError = err.Error()
		logger.Error(ctx, "failed to save vector index", err)
	} else {
		summary.Saved = true
	}

	summary.ElapsedSeconds = time.Since(start).Seconds()
	summary.Message = fmt.Sprintf("ingested %d items: %d segments, %d keyframes, %d vectors",
		summary.ItemCount, summary.TotalSegments, summary.TotalKeyframes, summary.TotalVectors)
	logger.Info(ctx, "ingest completed",
		"folder", folder,
		"items", summary.ItemCount,
		"segments", summary.TotalSegments,
		"keyframes", summary.TotalKeyframes,
		"vectors", summary.TotalVectors,
		"elapsed_s", summary.ElapsedSeconds,
	)

	if err := ctx.Err(); err != nil {
		return summary, err
	}
	return summary, nil
}

// ingestItem 处理单个媒体：各阶段失败只记录，不中断
func (p *Pipeline) ingestItem(ctx context.Context, stages *stageTracker, idx vectorindex.Index, path string, opts Options) ItemSummary {
	ctx = logger.WithContext(ctx, logger.MediaPathKey, path)
	start := time.Now()
	sum := ItemSummary{Path: path, Stages: make(map[StageKind]StageReport, 4)}
	defer func() {
		sum.TotalSeconds = time.Since(start).Seconds()
	}()

	// a. 元数据
	probe := runStage(ctx, stages, StageProbe, opts.StageTimeout, func(ctx context.Context) (*media.Info, error) {
		return p.deps.Prober.Probe(ctx, path)
	})
	meta := probe.Value
	if !probe.OK() || meta == nil {
		logger.Warn(ctx, "probe failed, using empty metadata", "error", errString(probe.Err))
		sum.warn("probe: " + errString(probe.Err))
		meta = &media.Info{}
	}
	sum.Stages[StageProbe] = probe.Report(1)
	sum.Duration = meta.Duration

	// b. 条目
	item := entity.NewMediaItem(path)
	item.ApplyProbe(meta.Duration, meta.Width, meta.Height, meta.FPS)
	mediaID, err := p.deps.Repo.UpsertMediaItem(ctx, item)
	if err != nil {
		logger.Error(ctx, "failed to upsert media item, skipping", err)
		sum.Skipped = true
		sum.warn("upsert: " + err.Error())
		return sum
	}
	sum.MediaID = mediaID

	// c. 转写
	if p.deps.Transcriber != nil {
		tr := runStage(ctx, stages, StageTranscribe, opts.StageTimeout, func(ctx context.Context) ([]entity.TranscriptSegment, error) {
			segs, err := p.deps.Transcriber.Transcribe(ctx, path)
			if err != nil {
				return nil, err
			}
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			if err := p.deps.Repo.InsertSegments(ctx, mediaID, segs); err != nil {
				return nil, err
			}
			return segs, nil
		})
		if !tr.OK() {
			logger.Warn(ctx, "transcription failed", "error", tr.Err.Error())
			sum.warn("transcribe: " + tr.Err.Error())
		} else {
			sum.Segments = len(tr.Value)
		}
		sum.Stages[StageTranscribe] = tr.Report(sum.Segments)
	}

	// d. 关键帧
	type keyframeOut struct {
		ids   []int64
		paths []string
	}
	kf := runStage(ctx, stages, StageKeyframes, opts.StageTimeout, func(ctx context.Context) (keyframeOut, error) {
		outDir := filepath.Join(opts.ThumbnailDir, strconv.FormatInt(mediaID, 10))
		frames, err := p.deps.Extractor.Extract(ctx, path, outDir, opts.KeyframeInterval, opts.MaxFrames)
		if err != nil {
			return keyframeOut{}, err
		}

		out := keyframeOut{ids: make([]int64, 0, len(frames)), paths: make([]string, 0, len(frames))}
		for _, f := range frames {
			if err := ctx.Err(); err != nil {
				return out, err
			}
			thumb := f.Path
			if p.deps.Thumbnails != nil {
				if u, err := p.deps.Thumbnails.Upload(ctx, mediaID, f.Path); err != nil {
					logger.Warn(ctx, "thumbnail upload failed, keeping local path", "thumbnail", f.Path, "error", err.Error())
				} else {
					thumb = u
				}
			}
			id, err := p.deps.Repo.InsertKeyframe(ctx, &entity.KeyframeRecord{
				MediaID:       mediaID,
				Timestamp:     f.Timestamp,
				ThumbnailPath: thumb,
			})
			if err != nil {
				return out, err
			}
			out.ids = append(out.ids, id)
			out.paths = append(out.paths, f.Path)
		}
		return out, nil
	})
	keyframes := kf.Value
	if !kf.OK() {
		logger.Warn(ctx, "keyframe extraction failed", "error", kf.Err.Error())
		sum.warn("keyframes: " + kf.Err.Error())
	}
	sum.Keyframes = len(keyframes.ids)
	sum.Stages[StageKeyframes] = kf.Report(sum.Keyframes)

	// e. 编码入索引
	if len(keyframes.ids) > 0 {
		emb := runStage(ctx, stages, StageEmbed, opts.StageTimeout, func(ctx context.Context) (int, error) {
			return p.embedKeyframes(ctx, idx, keyframes.ids, keyframes.paths, opts.EmbedBatchSize)
		})
		if !emb.OK() {
			logger.Warn(ctx, "embedding failed", "error", emb.Err.Error())
			sum.warn("embed: " + emb.Err.Error())
		}
		sum.Vectors = emb.Value
		sum.Stages[StageEmbed] = emb.Report(sum.Vectors)
	}

	// f. 无论阶段成败都标记完成
	if err := p.deps.Repo.MarkComplete(ctx, mediaID); err != nil {
		logger.Error(ctx, "failed to mark media complete", err)
		sum.warn("complete: " + err.Error())
	}
	metrics.IngestItemsTotal.Inc()

	logger.Info(ctx, "media ingested",
		"media_id", mediaID,
		"segments", sum.Segments,
		"keyframes", sum.Keyframes,
		"vectors", sum.Vectors,
	)
	return sum
}

// embedKeyframes 分批编码后一次性追加到索引，再回填槽位（槽位即关键帧 ID）
func (p *Pipeline) embedKeyframes(ctx context.Context, idx vectorindex.Index, ids []int64, paths []string, batchSize int) (int, error) {
	vectors := make([][]float32, 0, len(paths))
	for start := 0; start < len(paths); start += batchSize {
		end := min(start+batchSize, len(paths))
		batch, err := p.deps.Embedder.EmbedImages(ctx, paths[start:end])
		if err != nil {
			return 0, err
		}
		if len(batch) != end-start {
			return 0, fmt.Errorf("embedder returned %d vectors for %d images", len(batch), end-start)
		}
		vectors = append(vectors, batch...)
	}

	// 阶段已超时则不再写索引
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if err := idx.Add(ctx, vectors, ids); err != nil {
		return 0, err
	}

	slots := make(map[int64]int64, len(ids))
	for _, id := range ids {
		slots[id] = id
	}
	if err := p.deps.Repo.SetKeyframeVectorSlots(ctx, slots); err != nil {
		return len(vectors), fmt.Errorf("vectors indexed but slot backfill failed: %w", err)
	}
	return len(vectors), nil
}

func errString(err error) string {
	if err == nil {
		return "no metadata"
	}
	return err.Error()
}

// progressTracker 串行化进度回调
type progressTracker struct {
	mu    sync.Mutex
	done  int
	total int
	fn    ProgressFunc
}

func newProgressTracker(total int, fn ProgressFunc) *progressTracker {
	return &progressTracker{total: total, fn: fn}
}

func (t *progressTracker) started(path string) {
	if t.fn == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.fn(t.done, t.total, path)
}

func (t *progressTracker) finished() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.done++
	if t.fn != nil {
		t.fn(t.done, t.total, "")
	}
}
