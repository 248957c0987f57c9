package ingest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"media-search-api/internal/domain/entity"
	"media-search-api/internal/infrastructure/media"
	"media-search-api/internal/infrastructure/persistence/sqlite"
	"media-search-api/internal/infrastructure/vectorindex"
	apperrors "media-search-api/pkg/errors"
)

const testDim = 4

type fakeProber struct {
	duration float64
	err      error
}

func (f *fakeProber) Probe(ctx context.Context, path string) (*media.Info, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &media.Info{Duration: f.duration, Width: 640, Height: 360, FPS: 25}, nil
}

type fakeTranscriber struct {
	err error
}

func (f *fakeTranscriber) Transcribe(ctx context.Context, path string) ([]entity.TranscriptSegment, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []entity.TranscriptSegment{
		{Start: 0, End: 2, Text: "a cat on the sofa"},
		{Start: 2, End: 4, Text: "the dog barks"},
	}, nil
}

// fakeExtractor 按时间点写出占位缩略图
type fakeExtractor struct {
	duration float64
}

func (f *fakeExtractor) Extract(ctx context.Context, path, outDir string, interval float64, maxFrames int) ([]media.Frame, error) {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, err
	}
	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	frames := make([]media.Frame, 0)
	for i, ts := range media.Timestamps(f.duration, interval, maxFrames) {
		out := filepath.Join(outDir, fmt.Sprintf("%s_%04d.jpg", stem, i))
		if err := os.WriteFile(out, []byte("jpeg"), 0o644); err != nil {
			return nil, err
		}
		frames = append(frames, media.Frame{Timestamp: ts, Path: out})
	}
	return frames, nil
}

type fakeEmbedder struct {
	mu     sync.Mutex
	calls  int
	images int
	err    error
	// onEmbed 在每次编码时调用
	onEmbed func()
}

func (f *fakeEmbedder) EmbedImages(ctx context.Context, paths []string) ([][]float32, error) {
	f.mu.Lock()
	f.calls++
	f.images += len(paths)
	f.mu.Unlock()
	if f.onEmbed != nil {
		f.onEmbed()
	}
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(paths))
	for i := range paths {
		v := make([]float32, testDim)
		v[i%testDim] = 1
		out[i] = v
	}
	return out, nil
}

type harness struct {
	pipeline *Pipeline
	repo     *sqlite.MediaRepository
	index    *vectorindex.Manager
	embedder *fakeEmbedder
	snapshot string
}

func newHarness(t *testing.T, duration float64) *harness {
	t.Helper()
	dir := t.TempDir()
	snapshot := filepath.Join(dir, "index", "keyframes.index")

	h := &harness{
		repo:     sqlite.NewMediaRepository(sqlite.OpenTestDB(t)),
		index:    vectorindex.NewManager(vectorindex.NewFlatBackend(snapshot, testDim)),
		embedder: &fakeEmbedder{},
		snapshot: snapshot,
	}
	h.pipeline = NewPipeline(Deps{
		Repo:        h.repo,
		Index:       h.index,
		Prober:      &fakeProber{duration: duration},
		Transcriber: &fakeTranscriber{},
		Extractor:   &fakeExtractor{duration: duration},
		Embedder:    h.embedder,
	}, Options{ThumbnailDir: filepath.Join(dir, "thumbs")})
	return h
}

func indexSize(t *testing.T, m *vectorindex.Manager) int {
	t.Helper()
	idx, err := m.Get(context.Background())
	if err != nil {
		t.Fatalf("index get: %v", err)
	}
	return idx.Size()
}

func TestIngestFolderSixSecondItem(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, 6)
	folder := t.TempDir()
	touch(t, filepath.Join(folder, "clip.mp4"))

	before := indexSize(t, h.index)
	summary, err := h.pipeline.IngestFolder(ctx, folder, Options{})
	if err != nil {
		t.Fatalf("IngestFolder() error = %v", err)
	}

	if summary.ItemCount != 1 || summary.TotalKeyframes != 3 || summary.TotalVectors != 3 || summary.TotalSegments != 2 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	if h.embedder.images != 3 {
		t.Errorf("embedder received %d images, want 3", h.embedder.images)
	}
	if got := indexSize(t, h.index); got != before+3 {
		t.Errorf("index size = %d, want %d", got, before+3)
	}
	if !summary.Saved {
		t.Errorf("index not saved: %s", summary.SaveError)
	}
	if _, err := os.Stat(h.snapshot); err != nil {
		t.Errorf("snapshot missing: %v", err)
	}

	item, err := h.repo.GetMediaByPath(ctx, filepath.Join(folder, "clip.mp4"))
	if err != nil || item == nil {
		t.Fatalf("media lookup: %v %v", item, err)
	}
	if item.Status != entity.MediaStatusComplete || item.Duration != 6 {
		t.Errorf("media = %+v", item)
	}

	stats, err := h.repo.Stats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.KeyframeCount != 3 || stats.EmbeddedFrames != 3 {
		t.Errorf("stats = %+v", stats)
	}

	// 槽位可解析回关键帧
	idx, _ := h.index.Get(ctx)
	hits, err := idx.Search(ctx, []float32{1, 0, 0, 0}, 1)
	if err != nil || len(hits) != 1 {
		t.Fatalf("search: %v %v", hits, err)
	}
	kf, err := h.repo.GetKeyframeByVectorSlot(ctx, hits[0].ID)
	if err != nil || kf == nil {
		t.Fatalf("slot %d did not resolve: %v", hits[0].ID, err)
	}
	if kf.MediaName != "clip.mp4" {
		t.Errorf("keyframe hit = %+v", kf)
	}
}

func TestIngestFolderSavesIndexClearedMidRun(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, 6)
	h.embedder.onEmbed = h.index.Clear
	folder := t.TempDir()
	touch(t, filepath.Join(folder, "clip.mp4"))

	summary, err := h.pipeline.IngestFolder(ctx, folder, Options{})
	if err != nil {
		t.Fatalf("IngestFolder() error = %v", err)
	}
	if !summary.Saved || summary.TotalVectors != 3 {
		t.Fatalf("summary = %+v", summary)
	}

	snap, err := vectorindex.LoadFlat(h.snapshot, testDim)
	if err != nil {
		t.Fatalf("load snapshot: %v", err)
	}
	stats, err := h.repo.Stats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if snap.Size() != 3 || int(stats.EmbeddedFrames) != snap.Size() {
		t.Errorf("snapshot size = %d, embedded rows = %d, want 3", snap.Size(), stats.EmbeddedFrames)
	}
	if got := indexSize(t, h.index); got != 3 {
		t.Errorf("resident index size = %d, want 3", got)
	}
}

func TestIngestFolderDropsLateEmbedAfterTimeout(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, 6)
	h.embedder.onEmbed = func() { time.Sleep(200 * time.Millisecond) }
	folder := t.TempDir()
	touch(t, filepath.Join(folder, "clip.mp4"))

	summary, err := h.pipeline.IngestFolder(ctx, folder, Options{StageTimeout: 50 * time.Millisecond})
	if err != nil {
		t.Fatalf("IngestFolder() error = %v", err)
	}
	it := summary.Items[0]
	if it.Stages[StageEmbed].OK || it.Vectors != 0 || it.Keyframes != 3 {
		t.Fatalf("item = %+v", it)
	}
	if summary.AbandonedStages != 0 || !summary.Saved {
		t.Errorf("summary = %+v", summary)
	}

	// 超时后返回的编码结果不得写入索引
	if got := indexSize(t, h.index); got != 0 {
		t.Errorf("index size = %d, want 0", got)
	}
	snap, err := vectorindex.LoadFlat(h.snapshot, testDim)
	if err != nil {
		t.Fatalf("load snapshot: %v", err)
	}
	stats, _ := h.repo.Stats(ctx)
	if snap.Size() != 0 || stats.EmbeddedFrames != 0 {
		t.Errorf("snapshot size = %d, embedded rows = %d", snap.Size(), stats.EmbeddedFrames)
	}
}

func TestIngestFolderReingest(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, 6)
	folder := t.TempDir()
	path := filepath.Join(folder, "clip.mp4")
	touch(t, path)

	first, err := h.pipeline.IngestFolder(ctx, folder, Options{})
	if err != nil {
		t.Fatalf("first ingest: %v", err)
	}
	second, err := h.pipeline.IngestFolder(ctx, folder, Options{})
	if err != nil {
		t.Fatalf("second ingest: %v", err)
	}
	if first.Items[0].MediaID != second.Items[0].MediaID {
		t.Errorf("media id changed: %d -> %d", first.Items[0].MediaID, second.Items[0].MediaID)
	}

	item, err := h.repo.GetMediaByPath(ctx, path)
	if err != nil || item == nil || item.Status != entity.MediaStatusComplete {
		t.Fatalf("media after re-ingest = %+v, %v", item, err)
	}
	if got := indexSize(t, h.index); got != 6 {
		t.Errorf("index size = %d, want 6", got)
	}
}

func TestIngestFolderMissing(t *testing.T) {
	h := newHarness(t, 6)
	summary, err := h.pipeline.IngestFolder(context.Background(), filepath.Join(t.TempDir(), "nope"), Options{})
	if !apperrors.HasCode(err, apperrors.CodeFileNotFound) {
		t.Fatalf("err = %v, want CodeFileNotFound", err)
	}
	if summary == nil || summary.ItemCount != 0 || summary.Message == "" {
		t.Errorf("summary = %+v", summary)
	}
}

func TestIngestFolderEmpty(t *testing.T) {
	h := newHarness(t, 6)
	folder := t.TempDir()
	touch(t, filepath.Join(folder, "readme.txt"))

	summary, err := h.pipeline.IngestFolder(context.Background(), folder, Options{})
	if err != nil {
		t.Fatalf("IngestFolder() error = %v", err)
	}
	if summary.ItemCount != 0 || len(summary.Items) != 0 {
		t.Errorf("summary = %+v", summary)
	}
}

func TestIngestFolderDegradesOnStageFailure(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, 6)
	h.embedder.err = errors.New("embedding service down")
	h.pipeline.deps.Transcriber = &fakeTranscriber{err: errors.New("no audio")}

	folder := t.TempDir()
	path := filepath.Join(folder, "clip.mp4")
	touch(t, path)

	summary, err := h.pipeline.IngestFolder(ctx, folder, Options{})
	if err != nil {
		t.Fatalf("IngestFolder() error = %v", err)
	}
	it := summary.Items[0]
	if it.Segments != 0 || it.Keyframes != 3 || it.Vectors != 0 {
		t.Errorf("item = %+v", it)
	}
	if it.Stages[StageEmbed].OK || it.Stages[StageTranscribe].OK || !it.Stages[StageKeyframes].OK {
		t.Errorf("stages = %+v", it.Stages)
	}
	if len(it.Warnings) != 2 {
		t.Errorf("warnings = %v", it.Warnings)
	}

	item, _ := h.repo.GetMediaByPath(ctx, path)
	if item == nil || item.Status != entity.MediaStatusComplete {
		t.Errorf("media = %+v", item)
	}
	stats, _ := h.repo.Stats(ctx)
	if stats.EmbeddedFrames != 0 {
		t.Errorf("embedded frames = %d, want 0", stats.EmbeddedFrames)
	}
}

func TestIngestFolderProbeFailureStillEmbeds(t *testing.T) {
	h := newHarness(t, 4)
	h.pipeline.deps.Prober = &fakeProber{err: errors.New("ffprobe missing")}

	folder := t.TempDir()
	touch(t, filepath.Join(folder, "clip.mkv"))

	summary, err := h.pipeline.IngestFolder(context.Background(), folder, Options{})
	if err != nil {
		t.Fatalf("IngestFolder() error = %v", err)
	}
	it := summary.Items[0]
	if it.Duration != 0 || it.Keyframes != 2 || it.Vectors != 2 {
		t.Errorf("item = %+v", it)
	}
}

func TestIngestFolderWorkersKeepDiscoveryOrder(t *testing.T) {
	h := newHarness(t, 2)
	folder := t.TempDir()
	names := []string{"a.mp4", "b.mp4", "c.mp4", "d.mp4"}
	for _, n := range names {
		touch(t, filepath.Join(folder, n))
	}

	var mu sync.Mutex
	lastDone := 0
	summary, err := h.pipeline.IngestFolder(context.Background(), folder, Options{
		Workers: 3,
		OnProgress: func(done, total int, current string) {
			mu.Lock()
			defer mu.Unlock()
			if done < lastDone || total != len(names) {
				t.Errorf("progress went backwards: %d/%d", done, total)
			}
			lastDone = done
		},
	})
	if err != nil {
		t.Fatalf("IngestFolder() error = %v", err)
	}
	for i, n := range names {
		if filepath.Base(summary.Items[i].Path) != n {
			t.Errorf("item %d = %s, want %s", i, summary.Items[i].Path, n)
		}
	}
	if lastDone != len(names) {
		t.Errorf("final progress = %d", lastDone)
	}
	if got := indexSize(t, h.index); got != len(names) {
		t.Errorf("index size = %d, want %d", got, len(names))
	}
}

func TestIngestZeroDurationYieldsNoKeyframes(t *testing.T) {
	h := newHarness(t, 0)
	folder := t.TempDir()
	touch(t, filepath.Join(folder, "empty.mp4"))

	summary, err := h.pipeline.IngestFolder(context.Background(), folder, Options{})
	if err != nil {
		t.Fatalf("IngestFolder() error = %v", err)
	}
	if summary.TotalKeyframes != 0 || h.embedder.calls != 0 {
		t.Errorf("keyframes = %d, embed calls = %d", summary.TotalKeyframes, h.embedder.calls)
	}
	if _, ok := summary.Items[0].Stages[StageEmbed]; ok {
		t.Error("embed stage should not run without keyframes")
	}
}
