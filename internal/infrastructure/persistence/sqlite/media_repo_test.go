package sqlite

import (
	"context"
	"testing"

	"media-search-api/internal/domain/entity"
	"media-search-api/internal/domain/repository"
)

func seedMedia(t *testing.T, repo *MediaRepository, path string) int64 {
	t.Helper()
	id, err := repo.UpsertMediaItem(context.Background(), entity.NewMediaItem(path))
	if err != nil {
		t.Fatalf("upsert %s: %v", path, err)
	}
	return id
}

func TestUpsertMediaItemIsIdempotentByPath(t *testing.T) {
	ctx := context.Background()
	repo := NewMediaRepository(OpenTestDB(t))

	item := entity.NewMediaItem("/videos/a.mp4")
	item.ApplyProbe(6, 640, 360, 25)
	first, err := repo.UpsertMediaItem(ctx, item)
	if err != nil {
		t.Fatalf("first upsert: %v", err)
	}
	if err := repo.MarkComplete(ctx, first); err != nil {
		t.Fatalf("mark complete: %v", err)
	}

	again := entity.NewMediaItem("/videos/a.mp4")
	again.ApplyProbe(7, 1280, 720, 30)
	second, err := repo.UpsertMediaItem(ctx, again)
	if err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	if first != second {
		t.Fatalf("upsert changed id: %d -> %d", first, second)
	}

	got, err := repo.GetMediaByPath(ctx, "/videos/a.mp4")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got == nil {
		t.Fatal("expected media item")
	}
	if got.Status != entity.MediaStatusProcessing {
		t.Errorf("status = %s, want processing", got.Status)
	}
	if got.Duration != 7 || got.Width != 1280 || got.FPS != 30 {
		t.Errorf("metadata not refreshed: %+v", got)
	}
	if got.Name != "a.mp4" {
		t.Errorf("name = %q", got.Name)
	}
}

func TestGetMediaByPathMissing(t *testing.T) {
	repo := NewMediaRepository(OpenTestDB(t))
	got, err := repo.GetMediaByPath(context.Background(), "/nope.mp4")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil, got %+v", got)
	}
}

func TestInsertSegmentsClampsEnd(t *testing.T) {
	ctx := context.Background()
	repo := NewMediaRepository(OpenTestDB(t))
	mediaID := seedMedia(t, repo, "/videos/a.mp4")

	segs := []entity.TranscriptSegment{
		{Start: 4, End: 2, Text: "  backwards  "},
		{Start: 0, End: 1.5, Text: "hello world"},
	}
	if err := repo.InsertSegments(ctx, mediaID, segs); err != nil {
		t.Fatalf("insert: %v", err)
	}

	hits, err := repo.SearchTranscripts(ctx, "backwards", 10)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(hits) != 1 {
		t.Fatalf("hits = %d, want 1", len(hits))
	}
	if hits[0].End != 4 || hits[0].Text != "backwards" {
		t.Errorf("segment not normalized: %+v", hits[0])
	}
}

func TestSearchTranscriptsOrderAndLimit(t *testing.T) {
	ctx := context.Background()
	repo := NewMediaRepository(OpenTestDB(t))
	a := seedMedia(t, repo, "/videos/a.mp4")
	b := seedMedia(t, repo, "/videos/b.mp4")

	if err := repo.InsertSegments(ctx, a, []entity.TranscriptSegment{
		{Start: 10, End: 12, Text: "the Cat sat"},
		{Start: 2, End: 3, Text: "a cat appears"},
		{Start: 5, End: 6, Text: "no match here"},
	}); err != nil {
		t.Fatalf("insert a: %v", err)
	}
	if err := repo.InsertSegments(ctx, b, []entity.TranscriptSegment{
		{Start: 1, End: 2, Text: "cats everywhere"},
	}); err != nil {
		t.Fatalf("insert b: %v", err)
	}

	hits, err := repo.SearchTranscripts(ctx, "cat", 10)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(hits) != 3 {
		t.Fatalf("hits = %d, want 3", len(hits))
	}
	for i := 1; i < len(hits); i++ {
		if hits[i].Start < hits[i-1].Start {
			t.Errorf("hits not ordered by start: %v before %v", hits[i-1].Start, hits[i].Start)
		}
	}
	if hits[0].MediaPath != "/videos/b.mp4" {
		t.Errorf("first hit path = %q", hits[0].MediaPath)
	}

	limited, err := repo.SearchTranscripts(ctx, "cat", 2)
	if err != nil {
		t.Fatalf("search limited: %v", err)
	}
	if len(limited) != 2 {
		t.Errorf("limited hits = %d, want 2", len(limited))
	}
}

func TestSearchTranscriptsEscapesWildcards(t *testing.T) {
	ctx := context.Background()
	repo := NewMediaRepository(OpenTestDB(t))
	id := seedMedia(t, repo, "/videos/a.mp4")
	if err := repo.InsertSegments(ctx, id, []entity.TranscriptSegment{
		{Start: 0, End: 1, Text: "100% sure"},
		{Start: 1, End: 2, Text: "1000 reasons"},
	}); err != nil {
		t.Fatalf("insert: %v", err)
	}

	hits, err := repo.SearchTranscripts(ctx, "100%", 10)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(hits) != 1 || hits[0].Text != "100% sure" {
		t.Fatalf("unexpected hits: %+v", hits)
	}
}

func TestKeyframeSlotBackfillAndLookup(t *testing.T) {
	ctx := context.Background()
	repo := NewMediaRepository(OpenTestDB(t))
	mediaID := seedMedia(t, repo, "/videos/a.mp4")

	kf := &entity.KeyframeRecord{MediaID: mediaID, Timestamp: 2.0, ThumbnailPath: "/thumbs/a_0001.jpg"}
	kfID, err := repo.InsertKeyframe(ctx, kf)
	if err != nil {
		t.Fatalf("insert keyframe: %v", err)
	}

	hit, err := repo.GetKeyframeByVectorSlot(ctx, kfID)
	if err != nil {
		t.Fatalf("lookup before backfill: %v", err)
	}
	if hit != nil {
		t.Fatalf("keyframe without slot must not resolve, got %+v", hit)
	}

	if err := repo.SetKeyframeVectorSlots(ctx, map[int64]int64{kfID: kfID}); err != nil {
		t.Fatalf("backfill: %v", err)
	}

	hit, err = repo.GetKeyframeByVectorSlot(ctx, kfID)
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if hit == nil {
		t.Fatal("expected keyframe hit")
	}
	if hit.MediaPath != "/videos/a.mp4" || hit.MediaName != "a.mp4" || hit.Timestamp != 2.0 {
		t.Errorf("unexpected hit: %+v", hit)
	}
}

func TestListMediaAndStats(t *testing.T) {
	ctx := context.Background()
	repo := NewMediaRepository(OpenTestDB(t))
	a := seedMedia(t, repo, "/videos/a.mp4")
	seedMedia(t, repo, "/videos/b.mp4")

	if err := repo.InsertSegments(ctx, a, []entity.TranscriptSegment{{Start: 0, End: 1, Text: "x"}}); err != nil {
		t.Fatalf("segments: %v", err)
	}
	kfID, err := repo.InsertKeyframe(ctx, &entity.KeyframeRecord{MediaID: a, Timestamp: 0, ThumbnailPath: "t.jpg"})
	if err != nil {
		t.Fatalf("keyframe: %v", err)
	}
	if _, err := repo.InsertKeyframe(ctx, &entity.KeyframeRecord{MediaID: a, Timestamp: 2, ThumbnailPath: "u.jpg"}); err != nil {
		t.Fatalf("keyframe: %v", err)
	}
	if err := repo.SetKeyframeVectorSlots(ctx, map[int64]int64{kfID: kfID}); err != nil {
		t.Fatalf("backfill: %v", err)
	}
	if err := repo.MarkComplete(ctx, a); err != nil {
		t.Fatalf("complete: %v", err)
	}

	items, err := repo.ListMedia(ctx, repository.SortOrderAsc)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("items = %d, want 2", len(items))
	}

	stats, err := repo.Stats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	want := repository.MediaStats{MediaCount: 2, CompleteCount: 1, SegmentCount: 1, KeyframeCount: 2, EmbeddedFrames: 1}
	if *stats != want {
		t.Errorf("stats = %+v, want %+v", *stats, want)
	}
}
