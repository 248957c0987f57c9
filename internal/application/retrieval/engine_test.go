package retrieval

import (
	"context"
	"errors"
	"math"
	"path/filepath"
	"testing"

	"github.com/cloudwego/eino/components/embedding"

	"media-search-api/internal/domain/entity"
	"media-search-api/internal/infrastructure/persistence/sqlite"
	"media-search-api/internal/infrastructure/vectorindex"
)

type fakeEmbedder struct {
	vec   []float64
	err   error
	calls int
}

func (f *fakeEmbedder) EmbedStrings(ctx context.Context, texts []string, _ ...embedding.Option) ([][]float64, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return [][]float64{f.vec}, nil
}

type fixture struct {
	engine   *Engine
	embedder *fakeEmbedder
	repo     *sqlite.MediaRepository
}

// newFixture 一个媒体，三个关键帧 (0s, 2s, 4s) 分别编码为 e0/e1/e2，两个转写片段
func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	repo := sqlite.NewMediaRepository(sqlite.OpenTestDB(t))
	mgr := vectorindex.NewManager(vectorindex.NewFlatBackend(filepath.Join(t.TempDir(), "kf.index"), 3))
	idx, err := mgr.Get(ctx)
	if err != nil {
		t.Fatalf("index: %v", err)
	}

	mediaID, err := repo.UpsertMediaItem(ctx, entity.NewMediaItem("/videos/a.mp4"))
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}

	ids := make([]int64, 0, 3)
	for _, ts := range []float64{0, 2, 4} {
		id, err := repo.InsertKeyframe(ctx, &entity.KeyframeRecord{MediaID: mediaID, Timestamp: ts, ThumbnailPath: "/thumbs/a.jpg"})
		if err != nil {
			t.Fatalf("keyframe: %v", err)
		}
		ids = append(ids, id)
	}
	if err := idx.Add(ctx, [][]float32{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}}, ids); err != nil {
		t.Fatalf("index add: %v", err)
	}
	slots := map[int64]int64{}
	for _, id := range ids {
		slots[id] = id
	}
	if err := repo.SetKeyframeVectorSlots(ctx, slots); err != nil {
		t.Fatalf("slots: %v", err)
	}

	if err := repo.InsertSegments(ctx, mediaID, []entity.TranscriptSegment{
		{Start: 2.04, End: 3, Text: "cat"},
		{Start: 10, End: 12, Text: "a cat sat on the mat"},
	}); err != nil {
		t.Fatalf("segments: %v", err)
	}

	emb := &fakeEmbedder{vec: []float64{0, 1, 0}}
	return &fixture{
		engine:   NewEngine(emb, mgr, repo, nil, Defaults{}),
		embedder: emb,
		repo:     repo,
	}
}

func TestSearchFusesAndDedupes(t *testing.T) {
	f := newFixture(t)

	out, err := f.engine.Search(context.Background(), SearchInput{Query: "cat"})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(out.Degraded) != 0 {
		t.Fatalf("unexpected degraded branches: %v", out.Degraded)
	}
	if len(out.Results) != 4 {
		t.Fatalf("results = %d, want 4: %+v", len(out.Results), out.Results)
	}

	first := out.Results[0]
	if first.Source != SourceVisual || first.Timestamp != 2 || math.Abs(first.Score-0.6) > 1e-4 {
		t.Errorf("first result = %+v", first)
	}
	second := out.Results[1]
	if second.Source != SourceTranscript || second.Timestamp != 10 {
		t.Errorf("second result = %+v", second)
	}
	if want := 3.0 / 20.0 * 0.4; math.Abs(second.Score-want) > 1e-9 {
		t.Errorf("lexical score = %v, want %v", second.Score, want)
	}

	for _, r := range out.Results {
		if r.Source == SourceTranscript && r.Timestamp < 3 {
			t.Errorf("transcript at %.2fs should have been deduped against the visual hit", r.Timestamp)
		}
	}
	for i := 1; i < len(out.Results); i++ {
		if out.Results[i].Score > out.Results[i-1].Score {
			t.Errorf("results not sorted at %d", i)
		}
	}
}

func TestSearchTruncatesToTopK(t *testing.T) {
	f := newFixture(t)
	out, err := f.engine.Search(context.Background(), SearchInput{Query: "cat", TopK: 2})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(out.Results) != 2 || out.TopK != 2 {
		t.Errorf("results = %d, top_k = %d", len(out.Results), out.TopK)
	}
}

func TestSearchVisualFailureDegradesToLexical(t *testing.T) {
	f := newFixture(t)
	f.embedder.err = errors.New("embedding provider unavailable")

	out, err := f.engine.Search(context.Background(), SearchInput{Query: "cat"})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(out.Degraded) != 1 {
		t.Errorf("degraded = %v", out.Degraded)
	}
	if len(out.Results) != 2 {
		t.Fatalf("results = %+v", out.Results)
	}
	for _, r := range out.Results {
		if r.Source != SourceTranscript {
			t.Errorf("unexpected source %q", r.Source)
		}
	}
}

func TestSearchWithoutVisualBackend(t *testing.T) {
	f := newFixture(t)
	engine := NewEngine(nil, nil, f.repo, nil, Defaults{})

	out, err := engine.Search(context.Background(), SearchInput{Query: "nothing matches"})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(out.Results) != 0 || len(out.Degraded) != 1 {
		t.Errorf("out = %+v", out)
	}
}

func TestSearchWeightOverride(t *testing.T) {
	f := newFixture(t)
	zero, one := 0.0, 1.0

	out, err := f.engine.Search(context.Background(), SearchInput{Query: "cat", VisualWeight: &zero, TextWeight: &one})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if out.Results[0].Source != SourceTranscript {
		t.Errorf("first result = %+v, want transcript", out.Results[0])
	}
}

func TestSearchVisualOnly(t *testing.T) {
	f := newFixture(t)
	out, err := f.engine.SearchVisualOnly(context.Background(), SearchInput{Query: "cat", TopK: 1})
	if err != nil {
		t.Fatalf("SearchVisualOnly() error = %v", err)
	}
	if len(out.Results) != 1 || out.Results[0].Timestamp != 2 || out.Results[0].Score < 0.99 {
		t.Errorf("results = %+v", out.Results)
	}
}

func TestSearchSkipsUnresolvedSlots(t *testing.T) {
	f := newFixture(t)
	idx, _ := f.engine.index.Get(context.Background())
	if err := idx.Add(context.Background(), [][]float32{{0, 1, 0}}, []int64{9999}); err != nil {
		t.Fatalf("add: %v", err)
	}

	out, err := f.engine.SearchVisualOnly(context.Background(), SearchInput{Query: "cat", TopK: 10})
	if err != nil {
		t.Fatalf("SearchVisualOnly() error = %v", err)
	}
	if len(out.Results) != 3 {
		t.Errorf("results = %d, want 3", len(out.Results))
	}
}

func TestSearchEmptyQuery(t *testing.T) {
	f := newFixture(t)
	if _, err := f.engine.Search(context.Background(), SearchInput{Query: "   "}); !errors.Is(err, ErrEmptyQuery) {
		t.Fatalf("err = %v, want ErrEmptyQuery", err)
	}
}

func TestLexicalScore(t *testing.T) {
	tests := []struct {
		query, text string
		want        float64
	}{
		{"cat", "cat", 1},
		{"cat", "a cat sat on the mat", 0.15},
		{"long query", "short", 1},
		{"猫", "一只猫", 1.0 / 3.0},
		{"x", "", 1},
	}
	for _, tt := range tests {
		if got := LexicalScore(tt.query, tt.text); math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("LexicalScore(%q, %q) = %v, want %v", tt.query, tt.text, got, tt.want)
		}
	}
}

func TestRoundTenth(t *testing.T) {
	cases := map[float64]float64{2.04: 2.0, 2.06: 2.1, 0.25: 0.2}
	for in, want := range cases {
		if got := roundTenth(in); math.Abs(got-want) > 1e-9 {
			t.Errorf("roundTenth(%v) = %v, want %v", in, got, want)
		}
	}
}
