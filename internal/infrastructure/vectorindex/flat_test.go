package vectorindex

import (
	"context"
	"errors"
	"math/rand"
	"testing"
)

func randomVectors(rng *rand.Rand, n, dim int) [][]float32 {
	out := make([][]float32, n)
	for i := range out {
		v := make([]float32, dim)
		for j := range v {
			v[j] = float32(rng.NormFloat64())
		}
		out[i] = v
	}
	return out
}

func seqIDs(start int64, n int) []int64 {
	ids := make([]int64, n)
	for i := range ids {
		ids[i] = start + int64(i)
	}
	return ids
}

func TestFlatAddThenSearchFindsSelf(t *testing.T) {
	ctx := context.Background()
	rng := rand.New(rand.NewSource(1))
	idx := NewFlat(16)

	vecs := randomVectors(rng, 20, 16)
	ids := seqIDs(100, 20)
	if err := idx.Add(ctx, vecs, ids); err != nil {
		t.Fatalf("add: %v", err)
	}

	for i, v := range vecs {
		hits, err := idx.Search(ctx, v, 1)
		if err != nil {
			t.Fatalf("search: %v", err)
		}
		if len(hits) != 1 {
			t.Fatalf("hits = %d, want 1", len(hits))
		}
		if hits[0].ID != ids[i] {
			t.Errorf("vector %d: top id = %d, want %d", i, hits[0].ID, ids[i])
		}
		if hits[0].Score < 0.99 {
			t.Errorf("vector %d: score = %v, want >= 0.99", i, hits[0].Score)
		}
	}
}

func TestFlatSizeArithmetic(t *testing.T) {
	ctx := context.Background()
	rng := rand.New(rand.NewSource(2))
	idx := NewFlat(8)

	if err := idx.Add(ctx, randomVectors(rng, 3, 8), seqIDs(1, 3)); err != nil {
		t.Fatalf("add: %v", err)
	}
	before := idx.Size()
	if err := idx.Add(ctx, randomVectors(rng, 5, 8), seqIDs(10, 5)); err != nil {
		t.Fatalf("add: %v", err)
	}
	if got := idx.Size(); got != before+5 {
		t.Errorf("size = %d, want %d", got, before+5)
	}
}

func TestFlatSearchEmpty(t *testing.T) {
	idx := NewFlat(4)
	for _, k := range []int{0, 1, 10} {
		hits, err := idx.Search(context.Background(), []float32{1, 0, 0, 0}, k)
		if err != nil {
			t.Fatalf("k=%d: %v", k, err)
		}
		if hits == nil || len(hits) != 0 {
			t.Errorf("k=%d: want empty non-nil slice, got %v", k, hits)
		}
	}
}

func TestFlatSearchClampsAndSorts(t *testing.T) {
	ctx := context.Background()
	rng := rand.New(rand.NewSource(3))
	idx := NewFlat(32)
	ids := seqIDs(1, 10)
	if err := idx.Add(ctx, randomVectors(rng, 10, 32), ids); err != nil {
		t.Fatalf("add: %v", err)
	}

	query := randomVectors(rng, 1, 32)[0]
	hits, err := idx.Search(ctx, query, 5)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(hits) != 5 {
		t.Fatalf("hits = %d, want 5", len(hits))
	}
	known := map[int64]bool{}
	for _, id := range ids {
		known[id] = true
	}
	for i, h := range hits {
		if !known[h.ID] {
			t.Errorf("unknown id %d", h.ID)
		}
		if h.Score < -1.0001 || h.Score > 1.0001 {
			t.Errorf("score out of range: %v", h.Score)
		}
		if i > 0 && h.Score > hits[i-1].Score {
			t.Errorf("scores not non-increasing at %d", i)
		}
	}

	all, err := idx.Search(ctx, query, 50)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(all) != 10 {
		t.Errorf("k larger than size: got %d, want 10", len(all))
	}
}

func TestFlatAddRejectsMismatch(t *testing.T) {
	ctx := context.Background()
	idx := NewFlat(3)

	err := idx.Add(ctx, [][]float32{{1, 0, 0}}, []int64{1, 2})
	if !errors.Is(err, ErrLengthMismatch) {
		t.Errorf("length mismatch: got %v", err)
	}
	err = idx.Add(ctx, [][]float32{{1, 0}}, []int64{1})
	if !errors.Is(err, ErrDimensionMismatch) {
		t.Errorf("dimension mismatch: got %v", err)
	}
	if idx.Size() != 0 {
		t.Errorf("rejected add must not change size, got %d", idx.Size())
	}
}

func TestFlatZeroVectorIsHarmless(t *testing.T) {
	ctx := context.Background()
	idx := NewFlat(3)
	if err := idx.Add(ctx, [][]float32{{0, 0, 0}, {0, 1, 0}}, []int64{7, 8}); err != nil {
		t.Fatalf("add: %v", err)
	}
	hits, err := idx.Search(ctx, []float32{0, 1, 0}, 2)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if hits[0].ID != 8 {
		t.Errorf("top id = %d, want 8", hits[0].ID)
	}
	if hits[1].Score != 0 {
		t.Errorf("zero placeholder score = %v, want 0", hits[1].Score)
	}
}
