package vectorindex

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"testing"
)

func TestSaveLoadRoundTrip(t *testing.T) {
	ctx := context.Background()
	rng := rand.New(rand.NewSource(4))
	path := filepath.Join(t.TempDir(), "nested", "keyframes.index")

	orig := NewFlat(12)
	if err := orig.Add(ctx, randomVectors(rng, 7, 12), []int64{5, 3, 9, 1, 2, 8, 4}); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := orig.Save(path); err != nil {
		t.Fatalf("save: %v", err)
	}

	loaded, err := LoadFlat(path, 12)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.Size() != orig.Size() {
		t.Fatalf("size = %d, want %d", loaded.Size(), orig.Size())
	}
	wantIDs := orig.IDs()
	gotIDs := loaded.IDs()
	for slot := range wantIDs {
		if gotIDs[slot] != wantIDs[slot] {
			t.Errorf("slot %d: id %d, want %d", slot, gotIDs[slot], wantIDs[slot])
		}
		a, b := orig.Vector(slot), loaded.Vector(slot)
		for j := range a {
			if math.Abs(float64(a[j]-b[j])) > 1e-6 {
				t.Fatalf("slot %d component %d differs: %v vs %v", slot, j, a[j], b[j])
			}
		}
	}
}

func TestLoadMissingReturnsFreshIndex(t *testing.T) {
	idx, err := LoadFlat(filepath.Join(t.TempDir(), "absent.index"), 8)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if idx.Size() != 0 || idx.Dimension() != 8 {
		t.Errorf("fresh index = size %d dim %d", idx.Size(), idx.Dimension())
	}
}

func TestLoadAdoptsSnapshotDimension(t *testing.T) {
	path := filepath.Join(t.TempDir(), "k.index")
	orig := NewFlat(4)
	if err := orig.Add(context.Background(), [][]float32{{1, 2, 3, 4}}, []int64{1}); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := orig.Save(path); err != nil {
		t.Fatalf("save: %v", err)
	}
	idx, err := LoadFlat(path, 0)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if idx.Dimension() != 4 {
		t.Errorf("dimension = %d, want 4", idx.Dimension())
	}
}

func TestLoadDetectsIntegrityViolations(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	save := func(name string, ids []int64) string {
		t.Helper()
		path := filepath.Join(dir, name)
		idx := NewFlat(2)
		vecs := make([][]float32, len(ids))
		for i := range vecs {
			vecs[i] = []float32{1, float32(i)}
		}
		if err := idx.Add(ctx, vecs, ids); err != nil {
			t.Fatalf("add: %v", err)
		}
		if err := idx.Save(path); err != nil {
			t.Fatalf("save: %v", err)
		}
		return path
	}

	t.Run("dimension mismatch", func(t *testing.T) {
		path := save("dim.index", []int64{1})
		_, err := LoadFlat(path, 3)
		if !errors.Is(err, ErrIntegrity) || !errors.Is(err, ErrDimensionMismatch) {
			t.Errorf("got %v", err)
		}
	})

	t.Run("id map missing", func(t *testing.T) {
		path := save("noids.index", []int64{1})
		if err := os.Remove(IDsPath(path)); err != nil {
			t.Fatalf("remove: %v", err)
		}
		if _, err := LoadFlat(path, 2); !errors.Is(err, ErrIntegrity) {
			t.Errorf("got %v", err)
		}
	})

	t.Run("id map length mismatch", func(t *testing.T) {
		three := save("three.index", []int64{1, 2, 3})
		two := save("two.index", []int64{1, 2})
		data, err := os.ReadFile(IDsPath(two))
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		if err := os.WriteFile(IDsPath(three), data, 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
		if _, err := LoadFlat(three, 2); !errors.Is(err, ErrIntegrity) {
			t.Errorf("got %v", err)
		}
	})

	t.Run("truncated vectors", func(t *testing.T) {
		path := save("trunc.index", []int64{1, 2})
		info, err := os.Stat(path)
		if err != nil {
			t.Fatalf("stat: %v", err)
		}
		if err := os.Truncate(path, info.Size()-4); err != nil {
			t.Fatalf("truncate: %v", err)
		}
		if _, err := LoadFlat(path, 2); !errors.Is(err, ErrIntegrity) {
			t.Errorf("got %v", err)
		}
	})

	t.Run("header count exceeds file size", func(t *testing.T) {
		path := filepath.Join(dir, "huge.index")
		writeFile(t, path, vectorMagic, uint32(snapshotVersion), uint32(4), uint64(1)<<40)
		if _, err := LoadFlat(path, 4); !errors.Is(err, ErrIntegrity) {
			t.Errorf("got %v", err)
		}
	})

	t.Run("header count overflows", func(t *testing.T) {
		path := filepath.Join(dir, "wrap.index")
		writeFile(t, path, vectorMagic, uint32(snapshotVersion), uint32(4), uint64(1)<<62)
		if _, err := LoadFlat(path, 4); !errors.Is(err, ErrIntegrity) {
			t.Errorf("got %v", err)
		}
	})

	t.Run("id map count exceeds file size", func(t *testing.T) {
		path := filepath.Join(dir, "hugeids.index")
		writeFile(t, path, vectorMagic, uint32(snapshotVersion), uint32(2), uint64(1), []float32{1, 0})
		writeFile(t, IDsPath(path), idsMagic, uint32(snapshotVersion), uint64(1)<<40)
		if _, err := LoadFlat(path, 2); !errors.Is(err, ErrIntegrity) {
			t.Errorf("got %v", err)
		}
	})
}

func writeFile(t *testing.T, path string, fields ...any) {
	t.Helper()
	var buf bytes.Buffer
	for _, f := range fields {
		if err := binary.Write(&buf, binary.LittleEndian, f); err != nil {
			t.Fatalf("encode: %v", err)
		}
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
}
