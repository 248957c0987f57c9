package vectorindex

import (
	"context"
	"path/filepath"
	"testing"
)

func TestManagerLifecycle(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "keyframes.index")
	m := NewManager(NewFlatBackend(path, 3))

	if info := m.Info(); info.Loaded {
		t.Fatalf("index must load lazily, got %+v", info)
	}
	if err := m.Save(ctx); err != nil {
		t.Fatalf("save before load: %v", err)
	}

	idx, err := m.Get(ctx)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if idx.Size() != 0 {
		t.Fatalf("fresh size = %d", idx.Size())
	}
	if err := idx.Add(ctx, [][]float32{{1, 0, 0}, {0, 1, 0}}, []int64{11, 12}); err != nil {
		t.Fatalf("add: %v", err)
	}

	again, err := m.Get(ctx)
	if err != nil {
		t.Fatalf("get again: %v", err)
	}
	if again.Size() != 2 {
		t.Errorf("Get must return the resident index, size = %d", again.Size())
	}

	// 未保存的追加在 Clear 后丢失
	m.Clear()
	cleared, err := m.Get(ctx)
	if err != nil {
		t.Fatalf("get after clear: %v", err)
	}
	if cleared.Size() != 0 {
		t.Errorf("size after clear = %d, want 0", cleared.Size())
	}

	if err := cleared.Add(ctx, [][]float32{{0, 0, 1}}, []int64{13}); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := m.Save(ctx); err != nil {
		t.Fatalf("save: %v", err)
	}

	reloaded, err := m.Reload(ctx)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if reloaded.Size() != 1 {
		t.Errorf("reloaded size = %d, want 1", reloaded.Size())
	}
	hits, err := reloaded.Search(ctx, []float32{0, 0, 1}, 1)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(hits) != 1 || hits[0].ID != 13 {
		t.Errorf("hits = %+v", hits)
	}

	info := m.Info()
	if !info.Loaded || info.Size != 1 || info.Dimension != 3 || info.Backend != "flat" || info.Location != path {
		t.Errorf("info = %+v", info)
	}
}

func TestManagerSaveIndexAfterClearAndReload(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "keyframes.index")
	m := NewManager(NewFlatBackend(path, 3))

	idx, err := m.Get(ctx)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if err := idx.Add(ctx, [][]float32{{1, 0, 0}, {0, 1, 0}}, []int64{1, 2}); err != nil {
		t.Fatalf("add: %v", err)
	}

	// 写入期间常驻索引被清空
	m.Clear()
	if err := idx.Add(ctx, [][]float32{{0, 0, 1}}, []int64{3}); err != nil {
		t.Fatalf("add after clear: %v", err)
	}
	if err := m.SaveIndex(ctx, idx); err != nil {
		t.Fatalf("save index: %v", err)
	}
	if info := m.Info(); !info.Loaded || info.Size != 3 {
		t.Errorf("saved index must become resident, info = %+v", info)
	}
	snap, err := LoadFlat(path, 3)
	if err != nil {
		t.Fatalf("load snapshot: %v", err)
	}
	if snap.Size() != 3 {
		t.Errorf("snapshot size = %d, want 3", snap.Size())
	}

	// 写入期间常驻索引被重载
	if _, err := m.Reload(ctx); err != nil {
		t.Fatalf("reload: %v", err)
	}
	if err := idx.Add(ctx, [][]float32{{1, 1, 0}}, []int64{4}); err != nil {
		t.Fatalf("add after reload: %v", err)
	}
	if err := m.SaveIndex(ctx, idx); err != nil {
		t.Fatalf("save index: %v", err)
	}
	current, err := m.Get(ctx)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if current.Size() != 4 {
		t.Errorf("resident size = %d, want 4", current.Size())
	}
	if snap, err = LoadFlat(path, 3); err != nil || snap.Size() != 4 {
		t.Errorf("snapshot after reload race: size=%v err=%v", snapSize(snap), err)
	}

	if err := m.SaveIndex(ctx, nil); err == nil {
		t.Error("saving a nil index must fail")
	}
}

func snapSize(f *Flat) int {
	if f == nil {
		return -1
	}
	return f.Size()
}
