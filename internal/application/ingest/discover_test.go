package ingest

import (
	"os"
	"path/filepath"
	"testing"
)

func touch(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func TestDiscoverTopLevelFiltersAndSorts(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.mp4", "a.MKV", "notes.txt", "sub/c.webm", "sub/d.Mov", "e.avi.bak", "dir.mp4/g.mkv", ".hidden/f.mp4"} {
		touch(t, filepath.Join(dir, name))
	}

	got, err := Discover(dir)
	if err != nil {
		t.Fatalf("Discover() error = %v", err)
	}
	want := []string{
		filepath.Join(dir, "a.MKV"),
		filepath.Join(dir, "b.mp4"),
	}
	if len(got) != len(want) {
		t.Fatalf("Discover() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Discover()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestIsSupported(t *testing.T) {
	cases := map[string]bool{
		"clip.MP4":  true,
		"clip.webm": true,
		"clip.avi":  true,
		"clip.mov":  true,
		"clip.gif":  false,
		"clip":      false,
	}
	for path, want := range cases {
		if got := IsSupported(path); got != want {
			t.Errorf("IsSupported(%q) = %v, want %v", path, got, want)
		}
	}
}
