package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestExpandEnv(t *testing.T) {
	t.Setenv("MEDIA_TEST_SET", "from-env")

	cases := []struct {
		in   string
		want string
	}{
		{"a: ${MEDIA_TEST_SET}", "a: from-env"},
		{"a: ${MEDIA_TEST_SET:fallback}", "a: from-env"},
		{"a: ${MEDIA_TEST_UNSET_1:fallback}", "a: fallback"},
		{"a: ${MEDIA_TEST_UNSET_2:}", "a: "},
		{"a: ${MEDIA_TEST_UNSET_3}", "a: ${MEDIA_TEST_UNSET_3}"},
	}
	for _, tc := range cases {
		if got := expandEnv(tc.in); got != tc.want {
			t.Errorf("expandEnv(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestLoadFromAppliesOverlayAndDefaults(t *testing.T) {
	dir := t.TempDir()
	base := `
app:
  name: test-app
ingest:
  workers: 2
vector:
  snapshot_path: ${MEDIA_TEST_INDEX:idx/default.index}
`
	overlay := `
ingest:
  workers: 4
`
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(base), 0o644); err != nil {
		t.Fatalf("write base: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "config.testing.yaml"), []byte(overlay), 0o644); err != nil {
		t.Fatalf("write overlay: %v", err)
	}
	t.Setenv("APP_ENV", "testing")
	t.Setenv("MEDIA_TEST_INDEX", "idx/custom.index")

	cfg, err := LoadFrom(dir)
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}
	if cfg.App.Name != "test-app" {
		t.Errorf("app.name = %q", cfg.App.Name)
	}
	if cfg.Ingest.Workers != 4 {
		t.Errorf("ingest.workers = %d, want overlay value 4", cfg.Ingest.Workers)
	}
	if cfg.Vector.SnapshotPath != "idx/custom.index" {
		t.Errorf("vector.snapshot_path = %q", cfg.Vector.SnapshotPath)
	}
	if cfg.Ingest.KeyframeInterval != 2.0 {
		t.Errorf("ingest.keyframe_interval default = %v, want 2.0", cfg.Ingest.KeyframeInterval)
	}
	if cfg.Ingest.MaxFrames != 100 {
		t.Errorf("ingest.max_frames default = %d, want 100", cfg.Ingest.MaxFrames)
	}
	if cfg.Retrieval.VisualWeight != 0.6 || cfg.Retrieval.TextWeight != 0.4 {
		t.Errorf("retrieval weights = %v/%v", cfg.Retrieval.VisualWeight, cfg.Retrieval.TextWeight)
	}
	if cfg.Ingest.StageTimeout != 10*time.Minute {
		t.Errorf("ingest.stage_timeout = %v", cfg.Ingest.StageTimeout)
	}
	if cfg.Database.Driver != "sqlite" {
		t.Errorf("database.driver default = %q", cfg.Database.Driver)
	}
}

func TestLoadFromMissingBaseFile(t *testing.T) {
	if _, err := LoadFrom(t.TempDir()); err == nil {
		t.Fatal("expected error for missing config.yaml")
	}
}
