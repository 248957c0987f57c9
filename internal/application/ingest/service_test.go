package ingest

import (
	"context"
	"path/filepath"
	"testing"

	"media-search-api/internal/domain/entity"
	"media-search-api/internal/infrastructure/messaging"
	apperrors "media-search-api/pkg/errors"
)

type recordingPublisher struct {
	jobs []*messaging.IngestJobMessage
}

func (p *recordingPublisher) PublishIngestJob(ctx context.Context, job *messaging.IngestJobMessage) (string, error) {
	p.jobs = append(p.jobs, job)
	return "1-0", nil
}

func TestServiceRunUpdatesStatus(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, 6)
	store := NewMemoryStatusStore()
	svc := NewService(h.pipeline, store, nil)

	folder := t.TempDir()
	touch(t, filepath.Join(folder, "clip.mp4"))

	summary, err := svc.Run(ctx, Request{Folder: folder})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if summary.ItemCount != 1 {
		t.Errorf("items = %d", summary.ItemCount)
	}

	st, err := svc.Status(ctx)
	if err != nil {
		t.Fatalf("Status() error = %v", err)
	}
	if st.Running || st.Progress != 1 || st.Total != 1 || st.FinishedAt == nil {
		t.Errorf("status = %+v", st)
	}
}

func TestServiceRejectsConcurrentRun(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, 6)
	store := NewMemoryStatusStore()
	svc := NewService(h.pipeline, store, nil)

	if ok, _ := store.TryBegin(ctx, &entity.IngestStatus{JobID: "other", Running: true}); !ok {
		t.Fatal("seed lock failed")
	}

	_, err := svc.Submit(ctx, Request{Folder: t.TempDir()})
	if !apperrors.HasCode(err, apperrors.CodeIngestBusy) {
		t.Fatalf("err = %v, want CodeIngestBusy", err)
	}
}

func TestServiceSubmitValidatesFolder(t *testing.T) {
	h := newHarness(t, 6)
	svc := NewService(h.pipeline, NewMemoryStatusStore(), nil)

	_, err := svc.Submit(context.Background(), Request{Folder: filepath.Join(t.TempDir(), "missing")})
	if !apperrors.HasCode(err, apperrors.CodeFileNotFound) {
		t.Fatalf("err = %v, want CodeFileNotFound", err)
	}
	if _, err := svc.Submit(context.Background(), Request{Folder: "  "}); !apperrors.HasCode(err, apperrors.CodeInvalidParam) {
		t.Fatalf("err = %v, want CodeInvalidParam", err)
	}
}

func TestServiceSubmitInProcess(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, 6)
	svc := NewService(h.pipeline, NewMemoryStatusStore(), nil)

	folder := t.TempDir()
	touch(t, filepath.Join(folder, "clip.mp4"))

	st, err := svc.Submit(ctx, Request{Folder: folder})
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if !st.Running || st.JobID == "" {
		t.Errorf("submitted status = %+v", st)
	}
	svc.Wait()

	final, _ := svc.Status(ctx)
	if final.Running || final.JobID != st.JobID || final.Error != "" {
		t.Errorf("final status = %+v", final)
	}
}

func TestServiceSubmitPublishes(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, 6)
	pub := &recordingPublisher{}
	store := NewMemoryStatusStore()
	svc := NewService(h.pipeline, store, pub)

	st, err := svc.Submit(ctx, Request{Folder: "/remote/videos", Workers: 2})
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if len(pub.jobs) != 1 || pub.jobs[0].JobID != st.JobID || pub.jobs[0].Workers != 2 {
		t.Fatalf("published = %+v", pub.jobs)
	}

	cur, _ := store.Get(ctx)
	if !cur.Running || cur.Message != "queued" {
		t.Errorf("status after enqueue = %+v", cur)
	}
}
