package transcribe

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"media-search-api/internal/domain/entity"
)

const sampleSRT = "\ufeff1\n00:00:01,000 --> 00:00:02,500\nHello there\n\n2\n00:00:03,000 --> 00:00:05,250 X1:10\nA cat\nwalks by\n\n3\n00:00:06,000 --> 00:00:07,000\n\n"

func TestParseSRT(t *testing.T) {
	segs, err := ParseSRT(strings.NewReader(sampleSRT))
	if err != nil {
		t.Fatalf("ParseSRT() error = %v", err)
	}
	if len(segs) != 2 {
		t.Fatalf("segments = %d, want 2: %+v", len(segs), segs)
	}
	if segs[0].Start != 1 || segs[0].End != 2.5 || segs[0].Text != "Hello there" {
		t.Errorf("first segment = %+v", segs[0])
	}
	if math.Abs(segs[1].End-5.25) > 1e-9 || segs[1].Text != "A cat walks by" {
		t.Errorf("second segment = %+v", segs[1])
	}
}

func TestParseSRTInvalidTiming(t *testing.T) {
	_, err := ParseSRT(strings.NewReader("1\n00:00:xx,000 --> 00:00:02,000\ntext\n"))
	if err == nil {
		t.Fatal("expected error for malformed timestamp")
	}
}

type stubTranscriber struct {
	calls int
	err   error
}

func (s *stubTranscriber) Transcribe(ctx context.Context, mediaPath string) ([]entity.TranscriptSegment, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return []entity.TranscriptSegment{{Start: 0, End: 1, Text: "from whisper"}}, nil
}

func TestSidecarPrefersSRT(t *testing.T) {
	dir := t.TempDir()
	video := filepath.Join(dir, "clip.mp4")
	if err := os.WriteFile(filepath.Join(dir, "clip.srt"), []byte(sampleSRT), 0o644); err != nil {
		t.Fatalf("write srt: %v", err)
	}

	next := &stubTranscriber{}
	segs, err := NewSidecar(next).Transcribe(context.Background(), video)
	if err != nil {
		t.Fatalf("Transcribe() error = %v", err)
	}
	if len(segs) != 2 || next.calls != 0 {
		t.Errorf("segments = %d, fallback calls = %d", len(segs), next.calls)
	}
}

func TestSidecarFallsBack(t *testing.T) {
	video := filepath.Join(t.TempDir(), "clip.mp4")

	next := &stubTranscriber{}
	segs, err := NewSidecar(next).Transcribe(context.Background(), video)
	if err != nil {
		t.Fatalf("Transcribe() error = %v", err)
	}
	if next.calls != 1 || len(segs) != 1 || segs[0].Text != "from whisper" {
		t.Errorf("unexpected fallback result: calls=%d segs=%+v", next.calls, segs)
	}

	failing := &stubTranscriber{err: errors.New("boom")}
	if _, err := NewSidecar(failing).Transcribe(context.Background(), video); err == nil {
		t.Error("expected fallback error to propagate")
	}

	segs, err = NewSidecar(nil).Transcribe(context.Background(), video)
	if err != nil || len(segs) != 0 {
		t.Errorf("nil fallback = %v, %v", segs, err)
	}
}
