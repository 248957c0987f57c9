package messaging

import (
	"testing"
	"time"
)

func TestCalculateBackoff(t *testing.T) {
	cfg := BackoffConfig{Initial: time.Second, Max: 5 * time.Second, Multiplier: 2}

	tests := []struct {
		retries int
		want    time.Duration
	}{
		{0, time.Second},
		{1, 2 * time.Second},
		{2, 4 * time.Second},
		{3, 5 * time.Second},
		{10, 5 * time.Second},
	}
	for _, tt := range tests {
		if got := cfg.CalculateBackoff(tt.retries); got != tt.want {
			t.Errorf("CalculateBackoff(%d) = %v, want %v", tt.retries, got, tt.want)
		}
	}
}

func TestIngestJobMessagePayload(t *testing.T) {
	job := &IngestJobMessage{JobID: "job-1", Folder: "/videos", Workers: 2}
	msg, err := NewMessage(job.JobID, MessageTypeIngestFolder, job)
	if err != nil {
		t.Fatalf("NewMessage() error = %v", err)
	}
	msg.SetMetadata("request_id", "req-1")

	var got IngestJobMessage
	if err := msg.UnmarshalPayload(&got); err != nil {
		t.Fatalf("UnmarshalPayload() error = %v", err)
	}
	if got != *job {
		t.Errorf("payload = %+v, want %+v", got, *job)
	}
	if msg.GetMetadata("request_id") != "req-1" || msg.GetMetadata("missing") != "" {
		t.Errorf("metadata = %v", msg.Metadata)
	}
	if StreamIngest.DLQStream() != "dlq:stream:media:ingest" {
		t.Errorf("DLQStream() = %q", StreamIngest.DLQStream())
	}
}
