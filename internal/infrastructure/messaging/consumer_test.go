package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/redis/go-redis/v9"

	apperrors "media-search-api/pkg/errors"
	"media-search-api/pkg/logger"
)

func streamEntry(t *testing.T, msg *Message) redis.XMessage {
	t.Helper()
	data, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return redis.XMessage{ID: "1-0", Values: map[string]any{"data": string(data)}}
}

func TestDecodeJob(t *testing.T) {
	job := &IngestJobMessage{JobID: "job-1", Folder: "/videos", Workers: 2, RequestID: "req-1"}
	msg, err := NewMessage(job.JobID, MessageTypeIngestFolder, job)
	if err != nil {
		t.Fatalf("NewMessage() error = %v", err)
	}

	gotMsg, gotJob, err := decodeJob(streamEntry(t, msg))
	if err != nil {
		t.Fatalf("decodeJob() error = %v", err)
	}
	if *gotJob != *job || gotMsg.ID != "job-1" {
		t.Errorf("decodeJob() = %+v, %+v", gotMsg, gotJob)
	}
}

func TestDecodeJobFillsJobIDFromEnvelope(t *testing.T) {
	msg, _ := NewMessage("env-7", MessageTypeIngestFolder, &IngestJobMessage{Folder: "/videos"})
	_, job, err := decodeJob(streamEntry(t, msg))
	if err != nil {
		t.Fatalf("decodeJob() error = %v", err)
	}
	if job.JobID != "env-7" {
		t.Errorf("JobID = %q, want env-7", job.JobID)
	}
}

func TestDecodeJobRejectsMalformed(t *testing.T) {
	wrongType, _ := NewMessage("m-1", "story_generate", map[string]string{"folder": "/videos"})
	noFolder, _ := NewMessage("m-2", MessageTypeIngestFolder, &IngestJobMessage{JobID: "m-2", Folder: "  "})

	tests := []struct {
		name      string
		entry     redis.XMessage
		wantJob   bool
		wantMsgID string
	}{
		{"missing data", redis.XMessage{ID: "1-0", Values: map[string]any{"other": "x"}}, false, ""},
		{"bad json", redis.XMessage{ID: "1-0", Values: map[string]any{"data": "{"}}, false, ""},
		{"wrong type", streamEntry(t, wrongType), false, "m-1"},
		{"empty folder", streamEntry(t, noFolder), true, "m-2"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, job, err := decodeJob(tt.entry)
			if !errors.Is(err, ErrMalformedJob) {
				t.Fatalf("err = %v, want ErrMalformedJob", err)
			}
			if (job != nil) != tt.wantJob {
				t.Errorf("job = %+v", job)
			}
			if tt.wantMsgID != "" && (msg == nil || msg.ID != tt.wantMsgID) {
				t.Errorf("msg = %+v", msg)
			}

			dl := newDeadLetter(StreamIngest, tt.entry.ID, msg, job, err)
			if dl.OriginalStream != string(StreamIngest) || dl.MessageID != "1-0" || dl.Error == "" {
				t.Errorf("dead letter = %+v", dl)
			}
		})
	}
}

func TestJobContextCarriesIDs(t *testing.T) {
	msg, _ := NewMessage("job-1", MessageTypeIngestFolder, &IngestJobMessage{JobID: "job-1", Folder: "/v"})
	msg.SetMetadata("request_id", "req-9")
	msg.SetMetadata("trace_id", "trace-3")

	ctx := jobContext(context.Background(), msg, &IngestJobMessage{JobID: "job-1", Folder: "/v"})
	for key, want := range map[logger.ContextKey]string{
		logger.JobIDKey:     "job-1",
		logger.RequestIDKey: "req-9",
		logger.TraceIDKey:   "trace-3",
	} {
		if got, _ := ctx.Value(key).(string); got != want {
			t.Errorf("ctx[%s] = %q, want %q", key, got, want)
		}
	}
}

func TestPermanentFailure(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{apperrors.New(apperrors.CodeFileNotFound, "folder not found"), true},
		{apperrors.New(apperrors.CodeInvalidParam, "bad folder"), true},
		{apperrors.New(apperrors.CodeIngestBusy, "ingestion already in progress"), false},
		{errors.New("redis timeout"), false},
	}
	for _, tt := range tests {
		if got := permanentFailure(tt.err); got != tt.want {
			t.Errorf("permanentFailure(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}

func TestDeadLetterEncoding(t *testing.T) {
	job := &IngestJobMessage{JobID: "job-1", Folder: "/videos"}
	msg, _ := NewMessage(job.JobID, MessageTypeIngestFolder, job)
	dl := newDeadLetter(StreamIngest, "5-0", msg, job, errors.New("ffmpeg missing"))

	data, err := json.Marshal(dl)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var got map[string]any
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got["job_id"] != "job-1" || got["folder"] != "/videos" || got["error"] != "ffmpeg missing" || got["data"] == nil {
		t.Errorf("dead letter = %s", data)
	}
}
