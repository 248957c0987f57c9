package dto

import (
	"time"

	"media-search-api/internal/application/ingest"
	"media-search-api/internal/domain/entity"
)

// IngestRequest 摄取请求
type IngestRequest struct {
	Folder           string  `json:"folder" binding:"required"`
	Workers          int     `json:"workers,omitempty" binding:"omitempty,min=1,max=64"`
	KeyframeInterval float64 `json:"keyframe_interval,omitempty" binding:"omitempty,gt=0"`
	MaxFrames        int     `json:"max_frames,omitempty" binding:"omitempty,min=1"`
}

// ToRequest 转换为摄取服务请求
func (r *IngestRequest) ToRequest(requestID string) ingest.Request {
	return ingest.Request{
		Folder:           r.Folder,
		Workers:          r.Workers,
		KeyframeInterval: r.KeyframeInterval,
		MaxFrames:        r.MaxFrames,
		RequestID:        requestID,
	}
}

// IngestStatusResponse 摄取状态
type IngestStatusResponse struct {
	JobID       string     `json:"job_id,omitempty"`
	Running     bool       `json:"running"`
	Folder      string     `json:"folder,omitempty"`
	Progress    int        `json:"progress"`
	Total       int        `json:"total"`
	CurrentItem string     `json:"current_item,omitempty"`
	Message     string     `json:"message"`
	Error       string     `json:"error,omitempty"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	FinishedAt  *time.Time `json:"finished_at,omitempty"`
}

// ToIngestStatusResponse 将状态实体转换为响应 DTO
func ToIngestStatusResponse(st *entity.IngestStatus) *IngestStatusResponse {
	if st == nil {
		return nil
	}
	return &IngestStatusResponse{
		JobID:       st.JobID,
		Running:     st.Running,
		Folder:      st.Folder,
		Progress:    st.Progress,
		Total:       st.Total,
		CurrentItem: st.CurrentItem,
		Message:     st.Message,
		Error:       st.Error,
		StartedAt:   st.StartedAt,
		FinishedAt:  st.FinishedAt,
	}
}
