package entity

import "time"

// IngestStatus 摄取运行状态（同一时刻最多一个运行）
type IngestStatus struct {
	JobID       string     `json:"job_id,omitempty"`
	Running     bool       `json:"running"`
	Folder      string     `json:"folder,omitempty"`
	Progress    int        `json:"progress"`
	Total       int        `json:"total"`
	CurrentItem string     `json:"current_item,omitempty"`
	Message     string     `json:"message,omitempty"`
	Error       string     `json:"error,omitempty"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	FinishedAt  *time.Time `json:"finished_at,omitempty"`
}

// NewIdleIngestStatus 空闲状态
func NewIdleIngestStatus() *IngestStatus {
	return &IngestStatus{Message: "idle"}
}
