package dto

import (
	"time"

	"media-search-api/internal/domain/entity"
	"media-search-api/internal/domain/repository"
	"media-search-api/internal/infrastructure/vectorindex"
)

// MediaResponse 媒体条目
type MediaResponse struct {
	ID         int64     `json:"id"`
	Path       string    `json:"path"`
	Name       string    `json:"name"`
	Duration   float64   `json:"duration"`
	Width      int       `json:"width"`
	Height     int       `json:"height"`
	FPS        float64   `json:"fps"`
	Status     string    `json:"status"`
	IngestedAt time.Time `json:"ingested_at"`
}

// MediaListResponse 媒体列表
type MediaListResponse struct {
	Items []*MediaResponse `json:"items"`
	Total int              `json:"total"`
}

// ToMediaListResponse 将媒体实体列表转换为响应 DTO
func ToMediaListResponse(items []*entity.MediaItem) *MediaListResponse {
	resp := &MediaListResponse{Items: make([]*MediaResponse, 0, len(items)), Total: len(items)}
	for _, m := range items {
		resp.Items = append(resp.Items, &MediaResponse{
			ID:         m.ID,
			Path:       m.Path,
			Name:       m.Name,
			Duration:   m.Duration,
			Width:      m.Width,
			Height:     m.Height,
			FPS:        m.FPS,
			Status:     string(m.Status),
			IngestedAt: m.IngestedAt,
		})
	}
	return resp
}

// IndexResponse 向量索引状态
type IndexResponse struct {
	Backend   string `json:"backend"`
	Location  string `json:"location"`
	Loaded    bool   `json:"loaded"`
	Size      int    `json:"size"`
	Dimension int    `json:"dimension"`
}

// ToIndexResponse 转换索引状态
func ToIndexResponse(info vectorindex.Info) *IndexResponse {
	return &IndexResponse{
		Backend:   info.Backend,
		Location:  info.Location,
		Loaded:    info.Loaded,
		Size:      info.Size,
		Dimension: info.Dimension,
	}
}

// StatsResponse 库存统计
type StatsResponse struct {
	repository.MediaStats
	Index *IndexResponse `json:"index,omitempty"`
}
