// Package entity 定义领域实体
package entity

import (
	"path/filepath"
	"time"
)

// MediaStatus 媒体处理状态
type MediaStatus string

const (
	MediaStatusPending    MediaStatus = "pending"
	MediaStatusProcessing MediaStatus = "processing"
	MediaStatusComplete   MediaStatus = "complete"
)

// MediaItem 媒体文件实体，Path 全局唯一
type MediaItem struct {
	ID         int64       `json:"id" gorm:"primaryKey;autoIncrement"`
	Path       string      `json:"path" gorm:"type:text;uniqueIndex;not null"`
	Name       string      `json:"name" gorm:"type:text;not null"`
	Duration   float64     `json:"duration"`
	Width      int         `json:"width"`
	Height     int         `json:"height"`
	FPS        float64     `json:"fps" gorm:"column:fps"`
	IngestedAt time.Time   `json:"ingested_at" gorm:"autoCreateTime"`
	Status     MediaStatus `json:"status" gorm:"type:varchar(20);default:'pending'"`
}

// TableName 指定表名
func (MediaItem) TableName() string {
	return "media_items"
}

// NewMediaItem 创建待处理的媒体条目
func NewMediaItem(path string) *MediaItem {
	return &MediaItem{
		Path:       path,
		Name:       filepath.Base(path),
		IngestedAt: time.Now(),
		Status:     MediaStatusPending,
	}
}

// ApplyProbe 写入探测得到的元数据
func (m *MediaItem) ApplyProbe(duration float64, width, height int, fps float64) {
	m.Duration = duration
	m.Width = width
	m.Height = height
	m.FPS = fps
}

// IsComplete 是否已处理完成
func (m *MediaItem) IsComplete() bool {
	return m.Status == MediaStatusComplete
}
