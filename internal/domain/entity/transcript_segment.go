package entity

import "strings"

// TranscriptSegment 转写片段
type TranscriptSegment struct {
	ID      int64   `json:"id" gorm:"primaryKey;autoIncrement"`
	MediaID int64   `json:"media_id" gorm:"index;not null"`
	Start   float64 `json:"start" gorm:"column:start_time;index"`
	End     float64 `json:"end" gorm:"column:end_time"`
	Text    string  `json:"text" gorm:"type:text;not null"`
}

// TableName 指定表名
func (TranscriptSegment) TableName() string {
	return "transcript_segments"
}

// NewTranscriptSegment 创建转写片段，End 不早于 Start
func NewTranscriptSegment(start, end float64, text string) TranscriptSegment {
	seg := TranscriptSegment{Start: start, End: end, Text: strings.TrimSpace(text)}
	seg.Normalize()
	return seg
}

// Normalize 修正时间区间并去除首尾空白
func (s *TranscriptSegment) Normalize() {
	if s.Start < 0 {
		s.Start = 0
	}
	if s.End < s.Start {
		s.End = s.Start
	}
	s.Text = strings.TrimSpace(s.Text)
}
