package entity

// KeyframeRecord 关键帧记录
// VectorSlot 在嵌入阶段写入一次，为空的记录不参与视觉检索
type KeyframeRecord struct {
	ID            int64   `json:"id" gorm:"primaryKey;autoIncrement"`
	MediaID       int64   `json:"media_id" gorm:"index;not null"`
	Timestamp     float64 `json:"timestamp" gorm:"not null"`
	ThumbnailPath string  `json:"thumbnail_path" gorm:"type:text;not null"`
	VectorSlot    *int64  `json:"vector_slot,omitempty" gorm:"index"`
}

// TableName 指定表名
func (KeyframeRecord) TableName() string {
	return "keyframes"
}

// HasVector 是否已写入向量索引
func (k *KeyframeRecord) HasVector() bool {
	return k.VectorSlot != nil
}
