package milvus

import (
	"strconv"

	"github.com/milvus-io/milvus-sdk-go/v2/entity"
)

const (
	// CollectionKeyframes 关键帧向量集合
	CollectionKeyframes = "keyframe_vectors"

	fieldID     = "id"
	fieldVector = "vector"
)

// KeyframeVectorsSchema 关键帧向量 Collection Schema
// id 为关键帧记录 ID，与 flat 后端的槽位 ID 语义一致
func KeyframeVectorsSchema(name string, dim int) *entity.Schema {
	return &entity.Schema{
		CollectionName: name,
		Description:    "Keyframe image embeddings for visual search",
		Fields: []*entity.Field{
			{
				Name:       fieldID,
				DataType:   entity.FieldTypeInt64,
				PrimaryKey: true,
				AutoID:     false,
			},
			{
				Name:     fieldVector,
				DataType: entity.FieldTypeFloatVector,
				TypeParams: map[string]string{
					"dim": strconv.Itoa(dim),
				},
			},
		},
	}
}
