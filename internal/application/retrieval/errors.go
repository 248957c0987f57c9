package retrieval

import "errors"

var (
	// ErrVectorDisabled 表示视觉检索未配置（Embedder 或索引不可用）。
	ErrVectorDisabled = errors.New("visual retrieval is disabled")

	// ErrEmptyQuery 查询为空
	ErrEmptyQuery = errors.New("query is empty")
)
