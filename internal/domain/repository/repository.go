// Package repository 定义数据访问层接口
package repository

import (
	"context"
	"strings"
)

// TxKey 事务上下文键类型
type TxKey struct{}

// Transactor 事务管理接口
type Transactor interface {
	// WithTransaction 在事务中执行操作
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// SortOrder 排序方向
type SortOrder string

const (
	SortOrderAsc  SortOrder = "ASC"
	SortOrderDesc SortOrder = "DESC"
)

// ParseSortOrder 解析排序方向，非法值回退为降序
func ParseSortOrder(s string) SortOrder {
	if strings.EqualFold(s, string(SortOrderAsc)) {
		return SortOrderAsc
	}
	return SortOrderDesc
}
