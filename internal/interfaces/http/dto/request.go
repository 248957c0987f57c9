// Package dto 提供 HTTP 层数据传输对象
package dto

import (
	"github.com/gin-gonic/gin"

	"media-search-api/internal/domain/repository"
)

// BindSortOrder 解析 order 参数，缺省为倒序
func BindSortOrder(c *gin.Context) repository.SortOrder {
	return repository.ParseSortOrder(c.Query("order"))
}
