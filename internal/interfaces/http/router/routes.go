// Package router 提供 HTTP 路由配置
package router

import (
	"github.com/gin-gonic/gin"
)

// RegisterV1Routes 注册 v1 版本路由
func RegisterV1Routes(v1 *gin.RouterGroup, h *Handlers) {
	// 检索
	v1.GET("/search", h.Search.Search)

	// 摄取
	ingest := v1.Group("/ingest")
	{
		ingest.POST("", h.Ingest.Submit)
		ingest.GET("/status", h.Ingest.Status)
	}

	// 媒体库
	v1.GET("/media", h.Media.ListMedia)
	v1.GET("/stats", h.Media.Stats)
	v1.GET("/thumbnails/*path", h.Thumbnail.Serve)

	// 向量索引
	index := v1.Group("/index")
	{
		index.GET("", h.Media.IndexInfo)
		index.POST("/reload", h.Media.ReloadIndex)
		index.DELETE("", h.Media.ClearIndex)
	}
}
