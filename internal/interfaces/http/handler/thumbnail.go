package handler

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"

	"media-search-api/internal/interfaces/http/dto"
)

// ThumbnailHandler 本地缩略图文件服务
type ThumbnailHandler struct {
	dir string
}

// NewThumbnailHandler 创建缩略图处理器
func NewThumbnailHandler(dir string) *ThumbnailHandler {
	return &ThumbnailHandler{dir: dir}
}

// Serve 返回缩略图目录内的文件，拒绝越界路径
// @Summary 缩略图
// @Tags Media
// @Produce image/jpeg
// @Param path path string true "相对路径"
// @Success 200 {file} file
// @Failure 404 {object} dto.ErrorResponse
// @Router /v1/thumbnails/{path} [get]
func (h *ThumbnailHandler) Serve(c *gin.Context) {
	if h.dir == "" {
		dto.NotFound(c, "thumbnail not found")
		return
	}

	rel := filepath.Clean("/" + strings.TrimPrefix(c.Param("path"), "/"))
	full := filepath.Join(h.dir, filepath.FromSlash(rel))

	info, err := os.Stat(full)
	if err != nil || info.IsDir() {
		dto.NotFound(c, "thumbnail not found")
		return
	}

	c.Header("Cache-Control", "public, max-age=86400")
	c.File(full)
}
