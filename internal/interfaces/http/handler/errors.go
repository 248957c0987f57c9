package handler

import (
	"github.com/gin-gonic/gin"

	"media-search-api/internal/interfaces/http/dto"
	apperrors "media-search-api/pkg/errors"
	"media-search-api/pkg/logger"
)

// respondError AppError 按其状态码返回，其余记录日志后返回 500
func respondError(c *gin.Context, err error, msg string) {
	if apperrors.IsAppError(err) {
		dto.AppError(c, apperrors.AsAppError(err))
		return
	}
	logger.Error(c.Request.Context(), msg, err)
	dto.InternalError(c, msg)
}
