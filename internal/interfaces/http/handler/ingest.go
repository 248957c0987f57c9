package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"media-search-api/internal/application/ingest"
	"media-search-api/internal/domain/entity"
	"media-search-api/internal/interfaces/http/dto"
)

// IngestService 摄取服务
type IngestService interface {
	Submit(ctx context.Context, req ingest.Request) (*entity.IngestStatus, error)
	Status(ctx context.Context) (*entity.IngestStatus, error)
}

// IngestHandler 摄取处理器
type IngestHandler struct {
	svc IngestService
}

// NewIngestHandler 创建摄取处理器
func NewIngestHandler(svc IngestService) *IngestHandler {
	return &IngestHandler{svc: svc}
}

// Submit 提交摄取任务
// @Summary 提交摄取任务
// @Description 异步摄取目录下的媒体文件，已有任务运行时返回 409
// @Tags Ingest
// @Accept json
// @Produce json
// @Param body body dto.IngestRequest true "摄取请求"
// @Success 202 {object} dto.Response[dto.IngestStatusResponse]
// @Failure 400 {object} dto.ErrorResponse
// @Failure 404 {object} dto.ErrorResponse "目录不存在"
// @Failure 409 {object} dto.ErrorResponse "已有任务运行"
// @Router /v1/ingest [post]
func (h *IngestHandler) Submit(c *gin.Context) {
	var req dto.IngestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, err.Error())
		return
	}

	st, err := h.svc.Submit(c.Request.Context(), req.ToRequest(c.GetString("request_id")))
	if err != nil {
		respondError(c, err, "failed to submit ingest job")
		return
	}
	dto.Accepted(c, dto.ToIngestStatusResponse(st))
}

// Status 查询摄取进度
// @Summary 查询摄取进度
// @Tags Ingest
// @Produce json
// @Success 200 {object} dto.Response[dto.IngestStatusResponse]
// @Router /v1/ingest/status [get]
func (h *IngestHandler) Status(c *gin.Context) {
	st, err := h.svc.Status(c.Request.Context())
	if err != nil {
		respondError(c, err, "failed to get ingest status")
		return
	}
	dto.Success(c, dto.ToIngestStatusResponse(st))
}
