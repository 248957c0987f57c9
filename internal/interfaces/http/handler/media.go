package handler

import (
	"context"
	"errors"

	"github.com/gin-gonic/gin"

	"media-search-api/internal/domain/repository"
	"media-search-api/internal/infrastructure/vectorindex"
	"media-search-api/internal/interfaces/http/dto"
	apperrors "media-search-api/pkg/errors"
	"media-search-api/pkg/logger"
)

// MediaHandler 媒体库与索引处理器
type MediaHandler struct {
	repo   repository.MediaRepository
	index  *vectorindex.Manager
	status repository.IngestStatusStore
}

// NewMediaHandler 创建媒体处理器；index 为 nil 时索引相关接口返回 503
// status 非 nil 时，摄取运行期间拒绝重载与清空索引
func NewMediaHandler(repo repository.MediaRepository, index *vectorindex.Manager, status repository.IngestStatusStore) *MediaHandler {
	return &MediaHandler{repo: repo, index: index, status: status}
}

// ListMedia 媒体列表
// @Summary 媒体列表
// @Tags Media
// @Produce json
// @Param order query string false "asc | desc（按入库时间）"
// @Success 200 {object} dto.Response[dto.MediaListResponse]
// @Router /v1/media [get]
func (h *MediaHandler) ListMedia(c *gin.Context) {
	items, err := h.repo.ListMedia(c.Request.Context(), dto.BindSortOrder(c))
	if err != nil {
		respondError(c, err, "failed to list media")
		return
	}
	dto.Success(c, dto.ToMediaListResponse(items))
}

// Stats 库存统计
// @Summary 库存统计
// @Tags Media
// @Produce json
// @Success 200 {object} dto.Response[dto.StatsResponse]
// @Router /v1/stats [get]
func (h *MediaHandler) Stats(c *gin.Context) {
	stats, err := h.repo.Stats(c.Request.Context())
	if err != nil {
		respondError(c, err, "failed to collect stats")
		return
	}

	resp := &dto.StatsResponse{MediaStats: *stats}
	if h.index != nil {
		resp.Index = dto.ToIndexResponse(h.index.Info())
	}
	dto.Success(c, resp)
}

// IndexInfo 向量索引状态（装载后返回实际大小）
// @Summary 向量索引状态
// @Tags Index
// @Produce json
// @Success 200 {object} dto.Response[dto.IndexResponse]
// @Failure 503 {object} dto.ErrorResponse
// @Router /v1/index [get]
func (h *MediaHandler) IndexInfo(c *gin.Context) {
	if h.index == nil {
		dto.ServiceUnavailable(c, "vector index disabled")
		return
	}
	if _, err := h.index.Get(c.Request.Context()); err != nil {
		respondError(c, indexError(err), "failed to load vector index")
		return
	}
	dto.Success(c, dto.ToIndexResponse(h.index.Info()))
}

// ReloadIndex 从持久化存储重新装载索引
// @Summary 重新装载向量索引
// @Tags Index
// @Produce json
// @Success 200 {object} dto.Response[dto.IndexResponse]
// @Failure 409 {object} dto.ErrorResponse
// @Failure 500 {object} dto.ErrorResponse
// @Failure 503 {object} dto.ErrorResponse
// @Router /v1/index/reload [post]
func (h *MediaHandler) ReloadIndex(c *gin.Context) {
	if h.index == nil {
		dto.ServiceUnavailable(c, "vector index disabled")
		return
	}
	ctx := c.Request.Context()
	if err := h.ensureIdle(ctx); err != nil {
		respondError(c, err, "vector index is being written")
		return
	}
	if _, err := h.index.Reload(ctx); err != nil {
		respondError(c, indexError(err), "failed to reload vector index")
		return
	}
	info := h.index.Info()
	logger.Info(ctx, "vector index reloaded via api", "backend", info.Backend, "size", info.Size)
	dto.Success(c, dto.ToIndexResponse(info))
}

// ClearIndex 丢弃常驻索引，持久化数据保持不变，下次访问时重新装载
// @Summary 清空常驻向量索引
// @Tags Index
// @Produce json
// @Success 200 {object} dto.Response[dto.IndexResponse]
// @Failure 409 {object} dto.ErrorResponse
// @Failure 503 {object} dto.ErrorResponse
// @Router /v1/index [delete]
func (h *MediaHandler) ClearIndex(c *gin.Context) {
	if h.index == nil {
		dto.ServiceUnavailable(c, "vector index disabled")
		return
	}
	if err := h.ensureIdle(c.Request.Context()); err != nil {
		respondError(c, err, "vector index is being written")
		return
	}
	h.index.Clear()
	logger.Info(c.Request.Context(), "vector index cleared via api", "backend", h.index.Backend().Name())
	dto.Success(c, dto.ToIndexResponse(h.index.Info()))
}

// ensureIdle 摄取运行中返回 CodeIngestBusy
func (h *MediaHandler) ensureIdle(ctx context.Context) error {
	if h.status == nil {
		return nil
	}
	st, err := h.status.Get(ctx)
	if err != nil {
		return apperrors.Wrap(err, apperrors.CodeInternalError, "failed to read ingest status")
	}
	if st != nil && st.Running {
		return apperrors.New(apperrors.CodeIngestBusy, "ingestion in progress, index is locked").WithDetail(st.Folder)
	}
	return nil
}

func indexError(err error) error {
	if errors.Is(err, vectorindex.ErrIntegrity) {
		return apperrors.Wrap(err, apperrors.CodeIndexIntegrity, "vector index integrity violation").WithDetail(err.Error())
	}
	return apperrors.Wrap(err, apperrors.CodeVectorDBError, "vector index unavailable").WithDetail(err.Error())
}
