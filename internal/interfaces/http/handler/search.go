package handler

import (
	"context"
	"errors"

	"github.com/gin-gonic/gin"

	"media-search-api/internal/application/retrieval"
	"media-search-api/internal/interfaces/http/dto"
)

// Searcher 检索引擎
type Searcher interface {
	Search(ctx context.Context, in retrieval.SearchInput) (*retrieval.SearchOutput, error)
	SearchVisualOnly(ctx context.Context, in retrieval.SearchInput) (*retrieval.SearchOutput, error)
}

// SearchHandler 检索处理器
type SearchHandler struct {
	engine       Searcher
	thumbnailDir string
}

// NewSearchHandler 创建检索处理器
func NewSearchHandler(engine Searcher, thumbnailDir string) *SearchHandler {
	return &SearchHandler{engine: engine, thumbnailDir: thumbnailDir}
}

// Search 混合检索
// @Summary 混合检索
// @Description 关键帧视觉相似度与转写文本匹配融合，单个分支失败时降级而非报错
// @Tags Search
// @Produce json
// @Param q query string true "查询文本"
// @Param top_k query int false "返回条数"
// @Param visual_weight query number false "视觉权重"
// @Param text_weight query number false "文本权重"
// @Param mode query string false "hybrid | visual"
// @Success 200 {object} dto.Response[dto.SearchResponse]
// @Failure 400 {object} dto.ErrorResponse
// @Router /v1/search [get]
func (h *SearchHandler) Search(c *gin.Context) {
	var q dto.SearchQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		dto.BadRequest(c, err.Error())
		return
	}

	ctx := c.Request.Context()
	mode := dto.SearchModeHybrid
	search := h.engine.Search
	if q.Mode == dto.SearchModeVisual {
		mode = dto.SearchModeVisual
		search = h.engine.SearchVisualOnly
	}

	out, err := search(ctx, q.ToInput())
	if err != nil {
		if errors.Is(err, retrieval.ErrEmptyQuery) {
			dto.BadRequest(c, err.Error())
			return
		}
		respondError(c, err, "search failed")
		return
	}

	dto.Success(c, dto.ToSearchResponse(out, mode, h.thumbnailDir))
}
