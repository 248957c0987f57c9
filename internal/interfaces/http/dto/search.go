package dto

import (
	"path/filepath"
	"strings"

	"media-search-api/internal/application/retrieval"
)

// ThumbnailRoute 本地缩略图路由前缀
const ThumbnailRoute = "/v1/thumbnails/"

// 检索模式
const (
	SearchModeHybrid = "hybrid"
	SearchModeVisual = "visual"
)

// SearchQuery 检索查询参数
type SearchQuery struct {
	Q            string   `form:"q" binding:"required,max=1000"`
	TopK         int      `form:"top_k" binding:"omitempty,min=1"`
	VisualWeight *float64 `form:"visual_weight" binding:"omitempty,min=0"`
	TextWeight   *float64 `form:"text_weight" binding:"omitempty,min=0"`
	Mode         string   `form:"mode" binding:"omitempty,oneof=hybrid visual"`
}

// ToInput 转换为检索输入
func (q *SearchQuery) ToInput() retrieval.SearchInput {
	return retrieval.SearchInput{
		Query:        q.Q,
		TopK:         q.TopK,
		VisualWeight: q.VisualWeight,
		TextWeight:   q.TextWeight,
	}
}

// SearchResultResponse 单条检索结果
type SearchResultResponse struct {
	MediaPath    string  `json:"media_path"`
	MediaName    string  `json:"media_name"`
	Timestamp    float64 `json:"timestamp"`
	Score        float64 `json:"score"`
	Source       string  `json:"source"`
	ThumbnailURL string  `json:"thumbnail_url,omitempty"`
	Transcript   string  `json:"transcript,omitempty"`
}

// SearchResponse 检索响应
type SearchResponse struct {
	Query            string                  `json:"query"`
	Mode             string                  `json:"mode"`
	TopK             int                     `json:"top_k"`
	Results          []*SearchResultResponse `json:"results"`
	Degraded         []string                `json:"degraded,omitempty"`
	VisualCandidates int                     `json:"visual_candidates"`
	TextCandidates   int                     `json:"text_candidates"`
	TookMs           int64                   `json:"took_ms"`
}

// ToSearchResponse 将检索输出转换为响应 DTO，本地缩略图改写为可访问的路由
func ToSearchResponse(out *retrieval.SearchOutput, mode, thumbnailDir string) *SearchResponse {
	resp := &SearchResponse{
		Query:            out.Query,
		Mode:             mode,
		TopK:             out.TopK,
		Results:          make([]*SearchResultResponse, 0, len(out.Results)),
		Degraded:         out.Degraded,
		VisualCandidates: out.VisualCandidates,
		TextCandidates:   out.TextCandidates,
		TookMs:           out.TookMs,
	}
	for _, r := range out.Results {
		resp.Results = append(resp.Results, &SearchResultResponse{
			MediaPath:    r.MediaPath,
			MediaName:    r.MediaName,
			Timestamp:    r.Timestamp,
			Score:        r.Score,
			Source:       r.Source,
			ThumbnailURL: ThumbnailURL(r.Thumbnail, thumbnailDir),
			Transcript:   r.Transcript,
		})
	}
	return resp
}

// ThumbnailURL 对象存储 URL 原样返回；缩略图目录内的本地文件映射到 ThumbnailRoute，目录外的返回空
func ThumbnailURL(path, thumbnailDir string) string {
	if path == "" {
		return ""
	}
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	if thumbnailDir == "" {
		return ""
	}
	rel, err := filepath.Rel(thumbnailDir, path)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return ""
	}
	return ThumbnailRoute + filepath.ToSlash(rel)
}
