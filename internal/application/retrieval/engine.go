// Package retrieval 实现视觉向量与转写文本的混合检索
package retrieval

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/cloudwego/eino/components/embedding"

	"media-search-api/internal/domain/repository"
	"media-search-api/internal/infrastructure/vectorindex"
	"media-search-api/pkg/logger"
	"media-search-api/pkg/metrics"
)

// QueryCache 查询向量缓存
type QueryCache interface {
	GetOrEmbed(ctx context.Context, text string, embed func(ctx context.Context) ([]float32, error)) ([]float32, error)
}

type Engine struct {
	embedder embedding.Embedder
	index    *vectorindex.Manager
	repo     repository.MediaRepository
	cache    QueryCache

	defaults Defaults
}

// NewEngine 创建检索引擎；embedder/index 为 nil 时仅做文本检索，cache 可为 nil
func NewEngine(embedder embedding.Embedder, index *vectorindex.Manager, repo repository.MediaRepository, cache QueryCache, defaults Defaults) *Engine {
	return &Engine{
		embedder: embedder,
		index:    index,
		repo:     repo,
		cache:    cache,
		defaults: defaults.normalized(),
	}
}

// VisualEnabled 视觉检索是否可用
func (e *Engine) VisualEnabled() bool {
	return e != nil && e.embedder != nil && e.index != nil
}

// Search 混合检索：视觉候选在前，按 (媒体, 时间戳保留一位小数) 去重后按分数降序截断。
// 任一分支失败只记入 Degraded，不返回错误。
func (e *Engine) Search(ctx context.Context, in SearchInput) (*SearchOutput, error) {
	start := time.Now()
	topK := e.clampTopK(in.TopK)
	query := strings.TrimSpace(in.Query)
	if query == "" {
		return nil, ErrEmptyQuery
	}

	vw, tw := e.defaults.VisualWeight, e.defaults.TextWeight
	if in.VisualWeight != nil {
		vw = *in.VisualWeight
	}
	if in.TextWeight != nil {
		tw = *in.TextWeight
	}

	out := &SearchOutput{Query: query, TopK: topK, Results: []Result{}}
	seen := make(map[dedupeKey]struct{})
	merged := make([]Result, 0, 4*topK)

	visual, err := e.visualCandidates(ctx, query, 2*topK, vw)
	e.recordBranch(ctx, out, "visual", err)
	out.VisualCandidates = len(visual)
	for _, r := range visual {
		if markSeen(seen, r) {
			merged = append(merged, r)
		}
	}

	lexical, err := e.lexicalCandidates(ctx, query, 2*topK, tw)
	e.recordBranch(ctx, out, "transcript", err)
	out.TextCandidates = len(lexical)
	for _, r := range lexical {
		if markSeen(seen, r) {
			merged = append(merged, r)
		}
	}

	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Score > merged[j].Score
	})
	if len(merged) > topK {
		merged = merged[:topK]
	}
	out.Results = merged

	elapsed := time.Since(start)
	out.TookMs = elapsed.Milliseconds()
	metrics.RetrievalDuration.WithLabelValues("hybrid").Observe(elapsed.Seconds())
	return out, nil
}

// SearchVisualOnly 仅视觉检索，分数不加权，取 topK 个近邻
func (e *Engine) SearchVisualOnly(ctx context.Context, in SearchInput) (*SearchOutput, error) {
	start := time.Now()
	topK := e.clampTopK(in.TopK)
	query := strings.TrimSpace(in.Query)
	if query == "" {
		return nil, ErrEmptyQuery
	}

	out := &SearchOutput{Query: query, TopK: topK, Results: []Result{}}
	visual, err := e.visualCandidates(ctx, query, topK, 1)
	e.recordBranch(ctx, out, "visual", err)
	out.VisualCandidates = len(visual)
	out.Results = visual

	elapsed := time.Since(start)
	out.TookMs = elapsed.Milliseconds()
	metrics.RetrievalDuration.WithLabelValues("visual").Observe(elapsed.Seconds())
	return out, nil
}

func (e *Engine) clampTopK(k int) int {
	if k <= 0 {
		k = e.defaults.TopK
	}
	if k > e.defaults.MaxTopK {
		k = e.defaults.MaxTopK
	}
	return k
}

func (e *Engine) recordBranch(ctx context.Context, out *SearchOutput, branch string, err error) {
	if err == nil {
		metrics.RetrievalBranchTotal.WithLabelValues(branch, "ok").Inc()
		return
	}
	metrics.RetrievalBranchTotal.WithLabelValues(branch, "failed").Inc()
	logger.Warn(ctx, "retrieval branch failed", "branch", branch, "error", err.Error())
	out.Degraded = append(out.Degraded, fmt.Sprintf("%s: %s", branch, err.Error()))
}

// visualCandidates 文本编码后检索 k 个近邻，解析不到关键帧的命中直接跳过
func (e *Engine) visualCandidates(ctx context.Context, query string, k int, weight float64) ([]Result, error) {
	if !e.VisualEnabled() {
		return nil, ErrVectorDisabled
	}

	idx, err := e.index.Get(ctx)
	if err != nil {
		return nil, err
	}
	if idx.Size() == 0 {
		return []Result{}, nil
	}

	vec, err := e.embedQuery(ctx, query)
	if err != nil {
		return nil, err
	}

	hits, err := idx.Search(ctx, vec, k)
	if err != nil {
		return nil, err
	}

	results := make([]Result, 0, len(hits))
	for _, h := range hits {
		kf, err := e.repo.GetKeyframeByVectorSlot(ctx, h.ID)
		if err != nil {
			logger.Warn(ctx, "failed to resolve keyframe", "slot", h.ID, "error", err.Error())
			continue
		}
		if kf == nil {
			continue
		}
		results = append(results, Result{
			MediaPath: kf.MediaPath,
			MediaName: kf.MediaName,
			Timestamp: kf.Timestamp,
			Score:     float64(h.Score) * weight,
			Thumbnail: kf.ThumbnailPath,
			Source:    SourceVisual,
		})
	}
	return results, nil
}

// lexicalCandidates 子串匹配转写，分数为查询与片段的长度比
func (e *Engine) lexicalCandidates(ctx context.Context, query string, limit int, weight float64) ([]Result, error) {
	hits, err := e.repo.SearchTranscripts(ctx, query, limit)
	if err != nil {
		return nil, err
	}

	results := make([]Result, 0, len(hits))
	for _, h := range hits {
		results = append(results, Result{
			MediaPath:  h.MediaPath,
			MediaName:  h.MediaName,
			Timestamp:  h.Start,
			Score:      LexicalScore(query, h.Text) * weight,
			Transcript: h.Text,
			Source:     SourceTranscript,
		})
	}
	return results, nil
}

// LexicalScore min(1, len(query)/max(len(text),1))，长度按字符计
func LexicalScore(query, text string) float64 {
	q := utf8.RuneCountInString(query)
	t := max(utf8.RuneCountInString(text), 1)
	return math.Min(1, float64(q)/float64(t))
}

func (e *Engine) embedQuery(ctx context.Context, query string) ([]float32, error) {
	embed := func(ctx context.Context) ([]float32, error) {
		v64, err := e.embedder.EmbedStrings(ctx, []string{query})
		if err != nil {
			return nil, err
		}
		if len(v64) == 0 {
			return nil, fmt.Errorf("empty embedding result")
		}
		vec := make([]float32, len(v64[0]))
		for i, x := range v64[0] {
			vec[i] = float32(x)
		}
		return vec, nil
	}

	if e.cache != nil {
		return e.cache.GetOrEmbed(ctx, query, embed)
	}
	return embed(ctx)
}

type dedupeKey struct {
	media string
	ts    float64
}

// markSeen 首次出现返回 true
func markSeen(seen map[dedupeKey]struct{}, r Result) bool {
	key := dedupeKey{media: r.MediaPath, ts: roundTenth(r.Timestamp)}
	if _, ok := seen[key]; ok {
		return false
	}
	seen[key] = struct{}{}
	return true
}

// roundTenth 保留一位小数（银行家舍入）
func roundTenth(v float64) float64 {
	return math.RoundToEven(v*10) / 10
}
