package retrieval

// 结果来源
const (
	SourceVisual     = "visual"
	SourceTranscript = "transcript"
)

// SearchInput 混合检索输入。权重为 nil 时取默认值。
type SearchInput struct {
	Query        string
	TopK         int
	VisualWeight *float64
	TextWeight   *float64
}

// Result 检索结果
type Result struct {
	MediaPath  string  `json:"media_path" yaml:"media_path"`
	MediaName  string  `json:"media_name" yaml:"media_name"`
	Timestamp  float64 `json:"timestamp" yaml:"timestamp"`
	Score      float64 `json:"score" yaml:"score"`
	Thumbnail  string  `json:"thumbnail,omitempty" yaml:"thumbnail,omitempty"`
	Transcript string  `json:"transcript,omitempty" yaml:"transcript,omitempty"`
	Source     string  `json:"source" yaml:"source"`
}

// SearchOutput 检索输出
type SearchOutput struct {
	Query   string   `json:"query" yaml:"query"`
	TopK    int      `json:"top_k" yaml:"top_k"`
	Results []Result `json:"results" yaml:"results"`

	// Degraded 记录失败并被跳过的分支
	Degraded []string `json:"degraded,omitempty" yaml:"degraded,omitempty"`

	VisualCandidates int   `json:"visual_candidates" yaml:"visual_candidates"`
	TextCandidates   int   `json:"text_candidates" yaml:"text_candidates"`
	TookMs           int64 `json:"took_ms" yaml:"took_ms"`
}

// Defaults 检索默认参数
type Defaults struct {
	TopK         int
	MaxTopK      int
	VisualWeight float64
	TextWeight   float64
}

func (d Defaults) normalized() Defaults {
	if d.TopK <= 0 {
		d.TopK = 10
	}
	if d.MaxTopK <= 0 {
		d.MaxTopK = 100
	}
	if d.TopK > d.MaxTopK {
		d.TopK = d.MaxTopK
	}
	if d.VisualWeight == 0 && d.TextWeight == 0 {
		d.VisualWeight, d.TextWeight = 0.6, 0.4
	}
	return d
}
