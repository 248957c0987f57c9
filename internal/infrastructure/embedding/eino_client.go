package embedding

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino-ext/components/embedding/openai"
	"github.com/cloudwego/eino/components/embedding"

	"media-search-api/internal/config"
)

// NewEinoEmbedder 创建基于 Eino 的文本 Embedder（OpenAI 兼容接口）
func NewEinoEmbedder(ctx context.Context, cfg *config.EmbeddingConfig) (embedding.Embedder, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("embedding endpoint is required")
	}

	embedder, err := openai.NewEmbedder(ctx, &openai.EmbeddingConfig{
		APIKey:  cfg.APIKey,
		BaseURL: cfg.Endpoint,
		Model:   cfg.Model,
		Timeout: cfg.Timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create eino embedder: %w", err)
	}

	return embedder, nil
}

// NewTextEmbedder 按 provider 选择查询文本的 Embedder
// clip 使用与关键帧同空间的 HTTP 服务；openai 使用 OpenAI 兼容接口
func NewTextEmbedder(ctx context.Context, cfg *config.EmbeddingConfig, clip *Client) (embedding.Embedder, error) {
	switch cfg.Provider {
	case "", "clip":
		return clip, nil
	case "openai":
		return NewEinoEmbedder(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.Provider)
	}
}
