// Package embedding 提供 Embedding 服务客户端
package embedding

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/cloudwego/eino/callbacks"
	"github.com/cloudwego/eino/components"
	"github.com/cloudwego/eino/components/embedding"

	"media-search-api/internal/config"
	"media-search-api/pkg/logger"
)

// Client 图文同空间（CLIP 类）Embedding 服务客户端
type Client struct {
	endpoint   string
	model      string
	dim        int
	batchSize  int
	httpClient *http.Client
}

type textRequest struct {
	Texts []string `json:"texts"`
	Model string   `json:"model,omitempty"`
}

type imageRequest struct {
	Images []string `json:"images"`
	Model  string   `json:"model,omitempty"`
}

// 无法解码的图片在服务端返回 null
type embedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

func NewClient(cfg *config.EmbeddingConfig) *Client {
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 32
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		endpoint:  strings.TrimRight(cfg.Endpoint, "/"),
		model:     cfg.Model,
		dim:       cfg.Dimension,
		batchSize: batchSize,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

var _ embedding.Embedder = (*Client)(nil)

// Dimension 向量维度
func (c *Client) Dimension() int {
	return c.dim
}

// GetType 组件类型，用于回调中的 RunInfo
func (c *Client) GetType() string {
	return "CLIP"
}

// IsCallbacksEnabled 由组件自身触发回调
func (c *Client) IsCallbacksEnabled() bool {
	return true
}

// EmbedStrings 文本编码（实现 eino embedding.Embedder）
func (c *Client) EmbedStrings(ctx context.Context, texts []string, _ ...embedding.Option) (_ [][]float64, err error) {
	conf := &embedding.Config{Model: c.model}

	ctx = callbacks.EnsureRunInfo(ctx, c.GetType(), components.ComponentOfEmbedding)
	ctx = callbacks.OnStart(ctx, &embedding.CallbackInput{Texts: texts, Config: conf})
	defer func() {
		if err != nil {
			callbacks.OnError(ctx, err)
		}
	}()

	vecs, err := c.EmbedTexts(ctx, texts)
	if err != nil {
		return nil, err
	}
	out := make([][]float64, len(vecs))
	for i, v := range vecs {
		f64 := make([]float64, len(v))
		for j, x := range v {
			f64[j] = float64(x)
		}
		out[i] = f64
	}

	callbacks.OnEnd(ctx, &embedding.CallbackOutput{Embeddings: out, Config: conf})
	return out, nil
}

// EmbedTexts 文本编码
func (c *Client) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	all := make([][]float32, 0, len(texts))
	for i := 0; i < len(texts); i += c.batchSize {
		end := min(i+c.batchSize, len(texts))

		var resp embedResponse
		if err := c.post(ctx, "/embed/text", &textRequest{Texts: texts[i:end], Model: c.model}, &resp); err != nil {
			return nil, err
		}
		if len(resp.Embeddings) != end-i {
			return nil, fmt.Errorf("embedding service returned %d vectors for %d texts", len(resp.Embeddings), end-i)
		}
		for _, v := range resp.Embeddings {
			if v == nil {
				return nil, fmt.Errorf("embedding service returned an empty text vector")
			}
			all = append(all, v)
		}
	}
	return all, nil
}

// EmbedImages 图片编码，结果与输入一一对应；无法读取或解码的图片以零向量占位
func (c *Client) EmbedImages(ctx context.Context, paths []string) ([][]float32, error) {
	out := make([][]float32, len(paths))
	if len(paths) == 0 {
		return out, nil
	}

	for i := 0; i < len(paths); i += c.batchSize {
		end := min(i+c.batchSize, len(paths))

		// 只发送可读取的图片，记录其在批内的位置
		payload := make([]string, 0, end-i)
		positions := make([]int, 0, end-i)
		for j := i; j < end; j++ {
			data, err := os.ReadFile(paths[j])
			if err != nil {
				logger.Warn(ctx, "unreadable keyframe image, using zero placeholder", "path", paths[j], "error", err.Error())
				continue
			}
			payload = append(payload, base64.StdEncoding.EncodeToString(data))
			positions = append(positions, j)
		}

		if len(payload) > 0 {
			var resp embedResponse
			if err := c.post(ctx, "/embed/image", &imageRequest{Images: payload, Model: c.model}, &resp); err != nil {
				return nil, err
			}
			if len(resp.Embeddings) != len(payload) {
				return nil, fmt.Errorf("embedding service returned %d vectors for %d images", len(resp.Embeddings), len(payload))
			}
			for k, pos := range positions {
				out[pos] = resp.Embeddings[k]
			}
		}
	}

	dim := c.dim
	for _, v := range out {
		if v != nil {
			dim = len(v)
			break
		}
	}
	for i := range out {
		if out[i] == nil {
			out[i] = make([]float32, dim)
		}
	}
	return out, nil
}

func (c *Client) post(ctx context.Context, path string, body any, out any) error {
	if c.endpoint == "" {
		return fmt.Errorf("embedding endpoint is empty")
	}

	reqBody, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal embed request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+path, bytes.NewReader(reqBody))
	if err != nil {
		return fmt.Errorf("failed to create embed request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("embedding request failed: %w", err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(httpResp.Body, 512))
		return fmt.Errorf("embedding request failed: status=%d body=%s", httpResp.StatusCode, strings.TrimSpace(string(msg)))
	}

	if err := json.NewDecoder(httpResp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode embed response: %w", err)
	}
	return nil
}

// Ping 检查服务可达
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.EmbedTexts(ctx, []string{"ping"})
	return err
}
