// Package transcribe 提供语音转写实现：OpenAI 兼容 Whisper 接口与 SRT 旁挂字幕
package transcribe

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"

	"media-search-api/internal/config"
	"media-search-api/internal/domain/entity"
)

// Transcriber 转写器
type Transcriber interface {
	Transcribe(ctx context.Context, mediaPath string) ([]entity.TranscriptSegment, error)
}

// AudioExtractor 音频抽取
type AudioExtractor interface {
	Extract(ctx context.Context, videoPath string) (string, error)
}

// Whisper 调用 OpenAI 兼容的 /audio/transcriptions 接口
type Whisper struct {
	client   *openai.Client
	audio    AudioExtractor
	model    string
	language string
}

// NewWhisper 创建 Whisper 转写器
func NewWhisper(cfg *config.TranscriptionConfig, audio AudioExtractor) *Whisper {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	clientCfg.HTTPClient = &http.Client{Timeout: timeout}

	model := cfg.Model
	if model == "" {
		model = openai.Whisper1
	}

	return &Whisper{
		client:   openai.NewClientWithConfig(clientCfg),
		audio:    audio,
		model:    model,
		language: cfg.Language,
	}
}

var _ Transcriber = (*Whisper)(nil)

// Transcribe 抽取音频后转写，返回带时间戳的片段
func (w *Whisper) Transcribe(ctx context.Context, mediaPath string) ([]entity.TranscriptSegment, error) {
	audioPath, err := w.audio.Extract(ctx, mediaPath)
	if err != nil {
		return nil, err
	}
	defer os.Remove(audioPath)

	resp, err := w.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    w.model,
		FilePath: audioPath,
		Language: w.language,
		Format:   openai.AudioResponseFormatVerboseJSON,
	})
	if err != nil {
		return nil, fmt.Errorf("transcription request failed: %w", err)
	}

	segments := make([]entity.TranscriptSegment, 0, len(resp.Segments))
	for _, s := range resp.Segments {
		text := strings.TrimSpace(s.Text)
		if text == "" {
			continue
		}
		segments = append(segments, entity.TranscriptSegment{Start: s.Start, End: s.End, Text: text})
	}

	// 部分兼容实现只返回整段文本
	if len(segments) == 0 {
		if text := strings.TrimSpace(resp.Text); text != "" {
			segments = append(segments, entity.TranscriptSegment{Start: 0, End: resp.Duration, Text: text})
		}
	}
	return segments, nil
}
