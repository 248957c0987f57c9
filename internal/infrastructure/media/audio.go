package media

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// AudioExtractor 抽取 16kHz 单声道 wav
type AudioExtractor struct {
	ffmpeg string
}

// NewAudioExtractor 创建音频抽取器
func NewAudioExtractor(ffmpeg string) *AudioExtractor {
	if ffmpeg == "" {
		ffmpeg = "ffmpeg"
	}
	return &AudioExtractor{ffmpeg: ffmpeg}
}

// Extract 抽取音频到临时文件，调用方负责删除返回的路径
func (a *AudioExtractor) Extract(ctx context.Context, videoPath string) (string, error) {
	f, err := os.CreateTemp("", "media-audio-*.wav")
	if err != nil {
		return "", fmt.Errorf("failed to create temp audio file: %w", err)
	}
	out := f.Name()
	_ = f.Close()

	cmd := exec.CommandContext(ctx, a.ffmpeg,
		"-y", "-i", videoPath,
		"-ar", "16000",
		"-ac", "1",
		"-vn",
		out,
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		_ = os.Remove(out)
		return "", fmt.Errorf("ffmpeg audio extraction failed: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	return out, nil
}

// LookPath 检查外部工具是否可用
func LookPath(binary string) (string, error) {
	return exec.LookPath(binary)
}
