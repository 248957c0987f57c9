package media

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"media-search-api/pkg/logger"
)

// 缩放并补边到 224x224
const thumbnailFilter = "scale=224:224:force_original_aspect_ratio=decrease,pad=224:224:(ow-iw)/2:(oh-ih)/2"

// Frame 抽取出的关键帧
type Frame struct {
	Timestamp float64
	Path      string
}

// KeyframeExtractor 按固定间隔抽帧
type KeyframeExtractor struct {
	ffmpeg string
	prober *Prober
}

// NewKeyframeExtractor 创建抽帧器
func NewKeyframeExtractor(ffmpeg string, prober *Prober) *KeyframeExtractor {
	if ffmpeg == "" {
		ffmpeg = "ffmpeg"
	}
	return &KeyframeExtractor{ffmpeg: ffmpeg, prober: prober}
}

// Timestamps 生成抽帧时间点：t=0 起按 interval 递增，直到 t>=duration 或达到 maxFrames
func Timestamps(duration, interval float64, maxFrames int) []float64 {
	if interval <= 0 || maxFrames <= 0 {
		return nil
	}
	out := make([]float64, 0)
	for i := 0; len(out) < maxFrames; i++ {
		t := float64(i) * interval
		if t >= duration {
			break
		}
		out = append(out, t)
	}
	return out
}

// Extract 抽取关键帧缩略图，只返回实际写出的帧
func (e *KeyframeExtractor) Extract(ctx context.Context, path, outDir string, interval float64, maxFrames int) ([]Frame, error) {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create thumbnail dir: %w", err)
	}

	info, err := e.prober.Probe(ctx, path)
	if err != nil {
		return nil, err
	}

	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	timestamps := Timestamps(info.Duration, interval, maxFrames)

	frames := make([]Frame, 0, len(timestamps))
	for i, ts := range timestamps {
		if err := ctx.Err(); err != nil {
			return frames, err
		}

		outPath := filepath.Join(outDir, fmt.Sprintf("%s_%04d.jpg", stem, i))
		cmd := exec.CommandContext(ctx, e.ffmpeg,
			"-y",
			"-ss", strconv.FormatFloat(ts, 'f', -1, 64),
			"-i", path,
			"-vframes", "1",
			"-vf", thumbnailFilter,
			"-q:v", "5",
			outPath,
		)
		var stderr bytes.Buffer
		cmd.Stderr = &stderr

		if err := cmd.Run(); err != nil {
			logger.Debug(ctx, "keyframe extraction failed",
				"timestamp", ts,
				"error", strings.TrimSpace(stderr.String()),
			)
			continue
		}
		if _, err := os.Stat(outPath); err != nil {
			continue
		}
		frames = append(frames, Frame{Timestamp: ts, Path: outPath})
	}

	logger.Debug(ctx, "keyframes extracted", "requested", len(timestamps), "written", len(frames))
	return frames, nil
}
