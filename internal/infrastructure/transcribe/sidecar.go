package transcribe

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"media-search-api/internal/domain/entity"
	"media-search-api/pkg/logger"
)

// Sidecar 优先读取与媒体同名的 .srt 字幕，不存在时回退到 next
type Sidecar struct {
	next Transcriber
}

// NewSidecar 创建旁挂字幕转写器，next 可为 nil
func NewSidecar(next Transcriber) *Sidecar {
	return &Sidecar{next: next}
}

var _ Transcriber = (*Sidecar)(nil)

// Transcribe 读取旁挂字幕或委托下游
func (s *Sidecar) Transcribe(ctx context.Context, mediaPath string) ([]entity.TranscriptSegment, error) {
	srtPath := strings.TrimSuffix(mediaPath, filepath.Ext(mediaPath)) + ".srt"

	f, err := os.Open(srtPath)
	if err == nil {
		defer f.Close()
		segments, err := ParseSRT(f)
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", srtPath, err)
		}
		logger.Debug(ctx, "using sidecar subtitles", "srt", srtPath, "segments", len(segments))
		return segments, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to open %s: %w", srtPath, err)
	}

	if s.next == nil {
		return []entity.TranscriptSegment{}, nil
	}
	return s.next.Transcribe(ctx, mediaPath)
}

// ParseSRT 解析 SubRip 字幕
func ParseSRT(r io.Reader) ([]entity.TranscriptSegment, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	segments := make([]entity.TranscriptSegment, 0)
	var (
		cur     *entity.TranscriptSegment
		lines   []string
		lineNum int
	)

	flush := func() {
		if cur != nil {
			cur.Text = strings.TrimSpace(strings.Join(lines, " "))
			if cur.Text != "" {
				segments = append(segments, *cur)
			}
		}
		cur = nil
		lines = lines[:0]
	}

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(strings.TrimPrefix(scanner.Text(), "\ufeff"))

		if line == "" {
			flush()
			continue
		}
		if cur == nil {
			if strings.Contains(line, "-->") {
				start, end, err := parseCueTiming(line)
				if err != nil {
					return nil, fmt.Errorf("line %d: %w", lineNum, err)
				}
				cur = &entity.TranscriptSegment{Start: start, End: end}
			}
			// 序号行
			continue
		}
		lines = append(lines, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	flush()
	return segments, nil
}

func parseCueTiming(line string) (float64, float64, error) {
	parts := strings.SplitN(line, "-->", 2)
	start, err := parseSRTTime(strings.TrimSpace(parts[0]))
	if err != nil {
		return 0, 0, err
	}
	// 结束时间后可能跟定位参数
	endField := strings.Fields(strings.TrimSpace(parts[1]))
	if len(endField) == 0 {
		return 0, 0, fmt.Errorf("missing cue end time")
	}
	end, err := parseSRTTime(endField[0])
	if err != nil {
		return 0, 0, err
	}
	return start, end, nil
}

// parseSRTTime 解析 HH:MM:SS,mmm（也接受 . 作为毫秒分隔符）
func parseSRTTime(s string) (float64, error) {
	s = strings.Replace(s, ",", ".", 1)
	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return 0, fmt.Errorf("invalid timestamp %q", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, fmt.Errorf("invalid timestamp %q: %w", s, err)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, fmt.Errorf("invalid timestamp %q: %w", s, err)
	}
	sec, err := strconv.ParseFloat(parts[2], 64)
	if err != nil {
		return 0, fmt.Errorf("invalid timestamp %q: %w", s, err)
	}
	return float64(h*3600+m*60) + sec, nil
}
