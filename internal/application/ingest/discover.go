package ingest

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// SupportedExtensions 可摄取的媒体扩展名
var SupportedExtensions = []string{".mp4", ".mkv", ".webm", ".avi", ".mov"}

// IsSupported 扩展名是否可摄取（大小写不敏感）
func IsSupported(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range SupportedExtensions {
		if ext == e {
			return true
		}
	}
	return false
}

// Discover 枚举目录顶层的媒体文件，不进入子目录，按路径字典序返回
func Discover(folder string) ([]string, error) {
	entries, err := os.ReadDir(folder)
	if err != nil {
		return nil, err
	}
	paths := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.Type().IsRegular() || !IsSupported(e.Name()) {
			continue
		}
		paths = append(paths, filepath.Join(folder, e.Name()))
	}
	sort.Strings(paths)
	return paths, nil
}
