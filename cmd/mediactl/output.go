package main

import (
	"encoding/json"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

const (
	outputText = "text"
	outputJSON = "json"
	outputYAML = "yaml"
)

// render 按 --output 输出结构化结果，text 模式调用 text 回调
func render(v any, text func()) error {
	switch outputFormat {
	case outputJSON:
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case outputYAML:
		enc := yaml.NewEncoder(os.Stdout)
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(v)
	default:
		text()
		return nil
	}
}

func checkMark(ok bool) string {
	if ok {
		return "ok"
	}
	return "FAIL"
}

func printKV(key string, value any) {
	fmt.Printf("%-18s %v\n", key+":", value)
}
