// Package main 媒体检索命令行工具
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"media-search-api/internal/config"
	einoobs "media-search-api/internal/observability/eino"
	"media-search-api/internal/wire"
	"media-search-api/pkg/logger"
)

var (
	version = "dev"

	configDir    string
	outputFormat string
)

func main() {
	_ = godotenv.Load()

	rootCmd := &cobra.Command{
		Use:           "mediactl",
		Short:         "Hybrid visual and transcript search over a local media library",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			switch outputFormat {
			case outputText, outputJSON, outputYAML:
				return nil
			default:
				return fmt.Errorf("unsupported output format %q", outputFormat)
			}
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configDir, "config", "c", "", "Config directory (defaults to ./configs)")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", outputText, "Output format: text, json or yaml")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version info",
		RunE: func(cmd *cobra.Command, args []string) error {
			return render(map[string]string{"version": version}, func() {
				fmt.Printf("mediactl %s\n", version)
			})
		},
	})
	rootCmd.AddCommand(newDoctorCmd())
	rootCmd.AddCommand(newIngestCmd())
	rootCmd.AddCommand(newSearchCmd())
	rootCmd.AddCommand(newStatsCmd())
	rootCmd.AddCommand(newIndexCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig 读取配置并初始化日志（CLI 默认输出到 stderr 的 text 格式）
func loadConfig() (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if configDir != "" {
		cfg, err = config.LoadFrom(configDir)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logger.InitWithWriter(os.Stderr, cfg.Observability.Logging.Level, "text")
	einoobs.Init()
	return cfg, nil
}

// withToolkit 组装依赖后执行 fn，结束时释放资源
func withToolkit(ctx context.Context, fn func(ctx context.Context, tk *wire.Toolkit) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	tk, cleanup, err := wire.InitializeToolkit(ctx, cfg)
	if err != nil {
		return fmt.Errorf("initialize: %w", err)
	}
	defer cleanup()
	return fn(ctx, tk)
}
