package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"media-search-api/internal/application/ingest"
	"media-search-api/internal/wire"
)

func newIngestCmd() *cobra.Command {
	var (
		workers   int
		interval  float64
		maxFrames int
	)

	cmd := &cobra.Command{
		Use:   "ingest FOLDER",
		Short: "Ingest every supported media file under FOLDER",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withToolkit(cmd.Context(), func(ctx context.Context, tk *wire.Toolkit) error {
				svc := ingest.NewService(tk.Pipeline, tk.Status, nil)
				summary, runErr := svc.Run(ctx, ingest.Request{
					Folder:           args[0],
					Workers:          workers,
					KeyframeInterval: interval,
					MaxFrames:        maxFrames,
				})
				if summary != nil {
					if err := render(summary, func() { printRunSummary(summary) }); err != nil {
						return err
					}
				}
				return runErr
			})
		},
	}

	cmd.Flags().IntVarP(&workers, "workers", "w", 0, "Concurrent items (0 uses config)")
	cmd.Flags().Float64Var(&interval, "interval", 0, "Seconds between keyframes (0 uses config)")
	cmd.Flags().IntVar(&maxFrames, "max-frames", 0, "Max keyframes per item (0 uses config)")
	return cmd
}

func printRunSummary(s *ingest.RunSummary) {
	for _, it := range s.Items {
		status := "ok"
		if it.Skipped {
			status = "skipped"
		}
		fmt.Printf("%-8s %s  segments=%d keyframes=%d vectors=%d (%.1fs)\n",
			status, it.Path, it.Segments, it.Keyframes, it.Vectors, it.TotalSeconds)
		for _, w := range it.Warnings {
			fmt.Printf("         warning: %s\n", w)
		}
	}
	fmt.Println()
	printKV("folder", s.Folder)
	printKV("items", s.ItemCount)
	printKV("segments", s.TotalSegments)
	printKV("keyframes", s.TotalKeyframes)
	printKV("vectors", s.TotalVectors)
	printKV("elapsed", fmt.Sprintf("%.1fs", s.ElapsedSeconds))
	printKV("index saved", s.Saved)
	if s.SaveError != "" {
		printKV("save error", s.SaveError)
	}
	if s.Message != "" {
		printKV("message", s.Message)
	}
}
