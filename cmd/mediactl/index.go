package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"media-search-api/internal/domain/repository"
	"media-search-api/internal/infrastructure/vectorindex"
	"media-search-api/internal/wire"
)

type statsReport struct {
	repository.MediaStats `yaml:",inline"`
	Index                 vectorindex.Info `json:"index" yaml:"index"`
}

func newStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show library and index counters",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withToolkit(cmd.Context(), func(ctx context.Context, tk *wire.Toolkit) error {
				stats, err := tk.Store.Repo.Stats(ctx)
				if err != nil {
					return err
				}
				if _, err := tk.Index.Get(ctx); err != nil {
					return err
				}
				report := statsReport{MediaStats: *stats, Index: tk.Index.Info()}
				return render(report, func() {
					printKV("media", report.MediaCount)
					printKV("complete", report.CompleteCount)
					printKV("segments", report.SegmentCount)
					printKV("keyframes", report.KeyframeCount)
					printKV("embedded frames", report.EmbeddedFrames)
					printIndexInfo(report.Index)
				})
			})
		},
	}
}

func newIndexCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "index",
		Short: "Inspect or maintain the vector index",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "info",
		Short: "Load the index and print its state",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withToolkit(cmd.Context(), func(ctx context.Context, tk *wire.Toolkit) error {
				if _, err := tk.Index.Get(ctx); err != nil {
					return err
				}
				info := tk.Index.Info()
				return render(info, func() { printIndexInfo(info) })
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "reload",
		Short: "Reload the index from its backing store and verify it",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withToolkit(cmd.Context(), func(ctx context.Context, tk *wire.Toolkit) error {
				if _, err := tk.Index.Reload(ctx); err != nil {
					return err
				}
				info := tk.Index.Info()
				return render(info, func() { printIndexInfo(info) })
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Drop the resident index and load it again from the backing store",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withToolkit(cmd.Context(), func(ctx context.Context, tk *wire.Toolkit) error {
				if _, err := tk.Index.Get(ctx); err != nil {
					return err
				}
				before := tk.Index.Info()
				tk.Index.Clear()
				cleared := tk.Index.Info()
				if _, err := tk.Index.Get(ctx); err != nil {
					return err
				}
				after := tk.Index.Info()
				report := map[string]vectorindex.Info{"before": before, "cleared": cleared, "after": after}
				return render(report, func() {
					fmt.Printf("cleared resident index (%d vectors), reloaded %d vectors from %s\n",
						before.Size, after.Size, after.Location)
				})
			})
		},
	})

	return cmd
}

func printIndexInfo(info vectorindex.Info) {
	printKV("index backend", info.Backend)
	printKV("index location", info.Location)
	printKV("index loaded", info.Loaded)
	printKV("index size", info.Size)
	printKV("index dimension", info.Dimension)
}
