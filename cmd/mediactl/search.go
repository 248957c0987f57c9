package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"media-search-api/internal/application/retrieval"
	"media-search-api/internal/wire"
)

func newSearchCmd() *cobra.Command {
	var (
		topK         int
		visualOnly   bool
		visualWeight float64
		textWeight   float64
	)

	cmd := &cobra.Command{
		Use:   "search QUERY",
		Short: "Run a hybrid visual and transcript search",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in := retrieval.SearchInput{Query: strings.Join(args, " "), TopK: topK}
			if cmd.Flags().Changed("visual-weight") {
				in.VisualWeight = &visualWeight
			}
			if cmd.Flags().Changed("text-weight") {
				in.TextWeight = &textWeight
			}

			return withToolkit(cmd.Context(), func(ctx context.Context, tk *wire.Toolkit) error {
				var (
					out *retrieval.SearchOutput
					err error
				)
				if visualOnly {
					out, err = tk.Engine.SearchVisualOnly(ctx, in)
				} else {
					out, err = tk.Engine.Search(ctx, in)
				}
				if err != nil {
					return err
				}
				return render(out, func() { printSearchOutput(out) })
			})
		},
	}

	cmd.Flags().IntVarP(&topK, "top-k", "k", 0, "Number of results (0 uses config)")
	cmd.Flags().BoolVar(&visualOnly, "visual-only", false, "Skip transcript matching")
	cmd.Flags().Float64Var(&visualWeight, "visual-weight", 0, "Override visual weight")
	cmd.Flags().Float64Var(&textWeight, "text-weight", 0, "Override transcript weight")
	return cmd
}

func printSearchOutput(out *retrieval.SearchOutput) {
	if len(out.Results) == 0 {
		fmt.Println("no results")
	}
	for i, r := range out.Results {
		fmt.Printf("%2d. %.4f  %-10s %s @ %.1fs\n", i+1, r.Score, r.Source, r.MediaName, r.Timestamp)
		if r.Transcript != "" {
			fmt.Printf("    %q\n", r.Transcript)
		}
		if r.Thumbnail != "" {
			fmt.Printf("    %s\n", r.Thumbnail)
		}
	}
	for _, branch := range out.Degraded {
		fmt.Printf("warning: %s branch unavailable\n", branch)
	}
}
