package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"media-search-api/internal/infrastructure/media"
	"media-search-api/internal/wire"
)

type doctorCheck struct {
	Name     string `json:"name" yaml:"name"`
	OK       bool   `json:"ok" yaml:"ok"`
	Required bool   `json:"required" yaml:"required"`
	Detail   string `json:"detail,omitempty" yaml:"detail,omitempty"`
}

type doctorReport struct {
	OK     bool          `json:"ok" yaml:"ok"`
	Checks []doctorCheck `json:"checks" yaml:"checks"`
}

func newDoctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check external tools, storage, vector index and embedding service",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withToolkit(cmd.Context(), func(ctx context.Context, tk *wire.Toolkit) error {
				report := runDoctor(ctx, tk)
				err := render(report, func() {
					for _, c := range report.Checks {
						line := fmt.Sprintf("[%s] %s", checkMark(c.OK), c.Name)
						if c.Detail != "" {
							line += ": " + c.Detail
						}
						fmt.Println(line)
					}
				})
				if err != nil {
					return err
				}
				if !report.OK {
					return fmt.Errorf("required checks failed")
				}
				return nil
			})
		},
	}
}

func runDoctor(ctx context.Context, tk *wire.Toolkit) doctorReport {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	report := doctorReport{OK: true}
	add := func(name string, required bool, detail string, err error) {
		c := doctorCheck{Name: name, OK: err == nil, Required: required, Detail: detail}
		if err != nil {
			c.Detail = err.Error()
			if required {
				report.OK = false
			}
		}
		report.Checks = append(report.Checks, c)
	}

	ffmpeg, err := media.LookPath(tk.Config.Ingest.FFmpegPath)
	add("ffmpeg", true, ffmpeg, err)
	ffprobe, err := media.LookPath(tk.Config.Ingest.FFprobePath)
	add("ffprobe", true, ffprobe, err)

	add("database", true, tk.Config.Database.Driver, tk.Store.Health.HealthCheck(ctx))

	idx, err := tk.Index.Get(ctx)
	detail := tk.Index.Backend().Location()
	if err == nil {
		detail = fmt.Sprintf("%s (%d vectors, dim %d)", detail, idx.Size(), idx.Dimension())
	}
	add("vector_index", true, detail, err)

	add("embedding", false, tk.Config.Embedding.Endpoint, tk.Clip.Ping(ctx))
	return report
}
