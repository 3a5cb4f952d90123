package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	deepfake "github.com/okieraised/go-deepfake-pipeline"
	"github.com/okieraised/go-deepfake-pipeline/config"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

var mediaTypeFlag string

var analyzeCmd = &cobra.Command{
	Use:   "analyze <path>",
	Short: "Analyse one image or video and print the verdict as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runAnalyze(args[0], config.MediaType(mediaTypeFlag))
	},
}

func init() {
	analyzeCmd.Flags().StringVarP(&mediaTypeFlag, "type", "t", "", "Media type (image or video); inferred from the extension when empty")
	rootCmd.AddCommand(analyzeCmd)
}

func runAnalyze(path string, hint config.MediaType) error {
	if hint == "" {
		hint, _ = config.MediaTypeFromPath(path)
	}

	var bar *progressbar.ProgressBar
	opts := make([]deepfake.PipelineOption, 0, 1)
	if hint == config.MediaTypeVideo {
		opts = append(opts, deepfake.WithFrameProgress(func(sampled, total int) {
			if bar == nil {
				bar = progressbar.NewOptions(total,
					progressbar.OptionSetDescription("Analysing frames"),
					progressbar.OptionSetWriter(os.Stderr),
					progressbar.OptionShowCount(),
				)
			}
			_ = bar.Set(sampled)
		}))
	}

	pipeline, err := buildPipeline(settings, logger, opts...)
	if err != nil {
		return err
	}
	defer closePipeline(pipeline, logger)

	report, err := pipeline.Analyze(path, hint)
	if bar != nil {
		_ = bar.Finish()
		fmt.Fprintln(os.Stderr)
	}

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	if err != nil {
		var failure *config.AnalysisFailure
		if errors.As(err, &failure) {
			_ = encoder.Encode(failure)
		}
		return err
	}
	return encoder.Encode(report)
}
