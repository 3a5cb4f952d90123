package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/okieraised/go-deepfake-pipeline/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Version is the application version.
const Version = "0.1.0"

var (
	v          = viper.New()
	configFile string

	// settings and logger are loaded once in PersistentPreRunE and shared by subcommands.
	settings *config.Settings
	logger   *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:           "deepfake",
	Short:         "Face-based deepfake detection for images and videos",
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		settings, err = config.LoadSettings(v, configFile)
		if err != nil {
			return err
		}
		logger = settings.NewLogger(os.Stderr)
		slog.SetDefault(logger)
		return nil
	},
}

func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&configFile, "config", "c", "", "Path to a YAML config file (default: ./config.yaml or ./config/config.yaml)")
	flags.String("log-level", "info", "Log level (debug, info, warn, error)")
	flags.String("log-format", "text", "Log format (text or json)")
	flags.String("triton-url", "127.0.0.1:8001", "Triton gRPC endpoint serving the face detector")
	flags.String("model-path", "", "Local .onnx or .tflite classifier; empty serves the classifier from Triton")
	flags.String("backend", string(config.BackendAuto), "Classifier backend (auto, triton, onnx, tflite)")
	flags.Int("frame-skip", config.DefaultVideoParams.FrameSkip, "Analyse every n-th video frame")

	for key, flag := range map[string]string{
		"log.level":             "log-level",
		"log.format":            "log-format",
		"triton.url":            "triton-url",
		"classifier.model_path": "model-path",
		"classifier.backend":    "backend",
		"video.frame_skip":      "frame-skip",
	} {
		_ = v.BindPFlag(key, flags.Lookup(flag))
	}
}
