package main

import (
	"context"
	"log/slog"

	deepfake "github.com/okieraised/go-deepfake-pipeline"
	"github.com/okieraised/go-deepfake-pipeline/config"
	"github.com/okieraised/go-deepfake-pipeline/server"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the analysis HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context())
	},
}

func init() {
	serveCmd.Flags().String("address", ":5000", "HTTP listen address")
	_ = v.BindPFlag("server.address", serveCmd.Flags().Lookup("address"))
	rootCmd.AddCommand(serveCmd)
}

func newAnalyzer(lc fx.Lifecycle, settings *config.Settings, logger *slog.Logger) (server.Analyzer, error) {
	pipeline, err := buildPipeline(settings, logger)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			closePipeline(pipeline, logger)
			return nil
		},
	})
	return pipeline, nil
}

// runServe blocks until ctx is cancelled, then stops the server gracefully.
func runServe(ctx context.Context) error {
	app := fx.New(
		fx.Supply(settings, logger),
		fx.Provide(newAnalyzer),
		server.Module,
		fx.WithLogger(func(logger *slog.Logger) fxevent.Logger {
			return &fxevent.SlogLogger{Logger: logger.With("component", "fx")}
		}),
	)

	if err := app.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()

	stopCtx, cancel := context.WithTimeout(context.Background(), app.StopTimeout())
	defer cancel()
	return app.Stop(stopCtx)
}

var _ server.Analyzer = (*deepfake.DeepfakePipeline)(nil)
