package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/okieraised/go-deepfake-pipeline/config"
	"github.com/okieraised/go-deepfake-pipeline/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
)

var defaultCORSConfig = middleware.CORSConfig{
	AllowOrigins: []string{"*"},
	AllowMethods: []string{
		http.MethodGet,
		http.MethodHead,
		http.MethodPost,
		http.MethodOptions,
	},
	AllowHeaders: []string{
		"Accept",
		"Content-Type",
		"X-Requested-With",
	},
	MaxAge: 86400,
}

func NewEchoServer(settings *config.Settings) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(defaultCORSConfig))
	e.Use(middleware.BodyLimit(strconv.FormatInt(settings.Upload.MaxFileSize, 10)))
	return e
}

func NewRegistry() *prometheus.Registry {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return registry
}

func NewUploadFileHandler(settings *config.Settings) (*FileHandler, error) {
	return NewFileHandler(settings.Upload.Folder, settings.Upload.AllowedExtensions)
}

// RegisterRoutes mounts the analysis API under /api and the metrics endpoint.
func RegisterRoutes(e *echo.Echo, h *Handler, registry *prometheus.Registry) {
	h.RegisterRoutes(e.Group("/api"))
	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(registry, promhttp.HandlerOpts{
		ErrorHandling: promhttp.HTTPErrorOnError,
	})))
}

func RecordModelState(m *metrics.AnalysisMetrics, analyzer Analyzer) {
	m.SetModelAvailable(analyzer.ModelKind() != config.ModelKindUnavailable)
}

func StartServer(lc fx.Lifecycle, e *echo.Echo, settings *config.Settings, logger *slog.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				logger.Info("http server listening", "address", settings.Server.Address)
				if err := e.Start(settings.Server.Address); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Error("http server stopped", "error", err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return e.Shutdown(ctx)
		},
	})
}

// Module expects *config.Settings, *slog.Logger and an Analyzer to be provided.
var Module = fx.Options(
	fx.Provide(
		NewEchoServer,
		NewRegistry,
		metrics.NewAnalysisMetrics,
		NewUploadFileHandler,
		NewHandler,
	),
	fx.Invoke(RegisterRoutes, RecordModelState, StartServer),
)
