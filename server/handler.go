package server

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/okieraised/go-deepfake-pipeline/config"
	"github.com/okieraised/go-deepfake-pipeline/metrics"
)

// Analyzer is the part of the pipeline the HTTP boundary depends on.
type Analyzer interface {
	Analyze(path string, hint config.MediaType) (*config.VerdictReport, error)
	ModelKind() config.ModelKind
}

type HealthResponse struct {
	Status    string           `json:"status"`
	Message   string           `json:"message"`
	ModelKind config.ModelKind `json:"modelKind"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

type Handler struct {
	analyzer Analyzer
	files    *FileHandler
	metrics  *metrics.AnalysisMetrics
	logger   *slog.Logger
}

func NewHandler(analyzer Analyzer, files *FileHandler, analysisMetrics *metrics.AnalysisMetrics, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		analyzer: analyzer,
		files:    files,
		metrics:  analysisMetrics,
		logger:   logger.With("component", "http"),
	}
}

func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.GET("/health", h.Health)
	g.POST("/analyze", h.Analyze)
}

func (h *Handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{
		Status:    "healthy",
		Message:   "Deepfake Detection API is running",
		ModelKind: h.analyzer.ModelKind(),
	})
}

// Analyze stores the uploaded "file" field, analyses it and always deletes it afterwards.
func (h *Handler) Analyze(c echo.Context) error {
	header, err := c.FormFile("file")
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "No file provided"})
	}
	if header.Filename == "" {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "No file selected"})
	}
	if !h.files.Allowed(header.Filename) {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "File type not allowed"})
	}

	path, err := h.files.Save(header)
	if err != nil {
		h.logger.Error("failed to save upload", "error", err, "filename", header.Filename)
		return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Failed to save file"})
	}
	defer func() {
		if err := h.files.Delete(path); err != nil {
			h.logger.Warn("failed to delete upload", "error", err, "path", path)
		}
	}()

	mediaType, _ := config.MediaTypeFromPath(header.Filename)
	start := time.Now()
	report, err := h.analyzer.Analyze(path, mediaType)
	if h.metrics != nil {
		h.metrics.RecordAnalysis(mediaType, time.Since(start), report, err)
	}
	if err != nil {
		return h.failure(c, err)
	}
	return c.JSON(http.StatusOK, report)
}

func (h *Handler) failure(c echo.Context, err error) error {
	var failure *config.AnalysisFailure
	if !errors.As(err, &failure) {
		h.logger.Error("analysis failed", "error", err)
		return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Internal error during analysis"})
	}

	if failure.ClientError() {
		h.logger.Info("analysis rejected", "media_type", failure.MediaType, "error", err)
		return c.JSON(http.StatusBadRequest, failure)
	}
	h.logger.Error("analysis failed", "media_type", failure.MediaType, "error", err)
	return c.JSON(http.StatusInternalServerError, failure)
}
