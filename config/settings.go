package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const EnvPrefix = "DEEPFAKE"

type Settings struct {
	Log        LogSettings        `mapstructure:"log"`
	Server     ServerSettings     `mapstructure:"server"`
	Upload     UploadSettings     `mapstructure:"upload"`
	Triton     TritonSettings     `mapstructure:"triton"`
	Detection  DetectionSettings  `mapstructure:"detection"`
	Classifier ClassifierSettings `mapstructure:"classifier"`
	Video      VideoSettings      `mapstructure:"video"`
}

type LogSettings struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // text or json
}

type ServerSettings struct {
	Address string `mapstructure:"address"`
}

type UploadSettings struct {
	Folder            string   `mapstructure:"folder"`
	MaxFileSize       int64    `mapstructure:"max_file_size"`
	AllowedExtensions []string `mapstructure:"allowed_extensions"`
}

type TritonSettings struct {
	URL string `mapstructure:"url"`
}

type DetectionSettings struct {
	ModelName           string        `mapstructure:"model_name"`
	ConfidenceThreshold float64       `mapstructure:"confidence_threshold"`
	Margin              int           `mapstructure:"margin"`
	Timeout             time.Duration `mapstructure:"timeout"`
}

type ClassifierSettings struct {
	ModelName       string        `mapstructure:"model_name"`
	ModelPath       string        `mapstructure:"model_path"`
	Backend         string        `mapstructure:"backend"`
	Kind            string        `mapstructure:"kind"`
	ImgSize         int           `mapstructure:"img_size"`
	NumThreads      int           `mapstructure:"num_threads"`
	Timeout         time.Duration `mapstructure:"timeout"`
	OnnxLibraryPath string        `mapstructure:"onnx_library_path"`
}

type VideoSettings struct {
	FrameSkip int `mapstructure:"frame_skip"`
}

// SetDefaults registers every known key so that environment overrides apply on Unmarshal.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	v.SetDefault("server.address", ":5000")

	v.SetDefault("upload.folder", "uploads")
	v.SetDefault("upload.max_file_size", int64(50*1024*1024))
	v.SetDefault("upload.allowed_extensions", []string{"jpg", "jpeg", "png", "bmp", "mp4", "avi", "mov"})

	v.SetDefault("triton.url", "127.0.0.1:8001")

	v.SetDefault("detection.model_name", DefaultFaceDetectionParams.ModelName)
	v.SetDefault("detection.confidence_threshold", float64(DefaultFaceDetectionParams.ConfidenceThreshold))
	v.SetDefault("detection.margin", DefaultFaceDetectionParams.Margin)
	v.SetDefault("detection.timeout", DefaultFaceDetectionParams.Timeout)

	v.SetDefault("classifier.model_name", DefaultClassifierParams.ModelName)
	v.SetDefault("classifier.model_path", "")
	v.SetDefault("classifier.backend", string(DefaultClassifierParams.Backend))
	v.SetDefault("classifier.kind", string(DefaultClassifierParams.Kind))
	v.SetDefault("classifier.img_size", DefaultClassifierParams.ImgSize)
	v.SetDefault("classifier.num_threads", DefaultClassifierParams.NumThreads)
	v.SetDefault("classifier.timeout", DefaultClassifierParams.Timeout)
	v.SetDefault("classifier.onnx_library_path", "")

	v.SetDefault("video.frame_skip", DefaultVideoParams.FrameSkip)
}

// LoadSettings reads settings from defaults, an optional YAML file and DEEPFAKE_* variables.
// Flags bound to v before the call take precedence over all three.
func LoadSettings(v *viper.Viper, configFile string) (*Settings, error) {
	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	settings := &Settings{}
	if err := v.Unmarshal(settings); err != nil {
		return nil, fmt.Errorf("error unmarshaling config into struct: %w", err)
	}

	if err := settings.Validate(); err != nil {
		return nil, fmt.Errorf("error validating settings: %w", err)
	}
	return settings, nil
}

func (s *Settings) Validate() error {
	var errs []error
	if s.Video.FrameSkip <= 0 {
		errs = append(errs, fmt.Errorf("video.frame_skip must be positive, got %d", s.Video.FrameSkip))
	}
	if s.Classifier.ImgSize <= 0 {
		errs = append(errs, fmt.Errorf("classifier.img_size must be positive, got %d", s.Classifier.ImgSize))
	}
	if s.Detection.ConfidenceThreshold < 0 || s.Detection.ConfidenceThreshold > 1 {
		errs = append(errs, fmt.Errorf("detection.confidence_threshold must be within [0, 1], got %v", s.Detection.ConfidenceThreshold))
	}
	if s.Detection.Margin < 0 {
		errs = append(errs, fmt.Errorf("detection.margin must not be negative, got %d", s.Detection.Margin))
	}
	if s.Upload.MaxFileSize <= 0 {
		errs = append(errs, fmt.Errorf("upload.max_file_size must be positive, got %d", s.Upload.MaxFileSize))
	}
	switch Backend(s.Classifier.Backend) {
	case BackendAuto, BackendTriton, BackendONNX, BackendTFLite:
	default:
		errs = append(errs, fmt.Errorf("unknown classifier.backend %q", s.Classifier.Backend))
	}
	switch ModelKind(s.Classifier.Kind) {
	case ModelKindAuto, ModelKindTwoClassSoftmax, ModelKindSigmoidScalar:
	default:
		errs = append(errs, fmt.Errorf("unknown classifier.kind %q", s.Classifier.Kind))
	}
	return errors.Join(errs...)
}

func (s *Settings) FaceDetectionParams() *FaceDetectionParams {
	return NewFaceDetectionParams(
		s.Detection.ModelName,
		DefaultFaceDetectionParams.Mean,
		DefaultFaceDetectionParams.Scale,
		float32(s.Detection.ConfidenceThreshold),
		s.Detection.Margin,
		s.Detection.Timeout,
	)
}

func (s *Settings) ClassifierParams() *ClassifierParams {
	return NewClassifierParams(
		s.Classifier.ModelName,
		s.Classifier.ModelPath,
		Backend(s.Classifier.Backend),
		ModelKind(s.Classifier.Kind),
		s.Classifier.ImgSize,
		s.Classifier.NumThreads,
		s.Classifier.Timeout,
	)
}

func (s *Settings) VideoParams() *VideoParams {
	return NewVideoParams(s.Video.FrameSkip)
}

// NewLogger builds the process logger from the log settings.
func (s *Settings) NewLogger(w io.Writer) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s.Log.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(s.Log.Format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
