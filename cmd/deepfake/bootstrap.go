package main

import (
	"fmt"
	"log/slog"

	deepfake "github.com/okieraised/go-deepfake-pipeline"
	"github.com/okieraised/go-deepfake-pipeline/config"
	"github.com/okieraised/go-deepfake-pipeline/modules"
	gotritonclient "github.com/okieraised/go-triton-client"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/keepalive"
)

func newTritonClient(url string) (*gotritonclient.TritonGRPCClient, error) {
	return gotritonclient.NewTritonGRPCClient(
		url,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithKeepaliveParams(keepalive.ClientParameters{PermitWithoutStream: true}),
	)
}

/*
buildPipeline connects to Triton and assembles the detection pipeline.
A classifier that fails to load is logged and the pipeline runs without a model,
failing every analysis with "Model not loaded".
*/
func buildPipeline(settings *config.Settings, logger *slog.Logger, opts ...deepfake.PipelineOption) (*deepfake.DeepfakePipeline, error) {
	triton, err := newTritonClient(settings.Triton.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to create triton client for %s: %w", settings.Triton.URL, err)
	}

	detectionParams := settings.FaceDetectionParams()
	detector, err := modules.NewFaceDetectionClient(triton, detectionParams)
	if err != nil {
		return nil, fmt.Errorf("failed to load face detector %q: %w", detectionParams.ModelName, err)
	}

	classifierParams := settings.ClassifierParams()
	runtime, err := modules.LoadClassifierRuntime(classifierParams, triton, settings.Classifier.OnnxLibraryPath)
	if err != nil {
		logger.Warn("failed to load deepfake classifier, analyses will fail until it is available",
			"error", err, "model_name", classifierParams.ModelName, "model_path", classifierParams.ModelPath)
		runtime = nil
	}

	opts = append([]deepfake.PipelineOption{
		deepfake.WithLogger(logger),
		deepfake.WithVideoParams(settings.VideoParams()),
	}, opts...)
	return deepfake.NewDeepfakePipeline(detector, runtime, detectionParams, classifierParams, opts...), nil
}

func closePipeline(pipeline *deepfake.DeepfakePipeline, logger *slog.Logger) {
	if err := pipeline.Close(); err != nil {
		logger.Warn("failed to close classifier", "error", err)
	}
	if err := modules.ShutdownOnnxRuntime(); err != nil {
		logger.Warn("failed to shut down onnx runtime", "error", err)
	}
}
