package modules

import (
	"fmt"
	"image"
	"slices"

	"github.com/okieraised/go-deepfake-pipeline/config"
	"github.com/okieraised/go-deepfake-pipeline/utils"
	gotritonclient "github.com/okieraised/go-triton-client"
	"github.com/okieraised/go-triton-client/triton_proto"
	"gocv.io/x/gocv"
	"gorgonia.org/tensor"
)

// FaceDetector returns every face candidate found in an RGB frame, in source pixel coordinates.
type FaceDetector interface {
	Detect(img gocv.Mat) ([]config.FaceDetectionOutput, error)
}

// FaceDetectionClient runs the SCRFD detector hosted on Triton.
type FaceDetectionClient struct {
	tritonClient *gotritonclient.TritonGRPCClient
	ModelConfig  *triton_proto.ModelConfigResponse
	ModelParams  *config.FaceDetectionParams
}

func NewFaceDetectionClient(triton *gotritonclient.TritonGRPCClient, cfg *config.FaceDetectionParams) (*FaceDetectionClient, error) {

	inferenceConfig, err := triton.GetModelConfiguration(cfg.Timeout, cfg.ModelName, "")
	if err != nil {
		return nil, err
	}
	if len(inferenceConfig.GetConfig().GetInput()) == 0 || len(inferenceConfig.GetConfig().GetInput()[0].GetDims()) != 3 {
		return nil, fmt.Errorf("face detection model %q must take a single [3, H, W] input", cfg.ModelName)
	}

	return &FaceDetectionClient{
		tritonClient: triton,
		ModelParams:  cfg,
		ModelConfig:  inferenceConfig,
	}, nil
}

/*
preprocess letterboxes the frame into the top-left corner of the model input and normalizes it.
Inputs:

  - input (gocv.Mat): RGB frame.

Outputs:

  - (*tensor.Dense): [3, H, W] input tensor.
  - (config.Size): original frame size used to rescale boxes.
*/
func (c *FaceDetectionClient) preprocess(input gocv.Mat) (*tensor.Dense, config.Size, error) {
	imgH, imgW := input.Rows(), input.Cols()
	size := config.Size{
		Width:  imgW,
		Height: imgH,
	}
	if imgH == 0 || imgW == 0 {
		return nil, size, utils.ErrEmptyImage
	}
	imgRatio := float64(imgW) / float64(imgH)

	dims := c.ModelConfig.Config.Input[0].Dims
	modelH, modelW := int(dims[1]), int(dims[2])
	modelRatio := float64(modelW) / float64(modelH)

	var newWidth, newHeight int
	if imgRatio > modelRatio {
		newWidth = modelW
		newHeight = int(float64(newWidth) / imgRatio)
	} else {
		newHeight = modelH
		newWidth = int(float64(newHeight) * imgRatio)
	}
	newWidth, newHeight = max(newWidth, 1), max(newHeight, 1)

	scaledImg := gocv.NewMatWithSizesWithScalar(
		[]int{modelH, modelW},
		gocv.MatTypeCV8UC3,
		gocv.NewScalar(0, 0, 0, 0),
	)
	defer scaledImg.Close()

	roi := scaledImg.Region(image.Rect(0, 0, newWidth, newHeight))
	gocv.Resize(input, &roi, image.Point{X: newWidth, Y: newHeight}, 0, 0, gocv.InterpolationLinear)
	roi.Close()

	raw := scaledImg.ToBytes()
	mean, scale := float32(c.ModelParams.Mean), float32(c.ModelParams.Scale)
	plane := modelH * modelW
	backing := make([]float32, 3*plane)
	for i := 0; i < plane; i++ {
		for z := 0; z < 3; z++ {
			backing[z*plane+i] = (float32(raw[i*3+z]) - mean) * scale
		}
	}

	return tensor.New(
		tensor.Of(tensor.Float32),
		tensor.WithShape(3, modelH, modelW),
		tensor.WithBacking(backing),
	), size, nil
}

/*
postprocess splits the batched NMS outputs into candidates and rescales them to source pixels.
Inputs:

  - rawOutputs ([]*tensor.Dense): num_dets, boxes, scores, classes, landmarks.
  - size (config.Size): original frame size.

Outputs:

  - ([]config.FaceDetectionOutput): one entry per kept detection.
*/
func (c *FaceDetectionClient) postprocess(rawOutputs []*tensor.Dense, size config.Size) ([]config.FaceDetectionOutput, error) {
	if len(rawOutputs) < 5 {
		return nil, fmt.Errorf("face detection model returned %d outputs, expected 5", len(rawOutputs))
	}
	for idx, output := range rawOutputs[:5] {
		if output == nil {
			return nil, fmt.Errorf("face detection output %d has an unsupported data type", idx)
		}
	}

	results := make([]config.FaceDetectionOutput, 0)
	numDets := countDetections(rawOutputs[0])
	boxes, err := rawOutputs[1].Slice(tensor.S(0))
	if err != nil {
		return nil, err
	}
	scores, err := rawOutputs[2].Slice(tensor.S(0))
	if err != nil {
		return nil, err
	}
	classes, err := rawOutputs[3].Slice(tensor.S(0))
	if err != nil {
		return nil, err
	}
	landmarks, err := rawOutputs[4].Slice(tensor.S(0))
	if err != nil {
		return nil, err
	}
	numDets = min(numDets, scores.Shape()[0])

	scale := slices.Max(c.ModelConfig.Config.Input[0].Dims)
	if size.Max() > 0 {
		scale = int64(size.Max())
	}
	rescale := func(x float32) float32 {
		return x * float32(scale)
	}

	for i := range numDets {
		score, err := scores.Slice(tensor.S(i))
		if err != nil {
			return nil, err
		}
		classID, err := classes.Slice(tensor.S(i))
		if err != nil {
			return nil, err
		}
		box, err := boxes.Slice(tensor.S(i))
		if err != nil {
			return nil, err
		}
		scaledBox, err := box.Apply(rescale)
		if err != nil {
			return nil, err
		}
		landmark, err := landmarks.Slice(tensor.S(i))
		if err != nil {
			return nil, err
		}
		scaledLandmark, err := landmark.Apply(rescale)
		if err != nil {
			return nil, err
		}

		results = append(results, config.FaceDetectionOutput{
			Box:      scaledBox.(*tensor.Dense),
			Score:    score.(*tensor.Dense),
			ClassID:  classID.(*tensor.Dense),
			Landmark: scaledLandmark.(*tensor.Dense),
		})
	}
	return results, nil
}

// Detect runs one detection request for a single RGB frame.
func (c *FaceDetectionClient) Detect(img gocv.Mat) ([]config.FaceDetectionOutput, error) {
	inputTensor, size, err := c.preprocess(img)
	if err != nil {
		return nil, err
	}

	modelRequest := &triton_proto.ModelInferRequest{
		ModelName: c.ModelParams.ModelName,
	}

	modelInputs := make([]*triton_proto.ModelInferRequest_InferInputTensor, 0)
	for _, inputCfg := range c.ModelConfig.Config.Input {
		modelInput := &triton_proto.ModelInferRequest_InferInputTensor{
			Name:     inputCfg.Name,
			Datatype: inputCfg.DataType.String()[5:],
			Shape:    []int64{1, inputCfg.Dims[0], inputCfg.Dims[1], inputCfg.Dims[2]},
			Contents: &triton_proto.InferTensorContents{
				Fp32Contents: inputTensor.Float32s(),
			},
		}
		modelInputs = append(modelInputs, modelInput)
	}

	modelRequest.Inputs = modelInputs
	inferResp, err := c.tritonClient.ModelGRPCInfer(c.ModelParams.Timeout, modelRequest)
	if err != nil {
		return nil, err
	}

	outputs := make([]*tensor.Dense, 0, len(inferResp.GetOutputs()))
	for oIdx, output := range inferResp.GetOutputs() {
		outputs = append(outputs, rawOutputToTensor(output, inferResp.RawOutputContents[oIdx]))
	}
	return c.postprocess(outputs, size)
}

// rawOutputToTensor wraps raw Triton output bytes, nil for unsupported data types.
func rawOutputToTensor(output *triton_proto.ModelInferResponse_InferOutputTensor, raw []byte) *tensor.Dense {
	outputShape := utils.ToInt(output.Shape)
	switch output.Datatype {
	case "FP32":
		return tensor.New(
			tensor.Of(tensor.Float32),
			tensor.WithShape(outputShape...),
			tensor.WithBacking(utils.BytesToT32[float32](raw)),
		)
	case "INT32":
		return tensor.New(
			tensor.Of(tensor.Int32),
			tensor.WithShape(outputShape...),
			tensor.WithBacking(utils.BytesToT32[int32](raw)),
		)
	case "INT64":
		return tensor.New(
			tensor.Of(tensor.Int64),
			tensor.WithShape(outputShape...),
			tensor.WithBacking(utils.BytesToT64[int64](raw)),
		)
	}
	return nil
}

func countDetections(numDets *tensor.Dense) int {
	switch v := numDets.Data().(type) {
	case []int32:
		if len(v) > 0 {
			return int(v[0])
		}
	case int32:
		return int(v)
	case []int64:
		if len(v) > 0 {
			return int(v[0])
		}
	case int64:
		return int(v)
	case []float32:
		if len(v) > 0 {
			return int(v[0])
		}
	case float32:
		return int(v)
	}
	return 0
}
