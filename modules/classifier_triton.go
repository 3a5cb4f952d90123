package modules

import (
	"fmt"
	"sync/atomic"

	"github.com/okieraised/go-deepfake-pipeline/config"
	"github.com/okieraised/go-deepfake-pipeline/utils"
	gotritonclient "github.com/okieraised/go-triton-client"
	"github.com/okieraised/go-triton-client/triton_proto"
	"gorgonia.org/tensor"
)

// TritonClassifier runs the deepfake classifier hosted on Triton.
type TritonClassifier struct {
	tritonClient *gotritonclient.TritonGRPCClient
	ModelParams  *config.ClassifierParams
	ModelConfig  *triton_proto.ModelConfigResponse
	signature    config.ModelSignature
	evaluating   atomic.Bool
}

func NewTritonClassifier(triton *gotritonclient.TritonGRPCClient, cfg *config.ClassifierParams) (*TritonClassifier, error) {

	inferenceConfig, err := triton.GetModelConfiguration(cfg.Timeout, cfg.ModelName, "")
	if err != nil {
		return nil, err
	}

	modelCfg := inferenceConfig.GetConfig()
	if len(modelCfg.GetInput()) == 0 || len(modelCfg.GetOutput()) == 0 {
		return nil, fmt.Errorf("classifier model %q has no input or output", cfg.ModelName)
	}

	return &TritonClassifier{
		tritonClient: triton,
		ModelParams:  cfg,
		ModelConfig:  inferenceConfig,
		signature:    tritonSignature(modelCfg),
	}, nil
}

// tritonSignature strips the batch dimension, which Triton only lists when batching is disabled.
func tritonSignature(modelCfg *triton_proto.ModelConfig) config.ModelSignature {
	input := modelCfg.GetInput()[0].GetDims()
	output := modelCfg.GetOutput()[0].GetDims()
	if modelCfg.GetMaxBatchSize() == 0 {
		if len(input) > 0 {
			input = input[1:]
		}
		if len(output) > 0 {
			output = output[1:]
		}
	}
	return config.ModelSignature{
		Input:  append([]int64(nil), input...),
		Output: append([]int64(nil), output...),
	}
}

func (c *TritonClassifier) Signature() config.ModelSignature {
	return c.signature
}

// Eval marks the client ready; the served model is already frozen for inference.
func (c *TritonClassifier) Eval() error {
	c.evaluating.Store(true)
	return nil
}

/*
Forward sends the batch in chunks no larger than the model's max batch size.
Inputs:

  - batch (*tensor.Dense): [N, ...input] float32 tensor.

Outputs:

  - (*tensor.Dense): [N, ...output] logits.
*/
func (c *TritonClassifier) Forward(batch *tensor.Dense) (*tensor.Dense, error) {
	if !c.evaluating.Load() {
		return nil, ErrNotEvaluating
	}

	shape := batch.Shape()
	n := shape[0]
	itemShape := utils.ToInt64(shape[1:])
	itemSize := batch.Size() / n
	data := batch.Float32s()

	chunk := int(c.ModelConfig.GetConfig().GetMaxBatchSize())
	if chunk <= 0 {
		chunk = 1
	}

	inputCfg := c.ModelConfig.Config.Input[0]
	outputName := c.ModelConfig.Config.Output[0].Name
	logits := make([]float32, 0)
	for start := 0; start < n; start += chunk {
		end := min(start+chunk, n)
		modelRequest := &triton_proto.ModelInferRequest{
			ModelName: c.ModelParams.ModelName,
			Inputs: []*triton_proto.ModelInferRequest_InferInputTensor{
				{
					Name:     inputCfg.Name,
					Datatype: inputCfg.DataType.String()[5:],
					Shape:    append([]int64{int64(end - start)}, itemShape...),
					Contents: &triton_proto.InferTensorContents{
						Fp32Contents: data[start*itemSize : end*itemSize],
					},
				},
			},
		}

		inferResp, err := c.tritonClient.ModelGRPCInfer(c.ModelParams.Timeout, modelRequest)
		if err != nil {
			return nil, err
		}

		values, err := tritonLogits(inferResp, outputName)
		if err != nil {
			return nil, fmt.Errorf("classifier model %q: %w", c.ModelParams.ModelName, err)
		}
		logits = append(logits, values...)
	}

	if len(logits)%n != 0 {
		return nil, fmt.Errorf("classifier returned %d values for %d items", len(logits), n)
	}
	return tensor.New(
		tensor.Of(tensor.Float32),
		tensor.WithShape(n, len(logits)/n),
		tensor.WithBacking(logits),
	), nil
}

// tritonLogits reads the named output of an inference response, which must be FP32.
func tritonLogits(inferResp *triton_proto.ModelInferResponse, outputName string) ([]float32, error) {
	outputs := inferResp.GetOutputs()
	if len(outputs) == 0 {
		return nil, fmt.Errorf("no outputs returned")
	}

	oIdx := 0
	for idx, output := range outputs {
		if output.GetName() == outputName {
			oIdx = idx
			break
		}
	}
	if oIdx >= len(inferResp.GetRawOutputContents()) {
		return nil, fmt.Errorf("no contents returned for output %q", outputs[oIdx].GetName())
	}
	if datatype := outputs[oIdx].GetDatatype(); datatype != "FP32" {
		return nil, fmt.Errorf("output %q has data type %s, expected FP32", outputs[oIdx].GetName(), datatype)
	}
	return utils.BytesToT32[float32](inferResp.GetRawOutputContents()[oIdx]), nil
}

func (c *TritonClassifier) Close() error {
	return nil
}
