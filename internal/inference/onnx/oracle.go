// Package onnx runs real inference through ONNX Runtime. One exported
// binary classifier serves every descriptor of the panel.
package onnx

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	ort "github.com/yalue/onnxruntime_go"

	"go-xray-inspector/internal/logger"
	"go-xray-inspector/internal/panel"
	"go-xray-inspector/pkg/models"
)

// Metadata describes the exported model
type Metadata struct {
	InputShape  []int64  `json:"input_shape"`
	OutputShape []int64  `json:"output_shape"`
	Classes     []string `json:"classes"`
	InputName   string   `json:"input_name,omitempty"`
	OutputName  string   `json:"output_name,omitempty"`
	Logits      bool     `json:"logits,omitempty"`
}

// Oracle implements panel.Oracle on top of an ONNX session. The session
// tensors are shared, so invocations are serialized.
type Oracle struct {
	mu           sync.Mutex
	session      *ort.AdvancedSession
	metadata     Metadata
	inputTensor  *ort.Tensor[float32]
	outputTensor *ort.Tensor[float32]
}

// NewOracle loads the model. libraryPath may be empty to use the default
// shared library lookup.
func NewOracle(modelPath, metadataPath, libraryPath string) (*Oracle, error) {
	if libraryPath != "" {
		ort.SetSharedLibraryPath(libraryPath)
	}
	if err := ort.InitializeEnvironment(); err != nil {
		return nil, fmt.Errorf("failed to initialize ONNX environment: %w", err)
	}

	metaFile, err := os.ReadFile(metadataPath)
	if err != nil {
		ort.DestroyEnvironment()
		return nil, fmt.Errorf("failed to read metadata: %w", err)
	}

	var metadata Metadata
	if err := json.Unmarshal(metaFile, &metadata); err != nil {
		ort.DestroyEnvironment()
		return nil, fmt.Errorf("failed to parse metadata: %w", err)
	}
	if err := metadata.validate(); err != nil {
		ort.DestroyEnvironment()
		return nil, err
	}

	inputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(metadata.InputShape...))
	if err != nil {
		ort.DestroyEnvironment()
		return nil, fmt.Errorf("failed to create input tensor: %w", err)
	}

	outputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(metadata.OutputShape...))
	if err != nil {
		inputTensor.Destroy()
		ort.DestroyEnvironment()
		return nil, fmt.Errorf("failed to create output tensor: %w", err)
	}

	session, err := ort.NewAdvancedSession(modelPath,
		[]string{metadata.inputName()}, []string{metadata.outputName()},
		[]ort.ArbitraryTensor{inputTensor}, []ort.ArbitraryTensor{outputTensor},
		nil)
	if err != nil {
		inputTensor.Destroy()
		outputTensor.Destroy()
		ort.DestroyEnvironment()
		return nil, fmt.Errorf("failed to create ONNX session: %w", err)
	}

	logger.WithFields(logrus.Fields{
		"model":   modelPath,
		"classes": metadata.Classes,
	}).Info("ONNX model loaded")

	return &Oracle{
		session:      session,
		metadata:     metadata,
		inputTensor:  inputTensor,
		outputTensor: outputTensor,
	}, nil
}

func (m Metadata) validate() error {
	if len(m.InputShape) != 4 || m.InputShape[0] != 1 {
		return fmt.Errorf("input shape must be [1, C, H, W], got %v", m.InputShape)
	}
	if m.InputShape[2] != models.CanonicalHeight || m.InputShape[3] != models.CanonicalWidth {
		return fmt.Errorf("input must be %dx%d, got %v", models.CanonicalWidth, models.CanonicalHeight, m.InputShape)
	}
	if len(m.Classes) == 0 {
		return fmt.Errorf("metadata lists no classes")
	}
	return nil
}

func (m Metadata) inputName() string {
	if m.InputName != "" {
		return m.InputName
	}
	return "input"
}

func (m Metadata) outputName() string {
	if m.OutputName != "" {
		return m.OutputName
	}
	return "output"
}

func (o *Oracle) Invoke(ctx context.Context, img *models.NormalizedImage, model models.ModelDescriptor) (models.Prediction, error) {
	if err := ctx.Err(); err != nil {
		return models.Prediction{}, err
	}

	input, err := panel.Tensor(img, int(o.metadata.InputShape[1]))
	if err != nil {
		return models.Prediction{}, err
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	start := time.Now()
	copy(o.inputTensor.GetData(), input)
	if err := o.session.Run(); err != nil {
		return models.Prediction{}, fmt.Errorf("inference failed: %w", err)
	}

	output := o.outputTensor.GetData()
	var probs []float64
	if o.metadata.Logits {
		probs = panel.Softmax(output)
	} else {
		probs = make([]float64, len(output))
		for i, v := range output {
			probs[i] = float64(v)
		}
	}

	label, confidence, err := panel.Classify(o.metadata.Classes, probs)
	if err != nil {
		return models.Prediction{}, &panel.MalformedResultError{ModelID: model.ID, Reason: err.Error()}
	}

	return models.Prediction{
		Confidence:       confidence,
		ProcessingTimeMs: float64(time.Since(start).Microseconds()) / 1000,
		Label:            label,
	}, nil
}

// Close releases the session and the runtime environment
func (o *Oracle) Close() {
	if o.inputTensor != nil {
		o.inputTensor.Destroy()
	}
	if o.outputTensor != nil {
		o.outputTensor.Destroy()
	}
	if o.session != nil {
		o.session.Destroy()
	}
	ort.DestroyEnvironment()
}
