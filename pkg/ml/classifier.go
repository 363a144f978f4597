package ml

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
)

// Classifier is the numeric contract the scoring step depends on: a feature
// vector in, the positive-class probability in [0,1] out. Implementations
// must be safe for concurrent reads; the pipeline loads one instance at
// startup and shares it across all partition workers.
type Classifier interface {
	// PredictProba returns the fraud-class probability for the vector.
	PredictProba(features []float32) (float64, error)
	// NumFeatures reports the expected input width.
	NumFeatures() int
}

// LogisticModel is a logistic-regression classifier with weights loaded from
// a JSON resource exported by the training side. It is immutable after load.
type LogisticModel struct {
	weights []float64
	bias    float64
}

type logisticModelFile struct {
	Weights []float64 `json:"weights"`
	Bias    float64   `json:"bias"`
}

// NewLogisticModel builds a model from explicit parameters.
func NewLogisticModel(weights []float64, bias float64) (*LogisticModel, error) {
	if len(weights) == 0 {
		return nil, fmt.Errorf("logistic model needs at least one weight")
	}
	w := make([]float64, len(weights))
	copy(w, weights)
	return &LogisticModel{weights: w, bias: bias}, nil
}

// LoadLogisticModel reads model parameters from a JSON file of the form
// {"weights": [...], "bias": n}.
func LoadLogisticModel(path string) (*LogisticModel, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read model %s: %w", path, err)
	}
	var mf logisticModelFile
	if err := json.Unmarshal(data, &mf); err != nil {
		return nil, fmt.Errorf("parse model %s: %w", path, err)
	}
	return NewLogisticModel(mf.Weights, mf.Bias)
}

// NumFeatures returns the trained input width.
func (m *LogisticModel) NumFeatures() int { return len(m.weights) }

// PredictProba computes sigmoid(w·x + b).
func (m *LogisticModel) PredictProba(features []float32) (float64, error) {
	if len(features) != len(m.weights) {
		return 0, fmt.Errorf("feature width %d does not match model width %d", len(features), len(m.weights))
	}
	z := m.bias
	for i, w := range m.weights {
		z += w * float64(features[i])
	}
	return sigmoid(z), nil
}

func sigmoid(z float64) float64 {
	return 1.0 / (1.0 + math.Exp(-z))
}
