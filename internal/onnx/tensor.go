package onnx

import (
	"errors"
	"fmt"
	"math"
)

// Tensor is a row-major float32 tensor prepared for ONNX input.
type Tensor struct {
	Data  []float32
	Shape []int64
}

// NewFeatureTensor builds a [1, len(features)] tensor.
func NewFeatureTensor(features []float64) (Tensor, error) {
	if len(features) == 0 {
		return Tensor{}, errors.New("empty feature vector")
	}
	data := make([]float32, len(features))
	for i, f := range features {
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return Tensor{}, fmt.Errorf("feature %d is not finite", i)
		}
		data[i] = float32(f)
	}
	return Tensor{Data: data, Shape: []int64{1, int64(len(features))}}, nil
}

// VerifyTensor checks that the data length matches a shape with positive
// dimensions.
func VerifyTensor(t Tensor) error {
	if len(t.Shape) == 0 {
		return errors.New("empty shape")
	}
	n := int64(1)
	for i, d := range t.Shape {
		if d <= 0 {
			return fmt.Errorf("dimension %d must be > 0, got %d", i, d)
		}
		n *= d
	}
	if int64(len(t.Data)) != n {
		return fmt.Errorf("tensor data length %d != expected %d for shape %v", len(t.Data), n, t.Shape)
	}
	return nil
}

// TensorStats returns min, max and mean for debug output.
func TensorStats(data []float32) (float32, float32, float32) {
	if len(data) == 0 {
		return 0, 0, 0
	}
	lo, hi := data[0], data[0]
	var sum float64
	for _, v := range data {
		lo = min(lo, v)
		hi = max(hi, v)
		sum += float64(v)
	}
	return lo, hi, float32(sum / float64(len(data)))
}
