package onnx

import (
	"math"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateGPUConfig(t *testing.T) {
	tests := []struct {
		name    string
		config  GPUConfig
		wantErr bool
	}{
		{"cpu defaults", DefaultGPUConfig(), false},
		{"gpu", GPUConfig{UseGPU: true, ArenaExtendStrategy: "kSameAsRequested"}, false},
		{"negative device", GPUConfig{UseGPU: true, DeviceID: -1}, true},
		{"bad strategy", GPUConfig{UseGPU: true, ArenaExtendStrategy: "sometimes"}, true},
		{"bad strategy ignored on cpu", GPUConfig{ArenaExtendStrategy: "sometimes"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateGPUConfig(tt.config)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestLibraryName(t *testing.T) {
	name, err := libraryName("linux")
	require.NoError(t, err)
	assert.Equal(t, "libonnxruntime.so", name)

	name, err = libraryName("darwin")
	require.NoError(t, err)
	assert.Equal(t, "libonnxruntime.dylib", name)

	_, err = libraryName("plan9")
	assert.Error(t, err)
}

func TestLibraryCandidates_Order(t *testing.T) {
	t.Setenv(LibraryEnv, "/env/libonnxruntime.so")

	got := LibraryCandidates("/explicit/lib.so", true)
	require.GreaterOrEqual(t, len(got), 2)
	assert.Equal(t, "/explicit/lib.so", got[0])
	assert.Equal(t, "/env/libonnxruntime.so", got[1])

	if name, err := libraryName(runtime.GOOS); err == nil {
		assert.Contains(t, got, filepath.Join("/usr/local/lib", name))
		assert.Contains(t, got, filepath.Join("/opt/onnxruntime/gpu/lib", name))
		assert.NotContains(t, LibraryCandidates("", false), filepath.Join("/opt/onnxruntime/gpu/lib", name))
	}
}

func TestNewFeatureTensor(t *testing.T) {
	tensor, err := NewFeatureTensor([]float64{2, 5, 10})
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 3}, tensor.Shape)
	assert.Equal(t, []float32{2, 5, 10}, tensor.Data)
	require.NoError(t, VerifyTensor(tensor))

	_, err = NewFeatureTensor(nil)
	assert.Error(t, err)
	_, err = NewFeatureTensor([]float64{1, math.NaN()})
	assert.Error(t, err)
	_, err = NewFeatureTensor([]float64{math.Inf(-1)})
	assert.Error(t, err)
}

func TestVerifyTensor(t *testing.T) {
	assert.Error(t, VerifyTensor(Tensor{}))
	assert.Error(t, VerifyTensor(Tensor{Data: []float32{1}, Shape: []int64{1, 0}}))
	assert.Error(t, VerifyTensor(Tensor{Data: []float32{1, 2}, Shape: []int64{1, 3}}))
	assert.NoError(t, VerifyTensor(Tensor{Data: []float32{1, 2, 3, 4}, Shape: []int64{2, 2}}))
}

func TestTensorStats(t *testing.T) {
	lo, hi, mean := TensorStats([]float32{1, -2, 4})
	assert.Equal(t, float32(-2), lo)
	assert.Equal(t, float32(4), hi)
	assert.InDelta(t, 1, mean, 1e-6)

	lo, hi, mean = TensorStats(nil)
	assert.Zero(t, lo)
	assert.Zero(t, hi)
	assert.Zero(t, mean)
}
