package classifier

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/MeKo-Tech/nutrigood/internal/models"
	"github.com/MeKo-Tech/nutrigood/internal/onnx"
	onnxrt "github.com/yalue/onnxruntime_go"
)

// Config holds configuration for the ONNX sugar model.
type Config struct {
	ModelPath    string         // Path or bare file name of the ONNX model; empty selects the heuristic
	ModelsDir    string         // Directory searched for bare model names
	LibraryPath  string         // Optional ONNX Runtime shared library
	NumThreads   int            // Intra-op threads (0 = runtime default)
	FeatureScale []float64      // Optional per-feature divisors
	GPU          onnx.GPUConfig // GPU acceleration configuration
	// Falls back to Heuristic when the model cannot be loaded.
	HeuristicFallback bool
}

// DefaultConfig returns heuristic-only defaults.
func DefaultConfig() Config {
	return Config{GPU: onnx.DefaultGPUConfig(), HeuristicFallback: true}
}

// ONNX runs a two-output sigmoid model through ONNX Runtime.
type ONNX struct {
	cfg        Config
	session    *onnxrt.DynamicAdvancedSession
	inputInfo  onnxrt.InputOutputInfo
	outputInfo onnxrt.InputOutputInfo
	width      int
	mu         sync.Mutex
}

// New returns the predictor described by cfg: an ONNX model when a model
// path is set, the heuristic otherwise or on load failure with fallback.
func New(cfg Config) (Predictor, error) {
	if cfg.ModelPath == "" {
		return Heuristic{}, nil
	}
	m, err := NewONNX(cfg)
	if err != nil {
		if cfg.HeuristicFallback {
			slog.Warn("Sugar model unavailable, using heuristic", "model", cfg.ModelPath, "error", err)
			return Heuristic{}, nil
		}
		return nil, err
	}
	return m, nil
}

// NewONNX loads the model at cfg.ModelPath.
func NewONNX(cfg Config) (*ONNX, error) {
	cfg.ModelPath = models.ResolveClassifierPath(cfg.ModelsDir, cfg.ModelPath)
	if err := models.ValidateModelExists(cfg.ModelPath); err != nil {
		return nil, err
	}
	if err := onnx.ValidateGPUConfig(cfg.GPU); err != nil {
		return nil, err
	}
	if err := onnx.Initialize(cfg.LibraryPath, cfg.GPU.UseGPU); err != nil {
		return nil, err
	}

	inputs, outputs, err := onnxrt.GetInputOutputInfo(cfg.ModelPath)
	if err != nil {
		return nil, fmt.Errorf("io info: %w", err)
	}
	if len(inputs) != 1 || len(outputs) < 1 {
		return nil, fmt.Errorf("unexpected io (in:%d out:%d)", len(inputs), len(outputs))
	}
	in, out := inputs[0], outputs[0]
	if len(in.Dimensions) != 2 {
		return nil, fmt.Errorf("expected 2D input, got %dD", len(in.Dimensions))
	}

	opts, err := onnxrt.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("session opts: %w", err)
	}
	defer func() { _ = opts.Destroy() }()
	if err := onnx.ConfigureSessionForGPU(opts, cfg.GPU); err != nil {
		return nil, err
	}
	if cfg.NumThreads > 0 {
		_ = opts.SetIntraOpNumThreads(cfg.NumThreads)
	}

	sess, err := onnxrt.NewDynamicAdvancedSession(cfg.ModelPath, []string{in.Name}, []string{out.Name}, opts)
	if err != nil {
		return nil, fmt.Errorf("session: %w", err)
	}
	m := &ONNX{cfg: cfg, session: sess, inputInfo: in, outputInfo: out}
	if w := in.Dimensions[1]; w > 0 {
		m.width = int(w)
	}
	slog.Debug("Sugar model loaded", "model", cfg.ModelPath, "input", in.Name, "output", out.Name, "width", m.width)
	return m, nil
}

// Predict runs the model on f.
func (m *ONNX) Predict(ctx context.Context, f Features) (Prediction, error) {
	if err := ctx.Err(); err != nil {
		return Prediction{}, err
	}
	vec := f.Scaled(m.cfg.FeatureScale)
	if m.width > 0 {
		if len(vec) < m.width {
			return Prediction{}, &PredictionError{Reason: fmt.Sprintf("model expects %d features, have %d", m.width, len(vec))}
		}
		vec = vec[:m.width]
	}
	t, err := onnx.NewFeatureTensor(vec)
	if err == nil {
		err = onnx.VerifyTensor(t)
	}
	if err != nil {
		return Prediction{}, &PredictionError{Reason: "features", Err: err}
	}
	input, err := onnxrt.NewTensor(onnxrt.NewShape(t.Shape...), t.Data)
	if err != nil {
		return Prediction{}, &PredictionError{Reason: "tensor", Err: err}
	}
	defer func() { _ = input.Destroy() }()

	outputs := []onnxrt.Value{nil}
	m.mu.Lock()
	if m.session == nil {
		m.mu.Unlock()
		return Prediction{}, &PredictionError{Reason: "model closed"}
	}
	err = m.session.Run([]onnxrt.Value{input}, outputs)
	m.mu.Unlock()
	if err != nil {
		return Prediction{}, &PredictionError{Reason: "run", Err: err}
	}
	defer func() {
		if outputs[0] != nil {
			_ = outputs[0].Destroy()
		}
	}()

	out, ok := outputs[0].(*onnxrt.Tensor[float32])
	if !ok {
		return Prediction{}, &PredictionError{Reason: fmt.Sprintf("unexpected output type %T", outputs[0])}
	}
	data := out.GetData()
	if slog.Default().Enabled(ctx, slog.LevelDebug) {
		lo, hi, mean := onnx.TensorStats(data)
		slog.Debug("Sugar model output", "len", len(data), "min", lo, "max", hi, "mean", mean)
	}
	return predictionFromOutput(data)
}

func predictionFromOutput(data []float32) (Prediction, error) {
	if len(data) < 2 {
		return Prediction{}, &PredictionError{Reason: fmt.Sprintf("expected 2 outputs, got %d", len(data))}
	}
	return Prediction{
		SugarProbability:          float64(data[0]),
		RecommendationProbability: float64(data[1]),
	}, nil
}

// Close releases the session.
func (m *ONNX) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session == nil {
		return nil
	}
	err := m.session.Destroy()
	m.session = nil
	if err != nil {
		return errors.Join(errors.New("destroy session"), err)
	}
	return nil
}
