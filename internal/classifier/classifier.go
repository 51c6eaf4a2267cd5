// Package classifier turns extracted nutrition features into a sugar-risk
// category and a consumption recommendation.
package classifier

import (
	"context"
	"errors"
	"math"
	"time"
)

// Threshold maps a probability to its binary label.
const Threshold = 0.5

// Prediction holds raw model probabilities.
type Prediction struct {
	SugarProbability          float64 `json:"sugar_probability"`
	RecommendationProbability float64 `json:"recommendation_probability"`
}

// Predictor is the model collaborator. Implementations must be safe for
// concurrent use.
type Predictor interface {
	Predict(ctx context.Context, f Features) (Prediction, error)
}

// Analysis is a thresholded, localized prediction.
type Analysis struct {
	SugarCategory  string     `json:"sugar_category"`
	Recommendation string     `json:"recommendation"`
	HighSugar      bool       `json:"high_sugar"`
	Reduce         bool       `json:"reduce"`
	Prediction     Prediction `json:"probabilities"`
}

// Interpret thresholds p and renders labels in lang.
func Interpret(p Prediction, lang string) Analysis {
	a := Analysis{
		HighSugar:  p.SugarProbability > Threshold,
		Reduce:     p.RecommendationProbability > Threshold,
		Prediction: p,
	}
	pr := printer(lang)
	if a.HighSugar {
		a.SugarCategory = pr.Sprintf(msgHighSugar)
	} else {
		a.SugarCategory = pr.Sprintf(msgLowSugar)
	}
	if a.Reduce {
		a.Recommendation = pr.Sprintf(msgReduce)
	} else {
		a.Recommendation = pr.Sprintf(msgSafe)
	}
	return a
}

// Classify validates f, runs p under timeout and interprets the result.
// A deadline overrun yields TimeoutError; any other failure is returned as a
// PredictionError.
func Classify(ctx context.Context, p Predictor, f Features, timeout time.Duration, lang string) (Analysis, error) {
	if err := f.Validate(); err != nil {
		return Analysis{}, &PredictionError{Reason: "invalid features", Err: err}
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	type result struct {
		pred Prediction
		err  error
	}
	done := make(chan result, 1)
	go func() {
		pred, err := p.Predict(ctx, f)
		done <- result{pred, err}
	}()

	var r result
	select {
	case r = <-done:
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return Analysis{}, &TimeoutError{After: timeout}
		}
		return Analysis{}, ctx.Err()
	}

	if r.err != nil {
		var te *TimeoutError
		var pe *PredictionError
		switch {
		case errors.As(r.err, &te), errors.As(r.err, &pe):
			return Analysis{}, r.err
		case errors.Is(r.err, context.DeadlineExceeded):
			return Analysis{}, &TimeoutError{After: timeout}
		default:
			return Analysis{}, &PredictionError{Reason: "predictor error", Err: r.err}
		}
	}
	if !validProbability(r.pred.SugarProbability) || !validProbability(r.pred.RecommendationProbability) {
		return Analysis{}, &PredictionError{Reason: "probabilities outside [0, 1]"}
	}
	return Interpret(r.pred, lang), nil
}

func validProbability(p float64) bool {
	return !math.IsNaN(p) && p >= 0 && p <= 1
}
