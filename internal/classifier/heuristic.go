package classifier

import (
	"context"
	"math"
)

// Daily free-sugar limits in grams.
const (
	adultDailySugar = 50.0
	childDailySugar = 25.0
	childAgeLimit   = 18.0
)

// Heuristic scores sugar without a trained model. It rates sugar per
// serving against a 10 g midpoint and the whole package against half of the
// daily limit for the user's age.
type Heuristic struct{}

// Predict implements Predictor.
func (Heuristic) Predict(ctx context.Context, f Features) (Prediction, error) {
	if err := ctx.Err(); err != nil {
		return Prediction{}, err
	}
	limit := adultDailySugar
	if f.Age != nil && *f.Age > 0 && *f.Age < childAgeLimit {
		limit = childDailySugar
	}
	return Prediction{
		SugarProbability:          logistic((f.Sugars - 10) / 2.5),
		RecommendationProbability: logistic((f.TotalSugar - limit/2) / (limit / 10)),
	}, nil
}

func logistic(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}
