// Package predict turns a post record into engagement counts.
package predict

import (
	"context"
	"fmt"
	"math"

	"simfluence/internal/features"
	"simfluence/internal/logging"
	"simfluence/internal/metrics"
	"simfluence/internal/model"
	"simfluence/internal/modelstore"
)

// Loader yields the current model bundles.
type Loader interface {
	Load(ctx context.Context) (modelstore.Bundles, error)
}

// Recorder receives every successful prediction with the vector it was made on.
type Recorder interface {
	RecordPrediction(ctx context.Context, v features.Vector, p model.Prediction) error
}

// Service runs the three regressors over one shared feature vector.
type Service struct {
	loader   Loader
	recorder Recorder
}

func NewService(l Loader, r Recorder) *Service { return &Service{loader: l, recorder: r} }

// PredictEngagement loads the models, featurizes rec against the likes
// bundle's column order and returns rounded, non-negative counts. A missing
// model set yields an error wrapping modelstore.ErrModelsUnavailable.
func (s *Service) PredictEngagement(ctx context.Context, rec model.PostRecord) (*model.Prediction, error) {
	bs, err := s.loader.Load(ctx)
	if err != nil {
		return nil, err
	}
	canon := bs.Likes
	vec := features.Transform(rec, canon.Features, canon.Aux)
	if n := len(vec.Missing); n > 0 {
		metrics.AddMissingFeatures(n)
		logging.Ctx(ctx).Warn().Strs("missing", vec.Missing).Msg("missing_features_zero_filled")
	}

	var counts [3]int
	for i, t := range modelstore.Targets {
		raw, err := bs.Get(t).Model.Predict(vec.Values)
		if err != nil {
			return nil, fmt.Errorf("predict %s: %w", t, err)
		}
		counts[i] = ToCount(raw)
	}
	p := &model.Prediction{
		Likes:     counts[0],
		Comments:  counts[1],
		Shares:    counts[2],
		ModelInfo: canon.DatasetInfo,
	}
	if s.recorder != nil {
		if err := s.recorder.RecordPrediction(ctx, vec, *p); err != nil {
			logging.Ctx(ctx).Warn().Err(err).Msg("prediction_record_failed")
		}
	}
	return p, nil
}

// ToCount rounds half away from zero and clamps at 0.
func ToCount(raw float64) int {
	if math.IsNaN(raw) {
		return 0
	}
	v := math.Round(raw)
	if v < 0 {
		return 0
	}
	if v > math.MaxInt32 {
		return math.MaxInt32
	}
	return int(v)
}
