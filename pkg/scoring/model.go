package scoring

import (
	"fmt"

	"fraudwatch/pkg/features"
	"fraudwatch/pkg/ml"
	"fraudwatch/pkg/models"
	"fraudwatch/pkg/structlog"
)

// DefaultThreshold is the fraud probability cut-off for the model strategy.
// Strictly greater-than: a score exactly at the threshold is clean.
const DefaultThreshold = 0.5

// ModelScorer runs model inference over extracted features. Any inference
// failure falls back to the rule strategy for that single transaction; the
// failure never reaches the caller.
type ModelScorer struct {
	model     ml.Classifier
	extractor *features.Extractor
	threshold float64
	fallback  *RuleScorer
	log       *structlog.Logger
}

// NewModelScorer wires the model to the extractor. An extractor/model width
// mismatch is a configuration error and fails construction.
func NewModelScorer(model ml.Classifier, extractor *features.Extractor, threshold float64, fallback *RuleScorer, log *structlog.Logger) (*ModelScorer, error) {
	if extractor.Width() != model.NumFeatures() {
		return nil, fmt.Errorf("extractor width %d does not match model width %d", extractor.Width(), model.NumFeatures())
	}
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &ModelScorer{
		model:     model,
		extractor: extractor,
		threshold: threshold,
		fallback:  fallback,
		log:       log,
	}, nil
}

// Score extracts features, runs inference, and compares the positive-class
// probability to the threshold. The verdict probability is reported on the
// display scale [0,100].
func (s *ModelScorer) Score(tx *models.Transaction) models.Verdict {
	vec := s.extractor.Extract(tx)

	p, err := s.model.PredictProba(vec)
	if err != nil {
		s.log.Error("model inference failed, falling back to rules", structlog.Fields{
			"transaction_id": tx.TransactionID,
			"error":          err.Error(),
		})
		return s.fallback.Score(tx)
	}

	fraud := p > s.threshold
	reason := models.ReasonClean
	if fraud {
		reason = models.ReasonMLHighProb
	}

	s.log.Info("model prediction", structlog.Fields{
		"transaction_id": tx.TransactionID,
		"fraud_prob_pct": fmt.Sprintf("%.2f", p*100),
		"fraud":          fraud,
	})

	return models.Verdict{
		Fraud:       fraud,
		Probability: p * 100,
		Reason:      reason,
		Method:      models.MethodMLModel,
	}
}
