// Package scoring decides, per transaction, whether it looks fraudulent.
// Two interchangeable strategies exist: a fixed rule set and a model-backed
// scorer that falls back to the rules when inference fails. The strategy is
// chosen once at startup based on whether a model handle is present.
package scoring

import (
	"fraudwatch/pkg/features"
	"fraudwatch/pkg/ml"
	"fraudwatch/pkg/models"
	"fraudwatch/pkg/structlog"

	"github.com/shopspring/decimal"
)

// Scorer produces a verdict for a transaction. Implementations never return
// an error; internal failures are absorbed (see ModelScorer fallback).
type Scorer interface {
	Score(tx *models.Transaction) models.Verdict
}

// Select picks the detection strategy. A nil model deterministically selects
// the rule-based scorer; a non-nil model selects the model-backed scorer,
// which keeps the rules as its per-transaction fallback.
func Select(model ml.Classifier, extractor *features.Extractor, threshold float64, ceiling decimal.Decimal, log *structlog.Logger) (Scorer, error) {
	rules := NewRuleScorer(ceiling, log)
	if model == nil {
		log.Info("fraud detection using rule-based strategy", nil)
		return rules, nil
	}
	ms, err := NewModelScorer(model, extractor, threshold, rules, log)
	if err != nil {
		return nil, err
	}
	log.Info("fraud detection using model strategy", structlog.Fields{
		"threshold":  threshold,
		"n_features": model.NumFeatures(),
	})
	return ms, nil
}
