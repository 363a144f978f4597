package scoring

import (
	"fraudwatch/pkg/models"
	"fraudwatch/pkg/structlog"

	"github.com/shopspring/decimal"
)

// RuleScorer flags transactions with a fixed, ordered rule set:
// an amount strictly above the ceiling wins first, then a CRYPTO payment
// method. Anything else is clean.
type RuleScorer struct {
	ceiling decimal.Decimal
	log     *structlog.Logger
}

// NewRuleScorer builds a rule scorer with the configured high-value ceiling.
func NewRuleScorer(ceiling decimal.Decimal, log *structlog.Logger) *RuleScorer {
	return &RuleScorer{ceiling: ceiling, log: log}
}

// Score evaluates the rules in order; the first match wins.
func (r *RuleScorer) Score(tx *models.Transaction) models.Verdict {
	if tx.Amount.GreaterThan(r.ceiling) {
		r.log.Warn("rule matched: high-value transaction", structlog.Fields{
			"transaction_id": tx.TransactionID,
			"amount":         tx.Amount.String(),
			"ceiling":        r.ceiling.String(),
		})
		return models.Verdict{
			Fraud:       true,
			Probability: 100,
			Reason:      models.ReasonHighValue,
			Method:      models.MethodRuleBased,
		}
	}

	if tx.PaymentMethod == models.PaymentCrypto {
		r.log.Warn("rule matched: crypto payment", structlog.Fields{
			"transaction_id": tx.TransactionID,
		})
		return models.Verdict{
			Fraud:       true,
			Probability: 100,
			Reason:      models.ReasonCrypto,
			Method:      models.MethodRuleBased,
		}
	}

	return models.Verdict{
		Fraud:       false,
		Probability: 0,
		Reason:      models.ReasonClean,
		Method:      models.MethodRuleBased,
	}
}
