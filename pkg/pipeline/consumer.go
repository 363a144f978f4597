// Package pipeline orchestrates fraud detection per message: score, persist,
// alert, count. Failure isolation is the design center — one bad transaction
// never stops the stream, and the transport cursor always advances.
package pipeline

import (
	"context"
	"time"

	"fraudwatch/pkg/metrics"
	"fraudwatch/pkg/models"
	"fraudwatch/pkg/scoring"
	"fraudwatch/pkg/structlog"
)

// Store persists flagged transactions. Save runs its own bounded retries and
// recovery; an error back from it means the record was ultimately lost.
type Store interface {
	Save(ctx context.Context, tx *models.Transaction, verdict models.Verdict) error
}

// Alerter emits a best-effort fraud alert keyed by transaction id.
type Alerter interface {
	PublishAlert(ctx context.Context, tx *models.Transaction) error
}

// Consumer drives the per-transaction sequence. Handle never propagates a
// failure to the caller; everything is caught, logged, and counted here.
type Consumer struct {
	scorer  scoring.Scorer
	store   Store
	alerts  Alerter
	metrics *metrics.Pipeline
	log     *structlog.Logger
}

// NewConsumer wires the orchestrator.
func NewConsumer(scorer scoring.Scorer, store Store, alerts Alerter, m *metrics.Pipeline, log *structlog.Logger) *Consumer {
	return &Consumer{
		scorer:  scorer,
		store:   store,
		alerts:  alerts,
		metrics: m,
		log:     log,
	}
}

// Handle processes one transaction end to end.
func (c *Consumer) Handle(ctx context.Context, tx *models.Transaction) {
	defer func() {
		if r := recover(); r != nil {
			c.log.Error("panic while processing transaction", structlog.Fields{
				"transaction_id": tx.TransactionID,
				"panic":          r,
			})
		}
	}()

	c.log.Info("received transaction", structlog.Fields{
		"transaction_id": tx.TransactionID,
		"amount":         tx.Amount.String(),
		"merchant_id":    tx.MerchantID,
		"location":       tx.Location,
		"payment_method": string(tx.PaymentMethod),
	})
	c.metrics.Transactions.Inc()

	verdict := c.scoreTimed(tx)

	if verdict.Fraud {
		c.log.Warn("fraud detected", structlog.Fields{
			"transaction_id": tx.TransactionID,
			"amount":         tx.Amount.String(),
			"merchant_id":    tx.MerchantID,
			"payment_method": string(tx.PaymentMethod),
			"flag_reason":    verdict.Reason,
			"probability":    verdict.Probability,
		})

		if err := c.store.Save(ctx, tx, verdict); err != nil {
			// Save already ran retries and the recovery handler; account for
			// the loss and keep going.
			c.metrics.SaveFailures.Inc()
		}

		// Alerting is fire-and-forget: not on the durability path.
		if err := c.alerts.PublishAlert(ctx, tx); err != nil {
			c.log.Error("fraud alert publish failed", structlog.Fields{
				"transaction_id": tx.TransactionID,
				"error":          err.Error(),
			})
		}

		c.metrics.Fraudulent.Inc()
		return
	}

	c.log.Info("transaction clean", structlog.Fields{
		"transaction_id": tx.TransactionID,
		"amount":         tx.Amount.String(),
	})
	c.metrics.Clean.Inc()
}

// scoreTimed runs the scorer under the detection latency timer. The timer
// stops on every path, including a scorer panic, so latency accounting is
// never skewed by failures.
func (c *Consumer) scoreTimed(tx *models.Transaction) models.Verdict {
	start := time.Now()
	defer func() {
		c.metrics.ObserveDetection(time.Since(start))
	}()
	return c.scorer.Score(tx)
}
