package pipeline

import (
	"context"
	"fmt"

	"fraudwatch/pkg/bus"
	"fraudwatch/pkg/models"
	"fraudwatch/pkg/structlog"
)

// AlertPublisher forwards flagged transactions to the outbound alert channel,
// keyed by transaction id so downstream consumers can deduplicate. Emission
// is at-most-once per flagged transaction: failures are logged by the caller
// and never retried.
type AlertPublisher struct {
	bus     *bus.Bus
	channel string
	log     *structlog.Logger
}

// NewAlertPublisher builds a publisher for the given alert channel.
func NewAlertPublisher(b *bus.Bus, channel string, log *structlog.Logger) *AlertPublisher {
	return &AlertPublisher{bus: b, channel: channel, log: log}
}

// PublishAlert sends the original transaction downstream.
func (p *AlertPublisher) PublishAlert(ctx context.Context, tx *models.Transaction) error {
	payload, err := tx.Encode()
	if err != nil {
		return fmt.Errorf("encode alert for %s: %w", tx.TransactionID, err)
	}
	if err := p.bus.Publish(ctx, p.channel, tx.TransactionID, payload); err != nil {
		return err
	}
	p.log.Warn("fraud alert sent", structlog.Fields{
		"transaction_id": tx.TransactionID,
		"amount":         tx.Amount.String(),
		"channel":        p.channel,
	})
	return nil
}
