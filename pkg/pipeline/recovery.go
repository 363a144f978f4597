package pipeline

import (
	"context"
	"errors"
	"time"

	"fraudwatch/pkg/bus"
	"fraudwatch/pkg/metrics"
	"fraudwatch/pkg/models"
	otelobs "fraudwatch/pkg/observability/otel"
	"fraudwatch/pkg/retry"
	"fraudwatch/pkg/structlog"
)

// FailureClass is the closed set of failure categories a message can hit.
// Each class maps to exactly one handling policy in failurePolicies; routing
// decisions are a table lookup, not scattered conditionals.
type FailureClass string

const (
	// FailureMalformed covers payloads that will never parse.
	FailureMalformed FailureClass = "MALFORMED_INPUT"
	// FailureHandler covers downstream processing failures surfaced by the
	// handler; assumed transient until retries are exhausted.
	FailureHandler FailureClass = "HANDLER_FAILURE"
)

type failurePolicy struct {
	Retryable bool
}

var failurePolicies = map[FailureClass]failurePolicy{
	FailureMalformed: {Retryable: false},
	FailureHandler:   {Retryable: true},
}

// Classify maps an error to its failure class.
func Classify(err error) FailureClass {
	if errors.Is(err, models.ErrMalformedPayload) {
		return FailureMalformed
	}
	return FailureHandler
}

// DeadLetterer reroutes a poison message to the dead-letter channel.
type DeadLetterer interface {
	PublishDeadLetter(ctx context.Context, msg *bus.Message, class string, cause error) error
}

// Handler processes one decoded transaction.
type Handler func(ctx context.Context, tx *models.Transaction) error

// Dispatcher applies the per-message recovery state machine:
// RECEIVED -> RETRYING (bounded, backed off) -> SUCCESS | DEAD_LETTERED.
// Non-retryable failures skip straight to dead-lettering without consuming
// retry attempts. Dispatch is terminal either way; the caller always acks.
type Dispatcher struct {
	handle  Handler
	dead    DeadLetterer
	policy  retry.Policy
	sleep   func(time.Duration)
	metrics *metrics.Pipeline
	log     *structlog.Logger
}

// NewDispatcher builds the recovery layer around a handler.
func NewDispatcher(handle Handler, dead DeadLetterer, policy retry.Policy, m *metrics.Pipeline, log *structlog.Logger) *Dispatcher {
	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = 1
	}
	return &Dispatcher{
		handle:  handle,
		dead:    dead,
		policy:  policy,
		sleep:   time.Sleep,
		metrics: m,
		log:     log,
	}
}

// WithSleep overrides the inter-attempt pause. Intended for tests.
func (d *Dispatcher) WithSleep(sleep func(time.Duration)) *Dispatcher {
	d.sleep = sleep
	return d
}

// Dispatch decodes and handles one message, retrying per the policy and
// dead-lettering on exhaustion. It never returns an error: by the time it
// comes back the message is either handled or dead-lettered.
func (d *Dispatcher) Dispatch(ctx context.Context, msg *bus.Message) {
	ctx = structlog.ContextWithCorrelationID(ctx, structlog.NewCorrelationID())
	ctx, span := otelobs.StartMessageSpan(ctx, msg.Channel, msg.ID)
	defer span.End()

	log := d.log.WithContext(ctx)

	for attempt := 1; ; attempt++ {
		err := d.process(ctx, msg)
		if err == nil {
			return
		}

		class := Classify(err)
		if !failurePolicies[class].Retryable {
			d.deadLetter(ctx, msg, class, err)
			return
		}
		if attempt >= d.policy.MaxAttempts {
			d.deadLetter(ctx, msg, class, err)
			return
		}

		delay := d.policy.Delay(attempt)
		log.Warn("message handling failed, retrying", structlog.Fields{
			"attempt":      attempt,
			"max_attempts": d.policy.MaxAttempts,
			"message_id":   msg.ID,
			"key":          msg.Key,
			"delay_ms":     delay.Milliseconds(),
			"error":        err.Error(),
		})
		d.sleep(delay)
	}
}

func (d *Dispatcher) process(ctx context.Context, msg *bus.Message) error {
	tx, err := models.DecodeTransaction(msg.Payload)
	if err != nil {
		return err
	}
	return d.handle(ctx, tx)
}

func (d *Dispatcher) deadLetter(ctx context.Context, msg *bus.Message, class FailureClass, cause error) {
	log := d.log.WithContext(ctx)
	log.Error("message failed, routing to dead-letter channel", structlog.Fields{
		"dlt":         bus.DeadLetterStream(msg.Channel),
		"message_id":  msg.ID,
		"key":         msg.Key,
		"error_class": string(class),
		"error":       cause.Error(),
	})
	if err := d.dead.PublishDeadLetter(ctx, msg, string(class), cause); err != nil {
		// Nothing further to escalate to; the loss is visible in the log.
		log.Error("dead-letter publish failed", structlog.Fields{
			"message_id": msg.ID,
			"error":      err.Error(),
		})
		return
	}
	d.metrics.DeadLettered.Inc()
}
