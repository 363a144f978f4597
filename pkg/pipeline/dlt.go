package pipeline

import (
	"context"
	"time"

	"fraudwatch/pkg/bus"
	"fraudwatch/pkg/structlog"
)

// maxPayloadLog bounds how much of a dead-lettered payload is echoed into the
// investigation log.
const maxPayloadLog = 500

// DeadLetterSource is the monitoring feed of rerouted messages.
type DeadLetterSource interface {
	Fetch(ctx context.Context) (*bus.DeadLetter, error)
	Ack(ctx context.Context, id string) error
}

// DeadLetterMonitor is the passive consumer of the dead-letter channel. Its
// only job is structured logging for investigation; it performs no business
// logic and absorbs its own failures so it can never cascade.
type DeadLetterMonitor struct {
	source DeadLetterSource
	log    *structlog.Logger
}

// NewDeadLetterMonitor builds the monitor.
func NewDeadLetterMonitor(source DeadLetterSource, log *structlog.Logger) *DeadLetterMonitor {
	return &DeadLetterMonitor{source: source, log: log}
}

// Run consumes dead letters until the context is cancelled.
func (m *DeadLetterMonitor) Run(ctx context.Context) {
	m.log.Info("dead-letter monitor started", nil)
	for {
		if ctx.Err() != nil {
			return
		}

		dl, err := m.source.Fetch(ctx)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			m.log.Error("dead-letter fetch failed", structlog.Fields{
				"error": err.Error(),
			})
			time.Sleep(time.Second)
			continue
		}
		if dl == nil {
			continue
		}

		m.inspect(dl)

		if err := m.source.Ack(ctx, dl.ID); err != nil {
			m.log.Error("dead-letter ack failed", structlog.Fields{
				"message_id": dl.ID,
				"error":      err.Error(),
			})
		}
	}
}

// inspect logs one dead letter for investigation. Guarded against panics: a
// failure here must never take the monitor down.
func (m *DeadLetterMonitor) inspect(dl *bus.DeadLetter) {
	defer func() {
		if r := recover(); r != nil {
			m.log.Error("panic while inspecting dead letter", structlog.Fields{
				"message_id": dl.ID,
				"panic":      r,
			})
		}
	}()

	payload := string(dl.Payload)
	truncated := false
	if len(payload) > maxPayloadLog {
		payload = payload[:maxPayloadLog]
		truncated = true
	}

	m.log.Error("dead-letter message received, investigation required", structlog.Fields{
		"dlt_stream":        dl.Stream,
		"dlt_id":            dl.ID,
		"key":               dl.Key,
		"origin_stream":     dl.OriginStream,
		"origin_partition":  dl.OriginPartition,
		"origin_id":         dl.OriginID,
		"error_class":       dl.ErrorClass,
		"error_message":     dl.ErrorMessage,
		"payload":           payload,
		"payload_truncated": truncated,
	})
}
