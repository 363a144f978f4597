package pipeline

import (
	"context"
	"time"

	"fraudwatch/pkg/bus"
	"fraudwatch/pkg/structlog"
)

// Reader is one partition's sequential message source.
type Reader interface {
	Fetch(ctx context.Context) (*bus.Message, error)
	Ack(ctx context.Context, id string) error
	Stream() string
}

// Worker pumps one partition: fetch, dispatch, ack, strictly in order. The
// ack always happens after Dispatch returns, whether or not the message
// succeeded, so poison input never causes a redelivery loop. Run one Worker
// per partition; distinct partitions scale by adding workers.
type Worker struct {
	reader     Reader
	dispatcher *Dispatcher
	log        *structlog.Logger
}

// NewWorker binds a dispatcher to a partition reader.
func NewWorker(reader Reader, dispatcher *Dispatcher, log *structlog.Logger) *Worker {
	return &Worker{reader: reader, dispatcher: dispatcher, log: log}
}

// Run consumes until the context is cancelled.
func (w *Worker) Run(ctx context.Context) {
	w.log.Info("partition worker started", structlog.Fields{
		"stream": w.reader.Stream(),
	})
	for {
		if ctx.Err() != nil {
			w.log.Info("partition worker stopping", structlog.Fields{
				"stream": w.reader.Stream(),
			})
			return
		}

		msg, err := w.reader.Fetch(ctx)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			w.log.Error("fetch failed", structlog.Fields{
				"stream": w.reader.Stream(),
				"error":  err.Error(),
			})
			time.Sleep(time.Second)
			continue
		}
		if msg == nil {
			continue
		}

		w.dispatcher.Dispatch(ctx, msg)

		if err := w.reader.Ack(ctx, msg.ID); err != nil {
			w.log.Error("ack failed", structlog.Fields{
				"stream":     w.reader.Stream(),
				"message_id": msg.ID,
				"error":      err.Error(),
			})
		}
	}
}
