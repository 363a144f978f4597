package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fraudwatch/pkg/bus"
	"fraudwatch/pkg/metrics"
	"fraudwatch/pkg/models"
	"fraudwatch/pkg/retry"
)

type deadLetterRecord struct {
	msg   *bus.Message
	class string
	cause error
}

type fakeDeadLetterer struct {
	records []deadLetterRecord
	err     error
}

func (f *fakeDeadLetterer) PublishDeadLetter(_ context.Context, msg *bus.Message, class string, cause error) error {
	if f.err != nil {
		return f.err
	}
	f.records = append(f.records, deadLetterRecord{msg: msg, class: class, cause: cause})
	return nil
}

func goodPayload(id string) []byte {
	return []byte(`{"transactionID": "` + id + `", "userId": "u", "amount": 10, "paymentMethod": "CREDIT_CARD"}`)
}

type dispatchHarness struct {
	dispatcher *Dispatcher
	dead       *fakeDeadLetterer
	metrics    *metrics.Pipeline
	handled    []string
	slept      []time.Duration
	handleErr  error
}

func newDispatchHarness() *dispatchHarness {
	h := &dispatchHarness{dead: &fakeDeadLetterer{}}
	h.metrics = metrics.NewPipeline(prometheus.NewRegistry())
	h.dispatcher = NewDispatcher(func(_ context.Context, tx *models.Transaction) error {
		if h.handleErr != nil {
			return h.handleErr
		}
		h.handled = append(h.handled, tx.TransactionID)
		return nil
	}, h.dead, retry.DefaultPolicy(), h.metrics, testLogger()).
		WithSleep(func(d time.Duration) { h.slept = append(h.slept, d) })
	return h
}

func msgOn(channel string, partition int, id string, payload []byte) *bus.Message {
	return &bus.Message{ID: id, Channel: channel, Partition: partition, Payload: payload}
}

func TestDispatchDeliversWellFormedMessage(t *testing.T) {
	h := newDispatchHarness()
	h.dispatcher.Dispatch(context.Background(), msgOn("transactions", 0, "1-0", goodPayload("tx-ok")))

	assert.Equal(t, []string{"tx-ok"}, h.handled)
	assert.Empty(t, h.dead.records)
	assert.Empty(t, h.slept)
}

func TestDispatchMalformedGoesStraightToDeadLetter(t *testing.T) {
	// End-to-end scenario: payload "not JSON" never reaches the scorer and is
	// rerouted without consuming retry attempts.
	h := newDispatchHarness()
	h.dispatcher.Dispatch(context.Background(), msgOn("transactions", 2, "5-0", []byte("not JSON")))

	assert.Empty(t, h.handled, "malformed input must never reach the handler")
	assert.Empty(t, h.slept, "non-retryable failures skip retries")
	require.Len(t, h.dead.records, 1)

	rec := h.dead.records[0]
	assert.Equal(t, string(FailureMalformed), rec.class)
	assert.Equal(t, "transactions", rec.msg.Channel)
	assert.Equal(t, "transactions-dlt", bus.DeadLetterStream(rec.msg.Channel))
	assert.Equal(t, []byte("not JSON"), rec.msg.Payload, "original payload preserved")
	assert.True(t, errors.Is(rec.cause, models.ErrMalformedPayload))

	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.DeadLettered))
	// Processing counters never move for a message that never decoded.
	assert.Equal(t, 0.0, testutil.ToFloat64(h.metrics.Transactions))
	assert.Equal(t, 0.0, testutil.ToFloat64(h.metrics.Fraudulent))
	assert.Equal(t, 0.0, testutil.ToFloat64(h.metrics.Clean))
}

func TestDispatchRetriesHandlerFailuresThenDeadLetters(t *testing.T) {
	h := newDispatchHarness()
	h.handleErr = errors.New("downstream hiccup")

	h.dispatcher.Dispatch(context.Background(), msgOn("transactions", 0, "7-0", goodPayload("tx-retry")))

	// Three attempts with the 1s/2s schedule between them, then dead-letter.
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, h.slept)
	require.Len(t, h.dead.records, 1)
	assert.Equal(t, string(FailureHandler), h.dead.records[0].class)
}

func TestDispatchRecoversWithinRetryBudget(t *testing.T) {
	h := newDispatchHarness()
	calls := 0
	h.dispatcher.handle = func(_ context.Context, tx *models.Transaction) error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		h.handled = append(h.handled, tx.TransactionID)
		return nil
	}

	h.dispatcher.Dispatch(context.Background(), msgOn("transactions", 0, "8-0", goodPayload("tx-slow")))

	assert.Equal(t, []string{"tx-slow"}, h.handled)
	assert.Empty(t, h.dead.records)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, h.slept)
}

func TestDispatchPipelineLiveness(t *testing.T) {
	// A poison message must not prevent the next well-formed one.
	h := newDispatchHarness()
	ctx := context.Background()

	h.dispatcher.Dispatch(ctx, msgOn("transactions", 0, "9-0", []byte(`{"broken`)))
	h.dispatcher.Dispatch(ctx, msgOn("transactions", 0, "9-1", goodPayload("tx-after")))

	assert.Equal(t, []string{"tx-after"}, h.handled)
	assert.Len(t, h.dead.records, 1)
}

func TestClassify(t *testing.T) {
	assert.Equal(t, FailureMalformed, Classify(models.ErrMalformedPayload))
	_, decodeErr := models.DecodeTransaction([]byte("{nope"))
	assert.Equal(t, FailureMalformed, Classify(decodeErr))
	assert.Equal(t, FailureHandler, Classify(errors.New("anything else")))
}

func TestFailurePolicyTable(t *testing.T) {
	assert.False(t, failurePolicies[FailureMalformed].Retryable)
	assert.True(t, failurePolicies[FailureHandler].Retryable)
}
