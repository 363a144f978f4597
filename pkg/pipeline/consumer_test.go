package pipeline

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"fraudwatch/pkg/metrics"
	"fraudwatch/pkg/models"
	"fraudwatch/pkg/structlog"
)

func testLogger() *structlog.Logger {
	return structlog.NewLogger("test", structlog.LevelFatal, io.Discard)
}

type fakeScorer struct {
	verdict models.Verdict
	panics  bool
}

func (f *fakeScorer) Score(tx *models.Transaction) models.Verdict {
	if f.panics {
		panic("scorer blew up")
	}
	return f.verdict
}

type savedCall struct {
	tx      *models.Transaction
	verdict models.Verdict
}

type fakeStore struct {
	err   error
	saves []savedCall
}

func (f *fakeStore) Save(_ context.Context, tx *models.Transaction, v models.Verdict) error {
	f.saves = append(f.saves, savedCall{tx: tx, verdict: v})
	return f.err
}

type fakeAlerter struct {
	err    error
	alerts []string
}

func (f *fakeAlerter) PublishAlert(_ context.Context, tx *models.Transaction) error {
	if f.err != nil {
		return f.err
	}
	f.alerts = append(f.alerts, tx.TransactionID)
	return nil
}

func newTestConsumer(scorer *fakeScorer, store *fakeStore, alerts *fakeAlerter) (*Consumer, *metrics.Pipeline) {
	pm := metrics.NewPipeline(prometheus.NewRegistry())
	return NewConsumer(scorer, store, alerts, pm, testLogger()), pm
}

func TestHandleFraudPath(t *testing.T) {
	// End-to-end: 1000.00 on a credit card under the rule strategy.
	verdict := models.Verdict{
		Fraud:       true,
		Probability: 100,
		Reason:      models.ReasonHighValue,
		Method:      models.MethodRuleBased,
	}
	store := &fakeStore{}
	alerts := &fakeAlerter{}
	c, pm := newTestConsumer(&fakeScorer{verdict: verdict}, store, alerts)

	tx := &models.Transaction{
		TransactionID: "tx-e2e-1",
		Amount:        decimal.RequireFromString("1000.00"),
		PaymentMethod: models.PaymentCreditCard,
	}
	c.Handle(context.Background(), tx)

	if assert.Len(t, store.saves, 1) {
		assert.Equal(t, models.MethodRuleBased, store.saves[0].verdict.Method)
		assert.Equal(t, models.ReasonHighValue, store.saves[0].verdict.Reason)
	}
	assert.Equal(t, []string{"tx-e2e-1"}, alerts.alerts, "one alert keyed by transaction id")
	assert.Equal(t, 1.0, testutil.ToFloat64(pm.Transactions))
	assert.Equal(t, 1.0, testutil.ToFloat64(pm.Fraudulent))
	assert.Equal(t, 0.0, testutil.ToFloat64(pm.Clean))
}

func TestHandleCleanPath(t *testing.T) {
	// End-to-end: 50.00 on a credit card is clean; nothing persisted, no alert.
	store := &fakeStore{}
	alerts := &fakeAlerter{}
	c, pm := newTestConsumer(&fakeScorer{verdict: models.Verdict{
		Reason: models.ReasonClean,
		Method: models.MethodRuleBased,
	}}, store, alerts)

	c.Handle(context.Background(), &models.Transaction{
		TransactionID: "tx-e2e-2",
		Amount:        decimal.RequireFromString("50.00"),
		PaymentMethod: models.PaymentCreditCard,
	})

	assert.Empty(t, store.saves)
	assert.Empty(t, alerts.alerts)
	assert.Equal(t, 1.0, testutil.ToFloat64(pm.Transactions))
	assert.Equal(t, 0.0, testutil.ToFloat64(pm.Fraudulent))
	assert.Equal(t, 1.0, testutil.ToFloat64(pm.Clean))
}

func TestHandleSaveFailureStillAlertsAndContinues(t *testing.T) {
	store := &fakeStore{err: errors.New("record lost after retries")}
	alerts := &fakeAlerter{}
	c, pm := newTestConsumer(&fakeScorer{verdict: models.Verdict{Fraud: true, Reason: models.ReasonCrypto}}, store, alerts)

	c.Handle(context.Background(), &models.Transaction{TransactionID: "tx-sf"})

	assert.Equal(t, 1.0, testutil.ToFloat64(pm.SaveFailures))
	assert.Equal(t, []string{"tx-sf"}, alerts.alerts, "alerting is not on the durability path")
	assert.Equal(t, 1.0, testutil.ToFloat64(pm.Fraudulent))
}

func TestHandleAlertFailureIsSwallowed(t *testing.T) {
	store := &fakeStore{}
	alerts := &fakeAlerter{err: errors.New("alert channel down")}
	c, pm := newTestConsumer(&fakeScorer{verdict: models.Verdict{Fraud: true, Reason: models.ReasonCrypto}}, store, alerts)

	c.Handle(context.Background(), &models.Transaction{TransactionID: "tx-af"})

	assert.Len(t, store.saves, 1)
	assert.Equal(t, 1.0, testutil.ToFloat64(pm.Fraudulent), "alert failure never blocks metrics")
}

func TestHandleNeverPropagatesPanics(t *testing.T) {
	c, pm := newTestConsumer(&fakeScorer{panics: true}, &fakeStore{}, &fakeAlerter{})

	assert.NotPanics(t, func() {
		c.Handle(context.Background(), &models.Transaction{TransactionID: "tx-p"})
	})
	assert.Equal(t, 1.0, testutil.ToFloat64(pm.Transactions))
	// The latency timer stopped even on the failure path.
	var m dto.Metric
	if assert.NoError(t, pm.DetectionTime.Write(&m)) {
		assert.Equal(t, uint64(1), m.GetSummary().GetSampleCount())
	}
}
