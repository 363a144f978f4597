package store

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"fraudwatch/pkg/models"
	"fraudwatch/pkg/retry"
	"fraudwatch/pkg/structlog"
)

func TestBuildRecord(t *testing.T) {
	ts := time.Date(2026, 1, 15, 10, 30, 0, 0, time.UTC)
	detected := time.Date(2026, 1, 15, 10, 30, 1, 0, time.UTC)
	tx := &models.Transaction{
		TransactionID: "tx-9",
		UserID:        "u-9",
		Amount:        decimal.RequireFromString("1000.00"),
		MerchantID:    "m-9",
		Timestamp:     ts,
		Location:      "Oslo",
		PaymentMethod: models.PaymentCreditCard,
	}
	verdict := models.Verdict{
		Fraud:       true,
		Probability: 100,
		Reason:      models.ReasonHighValue,
		Method:      models.MethodRuleBased,
	}

	rec := buildRecord(tx, verdict, detected)

	if rec.TransactionID != "tx-9" || rec.UserID != "u-9" || rec.MerchantID != "m-9" {
		t.Errorf("business fields not carried over: %+v", rec)
	}
	if !rec.Amount.Equal(tx.Amount) {
		t.Errorf("Amount = %s, want %s", rec.Amount, tx.Amount)
	}
	if rec.DetectionMethod != models.MethodRuleBased {
		t.Errorf("DetectionMethod = %q, want RULE_BASED", rec.DetectionMethod)
	}
	if rec.FraudProbability != 100 || rec.FlagReason != models.ReasonHighValue {
		t.Errorf("verdict projection wrong: %+v", rec)
	}
	if !rec.DetectedAt.Equal(detected) || !rec.Timestamp.Equal(ts) {
		t.Errorf("timestamps wrong: %+v", rec)
	}
	if rec.ID != 0 {
		t.Errorf("ID = %d, must be unset until the store assigns it", rec.ID)
	}
}

func TestRecoverFromSaveFailureIsLoudAndStructured(t *testing.T) {
	var buf bytes.Buffer
	log := structlog.NewLogger("store-test", structlog.LevelDebug, &buf)
	s := NewFraudStore(nil, retry.DefaultPolicy(), log)

	tx := &models.Transaction{
		TransactionID: "tx-lost",
		Amount:        decimal.NewFromInt(1200),
	}
	verdict := models.Verdict{Fraud: true, Probability: 100, Reason: models.ReasonHighValue}

	s.recoverFromSaveFailure(tx, verdict, errAlwaysDown)

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("recovery log is not structured JSON: %v", err)
	}
	if entry["level"] != "ERROR" {
		t.Errorf("level = %v, want ERROR", entry["level"])
	}
	if entry["event_type"] != "critical" {
		t.Errorf("event_type = %v, want critical", entry["event_type"])
	}
	for _, key := range []string{"transaction_id", "amount", "fraud_probability", "error"} {
		if _, ok := entry[key]; !ok {
			t.Errorf("recovery log missing %q", key)
		}
	}
}

var errAlwaysDown = &downError{}

type downError struct{}

func (*downError) Error() string { return "store unavailable" }
