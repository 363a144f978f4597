package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// PaymentMethod enumerates the payment instruments seen on the wire.
// Unknown values are carried through as-is; only CRYPTO has rule semantics.
type PaymentMethod string

const (
	PaymentCreditCard   PaymentMethod = "CREDIT_CARD"
	PaymentDebitCard    PaymentMethod = "DEBIT_CARD"
	PaymentPayPal       PaymentMethod = "PAYPAL"
	PaymentBankTransfer PaymentMethod = "BANK_TRANSFER"
	PaymentCrypto       PaymentMethod = "CRYPTO"
)

// ErrMalformedPayload marks input that will never deserialize. Messages
// failing with it skip retries and go straight to the dead-letter channel.
var ErrMalformedPayload = errors.New("malformed transaction payload")

// Transaction is the immutable wire record consumed from the inbound channel.
// It is deserialized once per message, read-only through the pipeline, and
// not retained after handling completes.
type Transaction struct {
	TransactionID string          `json:"transactionID"`
	UserID        string          `json:"userId"`
	Amount        decimal.Decimal `json:"amount"`
	MerchantID    string          `json:"merchantId"`
	Timestamp     time.Time       `json:"timestamp"`
	Location      string          `json:"location"`
	PaymentMethod PaymentMethod   `json:"paymentMethod"`

	// Anonymized feature block consumed only by the scorer:
	// seconds since the first observed transaction plus 28 PCA components.
	Time float32 `json:"time"`
	V1   float32 `json:"v1"`
	V2   float32 `json:"v2"`
	V3   float32 `json:"v3"`
	V4   float32 `json:"v4"`
	V5   float32 `json:"v5"`
	V6   float32 `json:"v6"`
	V7   float32 `json:"v7"`
	V8   float32 `json:"v8"`
	V9   float32 `json:"v9"`
	V10  float32 `json:"v10"`
	V11  float32 `json:"v11"`
	V12  float32 `json:"v12"`
	V13  float32 `json:"v13"`
	V14  float32 `json:"v14"`
	V15  float32 `json:"v15"`
	V16  float32 `json:"v16"`
	V17  float32 `json:"v17"`
	V18  float32 `json:"v18"`
	V19  float32 `json:"v19"`
	V20  float32 `json:"v20"`
	V21  float32 `json:"v21"`
	V22  float32 `json:"v22"`
	V23  float32 `json:"v23"`
	V24  float32 `json:"v24"`
	V25  float32 `json:"v25"`
	V26  float32 `json:"v26"`
	V27  float32 `json:"v27"`
	V28  float32 `json:"v28"`
}

// PCAComponents returns the v1..v28 block in order.
func (t *Transaction) PCAComponents() []float32 {
	return []float32{
		t.V1, t.V2, t.V3, t.V4, t.V5, t.V6, t.V7,
		t.V8, t.V9, t.V10, t.V11, t.V12, t.V13, t.V14,
		t.V15, t.V16, t.V17, t.V18, t.V19, t.V20, t.V21,
		t.V22, t.V23, t.V24, t.V25, t.V26, t.V27, t.V28,
	}
}

// DecodeTransaction parses a raw inbound payload. Any JSON-level failure is
// wrapped with ErrMalformedPayload so the recovery layer can classify it as
// non-retryable.
func DecodeTransaction(payload []byte) (*Transaction, error) {
	var tx Transaction
	if err := json.Unmarshal(payload, &tx); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if tx.TransactionID == "" {
		return nil, fmt.Errorf("%w: missing transactionID", ErrMalformedPayload)
	}
	return &tx, nil
}

// Encode serializes the transaction back to its wire form. Used by the alert
// publisher, which forwards the original record downstream.
func (t *Transaction) Encode() ([]byte, error) {
	return json.Marshal(t)
}
