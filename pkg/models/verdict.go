package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Verdict reason codes.
const (
	ReasonClean      = "CLEAN"
	ReasonHighValue  = "HIGH_VALUE"
	ReasonCrypto     = "CRYPTO"
	ReasonMLHighProb = "ML_HIGH_PROBABILITY"
)

// Detection methods recorded on persisted fraud records.
const (
	MethodRuleBased = "RULE_BASED"
	MethodMLModel   = "ML_MODEL"
)

// Verdict is the scorer's output for a single transaction. Probability is on
// the display scale [0,100]. Constructed once per transaction and consumed
// immediately by the pipeline; persisted data is copied into FraudRecord.
type Verdict struct {
	Fraud       bool
	Probability float64
	Reason      string
	Method      string
}

// FraudRecord is the persisted projection of a flagged transaction. A record
// exists iff the verdict was fraud and the save ultimately succeeded.
type FraudRecord struct {
	ID               int64
	TransactionID    string
	UserID           string
	Amount           decimal.Decimal
	MerchantID       string
	Timestamp        time.Time
	Location         string
	PaymentMethod    PaymentMethod
	DetectionMethod  string
	FraudProbability float64
	DetectedAt       time.Time
	FlagReason       string
}
