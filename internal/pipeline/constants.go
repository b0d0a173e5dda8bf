package pipeline

import "github.com/shopspring/decimal"

// Canonical field names every source is normalized into.
const (
	FieldTransactionID = "transaction_id"
	FieldProduct       = "product"
	FieldAmount        = "amount"
)

// DefaultAnomalyThreshold is the amount above which a transaction is flagged.
// An amount equal to the threshold is not an anomaly.
var DefaultAnomalyThreshold = decimal.NewFromInt(10000)

// Shape of the record synthesized by the remote-call extractor.
const RemoteProduct = "SaaS Subscription"

var RemoteAmount = decimal.RequireFromString("99.00")
