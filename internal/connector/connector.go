package connector

import "context"

// Info describes the wallet backend servicing an account
type Info struct {
	Alias  string `json:"alias"`  // Node or account alias
	Pubkey string `json:"pubkey"` // Node public key
}

// Invoice is the decoded form of a payment request
type Invoice struct {
	AmountSat   int64  `json:"amount_sat"`  // Invoice amount in satoshis
	Description string `json:"description"` // Invoice memo
}

// PaymentResult is returned for a settled payment
type PaymentResult struct {
	Preimage string `json:"preimage"` // Settlement proof
}

// Connector is the capability set every wallet backend variant implements.
// Callers interact only through this interface, never through backend-specific
// types; any backend failure surfaces as a *ConnectorError.
//
// SendPayment is the only operation with external financial side effects and
// must not be invoked twice for one logical request.
type Connector interface {
	GetBalance(ctx context.Context) (int64, error)
	GetInfo(ctx context.Context) (*Info, error)
	SendPayment(ctx context.Context, invoice string) (*PaymentResult, error)
	DecodeInvoice(ctx context.Context, invoice string) (*Invoice, error)
}
