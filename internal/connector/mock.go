package connector

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strconv"
	"strings"
	"sync/atomic"
)

// Mock is an in-process backend variant used for development setups and as
// the test double for everything above the Connector boundary.
// It allows injecting custom behavior for each operation and tracks call counts.
//
// Its invoice format is "mock:<amount-sat>:<description>".
type Mock struct {
	Alias      string // Reported node alias
	Pubkey     string // Reported node pubkey
	BalanceSat int64  // Reported balance

	// Function hooks - set these to customize behavior
	GetBalanceFunc    func(ctx context.Context) (int64, error)
	GetInfoFunc       func(ctx context.Context) (*Info, error)
	SendPaymentFunc   func(ctx context.Context, invoice string) (*PaymentResult, error)
	DecodeInvoiceFunc func(ctx context.Context, invoice string) (*Invoice, error)

	// Call tracking (must use atomic operations for race-free access)
	sendCalls   int64
	decodeCalls int64
}

func init() {
	Register("mock", func(config []byte) (Connector, error) {
		m := &Mock{}
		if len(config) > 0 {
			if err := json.Unmarshal(config, m); err != nil {
				return nil, err
			}
		}
		return m, nil
	})
}

// GetBalance implements Connector.GetBalance with optional custom behavior.
func (m *Mock) GetBalance(ctx context.Context) (int64, error) {
	if m.GetBalanceFunc != nil {
		return m.GetBalanceFunc(ctx)
	}
	return m.BalanceSat, nil
}

// GetInfo implements Connector.GetInfo with optional custom behavior.
func (m *Mock) GetInfo(ctx context.Context) (*Info, error) {
	if m.GetInfoFunc != nil {
		return m.GetInfoFunc(ctx)
	}
	return &Info{Alias: m.Alias, Pubkey: m.Pubkey}, nil
}

// SendPayment implements Connector.SendPayment with optional custom behavior.
// The default settles any well-formed mock invoice with a deterministic preimage.
func (m *Mock) SendPayment(ctx context.Context, invoice string) (*PaymentResult, error) {
	atomic.AddInt64(&m.sendCalls, 1)
	if m.SendPaymentFunc != nil {
		return m.SendPaymentFunc(ctx, invoice)
	}
	if _, err := m.DecodeInvoice(ctx, invoice); err != nil {
		return nil, err
	}
	sum := sha256.Sum256([]byte(invoice))
	return &PaymentResult{Preimage: hex.EncodeToString(sum[:])}, nil
}

// DecodeInvoice implements Connector.DecodeInvoice with optional custom behavior.
func (m *Mock) DecodeInvoice(ctx context.Context, invoice string) (*Invoice, error) {
	atomic.AddInt64(&m.decodeCalls, 1)
	if m.DecodeInvoiceFunc != nil {
		return m.DecodeInvoiceFunc(ctx, invoice)
	}
	parts := strings.SplitN(invoice, ":", 3)
	if len(parts) < 2 || parts[0] != "mock" {
		return nil, NewError(ReasonInvalidInvoice, "not a mock invoice: %q", invoice)
	}
	amount, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return nil, NewError(ReasonInvalidInvoice, "bad amount in invoice: %q", parts[1])
	}
	inv := &Invoice{AmountSat: amount}
	if len(parts) == 3 {
		inv.Description = parts[2]
	}
	return inv, nil
}

// SendCalls returns how many times SendPayment was invoked
func (m *Mock) SendCalls() int64 { return atomic.LoadInt64(&m.sendCalls) }

// DecodeCalls returns how many times DecodeInvoice was invoked
func (m *Mock) DecodeCalls() int64 { return atomic.LoadInt64(&m.decodeCalls) }
