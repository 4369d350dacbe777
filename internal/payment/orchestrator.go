package payment

import (
	"context" // Request context and connector timeout
	"errors"  // Error values
	"fmt"     // Error wrapping
	"time"    // Connector timeout bound

	"github.com/sirupsen/logrus" // Logging library
	"gorm.io/gorm"               // GORM ORM library

	"lightning_wallet/internal/accounts"  // Active account resolution
	"lightning_wallet/internal/allowance" // Budget authorization
	"lightning_wallet/internal/connector" // Wallet backend capability
	"lightning_wallet/internal/domain"    // Importing domain models
	"lightning_wallet/internal/journal"   // Payment history
	"lightning_wallet/internal/metrics"   // Outcome counters
)

var (
	ErrInvalidAmount = errors.New("payment: amount must be positive")
	// ErrStorage wraps persistence failures; handlers surface it as a generic
	// failure without leaking internal detail
	ErrStorage = errors.New("payment: storage failure")
)

// DeniedError reports an authorization denial. Nothing was mutated and the
// connector was never called.
type DeniedError struct {
	Reason string // NoAllowance or InsufficientBudget
}

func (e *DeniedError) Error() string {
	return "payment: denied: " + e.Reason
}

// Result describes a settled payment
type Result struct {
	Preimage    string // Settlement proof from the backend
	Host        string // Normalized origin the budget was debited for
	AmountSat   int64  // Invoice amount in satoshis
	Description string // Invoice memo
	AccountID   string // Account that serviced the payment
}

// Orchestrator is the single call path tying the ledger, the active account's
// connector and the journal together. It owns no data of its own, only
// transient request context.
type Orchestrator struct {
	db       *gorm.DB
	accounts *accounts.Store
	ledger   *allowance.Ledger
	journal  *journal.Journal
	metrics  *metrics.Payments
	timeout  time.Duration
	onChange func(host string) // Invoked after any journal/ledger mutation for the host
}

// NewOrchestrator wires the payment call path. metrics and onChange may be
// nil; timeout bounds the backend payment call.
func NewOrchestrator(db *gorm.DB, acc *accounts.Store, ledger *allowance.Ledger, j *journal.Journal, m *metrics.Payments, timeout time.Duration, onChange func(host string)) *Orchestrator {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if onChange == nil {
		onChange = func(string) {}
	}
	return &Orchestrator{db: db, accounts: acc, ledger: ledger, journal: j, metrics: m, timeout: timeout, onChange: onChange}
}

// SendPayment authorizes, performs and records one payment request from an
// untrusted origin. Denied requests never reach the connector and leave no
// journal entry; connector failures are journaled as failed but never debit
// the allowance; a settled payment debits and journals as one unit.
func (o *Orchestrator) SendPayment(ctx context.Context, origin, invoice string) (*Result, error) {
	host, err := NormalizeOrigin(origin)
	if err != nil {
		return nil, err
	}

	// Snapshot the active account's connector before authorization begins;
	// a mid-flight active-account swap must not change which backend pays.
	acct, conn, err := o.accounts.ActiveConnector()
	if err != nil {
		return nil, err
	}

	inv, err := conn.DecodeInvoice(ctx, invoice)
	if err != nil {
		return nil, connector.AsConnectorError(err)
	}
	if inv.AmountSat <= 0 {
		return nil, ErrInvalidAmount
	}

	// The origin's critical section spans the budget check through the debit
	// or release, so two requests cannot both pass against the same budget.
	// The connector call inside is bounded by the timeout below, so the lock
	// cannot be starved by a hung backend.
	unlock := o.ledger.Acquire(host)
	defer unlock()

	decision, err := o.ledger.Authorize(host, inv.AmountSat)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	if !decision.Allowed {
		o.metrics.Record(metrics.OutcomeDenied, inv.AmountSat)
		logrus.WithFields(logrus.Fields{
			"host":   host,            // Requesting origin
			"amount": inv.AmountSat,   // Requested amount
			"reason": decision.Reason, // Deny reason
		}).Info("Payment denied")
		return nil, &DeniedError{Reason: decision.Reason}
	}

	payCtx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()
	payRes, payErr := conn.SendPayment(payCtx, invoice)
	if payErr != nil {
		cerr := connector.AsConnectorError(payErr)
		// No debit on failure; the journal still records the attempt for audit
		rec := &domain.Payment{
			Host:        host,
			TotalAmount: inv.AmountSat,
			Description: inv.Description,
			Outcome:     domain.PaymentFailed,
		}
		if err := o.journal.Append(rec); err != nil {
			logrus.WithFields(logrus.Fields{"host": host, "error": err.Error()}).Error("Failed to journal a failed payment")
		}
		o.metrics.Record(metrics.OutcomeFailed, inv.AmountSat)
		logrus.WithFields(logrus.Fields{
			"host":       host,                // Requesting origin
			"account_id": acct.ID,             // Servicing account
			"amount":     inv.AmountSat,       // Requested amount
			"reason":     string(cerr.Reason), // Connector failure reason
		}).Warn("Payment failed")
		o.onChange(host)
		return nil, cerr
	}

	// Debit and journal entry commit as a unit: either the allowance loses
	// the amount and the settled record exists, or neither happened.
	rec := &domain.Payment{
		Host:        host,
		TotalAmount: inv.AmountSat,
		Description: inv.Description,
		Preimage:    payRes.Preimage,
		Outcome:     domain.PaymentSettled,
	}
	err = o.db.Transaction(func(tx *gorm.DB) error {
		if err := o.ledger.DebitTx(tx, host, inv.AmountSat); err != nil {
			return err
		}
		return o.journal.AppendTx(tx, rec)
	})
	if err != nil {
		// The satoshis already left the backend; this is an integrity fault,
		// not a deniable request
		logrus.WithFields(logrus.Fields{
			"host":       host,          // Requesting origin
			"account_id": acct.ID,       // Servicing account
			"amount":     inv.AmountSat, // Settled amount
			"error":      err.Error(),   // Storage failure
		}).Error("Payment settled but bookkeeping failed")
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}

	o.metrics.Record(metrics.OutcomeSettled, inv.AmountSat)
	logrus.WithFields(logrus.Fields{
		"host":       host,          // Requesting origin
		"account_id": acct.ID,       // Servicing account
		"amount":     inv.AmountSat, // Settled amount
	}).Info("Payment settled")
	o.onChange(host)
	return &Result{
		Preimage:    payRes.Preimage,
		Host:        host,
		AmountSat:   inv.AmountSat,
		Description: inv.Description,
		AccountID:   acct.ID,
	}, nil
}
