package allowance

import (
	"errors"  // Error values
	"strings" // Host normalization
	"sync"    // Per-origin serialization
	"time"    // Debit timestamps

	"github.com/sirupsen/logrus" // Logging library
	"gorm.io/gorm"               // GORM ORM library

	"lightning_wallet/internal/domain"  // Importing domain models
	"lightning_wallet/internal/journal" // Payment history, source of truth for stats
)

// Deny reasons returned by Authorize
const (
	DenyNoAllowance        = "NoAllowance"        // No budget was ever granted for the origin
	DenyInsufficientBudget = "InsufficientBudget" // Remaining budget below the requested amount
)

var (
	ErrNotFound      = errors.New("allowance: origin has no allowance")
	ErrInvalidBudget = errors.New("allowance: budget must be positive")
	// Returned when a debit would push the remaining budget negative. Debit is
	// only reachable after a successful Authorize under the same origin lock,
	// so hitting this means the two stores diverged.
	ErrBudgetExceeded = errors.New("allowance: debit exceeds remaining budget")
)

// Decision is the outcome of an authorization check
type Decision struct {
	Allowed bool   // Whether the payment may proceed
	Reason  string // Deny reason, empty when allowed
}

// Stats are the derived, read-only numbers for one allowance. They are
// recomputed from the journal on every read; nothing here is cached in the
// allowance row itself.
type Stats struct {
	UsedBudget     int64 // TotalBudget - RemainingBudget
	PercentageUsed int   // Rounded, 0 when no budget granted
	PaymentsCount  int64 // Journal records for the host
	PaymentsAmount int64 // Sum of journal record amounts for the host
}

// Ledger owns the per-origin allowance records and decides whether a payment
// request is covered by a previously granted budget. The authorize-then-debit
// sequence for one origin must run under the lock returned by Acquire;
// different origins proceed independently.
type Ledger struct {
	db      *gorm.DB
	journal *journal.Journal
	locks   sync.Map // origin -> *sync.Mutex
}

// New creates a Ledger backed by the given database and journal
func New(db *gorm.DB, j *journal.Journal) *Ledger {
	return &Ledger{db: db, journal: j}
}

// NormalizeHost canonicalizes an origin host for lookup
func NormalizeHost(host string) string {
	return strings.ToLower(strings.TrimSpace(host))
}

// Acquire locks the origin's critical section and returns the unlock func.
// The caller holds it from Authorize through Debit or release so two requests
// for one origin cannot both pass the budget check against the same remaining
// amount.
func (l *Ledger) Acquire(origin string) func() {
	v, _ := l.locks.LoadOrStore(NormalizeHost(origin), &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

// Grant creates an allowance for the origin or tops up an existing one.
// Total and remaining move together so the used budget is unchanged.
func (l *Ledger) Grant(origin string, budget int64) (*domain.Allowance, error) {
	if budget < 0 {
		return nil, ErrInvalidBudget
	}
	host := NormalizeHost(origin)
	var a domain.Allowance
	err := l.db.Transaction(func(tx *gorm.DB) error {
		err := tx.Where("host = ?", host).First(&a).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			a = domain.Allowance{Host: host, TotalBudget: budget, RemainingBudget: budget}
			return tx.Create(&a).Error
		}
		if err != nil {
			return err
		}
		a.TotalBudget += budget
		a.RemainingBudget += budget
		return tx.Model(&a).Updates(map[string]any{
			"total_budget":     a.TotalBudget,
			"remaining_budget": a.RemainingBudget,
		}).Error
	})
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// Get returns the allowance for the origin
func (l *Ledger) Get(origin string) (*domain.Allowance, error) {
	var a domain.Allowance
	err := l.db.Where("host = ?", NormalizeHost(origin)).First(&a).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// Authorize decides whether a payment of amount may proceed for the origin.
// A zero-budget allowance is a valid blocked state and denies with
// InsufficientBudget. The caller must hold the origin lock.
func (l *Ledger) Authorize(origin string, amount int64) (Decision, error) {
	a, err := l.Get(origin)
	if errors.Is(err, ErrNotFound) {
		return Decision{Allowed: false, Reason: DenyNoAllowance}, nil
	}
	if err != nil {
		return Decision{}, err
	}
	if a.RemainingBudget < amount {
		return Decision{Allowed: false, Reason: DenyInsufficientBudget}, nil
	}
	return Decision{Allowed: true}, nil
}

// Debit decrements the origin's remaining budget
func (l *Ledger) Debit(origin string, amount int64) error {
	return l.DebitTx(l.db, origin, amount)
}

// DebitTx decrements the remaining budget inside an existing transaction and
// stamps the last payment time. The WHERE clause enforces the non-negative
// invariant at the database level; the caller must hold the origin lock and
// have a successful Authorize behind it.
func (l *Ledger) DebitTx(tx *gorm.DB, origin string, amount int64) error {
	host := NormalizeHost(origin)
	res := tx.Model(&domain.Allowance{}).
		Where("host = ? AND remaining_budget >= ?", host, amount).
		Updates(map[string]any{
			"remaining_budget": gorm.Expr("remaining_budget - ?", amount),
			"last_payment_at":  time.Now().UnixMilli(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		// Distinguish a missing allowance from a budget violation without
		// leaving the caller's transaction snapshot
		var a domain.Allowance
		err := tx.Where("host = ?", host).First(&a).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		return ErrBudgetExceeded
	}
	return nil
}

// Stats computes the derived numbers for the origin by joining the journal at
// query time. A mismatch between the allowance row and the journal's settled
// sum is logged as an integrity fault rather than silently trusting one side.
func (l *Ledger) Stats(origin string) (*Stats, error) {
	a, err := l.Get(origin)
	if err != nil {
		return nil, err
	}
	count, err := l.journal.CountByHost(a.Host)
	if err != nil {
		return nil, err
	}
	amount, err := l.journal.SumAmountByHost(a.Host)
	if err != nil {
		return nil, err
	}
	settled, err := l.journal.SumSettledByHost(a.Host)
	if err != nil {
		return nil, err
	}
	if settled != a.UsedBudget() {
		logrus.WithFields(logrus.Fields{
			"host":        a.Host,         // Affected origin
			"used_budget": a.UsedBudget(), // Ledger view
			"journal_sum": settled,        // Journal view
		}).Error("Allowance ledger and payment journal diverged")
	}
	return &Stats{
		UsedBudget:     a.UsedBudget(),
		PercentageUsed: a.PercentageUsed(),
		PaymentsCount:  count,
		PaymentsAmount: amount,
	}, nil
}

// List returns all allowances, most recently used first. The ordering is a
// user-facing contract for the reporting UI.
func (l *Ledger) List() ([]domain.Allowance, error) {
	var allowances []domain.Allowance
	err := l.db.Order("last_payment_at desc, id desc").Find(&allowances).Error
	return allowances, err
}

// Remove deletes the origin's allowance. Journal history is untouched:
// allowances may be recreated independently of payment history.
func (l *Ledger) Remove(origin string) error {
	res := l.db.Where("host = ?", NormalizeHost(origin)).Delete(&domain.Allowance{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// RemoveAllTx deletes every allowance inside an existing transaction. Used
// when the last account is removed and nothing can service the budgets.
func (l *Ledger) RemoveAllTx(tx *gorm.DB) error {
	return tx.Where("1 = 1").Delete(&domain.Allowance{}).Error
}
