package allowance

import (
	"errors"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"lightning_wallet/internal/domain"
	"lightning_wallet/internal/journal"
)

func newTestLedger(t *testing.T) (*Ledger, *journal.Journal, *gorm.DB) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if err := db.AutoMigrate(&domain.Allowance{}, &domain.Payment{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	j := journal.New(db)
	return New(db, j), j, db
}

func TestLedger_GrantCreatesAndTopsUp(t *testing.T) {
	ledger, _, _ := newTestLedger(t)

	a, err := ledger.Grant("Example.com", 1000)
	if err != nil {
		t.Fatalf("Grant failed: %v", err)
	}
	if a.Host != "example.com" {
		t.Errorf("Expected lowercased host, got %q", a.Host)
	}
	if a.TotalBudget != 1000 || a.RemainingBudget != 1000 {
		t.Errorf("Expected 1000/1000, got %d/%d", a.TotalBudget, a.RemainingBudget)
	}

	// Top-up moves total and remaining together
	if err := ledger.Debit("example.com", 300); err != nil {
		t.Fatalf("Debit failed: %v", err)
	}
	a, err = ledger.Grant("example.com", 500)
	if err != nil {
		t.Fatalf("Grant top-up failed: %v", err)
	}
	if a.TotalBudget != 1500 || a.RemainingBudget != 1200 {
		t.Errorf("Expected 1500/1200 after top-up, got %d/%d", a.TotalBudget, a.RemainingBudget)
	}
	if a.UsedBudget() != 300 {
		t.Errorf("Top-up must not change used budget, got %d", a.UsedBudget())
	}
}

func TestLedger_AuthorizeDecisions(t *testing.T) {
	ledger, _, _ := newTestLedger(t)

	// No allowance granted yet
	dec, err := ledger.Authorize("unknown.com", 10)
	if err != nil {
		t.Fatalf("Authorize failed: %v", err)
	}
	if dec.Allowed || dec.Reason != DenyNoAllowance {
		t.Errorf("Expected NoAllowance denial, got %+v", dec)
	}

	if _, err := ledger.Grant("shop.com", 100); err != nil {
		t.Fatalf("Grant failed: %v", err)
	}

	// Within budget
	dec, err = ledger.Authorize("SHOP.com", 100)
	if err != nil {
		t.Fatalf("Authorize failed: %v", err)
	}
	if !dec.Allowed {
		t.Errorf("Expected allow, got %+v", dec)
	}

	// Over budget
	dec, err = ledger.Authorize("shop.com", 101)
	if err != nil {
		t.Fatalf("Authorize failed: %v", err)
	}
	if dec.Allowed || dec.Reason != DenyInsufficientBudget {
		t.Errorf("Expected InsufficientBudget denial, got %+v", dec)
	}
}

func TestLedger_ZeroBudgetIsBlocked(t *testing.T) {
	ledger, _, _ := newTestLedger(t)

	a, err := ledger.Grant("blocked.com", 0)
	if err != nil {
		t.Fatalf("Grant failed: %v", err)
	}
	// Zero total must never divide by zero in read paths
	if a.PercentageUsed() != 0 {
		t.Errorf("Expected 0%% for zero budget, got %d", a.PercentageUsed())
	}

	dec, err := ledger.Authorize("blocked.com", 1)
	if err != nil {
		t.Fatalf("Authorize failed: %v", err)
	}
	if dec.Allowed || dec.Reason != DenyInsufficientBudget {
		t.Errorf("Expected InsufficientBudget for zero budget, got %+v", dec)
	}
}

func TestLedger_DebitInvariants(t *testing.T) {
	ledger, _, _ := newTestLedger(t)

	if _, err := ledger.Grant("example.com", 1000); err != nil {
		t.Fatalf("Grant failed: %v", err)
	}

	// remaining <= total and used + remaining == total after every debit
	for _, amount := range []int64{400, 100, 250} {
		if err := ledger.Debit("example.com", amount); err != nil {
			t.Fatalf("Debit %d failed: %v", amount, err)
		}
		a, err := ledger.Get("example.com")
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if a.RemainingBudget > a.TotalBudget {
			t.Errorf("remaining %d exceeds total %d", a.RemainingBudget, a.TotalBudget)
		}
		if a.UsedBudget()+a.RemainingBudget != a.TotalBudget {
			t.Errorf("used %d + remaining %d != total %d", a.UsedBudget(), a.RemainingBudget, a.TotalBudget)
		}
		if a.LastPaymentAt == 0 {
			t.Error("Debit must stamp LastPaymentAt")
		}
	}

	// 250 remaining; over-debit must be refused, never clamped negative
	if err := ledger.Debit("example.com", 251); !errors.Is(err, ErrBudgetExceeded) {
		t.Errorf("Expected ErrBudgetExceeded, got %v", err)
	}
	a, _ := ledger.Get("example.com")
	if a.RemainingBudget != 250 {
		t.Errorf("Refused debit must not change remaining, got %d", a.RemainingBudget)
	}

	// Unknown origin
	if err := ledger.Debit("nobody.com", 1); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestLedger_DebitTxSeesTransactionState(t *testing.T) {
	ledger, _, db := newTestLedger(t)

	err := db.Transaction(func(tx *gorm.DB) error {
		// The allowance exists only inside this transaction; the refusal
		// diagnosis must read the same uncommitted state
		if err := tx.Create(&domain.Allowance{Host: "pending.com", TotalBudget: 100, RemainingBudget: 100}).Error; err != nil {
			return err
		}
		if err := ledger.DebitTx(tx, "pending.com", 101); !errors.Is(err, ErrBudgetExceeded) {
			t.Errorf("Expected ErrBudgetExceeded, got %v", err)
		}
		if err := ledger.DebitTx(tx, "missing.com", 1); !errors.Is(err, ErrNotFound) {
			t.Errorf("Expected ErrNotFound, got %v", err)
		}
		return ledger.DebitTx(tx, "pending.com", 60)
	})
	if err != nil {
		t.Fatalf("Transaction failed: %v", err)
	}

	a, err := ledger.Get("pending.com")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if a.RemainingBudget != 40 {
		t.Errorf("Expected remaining 40 after commit, got %d", a.RemainingBudget)
	}
}

func TestLedger_StatsJoinsJournal(t *testing.T) {
	ledger, j, _ := newTestLedger(t)

	if _, err := ledger.Grant("example.com", 1000); err != nil {
		t.Fatalf("Grant failed: %v", err)
	}
	if err := ledger.Debit("example.com", 400); err != nil {
		t.Fatalf("Debit failed: %v", err)
	}
	if err := j.Append(&domain.Payment{Host: "Example.com", TotalAmount: 400, Outcome: domain.PaymentSettled}); err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	if err := j.Append(&domain.Payment{Host: "example.com", TotalAmount: 100, Outcome: domain.PaymentFailed}); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	stats, err := ledger.Stats("example.com")
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats.UsedBudget != 400 {
		t.Errorf("Expected used 400, got %d", stats.UsedBudget)
	}
	if stats.PercentageUsed != 40 {
		t.Errorf("Expected 40%%, got %d", stats.PercentageUsed)
	}
	if stats.PaymentsCount != 2 {
		t.Errorf("Expected 2 payments, got %d", stats.PaymentsCount)
	}
	if stats.PaymentsAmount != 500 {
		t.Errorf("Expected 500 total, got %d", stats.PaymentsAmount)
	}
}

func TestLedger_ListOrdersByLastPayment(t *testing.T) {
	ledger, _, db := newTestLedger(t)

	if _, err := ledger.Grant("first.com", 100); err != nil {
		t.Fatalf("Grant failed: %v", err)
	}
	if _, err := ledger.Grant("second.com", 100); err != nil {
		t.Fatalf("Grant failed: %v", err)
	}

	// first.com used at T1, second.com at T2 > T1
	if err := db.Model(&domain.Allowance{}).Where("host = ?", "first.com").Update("last_payment_at", 1000).Error; err != nil {
		t.Fatalf("update: %v", err)
	}
	if err := db.Model(&domain.Allowance{}).Where("host = ?", "second.com").Update("last_payment_at", 2000).Error; err != nil {
		t.Fatalf("update: %v", err)
	}

	list, err := ledger.List()
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("Expected 2 allowances, got %d", len(list))
	}
	if list[0].Host != "second.com" || list[1].Host != "first.com" {
		t.Errorf("Expected most recently used first, got %q then %q", list[0].Host, list[1].Host)
	}
}

func TestLedger_RemoveAllClosesEveryAllowance(t *testing.T) {
	ledger, j, db := newTestLedger(t)

	for _, host := range []string{"one.com", "two.com", "three.com"} {
		if _, err := ledger.Grant(host, 100); err != nil {
			t.Fatalf("Grant failed: %v", err)
		}
	}
	if err := j.Append(&domain.Payment{Host: "one.com", TotalAmount: 10, Outcome: domain.PaymentSettled}); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	if err := db.Transaction(func(tx *gorm.DB) error { return ledger.RemoveAllTx(tx) }); err != nil {
		t.Fatalf("RemoveAllTx failed: %v", err)
	}

	list, err := ledger.List()
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(list) != 0 {
		t.Errorf("Expected every allowance closed, %d left", len(list))
	}
	// Journal history survives the wholesale close too
	count, err := j.CountByHost("one.com")
	if err != nil {
		t.Fatalf("CountByHost failed: %v", err)
	}
	if count != 1 {
		t.Errorf("Expected journal record to survive, got count %d", count)
	}
}

func TestLedger_RemoveKeepsJournal(t *testing.T) {
	ledger, j, _ := newTestLedger(t)

	if _, err := ledger.Grant("example.com", 100); err != nil {
		t.Fatalf("Grant failed: %v", err)
	}
	if err := j.Append(&domain.Payment{Host: "example.com", TotalAmount: 50, Outcome: domain.PaymentSettled}); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	if err := ledger.Remove("EXAMPLE.com"); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if _, err := ledger.Get("example.com"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound after remove, got %v", err)
	}

	// Journal history survives allowance removal
	count, err := j.CountByHost("example.com")
	if err != nil {
		t.Fatalf("CountByHost failed: %v", err)
	}
	if count != 1 {
		t.Errorf("Expected journal record to survive, got count %d", count)
	}

	// Removing again reports not found
	if err := ledger.Remove("example.com"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}
