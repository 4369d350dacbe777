package payment

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"lightning_wallet/internal/accounts"
	"lightning_wallet/internal/allowance"
	"lightning_wallet/internal/connector"
	"lightning_wallet/internal/domain"
	"lightning_wallet/internal/journal"
	"lightning_wallet/internal/keystore"
	"lightning_wallet/internal/utils"
)

var (
	vaultOnce sync.Once
	testVault *keystore.Vault
)

func sharedVault(t *testing.T) *keystore.Vault {
	t.Helper()
	vaultOnce.Do(func() {
		v, err := keystore.New("test-passphrase")
		if err != nil {
			t.Fatalf("keystore.New failed: %v", err)
		}
		testVault = v
	})
	return testVault
}

type harness struct {
	db      *gorm.DB
	orch    *Orchestrator
	ledger  *allowance.Ledger
	journal *journal.Journal
	mock    *connector.Mock
}

// newHarness wires a full engine around one mock-backed account. Each test
// registers its own connector kind so the hook-carrying mock instance is
// reachable from the test body.
func newHarness(t *testing.T) *harness {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if err := db.AutoMigrate(&domain.Account{}, &domain.Allowance{}, &domain.Payment{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	mock := &connector.Mock{}
	kind := "test/" + t.Name()
	connector.Register(kind, func([]byte) (connector.Connector, error) { return mock, nil })

	j := journal.New(db)
	ledger := allowance.New(db, j)
	store, err := accounts.New(db, sharedVault(t), &utils.SessionEpoch{}, ledger)
	if err != nil {
		t.Fatalf("accounts.New failed: %v", err)
	}
	if _, err := store.Add("Test Wallet", kind, []byte(`{}`)); err != nil {
		t.Fatalf("Add account failed: %v", err)
	}

	orch := NewOrchestrator(db, store, ledger, j, nil, 200*time.Millisecond, nil)
	return &harness{db: db, orch: orch, ledger: ledger, journal: j, mock: mock}
}

func TestSendPayment_SettlesAndDebits(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	if _, err := h.ledger.Grant("example.com", 1000); err != nil {
		t.Fatalf("Grant failed: %v", err)
	}

	res, err := h.orch.SendPayment(ctx, "https://Example.com/checkout", "mock:400:coffee")
	if err != nil {
		t.Fatalf("SendPayment failed: %v", err)
	}
	if res.Preimage == "" || res.Host != "example.com" || res.AmountSat != 400 {
		t.Errorf("Unexpected result: %+v", res)
	}

	a, err := h.ledger.Get("example.com")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if a.RemainingBudget != 600 {
		t.Errorf("Expected remaining 600, got %d", a.RemainingBudget)
	}

	payments, err := h.journal.QueryByHost("example.com")
	if err != nil {
		t.Fatalf("QueryByHost failed: %v", err)
	}
	if len(payments) != 1 {
		t.Fatalf("Expected 1 journal record, got %d", len(payments))
	}
	if payments[0].Outcome != domain.PaymentSettled || payments[0].TotalAmount != 400 {
		t.Errorf("Unexpected record: %+v", payments[0])
	}

	// A follow-up over the remaining budget is denied and changes nothing
	_, err = h.orch.SendPayment(ctx, "example.com", "mock:700:too-much")
	var denied *DeniedError
	if !errors.As(err, &denied) || denied.Reason != allowance.DenyInsufficientBudget {
		t.Fatalf("Expected InsufficientBudget denial, got %v", err)
	}
	a, _ = h.ledger.Get("example.com")
	if a.RemainingBudget != 600 {
		t.Errorf("Denied request must not debit, remaining %d", a.RemainingBudget)
	}
	payments, _ = h.journal.QueryByHost("example.com")
	if len(payments) != 1 {
		t.Errorf("Denied request must not journal, got %d records", len(payments))
	}
	if h.mock.SendCalls() != 1 {
		t.Errorf("Denied request must not call the connector, got %d sends", h.mock.SendCalls())
	}
}

func TestSendPayment_NoAllowance(t *testing.T) {
	h := newHarness(t)

	_, err := h.orch.SendPayment(context.Background(), "stranger.com", "mock:10:x")
	var denied *DeniedError
	if !errors.As(err, &denied) || denied.Reason != allowance.DenyNoAllowance {
		t.Fatalf("Expected NoAllowance denial, got %v", err)
	}
	if h.mock.SendCalls() != 0 {
		t.Error("Denied request must never reach the connector")
	}
	count, _ := h.journal.CountByHost("stranger.com")
	if count != 0 {
		t.Error("Denied request must not journal")
	}
}

func TestSendPayment_InvalidAmount(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	if _, err := h.ledger.Grant("example.com", 100); err != nil {
		t.Fatalf("Grant failed: %v", err)
	}
	for _, invoice := range []string{"mock:0:zero", "mock:-5:negative"} {
		if _, err := h.orch.SendPayment(ctx, "example.com", invoice); !errors.Is(err, ErrInvalidAmount) {
			t.Errorf("SendPayment(%q): expected ErrInvalidAmount, got %v", invoice, err)
		}
	}
	if h.mock.SendCalls() != 0 {
		t.Error("Invalid amounts must never reach the connector")
	}
}

func TestSendPayment_ConnectorFailure(t *testing.T) {
	h := newHarness(t)
	h.mock.SendPaymentFunc = func(ctx context.Context, invoice string) (*connector.PaymentResult, error) {
		return nil, connector.NewError(connector.ReasonRejected, "no route found")
	}
	ctx := context.Background()

	if _, err := h.ledger.Grant("example.com", 1000); err != nil {
		t.Fatalf("Grant failed: %v", err)
	}

	_, err := h.orch.SendPayment(ctx, "example.com", "mock:400:doomed")
	var cerr *connector.ConnectorError
	if !errors.As(err, &cerr) || cerr.Reason != connector.ReasonRejected {
		t.Fatalf("Expected rejected ConnectorError, got %v", err)
	}

	// No debit on failure
	a, _ := h.ledger.Get("example.com")
	if a.RemainingBudget != 1000 {
		t.Errorf("Failed payment must not debit, remaining %d", a.RemainingBudget)
	}
	// But the attempt is journaled for audit
	payments, _ := h.journal.QueryByHost("example.com")
	if len(payments) != 1 || payments[0].Outcome != domain.PaymentFailed {
		t.Fatalf("Expected one failed record, got %+v", payments)
	}
	if payments[0].Preimage != "" {
		t.Error("Failed record must carry no preimage")
	}
}

func TestSendPayment_TimeoutReleasesOrigin(t *testing.T) {
	h := newHarness(t)
	h.mock.SendPaymentFunc = func(ctx context.Context, invoice string) (*connector.PaymentResult, error) {
		<-ctx.Done() // Hang until the orchestrator's deadline fires
		return nil, ctx.Err()
	}
	ctx := context.Background()

	if _, err := h.ledger.Grant("example.com", 1000); err != nil {
		t.Fatalf("Grant failed: %v", err)
	}

	_, err := h.orch.SendPayment(ctx, "example.com", "mock:100:slow")
	var cerr *connector.ConnectorError
	if !errors.As(err, &cerr) || cerr.Reason != connector.ReasonTimeout {
		t.Fatalf("Expected timeout ConnectorError, got %v", err)
	}

	// The origin lock was released with the timeout; a fast backend settles
	h.mock.SendPaymentFunc = nil
	done := make(chan error, 1)
	go func() {
		_, err := h.orch.SendPayment(ctx, "example.com", "mock:100:fast")
		done <- err
	}()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Follow-up payment failed: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Origin lock starved after timeout")
	}
}

func TestSendPayment_ConcurrentSameOrigin(t *testing.T) {
	h := newHarness(t)
	h.mock.SendPaymentFunc = func(ctx context.Context, invoice string) (*connector.PaymentResult, error) {
		time.Sleep(30 * time.Millisecond) // Widen the race window
		return &connector.PaymentResult{Preimage: "aa"}, nil
	}
	ctx := context.Background()

	// Budget covers exactly one of the two requests
	if _, err := h.ledger.Grant("example.com", 500); err != nil {
		t.Fatalf("Grant failed: %v", err)
	}

	errs := make(chan error, 2)
	for i := 0; i < 2; i++ {
		go func() {
			_, err := h.orch.SendPayment(ctx, "example.com", "mock:400:race")
			errs <- err
		}()
	}

	var settled, deniedCount int
	for i := 0; i < 2; i++ {
		err := <-errs
		if err == nil {
			settled++
			continue
		}
		var denied *DeniedError
		if errors.As(err, &denied) && denied.Reason == allowance.DenyInsufficientBudget {
			deniedCount++
			continue
		}
		t.Fatalf("Unexpected error: %v", err)
	}
	if settled != 1 || deniedCount != 1 {
		t.Fatalf("Expected exactly one settle and one denial, got %d/%d", settled, deniedCount)
	}

	a, err := h.ledger.Get("example.com")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if a.RemainingBudget != 100 {
		t.Errorf("Expected remaining 100 after the race, got %d", a.RemainingBudget)
	}
	payments, _ := h.journal.QueryByHost("example.com")
	if len(payments) != 1 {
		t.Errorf("Expected a single settled record, got %d", len(payments))
	}
}

func TestSendPayment_DifferentOriginsDoNotBlock(t *testing.T) {
	h := newHarness(t)
	release := make(chan struct{})
	h.mock.SendPaymentFunc = func(ctx context.Context, invoice string) (*connector.PaymentResult, error) {
		if invoice == "mock:10:slow" {
			<-release // First origin's payment parks inside its critical section
		}
		return &connector.PaymentResult{Preimage: "bb"}, nil
	}
	ctx := context.Background()

	if _, err := h.ledger.Grant("slow.com", 100); err != nil {
		t.Fatalf("Grant failed: %v", err)
	}
	if _, err := h.ledger.Grant("fast.com", 100); err != nil {
		t.Fatalf("Grant failed: %v", err)
	}

	slowDone := make(chan error, 1)
	go func() {
		_, err := h.orch.SendPayment(ctx, "slow.com", "mock:10:slow")
		slowDone <- err
	}()

	// The other origin proceeds while slow.com holds its lock
	if _, err := h.orch.SendPayment(ctx, "fast.com", "mock:10:fast"); err != nil {
		t.Fatalf("Independent origin blocked: %v", err)
	}

	close(release)
	if err := <-slowDone; err != nil {
		t.Fatalf("Slow payment failed: %v", err)
	}
}
