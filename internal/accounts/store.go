package accounts

import (
	"context" // Confirmation and balance refresh
	"errors"  // Error values
	"strings" // Name collision policy
	"sync"    // Active pointer guard

	"github.com/google/uuid"     // Account id generation
	"github.com/sirupsen/logrus" // Logging library
	"gorm.io/gorm"               // GORM ORM library

	"lightning_wallet/internal/connector" // Wallet backend capability
	"lightning_wallet/internal/domain"    // Importing domain models
	"lightning_wallet/internal/keystore"  // Credential vault
)

var (
	ErrNotFound           = errors.New("accounts: account not found")
	ErrConflict           = errors.New("accounts: account name already in use")
	ErrNoActive           = errors.New("accounts: no active account")
	ErrConfirmationDenied = errors.New("accounts: removal not confirmed")
)

// Confirmer requests explicit user confirmation for destructive actions.
// The rendering surface that asks the question lives outside this engine;
// here it is only an injected capability returning allow or deny.
type Confirmer interface {
	Confirm(ctx context.Context, prompt string) bool
}

// AutoConfirm approves every prompt. The HTTP adapter uses it because an
// explicit DELETE request is itself the user action.
type AutoConfirm struct{}

func (AutoConfirm) Confirm(context.Context, string) bool { return true }

// SessionInvalidator revokes all outstanding sessions. Called when the last
// account is removed and the wallet has nothing left to unlock.
type SessionInvalidator interface {
	Invalidate()
}

// AllowanceCloser closes every allowance inside the caller's transaction.
// The allowance ledger implements it; the store goes through it instead of
// touching allowance rows directly.
type AllowanceCloser interface {
	RemoveAllTx(tx *gorm.DB) error
}

// Store owns the configured accounts and the process-wide active account
// pointer. Connector credentials pass through the vault before persisting;
// every mutation persists before the in-memory state moves, so a storage
// failure never leaves the two diverged.
type Store struct {
	db         *gorm.DB
	vault      *keystore.Vault
	sessions   SessionInvalidator
	allowances AllowanceCloser

	mu       sync.RWMutex
	activeID string
	conns    map[string]connector.Connector // Built connectors, keyed by account id
}

// New creates the account store and restores the active pointer to the first
// configured account, if any.
func New(db *gorm.DB, vault *keystore.Vault, sessions SessionInvalidator, allowances AllowanceCloser) (*Store, error) {
	s := &Store{db: db, vault: vault, sessions: sessions, allowances: allowances, conns: map[string]connector.Connector{}}
	var first domain.Account
	err := db.Order("created_at asc, id asc").First(&first).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	if err == nil {
		s.activeID = first.ID
	}
	return s, nil
}

// List returns all accounts in insertion order
func (s *Store) List() ([]domain.Account, error) {
	var accounts []domain.Account
	err := s.db.Order("created_at asc, id asc").Find(&accounts).Error
	return accounts, err
}

// Get returns one account by id
func (s *Store) Get(id string) (*domain.Account, error) {
	var a domain.Account
	err := s.db.Where("id = ?", id).First(&a).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// GetActive returns the currently active account
func (s *Store) GetActive() (*domain.Account, error) {
	s.mu.RLock()
	id := s.activeID
	s.mu.RUnlock()
	if id == "" {
		return nil, ErrNoActive
	}
	return s.Get(id)
}

// SetActive switches the active account pointer
func (s *Store) SetActive(id string) error {
	if _, err := s.Get(id); err != nil {
		return err
	}
	s.mu.Lock()
	s.activeID = id
	s.mu.Unlock()
	logrus.WithFields(logrus.Fields{"account_id": id}).Info("Active account switched")
	return nil
}

// Add creates an account. The connector config is sealed by the vault before
// it touches the database; the connector kind must be registered.
func (s *Store) Add(name, kind string, config []byte) (*domain.Account, error) {
	// Construct once up front so a bad kind or config never persists
	if _, err := connector.Open(kind, config); err != nil {
		return nil, err
	}
	if taken, err := s.nameTaken(name, ""); err != nil {
		return nil, err
	} else if taken {
		return nil, ErrConflict
	}
	sealed, err := s.vault.Seal(config)
	if err != nil {
		return nil, err
	}
	a := domain.Account{
		ID:        uuid.NewString(), // Account ID (UUID)
		Name:      name,             // User-visible label
		Connector: kind,             // Connector kind tag
		Config:    sealed,           // Sealed credentials
	}
	if err := s.db.Create(&a).Error; err != nil {
		return nil, err
	}
	// First account becomes active automatically
	s.mu.Lock()
	if s.activeID == "" {
		s.activeID = a.ID
	}
	s.mu.Unlock()
	logrus.WithFields(logrus.Fields{
		"account_id": a.ID,   // New account id
		"connector":  kind,   // Backend variant
		"name":       a.Name, // Label
	}).Info("Account added")
	return &a, nil
}

// Rename changes an account's label
func (s *Store) Rename(id, name string) error {
	a, err := s.Get(id)
	if err != nil {
		return err
	}
	if taken, err := s.nameTaken(name, id); err != nil {
		return err
	} else if taken {
		return ErrConflict
	}
	return s.db.Model(a).Update("name", name).Error
}

// Remove deletes an account after confirmation, with the cascade:
// if the removed account was active and others remain, the next account in
// insertion order becomes active atomically with the delete; if it was the
// last account, every allowance is closed with it and all sessions are
// invalidated.
func (s *Store) Remove(ctx context.Context, id string, confirm Confirmer) error {
	a, err := s.Get(id)
	if err != nil {
		return err
	}
	if confirm != nil && !confirm.Confirm(ctx, "Remove account "+a.Name+"? This cannot be undone.") {
		return ErrConfirmationDenied
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var nextActive string
	var last bool
	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ?", id).Delete(&domain.Account{}).Error; err != nil {
			return err
		}
		var remaining []domain.Account
		if err := tx.Order("created_at asc, id asc").Find(&remaining).Error; err != nil {
			return err
		}
		if len(remaining) == 0 {
			// Nothing can service granted budgets anymore; close them too
			last = true
			return s.allowances.RemoveAllTx(tx)
		}
		if s.activeID == id {
			nextActive = remaining[0].ID
		} else {
			nextActive = s.activeID
		}
		return nil
	})
	if err != nil {
		return err // In-memory state untouched on rollback
	}

	delete(s.conns, id)
	s.activeID = nextActive
	if last && s.sessions != nil {
		s.sessions.Invalidate()
	}
	logrus.WithFields(logrus.Fields{
		"account_id":  id,         // Removed account
		"next_active": nextActive, // New active account, empty when none remain
		"was_last":    last,       // Whether the session was invalidated
	}).Info("Account removed")
	return nil
}

// ExportCredentials returns the decrypted backend-specific payload. Used only
// by the explicit user-initiated export flow, never by the payment path.
func (s *Store) ExportCredentials(id string) ([]byte, error) {
	a, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	return s.vault.Open(a.Config)
}

// RefreshBalance fetches the backend balance and updates the cached value
func (s *Store) RefreshBalance(ctx context.Context, id string) (int64, error) {
	a, err := s.Get(id)
	if err != nil {
		return 0, err
	}
	conn, err := s.connectorFor(a)
	if err != nil {
		return 0, err
	}
	balance, err := conn.GetBalance(ctx)
	if err != nil {
		return 0, connector.AsConnectorError(err)
	}
	if err := s.db.Model(a).Update("balance", balance).Error; err != nil {
		return 0, err
	}
	return balance, nil
}

// ActiveConnector resolves the active account and its backend as one
// snapshot. An in-flight payment keeps using the snapshot it resolved even if
// the active pointer is swapped mid-flight.
func (s *Store) ActiveConnector() (*domain.Account, connector.Connector, error) {
	a, err := s.GetActive()
	if err != nil {
		return nil, nil, err
	}
	conn, err := s.connectorFor(a)
	if err != nil {
		return nil, nil, err
	}
	return a, conn, nil
}

// connectorFor returns the account's backend, building and caching it on
// first use. Construction opens the sealed config through the vault.
func (s *Store) connectorFor(a *domain.Account) (connector.Connector, error) {
	s.mu.RLock()
	conn, ok := s.conns[a.ID]
	s.mu.RUnlock()
	if ok {
		return conn, nil
	}

	config, err := s.vault.Open(a.Config)
	if err != nil {
		return nil, err
	}
	inner, err := connector.Open(a.Connector, config)
	if err != nil {
		return nil, err
	}
	conn = connector.WithBreaker(a.ID, inner)

	s.mu.Lock()
	// Another request may have built it concurrently; keep the first
	if existing, ok := s.conns[a.ID]; ok {
		conn = existing
	} else {
		s.conns[a.ID] = conn
	}
	s.mu.Unlock()
	return conn, nil
}

// nameTaken applies the case-insensitive name collision policy, ignoring the
// account identified by exclude (used by Rename).
func (s *Store) nameTaken(name, exclude string) (bool, error) {
	var count int64
	q := s.db.Model(&domain.Account{}).Where("LOWER(name) = ?", strings.ToLower(name))
	if exclude != "" {
		q = q.Where("id <> ?", exclude)
	}
	if err := q.Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}
