package journal

import (
	"strings" // Host normalization

	"gorm.io/gorm" // GORM ORM library

	"lightning_wallet/internal/domain" // Importing domain models
)

// Journal is the append-only payment history. Records are immutable once
// written: there is deliberately no update or delete operation here, the
// journal is the audit trail. All host matching is case-insensitive.
type Journal struct {
	db *gorm.DB
}

// New creates a Journal backed by the given database
func New(db *gorm.DB) *Journal {
	return &Journal{db: db}
}

// Append inserts a payment record
func (j *Journal) Append(rec *domain.Payment) error {
	return j.AppendTx(j.db, rec)
}

// AppendTx inserts a payment record inside an existing transaction. The
// orchestrator uses this to commit a debit and its journal record as a unit.
func (j *Journal) AppendTx(tx *gorm.DB, rec *domain.Payment) error {
	rec.Host = strings.ToLower(strings.TrimSpace(rec.Host)) // Hosts stored lowercase
	return tx.Create(rec).Error
}

// QueryByHost returns the host's payment records, most recent first
func (j *Journal) QueryByHost(host string) ([]domain.Payment, error) {
	var payments []domain.Payment
	err := j.db.
		Where("LOWER(host) = ?", strings.ToLower(host)).
		Order("created_at desc, id desc").
		Find(&payments).Error
	return payments, err
}

// CountByHost returns how many payment records exist for the host
func (j *Journal) CountByHost(host string) (int64, error) {
	var count int64
	err := j.db.Model(&domain.Payment{}).
		Where("LOWER(host) = ?", strings.ToLower(host)).
		Count(&count).Error
	return count, err
}

// SumAmountByHost returns the total amount across the host's records
func (j *Journal) SumAmountByHost(host string) (int64, error) {
	var sum int64
	err := j.db.Model(&domain.Payment{}).
		Where("LOWER(host) = ?", strings.ToLower(host)).
		Select("COALESCE(SUM(total_amount), 0)").
		Scan(&sum).Error
	return sum, err
}

// SumSettledByHost returns the total amount across the host's settled records.
// The ledger uses it to cross-check an allowance's used budget against the
// journal, the source of truth.
func (j *Journal) SumSettledByHost(host string) (int64, error) {
	var sum int64
	err := j.db.Model(&domain.Payment{}).
		Where("LOWER(host) = ? AND outcome = ?", strings.ToLower(host), domain.PaymentSettled).
		Select("COALESCE(SUM(total_amount), 0)").
		Scan(&sum).Error
	return sum, err
}
