package domain

// Payment outcomes
const (
	PaymentSettled = "settled" // Payment completed, preimage received
	PaymentFailed  = "failed"  // Connector reported a failure
)

// Payment Model. Records are append-only: the journal is the audit trail and
// is never updated or deleted after the fact.
type Payment struct {
	ID          uint   `gorm:"primaryKey"`           // Primary key
	Host        string `gorm:"index;size:255"`       // Origin that requested the payment, stored lowercase
	TotalAmount int64  `gorm:"not null"`             // Amount in satoshis
	Description string `gorm:"size:255"`             // Invoice memo
	Preimage    string `gorm:"size:64"`              // Settlement proof, empty for failed payments
	Outcome     string `gorm:"size:16;not null"`     // settled or failed
	CreatedAt   int64  `gorm:"autoCreateTime:milli"` // Timestamp of creation in milliseconds
}
