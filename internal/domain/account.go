package domain

// Account Model
type Account struct {
	ID        string `gorm:"primaryKey;size:36"`   // Account ID (UUID)
	Name      string `gorm:"size:255;not null"`    // User-visible label
	Connector string `gorm:"size:32;not null"`     // Connector kind tag (e.g. "mock")
	Config    string `gorm:"type:text;not null"`   // Sealed connector credentials (vault ciphertext)
	Balance   int64  `gorm:"not null;default:0"`   // Cached balance in satoshis
	CreatedAt int64  `gorm:"autoCreateTime:milli"` // Timestamp of creation in milliseconds
}
