package domain

// Allowance Model
type Allowance struct {
	ID              uint   `gorm:"primaryKey"`                    // Primary key
	Host            string `gorm:"uniqueIndex;size:255;not null"` // Origin host, stored lowercase
	TotalBudget     int64  `gorm:"not null;default:0"`            // Granted budget in satoshis
	RemainingBudget int64  `gorm:"not null;default:0"`            // Remaining budget, never negative
	LastPaymentAt   int64  `gorm:"index;not null;default:0"`      // Last debit time in milliseconds, 0 = never
	CreatedAt       int64  `gorm:"autoCreateTime:milli"`          // Timestamp of creation in milliseconds
}

// UsedBudget returns how much of the granted budget has been spent
func (a *Allowance) UsedBudget() int64 {
	return a.TotalBudget - a.RemainingBudget
}

// PercentageUsed returns the used budget as a rounded percentage.
// Defined only when TotalBudget > 0; a zero-budget allowance reports 0.
func (a *Allowance) PercentageUsed() int {
	if a.TotalBudget <= 0 {
		return 0
	}
	return int((float64(a.UsedBudget())/float64(a.TotalBudget))*100 + 0.5)
}
