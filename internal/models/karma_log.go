package models

import (
	"time"
)

// KarmaLog is the audit trail for reputation changes. Summing Amount
// over a user's rows always equals their current Karma.
type KarmaLog struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"not null;index" json:"user_id"`
	User      User      `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
	Amount    int       `gorm:"not null" json:"amount"`          // Positive awards, negative deductions
	Action    string    `gorm:"size:100;not null" json:"action"` // Action description
	CreatedAt time.Time `json:"created_at"`
}
