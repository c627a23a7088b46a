package domain

import "time"

// ProcessedUpdate records a Telegram update_id that has already been handled.
// Telegram redelivers webhook updates when a response is slow or non-2xx, so
// the webhook claims each id once and drops repeats until ExpiresAt.
type ProcessedUpdate struct {
	UpdateID    int64     `gorm:"primaryKey;autoIncrement:false"`
	ProcessedAt time.Time `gorm:"type:DATETIME NOT NULL"`
	ExpiresAt   time.Time `gorm:"type:DATETIME NOT NULL;index"`
}

// TableName implements the GORM tabler interface.
func (ProcessedUpdate) TableName() string { return "processed_updates" }
