package domain

import "time"

// ProcessedEvent records an inbound transport event that has already been
// accepted, keyed by (session, message_id). It lets the webhook drop
// re-deliveries of the same message without running commands twice.
type ProcessedEvent struct {
	ID        string    `gorm:"type:TEXT NOT NULL;primaryKey"`
	Session   string    `gorm:"type:TEXT NOT NULL;uniqueIndex:ux_session_message,priority:1"`
	MessageID string    `gorm:"type:TEXT NOT NULL;uniqueIndex:ux_session_message,priority:2"`
	CreatedAt time.Time `gorm:"type:DATETIME NOT NULL;autoCreateTime"`
	ExpiresAt time.Time `gorm:"type:DATETIME NOT NULL;index"`
}

// TableName implements the GORM tabler interface.
func (ProcessedEvent) TableName() string { return "processed_events" }
