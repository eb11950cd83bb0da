package model

import "time"

type DeadLetterKind string

const (
	DeadLetterMaterialization DeadLetterKind = "MATERIALIZATION"
	DeadLetterNotification    DeadLetterKind = "NOTIFICATION"
)

// DeadLetter records work that failed after a payment was confirmed and
// therefore could not be surfaced to the caller.
type DeadLetter struct {
	ID         string         `gorm:"primaryKey;size:36"`
	Kind       DeadLetterKind `gorm:"size:32;index;not null"`
	OrderID    *uint          `gorm:"index"`
	Reference  string         `gorm:"size:128"`
	Error      string         `gorm:"type:text;not null"`
	ResolvedAt *time.Time
	CreatedAt  time.Time
}
