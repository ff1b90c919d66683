package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// Status is the processing state of one payment event.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusSuccess    Status = "success"
	StatusFailed     Status = "failed"
	StatusSkipped    Status = "skipped"
	StatusDuplicate  Status = "duplicate"
)

// EventRecord is one payment event in the ledger. The payment id is unique
// for the lifetime of the record, which is what makes redelivery detection
// work across restarts.
type EventRecord struct {
	ID        snowflake.ID `gorm:"primaryKey"`
	PaymentID string       `gorm:"type:text;not null;uniqueIndex:ux_payment_events_payment_id"`
	Status    Status       `gorm:"type:text;not null;index"`

	// Order total in kopecks, captured at insert so ledger analytics
	// survive even when the CRM write fails.
	Amount int64 `gorm:"not null;default:0"`

	ContactID   int64 `gorm:"not null;default:0"`
	LeadID      int64 `gorm:"not null;default:0"`
	PipelineID  int64 `gorm:"not null;default:0"`
	StageID     int64 `gorm:"not null;default:0"`
	LeadCreated bool  `gorm:"not null;default:false"`

	RetryCount int    `gorm:"not null;default:0"`
	LastError  string `gorm:"type:text"`

	// Raw webhook body, kept for replay.
	Payload datatypes.JSON

	CreatedAt   time.Time `gorm:"not null;index"`
	ProcessedAt *time.Time
}

// TableName sets the database table name.
func (EventRecord) TableName() string { return "payment_events" }

// Terminal reports whether the record will not be reprocessed without an
// explicit replay.
func (s Status) Terminal() bool {
	switch s {
	case StatusSuccess, StatusSkipped, StatusDuplicate:
		return true
	}
	return false
}

// Result is the outcome written back to a record after reconciliation.
type Result struct {
	Status      Status
	ContactID   int64
	LeadID      int64
	PipelineID  int64
	StageID     int64
	LeadCreated bool
	Error       string
}

// Stats is an aggregate view over the ledger.
type Stats struct {
	Total    int64            `json:"total"`
	ByStatus map[Status]int64 `json:"by_status"`

	// LeadsCreated counts successful events that created a new lead
	// rather than updating an existing one.
	LeadsCreated int64 `json:"leads_created"`
	// SuccessAmount is the total of successfully synced payments, in
	// kopecks.
	SuccessAmount int64 `json:"success_amount"`
}
