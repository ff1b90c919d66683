// Package domain defines the reconciliation service contract: the outcome
// of processing one payment event and the CRM operations the service needs.
package domain

import (
	"context"
	"errors"

	"github.com/ZhulikovN/platform-payment-sync/internal/amocrm"
	"github.com/ZhulikovN/platform-payment-sync/internal/platform"
)

// OutcomeStatus classifies the result of processing one payment event.
type OutcomeStatus string

const (
	OutcomeSuccess         OutcomeStatus = "success"
	OutcomeDuplicate       OutcomeStatus = "duplicate"
	OutcomeSkipped         OutcomeStatus = "skipped"
	OutcomeContactNotFound OutcomeStatus = "contact_not_found"
	OutcomeLeadNotFound    OutcomeStatus = "lead_not_found"
	OutcomeFailed          OutcomeStatus = "failed"
)

// Outcome is what one reconciliation produced.
type Outcome struct {
	Status OutcomeStatus `json:"status"`
	Reason string        `json:"reason,omitempty"`

	ContactID   int64 `json:"contact_id,omitempty"`
	LeadID      int64 `json:"lead_id,omitempty"`
	PipelineID  int64 `json:"pipeline_id,omitempty"`
	StageID     int64 `json:"stage_id,omitempty"`
	LeadCreated bool  `json:"lead_created,omitempty"`

	Err error `json:"-"`
}

var (
	ErrContactNotFound = errors.New("contact_not_found")
	ErrLeadNotFound    = errors.New("lead_not_found")
	ErrEmptyPaymentID  = errors.New("empty_payment_id")
)

// Service reconciles payment events against the CRM.
type Service interface {
	// Process handles one webhook delivery. The raw payload is persisted
	// alongside the ledger record for replay.
	Process(ctx context.Context, event platform.PaymentEvent, payload []byte) Outcome

	// Replay reprocesses one previously failed payment by id.
	Replay(ctx context.Context, paymentID string) (Outcome, error)

	// ReplayFailed reprocesses up to limit failed records, oldest first.
	ReplayFailed(ctx context.Context, limit int) ([]Outcome, error)
}

// CRMClient is the slice of the CRM API the reconciler uses. The HTTP client
// satisfies it; tests substitute a fake.
type CRMClient interface {
	SearchContacts(ctx context.Context, query string) ([]amocrm.Contact, error)
	CreateContact(ctx context.Context, contact amocrm.Contact) (int64, error)
	UpdateContact(ctx context.Context, id int64, fields []amocrm.CustomField) error

	SearchLeads(ctx context.Context, query string) ([]amocrm.Lead, error)
	GetLeadWithContacts(ctx context.Context, id int64) (*amocrm.Lead, error)
	CreateLead(ctx context.Context, lead amocrm.CreateLead) (int64, error)
	UpdateLead(ctx context.Context, id int64, update amocrm.UpdateLead) error

	AddLeadNote(ctx context.Context, leadID int64, text string) error
	CreateTaskForLeadManager(ctx context.Context, leadID int64, text string) (int64, error)
}
