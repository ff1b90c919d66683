// Package service implements the reconciliation engine: contact resolution,
// active-lead resolution across pipelines, pipeline routing for new leads,
// incremental field updates and the ledger-backed at-most-once guarantee.
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"github.com/ZhulikovN/platform-payment-sync/internal/amocrm"
	"github.com/ZhulikovN/platform-payment-sync/internal/clock"
	"github.com/ZhulikovN/platform-payment-sync/internal/config"
	eventlogdomain "github.com/ZhulikovN/platform-payment-sync/internal/eventlog/domain"
	"github.com/ZhulikovN/platform-payment-sync/internal/mapping"
	obscontext "github.com/ZhulikovN/platform-payment-sync/internal/observability/context"
	"github.com/ZhulikovN/platform-payment-sync/internal/observability/logger"
	"github.com/ZhulikovN/platform-payment-sync/internal/observability/metrics"
	"github.com/ZhulikovN/platform-payment-sync/internal/platform"
	"github.com/ZhulikovN/platform-payment-sync/internal/reconcile/domain"
)

type ServiceParam struct {
	fx.In

	Log     *zap.Logger
	CRM     domain.CRMClient
	Ledger  eventlogdomain.Repository
	Mapping mapping.Mapping
	Clock   clock.Clock
	Config  config.Config
	Metrics *metrics.SyncMetrics `optional:"true"`
}

type Service struct {
	log     *zap.Logger
	crm     domain.CRMClient
	ledger  eventlogdomain.Repository
	mapping mapping.Mapping
	clock   clock.Clock
	metrics *metrics.SyncMetrics

	createIfMissing bool
	location        *time.Location

	// Advisory per-contact serialization within this process. The ledger's
	// unique payment id is the cross-process guarantee; this only narrows
	// the window for two distinct payments of one customer racing into
	// duplicate lead creation.
	contactLocks *keyedMutex
}

func NewService(p ServiceParam) domain.Service {
	return &Service{
		log:             p.Log.Named("reconcile.service"),
		crm:             p.CRM,
		ledger:          p.Ledger,
		mapping:         p.Mapping,
		clock:           p.Clock,
		metrics:         p.Metrics,
		createIfMissing: p.Config.CreateIfNotFound,
		location:        p.Config.Location(),
		contactLocks:    newKeyedMutex(),
	}
}

func (s *Service) Process(ctx context.Context, event platform.PaymentEvent, payload []byte) domain.Outcome {
	paymentID := event.PaymentID()
	if paymentID == "" {
		return domain.Outcome{
			Status: domain.OutcomeFailed,
			Reason: "empty payment id",
			Err:    domain.ErrEmptyPaymentID,
		}
	}
	ctx = obscontext.WithPaymentID(ctx, paymentID)

	record := &eventlogdomain.EventRecord{
		PaymentID: paymentID,
		Amount:    event.TotalCost(),
		Payload:   datatypes.JSON(payload),
	}
	inserted, err := s.ledger.InsertPending(ctx, record)
	if err != nil {
		return domain.Outcome{Status: domain.OutcomeFailed, Reason: "ledger write failed", Err: err}
	}
	if !inserted {
		// Redelivery. Failed records are only reprocessed through an
		// explicit replay, never by the webhook racing itself.
		s.log.With(logger.ContextFields(ctx)...).Info("duplicate delivery")
		return domain.Outcome{Status: domain.OutcomeDuplicate}
	}

	return s.execute(ctx, paymentID, event)
}

func (s *Service) Replay(ctx context.Context, paymentID string) (domain.Outcome, error) {
	record, err := s.ledger.Get(ctx, paymentID)
	if err != nil {
		return domain.Outcome{}, err
	}
	if record.Status.Terminal() {
		return domain.Outcome{}, fmt.Errorf("payment %s is %s, only failed records can be replayed", paymentID, record.Status)
	}

	var event platform.PaymentEvent
	if err := json.Unmarshal(record.Payload, &event); err != nil {
		return domain.Outcome{}, fmt.Errorf("replay %s: decode stored payload: %w", paymentID, err)
	}

	if err := s.ledger.BumpRetry(ctx, paymentID); err != nil {
		return domain.Outcome{}, err
	}
	ctx = obscontext.WithPaymentID(ctx, paymentID)
	return s.execute(ctx, paymentID, event), nil
}

func (s *Service) ReplayFailed(ctx context.Context, limit int) ([]domain.Outcome, error) {
	records, err := s.ledger.ListFailed(ctx, limit)
	if err != nil {
		return nil, err
	}
	outcomes := make([]domain.Outcome, 0, len(records))
	for _, record := range records {
		outcome, err := s.Replay(ctx, record.PaymentID)
		if err != nil {
			outcome = domain.Outcome{Status: domain.OutcomeFailed, Reason: err.Error(), Err: err}
		}
		outcomes = append(outcomes, outcome)
	}
	return outcomes, nil
}

// execute runs the reconciliation state machine for an event that already
// owns its ledger record, then persists the result.
func (s *Service) execute(ctx context.Context, paymentID string, event platform.PaymentEvent) domain.Outcome {
	log := s.log.With(logger.ContextFields(ctx)...)

	if !event.Confirmed() {
		outcome := domain.Outcome{
			Status: domain.OutcomeSkipped,
			Reason: "order status " + event.Order.Status,
		}
		s.persist(ctx, paymentID, outcome, log)
		return outcome
	}

	if err := s.ledger.MarkProcessing(ctx, paymentID); err != nil {
		log.Error("mark processing", zap.Error(err))
	}

	started := time.Now()
	outcome := s.reconcile(ctx, event, log)
	s.metrics.ObserveReconcile(time.Since(started))

	s.persist(ctx, paymentID, outcome, log)
	return outcome
}

func (s *Service) reconcile(ctx context.Context, event platform.PaymentEvent, log *zap.Logger) domain.Outcome {
	customer := event.Order.User

	contact, err := s.resolveContact(ctx, customer)
	if err != nil {
		return failure("resolve contact", err)
	}

	var contactID int64
	switch {
	case contact != nil:
		contactID = contact.ID
		if delta := contactFillDelta(s.mapping.ContactFields, *contact, customer); len(delta) > 0 {
			if err := s.crm.UpdateContact(ctx, contactID, delta); err != nil {
				return failure("fill contact fields", err)
			}
		}
	case s.createIfMissing:
		contactID, err = s.createContact(ctx, event.CustomerName(), customer)
		if err != nil {
			return failure("create contact", err)
		}
		log.Info("contact created", zap.Int64("contact_id", contactID))
	default:
		return domain.Outcome{
			Status: domain.OutcomeContactNotFound,
			Reason: "no contact matched any identity signal",
			Err:    domain.ErrContactNotFound,
		}
	}

	unlock := s.lockContact(contactID)
	defer unlock()

	lead, err := s.findActiveLead(ctx, contactID, customer)
	if err != nil {
		return failure("find active lead", err)
	}

	outcome := domain.Outcome{Status: domain.OutcomeSuccess, ContactID: contactID}
	switch {
	case lead != nil:
		update := updateLeadDelta(s.mapping, *lead, event, s.location)
		if err := s.crm.UpdateLead(ctx, lead.ID, update); err != nil {
			return failure("update lead", err)
		}
		outcome.LeadID = lead.ID
		outcome.PipelineID = lead.PipelineID
		outcome.StageID = lead.StatusID
	case s.createIfMissing:
		target := routeLead(s.mapping, event.Order.UTM)
		leadID, err := s.createLead(ctx, contactID, target, event)
		if err != nil {
			return failure("create lead", err)
		}
		outcome.LeadID = leadID
		outcome.PipelineID = target.PipelineID
		outcome.StageID = target.StatusID
		outcome.LeadCreated = true
		log.Info("lead created",
			zap.Int64("lead_id", leadID),
			zap.Int64("pipeline_id", target.PipelineID),
		)
	default:
		outcome.Status = domain.OutcomeLeadNotFound
		outcome.Reason = "no active lead for contact"
		outcome.Err = domain.ErrLeadNotFound
		return outcome
	}

	// Best-effort annotations: their failure is recorded but does not roll
	// back the reconciliation.
	if err := s.crm.AddLeadNote(ctx, outcome.LeadID, formatPaymentNote(event, s.location)); err != nil {
		log.Warn("note append failed", zap.Int64("lead_id", outcome.LeadID), zap.Error(err))
		outcome.Reason = "note append failed: " + err.Error()
	}
	if !outcome.LeadCreated {
		if _, err := s.crm.CreateTaskForLeadManager(ctx, outcome.LeadID, taskText(event)); err != nil {
			log.Warn("manager task failed", zap.Int64("lead_id", outcome.LeadID), zap.Error(err))
		}
	}

	return outcome
}

// persist writes the outcome into the ledger and counts it.
func (s *Service) persist(ctx context.Context, paymentID string, outcome domain.Outcome, log *zap.Logger) {
	result := eventlogdomain.Result{
		Status:      ledgerStatus(outcome),
		ContactID:   outcome.ContactID,
		LeadID:      outcome.LeadID,
		PipelineID:  outcome.PipelineID,
		StageID:     outcome.StageID,
		LeadCreated: outcome.LeadCreated,
	}
	switch {
	case outcome.Err != nil:
		result.Error = outcome.Err.Error()
	case outcome.Reason != "":
		result.Error = outcome.Reason
	}

	if err := s.ledger.MarkResult(ctx, paymentID, result); err != nil {
		log.Error("persist outcome", zap.Error(err))
	}
	s.metrics.IncProcessed(string(outcome.Status))

	if outcome.Status == domain.OutcomeSuccess {
		log.Info("payment reconciled",
			zap.Int64("contact_id", outcome.ContactID),
			zap.Int64("lead_id", outcome.LeadID),
			zap.Bool("lead_created", outcome.LeadCreated),
		)
	} else {
		log.Warn("payment not reconciled",
			zap.String("outcome", string(outcome.Status)),
			zap.String("reason", result.Error),
		)
	}
}

func ledgerStatus(outcome domain.Outcome) eventlogdomain.Status {
	switch outcome.Status {
	case domain.OutcomeSuccess:
		return eventlogdomain.StatusSuccess
	case domain.OutcomeSkipped:
		return eventlogdomain.StatusSkipped
	case domain.OutcomeDuplicate:
		return eventlogdomain.StatusDuplicate
	default:
		return eventlogdomain.StatusFailed
	}
}

func failure(step string, err error) domain.Outcome {
	return domain.Outcome{
		Status: domain.OutcomeFailed,
		Reason: step + " failed",
		Err:    fmt.Errorf("%s: %w", step, err),
	}
}

func (s *Service) lockContact(contactID int64) func() {
	if contactID == 0 {
		return func() {}
	}
	return s.contactLocks.Lock(contactID)
}

// compile-time check that the HTTP client satisfies the CRM contract.
var _ domain.CRMClient = (*amocrm.Client)(nil)
