package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/ZhulikovN/platform-payment-sync/internal/amocrm"
	"github.com/ZhulikovN/platform-payment-sync/internal/mapping"
	"github.com/ZhulikovN/platform-payment-sync/internal/platform"
)

// findActiveLead resolves the single active lead for a contact, across all
// pipelines. Search hits are only candidates: a textual phone/email match is
// not proof of ownership, so every candidate is refetched with its linked
// contacts and dropped unless it is actually linked to the contact.
func (s *Service) findActiveLead(ctx context.Context, contactID int64, customer platform.Customer) (*amocrm.Lead, error) {
	candidates, err := s.searchLeadCandidates(ctx, customer)
	if err != nil {
		return nil, err
	}

	var winner *amocrm.Lead
	for _, candidate := range candidates {
		lead, err := s.crm.GetLeadWithContacts(ctx, candidate.ID)
		if err != nil {
			return nil, err
		}
		if lead == nil || !lead.LinkedTo(contactID) {
			continue
		}
		if lead.IsDeleted || s.mapping.IsClosedStatus(lead.StatusID) {
			continue
		}
		// Leads the CRM never stamped are not comparable on recency and
		// stay out of the running.
		if lead.UpdatedAt == 0 {
			continue
		}
		if winner == nil || moreRecent(lead, winner) {
			winner = lead
		}
	}

	if winner != nil {
		s.log.Debug("active lead matched",
			zap.Int64("lead_id", winner.ID),
			zap.Int64("pipeline_id", winner.PipelineID),
		)
	}
	return winner, nil
}

// moreRecent orders by updated_at, breaking ties on the higher id so the
// winner is deterministic.
func moreRecent(a, b *amocrm.Lead) bool {
	if a.UpdatedAt != b.UpdatedAt {
		return a.UpdatedAt > b.UpdatedAt
	}
	return a.ID > b.ID
}

// searchLeadCandidates unions telegram id, phone and email search results,
// de-duplicated by lead id with first-seen order kept.
func (s *Service) searchLeadCandidates(ctx context.Context, customer platform.Customer) ([]amocrm.Lead, error) {
	queries := make([]string, 0, 3)
	if tg := strings.TrimSpace(customer.TelegramID); tg != "" {
		queries = append(queries, tg)
	}
	if phone := mapping.NormalizePhone(customer.Phone); phone != "" {
		queries = append(queries, phone)
	}
	if email := strings.TrimSpace(customer.Email); email != "" {
		queries = append(queries, email)
	}

	seen := map[int64]struct{}{}
	var candidates []amocrm.Lead
	for _, query := range queries {
		leads, err := s.crm.SearchLeads(ctx, query)
		if err != nil {
			return nil, err
		}
		for _, lead := range leads {
			if _, dup := seen[lead.ID]; dup {
				continue
			}
			seen[lead.ID] = struct{}{}
			candidates = append(candidates, lead)
		}
	}
	return candidates, nil
}

// createLead makes a new lead in the routed pipeline, titled after the
// primary subject and the customer.
func (s *Service) createLead(ctx context.Context, contactID int64, target mapping.PipelineTarget, event platform.PaymentEvent) (int64, error) {
	delta := newLeadDelta(s.mapping, event, s.location)
	return s.crm.CreateLead(ctx, amocrm.CreateLead{
		Name:         leadTitle(event),
		Price:        event.TotalCost(),
		PipelineID:   target.PipelineID,
		StatusID:     target.StatusID,
		ContactID:    contactID,
		CustomFields: delta,
	})
}

func leadTitle(event platform.PaymentEvent) string {
	subject := "Курс"
	if names := event.SubjectNames(); len(names) > 0 && strings.TrimSpace(names[0]) != "" {
		subject = names[0]
	}
	return "Оплата " + subject + " - " + event.CustomerName()
}
