package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/ZhulikovN/platform-payment-sync/internal/amocrm"
	"github.com/ZhulikovN/platform-payment-sync/internal/mapping"
	"github.com/ZhulikovN/platform-payment-sync/internal/platform"
)

// resolveContact tries the identity signals in fixed priority order:
// telegram id, then phone, then email. The first signal that yields any
// result wins; results are never merged across signals.
func (s *Service) resolveContact(ctx context.Context, customer platform.Customer) (*amocrm.Contact, error) {
	queries := contactQueries(customer)
	for _, q := range queries {
		contacts, err := s.crm.SearchContacts(ctx, q.value)
		if err != nil {
			return nil, err
		}
		if len(contacts) == 0 {
			continue
		}
		s.log.Debug("contact matched",
			zap.String("signal", q.signal),
			zap.Int64("contact_id", contacts[0].ID),
		)
		return &contacts[0], nil
	}
	return nil, nil
}

type contactQuery struct {
	signal string
	value  string
}

func contactQueries(customer platform.Customer) []contactQuery {
	queries := make([]contactQuery, 0, 3)
	if tg := strings.TrimSpace(customer.TelegramID); tg != "" {
		queries = append(queries, contactQuery{signal: "telegram_id", value: tg})
	}
	if phone := mapping.NormalizePhone(customer.Phone); phone != "" {
		queries = append(queries, contactQuery{signal: "phone", value: phone})
	}
	if email := strings.TrimSpace(customer.Email); email != "" {
		queries = append(queries, contactQuery{signal: "email", value: email})
	}
	return queries
}

// createContact makes a new CRM contact carrying every identity signal the
// event brought.
func (s *Service) createContact(ctx context.Context, name string, customer platform.Customer) (int64, error) {
	contact := amocrm.Contact{
		Name:         name,
		CustomFields: newContactFields(s.mapping.ContactFields, customer),
	}
	return s.crm.CreateContact(ctx, contact)
}

func newContactFields(fields mapping.ContactFields, customer platform.Customer) []amocrm.CustomField {
	out := make([]amocrm.CustomField, 0, 4)
	if phone := mapping.NormalizePhone(customer.Phone); phone != "" {
		out = append(out, amocrm.CodeField("PHONE", "WORK", phone))
	}
	if email := strings.TrimSpace(customer.Email); email != "" {
		out = append(out, amocrm.CodeField("EMAIL", "WORK", email))
	}
	if tg := strings.TrimSpace(customer.TelegramID); tg != "" && fields.TelegramID != 0 {
		out = append(out, amocrm.TextField(fields.TelegramID, tg))
	}
	if tag := strings.TrimSpace(customer.TelegramTag); tag != "" && fields.TelegramUsername != 0 {
		out = append(out, amocrm.TextField(fields.TelegramUsername, tag))
	}
	return out
}

// contactFillDelta computes the idempotent fill for an existing contact:
// telegram fields are set only when currently empty, a non-empty CRM value
// is never overwritten.
func contactFillDelta(fields mapping.ContactFields, contact amocrm.Contact, customer platform.Customer) []amocrm.CustomField {
	var out []amocrm.CustomField
	if tg := strings.TrimSpace(customer.TelegramID); tg != "" && fields.TelegramID != 0 {
		if contact.FieldString(fields.TelegramID) == "" {
			out = append(out, amocrm.TextField(fields.TelegramID, tg))
		}
	}
	if tag := strings.TrimSpace(customer.TelegramTag); tag != "" && fields.TelegramUsername != 0 {
		if contact.FieldString(fields.TelegramUsername) == "" {
			out = append(out, amocrm.TextField(fields.TelegramUsername, tag))
		}
	}
	return out
}
