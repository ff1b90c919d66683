package service

import (
	"strconv"
	"strings"
	"time"

	"github.com/ZhulikovN/platform-payment-sync/internal/amocrm"
	"github.com/ZhulikovN/platform-payment-sync/internal/mapping"
	"github.com/ZhulikovN/platform-payment-sync/internal/platform"
)

const paymentStatusPaid = "Оплачено"

// updateLeadDelta computes the patch for an existing lead. The lifetime
// total and the purchase count are incremental: current CRM value plus this
// event's contribution, never recomputed from payment history.
func updateLeadDelta(m mapping.Mapping, lead amocrm.Lead, event platform.PaymentEvent, loc *time.Location) amocrm.UpdateLead {
	total := event.TotalCost()
	newPrice := lead.Price + total
	count := lead.FieldInt(m.LeadFields.PurchaseCount) + 1

	fields := leadPaymentFields(m, event, event.PaidAt(loc), newPrice, count)
	return amocrm.UpdateLead{
		Price:        &newPrice,
		CustomFields: fields,
	}
}

// newLeadDelta computes the custom fields for a freshly created lead: the
// same payment fields from a zero baseline, plus the attribution tags copied
// once at creation.
func newLeadDelta(m mapping.Mapping, event platform.PaymentEvent, loc *time.Location) []amocrm.CustomField {
	total := event.TotalCost()
	fields := leadPaymentFields(m, event, event.PaidAt(loc), total, 1)

	utm := event.Order.UTM
	fields = appendText(fields, m.LeadFields.UTMSource, utm.Source)
	fields = appendText(fields, m.LeadFields.UTMMedium, utm.Medium)
	fields = appendText(fields, m.LeadFields.UTMCampaign, utm.Campaign)
	fields = appendText(fields, m.LeadFields.UTMContent, utm.Content)
	fields = appendText(fields, m.LeadFields.UTMTerm, utm.Term)
	fields = appendText(fields, m.LeadFields.YMUID, utm.YM)
	return fields
}

func leadPaymentFields(m mapping.Mapping, event platform.PaymentEvent, paidAt time.Time, lifetimeTotal, purchaseCount int64) []amocrm.CustomField {
	fields := make([]amocrm.CustomField, 0, 10)

	if ids := m.SubjectEnumIDs(event.SubjectNames()); len(ids) > 0 && m.LeadFields.Subjects != 0 {
		fields = append(fields, amocrm.MultiEnumField(m.LeadFields.Subjects, ids))
	}
	if id := m.DirectionEnumID(directionName(event)); id != 0 && m.LeadFields.Direction != 0 {
		fields = append(fields, amocrm.EnumField(m.LeadFields.Direction, id))
	}

	fields = appendText(fields, m.LeadFields.LastPaymentAmount, strconv.FormatInt(event.TotalCost(), 10))
	fields = appendText(fields, m.LeadFields.TotalPaid, strconv.FormatInt(lifetimeTotal, 10))
	fields = appendText(fields, m.LeadFields.PurchaseCount, strconv.FormatInt(purchaseCount, 10))
	fields = appendText(fields, m.LeadFields.PaymentStatus, paymentStatusPaid)
	if !paidAt.IsZero() && m.LeadFields.LastPaymentDate != 0 {
		fields = append(fields, amocrm.TextField(m.LeadFields.LastPaymentDate, paidAt.Unix()))
	}
	fields = appendText(fields, m.LeadFields.InvoiceID, event.InvoiceID())
	fields = appendText(fields, m.LeadFields.PaymentID, event.PaymentID())
	return fields
}

// directionName returns the exam track shared by the order items, assumed
// consistent across the order.
func directionName(event platform.PaymentEvent) string {
	for _, item := range event.Order.Items {
		if name := strings.TrimSpace(item.Course.Subject.Project); name != "" {
			return name
		}
	}
	return ""
}

func appendText(fields []amocrm.CustomField, fieldID int64, value string) []amocrm.CustomField {
	if fieldID == 0 || strings.TrimSpace(value) == "" {
		return fields
	}
	return append(fields, amocrm.TextField(fieldID, value))
}
