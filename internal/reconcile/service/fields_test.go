package service

import (
	"testing"
	"time"

	"github.com/ZhulikovN/platform-payment-sync/internal/amocrm"
	"github.com/ZhulikovN/platform-payment-sync/internal/platform"
)

func TestUpdateLeadDeltaIncrements(t *testing.T) {
	m := testMapping()
	event := testEvent("x")
	event.Order.Items[0].Cost = 3000
	lead := amocrm.Lead{
		ID:    900,
		Price: 5000,
		CustomFields: []amocrm.CustomField{
			{FieldID: 5005, Values: []amocrm.FieldValue{{Value: "1"}}},
		},
	}

	update := updateLeadDelta(m, lead, event, time.UTC)

	if update.Price == nil || *update.Price != 8000 {
		t.Fatalf("price = %v, want 5000+3000", update.Price)
	}
	assertField(t, update.CustomFields, 5003, "3000")
	assertField(t, update.CustomFields, 5004, "8000")
	assertField(t, update.CustomFields, 5005, "2")
}

func TestUpdateLeadDeltaFreshBaseline(t *testing.T) {
	m := testMapping()
	event := testEvent("x")

	update := updateLeadDelta(m, amocrm.Lead{}, event, time.UTC)

	if update.Price == nil || *update.Price != 10000 {
		t.Fatalf("price = %v", update.Price)
	}
	assertField(t, update.CustomFields, 5004, "10000")
	assertField(t, update.CustomFields, 5005, "1")
}

func TestAmountAlwaysDerivedFromItems(t *testing.T) {
	m := testMapping()
	event := testEvent("x")
	event.Order.Amount = 1 // the top-level amount lies
	event.Order.Items = []platform.OrderItem{
		{Cost: 10000, Course: platform.Course{Subject: platform.Subject{Name: "Русский"}}},
		{Cost: 3000, Course: platform.Course{Subject: platform.Subject{Name: "Физика"}}},
	}

	update := updateLeadDelta(m, amocrm.Lead{}, event, time.UTC)
	assertField(t, update.CustomFields, 5003, "13000")
	if update.Price == nil || *update.Price != 13000 {
		t.Fatalf("price = %v, want item sum", update.Price)
	}
}

func TestSubjectMappingDropsUnknownNames(t *testing.T) {
	m := testMapping()
	event := testEvent("x")
	event.Order.Items = []platform.OrderItem{
		{Cost: 1000, Course: platform.Course{Subject: platform.Subject{Name: "Русский"}}},
		{Cost: 1000, Course: platform.Course{Subject: platform.Subject{Name: "Астрология"}}},
		{Cost: 1000, Course: platform.Course{Subject: platform.Subject{Name: "Русский"}}},
	}

	update := updateLeadDelta(m, amocrm.Lead{}, event, time.UTC)

	var subjects *amocrm.CustomField
	for i := range update.CustomFields {
		if update.CustomFields[i].FieldID == 5001 {
			subjects = &update.CustomFields[i]
		}
	}
	if subjects == nil {
		t.Fatal("subjects field missing")
	}
	if len(subjects.Values) != 1 || subjects.Values[0].EnumID != 101 {
		t.Fatalf("subjects = %+v, want only the known enum once", subjects.Values)
	}
}

func TestNewLeadDeltaCopiesAttribution(t *testing.T) {
	m := testMapping()
	event := testEvent("x")
	event.Order.UTM = platform.Attribution{
		Source: "direct", Medium: "organic", Campaign: "spring", YM: "ym-1",
	}

	fields := newLeadDelta(m, event, time.UTC)
	assertField(t, fields, 5010, "direct")
	assertField(t, fields, 5011, "organic")
	assertField(t, fields, 5012, "spring")
	assertField(t, fields, 5015, "ym-1")
}

func TestPaymentFieldsOverwriteIdentifiers(t *testing.T) {
	m := testMapping()
	event := testEvent("pay-77")

	fields := newLeadDelta(m, event, time.UTC)
	assertField(t, fields, 5008, "42")
	assertField(t, fields, 5009, "pay-77")
	assertField(t, fields, 5006, "Оплачено")
}
