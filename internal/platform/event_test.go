package platform

import (
	"encoding/json"
	"testing"
	"time"
)

const sampleWebhook = `{
  "course_order": {
    "status": "CONFIRMED",
    "amount": 1,
    "created_at": "2025-03-01 10:00:00",
    "updated_at": "2025-03-01 10:05:30",
    "code": 2025,
    "course_order_items": [
      {"cost": 10000, "number_lessons": 8, "course": {"name": "Русский с нуля", "subject": {"name": "Русский", "project": "ЕГЭ"}}},
      {"cost": 3000, "number_lessons": 4, "course": {"name": "Математика база", "subject": {"name": "Математика (база)", "project": "ЕГЭ"}}}
    ],
    "user": {"first_name": "Иван", "last_name": "Петров", "phone": "+7 (987) 672-60-10", "email": "ivan@example.com", "telegram_tag": "ivanp", "telegram_id": "123456"},
    "utm": {"source": "direct", "medium": "", "compaign": "spring", "term": "", "content": "", "ym": ""},
    "domain": "pl.example.ru",
    "payment_id": "pay-42",
    "payment_method": "SBP",
    "currency": "RUB"
  }
}`

func decodeSample(t *testing.T) PaymentEvent {
	t.Helper()
	var event PaymentEvent
	if err := json.Unmarshal([]byte(sampleWebhook), &event); err != nil {
		t.Fatalf("decode webhook: %v", err)
	}
	return event
}

func TestTotalCostIgnoresOrderAmount(t *testing.T) {
	event := decodeSample(t)
	if got := event.TotalCost(); got != 13000 {
		t.Fatalf("expected total 13000, got %d", got)
	}
	if event.Order.Amount == event.TotalCost() {
		t.Fatalf("fixture must keep amount and item sum distinct")
	}
}

func TestSubjectNamesKeepOrder(t *testing.T) {
	event := decodeSample(t)
	names := event.SubjectNames()
	if len(names) != 2 || names[0] != "Русский" || names[1] != "Математика (база)" {
		t.Fatalf("unexpected subjects: %v", names)
	}
}

func TestCustomerNameFallback(t *testing.T) {
	event := decodeSample(t)
	if got := event.CustomerName(); got != "Иван Петров" {
		t.Fatalf("unexpected name %q", got)
	}
	event.Order.User.FirstName = " "
	event.Order.User.LastName = ""
	if got := event.CustomerName(); got != "Клиент без имени" {
		t.Fatalf("expected placeholder, got %q", got)
	}
}

func TestPaidAtParsesPlatformLayout(t *testing.T) {
	event := decodeSample(t)
	msk := time.FixedZone("MSK", 3*60*60)
	ts := event.PaidAt(msk)
	if ts.IsZero() {
		t.Fatalf("expected parseable timestamp")
	}
	if ts.Hour() != 10 || ts.Minute() != 5 {
		t.Fatalf("unexpected time %v", ts)
	}

	event.Order.UpdatedAt = "garbage"
	if !event.PaidAt(msk).IsZero() {
		t.Fatalf("expected zero time for malformed timestamp")
	}
}

func TestPromoCodeAcceptsStringNumberAndNull(t *testing.T) {
	event := decodeSample(t)
	if event.Order.Code != "2025" {
		t.Fatalf("expected numeric promo code as string, got %q", event.Order.Code)
	}

	var p PromoCode
	if err := json.Unmarshal([]byte(`"SPRING"`), &p); err != nil || p != "SPRING" {
		t.Fatalf("string promo: %q err=%v", p, err)
	}
	if err := json.Unmarshal([]byte(`null`), &p); err != nil || p != "" {
		t.Fatalf("null promo: %q err=%v", p, err)
	}
}

func TestConfirmed(t *testing.T) {
	event := decodeSample(t)
	if !event.Confirmed() {
		t.Fatalf("expected confirmed order")
	}
	event.Order.Status = "PENDING"
	if event.Confirmed() {
		t.Fatalf("pending order must not be confirmed")
	}
}
