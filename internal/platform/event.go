// Package platform defines the payment event delivered by the e-learning
// platform's webhook. The inbound boundary validates and decodes the payload;
// everything downstream works with these types only.
package platform

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// OrderStatusConfirmed is the only order status the reconciler acts on.
const OrderStatusConfirmed = "CONFIRMED"

// timeLayout is the wall-clock format the platform uses for order timestamps.
const timeLayout = "2006-01-02 15:04:05"

// Subject identifies the course subject and its exam track.
type Subject struct {
	Name    string `json:"name"`
	Project string `json:"project"`
}

// Course is one purchasable course.
type Course struct {
	Name    string  `json:"name"`
	Subject Subject `json:"subject"`
}

// OrderItem is a course within an order together with its cost.
type OrderItem struct {
	Cost          int64  `json:"cost"`
	NumberLessons int    `json:"number_lessons"`
	Course        Course `json:"course"`
	PackageID     *int64 `json:"package_id"`
}

// Customer carries the buyer's identity signals.
type Customer struct {
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	Phone       string `json:"phone"`
	Email       string `json:"email"`
	Class       *int   `json:"class"`
	TelegramTag string `json:"telegram_tag"`
	TelegramID  string `json:"telegram_id"`
}

// Attribution is the campaign-tracking block, used only for pipeline routing
// on lead creation. The platform misspells campaign as "compaign" on the wire.
type Attribution struct {
	Source   string `json:"source"`
	Medium   string `json:"medium"`
	Campaign string `json:"compaign"`
	Term     string `json:"term"`
	Content  string `json:"content"`
	YM       string `json:"ym"`
}

// Order is the course order attached to a payment event.
type Order struct {
	ID            int64       `json:"id"`
	Status        string      `json:"status"`
	Amount        int64       `json:"amount"`
	CreatedAt     string      `json:"created_at"`
	UpdatedAt     string      `json:"updated_at"`
	Code          PromoCode   `json:"code"`
	Items         []OrderItem `json:"course_order_items"`
	User          Customer    `json:"user"`
	UTM           Attribution `json:"utm"`
	Domain        string      `json:"domain"`
	PaymentID     string      `json:"payment_id"`
	PaymentMethod string      `json:"payment_method"`
	Currency      string      `json:"currency"`
}

// PaymentEvent is one validated webhook delivery.
type PaymentEvent struct {
	Order Order `json:"course_order"`
}

// PaymentID returns the platform's globally unique payment identifier.
func (e PaymentEvent) PaymentID() string {
	return strings.TrimSpace(e.Order.PaymentID)
}

// InvoiceID returns the platform order id as the invoice identifier, empty
// when the platform did not send one.
func (e PaymentEvent) InvoiceID() string {
	if e.Order.ID == 0 {
		return ""
	}
	return strconv.FormatInt(e.Order.ID, 10)
}

// Confirmed reports whether the order is in the confirmed state.
func (e PaymentEvent) Confirmed() bool {
	return e.Order.Status == OrderStatusConfirmed
}

// TotalCost is the payment amount: the sum of per-item costs. The order's
// own amount field is never trusted, it may carry a discount flag instead of
// a sum.
func (e PaymentEvent) TotalCost() int64 {
	var total int64
	for _, item := range e.Order.Items {
		total += item.Cost
	}
	return total
}

// SubjectNames lists the subject of every order item, in order.
func (e PaymentEvent) SubjectNames() []string {
	names := make([]string, 0, len(e.Order.Items))
	for _, item := range e.Order.Items {
		names = append(names, item.Course.Subject.Name)
	}
	return names
}

// CustomerName joins first and last name, with a placeholder when both are
// empty.
func (e PaymentEvent) CustomerName() string {
	name := strings.TrimSpace(strings.TrimSpace(e.Order.User.FirstName) + " " + strings.TrimSpace(e.Order.User.LastName))
	if name == "" {
		return "Клиент без имени"
	}
	return name
}

// PaidAt parses the order's updated_at timestamp in the given location.
// Returns the zero time when the value does not parse.
func (e PaymentEvent) PaidAt(loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	ts, err := time.ParseInLocation(timeLayout, e.Order.UpdatedAt, loc)
	if err != nil {
		return time.Time{}
	}
	return ts
}

// PromoCode tolerates the promo code arriving as a string, a number or null.
type PromoCode string

// UnmarshalJSON implements json.Unmarshaler.
func (p *PromoCode) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "null" || trimmed == `""` {
		*p = ""
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*p = PromoCode(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*p = PromoCode(n.String())
	return nil
}
