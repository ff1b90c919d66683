package service

import (
	"strconv"
	"strings"
	"time"

	"github.com/ZhulikovN/platform-payment-sync/internal/platform"
)

const noteTimeLayout = "02.01.2006 15:04:05"

// formatPaymentNote renders the human-readable payment summary appended to
// the lead. Pure so the text can be golden-tested without the CRM.
func formatPaymentNote(event platform.PaymentEvent, loc *time.Location) string {
	order := event.Order
	customer := order.User
	paidAt := event.PaidAt(loc)

	var b strings.Builder
	b.WriteString("Оплата проведена\n")
	writeLine(&b, "Клиент", event.CustomerName())
	writeLine(&b, "Телефон", customer.Phone)
	writeLine(&b, "Email", customer.Email)
	writeLine(&b, "Telegram", customer.TelegramTag)
	if !paidAt.IsZero() {
		writeLine(&b, "Время (местное)", paidAt.Format(noteTimeLayout))
		writeLine(&b, "Время (UTC)", paidAt.UTC().Format(noteTimeLayout))
	}
	writeLine(&b, "Статус", order.Status)

	amount := strconv.FormatInt(event.TotalCost(), 10)
	if order.Currency != "" {
		amount += " " + order.Currency
	}
	writeLine(&b, "Сумма", amount)
	writeLine(&b, "Способ оплаты", order.PaymentMethod)
	writeLine(&b, "Курсы", courseList(order.Items))
	writeLine(&b, "Промокод", string(order.Code))
	writeLine(&b, "Источник", order.UTM.Source)
	writeLine(&b, "Счёт", event.InvoiceID())
	writeLine(&b, "Платёж", event.PaymentID())
	return strings.TrimRight(b.String(), "\n")
}

// taskText is the follow-up task assigned to the lead's manager after a
// payment lands on an existing lead.
func taskText(event platform.PaymentEvent) string {
	return "Поступила оплата " + strconv.FormatInt(event.TotalCost(), 10) +
		" от " + event.CustomerName() + ", связаться с клиентом"
}

func courseList(items []platform.OrderItem) string {
	names := make([]string, 0, len(items))
	for _, item := range items {
		if name := strings.TrimSpace(item.Course.Name); name != "" {
			names = append(names, name)
		}
	}
	return strings.Join(names, ", ")
}

func writeLine(b *strings.Builder, label, value string) {
	value = strings.TrimSpace(value)
	if value == "" {
		return
	}
	b.WriteString(label)
	b.WriteString(": ")
	b.WriteString(value)
	b.WriteString("\n")
}
