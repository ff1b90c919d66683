package service

import (
	"strings"
	"testing"
	"time"
)

func TestFormatPaymentNote(t *testing.T) {
	msk := time.FixedZone("MSK", 3*60*60)
	event := testEvent("pay-note")
	event.Order.Code = "SPRING10"

	note := formatPaymentNote(event, msk)

	for _, want := range []string{
		"Оплата проведена",
		"Клиент: Анна Иванова",
		"Телефон: +7 (999) 123-45-67",
		"Email: anna@example.com",
		"Telegram: anna_tg",
		"Время (местное): 10.05.2024 12:00:00",
		"Время (UTC): 10.05.2024 09:00:00",
		"Статус: CONFIRMED",
		"Сумма: 10000 RUB",
		"Способ оплаты: card",
		"Курсы: Русский с нуля",
		"Промокод: SPRING10",
		"Источник: direct",
		"Счёт: 42",
		"Платёж: pay-note",
	} {
		if !strings.Contains(note, want) {
			t.Errorf("note missing %q:\n%s", want, note)
		}
	}
}

func TestFormatPaymentNoteOmitsEmptyLines(t *testing.T) {
	event := testEvent("pay-min")
	event.Order.Code = ""
	event.Order.UTM.Source = ""
	event.Order.User.TelegramTag = ""

	note := formatPaymentNote(event, time.UTC)

	for _, absent := range []string{"Промокод", "Источник", "Telegram:"} {
		if strings.Contains(note, absent) {
			t.Errorf("note must omit %q when empty:\n%s", absent, note)
		}
	}
	if strings.HasSuffix(note, "\n") {
		t.Error("note must not end with a newline")
	}
}

func TestTaskTextNamesCustomerAndAmount(t *testing.T) {
	text := taskText(testEvent("x"))
	if !strings.Contains(text, "10000") || !strings.Contains(text, "Анна Иванова") {
		t.Fatalf("task text = %q", text)
	}
}
