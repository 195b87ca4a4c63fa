package notify

import (
	"context"
	"errors"
	"net/smtp"
	"strings"
	"testing"

	"voicedesk/internal/booking"
	"voicedesk/internal/config"
)

func TestBookingCreatedBuildsMessage(t *testing.T) {
	m := NewMailer(config.SMTPConfig{
		Host:     "mail.example.com",
		Port:     587,
		From:     "noreply@example.com",
		NotifyTo: "office@example.com",
	})

	var gotAddr, gotFrom string
	var gotTo []string
	var gotMsg []byte
	m.send = func(addr string, _ smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotFrom, gotTo, gotMsg = addr, from, to, msg
		return nil
	}

	err := m.BookingCreated(context.Background(), booking.Booking{
		ID:            "b1",
		CustomerName:  "Sam\r\nBcc: evil@example.com",
		CustomerPhone: "0412345678",
		ServiceType:   "pest inspection",
		PreferredDate: "friday",
	})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}

	if gotAddr != "mail.example.com:587" {
		t.Fatalf("unexpected addr %q", gotAddr)
	}
	if gotFrom != "noreply@example.com" || len(gotTo) != 1 || gotTo[0] != "office@example.com" {
		t.Fatalf("unexpected envelope: %q %v", gotFrom, gotTo)
	}
	body := string(gotMsg)
	if !strings.Contains(body, "0412345678") || !strings.Contains(body, "pest inspection") {
		t.Fatalf("expected booking fields in body:\n%s", body)
	}
	// Header injection via the customer name must be neutralized.
	if strings.Contains(body, "Bcc: evil@example.com\r\n") {
		t.Fatalf("header injection not sanitized:\n%s", body)
	}
}

func TestBookingCreatedDisabledWithoutConfig(t *testing.T) {
	m := NewMailer(config.SMTPConfig{})
	if err := m.BookingCreated(context.Background(), booking.Booking{ID: "b1"}); !errors.Is(err, ErrDisabled) {
		t.Fatalf("expected ErrDisabled, got %v", err)
	}
}
