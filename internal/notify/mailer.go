package notify

import (
	"context"
	"errors"
	"fmt"
	"net/smtp"
	"strings"

	"voicedesk/internal/booking"
	"voicedesk/internal/config"
)

var ErrDisabled = errors.New("notify: smtp not configured")

// Mailer sends booking notifications to the business over SMTP. Sends are
// best-effort: the webhook path fires them in a goroutine and only logs
// failures.
type Mailer struct {
	addr     string
	from     string
	to       string
	username string
	password string
	host     string

	// send is swappable for tests.
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func NewMailer(cfg config.SMTPConfig) *Mailer {
	return &Mailer{
		addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		from:     cfg.From,
		to:       cfg.NotifyTo,
		username: cfg.Username,
		password: cfg.Password,
		host:     cfg.Host,
		send:     smtp.SendMail,
	}
}

func (m *Mailer) Enabled() bool { return m.host != "" && m.to != "" }

// BookingCreated emails a short summary of a booking captured on a call.
func (m *Mailer) BookingCreated(_ context.Context, b booking.Booking) error {
	if !m.Enabled() {
		return ErrDisabled
	}

	subject := fmt.Sprintf("New booking: %s for %s", b.ServiceType, b.CustomerName)
	var body strings.Builder
	fmt.Fprintf(&body, "Customer: %s\r\n", b.CustomerName)
	fmt.Fprintf(&body, "Phone: %s\r\n", b.CustomerPhone)
	if b.CustomerEmail != "" {
		fmt.Fprintf(&body, "Email: %s\r\n", b.CustomerEmail)
	}
	fmt.Fprintf(&body, "Service: %s\r\n", b.ServiceType)
	if b.PreferredDate != "" || b.PreferredTime != "" {
		fmt.Fprintf(&body, "Preferred: %s %s\r\n", b.PreferredDate, b.PreferredTime)
	}
	if b.Notes != "" {
		fmt.Fprintf(&body, "Notes: %s\r\n", b.Notes)
	}
	fmt.Fprintf(&body, "Booking ID: %s\r\n", b.ID)

	msg := buildMessage(m.from, m.to, subject, body.String())

	var auth smtp.Auth
	if m.username != "" {
		auth = smtp.PlainAuth("", m.username, m.password, m.host)
	}
	return m.send(m.addr, auth, m.from, []string{m.to}, msg)
}

func buildMessage(from, to, subject, body string) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: %s\r\n", sanitizeHeader(subject))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=utf-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(body)
	return []byte(b.String())
}

// sanitizeHeader strips CR/LF so caller-supplied names cannot inject headers.
func sanitizeHeader(s string) string {
	s = strings.ReplaceAll(s, "\r", " ")
	return strings.ReplaceAll(s, "\n", " ")
}
