// Package mail sends the transactional emails the blog needs (password resets).
// Two implementations are provided: SMTPMailer for real delivery and LogMailer for
// development setups without an SMTP relay.
package mail

import (
	"context"
	"fmt"
	"log"
	"net/smtp"
	"strconv"
	"strings"

	"github.com/user/blog-go/config"
)

// Mailer delivers a single plain-text message.
type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}

// New picks the mailer for cfg: SMTP when a host is configured, the log mailer otherwise.
func New(cfg *config.MailConfig) Mailer {
	if cfg == nil || cfg.Host == "" {
		log.Println("SMTP_HOST not set; outgoing mail will be written to the log")
		return NewLogMailer()
	}
	return NewSMTPMailer(cfg)
}

// sendMailFunc matches smtp.SendMail so tests can capture the outgoing message.
type sendMailFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

type SMTPMailer struct {
	cfg      *config.MailConfig
	sendMail sendMailFunc
}

func NewSMTPMailer(cfg *config.MailConfig) *SMTPMailer {
	return &SMTPMailer{cfg: cfg, sendMail: smtp.SendMail}
}

func (m *SMTPMailer) Send(ctx context.Context, to, subject, body string) error {
	// net/smtp has no context support; at least honour a request that is already gone.
	if err := ctx.Err(); err != nil {
		return err
	}

	var auth smtp.Auth
	if m.cfg.Username != "" {
		auth = smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)
	}

	addr := m.cfg.Host + ":" + strconv.Itoa(m.cfg.Port)
	if err := m.sendMail(addr, auth, m.cfg.From, []string{to}, buildMessage(m.cfg.From, to, subject, body)); err != nil {
		log.Printf("Failed to send mail to %s: %v", to, err)
		return fmt.Errorf("smtp send to %s: %w", to, err)
	}
	log.Printf("Mail sent to %s", to)
	return nil
}

func buildMessage(from, to, subject, body string) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: %s\r\n", subject)
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=\"UTF-8\"\r\n\r\n")
	b.WriteString(body)
	b.WriteString("\r\n")
	return []byte(b.String())
}

// LogMailer writes messages to the standard logger instead of sending them.
type LogMailer struct{}

func NewLogMailer() *LogMailer { return &LogMailer{} }

func (LogMailer) Send(ctx context.Context, to, subject, body string) error {
	log.Printf("[mail] to=%s subject=%q\n%s", to, subject, body)
	return nil
}
