package smtp

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/smtp"
	"strings"
	"time"
)

type Message struct {
	To       string
	Subject  string
	HTMLBody string
}

type Sender struct {
	Host     string
	Port     string
	Username string
	Password string
	From     string
	FromName string

	// Dial is swapped in tests; nil uses smtp.SendMail.
	Dial func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

var ErrNotConfigured = errors.New("smtp not configured")

func (s *Sender) Configured() bool {
	return s != nil && s.Host != "" && s.Port != "" && s.From != ""
}

// Send delivers an HTML email. ctx bounds the whole exchange.
func (s *Sender) Send(ctx context.Context, m Message) error {
	if !s.Configured() {
		return ErrNotConfigured
	}
	if strings.ContainsAny(m.To, "\r\n") || strings.ContainsAny(m.Subject, "\r\n") {
		return errors.New("smtp: header injection")
	}

	msg := s.build(m)
	addr := net.JoinHostPort(s.Host, s.Port)
	var auth smtp.Auth
	if s.Username != "" {
		auth = smtp.PlainAuth("", s.Username, s.Password, s.Host)
	}
	send := s.Dial
	if send == nil {
		send = smtp.SendMail
	}

	errCh := make(chan error, 1)
	go func() { errCh <- send(addr, auth, s.From, []string{m.To}, msg) }()
	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("smtp send: %w", err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Sender) build(m Message) []byte {
	from := s.From
	if s.FromName != "" {
		from = fmt.Sprintf("%s <%s>", s.FromName, s.From)
	}
	var b strings.Builder
	b.WriteString("From: " + from + "\r\n")
	b.WriteString("To: " + m.To + "\r\n")
	b.WriteString("Subject: " + m.Subject + "\r\n")
	b.WriteString("Date: " + time.Now().UTC().Format(time.RFC1123Z) + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=\"UTF-8\"\r\n\r\n")
	b.WriteString(m.HTMLBody)
	return []byte(b.String())
}
