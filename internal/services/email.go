package services

import (
	"crypto/tls"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/featureboard/backend/internal/config"
	"github.com/featureboard/backend/pkg/logger"
)

// Mailer delivers an HTML message to a list of recipients.
type Mailer interface {
	Send(to []string, subject, body string) error
}

type EmailService struct {
	config *config.SMTPConfig
}

func NewEmailService(cfg *config.SMTPConfig) *EmailService {
	return &EmailService{config: cfg}
}

func (s *EmailService) Enabled() bool {
	return s.config.Enabled && s.config.Host != ""
}

// Send is a no-op when SMTP is disabled.
func (s *EmailService) Send(to []string, subject, body string) error {
	if !s.Enabled() {
		logger.Debug().Strs("to", to).Str("subject", subject).Msg("[Email] SMTP disabled, skipping")
		return nil
	}
	if len(to) == 0 {
		return nil
	}

	from := s.config.From
	if from == "" {
		from = s.config.Username
	}

	headers := []struct{ key, value string }{
		{"From", from},
		{"To", strings.Join(to, ",")},
		{"Subject", subject},
		{"MIME-Version", "1.0"},
		{"Content-Type", "text/html; charset=UTF-8"},
	}

	var message strings.Builder
	for _, h := range headers {
		message.WriteString(fmt.Sprintf("%s: %s\r\n", h.key, h.value))
	}
	message.WriteString("\r\n")
	message.WriteString(body)

	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	var auth smtp.Auth
	if s.config.Username != "" && s.config.Password != "" {
		auth = smtp.PlainAuth("", s.config.Username, s.config.Password, s.config.Host)
	}

	var err error
	if s.config.UseTLS {
		err = s.sendTLS(addr, auth, from, to, message.String())
	} else {
		err = smtp.SendMail(addr, auth, from, to, []byte(message.String()))
	}

	if err != nil {
		logger.Errorf("[Email] Failed to send email: %v", err)
		return err
	}

	logger.Infof("[Email] Sent %q to %d recipients", subject, len(to))
	return nil
}

func (s *EmailService) sendTLS(addr string, auth smtp.Auth, from string, to []string, message string) error {
	conn, err := tls.Dial("tcp", addr, &tls.Config{ServerName: s.config.Host})
	if err != nil {
		return err
	}
	defer conn.Close()

	client, err := smtp.NewClient(conn, s.config.Host)
	if err != nil {
		return err
	}
	defer client.Close()

	if auth != nil {
		if err := client.Auth(auth); err != nil {
			return err
		}
	}

	if err := client.Mail(from); err != nil {
		return err
	}

	for _, rcpt := range to {
		if err := client.Rcpt(rcpt); err != nil {
			return err
		}
	}

	w, err := client.Data()
	if err != nil {
		return err
	}

	if _, err := w.Write([]byte(message)); err != nil {
		return err
	}

	return w.Close()
}
