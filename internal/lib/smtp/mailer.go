package smtp

import (
	"context"
	"fmt"
	"log/slog"
	"mime"
	"net/mail"
	"strings"

	"github.com/magabrotheeeer/renewal-reminder/internal/models"
)

// Mailer отправляет письма напрямую через SMTP транспорт.
type Mailer struct {
	transport TransportInterface
	log       *slog.Logger
}

// NewMailer создает новый экземпляр Mailer.
func NewMailer(transport TransportInterface, log *slog.Logger) *Mailer {
	return &Mailer{transport: transport, log: log}
}

// BuildMessage собирает текст письма с заголовками. Тема кодируется
// по RFC 2047, если содержит не-ASCII символы.
func BuildMessage(from string, email models.Email) []byte {
	return []byte(strings.Join([]string{
		"From: " + from,
		"To: " + email.To,
		"Subject: " + mime.QEncoding.Encode("utf-8", email.Subject),
		"MIME-Version: 1.0",
		"Content-Type: text/plain; charset=\"UTF-8\"",
		"",
		strings.ReplaceAll(email.Text, "\n", "\r\n"),
	}, "\r\n"))
}

// Send отправляет письмо. Адрес конверта берется из From письма,
// а если он пуст или не разбирается, используется пользователь SMTP.
func (m *Mailer) Send(ctx context.Context, email models.Email) error {
	const op = "smtp.Mailer.Send"

	if email.To == "" {
		return fmt.Errorf("%s: empty recipient", op)
	}
	from := email.From
	envelope := m.transport.GetSMTPUser()
	if from == "" {
		from = envelope
	} else if addr, err := mail.ParseAddress(from); err == nil && envelope == "" {
		envelope = addr.Address
	}

	client, err := m.transport.Connect(ctx)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer client.Close()

	if err := client.Mail(envelope); err != nil {
		return fmt.Errorf("%s: MAIL FROM %s: %w", op, envelope, err)
	}
	if err := client.Rcpt(email.To); err != nil {
		return fmt.Errorf("%s: RCPT TO %s: %w", op, email.To, err)
	}

	wc, err := client.Data()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if _, err = wc.Write(BuildMessage(from, email)); err != nil {
		_ = wc.Close()
		return fmt.Errorf("%s: failed to write email body: %w", op, err)
	}
	if err = wc.Close(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if err = client.Quit(); err != nil {
		m.log.Warn("failed to quit SMTP client", slog.String("to", email.To), slog.Any("error", err))
	}

	m.log.Debug("email sent", slog.String("to", email.To))
	return nil
}
