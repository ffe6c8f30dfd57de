// Package sender доставляет письма из очереди через SMTP.
package sender

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/magabrotheeeer/renewal-reminder/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/renewal-reminder/internal/lib/sl"
	"github.com/magabrotheeeer/renewal-reminder/internal/models"
)

// Mailer отправляет письмо напрямую.
type Mailer interface {
	Send(ctx context.Context, email models.Email) error
}

// Limiter ограничивает частоту отправки. Ему удовлетворяет *rate.Limiter.
type Limiter interface {
	Wait(ctx context.Context) error
}

type SenderService struct {
	mailer  Mailer
	limiter Limiter
	log     *slog.Logger
}

// NewSenderService создает новый экземпляр SenderService. limiter может быть nil.
func NewSenderService(mailer Mailer, limiter Limiter, log *slog.Logger) *SenderService {
	return &SenderService{
		mailer:  mailer,
		limiter: limiter,
		log:     log,
	}
}

// HandleEmail разбирает письмо из очереди и отправляет его. Неразбираемые
// сообщения и письма без получателя отбрасываются, ошибки отправки
// возвращают сообщение в очередь.
func (s *SenderService) HandleEmail(ctx context.Context, body []byte) error {
	const op = "sender.HandleEmail"

	var email models.Email
	if err := json.Unmarshal(body, &email); err != nil {
		s.log.Error("failed to unmarshal message body", sl.Err(err))
		return fmt.Errorf("%s: %w: %v", op, rabbitmq.ErrDiscard, err)
	}
	if email.To == "" {
		s.log.Warn("queued email without recipient", slog.String("subject", email.Subject))
		return fmt.Errorf("%s: %w: empty recipient", op, rabbitmq.ErrDiscard)
	}

	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
	}
	if err := s.mailer.Send(ctx, email); err != nil {
		s.log.Error("failed to send email", slog.String("to", email.To), sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}

	s.log.Info("email sent successfully", slog.String("to", email.To), slog.String("subject", email.Subject))
	return nil
}
