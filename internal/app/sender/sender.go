// Package sender собирает приложение, которое забирает письма из очереди
// и отправляет их через SMTP.
package sender

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/streadway/amqp"
	"golang.org/x/time/rate"

	"github.com/magabrotheeeer/renewal-reminder/internal/config"
	"github.com/magabrotheeeer/renewal-reminder/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/renewal-reminder/internal/lib/sl"
	"github.com/magabrotheeeer/renewal-reminder/internal/lib/smtp"
	senderservice "github.com/magabrotheeeer/renewal-reminder/internal/services/sender"
)

type App struct {
	conn          *amqp.Connection
	ch            *amqp.Channel
	senderService *senderservice.SenderService
	logger        *slog.Logger
}

func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	if cfg.RabbitMQURL == "" {
		return nil, fmt.Errorf("sender.New: rabbitmq url is required")
	}
	conn, err := rabbitmq.Connect(ctx, cfg.RabbitMQURL, cfg.RabbitMQMaxRetries, cfg.RabbitMQRetryDelay)
	if err != nil {
		return nil, err
	}

	ch, err := rabbitmq.SetupChannel(conn, rabbitmq.GetReminderQueues())
	if err != nil {
		_ = conn.Close()
		return nil, err
	}

	mailer := smtp.NewMailer(smtp.NewTransport(cfg.SMTP, logger), logger)
	limiter := rate.NewLimiter(rate.Limit(cfg.SendRate), cfg.SendBurst)
	senderService := senderservice.NewSenderService(mailer, limiter, logger)

	return &App{
		conn:          conn,
		ch:            ch,
		senderService: senderService,
		logger:        logger,
	}, nil
}

func (a *App) Run(ctx context.Context) error {
	wait, err := rabbitmq.ConsumerMessage(ctx, a.ch, rabbitmq.EmailQueue, a.senderService.HandleEmail, a.logger)
	if err != nil {
		a.logger.Error("failed to start email consumer", sl.Err(err))
		return err
	}
	a.logger.Info("consuming reminder emails", slog.String("queue", rabbitmq.EmailQueue))

	<-ctx.Done()
	a.logger.Info("Sender service shutting down gracefully")
	wait()

	if err := a.ch.Close(); err != nil {
		a.logger.Error("failed to close channel", sl.Err(err))
	}

	if err := a.conn.Close(); err != nil {
		a.logger.Error("failed to close connection", sl.Err(err))
	}

	return nil
}
