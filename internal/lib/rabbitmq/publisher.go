package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/renewal-reminder/internal/models"
)

// Publisher публикует сообщения. Ему удовлетворяет *amqp.Channel.
type Publisher interface {
	Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// PublishMessage публикует сообщение в RabbitMQ.
func PublishMessage(ch Publisher, exchange string, routingkey string, message any) error {
	const op = "rabbitmq.PublishMessage"
	body, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	err = ch.Publish(
		exchange,
		routingkey,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp.Persistent,
		},
	)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// ErrPublishNacked возвращается, если брокер отклонил публикацию.
var ErrPublishNacked = errors.New("publish nacked by broker")

// ErrConfirmsClosed возвращается, если канал закрылся до подтверждения публикации.
var ErrConfirmsClosed = errors.New("publish confirmations channel closed")

const confirmTimeout = 10 * time.Second

// ConfirmPublisher канал с подтверждением публикаций. Ему удовлетворяет *amqp.Channel.
type ConfirmPublisher interface {
	Publisher
	Confirm(noWait bool) error
	NotifyPublish(confirm chan amqp.Confirmation) chan amqp.Confirmation
}

// Mailer ставит письмо в очередь вместо прямой отправки.
// Отправка успешна только после ack брокера на публикацию.
type Mailer struct {
	ch         Publisher
	exchange   string
	routingKey string
	timeout    time.Duration

	mu       sync.Mutex
	confirms chan amqp.Confirmation
	seq      uint64
}

// NewMailer переводит канал в режим подтверждений и создает Mailer для очереди писем.
func NewMailer(ch ConfirmPublisher) (*Mailer, error) {
	const op = "rabbitmq.NewMailer"

	confirms := ch.NotifyPublish(make(chan amqp.Confirmation, 16))
	if err := ch.Confirm(false); err != nil {
		return nil, fmt.Errorf("%s: failed to enable publisher confirms: %w", op, err)
	}
	return &Mailer{
		ch:         ch,
		exchange:   Exchange,
		routingKey: EmailRoutingKey,
		timeout:    confirmTimeout,
		confirms:   confirms,
	}, nil
}

// Send публикует письмо и ждет подтверждения брокера.
// Публикации выполняются по одной, чтобы номер подтверждения совпадал с отправкой.
func (m *Mailer) Send(ctx context.Context, email models.Email) error {
	const op = "rabbitmq.Mailer.Send"
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := PublishMessage(m.ch, m.exchange, m.routingKey, email); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	m.seq++

	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()
	for {
		select {
		case c, ok := <-m.confirms:
			if !ok {
				return fmt.Errorf("%s: %w", op, ErrConfirmsClosed)
			}
			// подтверждение публикации, для которой Send уже вернул ошибку по таймауту
			if c.DeliveryTag < m.seq {
				continue
			}
			if !c.Ack {
				return fmt.Errorf("%s: %w", op, ErrPublishNacked)
			}
			return nil
		case <-ctx.Done():
			return fmt.Errorf("%s: waiting for confirm: %w", op, ctx.Err())
		}
	}
}
