// Package models содержит доменные структуры подписки, которые читает и обновляет
// планировщик напоминаний.
package models

import (
	"time"

	"github.com/google/uuid"
)

// Status статус подписки.
type Status string

// Возможные статусы подписки.
const (
	StatusActive    Status = "Active"
	StatusCancelled Status = "Cancelled"
	StatusExpired   Status = "Expired"
)

// RenewalType периодичность продления подписки.
type RenewalType string

// Возможные периоды продления.
const (
	RenewalMonthly RenewalType = "Monthly"
	RenewalYearly  RenewalType = "Yearly"
	RenewalWeekly  RenewalType = "Weekly"
	RenewalOneTime RenewalType = "One-time"
)

// Subscription запись о подписке пользователя.
// Category и Amount могут отсутствовать, LastReminderDate хранит ключ дня
// (YYYY-MM-DD), для которого уже было успешно отправлено напоминание.
type Subscription struct {
	ID               uuid.UUID   // Идентификатор подписки
	UserID           uuid.UUID   // Владелец подписки
	UserEmail        string      // Адрес получателя напоминаний
	ServiceName      string      // Название сервиса
	Category         *string     // Категория, может быть nil
	Amount           *float64    // Стоимость, может быть nil
	RenewalType      RenewalType // Периодичность продления
	NextRenewalDate  time.Time   // Дата следующего продления
	Status           Status      // Статус подписки
	LastReminderDate *string     // Маркер идемпотентности
	LastReminderLead *int        // Срок напоминания, записанный вместе с маркером
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Reminded сообщает, было ли уже отправлено напоминание для указанного дня.
func (s *Subscription) Reminded(dayKey string) bool {
	return s.LastReminderDate != nil && *s.LastReminderDate == dayKey
}

// RemindedWithLead сообщает, было ли напоминание для дня dayKey отправлено
// именно со сроком leadDays. Записи без срока считаются совпадающими.
func (s *Subscription) RemindedWithLead(dayKey string, leadDays int) bool {
	if !s.Reminded(dayKey) {
		return false
	}
	return s.LastReminderLead == nil || *s.LastReminderLead == leadDays
}

// Email письмо, которое передаётся почтовому транспорту или в очередь.
type Email struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Subject string `json:"subject"`
	Text    string `json:"text"`
}
