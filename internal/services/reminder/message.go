package reminder

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/magabrotheeeer/renewal-reminder/internal/models"
)

const (
	categoryFallback = "service"
	amountFallback   = "N/A"
)

// Template оформление писем с напоминаниями.
type Template struct {
	CurrencySymbol string
	SenderName     string
}

// Subject тема письма.
func (t Template) Subject(sub *models.Subscription, target Target) string {
	if target.SameDay() {
		return fmt.Sprintf("%s renews today", sub.ServiceName)
	}
	return fmt.Sprintf("%s renews in %s day(s)", sub.ServiceName, target.Label)
}

// Body текст письма.
func (t Template) Body(sub *models.Subscription, target Target) string {
	category := categoryFallback
	if sub.Category != nil && *sub.Category != "" {
		category = *sub.Category
	}

	closing := fmt.Sprintf("This reminder is sent %s day(s) before renewal.", target.Label)
	if target.SameDay() {
		closing = "Please verify your payment method to avoid service interruption."
	}

	var b strings.Builder
	b.WriteString("Hi,\n\n")
	fmt.Fprintf(&b, "This is a reminder that your subscription to %s (%s)\n", sub.ServiceName, category)
	fmt.Fprintf(&b, "for %s renews on %s.\n\n", t.amount(sub.Amount), target.DayKey())
	b.WriteString(closing)
	b.WriteString("\n\nThanks,\n")
	b.WriteString(t.SenderName)
	return b.String()
}

// Email собирает письмо для подписки.
func (t Template) Email(from string, sub *models.Subscription, target Target) models.Email {
	return models.Email{
		From:    from,
		To:      sub.UserEmail,
		Subject: t.Subject(sub, target),
		Text:    t.Body(sub, target),
	}
}

func (t Template) amount(v *float64) string {
	if v == nil {
		return t.CurrencySymbol + amountFallback
	}
	if *v == float64(int64(*v)) {
		return t.CurrencySymbol + strconv.FormatInt(int64(*v), 10)
	}
	return t.CurrencySymbol + strconv.FormatFloat(*v, 'f', 2, 64)
}
