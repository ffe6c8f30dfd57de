// Package metrics описывает метрики Prometheus планировщика напоминаний.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "renewal_reminder"

// Причины пропуска подписки.
const (
	SkipDuplicate = "duplicate"
	SkipNoEmail   = "no_email"
)

// Metrics набор счётчиков диспетчера и триггера.
// Методы безопасно вызывать на nil, тогда метрики не пишутся.
type Metrics struct {
	sent          *prometheus.CounterVec
	failed        *prometheus.CounterVec
	skipped       *prometheus.CounterVec
	markFailures  prometheus.Counter
	queryFailures prometheus.Counter
	ticks         *prometheus.CounterVec
	tickDuration  prometheus.Histogram
}

// New создаёт метрики и регистрирует их в reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		sent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reminders_sent_total",
			Help:      "Reminders delivered successfully, by lead time label.",
		}, []string{"label"}),
		failed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reminders_failed_total",
			Help:      "Reminders whose delivery failed, by lead time label.",
		}, []string{"label"}),
		skipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reminders_skipped_total",
			Help:      "Candidates skipped without a delivery attempt, by reason.",
		}, []string{"reason"}),
		markFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reminder_mark_failures_total",
			Help:      "Reminders sent whose idempotency marker could not be persisted.",
		}),
		queryFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "candidate_query_failures_total",
			Help:      "Target dates aborted because candidates could not be loaded.",
		}),
		ticks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ticks_total",
			Help:      "Scheduler ticks by outcome.",
		}, []string{"outcome"}),
		tickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "tick_duration_seconds",
			Help:      "Duration of completed scheduler ticks.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
		}),
	}
	reg.MustRegister(m.sent, m.failed, m.skipped, m.markFailures, m.queryFailures, m.ticks, m.tickDuration)
	return m
}

// ReminderSent увеличивает счётчик отправленных напоминаний.
func (m *Metrics) ReminderSent(label string) {
	if m == nil {
		return
	}
	m.sent.WithLabelValues(label).Inc()
}

// ReminderFailed увеличивает счётчик неудачных отправок.
func (m *Metrics) ReminderFailed(label string) {
	if m == nil {
		return
	}
	m.failed.WithLabelValues(label).Inc()
}

// ReminderSkipped увеличивает счётчик пропусков по причине reason.
func (m *Metrics) ReminderSkipped(reason string) {
	if m == nil {
		return
	}
	m.skipped.WithLabelValues(reason).Inc()
}

// MarkFailed учитывает письмо, для которого не удалось сохранить маркер.
func (m *Metrics) MarkFailed() {
	if m == nil {
		return
	}
	m.markFailures.Inc()
}

// QueryFailed учитывает ошибку выборки кандидатов.
func (m *Metrics) QueryFailed() {
	if m == nil {
		return
	}
	m.queryFailures.Inc()
}

// TickFinished учитывает завершённый или пропущенный тик.
func (m *Metrics) TickFinished(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.ticks.WithLabelValues(outcome).Inc()
	if d > 0 {
		m.tickDuration.Observe(d.Seconds())
	}
}
