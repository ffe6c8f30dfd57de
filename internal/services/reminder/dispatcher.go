package reminder

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/magabrotheeeer/renewal-reminder/internal/lib/day"
	"github.com/magabrotheeeer/renewal-reminder/internal/lib/sl"
	"github.com/magabrotheeeer/renewal-reminder/internal/metrics"
	"github.com/magabrotheeeer/renewal-reminder/internal/models"
)

const markTimeout = 10 * time.Second

// SubscriptionStore хранилище подписок, из которого диспетчер берёт кандидатов.
type SubscriptionStore interface {
	FindRenewingBetween(ctx context.Context, start, end time.Time, statuses []models.Status) ([]*models.Subscription, error)
	UpdateLastReminderDate(ctx context.Context, id uuid.UUID, dayKey string, leadDays int) error
}

// Mailer доставляет письмо. Любая ошибка считается неудачной отправкой.
type Mailer interface {
	Send(ctx context.Context, email models.Email) error
}

// Limiter ограничивает частоту обращений к почтовому провайдеру.
// Ему удовлетворяет *rate.Limiter.
type Limiter interface {
	Wait(ctx context.Context) error
}

// Result итог обработки одного целевого дня.
type Result struct {
	Target           Target
	Candidates       int
	Sent             int
	Failed           int
	SkippedDuplicate int
	SkippedNoEmail   int
	MarkFailed       int
	QueryFailed      bool
	Interrupted      bool
}

// LogValue позволяет писать Result в лог одной группой.
func (r Result) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("target", r.Target.DayKey()),
		slog.String("label", r.Target.Label),
		slog.Int("candidates", r.Candidates),
		slog.Int("sent", r.Sent),
		slog.Int("failed", r.Failed),
		slog.Int("skipped_duplicate", r.SkippedDuplicate),
		slog.Int("skipped_no_email", r.SkippedNoEmail),
		slog.Int("mark_failed", r.MarkFailed),
		slog.Bool("query_failed", r.QueryFailed),
		slog.Bool("interrupted", r.Interrupted),
	)
}

// DispatcherConfig необязательные параметры диспетчера.
type DispatcherConfig struct {
	From     string
	Template Template
	Limiter  Limiter
	Metrics  *metrics.Metrics
}

// Dispatcher рассылает напоминания для целевых дней.
type Dispatcher struct {
	store   SubscriptionStore
	mailer  Mailer
	policy  *Policy
	cfg     DispatcherConfig
	log     *slog.Logger
	metrics *metrics.Metrics
}

// NewDispatcher создает новый экземпляр Dispatcher.
func NewDispatcher(store SubscriptionStore, mailer Mailer, policy *Policy, cfg DispatcherConfig, log *slog.Logger) *Dispatcher {
	return &Dispatcher{
		store:   store,
		mailer:  mailer,
		policy:  policy,
		cfg:     cfg,
		log:     log,
		metrics: cfg.Metrics,
	}
}

// ProcessTargetDate находит подписки с продлением в целевой день и последовательно
// отправляет по ним напоминания. Ошибка по одной подписке не прерывает обработку остальных.
// Отправка и запись маркера не транзакционны: если маркер не сохранился после
// успешной отправки, следующий тик отправит письмо повторно.
func (d *Dispatcher) ProcessTargetDate(ctx context.Context, target Target) Result {
	const op = "reminder.ProcessTargetDate"

	start, end := day.Bounds(target.Date)
	key := day.Key(target.Date)
	log := d.log.With(
		sl.Op(op),
		slog.String("target", key),
		slog.String("label", target.Label),
	)
	res := Result{Target: target}

	subs, err := d.store.FindRenewingBetween(ctx, start, end, d.policy.Statuses())
	if err != nil {
		log.Error("failed to query subscriptions", sl.Err(err))
		d.metrics.QueryFailed()
		res.QueryFailed = true
		return res
	}
	res.Candidates = len(subs)
	if len(subs) == 0 {
		log.Info("no subscriptions to remind")
		return res
	}
	log.Info("found subscriptions to remind", slog.Int("count", len(subs)))

	for _, sub := range subs {
		if ctx.Err() != nil {
			log.Warn("target date processing interrupted", sl.Err(ctx.Err()))
			res.Interrupted = true
			break
		}
		d.processOne(ctx, log, sub, target, &res)
	}

	log.Info("target date processed", slog.Any("result", res))
	return res
}

func (d *Dispatcher) processOne(ctx context.Context, log *slog.Logger, sub *models.Subscription, target Target, res *Result) {
	key := target.DayKey()
	log = log.With(slog.String("subscription_id", sub.ID.String()))

	if !d.policy.IsDue(sub, target) {
		log.Info("skipping duplicate reminder")
		d.metrics.ReminderSkipped(metrics.SkipDuplicate)
		res.SkippedDuplicate++
		return
	}
	if sub.UserEmail == "" {
		log.Warn("skipping subscription without user email")
		d.metrics.ReminderSkipped(metrics.SkipNoEmail)
		res.SkippedNoEmail++
		return
	}

	if d.cfg.Limiter != nil {
		if err := d.cfg.Limiter.Wait(ctx); err != nil {
			log.Error("send rate limiter aborted", sl.Err(err))
			d.metrics.ReminderFailed(target.Label)
			res.Failed++
			return
		}
	}

	email := d.cfg.Template.Email(d.cfg.From, sub, target)
	if err := d.mailer.Send(ctx, email); err != nil {
		log.Error("failed to send reminder", slog.String("to", sub.UserEmail), sl.Err(err))
		d.metrics.ReminderFailed(target.Label)
		res.Failed++
		return
	}
	d.metrics.ReminderSent(target.Label)
	res.Sent++

	lead := target.Days
	sub.LastReminderDate = &key
	sub.LastReminderLead = &lead
	markCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), markTimeout)
	defer cancel()
	if err := d.store.UpdateLastReminderDate(markCtx, sub.ID, key, lead); err != nil {
		log.Error("reminder sent but marker not saved",
			slog.String("event", "duplicate_risk"),
			slog.String("to", sub.UserEmail),
			sl.Err(err),
		)
		d.metrics.MarkFailed()
		res.MarkFailed++
		return
	}
	log.Info("reminder sent", slog.String("to", sub.UserEmail), slog.String("service", sub.ServiceName))
}
