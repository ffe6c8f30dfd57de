// Package scheduler запускает тики рассылки напоминаний по расписанию cron.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/magabrotheeeer/renewal-reminder/internal/lib/sl"
	"github.com/magabrotheeeer/renewal-reminder/internal/metrics"
	"github.com/magabrotheeeer/renewal-reminder/internal/services/reminder"
)

// ErrTickInProgress возвращается, если предыдущий тик еще не закончился.
var ErrTickInProgress = errors.New("tick already in progress")

// Исходы тика для метрик.
const (
	OutcomeCompleted  = "completed"
	OutcomeSkipped    = "skipped"
	OutcomeGuardError = "guard_error"
)

// Dispatcher обрабатывает один целевой день.
type Dispatcher interface {
	ProcessTargetDate(ctx context.Context, target reminder.Target) reminder.Result
}

// Planner вычисляет целевые дни тика. Ему удовлетворяет *reminder.Policy.
type Planner interface {
	TargetDatesForTick(now time.Time) []reminder.Target
}

// Clock источник текущего времени.
type Clock func() time.Time

// TickReport итог одного тика.
type TickReport struct {
	StartedAt   time.Time
	Duration    time.Duration
	Results     []reminder.Result
	Interrupted bool
}

// Sent суммарное число отправленных писем за тик.
func (r TickReport) Sent() int {
	n := 0
	for _, res := range r.Results {
		n += res.Sent
	}
	return n
}

// Failed суммарное число неудачных отправок за тик.
func (r TickReport) Failed() int {
	n := 0
	for _, res := range r.Results {
		n += res.Failed
	}
	return n
}

// Config параметры планировщика. Нулевые Clock и Guard заменяются
// системными часами и MutexGuard.
type Config struct {
	CronSpec    string
	Location    *time.Location
	RunOnStart  bool
	TickTimeout time.Duration
	Clock       Clock
	Guard       Guard
	Metrics     *metrics.Metrics
}

// Scheduler запускает тики по расписанию и вручную.
type Scheduler struct {
	dispatcher Dispatcher
	planner    Planner
	cfg        Config
	log        *slog.Logger

	running atomic.Bool
	wg      sync.WaitGroup
	cron    *cron.Cron
}

// New создает новый экземпляр Scheduler и проверяет расписание.
func New(dispatcher Dispatcher, planner Planner, cfg Config, log *slog.Logger) (*Scheduler, error) {
	const op = "scheduler.New"

	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if _, err := cron.ParseStandard(cfg.CronSpec); err != nil {
		return nil, fmt.Errorf("%s: invalid cron spec %q: %w", op, cfg.CronSpec, err)
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if cfg.Guard == nil {
		cfg.Guard = &MutexGuard{}
	}
	return &Scheduler{
		dispatcher: dispatcher,
		planner:    planner,
		cfg:        cfg,
		log:        log.With(slog.String("component", "scheduler")),
	}, nil
}

// Running сообщает, выполняется ли сейчас тик в этом процессе.
func (s *Scheduler) Running() bool {
	return s.running.Load()
}

// Tick выполняет один проход по всем целевым дням. Если guard занят,
// возвращает ErrTickInProgress и ничего не делает.
func (s *Scheduler) Tick(ctx context.Context) (TickReport, error) {
	const op = "scheduler.Tick"
	log := s.log.With(sl.Op(op))

	ok, err := s.cfg.Guard.TryLock(ctx)
	if err != nil {
		s.cfg.Metrics.TickFinished(OutcomeGuardError, 0)
		return TickReport{}, fmt.Errorf("%s: %w", op, err)
	}
	if !ok {
		log.Warn("previous tick still running, skipping")
		s.cfg.Metrics.TickFinished(OutcomeSkipped, 0)
		return TickReport{}, fmt.Errorf("%s: %w", op, ErrTickInProgress)
	}
	s.running.Store(true)
	defer func() {
		s.running.Store(false)
		if err := s.cfg.Guard.Unlock(context.WithoutCancel(ctx)); err != nil {
			log.Error("failed to release tick guard", sl.Err(err))
		}
	}()

	started := time.Now()
	now := s.cfg.Clock().In(s.cfg.Location)
	report := TickReport{StartedAt: now}
	targets := s.planner.TargetDatesForTick(now)
	log.Info("tick started", slog.Time("now", now), slog.Int("targets", len(targets)))

	for _, target := range targets {
		if ctx.Err() != nil {
			log.Warn("tick interrupted", sl.Err(ctx.Err()))
			report.Interrupted = true
			break
		}
		res := s.dispatcher.ProcessTargetDate(ctx, target)
		if res.Interrupted {
			report.Interrupted = true
		}
		report.Results = append(report.Results, res)
	}

	report.Duration = time.Since(started)
	s.cfg.Metrics.TickFinished(OutcomeCompleted, report.Duration)
	log.Info("tick finished",
		slog.Int("sent", report.Sent()),
		slog.Int("failed", report.Failed()),
		slog.Bool("interrupted", report.Interrupted),
		slog.Duration("duration", report.Duration),
	)
	return report, nil
}

// Start регистрирует тик в cron и запускает расписание. Тики, наступившие
// во время выполнения предыдущего, пропускаются.
func (s *Scheduler) Start(ctx context.Context) error {
	const op = "scheduler.Start"

	logger := cronLogger{log: s.log}
	s.cron = cron.New(
		cron.WithLocation(s.cfg.Location),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)
	if _, err := s.cron.AddFunc(s.cfg.CronSpec, func() { s.runScheduled(ctx) }); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	s.cron.Start()
	s.log.Info("scheduler started",
		slog.String("cron_spec", s.cfg.CronSpec),
		slog.String("timezone", s.cfg.Location.String()),
	)

	if s.cfg.RunOnStart {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.runScheduled(ctx)
		}()
	}
	return nil
}

// Stop останавливает расписание и ждет завершения текущего тика.
func (s *Scheduler) Stop() {
	if s.cron != nil {
		<-s.cron.Stop().Done()
	}
	s.wg.Wait()
	s.log.Info("scheduler stopped")
}

func (s *Scheduler) runScheduled(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	if s.cfg.TickTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.TickTimeout)
		defer cancel()
	}
	if _, err := s.Tick(ctx); err != nil && !errors.Is(err, ErrTickInProgress) {
		s.log.Error("scheduled tick failed", sl.Err(err))
	}
}

// cronLogger пишет события cron в slog.
type cronLogger struct {
	log *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.log.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.log.Error(msg, append(keysAndValues, sl.Err(err))...)
}
