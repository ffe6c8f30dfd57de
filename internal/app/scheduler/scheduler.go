// Package scheduler собирает приложение планировщика напоминаний:
// хранилище, доставку писем, расписание и диагностический HTTP-сервер.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/streadway/amqp"
	"golang.org/x/time/rate"

	"github.com/magabrotheeeer/renewal-reminder/internal/cache"
	"github.com/magabrotheeeer/renewal-reminder/internal/config"
	"github.com/magabrotheeeer/renewal-reminder/internal/http-server/handlers/health"
	"github.com/magabrotheeeer/renewal-reminder/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/renewal-reminder/internal/lib/sl"
	"github.com/magabrotheeeer/renewal-reminder/internal/lib/smtp"
	"github.com/magabrotheeeer/renewal-reminder/internal/metrics"
	"github.com/magabrotheeeer/renewal-reminder/internal/migrations"
	"github.com/magabrotheeeer/renewal-reminder/internal/services/reminder"
	schedulerservice "github.com/magabrotheeeer/renewal-reminder/internal/services/scheduler"
	"github.com/magabrotheeeer/renewal-reminder/internal/storage/repository"
)

const shutdownTimeout = 15 * time.Second

// App представляет приложение планировщика.
type App struct {
	scheduler *schedulerservice.Scheduler
	server    *http.Server
	db        *repository.Storage
	cache     *cache.Cache
	conn      *amqp.Connection
	ch        *amqp.Channel
	logger    *slog.Logger
}

func waitForDB(ctx context.Context, db *repository.Storage) error {
	var err error
	for range 10 {
		if err = repository.CheckDatabaseReady(ctx, db); err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(3 * time.Second):
		}
	}
	return fmt.Errorf("database not ready after retries: %w", err)
}

// New создает новый экземпляр приложения планировщика.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	app := &App{logger: logger}

	loc, err := cfg.Reminder.Location()
	if err != nil {
		return nil, err
	}

	app.db, err = repository.New(ctx, cfg.StorageConnectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect storage: %w", err)
	}
	if err := migrations.Run(app.db.DB, cfg.MigrationsPath); err != nil {
		app.closeResources()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	if err := waitForDB(ctx, app.db); err != nil {
		app.closeResources()
		return nil, err
	}

	var mailer reminder.Mailer
	switch cfg.Delivery {
	case config.DeliveryQueue:
		app.conn, err = rabbitmq.Connect(ctx, cfg.RabbitMQURL, cfg.RabbitMQMaxRetries, cfg.RabbitMQRetryDelay)
		if err != nil {
			app.closeResources()
			return nil, fmt.Errorf("failed to connect RabbitMQ: %w", err)
		}
		app.ch, err = rabbitmq.SetupChannel(app.conn, rabbitmq.GetReminderQueues())
		if err != nil {
			app.closeResources()
			return nil, fmt.Errorf("failed to setup RabbitMQ channel: %w", err)
		}
		mailer, err = rabbitmq.NewMailer(app.ch)
		if err != nil {
			app.closeResources()
			return nil, err
		}
	default:
		mailer = smtp.NewMailer(smtp.NewTransport(cfg.SMTP, logger), logger)
	}

	var guard schedulerservice.Guard
	if cfg.Guard == config.GuardRedis {
		app.cache, err = cache.InitServer(ctx, cfg.RedisConnection)
		if err != nil {
			app.closeResources()
			return nil, fmt.Errorf("cache not initialized: %w", err)
		}
		guard = schedulerservice.NewRedisGuard(app.cache, "", cfg.GuardTTL)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	leadTimes := make([]reminder.LeadTime, 0, len(cfg.LeadTimes))
	for _, lt := range cfg.LeadTimes {
		leadTimes = append(leadTimes, reminder.LeadTime{Days: lt.Days, Label: lt.Label})
	}
	policy, err := reminder.NewPolicy(leadTimes, reminder.Options{
		HonorStatusFilter:   cfg.HonorStatusFilter,
		DistinctLeadMarkers: !cfg.DayKeyMarkersOnly,
	})
	if err != nil {
		app.closeResources()
		return nil, err
	}

	dispatcher := reminder.NewDispatcher(app.db, mailer, policy, reminder.DispatcherConfig{
		From: cfg.From,
		Template: reminder.Template{
			CurrencySymbol: cfg.CurrencySymbol,
			SenderName:     cfg.SenderName,
		},
		Limiter: rate.NewLimiter(rate.Limit(cfg.SendRate), cfg.SendBurst),
		Metrics: m,
	}, logger)

	app.scheduler, err = schedulerservice.New(dispatcher, policy, schedulerservice.Config{
		CronSpec:    cfg.CronSpec,
		Location:    loc,
		RunOnStart:  cfg.RunOnStart,
		TickTimeout: cfg.TickTimeout,
		Guard:       guard,
		Metrics:     m,
	}, logger)
	if err != nil {
		app.closeResources()
		return nil, err
	}

	checks := map[string]health.Check{
		"postgres": app.db.DB.PingContext,
	}
	if app.cache != nil {
		checks["redis"] = func(ctx context.Context) error { return app.cache.Db.Ping(ctx).Err() }
	}
	if app.conn != nil {
		checks["rabbitmq"] = func(context.Context) error {
			if app.conn.IsClosed() {
				return amqp.ErrClosed
			}
			return nil
		}
	}

	router := chi.NewRouter()
	RegisterRoutes(router, logger, Routes{
		Mailer:      mailer,
		From:        cfg.From,
		Ticker:      app.scheduler,
		TickTimeout: cfg.TickTimeout,
		Status:      app.scheduler,
		Checks:      checks,
		Gatherer:    reg,
	})

	app.server = &http.Server{
		Addr:         cfg.AddressHTTP,
		Handler:      router,
		ReadTimeout:  cfg.TimeoutHTTP,
		WriteTimeout: cfg.TickTimeout + cfg.TimeoutHTTP,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return app, nil
}

// Run запускает расписание и HTTP-сервер и блокируется до отмены ctx.
func (a *App) Run(ctx context.Context) error {
	if err := a.scheduler.Start(ctx); err != nil {
		a.closeResources()
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("HTTP server starting on", slog.String("address", a.server.Addr))
		err := a.server.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			errCh <- nil
		} else {
			errCh <- err
		}
	}()

	var runErr error
	select {
	case runErr = <-errCh:
	case <-ctx.Done():
		a.logger.Info("shutting down scheduler service")
		timeoutCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := a.server.Shutdown(timeoutCtx); err != nil {
			a.logger.Error("failed to shutdown HTTP server", sl.Err(err))
		}
	}

	a.scheduler.Stop()
	a.closeResources()
	return runErr
}

func (a *App) closeResources() {
	if a.ch != nil {
		if err := a.ch.Close(); err != nil {
			a.logger.Error("failed to close channel", sl.Err(err))
		}
	}
	if a.conn != nil {
		if err := a.conn.Close(); err != nil {
			a.logger.Error("failed to close connection", sl.Err(err))
		}
	}
	if a.cache != nil {
		if err := a.cache.Close(); err != nil {
			a.logger.Error("failed to close redis", sl.Err(err))
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.Error("failed to close storage", sl.Err(err))
		}
	}
}
