package scheduler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/magabrotheeeer/renewal-reminder/internal/http-server/handlers/health"
	"github.com/magabrotheeeer/renewal-reminder/internal/http-server/handlers/runtick"
	"github.com/magabrotheeeer/renewal-reminder/internal/http-server/handlers/testemail"
	"github.com/magabrotheeeer/renewal-reminder/internal/http-server/mware"
)

// Routes зависимости диагностических маршрутов.
type Routes struct {
	Mailer      testemail.Mailer
	From        string
	Ticker      runtick.Ticker
	TickTimeout time.Duration // ограничивает ручной тик
	Status      health.Status
	Checks      map[string]health.Check
	Gatherer    prometheus.Gatherer
}

// RegisterRoutes регистрирует диагностические маршруты планировщика.
func RegisterRoutes(r chi.Router, logger *slog.Logger, routes Routes) {
	r.Use(
		middleware.RequestID,
		mware.Logger(logger),
		middleware.Recoverer,
	)

	r.Get("/healthz", health.New(logger, routes.Status, routes.Checks))
	r.Route("/__cron", func(r chi.Router) {
		r.Get("/test-email", testemail.New(logger, routes.Mailer, routes.From))
		r.Post("/run", runtick.New(logger, routes.Ticker, routes.TickTimeout))
	})
	r.Handle("/metrics", promhttp.HandlerFor(routes.Gatherer, promhttp.HandlerOpts{}))
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "not found", http.StatusNotFound)
	})
}
