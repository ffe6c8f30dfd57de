package runtick

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/renewal-reminder/internal/http-server/response"
	"github.com/magabrotheeeer/renewal-reminder/internal/lib/sl"
	"github.com/magabrotheeeer/renewal-reminder/internal/services/scheduler"
)

type Ticker interface {
	Tick(ctx context.Context) (scheduler.TickReport, error)
}

// TargetSummary итог одного целевого дня в ответе.
type TargetSummary struct {
	Target           string `json:"target"`
	Label            string `json:"label"`
	Candidates       int    `json:"candidates"`
	Sent             int    `json:"sent"`
	Failed           int    `json:"failed"`
	SkippedDuplicate int    `json:"skipped_duplicate"`
	SkippedNoEmail   int    `json:"skipped_no_email"`
	MarkFailed       int    `json:"mark_failed"`
	QueryFailed      bool   `json:"query_failed"`
}

// Summary итог тика в ответе.
type Summary struct {
	StartedAt   string          `json:"started_at"`
	DurationMS  int64           `json:"duration_ms"`
	Sent        int             `json:"sent"`
	Failed      int             `json:"failed"`
	Interrupted bool            `json:"interrupted"`
	Targets     []TargetSummary `json:"targets"`
}

// New запускает один тик вручную. Тик выполняется с контекстом запроса,
// поэтому разрыв соединения прерывает обработку оставшихся подписок.
// Положительный timeout ограничивает тик так же, как плановый запуск.
func New(log *slog.Logger, ticker Ticker, timeout time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.runtick.New"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		ctx := r.Context()
		if timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}

		report, err := ticker.Tick(ctx)
		if errors.Is(err, scheduler.ErrTickInProgress) {
			log.Warn("manual tick rejected, another tick is running")
			render.Status(r, http.StatusConflict)
			render.JSON(w, r, response.Error("tick already in progress"))
			return
		}
		if err != nil {
			log.Error("manual tick failed", sl.Err(err))
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, response.Error("failed to run tick"))
			return
		}

		log.Info("manual tick finished", slog.Int("sent", report.Sent()), slog.Int("failed", report.Failed()))
		render.JSON(w, r, response.StatusOKWithData(summarize(report)))
	}
}

func summarize(report scheduler.TickReport) Summary {
	s := Summary{
		StartedAt:   report.StartedAt.Format("2006-01-02T15:04:05Z07:00"),
		DurationMS:  report.Duration.Milliseconds(),
		Sent:        report.Sent(),
		Failed:      report.Failed(),
		Interrupted: report.Interrupted,
		Targets:     make([]TargetSummary, 0, len(report.Results)),
	}
	for _, res := range report.Results {
		s.Targets = append(s.Targets, TargetSummary{
			Target:           res.Target.DayKey(),
			Label:            res.Target.Label,
			Candidates:       res.Candidates,
			Sent:             res.Sent,
			Failed:           res.Failed,
			SkippedDuplicate: res.SkippedDuplicate,
			SkippedNoEmail:   res.SkippedNoEmail,
			MarkFailed:       res.MarkFailed,
			QueryFailed:      res.QueryFailed,
		})
	}
	return s
}
