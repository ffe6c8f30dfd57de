package health

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/render"

	"github.com/magabrotheeeer/renewal-reminder/internal/http-server/response"
	"github.com/magabrotheeeer/renewal-reminder/internal/lib/sl"
)

const checkTimeout = 2 * time.Second

// Check проверяет одну зависимость.
type Check func(ctx context.Context) error

// Status сообщает, выполняется ли сейчас тик.
type Status interface {
	Running() bool
}

// New отвечает 200, если все проверки прошли, и 503 иначе.
func New(log *slog.Logger, status Status, checks map[string]Check) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.health.New"

		ctx, cancel := context.WithTimeout(r.Context(), checkTimeout)
		defer cancel()

		result := map[string]string{}
		healthy := true
		for name, check := range checks {
			if err := check(ctx); err != nil {
				log.Warn("health check failed", slog.String("op", op), slog.String("check", name), sl.Err(err))
				result[name] = err.Error()
				healthy = false
				continue
			}
			result[name] = "ok"
		}

		data := map[string]any{
			"checks":       result,
			"tick_running": status != nil && status.Running(),
		}
		if !healthy {
			render.Status(r, http.StatusServiceUnavailable)
			resp := response.Error("unhealthy")
			resp.Data = data
			render.JSON(w, r, resp)
			return
		}
		render.JSON(w, r, response.StatusOKWithData(data))
	}
}
