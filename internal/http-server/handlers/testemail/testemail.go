package testemail

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/renewal-reminder/internal/http-server/response"
	"github.com/magabrotheeeer/renewal-reminder/internal/lib/sl"
	"github.com/magabrotheeeer/renewal-reminder/internal/models"
)

// DefaultRecipient адрес, на который уходит письмо без параметра to.
const DefaultRecipient = "test@example.com"

const (
	subject = "Test Email"
	text    = "If you received this, the reminder email system is working!"
)

type Mailer interface {
	Send(ctx context.Context, email models.Email) error
}

type request struct {
	To string `validate:"required,email"`
}

// New отправляет фиксированное тестовое письмо на адрес из параметра to.
func New(log *slog.Logger, mailer Mailer, from string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.testemail.New"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		req := request{To: r.URL.Query().Get("to")}
		if req.To == "" {
			req.To = DefaultRecipient
		}
		if err := validator.New().Struct(req); err != nil {
			var validateErr validator.ValidationErrors
			errors.As(err, &validateErr)
			log.Error("invalid request", sl.Err(err))
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.ValidationError(validateErr))
			return
		}

		err := mailer.Send(r.Context(), models.Email{
			From:    from,
			To:      req.To,
			Subject: subject,
			Text:    text,
		})
		if err != nil {
			log.Error("failed to send test email", slog.String("to", req.To), sl.Err(err))
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, response.Error("failed to send test email"))
			return
		}

		log.Info("test email sent", slog.String("to", req.To))
		render.JSON(w, r, response.StatusOKWithData(map[string]string{
			"message": "Test email sent to " + req.To,
		}))
	}
}
