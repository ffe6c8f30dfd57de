package testemail_test

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/renewal-reminder/internal/http-server/handlers/testemail"
	"github.com/magabrotheeeer/renewal-reminder/internal/http-server/response"
	"github.com/magabrotheeeer/renewal-reminder/internal/models"
)

type MockMailer struct {
	mock.Mock
}

func (m *MockMailer) Send(ctx context.Context, email models.Email) error {
	args := m.Called(ctx, email)
	return args.Error(0)
}

type discardHandler struct{}

func (discardHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (discardHandler) Handle(context.Context, slog.Record) error { return nil }
func (discardHandler) WithAttrs([]slog.Attr) slog.Handler        { return discardHandler{} }
func (discardHandler) WithGroup(string) slog.Handler             { return discardHandler{} }

func makeLogger() *slog.Logger {
	return slog.New(discardHandler{})
}

const from = "Smart Subscription Manager <onboarding@resend.dev>"

func TestTestEmailHandler(t *testing.T) {
	tests := []struct {
		name       string
		query      string
		setupMock  func(*MockMailer)
		wantStatus int
		wantResp   string
	}{
		{
			name:  "sends to given address",
			query: "?to=me@example.com",
			setupMock: func(m *MockMailer) {
				m.On("Send", mock.Anything, mock.MatchedBy(func(e models.Email) bool {
					return e.To == "me@example.com" && e.From == from && e.Subject == "Test Email"
				})).Return(nil).Once()
			},
			wantStatus: http.StatusOK,
			wantResp:   response.StatusOK,
		},
		{
			name:  "defaults recipient",
			query: "",
			setupMock: func(m *MockMailer) {
				m.On("Send", mock.Anything, mock.MatchedBy(func(e models.Email) bool {
					return e.To == testemail.DefaultRecipient
				})).Return(nil).Once()
			},
			wantStatus: http.StatusOK,
			wantResp:   response.StatusOK,
		},
		{
			name:       "invalid address",
			query:      "?to=not-an-email",
			setupMock:  func(*MockMailer) {},
			wantStatus: http.StatusBadRequest,
			wantResp:   response.StatusError,
		},
		{
			name:  "mailer failure",
			query: "?to=me@example.com",
			setupMock: func(m *MockMailer) {
				m.On("Send", mock.Anything, mock.Anything).Return(errors.New("smtp down")).Once()
			},
			wantStatus: http.StatusInternalServerError,
			wantResp:   response.StatusError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mailer := new(MockMailer)
			tt.setupMock(mailer)

			req := httptest.NewRequest(http.MethodGet, "/__cron/test-email"+tt.query, nil)
			w := httptest.NewRecorder()
			testemail.New(makeLogger(), mailer, from).ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
			var resp response.Response
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Equal(t, tt.wantResp, resp.Status)
			mailer.AssertExpectations(t)
		})
	}
}
