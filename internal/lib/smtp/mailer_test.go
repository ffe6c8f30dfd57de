package smtp

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/renewal-reminder/internal/config"
	"github.com/magabrotheeeer/renewal-reminder/internal/models"
)

type MockTransport struct {
	mock.Mock
}

func (m *MockTransport) Connect(ctx context.Context) (Client, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(Client), args.Error(1)
}

func (m *MockTransport) GetSMTPUser() string {
	args := m.Called()
	return args.String(0)
}

type MockSMTPClient struct {
	mock.Mock
}

func (m *MockSMTPClient) Mail(from string) error {
	args := m.Called(from)
	return args.Error(0)
}

func (m *MockSMTPClient) Rcpt(to string) error {
	args := m.Called(to)
	return args.Error(0)
}

func (m *MockSMTPClient) Data() (io.WriteCloser, error) {
	args := m.Called()
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(io.WriteCloser), args.Error(1)
}

func (m *MockSMTPClient) Close() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockSMTPClient) Quit() error {
	args := m.Called()
	return args.Error(0)
}

// bufferWriter собирает записанное письмо.
type bufferWriter struct {
	bytes.Buffer
	closeErr error
}

func (w *bufferWriter) Close() error { return w.closeErr }

func newNoopLogger() *slog.Logger {
	h := slog.NewTextHandler(io.Discard, &slog.HandlerOptions{})
	return slog.New(h)
}

var testEmail = models.Email{
	From:    "Smart Subscription Manager <onboarding@resend.dev>",
	To:      "a@x.com",
	Subject: "Netflix renews today",
	Text:    "Hi there,\nYour Netflix subscription renews today.",
}

func TestMailer_Send(t *testing.T) {
	tests := []struct {
		name         string
		email        models.Email
		setupMocks   func(*MockTransport, *MockSMTPClient, *bufferWriter)
		errorMessage string
	}{
		{
			name:  "success",
			email: testEmail,
			setupMocks: func(tr *MockTransport, c *MockSMTPClient, w *bufferWriter) {
				tr.On("GetSMTPUser").Return("sender@example.com")
				tr.On("Connect", mock.Anything).Return(c, nil).Once()
				c.On("Mail", "sender@example.com").Return(nil).Once()
				c.On("Rcpt", "a@x.com").Return(nil).Once()
				c.On("Data").Return(w, nil).Once()
				c.On("Quit").Return(nil).Once()
				c.On("Close").Return(nil).Once()
			},
		},
		{
			name:  "envelope from message when smtp user is empty",
			email: testEmail,
			setupMocks: func(tr *MockTransport, c *MockSMTPClient, w *bufferWriter) {
				tr.On("GetSMTPUser").Return("")
				tr.On("Connect", mock.Anything).Return(c, nil).Once()
				c.On("Mail", "onboarding@resend.dev").Return(nil).Once()
				c.On("Rcpt", "a@x.com").Return(nil).Once()
				c.On("Data").Return(w, nil).Once()
				c.On("Quit").Return(nil).Once()
				c.On("Close").Return(nil).Once()
			},
		},
		{
			name:  "quit error after accepted data is not a failure",
			email: testEmail,
			setupMocks: func(tr *MockTransport, c *MockSMTPClient, w *bufferWriter) {
				tr.On("GetSMTPUser").Return("sender@example.com")
				tr.On("Connect", mock.Anything).Return(c, nil).Once()
				c.On("Mail", "sender@example.com").Return(nil).Once()
				c.On("Rcpt", "a@x.com").Return(nil).Once()
				c.On("Data").Return(w, nil).Once()
				c.On("Quit").Return(errors.New("connection reset")).Once()
				c.On("Close").Return(nil).Once()
			},
		},
		{
			name:  "connect error",
			email: testEmail,
			setupMocks: func(tr *MockTransport, _ *MockSMTPClient, _ *bufferWriter) {
				tr.On("GetSMTPUser").Return("sender@example.com")
				tr.On("Connect", mock.Anything).Return(nil, errors.New("dial tcp: refused")).Once()
			},
			errorMessage: "dial tcp: refused",
		},
		{
			name:  "recipient rejected",
			email: testEmail,
			setupMocks: func(tr *MockTransport, c *MockSMTPClient, _ *bufferWriter) {
				tr.On("GetSMTPUser").Return("sender@example.com")
				tr.On("Connect", mock.Anything).Return(c, nil).Once()
				c.On("Mail", "sender@example.com").Return(nil).Once()
				c.On("Rcpt", "a@x.com").Return(errors.New("550 no such user")).Once()
				c.On("Close").Return(nil).Once()
			},
			errorMessage: "RCPT TO",
		},
		{
			name:  "data close error",
			email: testEmail,
			setupMocks: func(tr *MockTransport, c *MockSMTPClient, w *bufferWriter) {
				w.closeErr = errors.New("554 rejected")
				tr.On("GetSMTPUser").Return("sender@example.com")
				tr.On("Connect", mock.Anything).Return(c, nil).Once()
				c.On("Mail", "sender@example.com").Return(nil).Once()
				c.On("Rcpt", "a@x.com").Return(nil).Once()
				c.On("Data").Return(w, nil).Once()
				c.On("Close").Return(nil).Once()
			},
			errorMessage: "554 rejected",
		},
		{
			name:  "empty recipient",
			email: models.Email{Subject: "x"},
			setupMocks: func(_ *MockTransport, _ *MockSMTPClient, _ *bufferWriter) {
			},
			errorMessage: "empty recipient",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := new(MockTransport)
			client := new(MockSMTPClient)
			w := &bufferWriter{}
			tt.setupMocks(tr, client, w)

			err := NewMailer(tr, newNoopLogger()).Send(context.Background(), tt.email)

			if tt.errorMessage != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errorMessage)
			} else {
				require.NoError(t, err)
				assert.Contains(t, w.String(), "Subject: Netflix renews today\r\n")
				assert.Contains(t, w.String(), "To: a@x.com\r\n")
			}
			tr.AssertExpectations(t)
			client.AssertExpectations(t)
		})
	}
}

func TestBuildMessage(t *testing.T) {
	msg := string(BuildMessage("Smart Subscription Manager <onboarding@resend.dev>", models.Email{
		To:      "a@x.com",
		Subject: "Подписка renews today",
		Text:    "line one\nAmount: ₹499",
	}))

	headers, body, found := strings.Cut(msg, "\r\n\r\n")
	require.True(t, found)
	assert.Contains(t, headers, "From: Smart Subscription Manager <onboarding@resend.dev>")
	assert.Contains(t, headers, "Subject: =?utf-8?q?")
	assert.Contains(t, headers, `Content-Type: text/plain; charset="UTF-8"`)
	assert.Equal(t, "line one\r\nAmount: ₹499", body)
}

func TestTransport_GetSMTPUser(t *testing.T) {
	tr := NewTransport(config.SMTP{SMTPUser: "mailer@example.com"}, newNoopLogger())
	assert.Equal(t, "mailer@example.com", tr.GetSMTPUser())
}

func TestTransport_ConnectRefused(t *testing.T) {
	tr := NewTransport(config.SMTP{SMTPHost: "127.0.0.1", SMTPPort: "1"}, newNoopLogger())

	_, err := tr.Connect(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to dial SMTP server")
}
