package repository

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/docker/go-connections/nat"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/magabrotheeeer/renewal-reminder/internal/lib/day"
	"github.com/magabrotheeeer/renewal-reminder/internal/migrations"
	"github.com/magabrotheeeer/renewal-reminder/internal/models"
)

func setupTestDatabase(t *testing.T) *Storage {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(time.Minute),
		),
	)
	require.NoError(t, err, "failed to start container")
	t.Cleanup(func() {
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %s", err)
		}
	})

	host, err := pgContainer.Host(ctx)
	require.NoError(t, err)
	port, err := pgContainer.MappedPort(ctx, nat.Port("5432/tcp"))
	require.NoError(t, err, "Failed to get port")

	connStr := fmt.Sprintf("postgres://testuser:testpass@%s:%s/testdb?sslmode=disable", host, port.Port())
	storage, err := New(ctx, connStr)
	require.NoError(t, err)
	t.Cleanup(func() { _ = storage.Close() })

	migrationsPath, err := filepath.Abs("../../../migrations")
	require.NoError(t, err)
	require.NoError(t, migrations.Run(storage.DB, migrationsPath))
	require.NoError(t, CheckDatabaseReady(ctx, storage))

	return storage
}

func ptr[T any](v T) *T { return &v }

func createSubscription(t *testing.T, s *Storage, sub models.Subscription) uuid.UUID {
	t.Helper()
	if sub.UserID == uuid.Nil {
		sub.UserID = uuid.New()
	}
	id, err := s.CreateSubscription(context.Background(), sub)
	require.NoError(t, err)
	return id
}

func TestStorage_Integration(t *testing.T) {
	storage := setupTestDatabase(t)
	ctx := context.Background()

	loc, err := time.LoadLocation("Asia/Kolkata")
	require.NoError(t, err)
	target := time.Date(2024, 3, 10, 0, 0, 0, 0, loc)
	start, end := day.Bounds(target)

	lastInstant := createSubscription(t, storage, models.Subscription{
		ServiceName:     "Netflix",
		UserEmail:       "a@x.com",
		Amount:          ptr(499.0),
		Category:        ptr("Entertainment"),
		NextRenewalDate: time.Date(2024, 3, 10, 23, 59, 59, 999_000_000, loc),
	})
	cancelled := createSubscription(t, storage, models.Subscription{
		ServiceName:     "Spotify",
		UserEmail:       "b@x.com",
		Status:          models.StatusCancelled,
		NextRenewalDate: time.Date(2024, 3, 10, 0, 0, 0, 0, loc),
	})
	createSubscription(t, storage, models.Subscription{
		ServiceName:     "Next day",
		UserEmail:       "c@x.com",
		NextRenewalDate: time.Date(2024, 3, 11, 0, 0, 0, 0, loc),
	})

	t.Run("find renewing between includes day bounds", func(t *testing.T) {
		subs, err := storage.FindRenewingBetween(ctx, start, end, nil)
		require.NoError(t, err)
		require.Len(t, subs, 2)

		ids := []uuid.UUID{subs[0].ID, subs[1].ID}
		assert.ElementsMatch(t, []uuid.UUID{lastInstant, cancelled}, ids)
	})

	t.Run("status filter", func(t *testing.T) {
		subs, err := storage.FindRenewingBetween(ctx, start, end, []models.Status{models.StatusActive})
		require.NoError(t, err)
		require.Len(t, subs, 1)
		assert.Equal(t, lastInstant, subs[0].ID)
		assert.Equal(t, "Netflix", subs[0].ServiceName)
		require.NotNil(t, subs[0].Amount)
		assert.InDelta(t, 499.0, *subs[0].Amount, 0.001)
		require.NotNil(t, subs[0].Category)
		assert.Equal(t, "Entertainment", *subs[0].Category)
		assert.Nil(t, subs[0].LastReminderDate)
		assert.Nil(t, subs[0].LastReminderLead)
	})

	t.Run("defaults are applied", func(t *testing.T) {
		sub, err := storage.GetSubscription(ctx, cancelled)
		require.NoError(t, err)
		require.NotNil(t, sub.Category)
		assert.Equal(t, "Other", *sub.Category)
		assert.Nil(t, sub.Amount)
		assert.Equal(t, models.RenewalMonthly, sub.RenewalType)
		assert.Equal(t, models.StatusCancelled, sub.Status)
	})

	t.Run("update last reminder date", func(t *testing.T) {
		err := storage.UpdateLastReminderDate(ctx, lastInstant, "2024-03-10", 3)
		require.NoError(t, err)

		sub, err := storage.GetSubscription(ctx, lastInstant)
		require.NoError(t, err)
		require.NotNil(t, sub.LastReminderDate)
		assert.Equal(t, "2024-03-10", *sub.LastReminderDate)
		require.NotNil(t, sub.LastReminderLead)
		assert.Equal(t, 3, *sub.LastReminderLead)
		assert.True(t, sub.Reminded("2024-03-10"))
	})

	t.Run("update unknown subscription", func(t *testing.T) {
		err := storage.UpdateLastReminderDate(ctx, uuid.New(), "2024-03-10", 0)
		require.ErrorIs(t, err, ErrSubscriptionNotFound)
	})

	t.Run("get unknown subscription", func(t *testing.T) {
		_, err := storage.GetSubscription(ctx, uuid.New())
		require.ErrorIs(t, err, ErrSubscriptionNotFound)
	})

	t.Run("cancelled context", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		_, err := storage.FindRenewingBetween(cctx, start, end, nil)
		require.ErrorIs(t, err, context.Canceled)
	})
}
