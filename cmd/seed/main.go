// Команда seed добавляет подписки с продлением сегодня и через заданное
// число дней, чтобы проверить рассылку вручную.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/magabrotheeeer/renewal-reminder/internal/config"
	"github.com/magabrotheeeer/renewal-reminder/internal/lib/day"
	"github.com/magabrotheeeer/renewal-reminder/internal/lib/logger"
	"github.com/magabrotheeeer/renewal-reminder/internal/lib/sl"
	"github.com/magabrotheeeer/renewal-reminder/internal/migrations"
	"github.com/magabrotheeeer/renewal-reminder/internal/models"
	"github.com/magabrotheeeer/renewal-reminder/internal/storage/repository"
)

func main() {
	email := flag.String("email", "test@example.com", "recipient of the seeded subscriptions")
	lead := flag.Int("lead", 3, "days ahead for the advance reminder subscription")
	flag.Parse()

	cfg := config.MustLoad()
	log := logger.New(cfg.Env)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := repository.New(ctx, cfg.StorageConnectionString)
	if err != nil {
		log.Error("failed to connect storage", sl.Err(err))
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	if err := migrations.Run(db.DB, cfg.MigrationsPath); err != nil {
		log.Error("failed to run migrations", sl.Err(err))
		os.Exit(1)
	}

	loc, err := cfg.Location()
	if err != nil {
		log.Error("invalid timezone", sl.Err(err))
		os.Exit(1)
	}
	today := day.Start(time.Now().In(loc))
	userID := uuid.New()
	amount := 499.0
	category := "Entertainment"

	seeds := []models.Subscription{
		{
			ServiceName:     "Netflix",
			Category:        &category,
			Amount:          &amount,
			NextRenewalDate: today.Add(10 * time.Hour),
		},
		{
			ServiceName:     "Spotify",
			NextRenewalDate: day.AddDays(today, *lead).Add(18 * time.Hour),
		},
	}
	for _, sub := range seeds {
		sub.UserID = userID
		sub.UserEmail = *email
		id, err := db.CreateSubscription(ctx, sub)
		if err != nil {
			log.Error("failed to create subscription", slog.String("service", sub.ServiceName), sl.Err(err))
			os.Exit(1)
		}
		log.Info("subscription created",
			slog.String("id", id.String()),
			slog.String("service", sub.ServiceName),
			slog.String("renews", day.Key(sub.NextRenewalDate)),
		)
	}
}
