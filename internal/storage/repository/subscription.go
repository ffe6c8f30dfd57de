package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/magabrotheeeer/renewal-reminder/internal/models"
)

const subscriptionColumns = `id, user_id, user_email, service_name, category, amount, renewal_type,
	next_renewal_date, status, last_reminder_date, last_reminder_lead, created_at, updated_at`

// FindRenewingBetween возвращает подписки, у которых дата продления попадает
// в [start, end] включительно. Пустой statuses означает любые статусы.
func (s *Storage) FindRenewingBetween(ctx context.Context, start, end time.Time, statuses []models.Status) ([]*models.Subscription, error) {
	const op = "storage.FindRenewingBetween"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT ` + subscriptionColumns + `
			  FROM subscriptions
			  WHERE next_renewal_date BETWEEN $1 AND $2`
	args := []any{start, end}
	if len(statuses) > 0 {
		names := make([]string, len(statuses))
		for i, st := range statuses {
			names[i] = string(st)
		}
		query += ` AND status = ANY($3)`
		args = append(args, names)
	}
	query += ` ORDER BY next_renewal_date, id`

	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var result []*models.Subscription
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// UpdateLastReminderDate записывает маркер отправленного напоминания.
func (s *Storage) UpdateLastReminderDate(ctx context.Context, id uuid.UUID, dayKey string, leadDays int) error {
	const op = "storage.UpdateLastReminderDate"

	query := `UPDATE subscriptions
			  SET last_reminder_date = $1, last_reminder_lead = $2, updated_at = now()
			  WHERE id = $3`
	result, err := s.DB.ExecContext(ctx, query, dayKey, leadDays, id)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", op, ErrSubscriptionNotFound)
	}
	return nil
}

// CreateSubscription вставляет подписку и возвращает её ID.
func (s *Storage) CreateSubscription(ctx context.Context, sub models.Subscription) (uuid.UUID, error) {
	const op = "storage.CreateSubscription"

	if sub.RenewalType == "" {
		sub.RenewalType = models.RenewalMonthly
	}
	if sub.Status == "" {
		sub.Status = models.StatusActive
	}
	query := `INSERT INTO subscriptions (user_id, user_email, service_name, category, amount,
				renewal_type, next_renewal_date, status)
			  VALUES ($1, $2, $3, COALESCE($4, 'Other'), $5, $6, $7, $8)
			  RETURNING id`
	var id uuid.UUID
	err := s.DB.QueryRowContext(ctx, query,
		sub.UserID, sub.UserEmail, sub.ServiceName, sub.Category, sub.Amount,
		string(sub.RenewalType), sub.NextRenewalDate, string(sub.Status)).Scan(&id)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%s: %w", op, err)
	}
	return id, nil
}

// GetSubscription возвращает подписку по ID.
func (s *Storage) GetSubscription(ctx context.Context, id uuid.UUID) (*models.Subscription, error) {
	const op = "storage.GetSubscription"

	row := s.DB.QueryRowContext(ctx, `SELECT `+subscriptionColumns+` FROM subscriptions WHERE id = $1`, id)
	sub, err := scanSubscription(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%s: %w", op, ErrSubscriptionNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return sub, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSubscription(row scanner) (*models.Subscription, error) {
	var (
		sub         models.Subscription
		category    sql.NullString
		amount      sql.NullFloat64
		renewalType string
		status      string
		lastDate    sql.NullString
		lastLead    sql.NullInt32
	)
	err := row.Scan(&sub.ID, &sub.UserID, &sub.UserEmail, &sub.ServiceName, &category, &amount,
		&renewalType, &sub.NextRenewalDate, &status, &lastDate, &lastLead, &sub.CreatedAt, &sub.UpdatedAt)
	if err != nil {
		return nil, err
	}
	sub.RenewalType = models.RenewalType(renewalType)
	sub.Status = models.Status(status)
	if category.Valid {
		sub.Category = &category.String
	}
	if amount.Valid {
		sub.Amount = &amount.Float64
	}
	if lastDate.Valid {
		sub.LastReminderDate = &lastDate.String
	}
	if lastLead.Valid {
		lead := int(lastLead.Int32)
		sub.LastReminderLead = &lead
	}
	return &sub, nil
}
