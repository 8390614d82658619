package storage

import (
	"context"

	"github.com/expertmarket/bookingengine/libs/db"
	"github.com/expertmarket/bookingengine/services/booking-service/internal/model"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

type AvailabilityRepository struct {
	pool *db.Pool
}

func NewAvailabilityRepository(pool *db.Pool) *AvailabilityRepository {
	return &AvailabilityRepository{pool: pool}
}

const ruleColumns = `id, provider_id, day_of_week, start_time, end_time, is_active`

func (r *AvailabilityRepository) ListRules(ctx context.Context, providerID string) ([]model.AvailabilityRule, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+ruleColumns+`
		FROM availability_rules
		WHERE provider_id = $1
		ORDER BY day_of_week ASC, start_time ASC
	`, providerID)
	if err != nil {
		return nil, err
	}
	return collectRules(rows)
}

func (r *AvailabilityRepository) ActiveRulesForDay(ctx context.Context, providerID string, day int) ([]model.AvailabilityRule, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+ruleColumns+`
		FROM availability_rules
		WHERE provider_id = $1
			AND day_of_week = $2
			AND is_active
		ORDER BY start_time ASC
	`, providerID, day)
	if err != nil {
		return nil, err
	}
	return collectRules(rows)
}

// ReplaceRules deletes every rule of the provider and inserts rules, atomically. Concurrent
// replacements for the same provider are serialised by an advisory lock.
func (r *AvailabilityRepository) ReplaceRules(ctx context.Context, providerID string, rules []model.AvailabilityRule) ([]model.AvailabilityRule, error) {
	saved := make([]model.AvailabilityRule, 0, len(rules))
	err := r.pool.InTx(ctx, pgx.TxOptions{}, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext('availability:' || $1))`, providerID); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `DELETE FROM availability_rules WHERE provider_id = $1`, providerID); err != nil {
			return err
		}
		for _, rule := range rules {
			rule.ProviderID = providerID
			err := tx.QueryRow(ctx, `
				INSERT INTO availability_rules (provider_id, day_of_week, start_time, end_time, is_active)
				VALUES ($1, $2, $3, $4, $5)
				RETURNING id
			`, providerID, rule.DayOfWeek, pgTime(rule.Start), pgTime(rule.End), rule.Active).Scan(&rule.ID)
			if err != nil {
				return err
			}
			saved = append(saved, rule)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return saved, nil
}

func (r *AvailabilityRepository) AvailableDays(ctx context.Context, providerID string) ([]int, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT DISTINCT day_of_week
		FROM availability_rules
		WHERE provider_id = $1 AND is_active
		ORDER BY day_of_week ASC
	`, providerID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (int, error) {
		var day int
		err := row.Scan(&day)
		return day, err
	})
}

func collectRules(rows pgx.Rows) ([]model.AvailabilityRule, error) {
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.AvailabilityRule, error) {
		var rule model.AvailabilityRule
		var start, end pgtype.Time
		if err := row.Scan(&rule.ID, &rule.ProviderID, &rule.DayOfWeek, &start, &end, &rule.Active); err != nil {
			return model.AvailabilityRule{}, err
		}
		rule.Start = model.ClockFromMicroseconds(start.Microseconds)
		rule.End = model.ClockFromMicroseconds(end.Microseconds)
		return rule, nil
	})
}

func pgTime(c model.Clock) pgtype.Time {
	return pgtype.Time{Microseconds: c.Microseconds(), Valid: true}
}
