package repository

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"audiotour/internal/model"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// undefinedFunction is the Postgres SQLSTATE reported when the
// increment_usage stored function has not been installed.
const undefinedFunction = "42883"

// UsageRepository persists per-user-per-month consumption counters in the
// user_usage table.
type UsageRepository interface {
	// EnsureRecord returns the month's record, creating a zeroed row when
	// the user has no usage yet this month.
	EnsureRecord(ctx context.Context, email, month string) (*model.UsageRecord, error)
	// GetRecord returns the record, or nil when absent.
	GetRecord(ctx context.Context, email, month string) (*model.UsageRecord, error)
	// AddUsage adds the deltas to the month's counters. It prefers the
	// increment_usage stored function (atomic); when that function is not
	// installed it falls back to read-modify-write, which can lose one of
	// two genuinely concurrent updates to the same row.
	AddUsage(ctx context.Context, email, month string, tokens, ttsChars int) error
	// ListByMonth returns all usage records for the month, heaviest first.
	ListByMonth(ctx context.Context, month string) ([]model.UsageRecord, error)
	// Reset zeroes the month's counters for the email.
	Reset(ctx context.Context, email, month string) error
}

type usageRepo struct {
	pool *pgxpool.Pool
	// rpcUnavailable flips to true the first time increment_usage reports
	// SQLSTATE 42883, so later calls skip straight to the fallback.
	rpcUnavailable atomic.Bool
}

// NewUsageRepo creates a new UsageRepository.
func NewUsageRepo(pool *pgxpool.Pool) UsageRepository {
	return &usageRepo{pool: pool}
}

func (r *usageRepo) EnsureRecord(ctx context.Context, email, month string) (*model.UsageRecord, error) {
	const insertQ = `
        INSERT INTO user_usage (email, month, tokens_used, tts_chars_used)
        VALUES ($1, $2, 0, 0)
        ON CONFLICT (email, month) DO NOTHING
    `
	if _, err := r.pool.Exec(ctx, insertQ, email, month); err != nil {
		return nil, fmt.Errorf("seeding usage record for %s/%s: %w", email, month, err)
	}
	rec, err := r.GetRecord(ctx, email, month)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, fmt.Errorf("usage record for %s/%s missing after seed", email, month)
	}
	return rec, nil
}

func (r *usageRepo) GetRecord(ctx context.Context, email, month string) (*model.UsageRecord, error) {
	const q = `
        SELECT email, month, tokens_used, tts_chars_used
        FROM user_usage
        WHERE email = $1 AND month = $2
    `
	var rec model.UsageRecord
	err := r.pool.QueryRow(ctx, q, email, month).Scan(&rec.Email, &rec.Month, &rec.TokensUsed, &rec.TTSCharsUsed)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("fetching usage record for %s/%s: %w", email, month, err)
	}
	return &rec, nil
}

func (r *usageRepo) AddUsage(ctx context.Context, email, month string, tokens, ttsChars int) error {
	if _, err := r.EnsureRecord(ctx, email, month); err != nil {
		return err
	}

	if !r.rpcUnavailable.Load() {
		const rpcQ = `SELECT increment_usage($1, $2, $3, $4)`
		_, err := r.pool.Exec(ctx, rpcQ, email, month, tokens, ttsChars)
		if err == nil {
			return nil
		}
		var pgErr *pgconn.PgError
		if !errors.As(err, &pgErr) || pgErr.Code != undefinedFunction {
			return fmt.Errorf("incrementing usage for %s/%s: %w", email, month, err)
		}
		r.rpcUnavailable.Store(true)
	}

	// Fallback: read current counters, write the sums back. Weaker than the
	// stored function under concurrent writers to the same (email, month).
	rec, err := r.GetRecord(ctx, email, month)
	if err != nil {
		return err
	}
	if rec == nil {
		return fmt.Errorf("usage record for %s/%s vanished before update", email, month)
	}
	const updateQ = `
        UPDATE user_usage
        SET tokens_used = $3, tts_chars_used = $4
        WHERE email = $1 AND month = $2
    `
	if _, err := r.pool.Exec(ctx, updateQ, email, month, rec.TokensUsed+tokens, rec.TTSCharsUsed+ttsChars); err != nil {
		return fmt.Errorf("updating usage for %s/%s: %w", email, month, err)
	}
	return nil
}

func (r *usageRepo) ListByMonth(ctx context.Context, month string) ([]model.UsageRecord, error) {
	const q = `
        SELECT email, month, tokens_used, tts_chars_used
        FROM user_usage
        WHERE month = $1
        ORDER BY tokens_used DESC
    `
	rows, err := r.pool.Query(ctx, q, month)
	if err != nil {
		return nil, fmt.Errorf("listing usage for %s: %w", month, err)
	}
	defer rows.Close()

	var records []model.UsageRecord
	for rows.Next() {
		var rec model.UsageRecord
		if err := rows.Scan(&rec.Email, &rec.Month, &rec.TokensUsed, &rec.TTSCharsUsed); err != nil {
			return nil, fmt.Errorf("scanning usage record: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating usage records: %w", err)
	}
	return records, nil
}

func (r *usageRepo) Reset(ctx context.Context, email, month string) error {
	const q = `
        UPDATE user_usage
        SET tokens_used = 0, tts_chars_used = 0
        WHERE email = $1 AND month = $2
    `
	if _, err := r.pool.Exec(ctx, q, email, month); err != nil {
		return fmt.Errorf("resetting usage for %s/%s: %w", email, month, err)
	}
	return nil
}
