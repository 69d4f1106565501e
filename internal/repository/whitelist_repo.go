package repository

import (
	"context"
	"errors"
	"fmt"

	"audiotour/internal/model"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrDuplicateEmail is returned when an insert hits the whitelist's email
// primary key. Callers treat it as "the entry already exists", not a failure.
var ErrDuplicateEmail = errors.New("email already whitelisted")

// uniqueViolation is the Postgres SQLSTATE for unique constraint errors.
const uniqueViolation = "23505"

// WhitelistRepository persists whitelist entries in the whitelist_users table.
type WhitelistRepository interface {
	// GetByEmail returns the entry for the email, or nil when absent.
	GetByEmail(ctx context.Context, email string) (*model.WhitelistEntry, error)
	// Insert creates a new entry. Returns ErrDuplicateEmail when the email
	// already has a row (two concurrent access requests race on this).
	Insert(ctx context.Context, entry *model.WhitelistEntry) error
	// SetActive flips the is_active flag. Returns false when no row matched.
	SetActive(ctx context.Context, email string, active bool) (bool, error)
	// SetRole updates the role. Returns false when no row matched.
	SetRole(ctx context.Context, email, role string) (bool, error)
	// SetTokenLimit sets the per-user monthly token limit override.
	SetTokenLimit(ctx context.Context, email string, limit int) (bool, error)
	// Delete removes the entry. Deleting an absent email is not an error.
	Delete(ctx context.Context, email string) error
	// ListAll returns every entry, most recently created first.
	ListAll(ctx context.Context) ([]model.WhitelistEntry, error)
	// ListPending returns entries still awaiting approval.
	ListPending(ctx context.Context) ([]model.WhitelistEntry, error)
}

type whitelistRepo struct {
	pool *pgxpool.Pool
}

// NewWhitelistRepo creates a new WhitelistRepository.
func NewWhitelistRepo(pool *pgxpool.Pool) WhitelistRepository {
	return &whitelistRepo{pool: pool}
}

func (r *whitelistRepo) GetByEmail(ctx context.Context, email string) (*model.WhitelistEntry, error) {
	const q = `
        SELECT email, role, is_active, token_limit, created_at
        FROM whitelist_users
        WHERE email = $1
    `
	var e model.WhitelistEntry
	err := r.pool.QueryRow(ctx, q, email).Scan(&e.Email, &e.Role, &e.IsActive, &e.TokenLimit, &e.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("fetching whitelist entry for %s: %w", email, err)
	}
	return &e, nil
}

func (r *whitelistRepo) Insert(ctx context.Context, entry *model.WhitelistEntry) error {
	const q = `
        INSERT INTO whitelist_users (email, role, is_active)
        VALUES ($1, $2, $3)
        RETURNING created_at
    `
	err := r.pool.QueryRow(ctx, q, entry.Email, entry.Role, entry.IsActive).Scan(&entry.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return ErrDuplicateEmail
		}
		return fmt.Errorf("inserting whitelist entry for %s: %w", entry.Email, err)
	}
	return nil
}

func (r *whitelistRepo) SetActive(ctx context.Context, email string, active bool) (bool, error) {
	const q = `UPDATE whitelist_users SET is_active = $2 WHERE email = $1`
	tag, err := r.pool.Exec(ctx, q, email, active)
	if err != nil {
		return false, fmt.Errorf("updating is_active for %s: %w", email, err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *whitelistRepo) SetRole(ctx context.Context, email, role string) (bool, error) {
	const q = `UPDATE whitelist_users SET role = $2 WHERE email = $1`
	tag, err := r.pool.Exec(ctx, q, email, role)
	if err != nil {
		return false, fmt.Errorf("updating role for %s: %w", email, err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *whitelistRepo) SetTokenLimit(ctx context.Context, email string, limit int) (bool, error) {
	const q = `UPDATE whitelist_users SET token_limit = $2 WHERE email = $1`
	tag, err := r.pool.Exec(ctx, q, email, limit)
	if err != nil {
		return false, fmt.Errorf("updating token limit for %s: %w", email, err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *whitelistRepo) Delete(ctx context.Context, email string) error {
	const q = `DELETE FROM whitelist_users WHERE email = $1`
	if _, err := r.pool.Exec(ctx, q, email); err != nil {
		return fmt.Errorf("deleting whitelist entry for %s: %w", email, err)
	}
	return nil
}

func (r *whitelistRepo) ListAll(ctx context.Context) ([]model.WhitelistEntry, error) {
	const q = `
        SELECT email, role, is_active, token_limit, created_at
        FROM whitelist_users
        ORDER BY created_at DESC
    `
	return r.scanEntries(ctx, q)
}

func (r *whitelistRepo) ListPending(ctx context.Context) ([]model.WhitelistEntry, error) {
	const q = `
        SELECT email, role, is_active, token_limit, created_at
        FROM whitelist_users
        WHERE is_active = FALSE
        ORDER BY created_at DESC
    `
	return r.scanEntries(ctx, q)
}

func (r *whitelistRepo) scanEntries(ctx context.Context, query string) ([]model.WhitelistEntry, error) {
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("listing whitelist entries: %w", err)
	}
	defer rows.Close()

	var entries []model.WhitelistEntry
	for rows.Next() {
		var e model.WhitelistEntry
		if err := rows.Scan(&e.Email, &e.Role, &e.IsActive, &e.TokenLimit, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning whitelist entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating whitelist entries: %w", err)
	}
	return entries, nil
}
