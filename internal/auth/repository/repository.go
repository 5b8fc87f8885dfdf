// Package repository provides credential lookups for the auth module.
package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound is returned when no user matches the given email.
var ErrNotFound = errors.New("user not found")

// Credentials is the slice of a user row the login flow needs.
type Credentials struct {
	ID           int64
	FullName     string
	Email        string
	PasswordHash *string
	Role         string
	IsActive     bool
}

// Store looks up login credentials.
type Store interface {
	GetByEmail(ctx context.Context, email string) (Credentials, error)
}

// Repository implements Store with PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// New creates a new auth repository.
func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

var _ Store = (*Repository)(nil)

// GetByEmail finds a user by email, case-insensitively.
func (r *Repository) GetByEmail(ctx context.Context, email string) (Credentials, error) {
	const query = `
		SELECT id, full_name, COALESCE(email, ''), password_hash, role, is_active
		FROM users
		WHERE lower(email) = lower($1)`

	var creds Credentials
	err := r.pool.QueryRow(ctx, query, email).Scan(
		&creds.ID, &creds.FullName, &creds.Email, &creds.PasswordHash, &creds.Role, &creds.IsActive,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return Credentials{}, ErrNotFound
	}
	if err != nil {
		return Credentials{}, fmt.Errorf("get user by email: %w", err)
	}
	return creds, nil
}
