// Package repository persists invite links.
package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound is returned when no invite matches the lookup.
var ErrNotFound = errors.New("invite not found")

// Invite is one invite link row.
type Invite struct {
	ID        int64
	Token     string
	Role      string
	MaxUses   int
	UseCount  int
	ExpiresAt *time.Time
	RevokedAt *time.Time
	CreatedBy *int64
	CreatedAt time.Time
}

// CreateParams contains parameters for a new invite link.
type CreateParams struct {
	Token     string
	Role      string
	MaxUses   int
	ExpiresAt *time.Time
	CreatedBy *int64
}

// Store persists invite links.
type Store interface {
	Create(ctx context.Context, params CreateParams) (Invite, error)
	List(ctx context.Context) ([]Invite, error)
	GetByID(ctx context.Context, id int64) (Invite, error)
	GetByToken(ctx context.Context, token string) (Invite, error)
	Revoke(ctx context.Context, id int64) error
	// ConsumeUse increments use_count when the invite is still usable:
	// not revoked, not expired, not exhausted. Returns false when the
	// guard fails, which also covers concurrent redemptions racing past
	// the last use.
	ConsumeUse(ctx context.Context, id int64) (bool, error)
}

// Repository implements Store with PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// New creates a new invite repository.
func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

var _ Store = (*Repository)(nil)

const inviteColumns = `id, token, role, max_uses, use_count, expires_at, revoked_at, created_by, created_at`

func scanInvite(row pgx.Row) (Invite, error) {
	var inv Invite
	err := row.Scan(&inv.ID, &inv.Token, &inv.Role, &inv.MaxUses, &inv.UseCount,
		&inv.ExpiresAt, &inv.RevokedAt, &inv.CreatedBy, &inv.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Invite{}, ErrNotFound
	}
	if err != nil {
		return Invite{}, fmt.Errorf("scan invite: %w", err)
	}
	return inv, nil
}

func (r *Repository) Create(ctx context.Context, params CreateParams) (Invite, error) {
	query := fmt.Sprintf(`
		INSERT INTO invite_links (token, role, max_uses, expires_at, created_by)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING %s`, inviteColumns)

	return scanInvite(r.pool.QueryRow(ctx, query,
		params.Token, params.Role, params.MaxUses, params.ExpiresAt, params.CreatedBy))
}

func (r *Repository) List(ctx context.Context) ([]Invite, error) {
	query := fmt.Sprintf(`SELECT %s FROM invite_links ORDER BY created_at DESC`, inviteColumns)

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list invites: %w", err)
	}
	defer rows.Close()

	invites := make([]Invite, 0)
	for rows.Next() {
		inv, err := scanInvite(rows)
		if err != nil {
			return nil, err
		}
		invites = append(invites, inv)
	}
	return invites, rows.Err()
}

func (r *Repository) GetByID(ctx context.Context, id int64) (Invite, error) {
	query := fmt.Sprintf(`SELECT %s FROM invite_links WHERE id = $1`, inviteColumns)
	return scanInvite(r.pool.QueryRow(ctx, query, id))
}

func (r *Repository) GetByToken(ctx context.Context, token string) (Invite, error) {
	query := fmt.Sprintf(`SELECT %s FROM invite_links WHERE token = $1`, inviteColumns)
	return scanInvite(r.pool.QueryRow(ctx, query, token))
}

// Revoke marks the invite revoked. Revoking twice keeps the first timestamp.
func (r *Repository) Revoke(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE invite_links
		SET revoked_at = COALESCE(revoked_at, now())
		WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("revoke invite: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repository) ConsumeUse(ctx context.Context, id int64) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE invite_links
		SET use_count = use_count + 1
		WHERE id = $1
		  AND revoked_at IS NULL
		  AND (expires_at IS NULL OR expires_at > now())
		  AND use_count < max_uses`, id)
	if err != nil {
		return false, fmt.Errorf("consume invite use: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}
