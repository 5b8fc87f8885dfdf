package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"measurehub_backend/platform/apperr"
)

const (
	userNotFoundMessage = "user not found"
	zoneNotFoundMessage = "zone not found"
	nameNotFoundMessage = "measurer name not found"

	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

const userColumns = `id, full_name, phone, email, password_hash, role, telegram_chat_id, is_active, notifications_enabled, created_at, updated_at`

// Repo implements the Repository interface with PostgreSQL.
type Repo struct {
	pool *pgxpool.Pool
}

// New creates a new directory repository.
func New(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

// Compile-time check that Repo implements Repository.
var _ Repository = (*Repo)(nil)

// GetUserByID retrieves a user by its ID.
func (r *Repo) GetUserByID(ctx context.Context, id int64) (User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	u, err := scanUser(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, apperr.NotFound(userNotFoundMessage)
		}
		return User{}, fmt.Errorf("get user by id: %w", err)
	}
	return u, nil
}

// ListUsers retrieves users with optional role/active filters, newest last.
func (r *Repo) ListUsers(ctx context.Context, params ListUsersParams) ([]User, error) {
	query := `SELECT ` + userColumns + ` FROM users`

	var conditions []string
	var args []interface{}
	if params.Role != nil {
		args = append(args, *params.Role)
		conditions = append(conditions, fmt.Sprintf("role = $%d", len(args)))
	}
	if params.IsActive != nil {
		args = append(args, *params.IsActive)
		conditions = append(conditions, fmt.Sprintf("is_active = $%d", len(args)))
	}
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY id ASC"

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	return collectUsers(rows)
}

// ListWatchers retrieves active administrative users that should receive
// copies of job notifications.
func (r *Repo) ListWatchers(ctx context.Context) ([]User, error) {
	query := `
		SELECT ` + userColumns + `
		FROM users
		WHERE role IN ('admin', 'supervisor', 'observer')
		  AND is_active = TRUE
		  AND notifications_enabled = TRUE
		  AND telegram_chat_id IS NOT NULL
		ORDER BY id ASC`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list watchers: %w", err)
	}
	defer rows.Close()

	return collectUsers(rows)
}

// ActiveMeasurerIDs retrieves the global pool of assignable measurers.
func (r *Repo) ActiveMeasurerIDs(ctx context.Context) ([]int64, error) {
	query := `
		SELECT id FROM users
		WHERE role = 'measurer' AND is_active = TRUE
		ORDER BY id ASC`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list active measurers: %w", err)
	}
	defer rows.Close()

	return collectIDs(rows)
}

// CreateUser inserts a new user.
func (r *Repo) CreateUser(ctx context.Context, params CreateUserParams) (User, error) {
	query := `
		INSERT INTO users (full_name, phone, email, password_hash, role, telegram_chat_id, notifications_enabled)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING ` + userColumns

	u, err := scanUser(r.pool.QueryRow(ctx, query,
		params.FullName, params.Phone, params.Email, params.PasswordHash,
		params.Role, params.TelegramChatID, params.NotificationsEnabled,
	))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return User{}, apperr.Conflict("user with this email or telegram chat already exists")
		}
		return User{}, fmt.Errorf("create user: %w", err)
	}
	return u, nil
}

// UpdateUser applies a partial update and returns the updated row.
func (r *Repo) UpdateUser(ctx context.Context, params UpdateUserParams) (User, error) {
	sets := []string{"updated_at = now()"}
	args := []interface{}{params.ID}

	addSet := func(column string, value interface{}) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if params.FullName != nil {
		addSet("full_name", *params.FullName)
	}
	if params.Phone != nil {
		addSet("phone", *params.Phone)
	}
	if params.Role != nil {
		addSet("role", *params.Role)
	}
	if params.TelegramChatID != nil {
		addSet("telegram_chat_id", *params.TelegramChatID)
	}
	if params.IsActive != nil {
		addSet("is_active", *params.IsActive)
	}
	if params.NotificationsEnabled != nil {
		addSet("notifications_enabled", *params.NotificationsEnabled)
	}

	query := fmt.Sprintf(`UPDATE users SET %s WHERE id = $1 RETURNING %s`,
		strings.Join(sets, ", "), userColumns)

	u, err := scanUser(r.pool.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, apperr.NotFound(userNotFoundMessage)
		}
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return User{}, apperr.Conflict("telegram chat already bound to another user")
		}
		return User{}, fmt.Errorf("update user: %w", err)
	}
	return u, nil
}

// DeleteUser removes the user and all directory references to it. Membership
// and binding cleanup is explicit application code, the schema carries no
// cascading rules.
func (r *Repo) DeleteUser(ctx context.Context, id int64) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("delete user: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	steps := []string{
		`DELETE FROM zone_members WHERE user_id = $1`,
		`DELETE FROM measurer_name_assignments WHERE user_id = $1`,
		`UPDATE round_robin_cursors SET last_assigned_user_id = NULL, updated_at = now() WHERE last_assigned_user_id = $1`,
	}
	for _, step := range steps {
		if _, err := tx.Exec(ctx, step, id); err != nil {
			return fmt.Errorf("delete user: cleanup: %w", err)
		}
	}

	tag, err := tx.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgForeignKeyViolation {
			return apperr.Conflict("user has measurement history, deactivate instead")
		}
		return fmt.Errorf("delete user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound(userNotFoundMessage)
	}

	return tx.Commit(ctx)
}

// GetZoneByID retrieves a zone by its ID.
func (r *Repo) GetZoneByID(ctx context.Context, id int64) (Zone, error) {
	query := `SELECT id, name, is_active, created_at FROM zones WHERE id = $1`

	var z Zone
	err := r.pool.QueryRow(ctx, query, id).Scan(&z.ID, &z.Name, &z.IsActive, &z.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Zone{}, apperr.NotFound(zoneNotFoundMessage)
		}
		return Zone{}, fmt.Errorf("get zone by id: %w", err)
	}
	return z, nil
}

// ListZones retrieves all zones ordered by name.
func (r *Repo) ListZones(ctx context.Context) ([]Zone, error) {
	query := `SELECT id, name, is_active, created_at FROM zones ORDER BY name ASC`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list zones: %w", err)
	}
	defer rows.Close()

	zones := make([]Zone, 0)
	for rows.Next() {
		var z Zone
		if err := rows.Scan(&z.ID, &z.Name, &z.IsActive, &z.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan zone: %w", err)
		}
		zones = append(zones, z)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate zones: %w", err)
	}
	return zones, nil
}

// ListZoneMembers retrieves the users belonging to a zone.
func (r *Repo) ListZoneMembers(ctx context.Context, zoneID int64) ([]User, error) {
	query := `
		SELECT ` + qualifiedUserColumns("u") + `
		FROM users u
		JOIN zone_members zm ON zm.user_id = u.id
		WHERE zm.zone_id = $1
		ORDER BY u.id ASC`

	rows, err := r.pool.Query(ctx, query, zoneID)
	if err != nil {
		return nil, fmt.Errorf("list zone members: %w", err)
	}
	defer rows.Close()

	return collectUsers(rows)
}

// ResolveZoneID looks up an active zone by its normalized name.
func (r *Repo) ResolveZoneID(ctx context.Context, name string) (int64, bool, error) {
	query := `SELECT id FROM zones WHERE name = $1 AND is_active = TRUE`

	var id int64
	err := r.pool.QueryRow(ctx, query, name).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("resolve zone: %w", err)
	}
	return id, true, nil
}

// EligibleMeasurerIDs retrieves active measurers assigned to the zone.
func (r *Repo) EligibleMeasurerIDs(ctx context.Context, zoneID int64) ([]int64, error) {
	query := `
		SELECT u.id
		FROM users u
		JOIN zone_members zm ON zm.user_id = u.id
		WHERE zm.zone_id = $1 AND u.role = 'measurer' AND u.is_active = TRUE
		ORDER BY u.id ASC`

	rows, err := r.pool.Query(ctx, query, zoneID)
	if err != nil {
		return nil, fmt.Errorf("list eligible measurers: %w", err)
	}
	defer rows.Close()

	return collectIDs(rows)
}

// CreateZone inserts a new zone.
func (r *Repo) CreateZone(ctx context.Context, name string) (Zone, error) {
	query := `INSERT INTO zones (name) VALUES ($1) RETURNING id, name, is_active, created_at`

	var z Zone
	err := r.pool.QueryRow(ctx, query, name).Scan(&z.ID, &z.Name, &z.IsActive, &z.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return Zone{}, apperr.Conflict("zone already exists")
		}
		return Zone{}, fmt.Errorf("create zone: %w", err)
	}
	return z, nil
}

// DeleteZone removes the zone and its memberships.
func (r *Repo) DeleteZone(ctx context.Context, id int64) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("delete zone: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM zone_members WHERE zone_id = $1`, id); err != nil {
		return fmt.Errorf("delete zone: members: %w", err)
	}
	if _, err := tx.Exec(ctx, `UPDATE round_robin_cursors SET last_assigned_user_id = NULL, updated_at = now() WHERE pool_key = $1`, fmt.Sprintf("zone:%d", id)); err != nil {
		return fmt.Errorf("delete zone: cursor: %w", err)
	}

	tag, err := tx.Exec(ctx, `DELETE FROM zones WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete zone: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound(zoneNotFoundMessage)
	}

	return tx.Commit(ctx)
}

// AddZoneMember adds a user to a zone.
func (r *Repo) AddZoneMember(ctx context.Context, zoneID, userID int64) error {
	query := `INSERT INTO zone_members (zone_id, user_id) VALUES ($1, $2)`

	if _, err := r.pool.Exec(ctx, query, zoneID, userID); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			switch pgErr.Code {
			case pgUniqueViolation:
				return apperr.Conflict("user already belongs to this zone")
			case pgForeignKeyViolation:
				return apperr.NotFound("zone or user not found")
			}
		}
		return fmt.Errorf("add zone member: %w", err)
	}
	return nil
}

// RemoveZoneMember removes a user from a zone.
func (r *Repo) RemoveZoneMember(ctx context.Context, zoneID, userID int64) error {
	query := `DELETE FROM zone_members WHERE zone_id = $1 AND user_id = $2`

	tag, err := r.pool.Exec(ctx, query, zoneID, userID)
	if err != nil {
		return fmt.Errorf("remove zone member: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("zone membership not found")
	}
	return nil
}

// ListMeasurerNames retrieves all dealer names with their current bindings.
func (r *Repo) ListMeasurerNames(ctx context.Context) ([]MeasurerName, error) {
	query := `
		SELECT mn.id, mn.name, mna.user_id, mn.created_at
		FROM measurer_names mn
		LEFT JOIN measurer_name_assignments mna ON mna.measurer_name_id = mn.id
		ORDER BY mn.name ASC`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list measurer names: %w", err)
	}
	defer rows.Close()

	names := make([]MeasurerName, 0)
	for rows.Next() {
		var n MeasurerName
		if err := rows.Scan(&n.ID, &n.Name, &n.AssignedUserID, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan measurer name: %w", err)
		}
		names = append(names, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate measurer names: %w", err)
	}
	return names, nil
}

// ResolveDealerUserID looks up the active user bound to a normalized dealer name.
func (r *Repo) ResolveDealerUserID(ctx context.Context, name string) (int64, bool, error) {
	query := `
		SELECT mna.user_id
		FROM measurer_names mn
		JOIN measurer_name_assignments mna ON mna.measurer_name_id = mn.id
		JOIN users u ON u.id = mna.user_id
		WHERE mn.name = $1 AND u.is_active = TRUE`

	var userID int64
	err := r.pool.QueryRow(ctx, query, name).Scan(&userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("resolve dealer: %w", err)
	}
	return userID, true, nil
}

// CreateMeasurerName inserts a new dealer name.
func (r *Repo) CreateMeasurerName(ctx context.Context, name string) (MeasurerName, error) {
	query := `INSERT INTO measurer_names (name) VALUES ($1) RETURNING id, name, created_at`

	var n MeasurerName
	err := r.pool.QueryRow(ctx, query, name).Scan(&n.ID, &n.Name, &n.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return MeasurerName{}, apperr.Conflict("measurer name already exists")
		}
		return MeasurerName{}, fmt.Errorf("create measurer name: %w", err)
	}
	return n, nil
}

// DeleteMeasurerName removes a dealer name and its binding.
func (r *Repo) DeleteMeasurerName(ctx context.Context, id int64) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("delete measurer name: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM measurer_name_assignments WHERE measurer_name_id = $1`, id); err != nil {
		return fmt.Errorf("delete measurer name: assignment: %w", err)
	}

	tag, err := tx.Exec(ctx, `DELETE FROM measurer_names WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete measurer name: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound(nameNotFoundMessage)
	}

	return tx.Commit(ctx)
}

// AssignMeasurerName binds a dealer name to a user, replacing any previous binding.
func (r *Repo) AssignMeasurerName(ctx context.Context, nameID, userID int64) error {
	query := `
		INSERT INTO measurer_name_assignments (measurer_name_id, user_id)
		VALUES ($1, $2)
		ON CONFLICT (measurer_name_id) DO UPDATE SET user_id = EXCLUDED.user_id, created_at = now()`

	if _, err := r.pool.Exec(ctx, query, nameID, userID); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgForeignKeyViolation {
			return apperr.NotFound("measurer name or user not found")
		}
		return fmt.Errorf("assign measurer name: %w", err)
	}
	return nil
}

// UnassignMeasurerName removes the binding of a dealer name.
func (r *Repo) UnassignMeasurerName(ctx context.Context, nameID int64) error {
	query := `DELETE FROM measurer_name_assignments WHERE measurer_name_id = $1`

	tag, err := r.pool.Exec(ctx, query, nameID)
	if err != nil {
		return fmt.Errorf("unassign measurer name: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("measurer name has no assignment")
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanUser(row rowScanner) (User, error) {
	var u User
	err := row.Scan(
		&u.ID, &u.FullName, &u.Phone, &u.Email, &u.PasswordHash, &u.Role,
		&u.TelegramChatID, &u.IsActive, &u.NotificationsEnabled, &u.CreatedAt, &u.UpdatedAt,
	)
	return u, err
}

func collectUsers(rows pgx.Rows) ([]User, error) {
	users := make([]User, 0)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate users: %w", err)
	}
	return users, nil
}

func collectIDs(rows pgx.Rows) ([]int64, error) {
	ids := make([]int64, 0)
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ids: %w", err)
	}
	return ids, nil
}

func qualifiedUserColumns(alias string) string {
	cols := strings.Split(userColumns, ", ")
	for i, c := range cols {
		cols[i] = alias + "." + c
	}
	return strings.Join(cols, ", ")
}
