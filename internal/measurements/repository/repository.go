package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"measurehub_backend/internal/assignment"
	"measurehub_backend/internal/measurements/domain"
	"measurehub_backend/platform/apperr"
)

const measurementNotFoundMessage = "measurement not found"

const jobColumns = `id, external_lead_id, name, contact_name, contact_phone, address, order_code, dealer_name, zone_hint,
	status, assigned_measurer_id, assignment_reason, confirmed_by_user_id, confirmed_at, completed_at, assigned_at, created_at, updated_at`

// Repo implements the Repository interface with PostgreSQL.
type Repo struct {
	pool *pgxpool.Pool
}

// New creates a new measurements repository.
func New(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

// Compile-time check that Repo implements Repository.
var _ Repository = (*Repo)(nil)

// notFound wraps the domain sentinel so both errors.Is(err, domain.ErrNotFound)
// and the apperr HTTP mapping work.
func notFound() error {
	return apperr.Wrap(apperr.KindNotFound, measurementNotFoundMessage, domain.ErrNotFound)
}

// GetByExternalLeadID retrieves a job by the CRM lead id.
func (r *Repo) GetByExternalLeadID(ctx context.Context, leadID int64) (domain.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM measurements WHERE external_lead_id = $1`

	job, err := scanJob(r.pool.QueryRow(ctx, query, leadID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Job{}, notFound()
		}
		return domain.Job{}, fmt.Errorf("get measurement by lead id: %w", err)
	}
	return job, nil
}

// List retrieves jobs with optional filters, newest first.
func (r *Repo) List(ctx context.Context, params ListParams) ([]domain.Job, int, error) {
	var conditions []string
	var args []interface{}

	if params.Status != nil {
		args = append(args, string(*params.Status))
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)))
	}
	if params.MeasurerID != nil {
		args = append(args, *params.MeasurerID)
		conditions = append(conditions, fmt.Sprintf("assigned_measurer_id = $%d", len(args)))
	}

	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM measurements`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count measurements: %w", err)
	}

	limit := params.Limit
	if limit <= 0 {
		limit = 20
	}
	args = append(args, limit, params.Offset)
	query := fmt.Sprintf(`SELECT %s FROM measurements%s ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d`,
		jobColumns, where, len(args)-1, len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list measurements: %w", err)
	}
	defer rows.Close()

	jobs, err := collectJobs(rows)
	if err != nil {
		return nil, 0, err
	}
	return jobs, total, nil
}

// Create persists a new job in the assigned state. assigned_at is only set
// when the resolver actually found a measurer.
func (r *Repo) Create(ctx context.Context, params CreateParams) (domain.Job, error) {
	query := `
		INSERT INTO measurements
			(external_lead_id, name, contact_name, contact_phone, address, order_code, dealer_name, zone_hint,
			 assigned_measurer_id, assignment_reason, assigned_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10,
		        CASE WHEN $9::BIGINT IS NULL THEN NULL ELSE now() END)
		RETURNING ` + jobColumns

	job, err := scanJob(r.pool.QueryRow(ctx, query,
		params.ExternalLeadID, params.Name, params.ContactName, params.ContactPhone, params.Address,
		params.OrderCode, params.DealerName, params.ZoneHint, params.MeasurerID, string(params.Reason),
	))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return domain.Job{}, apperr.Conflict("measurement for this lead already exists")
		}
		return domain.Job{}, fmt.Errorf("create measurement: %w", err)
	}
	return job, nil
}

// SaveTransition writes the transition-affected fields of a job, guarded by
// the status the transition started from.
func (r *Repo) SaveTransition(ctx context.Context, job domain.Job, expected domain.Status) (domain.Job, error) {
	query := `
		UPDATE measurements
		SET status = $3,
		    assigned_measurer_id = $4,
		    assignment_reason = $5,
		    confirmed_by_user_id = $6,
		    confirmed_at = $7,
		    completed_at = $8,
		    assigned_at = $9,
		    updated_at = now()
		WHERE id = $1 AND status = $2
		RETURNING ` + jobColumns

	updated, err := scanJob(r.pool.QueryRow(ctx, query,
		job.ID, string(expected), string(job.Status), job.AssignedMeasurerID, string(job.AssignmentReason),
		job.ConfirmedByUserID, job.ConfirmedAt, job.CompletedAt, job.AssignedAt,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// The row moved away from the expected status underneath us.
			return domain.Job{}, apperr.Wrap(apperr.KindConflict, "measurement changed concurrently", domain.ErrInvalidTransition)
		}
		return domain.Job{}, fmt.Errorf("save measurement transition: %w", err)
	}
	return updated, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanJob(row rowScanner) (domain.Job, error) {
	var job domain.Job
	var status, reason string
	err := row.Scan(
		&job.ID, &job.ExternalLeadID, &job.Name, &job.ContactName, &job.ContactPhone, &job.Address,
		&job.OrderCode, &job.DealerName, &job.ZoneHint, &status, &job.AssignedMeasurerID, &reason,
		&job.ConfirmedByUserID, &job.ConfirmedAt, &job.CompletedAt, &job.AssignedAt, &job.CreatedAt, &job.UpdatedAt,
	)
	if err != nil {
		return domain.Job{}, err
	}
	job.Status = domain.Status(status)
	job.AssignmentReason = assignment.Reason(reason)
	return job, nil
}

func collectJobs(rows pgx.Rows) ([]domain.Job, error) {
	jobs := make([]domain.Job, 0)
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan measurement: %w", err)
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate measurements: %w", err)
	}
	return jobs, nil
}
