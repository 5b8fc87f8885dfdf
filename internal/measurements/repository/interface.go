package repository

import (
	"context"

	"measurehub_backend/internal/assignment"
	"measurehub_backend/internal/measurements/domain"
)

// CreateParams contains parameters for persisting a new measurement job.
type CreateParams struct {
	ExternalLeadID int64
	Name           string
	ContactName    string
	ContactPhone   string
	Address        string
	OrderCode      *string
	DealerName     *string
	ZoneHint       *string
	MeasurerID     *int64
	Reason         assignment.Reason
}

// ListParams filters the measurement listing.
type ListParams struct {
	Status     *domain.Status
	MeasurerID *int64
	Offset     int
	Limit      int
}

// Reader provides read operations over measurement jobs.
type Reader interface {
	GetByExternalLeadID(ctx context.Context, leadID int64) (domain.Job, error)
	List(ctx context.Context, params ListParams) ([]domain.Job, int, error)
}

// Writer provides write operations over measurement jobs.
type Writer interface {
	Create(ctx context.Context, params CreateParams) (domain.Job, error)
	// SaveTransition writes the job's transition-affected fields guarded by
	// the expected current status. A row that moved under us fails with
	// ErrInvalidTransition; per-job locking makes that a cross-process case.
	SaveTransition(ctx context.Context, job domain.Job, expected domain.Status) (domain.Job, error)
}

// Repository combines all measurement repository operations.
type Repository interface {
	Reader
	Writer
}
