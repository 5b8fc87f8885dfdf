// Package service provides the read side of the measurements module: listing
// and fetching jobs for the API. Mutations go through the orchestrator.
package service

import (
	"context"

	"measurehub_backend/internal/measurements/domain"
	"measurehub_backend/internal/measurements/repository"
	"measurehub_backend/internal/measurements/transport"
	"measurehub_backend/platform/logger"
)

const defaultPerPage = 20

// Service reads measurement jobs.
type Service struct {
	repo repository.Reader
	log  *logger.Logger
}

// New creates a measurements read service.
func New(repo repository.Reader, log *logger.Logger) *Service {
	return &Service{repo: repo, log: log}
}

// List returns a filtered, paginated measurement listing.
func (s *Service) List(ctx context.Context, req transport.ListMeasurementsRequest) (transport.ListMeasurementsResponse, error) {
	page := req.Page
	if page < 1 {
		page = 1
	}
	perPage := req.PerPage
	if perPage < 1 {
		perPage = defaultPerPage
	}

	params := repository.ListParams{
		Offset: (page - 1) * perPage,
		Limit:  perPage,
	}
	if req.Status != "" {
		status := domain.Status(req.Status)
		params.Status = &status
	}
	if req.MeasurerID > 0 {
		params.MeasurerID = &req.MeasurerID
	}

	jobs, total, err := s.repo.List(ctx, params)
	if err != nil {
		return transport.ListMeasurementsResponse{}, err
	}

	items := make([]transport.MeasurementResponse, 0, len(jobs))
	for _, job := range jobs {
		items = append(items, transport.ToMeasurementResponse(job))
	}
	return transport.ListMeasurementsResponse{
		Measurements: items,
		Total:        total,
		Page:         page,
		PerPage:      perPage,
	}, nil
}

// GetByLeadID fetches one job by its external lead id.
func (s *Service) GetByLeadID(ctx context.Context, leadID int64) (transport.MeasurementResponse, error) {
	job, err := s.repo.GetByExternalLeadID(ctx, leadID)
	if err != nil {
		return transport.MeasurementResponse{}, err
	}
	return transport.ToMeasurementResponse(job), nil
}
