package transport

import (
	"time"

	"measurehub_backend/internal/measurements/domain"
	"measurehub_backend/internal/measurements/orchestrator"
)

// ListMeasurementsRequest filters the measurement listing.
type ListMeasurementsRequest struct {
	Status     string `form:"status" validate:"omitempty,oneof=assigned confirmed completed cancelled"`
	MeasurerID int64  `form:"measurerId" validate:"omitempty,gt=0"`
	Page       int    `form:"page" validate:"omitempty,gte=1"`
	PerPage    int    `form:"perPage" validate:"omitempty,gte=1,lte=100"`
}

// ReassignRequest hands a job to another measurer. Without a target the
// job is re-resolved against the current directory.
type ReassignRequest struct {
	NewMeasurerID *int64 `json:"newMeasurerId" validate:"omitempty,gt=0"`
}

// MeasurementResponse is the API shape of one measurement job.
type MeasurementResponse struct {
	ID                 int64   `json:"id"`
	ExternalLeadID     int64   `json:"externalLeadId"`
	Name               string  `json:"name"`
	ContactName        string  `json:"contactName,omitempty"`
	ContactPhone       string  `json:"contactPhone,omitempty"`
	Address            string  `json:"address,omitempty"`
	OrderCode          *string `json:"orderCode,omitempty"`
	DealerName         *string `json:"dealerName,omitempty"`
	ZoneHint           *string `json:"zoneHint,omitempty"`
	Status             string  `json:"status"`
	AssignedMeasurerID *int64  `json:"assignedMeasurerId,omitempty"`
	AssignmentReason   string  `json:"assignmentReason"`
	ConfirmedByUserID  *int64  `json:"confirmedByUserId,omitempty"`
	ConfirmedAt        *string `json:"confirmedAt,omitempty"`
	CompletedAt        *string `json:"completedAt,omitempty"`
	AssignedAt         *string `json:"assignedAt,omitempty"`
	CreatedAt          string  `json:"createdAt"`
	UpdatedAt          string  `json:"updatedAt"`
}

// ListMeasurementsResponse is a paginated measurement listing.
type ListMeasurementsResponse struct {
	Measurements []MeasurementResponse `json:"measurements"`
	Total        int                   `json:"total"`
	Page         int                   `json:"page"`
	PerPage      int                   `json:"perPage"`
}

// NotificationResultResponse reports one dispatch attempt.
type NotificationResultResponse struct {
	Type        string `json:"type"`
	RecipientID int64  `json:"recipientId"`
	Status      string `json:"status"`
	Error       string `json:"error,omitempty"`
}

// OutcomeResponse is returned from transition endpoints: the job after the
// event plus what was dispatched for it.
type OutcomeResponse struct {
	MeasurementID    int64                        `json:"measurementId"`
	ExternalLeadID   int64                        `json:"externalLeadId"`
	Status           string                       `json:"status"`
	AssignmentReason string                       `json:"assignmentReason"`
	MeasurerID       *int64                       `json:"measurerId,omitempty"`
	Changed          bool                         `json:"changed"`
	Notifications    []NotificationResultResponse `json:"notifications"`
}

// ToMeasurementResponse converts a domain job to its API shape.
func ToMeasurementResponse(job domain.Job) MeasurementResponse {
	return MeasurementResponse{
		ID:                 job.ID,
		ExternalLeadID:     job.ExternalLeadID,
		Name:               job.Name,
		ContactName:        job.ContactName,
		ContactPhone:       job.ContactPhone,
		Address:            job.Address,
		OrderCode:          job.OrderCode,
		DealerName:         job.DealerName,
		ZoneHint:           job.ZoneHint,
		Status:             string(job.Status),
		AssignedMeasurerID: job.AssignedMeasurerID,
		AssignmentReason:   string(job.AssignmentReason),
		ConfirmedByUserID:  job.ConfirmedByUserID,
		ConfirmedAt:        formatTimePtr(job.ConfirmedAt),
		CompletedAt:        formatTimePtr(job.CompletedAt),
		AssignedAt:         formatTimePtr(job.AssignedAt),
		CreatedAt:          job.CreatedAt.Format(time.RFC3339),
		UpdatedAt:          job.UpdatedAt.Format(time.RFC3339),
	}
}

// ToOutcomeResponse converts an orchestrator outcome to its API shape.
func ToOutcomeResponse(o orchestrator.Outcome) OutcomeResponse {
	results := make([]NotificationResultResponse, 0, len(o.Notifications))
	for _, r := range o.Notifications {
		results = append(results, NotificationResultResponse{
			Type:        r.Type,
			RecipientID: r.RecipientID,
			Status:      string(r.Status),
			Error:       r.Error,
		})
	}
	return OutcomeResponse{
		MeasurementID:    o.MeasurementID,
		ExternalLeadID:   o.ExternalLeadID,
		Status:           string(o.Status),
		AssignmentReason: string(o.AssignmentReason),
		MeasurerID:       o.MeasurerID,
		Changed:          o.Changed,
		Notifications:    results,
	}
}

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(time.RFC3339)
	return &s
}
