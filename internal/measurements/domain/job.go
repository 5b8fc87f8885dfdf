// Package domain provides core business rules for the measurements bounded
// context: the job status machine and the transitions it allows.
package domain

import (
	"errors"
	"time"

	"measurehub_backend/internal/assignment"
)

// Sentinel errors for job transitions. They are wrapped into apperr at the
// service and HTTP boundaries; errors.Is matches through the wrapping.
var (
	ErrNotFound          = errors.New("measurement not found")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrAlreadyConfirmed  = errors.New("measurement already confirmed by another user")
)

// Status is the lifecycle state of a measurement job.
type Status string

const (
	StatusAssigned  Status = "assigned"
	StatusConfirmed Status = "confirmed"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// terminalStatuses are states that no transition may leave.
var terminalStatuses = map[Status]bool{
	StatusCompleted: true,
	StatusCancelled: true,
}

// IsTerminal returns true when no further transitions are allowed.
func (s Status) IsTerminal() bool {
	return terminalStatuses[s]
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusAssigned, StatusConfirmed, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// Job is one field-measurement assignment. Its invariant: a confirmed or
// completed job always carries a measurer.
type Job struct {
	ID                 int64
	ExternalLeadID     int64
	Name               string
	ContactName        string
	ContactPhone       string
	Address            string
	OrderCode          *string
	DealerName         *string
	ZoneHint           *string
	Status             Status
	AssignedMeasurerID *int64
	AssignmentReason   assignment.Reason
	ConfirmedByUserID  *int64
	ConfirmedAt        *time.Time
	CompletedAt        *time.Time
	CreatedAt          time.Time
	AssignedAt         *time.Time
	UpdatedAt          time.Time
}

// CheckInvariant reports whether the job satisfies the status/measurer rule.
func (j Job) CheckInvariant() bool {
	if j.Status == StatusConfirmed || j.Status == StatusCompleted {
		return j.AssignedMeasurerID != nil
	}
	return true
}

// Confirm moves an assigned job to confirmed on behalf of userID. A repeat
// confirmation by the same user is an accepted no-op: changed is false and
// the original confirmation timestamp stays untouched. A confirmation by a
// different user fails with ErrAlreadyConfirmed.
func (j *Job) Confirm(userID int64, now time.Time) (changed bool, err error) {
	if j.Status.IsTerminal() {
		return false, ErrInvalidTransition
	}
	if j.Status == StatusConfirmed {
		if j.ConfirmedByUserID != nil && *j.ConfirmedByUserID == userID {
			return false, nil
		}
		return false, ErrAlreadyConfirmed
	}
	if j.AssignedMeasurerID == nil {
		// Confirming an unassigned job would break the invariant.
		return false, ErrInvalidTransition
	}

	j.Status = StatusConfirmed
	j.ConfirmedByUserID = &userID
	j.ConfirmedAt = &now
	return true, nil
}

// Complete moves a confirmed job to completed.
func (j *Job) Complete(now time.Time) error {
	if j.Status != StatusConfirmed {
		return ErrInvalidTransition
	}
	j.Status = StatusCompleted
	j.CompletedAt = &now
	return nil
}

// Cancel moves any non-terminal job to cancelled.
func (j *Job) Cancel() error {
	if j.Status.IsTerminal() {
		return ErrInvalidTransition
	}
	j.Status = StatusCancelled
	return nil
}

// Reassign hands the job to another measurer. Allowed any time before a
// terminal status; the job drops back to assigned, the reason becomes manual
// and any confirmation is cleared. A nil measurer parks the job unassigned
// with reason none, pending manual action.
func (j *Job) Reassign(measurerID *int64, reason assignment.Reason, now time.Time) error {
	if j.Status.IsTerminal() {
		return ErrInvalidTransition
	}

	j.Status = StatusAssigned
	j.AssignedMeasurerID = measurerID
	j.AssignmentReason = reason
	if measurerID == nil {
		j.AssignmentReason = assignment.ReasonNone
	}
	j.ConfirmedByUserID = nil
	j.ConfirmedAt = nil
	j.AssignedAt = &now
	return nil
}
