// Package events provides domain event definitions for decoupled,
// event-driven communication between modules.
// Infrastructure (Bus, Handler) is in platform/events.
package events

import (
	"measurehub_backend/platform/events"
)

// Re-export platform types for convenience
type (
	Event       = events.Event
	Bus         = events.Bus
	Handler     = events.Handler
	HandlerFunc = events.HandlerFunc
	BaseEvent   = events.BaseEvent
)

// Re-export platform functions
var NewBaseEvent = events.NewBaseEvent

// =============================================================================
// Measurement Domain Events
// =============================================================================

// MeasurementCreated is published after a new measurement job is persisted.
type MeasurementCreated struct {
	BaseEvent
	MeasurementID    int64  `json:"measurementId"`
	ExternalLeadID   int64  `json:"externalLeadId"`
	MeasurerID       *int64 `json:"measurerId,omitempty"`
	AssignmentReason string `json:"assignmentReason"`
}

func (e MeasurementCreated) EventName() string { return "measurements.created" }

// MeasurementStatusChanged is published after a job moves to a new status.
type MeasurementStatusChanged struct {
	BaseEvent
	MeasurementID  int64  `json:"measurementId"`
	ExternalLeadID int64  `json:"externalLeadId"`
	OldStatus      string `json:"oldStatus"`
	NewStatus      string `json:"newStatus"`
	ActorID        *int64 `json:"actorId,omitempty"`
}

func (e MeasurementStatusChanged) EventName() string { return "measurements.status_changed" }

// MeasurementReassigned is published after a job is handed to another measurer.
type MeasurementReassigned struct {
	BaseEvent
	MeasurementID    int64  `json:"measurementId"`
	ExternalLeadID   int64  `json:"externalLeadId"`
	PreviousMeasurer *int64 `json:"previousMeasurer,omitempty"`
	NewMeasurer      *int64 `json:"newMeasurer,omitempty"`
	AssignedByID     *int64 `json:"assignedById,omitempty"`
}

func (e MeasurementReassigned) EventName() string { return "measurements.reassigned" }
