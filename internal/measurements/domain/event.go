package domain

import (
	"errors"
	"fmt"
)

// ErrUnrecognizedEvent marks inbound events the orchestrator refuses to
// apply: unknown kinds, missing lead ids, malformed payloads.
var ErrUnrecognizedEvent = errors.New("unrecognized event")

// EventKind classifies inbound job events.
type EventKind string

const (
	EventCreated    EventKind = "created"
	EventConfirmed  EventKind = "confirmed"
	EventCompleted  EventKind = "completed"
	EventCancelled  EventKind = "cancelled"
	EventReassigned EventKind = "reassigned"
)

// ParseEventKind validates a kind string coming off the wire.
func ParseEventKind(s string) (EventKind, error) {
	kind := EventKind(s)
	switch kind {
	case EventCreated, EventConfirmed, EventCompleted, EventCancelled, EventReassigned:
		return kind, nil
	}
	return "", fmt.Errorf("%w: kind %q", ErrUnrecognizedEvent, s)
}

// InboundEvent is a normalized job event, whatever the source: CRM webhook,
// admin API or the retry queue. It serializes to JSON for task payloads.
type InboundEvent struct {
	Kind           EventKind `json:"kind"`
	ExternalLeadID int64     `json:"externalLeadId"`
	Name           string    `json:"name,omitempty"`
	ContactName    string    `json:"contactName,omitempty"`
	ContactPhone   string    `json:"contactPhone,omitempty"`
	Address        string    `json:"address,omitempty"`
	OrderCode      string    `json:"orderCode,omitempty"`
	DealerName     string    `json:"dealerName,omitempty"`
	ZoneHint       string    `json:"zoneHint,omitempty"`
	ActorUserID    *int64    `json:"actorUserId,omitempty"`
	NewMeasurerID  *int64    `json:"newMeasurerId,omitempty"`
}

// Validate rejects events the orchestrator must never apply partially.
func (e InboundEvent) Validate() error {
	if _, err := ParseEventKind(string(e.Kind)); err != nil {
		return err
	}
	if e.ExternalLeadID <= 0 {
		return fmt.Errorf("%w: missing external lead id", ErrUnrecognizedEvent)
	}
	return nil
}
