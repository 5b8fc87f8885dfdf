// Package events defines the measurement domain events and re-exports the
// platform bus so modules import one events package.
package events

import (
	platformevents "measurehub_backend/platform/events"
	"measurehub_backend/platform/logger"
)

// InMemoryBus aliases the platform implementation.
type InMemoryBus = platformevents.InMemoryBus

// NewInMemoryBus creates the in-process bus main hands to the modules.
func NewInMemoryBus(log *logger.Logger) *InMemoryBus {
	return platformevents.NewInMemoryBus(log)
}
