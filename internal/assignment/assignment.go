// Package assignment decides which measurer receives an incoming job. The
// resolver tries dealer bindings, then zone pools, then the global pool, each
// round-robin pool backed by a persisted cursor.
package assignment

import (
	"errors"
	"fmt"
)

// ErrNoEligibleMeasurer is returned by the ledger when a pool has no members
// to pick from. It is a normal outcome, not a failure.
var ErrNoEligibleMeasurer = errors.New("no eligible measurer")

// Reason records how a job got its measurer.
type Reason string

const (
	ReasonDealer     Reason = "dealer"
	ReasonZone       Reason = "zone"
	ReasonRoundRobin Reason = "round_robin"
	ReasonManual     Reason = "manual"
	ReasonNone       Reason = "none"
)

// PoolKeyGlobal is the ledger pool spanning all active measurers.
const PoolKeyGlobal = "global"

// ZonePoolKey is the ledger pool scoped to one zone.
func ZonePoolKey(zoneID int64) string {
	return fmt.Sprintf("zone:%d", zoneID)
}

// Resolution is the outcome of resolving a job: the chosen measurer (nil when
// nobody could be assigned) and the reason recorded on the job.
type Resolution struct {
	MeasurerID *int64
	Reason     Reason
}
