package assignment

import (
	"context"

	"measurehub_backend/platform/logger"
)

// Directory is the lookup surface the resolver needs from the measurer
// directory.
type Directory interface {
	ResolveDealer(ctx context.Context, dealerName string) (int64, bool, error)
	ResolveZone(ctx context.Context, hint string) (int64, bool, error)
	EligibleMeasurers(ctx context.Context, zoneID int64) ([]int64, error)
	GlobalPool(ctx context.Context) ([]int64, error)
}

// JobFacts is what the resolver knows about an incoming job.
type JobFacts struct {
	DealerName string
	ZoneHint   string
}

// Resolver picks a measurer for a new job. Precedence, first match wins:
// dealer binding, zone pool, global pool, nobody.
type Resolver struct {
	directory Directory
	ledger    *Ledger
	log       *logger.Logger
}

// NewResolver creates an assignment resolver.
func NewResolver(directory Directory, ledger *Ledger, log *logger.Logger) *Resolver {
	return &Resolver{directory: directory, ledger: ledger, log: log}
}

// Resolve decides who gets the job. A resolution with a nil MeasurerID and
// ReasonNone means the job stays unassigned pending manual action; that is a
// valid outcome, not an error.
func (r *Resolver) Resolve(ctx context.Context, job JobFacts) (Resolution, error) {
	if userID, ok, err := r.directory.ResolveDealer(ctx, job.DealerName); err != nil {
		return Resolution{}, err
	} else if ok {
		r.log.Info("assignment resolved", "reason", ReasonDealer, "userId", userID)
		return Resolution{MeasurerID: &userID, Reason: ReasonDealer}, nil
	}

	zoneID, ok, err := r.directory.ResolveZone(ctx, job.ZoneHint)
	if err != nil {
		return Resolution{}, err
	}
	if ok {
		eligible, err := r.directory.EligibleMeasurers(ctx, zoneID)
		if err != nil {
			return Resolution{}, err
		}
		if len(eligible) > 0 {
			userID, err := r.ledger.Next(ctx, ZonePoolKey(zoneID), eligible)
			if err != nil {
				return Resolution{}, err
			}
			r.log.Info("assignment resolved", "reason", ReasonZone, "userId", userID, "zoneId", zoneID)
			return Resolution{MeasurerID: &userID, Reason: ReasonZone}, nil
		}
		// Zone matched but has nobody assignable; fall through to the
		// global pool.
	}

	pool, err := r.directory.GlobalPool(ctx)
	if err != nil {
		return Resolution{}, err
	}
	if len(pool) > 0 {
		userID, err := r.ledger.Next(ctx, PoolKeyGlobal, pool)
		if err != nil {
			return Resolution{}, err
		}
		r.log.Info("assignment resolved", "reason", ReasonRoundRobin, "userId", userID)
		return Resolution{MeasurerID: &userID, Reason: ReasonRoundRobin}, nil
	}

	r.log.Warn("assignment unresolved, job stays unassigned")
	return Resolution{Reason: ReasonNone}, nil
}
