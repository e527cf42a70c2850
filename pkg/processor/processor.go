package processor

import (
	"context"
	"fmt"

	"github.com/gatehouse/gatehouse/pkg/cache"
	"github.com/gatehouse/gatehouse/pkg/log"
	"github.com/gatehouse/gatehouse/pkg/metrics"
	"github.com/gatehouse/gatehouse/pkg/store"
	"github.com/gatehouse/gatehouse/pkg/types"
)

// Result summarizes one processed batch
type Result struct {
	Applied int `json:"applied"`
	Skipped int `json:"skipped"`
}

// Processor applies ordered event batches to the store and fans
// successful batches out to the event cache
type Processor struct {
	store store.Store
	cache *cache.Cache
	trip  *metrics.TripSwitch
}

// New creates a bulk event processor
func New(st store.Store, c *cache.Cache, trip *metrics.TripSwitch) *Processor {
	return &Processor{store: st, cache: c, trip: trip}
}

// Process validates and applies a batch in input order within one store
// transaction. In strict mode a duplicate event id fails the whole
// batch; with ignorePreexisting set, duplicates are skipped and the rest
// applies. Nothing is written when any event is malformed.
func (p *Processor) Process(ctx context.Context, events []*types.Event, ignorePreexisting bool) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	if p.trip.Tripped() {
		return Result{}, &types.UnavailableError{Reason: p.trip.Reason()}
	}
	if len(events) == 0 {
		return Result{}, nil
	}

	// Reject the batch before any write when an event is malformed
	for i, e := range events {
		if err := e.Validate(); err != nil {
			return Result{}, fmt.Errorf("event %d is invalid: %w", i, err)
		}
	}

	skipped, err := p.store.ApplyEvents(events, ignorePreexisting)
	if err != nil {
		// Caller mistakes roll back and are reported; anything else
		// means persistence itself is unhealthy and stops the write path
		if !isCallerError(err) {
			reason := fmt.Sprintf("bulk apply of %d events failed: %v", len(events), err)
			p.trip.Trip(reason)
			log.WithComponent("processor").Error().Msg(reason)
		}
		return Result{}, err
	}

	p.cache.Add(events...)
	log.WithComponent("processor").Debug().
		Int("applied", len(events)-skipped).
		Int("skipped", skipped).
		Msg("processed event batch")

	return Result{Applied: len(events) - skipped, Skipped: skipped}, nil
}

func isCallerError(err error) bool {
	return types.IsConflict(err) || types.IsNotFound(err) || types.IsValidation(err)
}
