package buffer

import (
	"fmt"
	"sync"
	"time"

	"github.com/gatehouse/gatehouse/pkg/hashring"
	"github.com/gatehouse/gatehouse/pkg/log"
	"github.com/gatehouse/gatehouse/pkg/metrics"
	"github.com/gatehouse/gatehouse/pkg/store"
	"github.com/gatehouse/gatehouse/pkg/types"
	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
)

// Config holds buffer tuning
type Config struct {
	// MaxSize is the pending event count that triggers an immediate flush
	MaxSize int
	// FlushInterval is the maximum time an event waits before flushing
	FlushInterval time.Duration
}

// DefaultConfig returns the buffer configuration used when none is given
func DefaultConfig() Config {
	return Config{
		MaxSize:       200,
		FlushInterval: 200 * time.Millisecond,
	}
}

// Buffer accepts writer events, stamps them with an id, a monotone
// occurred time and a hash code, and persists them to the store in
// batches. Acceptance is decoupled from persistence: Append returns as
// soon as the event is enqueued.
//
// Events the store rejects as caller mistakes are dropped at flush with
// an error log. A persistence failure trips the shared trip switch; once
// tripped, the buffer refuses further events until the switch is reset.
type Buffer struct {
	store  store.Store
	trip   *metrics.TripSwitch
	config Config

	mu           sync.Mutex
	pending      []*types.Event
	lastOccurred time.Time

	flushGroup singleflight.Group
	stopCh     chan struct{}
	doneCh     chan struct{}
	started    bool
}

// New creates a buffer writing to the given store
func New(st store.Store, trip *metrics.TripSwitch, config Config) *Buffer {
	if config.MaxSize <= 0 {
		config.MaxSize = DefaultConfig().MaxSize
	}
	if config.FlushInterval <= 0 {
		config.FlushInterval = DefaultConfig().FlushInterval
	}
	return &Buffer{
		store:  st,
		trip:   trip,
		config: config,
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
}

// Start launches the background flush loop
func (b *Buffer) Start() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.started {
		return
	}
	b.started = true
	go b.flushLoop()
	log.WithComponent("buffer").Debug().Msg("flush loop started")
}

// Stop halts the flush loop after a final flush of pending events
func (b *Buffer) Stop() {
	b.mu.Lock()
	if !b.started {
		b.mu.Unlock()
		return
	}
	b.started = false
	b.mu.Unlock()

	close(b.stopCh)
	<-b.doneCh
}

// Append validates and enqueues one event, returning its assigned id.
// The event is durable only after the next flush succeeds. Filling the
// buffer to its size limit triggers a flush before Append returns.
func (b *Buffer) Append(kind types.EventKind, action types.EventAction, fields ...string) (uuid.UUID, error) {
	if b.trip.Tripped() {
		return uuid.Nil, &types.UnavailableError{Reason: b.trip.Reason()}
	}

	b.mu.Lock()
	e := types.NewEvent(uuid.New(), kind, action, b.nextOccurredLocked(), 0, fields...)
	if err := e.Validate(); err != nil {
		b.mu.Unlock()
		return uuid.Nil, err
	}
	// Every event carries the hash of its primary key for the audit
	// trail. Entity type and entity events broadcast rather than route,
	// but their rows still record the entity type's hash.
	e.HashCode = hashring.Hash(e.PrimaryKey())

	b.pending = append(b.pending, e)
	full := len(b.pending) >= b.config.MaxSize
	b.mu.Unlock()

	metrics.EventsBuffered.Inc()
	if full {
		if err := b.Flush(); err != nil {
			return uuid.Nil, err
		}
	}
	return e.ID, nil
}

// nextOccurredLocked stamps strictly increasing occurred times even when
// the wall clock stalls or retreats. Callers hold b.mu.
func (b *Buffer) nextOccurredLocked() time.Time {
	now := time.Now().UTC()
	if !now.After(b.lastOccurred) {
		now = b.lastOccurred.Add(types.Epsilon)
	}
	b.lastOccurred = now
	return now
}

// Len returns the number of events awaiting flush
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pending)
}

// Flush persists all pending events now. Concurrent callers share a
// single flush.
func (b *Buffer) Flush() error {
	_, err, _ := b.flushGroup.Do("flush", func() (interface{}, error) {
		return nil, b.flushOnce()
	})
	return err
}

func (b *Buffer) flushOnce() error {
	b.mu.Lock()
	batch := b.pending
	b.pending = nil
	b.mu.Unlock()

	if len(batch) == 0 {
		return nil
	}

	timer := metrics.NewTimer()
	_, err := b.store.ApplyEvents(batch, false)
	timer.ObserveDuration(metrics.BufferFlushDuration)

	if err == nil {
		metrics.EventsBuffered.Sub(float64(len(batch)))
		metrics.BufferFlushesTotal.WithLabelValues("success").Inc()
		log.WithComponent("buffer").Debug().Int("events", len(batch)).Msg("flushed events")
		return nil
	}

	// The store rejected a caller mistake: a duplicate add, a remove of a
	// missing element, a mapping without its parents. The batch rolled
	// back whole, so replay it one event at a time and drop the
	// offenders; tripping here would let one bad request latch the write
	// path shut.
	if isCallerError(err) {
		return b.flushEach(batch)
	}
	return b.failFlush(batch, len(batch), err)
}

// flushEach replays a rejected batch event by event. Events the store
// rejects as caller mistakes are logged and discarded; a persistence
// failure requeues the unapplied tail and trips the switch.
func (b *Buffer) flushEach(batch []*types.Event) error {
	var dropped int
	for i, e := range batch {
		if _, err := b.store.ApplyEvents([]*types.Event{e}, false); err != nil {
			if !isCallerError(err) {
				return b.failFlush(batch[i:], len(batch)-i, err)
			}
			dropped++
			metrics.EventsBuffered.Dec()
			log.WithEventID(e.ID.String()).Error().
				Str("kind", string(e.Kind)).
				Str("action", string(e.Action)).
				Err(err).
				Msg("dropped rejected event")
			continue
		}
		metrics.EventsBuffered.Dec()
	}

	metrics.BufferFlushesTotal.WithLabelValues("success").Inc()
	log.WithComponent("buffer").Warn().
		Int("events", len(batch)).
		Int("dropped", dropped).
		Msg("flushed events with drops")
	return nil
}

// failFlush requeues unapplied events ahead of anything appended
// meanwhile, so a post-reset retry keeps original order, and stops the
// write path.
func (b *Buffer) failFlush(unapplied []*types.Event, count int, err error) error {
	b.mu.Lock()
	b.pending = append(append([]*types.Event{}, unapplied...), b.pending...)
	b.mu.Unlock()

	metrics.BufferFlushesTotal.WithLabelValues("failure").Inc()
	reason := fmt.Sprintf("buffer flush of %d events failed: %v", count, err)
	b.trip.Trip(reason)
	log.WithComponent("buffer").Error().Msg(reason)
	return fmt.Errorf("failed to flush events: %w", err)
}

func isCallerError(err error) bool {
	return types.IsConflict(err) || types.IsNotFound(err) || types.IsValidation(err)
}

func (b *Buffer) flushLoop() {
	defer close(b.doneCh)

	ticker := time.NewTicker(b.config.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			b.Flush()
		case <-b.stopCh:
			if err := b.Flush(); err != nil {
				log.WithComponent("buffer").Error().Err(err).Msg("final flush failed")
			}
			return
		}
	}
}
