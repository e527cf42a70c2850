package cache

import (
	"sync"

	"github.com/gatehouse/gatehouse/pkg/metrics"
	"github.com/gatehouse/gatehouse/pkg/types"
	"github.com/google/uuid"
)

// DefaultCapacity is the cached event count used when none is configured
const DefaultCapacity = 10000

// Cache holds the most recently persisted events in arrival order, up to
// a fixed capacity. The oldest events are evicted first. Appends come
// from the single event processor; reads may be concurrent.
type Cache struct {
	mu       sync.RWMutex
	capacity int
	events   []*types.Event
	// seq maps event id to its absolute arrival sequence; firstSeq is
	// the sequence of events[0]
	seq      map[uuid.UUID]uint64
	firstSeq uint64
	nextSeq  uint64
}

// New creates an event cache bounded to the given capacity
func New(capacity int) *Cache {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Cache{
		capacity: capacity,
		seq:      make(map[uuid.UUID]uint64),
	}
}

// Add appends events in order, evicting the oldest past capacity
func (c *Cache) Add(events ...*types.Event) {
	if len(events) == 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	for _, e := range events {
		// An event id appears at most once; replays are a no-op
		if _, ok := c.seq[e.ID]; ok {
			continue
		}
		c.events = append(c.events, e)
		c.seq[e.ID] = c.nextSeq
		c.nextSeq++
	}

	evicted := len(c.events) - c.capacity
	if evicted > 0 {
		for _, e := range c.events[:evicted] {
			delete(c.seq, e.ID)
		}
		c.events = append([]*types.Event(nil), c.events[evicted:]...)
		c.firstSeq += uint64(evicted)
		metrics.CacheEvictions.Add(float64(evicted))
	}
	metrics.CachedEvents.Set(float64(len(c.events)))
}

// GetAllEventsSince returns, in order, every cached event that arrived
// strictly after the event with the given id. The zero id returns the
// entire cache. An id that is unknown or already evicted yields a
// NotFoundError: the caller's position is too old to resume from.
func (c *Cache) GetAllEventsSince(priorID uuid.UUID) ([]*types.Event, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	start := 0
	if priorID != uuid.Nil {
		seq, ok := c.seq[priorID]
		if !ok {
			return nil, &types.NotFoundError{Element: "cachedEvent", ID: priorID.String()}
		}
		start = int(seq-c.firstSeq) + 1
	}

	out := make([]*types.Event, len(c.events)-start)
	copy(out, c.events[start:])
	return out, nil
}

// MostRecent returns the id of the newest cached event, or false when the
// cache is empty
func (c *Cache) MostRecent() (uuid.UUID, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if len(c.events) == 0 {
		return uuid.Nil, false
	}
	return c.events[len(c.events)-1].ID, true
}

// Len returns the number of cached events
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.events)
}

// Capacity returns the configured bound
func (c *Cache) Capacity() int {
	return c.capacity
}
