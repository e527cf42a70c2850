package types

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Epsilon is the minimum representable time unit of the temporal store.
// Removing an element at time t closes its row at t - Epsilon so that a
// subsequent add at t never overlaps the closed row.
const Epsilon = time.Nanosecond

// EventKind identifies which element of the access model an event applies to
type EventKind string

const (
	KindUser             EventKind = "user"
	KindGroup            EventKind = "group"
	KindUserToGroup      EventKind = "userToGroup"
	KindGroupToGroup     EventKind = "groupToGroup"
	KindUserToComponent  EventKind = "userToComponent"
	KindGroupToComponent EventKind = "groupToComponent"
	KindEntityType       EventKind = "entityType"
	KindEntity           EventKind = "entity"
	KindUserToEntity     EventKind = "userToEntity"
	KindGroupToEntity    EventKind = "groupToEntity"
)

// EventAction is the administrative action an event records
type EventAction string

const (
	ActionAdd    EventAction = "add"
	ActionRemove EventAction = "remove"
)

// ElementKind is the data element kind used for shard routing
type ElementKind string

const (
	ElementUser         ElementKind = "user"
	ElementGroup        ElementKind = "group"
	ElementGroupToGroup ElementKind = "groupToGroupMapping"
)

// OperationKind distinguishes query traffic from event (write) traffic
// when resolving shard configuration
type OperationKind string

const (
	OpQuery OperationKind = "query"
	OpEvent OperationKind = "event"
)

// fieldCounts maps each event kind to the number of string fields its
// payload carries
var fieldCounts = map[EventKind]int{
	KindUser:             1,
	KindGroup:            1,
	KindUserToGroup:      2,
	KindGroupToGroup:     2,
	KindUserToComponent:  3,
	KindGroupToComponent: 3,
	KindEntityType:       1,
	KindEntity:           2,
	KindUserToEntity:     3,
	KindGroupToEntity:    3,
}

// elementKinds maps each keyed event kind to the routing element kind its
// primary key belongs to. Entity type and entity events are unkeyed for
// routing purposes and are broadcast to all shards.
var elementKinds = map[EventKind]ElementKind{
	KindUser:             ElementUser,
	KindUserToGroup:      ElementUser,
	KindUserToComponent:  ElementUser,
	KindUserToEntity:     ElementUser,
	KindGroup:            ElementGroup,
	KindGroupToComponent: ElementGroup,
	KindGroupToEntity:    ElementGroup,
	KindGroupToGroup:     ElementGroupToGroup,
}

// Event is an immutable record of a single administrative change to the
// access model. Events are created by the buffer, persisted by the store,
// and retained verbatim in the event cache until eviction.
type Event struct {
	ID       uuid.UUID   `json:"event_id"`
	Kind     EventKind   `json:"event_kind"`
	Action   EventAction `json:"event_action"`
	Occurred time.Time   `json:"occurred_time"`
	HashCode int32       `json:"hash_code"`
	Fields   []string    `json:"fields"`
}

// NewEvent creates an event with the given identity and payload.
// Field count is not checked here; call Validate before persisting.
func NewEvent(id uuid.UUID, kind EventKind, action EventAction, occurred time.Time, hashCode int32, fields ...string) *Event {
	return &Event{
		ID:       id,
		Kind:     kind,
		Action:   action,
		Occurred: occurred,
		HashCode: hashCode,
		Fields:   fields,
	}
}

// Validate checks that the event's kind, action, and field count are
// well-formed. An invalid event must abort the batch it arrived in before
// any write.
func (e *Event) Validate() error {
	want, ok := fieldCounts[e.Kind]
	if !ok {
		return &ValidationError{Field: "event_kind", Reason: fmt.Sprintf("unknown event kind %q", e.Kind)}
	}
	if e.Action != ActionAdd && e.Action != ActionRemove {
		return &ValidationError{Field: "event_action", Reason: fmt.Sprintf("unknown event action %q", e.Action)}
	}
	if len(e.Fields) != want {
		return &ValidationError{
			Field:  "fields",
			Reason: fmt.Sprintf("event kind %q requires %d fields, got %d", e.Kind, want, len(e.Fields)),
		}
	}
	for i, f := range e.Fields {
		if f == "" {
			return &ValidationError{Field: "fields", Reason: fmt.Sprintf("field %d of %q event is empty", i, e.Kind)}
		}
	}
	if e.ID == uuid.Nil {
		return &ValidationError{Field: "event_id", Reason: "event id is not set"}
	}
	if e.Occurred.IsZero() {
		return &ValidationError{Field: "occurred_time", Reason: "occurred time is not set"}
	}
	return nil
}

// PrimaryKey returns the string the event's hash code is computed from.
// For relation events this is the owning side: the user for user-keyed
// relations, the group for group-keyed ones, the from-group for
// group-to-group mappings, and the entity type for entity events.
func (e *Event) PrimaryKey() string {
	if len(e.Fields) == 0 {
		return ""
	}
	return e.Fields[0]
}

// ElementKind returns the routing element kind for the event and whether
// the event is keyed at all. Unkeyed events (entity types and entities)
// are broadcast to every shard rather than routed by hash.
func (e *Event) ElementKind() (ElementKind, bool) {
	k, ok := elementKinds[e.Kind]
	return k, ok
}

// ShardConfig describes one shard's ownership of a hash range for a
// single (data element kind, operation kind) pair
type ShardConfig struct {
	Kind           ElementKind   `json:"data_element_kind" yaml:"data_element_kind"`
	Op             OperationKind `json:"operation_kind" yaml:"operation_kind"`
	HashRangeStart int32         `json:"hash_range_start" yaml:"hash_range_start"`
	URL            string        `json:"url" yaml:"url"`
}

// Validate checks a single shard configuration record
func (c *ShardConfig) Validate() error {
	switch c.Kind {
	case ElementUser, ElementGroup, ElementGroupToGroup:
	default:
		return &ValidationError{Field: "data_element_kind", Reason: fmt.Sprintf("unknown element kind %q", c.Kind)}
	}
	switch c.Op {
	case OpQuery, OpEvent:
	default:
		return &ValidationError{Field: "operation_kind", Reason: fmt.Sprintf("unknown operation kind %q", c.Op)}
	}
	if c.URL == "" {
		return &ValidationError{Field: "url", Reason: "shard url is empty"}
	}
	return nil
}

// ShardConfigSet is a complete shard configuration. The set is immutable
// once installed; reconfiguration replaces the whole value atomically.
type ShardConfigSet []ShardConfig

// Validate checks every record and rejects duplicate
// (kind, op, hash_range_start) tuples
func (s ShardConfigSet) Validate() error {
	type key struct {
		kind  ElementKind
		op    OperationKind
		start int32
	}
	seen := make(map[key]bool, len(s))
	for i := range s {
		if err := s[i].Validate(); err != nil {
			return err
		}
		k := key{s[i].Kind, s[i].Op, s[i].HashRangeStart}
		if seen[k] {
			return &ValidationError{
				Field:  "hash_range_start",
				Reason: fmt.Sprintf("duplicate shard range start %d for (%s, %s)", k.start, k.kind, k.op),
			}
		}
		seen[k] = true
	}
	return nil
}
