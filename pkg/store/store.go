package store

import (
	"time"

	"github.com/gatehouse/gatehouse/pkg/types"
	"github.com/google/uuid"
)

// Store defines the interface for temporal event persistence.
// This will be implemented by BoltDB-backed storage.
//
// Every writer operation takes the element's primary string(s), the
// event's id, its occurred time, and its hash code, and runs in a single
// transaction. Remove operations cascade: dependent relation rows are
// invalidated before the element's own row.
type Store interface {
	// Users
	AddUser(user string, eventID uuid.UUID, occurred time.Time, hashCode int32) error
	RemoveUser(user string, eventID uuid.UUID, occurred time.Time, hashCode int32) error

	// Groups
	AddGroup(group string, eventID uuid.UUID, occurred time.Time, hashCode int32) error
	RemoveGroup(group string, eventID uuid.UUID, occurred time.Time, hashCode int32) error

	// User to group mappings
	AddUserToGroupMapping(user, group string, eventID uuid.UUID, occurred time.Time, hashCode int32) error
	RemoveUserToGroupMapping(user, group string, eventID uuid.UUID, occurred time.Time, hashCode int32) error

	// Group to group mappings
	AddGroupToGroupMapping(fromGroup, toGroup string, eventID uuid.UUID, occurred time.Time, hashCode int32) error
	RemoveGroupToGroupMapping(fromGroup, toGroup string, eventID uuid.UUID, occurred time.Time, hashCode int32) error

	// Component access mappings
	AddUserToComponentMapping(user, component, access string, eventID uuid.UUID, occurred time.Time, hashCode int32) error
	RemoveUserToComponentMapping(user, component, access string, eventID uuid.UUID, occurred time.Time, hashCode int32) error
	AddGroupToComponentMapping(group, component, access string, eventID uuid.UUID, occurred time.Time, hashCode int32) error
	RemoveGroupToComponentMapping(group, component, access string, eventID uuid.UUID, occurred time.Time, hashCode int32) error

	// Entity types and entities
	AddEntityType(entityType string, eventID uuid.UUID, occurred time.Time, hashCode int32) error
	RemoveEntityType(entityType string, eventID uuid.UUID, occurred time.Time, hashCode int32) error
	AddEntity(entityType, entity string, eventID uuid.UUID, occurred time.Time, hashCode int32) error
	RemoveEntity(entityType, entity string, eventID uuid.UUID, occurred time.Time, hashCode int32) error

	// Entity mappings
	AddUserToEntityMapping(user, entityType, entity string, eventID uuid.UUID, occurred time.Time, hashCode int32) error
	RemoveUserToEntityMapping(user, entityType, entity string, eventID uuid.UUID, occurred time.Time, hashCode int32) error
	AddGroupToEntityMapping(group, entityType, entity string, eventID uuid.UUID, occurred time.Time, hashCode int32) error
	RemoveGroupToEntityMapping(group, entityType, entity string, eventID uuid.UUID, occurred time.Time, hashCode int32) error

	// Bulk apply. Events are applied in input order inside one transaction;
	// all commit or none do. With ignorePreexisting set, events whose id is
	// already in the event index are silently skipped (idempotent replay).
	// Returns the number of events skipped.
	ApplyEvents(events []*types.Event, ignorePreexisting bool) (int, error)

	// Enumerations
	GetUsers() ([]string, error)
	GetGroups() ([]string, error)
	GetEntityTypes() ([]string, error)
	GetEntities(entityType string) ([]string, error)

	// Membership
	ContainsUser(user string) (bool, error)
	ContainsGroup(group string) (bool, error)
	ContainsEntityType(entityType string) (bool, error)
	ContainsEntity(entityType, entity string) (bool, error)

	// Direct and reverse mappings
	GetUserToGroupMappings(user string, includeIndirect bool) ([]string, error)
	GetGroupToUserMappings(group string, includeIndirect bool) ([]string, error)
	GetGroupToGroupMappings(group string) ([]string, error)
	GetGroupToGroupReverseMappings(group string) ([]string, error)
	GetUserToComponentMappings(user string) ([]types.ComponentAccess, error)
	GetGroupToComponentMappings(group string) ([]types.ComponentAccess, error)
	GetUserToEntityMappings(user, entityType string) ([]types.EntityRef, error)
	GetGroupToEntityMappings(group, entityType string) ([]types.EntityRef, error)
	GetEntityToUserMappings(entityType, entity string, includeIndirect bool) ([]string, error)
	GetEntityToGroupMappings(entityType, entity string) ([]string, error)

	// Decision queries
	HasAccessToApplicationComponent(user, component, access string) (bool, error)
	HasAccessToEntity(user, entityType, entity string) (bool, error)
	GetApplicationComponentsAccessibleByUser(user string) ([]types.ComponentAccess, error)
	GetApplicationComponentsAccessibleByGroup(group string) ([]types.ComponentAccess, error)
	GetEntitiesAccessibleByUser(user, entityType string) ([]types.EntityRef, error)
	GetEntitiesAccessibleByGroup(group, entityType string) ([]types.EntityRef, error)

	// History returns every row ever recorded for the logical element
	// identified by keys, in row id order. Rows are never deleted.
	History(kind types.EventKind, keys ...string) ([]Row, error)

	// Utility
	Close() error
}

// Row is one bitemporal row. A row is live at instant t when
// TransactionFrom <= t <= TransactionTo. At most one row per logical key
// is live at any instant.
type Row struct {
	ID              uint64    `json:"id"`
	Keys            []string  `json:"keys"`
	TransactionFrom time.Time `json:"transaction_from"`
	TransactionTo   time.Time `json:"transaction_to"`
}

// LiveAt reports whether the row is live at instant t
func (r *Row) LiveAt(t time.Time) bool {
	return !r.TransactionFrom.After(t) && !t.After(r.TransactionTo)
}
