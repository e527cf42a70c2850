package api

import (
	"context"

	"github.com/gatehouse/gatehouse/pkg/buffer"
	"github.com/gatehouse/gatehouse/pkg/cache"
	"github.com/gatehouse/gatehouse/pkg/processor"
	"github.com/gatehouse/gatehouse/pkg/store"
	"github.com/gatehouse/gatehouse/pkg/types"
	"github.com/google/uuid"
)

// Backend is the operation surface the HTTP handlers serve. The local
// implementation runs against this instance's own store; a routing
// implementation would dispatch to remote shards instead.
type Backend interface {
	// SubmitEvent accepts one writer event and returns its assigned id.
	// Durability follows asynchronously via the buffer.
	SubmitEvent(ctx context.Context, kind types.EventKind, action types.EventAction, fields ...string) (uuid.UUID, error)

	// ProcessEvents applies a pre-identified event batch transactionally
	ProcessEvents(ctx context.Context, events []*types.Event, ignorePreexisting bool) (processor.Result, error)

	// CacheEvents appends events to the shared event cache
	CacheEvents(events []*types.Event)

	// EventsSince returns cached events after the given id
	EventsSince(priorID uuid.UUID) ([]*types.Event, error)

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

	// Mappings
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

	// Decisions
	HasAccessToApplicationComponent(user, component, access string) (bool, error)
	HasAccessToEntity(user, entityType, entity string) (bool, error)
	GetApplicationComponentsAccessibleByUser(user string) ([]types.ComponentAccess, error)
	GetApplicationComponentsAccessibleByGroup(group string) ([]types.ComponentAccess, error)
	GetEntitiesAccessibleByUser(user, entityType string) ([]types.EntityRef, error)
	GetEntitiesAccessibleByGroup(group, entityType string) ([]types.EntityRef, error)
}

// LocalBackend serves the operation surface from this instance's own
// store, buffer, processor and cache. Query methods come from the
// embedded store.
type LocalBackend struct {
	store.Store
	buffer    *buffer.Buffer
	processor *processor.Processor
	cache     *cache.Cache
}

// NewLocalBackend wires the local pipeline into a Backend
func NewLocalBackend(st store.Store, buf *buffer.Buffer, proc *processor.Processor, c *cache.Cache) *LocalBackend {
	return &LocalBackend{Store: st, buffer: buf, processor: proc, cache: c}
}

func (b *LocalBackend) SubmitEvent(ctx context.Context, kind types.EventKind, action types.EventAction, fields ...string) (uuid.UUID, error) {
	if err := ctx.Err(); err != nil {
		return uuid.Nil, err
	}
	return b.buffer.Append(kind, action, fields...)
}

func (b *LocalBackend) ProcessEvents(ctx context.Context, events []*types.Event, ignorePreexisting bool) (processor.Result, error) {
	return b.processor.Process(ctx, events, ignorePreexisting)
}

func (b *LocalBackend) CacheEvents(events []*types.Event) {
	b.cache.Add(events...)
}

func (b *LocalBackend) EventsSince(priorID uuid.UUID) ([]*types.Event, error) {
	return b.cache.GetAllEventsSince(priorID)
}
