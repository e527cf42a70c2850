package api

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/gatehouse/gatehouse/pkg/client"
	"github.com/gatehouse/gatehouse/pkg/hashring"
	"github.com/gatehouse/gatehouse/pkg/router"
	"github.com/gatehouse/gatehouse/pkg/types"
	"github.com/google/uuid"
)

// broadcastKinds covers every shard in the configuration. Unkeyed
// operations (entity types, entities, reverse lookups) reach all of them.
var broadcastKinds = []types.ElementKind{
	types.ElementUser,
	types.ElementGroup,
	types.ElementGroupToGroup,
}

// RoutingBackend serves the operation surface by dispatching element
// operations to the shards that own them. Keyed operations resolve by
// primary-key hash; unkeyed ones broadcast. Shard-local surfaces — bulk
// ingestion, the event cache feed — stay on the embedded local backend:
// they are how peers deliver events to this instance, not operations to
// route onward.
type RoutingBackend struct {
	Backend
	router *router.Router
}

// NewRoutingBackend wraps a local backend with shard routing
func NewRoutingBackend(local Backend, rt *router.Router) *RoutingBackend {
	return &RoutingBackend{Backend: local, router: rt}
}

// SubmitEvent dispatches a writer event to the owning shard, or to both
// shards when the key's hash falls in the dual-routing overlap. The
// returned id is the one the source shard assigned.
func (b *RoutingBackend) SubmitEvent(ctx context.Context, kind types.EventKind, action types.EventAction, fields ...string) (uuid.UUID, error) {
	// Assemble a throwaway event to validate the payload and derive the
	// routing key; the owning shard assigns the real id and time
	draft := types.NewEvent(uuid.New(), kind, action, time.Now().UTC(), 0, fields...)
	if err := draft.Validate(); err != nil {
		return uuid.Nil, err
	}
	path, err := writerPath(kind, fields)
	if err != nil {
		return uuid.Nil, err
	}

	var mu sync.Mutex
	var id uuid.UUID
	fn := func(ctx context.Context, c *client.ShardClient) error {
		var resp struct {
			EventID string `json:"event_id"`
		}
		var err error
		if action == types.ActionRemove {
			err = c.Delete(ctx, path, &resp)
		} else {
			err = c.Put(ctx, path, nil, &resp)
		}
		if err != nil {
			return err
		}
		parsed, err := uuid.Parse(resp.EventID)
		if err != nil {
			return fmt.Errorf("shard %s returned malformed event id %q: %w", c.URL(), resp.EventID, err)
		}
		mu.Lock()
		if id == uuid.Nil {
			id = parsed
		}
		mu.Unlock()
		return nil
	}

	if elem, keyed := draft.ElementKind(); keyed {
		err = b.router.Event(ctx, elem, hashring.Hash(draft.PrimaryKey()), fn)
	} else {
		err = b.router.BroadcastEvent(ctx, fn, broadcastKinds...)
	}
	if err != nil {
		return uuid.Nil, err
	}
	return id, nil
}

// Enumerations

func (b *RoutingBackend) GetUsers() ([]string, error) {
	return b.router.BroadcastStrings(context.Background(), "/users", types.ElementUser)
}

func (b *RoutingBackend) GetGroups() ([]string, error) {
	return b.router.BroadcastStrings(context.Background(), "/groups", types.ElementGroup)
}

func (b *RoutingBackend) GetEntityTypes() ([]string, error) {
	return b.router.BroadcastStrings(context.Background(), "/entityTypes", broadcastKinds...)
}

func (b *RoutingBackend) GetEntities(entityType string) ([]string, error) {
	path := "/entityTypes/" + url.PathEscape(entityType) + "/entities"
	return b.router.BroadcastStrings(context.Background(), path, broadcastKinds...)
}

// Membership

func (b *RoutingBackend) ContainsUser(user string) (bool, error) {
	return b.router.QueryBool(context.Background(), types.ElementUser,
		hashring.Hash(user), "/users/"+url.PathEscape(user))
}

func (b *RoutingBackend) ContainsGroup(group string) (bool, error) {
	return b.router.QueryBool(context.Background(), types.ElementGroup,
		hashring.Hash(group), "/groups/"+url.PathEscape(group))
}

func (b *RoutingBackend) ContainsEntityType(entityType string) (bool, error) {
	return b.router.BroadcastBool(context.Background(),
		"/entityTypes/"+url.PathEscape(entityType), broadcastKinds...)
}

func (b *RoutingBackend) ContainsEntity(entityType, entity string) (bool, error) {
	path := "/entityTypes/" + url.PathEscape(entityType) + "/entities/" + url.PathEscape(entity)
	return b.router.BroadcastBool(context.Background(), path, broadcastKinds...)
}

// Mappings

func (b *RoutingBackend) GetUserToGroupMappings(user string, includeIndirect bool) ([]string, error) {
	path := "/users/" + url.PathEscape(user) + "/groups" + indirectQuery(includeIndirect)
	return b.router.QueryStrings(context.Background(), types.ElementUser, hashring.Hash(user), path)
}

func (b *RoutingBackend) GetGroupToUserMappings(group string, includeIndirect bool) ([]string, error) {
	path := "/groups/" + url.PathEscape(group) + "/users" + indirectQuery(includeIndirect)
	return b.router.QueryStrings(context.Background(), types.ElementGroup, hashring.Hash(group), path)
}

func (b *RoutingBackend) GetGroupToGroupMappings(group string) ([]string, error) {
	return b.router.QueryStrings(context.Background(), types.ElementGroupToGroup,
		hashring.Hash(group), "/groupToGroupMappings/"+url.PathEscape(group))
}

// GetGroupToGroupReverseMappings broadcasts: the rows live on the shard
// of each from-group, which the to-group's hash says nothing about
func (b *RoutingBackend) GetGroupToGroupReverseMappings(group string) ([]string, error) {
	return b.router.BroadcastStrings(context.Background(),
		"/groupToGroupReverseMappings/"+url.PathEscape(group), types.ElementGroupToGroup)
}

func (b *RoutingBackend) GetUserToComponentMappings(user string) ([]types.ComponentAccess, error) {
	var out []types.ComponentAccess
	err := b.router.QueryJSON(context.Background(), types.ElementUser, hashring.Hash(user),
		"/userToApplicationComponentAndAccessLevelMappings/"+url.PathEscape(user), &out)
	return out, err
}

func (b *RoutingBackend) GetGroupToComponentMappings(group string) ([]types.ComponentAccess, error) {
	var out []types.ComponentAccess
	err := b.router.QueryJSON(context.Background(), types.ElementGroup, hashring.Hash(group),
		"/groupToApplicationComponentAndAccessLevelMappings/"+url.PathEscape(group), &out)
	return out, err
}

func (b *RoutingBackend) GetUserToEntityMappings(user, entityType string) ([]types.EntityRef, error) {
	var out []types.EntityRef
	err := b.router.QueryJSON(context.Background(), types.ElementUser, hashring.Hash(user),
		"/userToEntityMappings/"+url.PathEscape(user)+"/"+url.PathEscape(entityType), &out)
	return out, err
}

func (b *RoutingBackend) GetGroupToEntityMappings(group, entityType string) ([]types.EntityRef, error) {
	var out []types.EntityRef
	err := b.router.QueryJSON(context.Background(), types.ElementGroup, hashring.Hash(group),
		"/groupToEntityMappings/"+url.PathEscape(group)+"/"+url.PathEscape(entityType), &out)
	return out, err
}

func (b *RoutingBackend) GetEntityToUserMappings(entityType, entity string, includeIndirect bool) ([]string, error) {
	path := "/entityTypes/" + url.PathEscape(entityType) + "/entities/" + url.PathEscape(entity) +
		"/users" + indirectQuery(includeIndirect)
	return b.router.BroadcastStrings(context.Background(), path, broadcastKinds...)
}

func (b *RoutingBackend) GetEntityToGroupMappings(entityType, entity string) ([]string, error) {
	path := "/entityTypes/" + url.PathEscape(entityType) + "/entities/" + url.PathEscape(entity) + "/groups"
	return b.router.BroadcastStrings(context.Background(), path, broadcastKinds...)
}

// Decisions

func (b *RoutingBackend) HasAccessToApplicationComponent(user, component, access string) (bool, error) {
	path := "/users/" + url.PathEscape(user) + "/access/applicationComponent/" +
		url.PathEscape(component) + "/" + url.PathEscape(access)
	return b.router.QueryBool(context.Background(), types.ElementUser, hashring.Hash(user), path)
}

func (b *RoutingBackend) HasAccessToEntity(user, entityType, entity string) (bool, error) {
	path := "/users/" + url.PathEscape(user) + "/access/entity/" +
		url.PathEscape(entityType) + "/" + url.PathEscape(entity)
	return b.router.QueryBool(context.Background(), types.ElementUser, hashring.Hash(user), path)
}

func (b *RoutingBackend) GetApplicationComponentsAccessibleByUser(user string) ([]types.ComponentAccess, error) {
	var out []types.ComponentAccess
	err := b.router.QueryJSON(context.Background(), types.ElementUser, hashring.Hash(user),
		"/users/"+url.PathEscape(user)+"/accessibleApplicationComponents", &out)
	return out, err
}

func (b *RoutingBackend) GetApplicationComponentsAccessibleByGroup(group string) ([]types.ComponentAccess, error) {
	var out []types.ComponentAccess
	err := b.router.QueryJSON(context.Background(), types.ElementGroup, hashring.Hash(group),
		"/groups/"+url.PathEscape(group)+"/accessibleApplicationComponents", &out)
	return out, err
}

func (b *RoutingBackend) GetEntitiesAccessibleByUser(user, entityType string) ([]types.EntityRef, error) {
	var out []types.EntityRef
	err := b.router.QueryJSON(context.Background(), types.ElementUser, hashring.Hash(user),
		"/users/"+url.PathEscape(user)+"/accessibleEntities/"+url.PathEscape(entityType), &out)
	return out, err
}

func (b *RoutingBackend) GetEntitiesAccessibleByGroup(group, entityType string) ([]types.EntityRef, error) {
	var out []types.EntityRef
	err := b.router.QueryJSON(context.Background(), types.ElementGroup, hashring.Hash(group),
		"/groups/"+url.PathEscape(group)+"/accessibleEntities/"+url.PathEscape(entityType), &out)
	return out, err
}

// writerPath maps a writer event onto the element path its owning shard
// serves. The paths mirror the server's writer routes.
func writerPath(kind types.EventKind, fields []string) (string, error) {
	f := make([]string, len(fields))
	for i := range fields {
		f[i] = url.PathEscape(fields[i])
	}

	switch kind {
	case types.KindUser:
		return "/users/" + f[0], nil
	case types.KindGroup:
		return "/groups/" + f[0], nil
	case types.KindUserToGroup:
		return "/userToGroupMappings/" + f[0] + "/" + f[1], nil
	case types.KindGroupToGroup:
		return "/groupToGroupMappings/" + f[0] + "/" + f[1], nil
	case types.KindUserToComponent:
		return "/userToApplicationComponentAndAccessLevelMappings/" + f[0] + "/" + f[1] + "/" + f[2], nil
	case types.KindGroupToComponent:
		return "/groupToApplicationComponentAndAccessLevelMappings/" + f[0] + "/" + f[1] + "/" + f[2], nil
	case types.KindEntityType:
		return "/entityTypes/" + f[0], nil
	case types.KindEntity:
		return "/entityTypes/" + f[0] + "/entities/" + f[1], nil
	case types.KindUserToEntity:
		return "/userToEntityMappings/" + f[0] + "/" + f[1] + "/" + f[2], nil
	case types.KindGroupToEntity:
		return "/groupToEntityMappings/" + f[0] + "/" + f[1] + "/" + f[2], nil
	default:
		return "", &types.ValidationError{Field: "event_kind", Reason: fmt.Sprintf("unknown event kind %q", kind)}
	}
}

func indirectQuery(includeIndirect bool) string {
	return "?includeIndirect=" + strconv.FormatBool(includeIndirect)
}
