package store

import (
	"encoding/json"
	"sort"
	"time"

	"github.com/gatehouse/gatehouse/pkg/types"
	bolt "go.etcd.io/bbolt"
)

// Queries evaluate liveness at the moment of the call. Rows closed by a
// remove are invisible; history stays in the table for History and audit.

// eachLive calls fn for every row in bucket that is live at the given
// instant
func eachLive(tx *bolt.Tx, bucket []byte, at time.Time, fn func(Row)) error {
	c := tx.Bucket(bucket).Cursor()
	for k, v := c.First(); k != nil; k, v = c.Next() {
		var row Row
		if err := json.Unmarshal(v, &row); err != nil {
			return err
		}
		if row.LiveAt(at) {
			fn(row)
		}
	}
	return nil
}

func (s *BoltStore) enumerate(bucket []byte) ([]string, error) {
	var out []string
	now := time.Now()
	err := s.db.View(func(tx *bolt.Tx) error {
		return eachLive(tx, bucket, now, func(row Row) {
			out = append(out, row.Keys[0])
		})
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(out)
	return out, nil
}

// GetUsers returns all live users
func (s *BoltStore) GetUsers() ([]string, error) {
	return s.enumerate(bucketUsers)
}

// GetGroups returns all live groups
func (s *BoltStore) GetGroups() ([]string, error) {
	return s.enumerate(bucketGroups)
}

// GetEntityTypes returns all live entity types
func (s *BoltStore) GetEntityTypes() ([]string, error) {
	return s.enumerate(bucketEntityTypes)
}

// GetEntities returns all live entities of the given type
func (s *BoltStore) GetEntities(entityType string) ([]string, error) {
	var out []string
	now := time.Now()
	err := s.db.View(func(tx *bolt.Tx) error {
		if err := s.requireLive(tx, types.KindEntityType, now, entityType); err != nil {
			return err
		}
		return eachLive(tx, bucketEntities, now, func(row Row) {
			if row.Keys[0] == entityType {
				out = append(out, row.Keys[1])
			}
		})
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(out)
	return out, nil
}

func (s *BoltStore) contains(kind types.EventKind, keys ...string) (bool, error) {
	found := false
	now := time.Now()
	err := s.db.View(func(tx *bolt.Tx) error {
		row, _, err := s.findLive(tx, elementBuckets[kind], now, keys...)
		if err != nil {
			return err
		}
		found = row != nil
		return nil
	})
	return found, err
}

func (s *BoltStore) ContainsUser(user string) (bool, error) {
	return s.contains(types.KindUser, user)
}

func (s *BoltStore) ContainsGroup(group string) (bool, error) {
	return s.contains(types.KindGroup, group)
}

func (s *BoltStore) ContainsEntityType(entityType string) (bool, error) {
	return s.contains(types.KindEntityType, entityType)
}

func (s *BoltStore) ContainsEntity(entityType, entity string) (bool, error) {
	return s.contains(types.KindEntity, entityType, entity)
}

// groupClosure expands a starting set of groups along live group-to-group
// mappings from their from side. Members of a from group inherit the to
// group's grants, transitively. The result includes the starting groups.
func groupClosure(tx *bolt.Tx, at time.Time, start []string) (map[string]bool, error) {
	// Build the from -> to adjacency once; closures walk it repeatedly
	edges := make(map[string][]string)
	err := eachLive(tx, bucketGroupToGroup, at, func(row Row) {
		edges[row.Keys[0]] = append(edges[row.Keys[0]], row.Keys[1])
	})
	if err != nil {
		return nil, err
	}

	visited := make(map[string]bool)
	stack := append([]string(nil), start...)
	for len(stack) > 0 {
		g := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if visited[g] {
			continue
		}
		visited[g] = true
		stack = append(stack, edges[g]...)
	}
	return visited, nil
}

// reverseGroupClosure finds every group from which at least one of the
// target groups is reachable, including the targets themselves
func reverseGroupClosure(tx *bolt.Tx, at time.Time, targets []string) (map[string]bool, error) {
	reverse := make(map[string][]string)
	err := eachLive(tx, bucketGroupToGroup, at, func(row Row) {
		reverse[row.Keys[1]] = append(reverse[row.Keys[1]], row.Keys[0])
	})
	if err != nil {
		return nil, err
	}

	visited := make(map[string]bool)
	stack := append([]string(nil), targets...)
	for len(stack) > 0 {
		g := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if visited[g] {
			continue
		}
		visited[g] = true
		stack = append(stack, reverse[g]...)
	}
	return visited, nil
}

// directGroupsOf returns the groups the user is directly mapped into
func directGroupsOf(tx *bolt.Tx, at time.Time, user string) ([]string, error) {
	var groups []string
	err := eachLive(tx, bucketUserToGroup, at, func(row Row) {
		if row.Keys[0] == user {
			groups = append(groups, row.Keys[1])
		}
	})
	return groups, err
}

// GetUserToGroupMappings returns the groups the user belongs to. With
// includeIndirect set, groups inherited through group-to-group mappings
// are included as well.
func (s *BoltStore) GetUserToGroupMappings(user string, includeIndirect bool) ([]string, error) {
	var out []string
	now := time.Now()
	err := s.db.View(func(tx *bolt.Tx) error {
		if err := s.requireLive(tx, types.KindUser, now, user); err != nil {
			return err
		}
		direct, err := directGroupsOf(tx, now, user)
		if err != nil {
			return err
		}
		if !includeIndirect {
			out = direct
			return nil
		}
		closure, err := groupClosure(tx, now, direct)
		if err != nil {
			return err
		}
		for g := range closure {
			out = append(out, g)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(out)
	return dedupStrings(out), nil
}

// GetGroupToUserMappings returns the users belonging to the group. With
// includeIndirect set, members of groups that inherit this group's grants
// are included as well.
func (s *BoltStore) GetGroupToUserMappings(group string, includeIndirect bool) ([]string, error) {
	var out []string
	now := time.Now()
	err := s.db.View(func(tx *bolt.Tx) error {
		if err := s.requireLive(tx, types.KindGroup, now, group); err != nil {
			return err
		}

		memberOf := map[string]bool{group: true}
		if includeIndirect {
			var err error
			memberOf, err = reverseGroupClosure(tx, now, []string{group})
			if err != nil {
				return err
			}
		}

		return eachLive(tx, bucketUserToGroup, now, func(row Row) {
			if memberOf[row.Keys[1]] {
				out = append(out, row.Keys[0])
			}
		})
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(out)
	return dedupStrings(out), nil
}

// GetGroupToGroupMappings returns the groups this group maps to
func (s *BoltStore) GetGroupToGroupMappings(group string) ([]string, error) {
	return s.groupEdges(group, 0, 1)
}

// GetGroupToGroupReverseMappings returns the groups mapping to this group
func (s *BoltStore) GetGroupToGroupReverseMappings(group string) ([]string, error) {
	return s.groupEdges(group, 1, 0)
}

func (s *BoltStore) groupEdges(group string, matchPos, takePos int) ([]string, error) {
	var out []string
	now := time.Now()
	err := s.db.View(func(tx *bolt.Tx) error {
		if err := s.requireLive(tx, types.KindGroup, now, group); err != nil {
			return err
		}
		return eachLive(tx, bucketGroupToGroup, now, func(row Row) {
			if row.Keys[matchPos] == group {
				out = append(out, row.Keys[takePos])
			}
		})
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(out)
	return dedupStrings(out), nil
}

// GetUserToComponentMappings returns the user's direct component grants
func (s *BoltStore) GetUserToComponentMappings(user string) ([]types.ComponentAccess, error) {
	var out []types.ComponentAccess
	now := time.Now()
	err := s.db.View(func(tx *bolt.Tx) error {
		if err := s.requireLive(tx, types.KindUser, now, user); err != nil {
			return err
		}
		return eachLive(tx, bucketUserToComponent, now, func(row Row) {
			if row.Keys[0] == user {
				out = append(out, types.ComponentAccess{Component: row.Keys[1], AccessLevel: row.Keys[2]})
			}
		})
	})
	if err != nil {
		return nil, err
	}
	return sortComponentAccess(out), nil
}

// GetGroupToComponentMappings returns the group's direct component grants
func (s *BoltStore) GetGroupToComponentMappings(group string) ([]types.ComponentAccess, error) {
	var out []types.ComponentAccess
	now := time.Now()
	err := s.db.View(func(tx *bolt.Tx) error {
		if err := s.requireLive(tx, types.KindGroup, now, group); err != nil {
			return err
		}
		return eachLive(tx, bucketGroupToComponent, now, func(row Row) {
			if row.Keys[0] == group {
				out = append(out, types.ComponentAccess{Component: row.Keys[1], AccessLevel: row.Keys[2]})
			}
		})
	})
	if err != nil {
		return nil, err
	}
	return sortComponentAccess(out), nil
}

// GetUserToEntityMappings returns the user's direct entity grants within
// the entity type. An empty entity type matches all types.
func (s *BoltStore) GetUserToEntityMappings(user, entityType string) ([]types.EntityRef, error) {
	var out []types.EntityRef
	now := time.Now()
	err := s.db.View(func(tx *bolt.Tx) error {
		if err := s.requireLive(tx, types.KindUser, now, user); err != nil {
			return err
		}
		return eachLive(tx, bucketUserToEntity, now, func(row Row) {
			if row.Keys[0] == user && (entityType == "" || row.Keys[1] == entityType) {
				out = append(out, types.EntityRef{Type: row.Keys[1], Entity: row.Keys[2]})
			}
		})
	})
	if err != nil {
		return nil, err
	}
	return sortEntityRefs(out), nil
}

// GetGroupToEntityMappings returns the group's direct entity grants within
// the entity type. An empty entity type matches all types.
func (s *BoltStore) GetGroupToEntityMappings(group, entityType string) ([]types.EntityRef, error) {
	var out []types.EntityRef
	now := time.Now()
	err := s.db.View(func(tx *bolt.Tx) error {
		if err := s.requireLive(tx, types.KindGroup, now, group); err != nil {
			return err
		}
		return eachLive(tx, bucketGroupToEntity, now, func(row Row) {
			if row.Keys[0] == group && (entityType == "" || row.Keys[1] == entityType) {
				out = append(out, types.EntityRef{Type: row.Keys[1], Entity: row.Keys[2]})
			}
		})
	})
	if err != nil {
		return nil, err
	}
	return sortEntityRefs(out), nil
}

// GetEntityToUserMappings returns the users granted the entity. With
// includeIndirect set, users reaching it through group membership and
// group-to-group inheritance are included.
func (s *BoltStore) GetEntityToUserMappings(entityType, entity string, includeIndirect bool) ([]string, error) {
	var out []string
	now := time.Now()
	err := s.db.View(func(tx *bolt.Tx) error {
		if err := s.requireLive(tx, types.KindEntity, now, entityType, entity); err != nil {
			return err
		}

		if err := eachLive(tx, bucketUserToEntity, now, func(row Row) {
			if row.Keys[1] == entityType && row.Keys[2] == entity {
				out = append(out, row.Keys[0])
			}
		}); err != nil {
			return err
		}
		if !includeIndirect {
			return nil
		}

		// Groups directly granted the entity, then every group from which
		// one of those is reachable, then their direct members
		var granted []string
		if err := eachLive(tx, bucketGroupToEntity, now, func(row Row) {
			if row.Keys[1] == entityType && row.Keys[2] == entity {
				granted = append(granted, row.Keys[0])
			}
		}); err != nil {
			return err
		}
		reaching, err := reverseGroupClosure(tx, now, granted)
		if err != nil {
			return err
		}
		return eachLive(tx, bucketUserToGroup, now, func(row Row) {
			if reaching[row.Keys[1]] {
				out = append(out, row.Keys[0])
			}
		})
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(out)
	return dedupStrings(out), nil
}

// GetEntityToGroupMappings returns the groups directly granted the entity
func (s *BoltStore) GetEntityToGroupMappings(entityType, entity string) ([]string, error) {
	var out []string
	now := time.Now()
	err := s.db.View(func(tx *bolt.Tx) error {
		if err := s.requireLive(tx, types.KindEntity, now, entityType, entity); err != nil {
			return err
		}
		return eachLive(tx, bucketGroupToEntity, now, func(row Row) {
			if row.Keys[1] == entityType && row.Keys[2] == entity {
				out = append(out, row.Keys[0])
			}
		})
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(out)
	return dedupStrings(out), nil
}

// effectiveGroupsOf returns the closure of the user's group memberships
func effectiveGroupsOf(tx *bolt.Tx, at time.Time, user string) (map[string]bool, error) {
	direct, err := directGroupsOf(tx, at, user)
	if err != nil {
		return nil, err
	}
	return groupClosure(tx, at, direct)
}

// HasAccessToApplicationComponent reports whether the user holds the
// access level on the component, directly or through group membership
func (s *BoltStore) HasAccessToApplicationComponent(user, component, access string) (bool, error) {
	has := false
	now := time.Now()
	err := s.db.View(func(tx *bolt.Tx) error {
		if err := s.requireLive(tx, types.KindUser, now, user); err != nil {
			return err
		}
		groups, err := effectiveGroupsOf(tx, now, user)
		if err != nil {
			return err
		}

		if err := eachLive(tx, bucketUserToComponent, now, func(row Row) {
			if row.Keys[0] == user && row.Keys[1] == component && row.Keys[2] == access {
				has = true
			}
		}); err != nil {
			return err
		}
		if has {
			return nil
		}
		return eachLive(tx, bucketGroupToComponent, now, func(row Row) {
			if groups[row.Keys[0]] && row.Keys[1] == component && row.Keys[2] == access {
				has = true
			}
		})
	})
	return has, err
}

// HasAccessToEntity reports whether the user is granted the entity,
// directly or through group membership
func (s *BoltStore) HasAccessToEntity(user, entityType, entity string) (bool, error) {
	has := false
	now := time.Now()
	err := s.db.View(func(tx *bolt.Tx) error {
		if err := s.requireLive(tx, types.KindUser, now, user); err != nil {
			return err
		}
		groups, err := effectiveGroupsOf(tx, now, user)
		if err != nil {
			return err
		}

		if err := eachLive(tx, bucketUserToEntity, now, func(row Row) {
			if row.Keys[0] == user && row.Keys[1] == entityType && row.Keys[2] == entity {
				has = true
			}
		}); err != nil {
			return err
		}
		if has {
			return nil
		}
		return eachLive(tx, bucketGroupToEntity, now, func(row Row) {
			if groups[row.Keys[0]] && row.Keys[1] == entityType && row.Keys[2] == entity {
				has = true
			}
		})
	})
	return has, err
}

// GetApplicationComponentsAccessibleByUser returns every component grant
// the user holds, directly or through group membership
func (s *BoltStore) GetApplicationComponentsAccessibleByUser(user string) ([]types.ComponentAccess, error) {
	var out []types.ComponentAccess
	now := time.Now()
	err := s.db.View(func(tx *bolt.Tx) error {
		if err := s.requireLive(tx, types.KindUser, now, user); err != nil {
			return err
		}
		groups, err := effectiveGroupsOf(tx, now, user)
		if err != nil {
			return err
		}

		if err := eachLive(tx, bucketUserToComponent, now, func(row Row) {
			if row.Keys[0] == user {
				out = append(out, types.ComponentAccess{Component: row.Keys[1], AccessLevel: row.Keys[2]})
			}
		}); err != nil {
			return err
		}
		return eachLive(tx, bucketGroupToComponent, now, func(row Row) {
			if groups[row.Keys[0]] {
				out = append(out, types.ComponentAccess{Component: row.Keys[1], AccessLevel: row.Keys[2]})
			}
		})
	})
	if err != nil {
		return nil, err
	}
	return sortComponentAccess(out), nil
}

// GetApplicationComponentsAccessibleByGroup returns every component grant
// the group holds, including grants inherited through group-to-group
// mappings
func (s *BoltStore) GetApplicationComponentsAccessibleByGroup(group string) ([]types.ComponentAccess, error) {
	var out []types.ComponentAccess
	now := time.Now()
	err := s.db.View(func(tx *bolt.Tx) error {
		if err := s.requireLive(tx, types.KindGroup, now, group); err != nil {
			return err
		}
		groups, err := groupClosure(tx, now, []string{group})
		if err != nil {
			return err
		}
		return eachLive(tx, bucketGroupToComponent, now, func(row Row) {
			if groups[row.Keys[0]] {
				out = append(out, types.ComponentAccess{Component: row.Keys[1], AccessLevel: row.Keys[2]})
			}
		})
	})
	if err != nil {
		return nil, err
	}
	return sortComponentAccess(out), nil
}

// GetEntitiesAccessibleByUser returns every entity of the type the user is
// granted, directly or through group membership
func (s *BoltStore) GetEntitiesAccessibleByUser(user, entityType string) ([]types.EntityRef, error) {
	var out []types.EntityRef
	now := time.Now()
	err := s.db.View(func(tx *bolt.Tx) error {
		if err := s.requireLive(tx, types.KindUser, now, user); err != nil {
			return err
		}
		groups, err := effectiveGroupsOf(tx, now, user)
		if err != nil {
			return err
		}

		if err := eachLive(tx, bucketUserToEntity, now, func(row Row) {
			if row.Keys[0] == user && (entityType == "" || row.Keys[1] == entityType) {
				out = append(out, types.EntityRef{Type: row.Keys[1], Entity: row.Keys[2]})
			}
		}); err != nil {
			return err
		}
		return eachLive(tx, bucketGroupToEntity, now, func(row Row) {
			if groups[row.Keys[0]] && (entityType == "" || row.Keys[1] == entityType) {
				out = append(out, types.EntityRef{Type: row.Keys[1], Entity: row.Keys[2]})
			}
		})
	})
	if err != nil {
		return nil, err
	}
	return sortEntityRefs(out), nil
}

// GetEntitiesAccessibleByGroup returns every entity of the type the group
// is granted, including grants inherited through group-to-group mappings
func (s *BoltStore) GetEntitiesAccessibleByGroup(group, entityType string) ([]types.EntityRef, error) {
	var out []types.EntityRef
	now := time.Now()
	err := s.db.View(func(tx *bolt.Tx) error {
		if err := s.requireLive(tx, types.KindGroup, now, group); err != nil {
			return err
		}
		groups, err := groupClosure(tx, now, []string{group})
		if err != nil {
			return err
		}
		return eachLive(tx, bucketGroupToEntity, now, func(row Row) {
			if groups[row.Keys[0]] && (entityType == "" || row.Keys[1] == entityType) {
				out = append(out, types.EntityRef{Type: row.Keys[1], Entity: row.Keys[2]})
			}
		})
	})
	if err != nil {
		return nil, err
	}
	return sortEntityRefs(out), nil
}

func dedupStrings(sorted []string) []string {
	out := sorted[:0]
	for i, s := range sorted {
		if i == 0 || s != sorted[i-1] {
			out = append(out, s)
		}
	}
	return out
}

func sortComponentAccess(in []types.ComponentAccess) []types.ComponentAccess {
	sort.Slice(in, func(i, j int) bool {
		if in[i].Component != in[j].Component {
			return in[i].Component < in[j].Component
		}
		return in[i].AccessLevel < in[j].AccessLevel
	})
	out := in[:0]
	for i, ca := range in {
		if i == 0 || ca != in[i-1] {
			out = append(out, ca)
		}
	}
	return out
}

func sortEntityRefs(in []types.EntityRef) []types.EntityRef {
	sort.Slice(in, func(i, j int) bool {
		if in[i].Type != in[j].Type {
			return in[i].Type < in[j].Type
		}
		return in[i].Entity < in[j].Entity
	})
	out := in[:0]
	for i, ref := range in {
		if i == 0 || ref != in[i-1] {
			out = append(out, ref)
		}
	}
	return out
}
