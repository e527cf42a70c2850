package types

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventValidate(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name    string
		event   *Event
		wantErr bool
	}{
		{
			name:    "valid user event",
			event:   NewEvent(uuid.New(), KindUser, ActionAdd, now, 42, "alice"),
			wantErr: false,
		},
		{
			name:    "valid three field mapping",
			event:   NewEvent(uuid.New(), KindUserToComponent, ActionAdd, now, 42, "alice", "Orders", "View"),
			wantErr: false,
		},
		{
			name:    "unknown kind",
			event:   NewEvent(uuid.New(), EventKind("widget"), ActionAdd, now, 0, "x"),
			wantErr: true,
		},
		{
			name:    "unknown action",
			event:   NewEvent(uuid.New(), KindUser, EventAction("upsert"), now, 0, "x"),
			wantErr: true,
		},
		{
			name:    "too few fields",
			event:   NewEvent(uuid.New(), KindUserToGroup, ActionAdd, now, 0, "alice"),
			wantErr: true,
		},
		{
			name:    "too many fields",
			event:   NewEvent(uuid.New(), KindGroup, ActionRemove, now, 0, "g", "extra"),
			wantErr: true,
		},
		{
			name:    "empty field",
			event:   NewEvent(uuid.New(), KindUserToGroup, ActionAdd, now, 0, "alice", ""),
			wantErr: true,
		},
		{
			name:    "nil event id",
			event:   NewEvent(uuid.Nil, KindUser, ActionAdd, now, 0, "alice"),
			wantErr: true,
		},
		{
			name:    "zero occurred time",
			event:   NewEvent(uuid.New(), KindUser, ActionAdd, time.Time{}, 0, "alice"),
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.event.Validate()
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, IsValidation(err))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestEventElementKind(t *testing.T) {
	tests := []struct {
		kind    EventKind
		element ElementKind
		keyed   bool
	}{
		{KindUser, ElementUser, true},
		{KindUserToGroup, ElementUser, true},
		{KindUserToComponent, ElementUser, true},
		{KindUserToEntity, ElementUser, true},
		{KindGroup, ElementGroup, true},
		{KindGroupToComponent, ElementGroup, true},
		{KindGroupToEntity, ElementGroup, true},
		{KindGroupToGroup, ElementGroupToGroup, true},
		{KindEntityType, "", false},
		{KindEntity, "", false},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			e := &Event{Kind: tt.kind}
			element, keyed := e.ElementKind()
			assert.Equal(t, tt.keyed, keyed)
			if tt.keyed {
				assert.Equal(t, tt.element, element)
			}
		})
	}
}

func TestEventPrimaryKey(t *testing.T) {
	e := NewEvent(uuid.New(), KindUserToEntity, ActionAdd, time.Now(), 0, "bob", "clients", "acme")
	assert.Equal(t, "bob", e.PrimaryKey())

	empty := &Event{}
	assert.Equal(t, "", empty.PrimaryKey())
}

func TestShardConfigSetValidate(t *testing.T) {
	valid := ShardConfigSet{
		{Kind: ElementUser, Op: OpQuery, HashRangeStart: 0, URL: "http://shard0:5001"},
		{Kind: ElementUser, Op: OpQuery, HashRangeStart: 1 << 30, URL: "http://shard1:5001"},
		{Kind: ElementUser, Op: OpEvent, HashRangeStart: 0, URL: "http://shard0:5001"},
	}
	assert.NoError(t, valid.Validate())

	dup := ShardConfigSet{
		{Kind: ElementGroup, Op: OpEvent, HashRangeStart: 7, URL: "http://a:5001"},
		{Kind: ElementGroup, Op: OpEvent, HashRangeStart: 7, URL: "http://b:5001"},
	}
	err := dup.Validate()
	require.Error(t, err)
	assert.True(t, IsValidation(err))

	missing := ShardConfigSet{{Kind: ElementUser, Op: OpQuery, URL: ""}}
	assert.Error(t, missing.Validate())

	badKind := ShardConfigSet{{Kind: ElementKind("tenant"), Op: OpQuery, URL: "http://a"}}
	assert.Error(t, badKind.Validate())
}

func TestErrorTaxonomy(t *testing.T) {
	t.Run("not found", func(t *testing.T) {
		err := fmt.Errorf("apply: %w", &NotFoundError{Element: KindUser, ID: "alice"})
		assert.True(t, IsNotFound(err))
		assert.False(t, IsConflict(err))
		assert.Contains(t, err.Error(), "alice")
	})

	t.Run("conflict", func(t *testing.T) {
		err := &ConflictError{Element: KindGroup, ID: "admins", Reason: "already exists"}
		assert.True(t, IsConflict(err))
		assert.Contains(t, err.Error(), "admins")
	})

	t.Run("transient unwraps", func(t *testing.T) {
		cause := errors.New("i/o timeout")
		err := &TransientError{Op: "shard call", Err: cause}
		assert.True(t, IsTransient(err))
		assert.ErrorIs(t, err, cause)
	})

	t.Run("unavailable", func(t *testing.T) {
		err := &UnavailableError{}
		assert.True(t, IsUnavailable(err))
		assert.Contains(t, err.Error(), "trip switch")
	})

	t.Run("fatal unwraps", func(t *testing.T) {
		cause := errors.New("dangling relation")
		err := &FatalError{Reason: "cascade incomplete", Err: cause}
		assert.True(t, IsFatal(err))
		assert.ErrorIs(t, err, cause)
	})
}
