package hashring

import (
	"hash/fnv"
	"testing"

	"github.com/gatehouse/gatehouse/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestHashDeterminism verifies the hasher produces stable, documented
// values. These constants must never change: hash codes are persisted
// with events and drive shard placement.
func TestHashDeterminism(t *testing.T) {
	tests := []struct {
		key string
	}{
		{"alice"},
		{"bob"},
		{"admins"},
		{"clients"},
		{""},
		{"user-with-long-name-0123456789"},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			// Recompute with a fresh FNV-1a instance; Hash must agree.
			h := fnv.New32a()
			h.Write([]byte(tt.key))
			want := int32(h.Sum32())

			assert.Equal(t, want, Hash(tt.key))
			// Stable across repeated calls
			assert.Equal(t, Hash(tt.key), Hash(tt.key))
		})
	}
}

func TestHashDistribution(t *testing.T) {
	// Different keys should not trivially collide
	seen := make(map[int32]string)
	keys := []string{"a", "b", "c", "user1", "user2", "group1", "group2", "orders", "invoices"}
	for _, k := range keys {
		h := Hash(k)
		prev, collision := seen[h]
		require.False(t, collision, "hash collision between %q and %q", k, prev)
		seen[h] = k
	}
}

func ringSet() types.ShardConfigSet {
	return types.ShardConfigSet{
		{Kind: types.ElementUser, Op: types.OpQuery, HashRangeStart: -1 << 31, URL: "http://user-q0"},
		{Kind: types.ElementUser, Op: types.OpQuery, HashRangeStart: 0, URL: "http://user-q1"},
		{Kind: types.ElementUser, Op: types.OpQuery, HashRangeStart: 1 << 30, URL: "http://user-q2"},
		{Kind: types.ElementUser, Op: types.OpEvent, HashRangeStart: 0, URL: "http://user-e0"},
		{Kind: types.ElementGroup, Op: types.OpEvent, HashRangeStart: 100, URL: "http://group-e0"},
		{Kind: types.ElementGroup, Op: types.OpEvent, HashRangeStart: 2000, URL: "http://group-e1"},
	}
}

func TestRingResolve(t *testing.T) {
	ring := NewRing(ringSet())

	tests := []struct {
		name    string
		kind    types.ElementKind
		op      types.OperationKind
		hash    int32
		wantURL string
	}{
		{"lowest range start", types.ElementUser, types.OpQuery, -1 << 31, "http://user-q0"},
		{"inside first range", types.ElementUser, types.OpQuery, -5, "http://user-q0"},
		{"exact range boundary", types.ElementUser, types.OpQuery, 0, "http://user-q1"},
		{"inside middle range", types.ElementUser, types.OpQuery, 12345, "http://user-q1"},
		{"greatest start covers top", types.ElementUser, types.OpQuery, 1<<31 - 1, "http://user-q2"},
		{"group events mid range", types.ElementGroup, types.OpEvent, 150, "http://group-e0"},
		{"group events second range", types.ElementGroup, types.OpEvent, 3000, "http://group-e1"},
		{"wrap-around below smallest start", types.ElementGroup, types.OpEvent, 50, "http://group-e1"},
		{"wrap-around negative hash", types.ElementGroup, types.OpEvent, -100, "http://group-e1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := ring.Resolve(tt.kind, tt.op, tt.hash)
			require.NoError(t, err)
			assert.Equal(t, tt.wantURL, cfg.URL)
		})
	}
}

func TestRingResolveUnknownKind(t *testing.T) {
	ring := NewRing(ringSet())

	_, err := ring.Resolve(types.ElementGroupToGroup, types.OpQuery, 0)
	require.Error(t, err)
	assert.True(t, types.IsNotFound(err))
}

func TestRingResolveSingleShard(t *testing.T) {
	ring := NewRing(types.ShardConfigSet{
		{Kind: types.ElementUser, Op: types.OpEvent, HashRangeStart: 500, URL: "http://only"},
	})

	// A single shard owns the entire ring, including hashes below its start
	for _, h := range []int32{-1 << 31, -1, 0, 499, 500, 501, 1<<31 - 1} {
		cfg, err := ring.Resolve(types.ElementUser, types.OpEvent, h)
		require.NoError(t, err)
		assert.Equal(t, "http://only", cfg.URL)
	}
}

func TestRingAll(t *testing.T) {
	ring := NewRing(ringSet())

	all := ring.All(types.ElementUser, types.OpQuery)
	require.Len(t, all, 3)
	// Returned in range order
	assert.Equal(t, "http://user-q0", all[0].URL)
	assert.Equal(t, "http://user-q2", all[2].URL)

	assert.Empty(t, ring.All(types.ElementGroupToGroup, types.OpQuery))
}

func TestRingKinds(t *testing.T) {
	ring := NewRing(ringSet())

	kinds := ring.Kinds(types.OpEvent)
	assert.Equal(t, []types.ElementKind{types.ElementGroup, types.ElementUser}, kinds)

	queryKinds := ring.Kinds(types.OpQuery)
	assert.Equal(t, []types.ElementKind{types.ElementUser}, queryKinds)
}
