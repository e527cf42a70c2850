package hashring

import (
	"hash/fnv"
	"sort"

	"github.com/gatehouse/gatehouse/pkg/types"
)

// Hash maps a string key to a 32-bit hash code using FNV-1a. The function
// is deterministic across processes and versions; the same hasher is used
// for event hash codes and for shard range resolution, and hash codes are
// stored alongside events for auditability and replay.
func Hash(key string) int32 {
	h := fnv.New32a()
	h.Write([]byte(key))
	return int32(h.Sum32())
}

// rangeKey identifies one routing ring: all shard ranges registered for a
// (data element kind, operation kind) pair
type rangeKey struct {
	kind types.ElementKind
	op   types.OperationKind
}

// Ring resolves hash codes to shard configurations by range lookup. The
// hash space is treated as a sorted wrap-around ring: a shard owns
// [start, next_start), and the shard with the greatest start also covers
// the wrap-around below the smallest start.
//
// A Ring is immutable once built; reconfiguration builds a new Ring.
type Ring struct {
	ranges map[rangeKey][]types.ShardConfig // sorted ascending by HashRangeStart
}

// NewRing builds a ring from a shard configuration set. The set must have
// passed validation; an empty set yields a ring that resolves nothing.
func NewRing(set types.ShardConfigSet) *Ring {
	ranges := make(map[rangeKey][]types.ShardConfig)
	for _, cfg := range set {
		k := rangeKey{cfg.Kind, cfg.Op}
		ranges[k] = append(ranges[k], cfg)
	}
	for k := range ranges {
		rs := ranges[k]
		sort.Slice(rs, func(i, j int) bool { return rs[i].HashRangeStart < rs[j].HashRangeStart })
	}
	return &Ring{ranges: ranges}
}

// Resolve returns the shard whose hash range contains h for the given
// element and operation kind: the greatest HashRangeStart not exceeding h,
// wrapping to the greatest start when h is below the smallest.
func (r *Ring) Resolve(kind types.ElementKind, op types.OperationKind, h int32) (types.ShardConfig, error) {
	rs, ok := r.ranges[rangeKey{kind, op}]
	if !ok || len(rs) == 0 {
		return types.ShardConfig{}, &types.NotFoundError{
			Element: types.EventKind(kind),
			ID:      string(op),
		}
	}

	// First range with start > h; the owner is the one before it.
	idx := sort.Search(len(rs), func(i int) bool { return rs[i].HashRangeStart > h })
	if idx == 0 {
		// Below the smallest start: wrap around to the greatest start.
		return rs[len(rs)-1], nil
	}
	return rs[idx-1], nil
}

// All returns every shard configuration registered for the given element
// and operation kind, in range order. Used for fan-out queries with no
// hashable key.
func (r *Ring) All(kind types.ElementKind, op types.OperationKind) []types.ShardConfig {
	rs := r.ranges[rangeKey{kind, op}]
	out := make([]types.ShardConfig, len(rs))
	copy(out, rs)
	return out
}

// Kinds returns the element kinds that have at least one range registered
// for the given operation kind
func (r *Ring) Kinds(op types.OperationKind) []types.ElementKind {
	seen := make(map[types.ElementKind]bool)
	var kinds []types.ElementKind
	for k := range r.ranges {
		if k.op == op && !seen[k.kind] {
			seen[k.kind] = true
			kinds = append(kinds, k.kind)
		}
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}
