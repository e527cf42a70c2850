/*
Package hashring maps element keys to shards by deterministic hashing and
range lookup.

Hash is FNV-1a reduced to 32 bits. Every event for a keyed element carries
the hash of its primary key (user, group, or entity type); the same value
drives shard routing and is persisted for auditability and replay, so the
function must never change.

Ring treats the 32-bit hash space as a sorted wrap-around ring per
(data element kind, operation kind) pair. A shard owns [start, next_start);
the shard with the greatest start also covers the wrap-around below the
smallest start. Rings are immutable; reconfiguration builds a new one.

	ring := hashring.NewRing(set)
	cfg, err := ring.Resolve(types.ElementUser, types.OpEvent, hashring.Hash("alice"))
*/
package hashring
