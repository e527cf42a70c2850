/*
Package router dispatches operations across shards, including the
dual-routing window used for online re-sharding.

# Architecture

With routing off, an operation's key hash resolves through the
configured ring to exactly one shard. With routing on, the window's
ranges decide:

	hash ∈ source \ target  →  source shard
	hash ∈ target \ source  →  migration target
	hash ∈ source ∩ target  →  both shards

Events in the overlap must succeed on both shards; a failure on either
fails the operation, keeping the shards mutually consistent during the
copy. Enumeration queries union and de-duplicate results across the
overlap; predicate queries combine with logical OR. Operations with no
hashable key broadcast to every shard of the relevant kinds.

# Pause Gate

Pause blocks new dispatches on a channel gate rather than failing them,
giving migrations a quiet cut-over point; Resume releases every waiter.
Waits are bounded by each operation's context deadline.
*/
package router
