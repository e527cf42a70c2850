/*
Package client manages connections to remote shards.

# Architecture

Each shard is another instance of this service, addressed by base URL
and spoken to in JSON over HTTP. The Manager owns the shard
configuration as one immutable value: a reconfiguration validates the
incoming set, rebuilds the hash ring, and swaps both under the lock, so
a resolution never observes a half-replaced set.

	GetClient(kind, op, hash)
	        │
	        ▼
	  hashring.Resolve ──► shard URL ──► lazy ShardClient cache
	                                          │
	                                          ▼
	                                 HTTP + JSON, 5s deadline

# Error Mapping

Remote status codes translate back into the local error taxonomy
(404 NotFound, 409 Conflict, 400 Validation, 503 Unavailable), so the
router's callers handle remote and local failures identically. Network
failures surface as TransientError; GETs retry those with exponential
backoff, writes never retry.

# Integration Points

  - pkg/router resolves clients here for every routed operation
  - pkg/hashring supplies the range resolution
  - the shard configuration control endpoint calls Reconfigure
*/
package client
