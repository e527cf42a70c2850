/*
Package api serves the service's HTTP surface.

# Architecture

Handlers speak JSON and run against a Backend: the operation surface a
shard exposes. The local backend wires this instance's buffer, store,
processor and cache together; writer requests return as soon as the
buffer accepts the event, with durability following on the next flush.
With shards configured, the routing backend wraps the local one and
dispatches element operations through the operation router instead,
while bulk ingestion and the cache feed stay local so peers can deliver
events to this instance directly.

	PUT /users/alice ──► Backend.SubmitEvent ──► buffer ──► store
	GET /users/alice ──► Backend.ContainsUser ──► store
	POST /events     ──► Backend.ProcessEvents ──► store + cache

	routed: PUT /users/alice ──► router ──► owning shard(s) over HTTP

# Status Mapping

	201  create accepted
	200  remove accepted, query answered
	404  element not found
	409  conflict (duplicate id, duplicate element, retrograde time)
	400  malformed request or event
	503  trip switch set
	500  anything else

Predicate endpoints (contains, has-access) always answer 200 with a
bare JSON boolean, so shard results can be OR-merged by the router
without distinguishing absent from false.

# Control Plane

Routing toggles, the pause gate, the dual-routing window, atomic shard
reconfiguration and the trip-switch reset live under PUT /routing/*,
PUT /routingWindow, PUT /shardConfiguration and PUT /tripSwitch/reset.

# Integration Points

  - pkg/buffer, pkg/processor, pkg/cache, pkg/store behind the local Backend
  - pkg/router and pkg/client behind the control plane
  - pkg/metrics serves GET /metrics and the request instrumentation
*/
package api
