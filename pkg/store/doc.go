/*
Package store provides temporal persistence for authorization elements
using BoltDB as the backing store.

# Architecture

The store follows a bitemporal design: rows are never deleted. Every
element and mapping is a row with a transaction time interval; an add
opens a row with an open-ended transaction_to, a remove closes it by
setting transaction_to to the remove's occurred time minus one
nanosecond. Queries evaluate liveness at the moment of the call, so the
full history stays available for audit and replay.

	┌────────────────────────────────────────────────┐
	│                   BoltStore                    │
	│                                                │
	│  Element tables         Relation tables        │
	│  ┌──────────────┐       ┌───────────────────┐  │
	│  │ users        │◄──────│ user_to_group     │  │
	│  │ groups       │◄──────│ group_to_group    │  │
	│  │ entity_types │◄──┐   │ user_to_component │  │
	│  │ entities     │◄──┴───│ group_to_entity   │  │
	│  └──────────────┘       └───────────────────┘  │
	│                                                │
	│  event_index: event id → transaction time      │
	│  event_to_*_map: event id → row id audit       │
	│  meta: max transaction time watermark          │
	└────────────────────────────────────────────────┘

# Write Path

Every event applies in a single BoltDB transaction:

 1. Duplicate event id check against event_index
 2. Retrograde check against the max transaction time watermark
 3. Parent existence checks and the row insert or cascade close
 4. event_index and audit writes, watermark update

Removes cascade: dependent relation rows are invalidated before the
element's own row, and the transaction verifies afterwards that no live
row still references the removed element. A surviving reference means
corrupt history and surfaces as a FatalError.

Application components and access levels are auto-created on first use
inside the granting transaction; all other parents must already exist.

# Integration Points

  - pkg/buffer calls the per-kind writer operations for buffered events
  - pkg/processor calls ApplyEvents for ordered bulk batches
  - pkg/api serves the read queries from this package

Transient failures (deadlock, timeout) retry with exponential backoff
under the configured RetryPolicy.
*/
package store
