/*
Package buffer decouples event acceptance from event persistence.

# Architecture

Writer requests enqueue events and return immediately; a background loop
flushes the queue to the store on an interval, and an Append that fills
the buffer to its size limit flushes inline before returning.

	Append ──► pending queue ──► flush ──► store.ApplyEvents
	              │                 │
	              │ size trigger    │ interval ticker
	              └─────────────────┘

Each accepted event is stamped with a fresh id, a hash code derived from
its primary key, and an occurred time from a monotone clock: times never
repeat or retreat, even when the wall clock does, so the store's ordering
invariant holds for everything this buffer emits.

# Failure Handling

A batch the store rejects for a caller mistake (duplicate add, remove of
a missing element, mapping without live parents) is replayed one event at
a time and the offending events are dropped with an error log; the rest
of the batch persists. A persistence failure is different: the unapplied
events are requeued, the shared trip switch is set, and every subsequent
Append is refused until an operator resets the switch. Events accepted
before the failure remain queued and are not lost.

# Integration Points

  - pkg/api appends writer events through this package
  - pkg/store persists flushed batches transactionally
  - pkg/metrics owns the trip switch and the flush instrumentation
*/
package buffer
