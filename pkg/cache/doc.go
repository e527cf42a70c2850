/*
Package cache keeps a bounded, ordered window of recently persisted
events so downstream consumers can poll for changes without replaying
the store.

The cache is a FIFO of fixed capacity: appends are O(1), eviction drops
the oldest events, and GetAllEventsSince returns the strict suffix after
a caller's last seen event id. A caller whose id has been evicted gets a
NotFoundError and must fall back to a full resynchronization.

Writes come from the bulk event processor after each successful batch;
reads are served concurrently under a read lock.
*/
package cache
