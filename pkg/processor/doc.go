/*
Package processor applies bulk event batches transactionally.

A batch is validated up front, applied in input order inside a single
store transaction, and on success appended to the event cache. Strict
mode treats a duplicate event id as a conflict failing the whole batch;
ignore-preexisting mode skips duplicates so peers can replay overlapping
event streams idempotently.

Caller mistakes (conflict, not found, validation) roll back and are
reported. Any other apply failure trips the shared trip switch, halting
the write path until an operator intervenes.
*/
package processor
