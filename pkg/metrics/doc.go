/*
Package metrics provides Prometheus instrumentation and the write-path
trip switch for Gatehouse.

All collectors are package-level variables registered in init(), exposed
over HTTP via Handler() at /metrics. The package also owns the TripSwitch,
the latched failure indicator that forces write traffic to fail fast
after a buffer flush or bulk persister failure.

# Core Components

Collectors:
  - Event pipeline: buffered gauge, persisted/skipped counters,
    flush counters and duration histogram
  - Store: transaction duration histogram, retry counter
  - Cache: cached events gauge, eviction counter
  - Router: routed operation counters, shard call duration and errors
  - API: request counters and duration histograms
  - Trip switch: gauge mirroring the latch state

TripSwitch:
  - Trip(reason): latches; first actuation wins the recorded reason
  - Reset(): operator-only clear, exposed on the control plane
  - Tripped(): checked on every write entry point

Timer:
  - NewTimer() / Duration() / ObserveDuration(histogram)
  - ObserveDurationVec(histogramVec, labels...)

# Usage

Recording a store transaction:

	timer := metrics.NewTimer()
	err := store.AddUser(name, eventID, occurred, hash)
	timer.ObserveDurationVec(metrics.StoreTransactionDuration, "add_user")

Guarding a write path:

	if tripSwitch.Tripped() {
		return &types.UnavailableError{Reason: tripSwitch.Reason()}
	}

# Integration Points

This package integrates with:

  - pkg/buffer: flush metrics, trip switch actuation on flush failure
  - pkg/processor: persisted/skipped counters, trip switch actuation
  - pkg/router and pkg/client: shard call metrics
  - pkg/api: request metrics, /metrics and trip switch reset endpoints
*/
package metrics
