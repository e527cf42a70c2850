package metrics

import (
	"sync/atomic"
	"time"
)

// TripSwitch is a latched failure indicator. It is actuated by a buffer
// flush or bulk persister failure, after which all new write operations
// fail fast until an operator resets it. Reads are unaffected.
type TripSwitch struct {
	tripped   atomic.Bool
	trippedAt atomic.Int64 // unix nanos of last actuation, 0 if clear
	reason    atomic.Value // string
}

// NewTripSwitch returns a trip switch in the clear state
func NewTripSwitch() *TripSwitch {
	ts := &TripSwitch{}
	ts.reason.Store("")
	return ts
}

// Trip latches the switch. Subsequent calls keep the original reason.
func (ts *TripSwitch) Trip(reason string) {
	if ts.tripped.CompareAndSwap(false, true) {
		ts.trippedAt.Store(time.Now().UnixNano())
		ts.reason.Store(reason)
		TripSwitchState.Set(1)
	}
}

// Reset clears the switch. Intended for operator use only.
func (ts *TripSwitch) Reset() {
	ts.tripped.Store(false)
	ts.trippedAt.Store(0)
	ts.reason.Store("")
	TripSwitchState.Set(0)
}

// Tripped reports whether the switch is set
func (ts *TripSwitch) Tripped() bool {
	return ts.tripped.Load()
}

// Reason returns the reason recorded at actuation, or "" when clear
func (ts *TripSwitch) Reason() string {
	r, _ := ts.reason.Load().(string)
	return r
}

// TrippedAt returns the time of actuation, zero when clear
func (ts *TripSwitch) TrippedAt() time.Time {
	n := ts.trippedAt.Load()
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n)
}
