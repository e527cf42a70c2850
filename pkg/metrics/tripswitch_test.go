package metrics

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTripSwitchStartsClear(t *testing.T) {
	ts := NewTripSwitch()

	assert.False(t, ts.Tripped())
	assert.Empty(t, ts.Reason())
	assert.True(t, ts.TrippedAt().IsZero())
}

func TestTripSwitchLatches(t *testing.T) {
	ts := NewTripSwitch()

	ts.Trip("buffer flush failed")

	assert.True(t, ts.Tripped())
	assert.Equal(t, "buffer flush failed", ts.Reason())
	assert.False(t, ts.TrippedAt().IsZero())

	// A second actuation keeps the original reason
	ts.Trip("later failure")
	assert.Equal(t, "buffer flush failed", ts.Reason())
}

func TestTripSwitchReset(t *testing.T) {
	ts := NewTripSwitch()
	ts.Trip("bulk persister failed")

	ts.Reset()

	assert.False(t, ts.Tripped())
	assert.Empty(t, ts.Reason())
	assert.True(t, ts.TrippedAt().IsZero())

	// Can trip again after reset with a new reason
	ts.Trip("second incident")
	assert.True(t, ts.Tripped())
	assert.Equal(t, "second incident", ts.Reason())
}

func TestTripSwitchConcurrentActuation(t *testing.T) {
	ts := NewTripSwitch()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ts.Trip("concurrent failure")
		}()
	}
	wg.Wait()

	assert.True(t, ts.Tripped())
	assert.Equal(t, "concurrent failure", ts.Reason())
}
