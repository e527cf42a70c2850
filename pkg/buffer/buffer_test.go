package buffer

import (
	"testing"
	"time"

	"github.com/gatehouse/gatehouse/pkg/hashring"
	"github.com/gatehouse/gatehouse/pkg/metrics"
	"github.com/gatehouse/gatehouse/pkg/store"
	"github.com/gatehouse/gatehouse/pkg/types"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBuffer(t *testing.T, config Config) (*Buffer, *store.BoltStore, *metrics.TripSwitch) {
	t.Helper()
	st, err := store.NewBoltStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	trip := metrics.NewTripSwitch()
	return New(st, trip, config), st, trip
}

func TestAppendAndFlush(t *testing.T) {
	b, st, _ := newTestBuffer(t, Config{MaxSize: 100, FlushInterval: time.Hour})

	id, err := b.Append(types.KindUser, types.ActionAdd, "alice")
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, id)
	assert.Equal(t, 1, b.Len())

	// Not durable until flushed
	exists, err := st.ContainsUser("alice")
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, b.Flush())
	assert.Zero(t, b.Len())

	exists, err = st.ContainsUser("alice")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestAppendStampsHashCode(t *testing.T) {
	b, _, _ := newTestBuffer(t, Config{MaxSize: 100, FlushInterval: time.Hour})

	_, err := b.Append(types.KindUser, types.ActionAdd, "alice")
	require.NoError(t, err)

	b.mu.Lock()
	e := b.pending[0]
	b.mu.Unlock()

	assert.Equal(t, hashring.Hash("alice"), e.HashCode)
}

func TestAppendStampsEntityTypeHash(t *testing.T) {
	b, _, _ := newTestBuffer(t, Config{MaxSize: 100, FlushInterval: time.Hour})

	// Entity type events broadcast rather than route, but the audit rows
	// still carry the real hash of the entity type
	_, err := b.Append(types.KindEntityType, types.ActionAdd, "account")
	require.NoError(t, err)

	b.mu.Lock()
	e := b.pending[0]
	b.mu.Unlock()

	assert.Equal(t, hashring.Hash("account"), e.HashCode)
}

func TestAppendRejectsInvalidEvent(t *testing.T) {
	b, _, _ := newTestBuffer(t, Config{MaxSize: 100, FlushInterval: time.Hour})

	// Mapping kinds need two fields
	_, err := b.Append(types.KindUserToGroup, types.ActionAdd, "alice")
	require.Error(t, err)
	assert.True(t, types.IsValidation(err))
	assert.Zero(t, b.Len())
}

func TestOccurredTimesStrictlyIncrease(t *testing.T) {
	b, _, _ := newTestBuffer(t, Config{MaxSize: 1000, FlushInterval: time.Hour})

	for i := 0; i < 100; i++ {
		_, err := b.Append(types.KindUser, types.ActionAdd, uuid.NewString())
		require.NoError(t, err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	for i := 1; i < len(b.pending); i++ {
		assert.True(t, b.pending[i].Occurred.After(b.pending[i-1].Occurred),
			"occurred time at %d did not advance", i)
	}
}

func TestSizeLimitFlushesInline(t *testing.T) {
	b, st, _ := newTestBuffer(t, Config{MaxSize: 3, FlushInterval: time.Hour})

	for _, u := range []string{"u1", "u2"} {
		_, err := b.Append(types.KindUser, types.ActionAdd, u)
		require.NoError(t, err)
	}
	assert.Equal(t, 2, b.Len())

	// The append that reaches the limit flushes before returning
	_, err := b.Append(types.KindUser, types.ActionAdd, "u3")
	require.NoError(t, err)
	assert.Zero(t, b.Len())

	exists, err := st.ContainsUser("u3")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestIntervalTriggerFlushes(t *testing.T) {
	b, st, _ := newTestBuffer(t, Config{MaxSize: 1000, FlushInterval: 20 * time.Millisecond})
	b.Start()
	defer b.Stop()

	_, err := b.Append(types.KindUser, types.ActionAdd, "alice")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		exists, err := st.ContainsUser("alice")
		return err == nil && exists
	}, 2*time.Second, 10*time.Millisecond)
}

func TestStopFlushesPending(t *testing.T) {
	b, st, _ := newTestBuffer(t, Config{MaxSize: 1000, FlushInterval: time.Hour})
	b.Start()

	_, err := b.Append(types.KindUser, types.ActionAdd, "alice")
	require.NoError(t, err)

	b.Stop()

	exists, err := st.ContainsUser("alice")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestFlushDropsRejectedEventsWithoutTripping(t *testing.T) {
	b, st, trip := newTestBuffer(t, Config{MaxSize: 1000, FlushInterval: time.Hour})

	// A remove for a user that never existed is a caller mistake; it must
	// not take the rest of the batch or the write path down with it
	_, err := b.Append(types.KindUser, types.ActionRemove, "ghost")
	require.NoError(t, err)
	_, err = b.Append(types.KindUser, types.ActionAdd, "alice")
	require.NoError(t, err)

	require.NoError(t, b.Flush())
	assert.False(t, trip.Tripped())
	assert.Zero(t, b.Len())

	exists, err := st.ContainsUser("alice")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestPoisonEventDoesNotRelatch(t *testing.T) {
	b, st, trip := newTestBuffer(t, Config{MaxSize: 1000, FlushInterval: time.Hour})

	require.NoError(t, st.AddUser("alice", uuid.New(), time.Now().Add(-time.Hour), 0))

	// A duplicate add conflicts at flush time; the event is dropped, so
	// the conflict cannot recur on the next flush
	_, err := b.Append(types.KindUser, types.ActionAdd, "alice")
	require.NoError(t, err)

	require.NoError(t, b.Flush())
	assert.False(t, trip.Tripped())
	assert.Zero(t, b.Len())

	_, err = b.Append(types.KindUser, types.ActionAdd, "bob")
	require.NoError(t, err)
	require.NoError(t, b.Flush())

	exists, err := st.ContainsUser("bob")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestFlushFailureTripsSwitch(t *testing.T) {
	b, st, trip := newTestBuffer(t, Config{MaxSize: 1000, FlushInterval: time.Hour})

	_, err := b.Append(types.KindUser, types.ActionAdd, "alice")
	require.NoError(t, err)

	// Persistence itself failing is not a caller mistake
	require.NoError(t, st.Close())

	require.Error(t, b.Flush())
	assert.True(t, trip.Tripped())

	// The failed batch stays queued for a post-reset retry
	assert.Equal(t, 1, b.Len())

	// And the buffer refuses new work while tripped
	_, err = b.Append(types.KindUser, types.ActionAdd, "bob")
	require.Error(t, err)
	assert.True(t, types.IsUnavailable(err))
}

func TestResetAllowsAppendAgain(t *testing.T) {
	b, st, trip := newTestBuffer(t, Config{MaxSize: 1000, FlushInterval: time.Hour})

	trip.Trip("test")
	_, err := b.Append(types.KindUser, types.ActionAdd, "alice")
	require.Error(t, err)

	trip.Reset()
	_, err = b.Append(types.KindUser, types.ActionAdd, "alice")
	require.NoError(t, err)

	require.NoError(t, b.Flush())
	exists, err := st.ContainsUser("alice")
	require.NoError(t, err)
	assert.True(t, exists)
}
