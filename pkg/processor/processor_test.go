package processor

import (
	"context"
	"testing"
	"time"

	"github.com/gatehouse/gatehouse/pkg/cache"
	"github.com/gatehouse/gatehouse/pkg/metrics"
	"github.com/gatehouse/gatehouse/pkg/store"
	"github.com/gatehouse/gatehouse/pkg/types"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestProcessor(t *testing.T) (*Processor, *store.BoltStore, *cache.Cache, *metrics.TripSwitch) {
	t.Helper()
	st, err := store.NewBoltStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	c := cache.New(100)
	trip := metrics.NewTripSwitch()
	return New(st, c, trip), st, c, trip
}

type eventSeq struct {
	t time.Time
}

func newEventSeq() *eventSeq {
	return &eventSeq{t: time.Now().Add(-time.Hour)}
}

func (s *eventSeq) event(kind types.EventKind, action types.EventAction, fields ...string) *types.Event {
	s.t = s.t.Add(time.Second)
	return types.NewEvent(uuid.New(), kind, action, s.t, 0, fields...)
}

func TestProcessAppliesAndCaches(t *testing.T) {
	p, st, c, _ := newTestProcessor(t)
	seq := newEventSeq()

	batch := []*types.Event{
		seq.event(types.KindUser, types.ActionAdd, "alice"),
		seq.event(types.KindGroup, types.ActionAdd, "admins"),
		seq.event(types.KindUserToGroup, types.ActionAdd, "alice", "admins"),
	}

	res, err := p.Process(context.Background(), batch, false)
	require.NoError(t, err)
	assert.Equal(t, Result{Applied: 3, Skipped: 0}, res)

	exists, err := st.ContainsUser("alice")
	require.NoError(t, err)
	assert.True(t, exists)

	cached, err := c.GetAllEventsSince(uuid.Nil)
	require.NoError(t, err)
	assert.Equal(t, batch, cached)
}

func TestProcessStrictDuplicateFails(t *testing.T) {
	p, st, c, _ := newTestProcessor(t)
	seq := newEventSeq()

	first := seq.event(types.KindUser, types.ActionAdd, "alice")
	_, err := p.Process(context.Background(), []*types.Event{first}, false)
	require.NoError(t, err)

	batch := []*types.Event{first, seq.event(types.KindUser, types.ActionAdd, "bob")}
	_, err = p.Process(context.Background(), batch, false)
	require.Error(t, err)
	assert.True(t, types.IsConflict(err))

	// The whole batch rolled back and nothing new was cached
	exists, err := st.ContainsUser("bob")
	require.NoError(t, err)
	assert.False(t, exists)
	assert.Equal(t, 1, c.Len())
}

func TestProcessIgnorePreexisting(t *testing.T) {
	p, st, c, _ := newTestProcessor(t)
	seq := newEventSeq()

	first := seq.event(types.KindUser, types.ActionAdd, "alice")
	_, err := p.Process(context.Background(), []*types.Event{first}, false)
	require.NoError(t, err)

	batch := []*types.Event{first, seq.event(types.KindUser, types.ActionAdd, "bob")}
	res, err := p.Process(context.Background(), batch, true)
	require.NoError(t, err)
	assert.Equal(t, Result{Applied: 1, Skipped: 1}, res)

	exists, err := st.ContainsUser("bob")
	require.NoError(t, err)
	assert.True(t, exists)

	// The replayed event is not cached twice
	assert.Equal(t, 2, c.Len())
}

func TestProcessRejectsMalformedBatch(t *testing.T) {
	p, st, _, _ := newTestProcessor(t)
	seq := newEventSeq()

	batch := []*types.Event{
		seq.event(types.KindUser, types.ActionAdd, "alice"),
		seq.event(types.KindUserToGroup, types.ActionAdd, "alice"), // missing group field
	}

	_, err := p.Process(context.Background(), batch, false)
	require.Error(t, err)
	assert.True(t, types.IsValidation(err))

	exists, err := st.ContainsUser("alice")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestProcessCallerErrorDoesNotTrip(t *testing.T) {
	p, _, _, trip := newTestProcessor(t)
	seq := newEventSeq()

	batch := []*types.Event{seq.event(types.KindUser, types.ActionRemove, "ghost")}
	_, err := p.Process(context.Background(), batch, false)
	require.Error(t, err)
	assert.True(t, types.IsNotFound(err))
	assert.False(t, trip.Tripped())
}

func TestProcessRefusedWhileTripped(t *testing.T) {
	p, _, _, trip := newTestProcessor(t)
	seq := newEventSeq()

	trip.Trip("test")
	_, err := p.Process(context.Background(), []*types.Event{seq.event(types.KindUser, types.ActionAdd, "alice")}, false)
	require.Error(t, err)
	assert.True(t, types.IsUnavailable(err))
}

func TestProcessCancelledContext(t *testing.T) {
	p, _, _, _ := newTestProcessor(t)
	seq := newEventSeq()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.Process(ctx, []*types.Event{seq.event(types.KindUser, types.ActionAdd, "alice")}, false)
	require.ErrorIs(t, err, context.Canceled)
}

func TestProcessEmptyBatch(t *testing.T) {
	p, _, _, _ := newTestProcessor(t)

	res, err := p.Process(context.Background(), nil, false)
	require.NoError(t, err)
	assert.Zero(t, res.Applied)
}
