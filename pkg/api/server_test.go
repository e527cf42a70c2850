package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gatehouse/gatehouse/pkg/buffer"
	"github.com/gatehouse/gatehouse/pkg/cache"
	"github.com/gatehouse/gatehouse/pkg/metrics"
	"github.com/gatehouse/gatehouse/pkg/processor"
	"github.com/gatehouse/gatehouse/pkg/store"
	"github.com/gatehouse/gatehouse/pkg/types"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testServer runs the full local pipeline behind an httptest server
type testServer struct {
	srv    *httptest.Server
	buffer *buffer.Buffer
	trip   *metrics.TripSwitch
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	st, err := store.NewBoltStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	trip := metrics.NewTripSwitch()
	buf := buffer.New(st, trip, buffer.Config{MaxSize: 1000, FlushInterval: time.Hour})
	c := cache.New(100)
	proc := processor.New(st, c, trip)

	s := NewServer(Options{
		Backend: NewLocalBackend(st, buf, proc, c),
		Trip:    trip,
		Version: "test",
	})
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)

	return &testServer{srv: srv, buffer: buf, trip: trip}
}

func (ts *testServer) do(t *testing.T, method, path string, body any) *http.Response {
	t.Helper()
	var reqBody *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reqBody = bytes.NewReader(data)
	} else {
		reqBody = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, ts.srv.URL+path, reqBody)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

// flush makes previously accepted writer events durable
func (ts *testServer) flush(t *testing.T) {
	t.Helper()
	require.NoError(t, ts.buffer.Flush())
}

func TestWriterAcceptsAndPersists(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(t, http.MethodPut, "/users/alice", nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	body := decode[map[string]string](t, resp)
	_, err := uuid.Parse(body["event_id"])
	require.NoError(t, err)

	// Not visible until the buffer flushes
	resp = ts.do(t, http.MethodGet, "/users/alice", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.False(t, decode[bool](t, resp))

	ts.flush(t)

	resp = ts.do(t, http.MethodGet, "/users/alice", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, decode[bool](t, resp))
}

func TestWriterRemove(t *testing.T) {
	ts := newTestServer(t)

	ts.do(t, http.MethodPut, "/users/alice", nil)
	ts.flush(t)

	resp := ts.do(t, http.MethodDelete, "/users/alice", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	ts.flush(t)

	resp = ts.do(t, http.MethodGet, "/users/alice", nil)
	assert.False(t, decode[bool](t, resp))
}

func TestMappingLifecycle(t *testing.T) {
	ts := newTestServer(t)

	ts.do(t, http.MethodPut, "/users/alice", nil)
	ts.do(t, http.MethodPut, "/groups/admins", nil)
	ts.flush(t)
	resp := ts.do(t, http.MethodPut, "/userToGroupMappings/alice/admins", nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	ts.flush(t)

	resp = ts.do(t, http.MethodGet, "/users/alice/groups", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, []string{"admins"}, decode[[]string](t, resp))

	resp = ts.do(t, http.MethodGet, "/groups/admins/users", nil)
	assert.Equal(t, []string{"alice"}, decode[[]string](t, resp))
}

func TestAccessDecisionThroughGroups(t *testing.T) {
	ts := newTestServer(t)

	ts.do(t, http.MethodPut, "/users/alice", nil)
	ts.do(t, http.MethodPut, "/groups/admins", nil)
	ts.flush(t)
	ts.do(t, http.MethodPut, "/userToGroupMappings/alice/admins", nil)
	ts.do(t, http.MethodPut, "/groupToApplicationComponentAndAccessLevelMappings/admins/billing/write", nil)
	ts.flush(t)

	resp := ts.do(t, http.MethodGet, "/users/alice/access/applicationComponent/billing/write", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, decode[bool](t, resp))

	resp = ts.do(t, http.MethodGet, "/users/alice/access/applicationComponent/billing/read", nil)
	assert.False(t, decode[bool](t, resp))

	resp = ts.do(t, http.MethodGet, "/users/alice/accessibleApplicationComponents", nil)
	access := decode[[]types.ComponentAccess](t, resp)
	assert.Equal(t, []types.ComponentAccess{{Component: "billing", AccessLevel: "write"}}, access)
}

func TestEntityEndpoints(t *testing.T) {
	ts := newTestServer(t)

	ts.do(t, http.MethodPut, "/users/alice", nil)
	ts.do(t, http.MethodPut, "/entityTypes/account", nil)
	ts.flush(t)
	ts.do(t, http.MethodPut, "/entityTypes/account/entities/acct-1", nil)
	ts.flush(t)
	ts.do(t, http.MethodPut, "/userToEntityMappings/alice/account/acct-1", nil)
	ts.flush(t)

	resp := ts.do(t, http.MethodGet, "/entityTypes/account/entities", nil)
	assert.Equal(t, []string{"acct-1"}, decode[[]string](t, resp))

	resp = ts.do(t, http.MethodGet, "/users/alice/access/entity/account/acct-1", nil)
	assert.True(t, decode[bool](t, resp))

	resp = ts.do(t, http.MethodGet, "/entityTypes/account/entities/acct-1/users", nil)
	assert.Equal(t, []string{"alice"}, decode[[]string](t, resp))
}

func TestQueryUnknownElement404(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(t, http.MethodGet, "/users/ghost/groups", nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	body := decode[map[string]string](t, resp)
	assert.NotEmpty(t, body["error"])

	resp = ts.do(t, http.MethodGet, "/entityTypes/ghost/entities", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestBulkEvents(t *testing.T) {
	ts := newTestServer(t)
	base := time.Now().Add(-time.Hour)

	events := []*types.Event{
		types.NewEvent(uuid.New(), types.KindUser, types.ActionAdd, base, 0, "alice"),
		types.NewEvent(uuid.New(), types.KindGroup, types.ActionAdd, base.Add(time.Second), 0, "admins"),
	}

	resp := ts.do(t, http.MethodPost, "/events", events)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	res := decode[processor.Result](t, resp)
	assert.Equal(t, processor.Result{Applied: 2, Skipped: 0}, res)

	// Strict replay conflicts; ignorePreexisting skips
	resp = ts.do(t, http.MethodPost, "/events", events)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = ts.do(t, http.MethodPost, "/events?ignorePreexisting=true", events)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	res = decode[processor.Result](t, resp)
	assert.Equal(t, processor.Result{Applied: 0, Skipped: 2}, res)
}

func TestBulkEventsMalformed400(t *testing.T) {
	ts := newTestServer(t)

	events := []*types.Event{
		types.NewEvent(uuid.New(), "widget", types.ActionAdd, time.Now(), 0, "x"),
	}
	resp := ts.do(t, http.MethodPost, "/events", events)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestEventCacheFeed(t *testing.T) {
	ts := newTestServer(t)
	base := time.Now().Add(-time.Hour)

	events := []*types.Event{
		types.NewEvent(uuid.New(), types.KindUser, types.ActionAdd, base, 0, "alice"),
		types.NewEvent(uuid.New(), types.KindUser, types.ActionAdd, base.Add(time.Second), 0, "bob"),
	}
	resp := ts.do(t, http.MethodPost, "/events", events)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = ts.do(t, http.MethodGet, "/eventCache/events/"+events[0].ID.String(), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	since := decode[[]*types.Event](t, resp)
	require.Len(t, since, 1)
	assert.Equal(t, events[1].ID, since[0].ID)

	// Unknown id yields 404
	resp = ts.do(t, http.MethodGet, "/eventCache/events/"+uuid.NewString(), nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	// Malformed id yields 400
	resp = ts.do(t, http.MethodGet, "/eventCache/events/not-a-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestTripSwitchBlocksWritersNotReaders(t *testing.T) {
	ts := newTestServer(t)

	ts.do(t, http.MethodPut, "/users/alice", nil)
	ts.flush(t)

	ts.trip.Trip("manual")

	resp := ts.do(t, http.MethodPut, "/users/bob", nil)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	// Reads keep working
	resp = ts.do(t, http.MethodGet, "/users/alice", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, decode[bool](t, resp))

	// Operator reset restores the write path
	resp = ts.do(t, http.MethodPut, "/tripSwitch/reset", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = ts.do(t, http.MethodPut, "/users/bob", nil)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
}

func TestHealthAndReady(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(t, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	health := decode[map[string]any](t, resp)
	assert.Equal(t, "healthy", health["status"])

	resp = ts.do(t, http.MethodGet, "/ready", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	ready := decode[readyResponse](t, resp)
	assert.Equal(t, "ok", ready.Checks["storage"])
	assert.Equal(t, "clear", ready.Checks["trip_switch"])
}

func TestControlPlaneWithoutRouting(t *testing.T) {
	ts := newTestServer(t)

	// This instance has no router configured
	resp := ts.do(t, http.MethodPut, "/routing/on", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
