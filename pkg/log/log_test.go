package log

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func initCapture(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	Init(Config{Level: DebugLevel, JSONOutput: true, Output: &buf})
	return &buf
}

func lastEntry(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	return entry
}

func TestWithComponentChaining(t *testing.T) {
	buf := initCapture(t)

	WithComponent("buffer").Debug().Int("events", 3).Msg("flushed events")

	entry := lastEntry(t, buf)
	assert.Equal(t, "buffer", entry["component"])
	assert.Equal(t, "flushed events", entry["message"])
	assert.Equal(t, float64(3), entry["events"])
}

func TestWithEventID(t *testing.T) {
	buf := initCapture(t)

	WithEventID("8e2b4c9a").Error().Msg("dropped rejected event")

	entry := lastEntry(t, buf)
	assert.Equal(t, "8e2b4c9a", entry["event_id"])
	assert.Equal(t, "error", entry["level"])
}

func TestWithShardURL(t *testing.T) {
	buf := initCapture(t)

	WithShardURL("http://shard-a:8460").Warn().Msg("shard call failed")

	entry := lastEntry(t, buf)
	assert.Equal(t, "http://shard-a:8460", entry["shard_url"])
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: ErrorLevel, JSONOutput: true, Output: &buf})

	WithComponent("store").Info().Msg("suppressed")
	assert.Zero(t, buf.Len())

	WithComponent("store").Error().Msg("emitted")
	assert.NotZero(t, buf.Len())
}
