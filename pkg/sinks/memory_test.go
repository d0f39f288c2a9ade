package sinks

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tidelog/tidelog"
	"github.com/tidelog/tidelog/pkg/format"
)

func TestMemorySinkRendersRecords(t *testing.T) {
	rt := newTestRuntime(t)
	sink := NewMemorySink(MemoryOptions{Formatter: plainText()})
	log := newTestLogger(t, rt, "mem", sink)

	log.Info("service started", tidelog.Str("region", "eu-west-1"))
	log.Warn("cache miss", tidelog.Int("attempt", 2))

	require.NoError(t, rt.FlushAll())

	assert.Equal(t, []string{
		"[ INFO] service started region=eu-west-1",
		"[ WARN] cache miss attempt=2",
	}, sink.Lines())

	assert.Equal(t, 1, sink.Batches(), "one cycle carried both records")
	assert.Equal(t, 2, sink.Syncs(), "each batch flushes the sink once")
}

func TestMemorySinkDefaultFormatter(t *testing.T) {
	rt := newTestRuntime(t)
	sink := NewMemorySink(MemoryOptions{})
	log := newTestLogger(t, rt, "memdefault", sink)

	log.Info("with timestamp")

	require.NoError(t, rt.FlushAll())

	lines := sink.Lines()
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], "[ INFO] with timestamp")
	assert.Greater(t, len(lines[0]), len("[ INFO] with timestamp"),
		"the default formatter prefixes a timestamp")
}

func TestMemorySinkJSONFormatter(t *testing.T) {
	rt := newTestRuntime(t)

	jf := format.NewJSONFormatter()
	jf.DisableTimestamp = true

	sink := NewMemorySink(MemoryOptions{Formatter: jf})
	log := newTestLogger(t, rt, "memjson", sink)

	log.Error("query failed", tidelog.Str("table", "users"), tidelog.Int("rows", 0))

	require.NoError(t, rt.FlushAll())

	lines := sink.Lines()
	require.Len(t, lines, 1)
	assert.JSONEq(t,
		`{"level":"ERROR","message":"query failed","table":"users","rows":0}`,
		lines[0])
}

func TestMemorySinkReset(t *testing.T) {
	rt := newTestRuntime(t)
	sink := NewMemorySink(MemoryOptions{Formatter: plainText()})
	log := newTestLogger(t, rt, "memreset", sink)

	log.Info("first")
	require.NoError(t, rt.FlushAll())
	require.NotEmpty(t, sink.Contents())

	sink.Reset()
	assert.Empty(t, sink.Contents())
	assert.Nil(t, sink.Lines())
	assert.Zero(t, sink.Batches())

	log.Info("second")
	require.NoError(t, rt.FlushAll())
	assert.Equal(t, []string{"[ INFO] second"}, sink.Lines())
}

func TestMemorySinkClosedOnRemove(t *testing.T) {
	rt := newTestRuntime(t)
	sink := NewMemorySink(MemoryOptions{Formatter: plainText()})
	log := newTestLogger(t, rt, "memclose", sink)

	log.Info("wrap up")
	require.NoError(t, rt.RemoveLogger(log.Handle()))

	assert.True(t, sink.Closed())
	assert.Equal(t, []string{"[ INFO] wrap up"}, sink.Lines(),
		"removal drains pending records before closing the sink")
}
