package sinks

import (
	"bytes"
	"errors"
	"os"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tidelog/tidelog"
	"github.com/tidelog/tidelog/payload"
	"github.com/tidelog/tidelog/pkg/format"
)

func newTestRuntime(t *testing.T) *tidelog.Runtime {
	t.Helper()

	rt := tidelog.NewRuntime(tidelog.RuntimeOptions{
		DiagnosticWriter:     &bytes.Buffer{},
		DiagnosticsPerSecond: 1000,
	})
	t.Cleanup(func() { _ = rt.Shutdown() })

	return rt
}

func newTestLogger(t *testing.T, rt *tidelog.Runtime, name string, sinks ...tidelog.Sink) *tidelog.Logger {
	t.Helper()

	cfg := tidelog.DefaultConfig()
	cfg.Name = name
	cfg.MinimumLevel = tidelog.TraceLevel
	cfg.Sinks = sinks

	log, err := rt.CreateLogger(cfg)
	require.NoError(t, err)

	return log
}

// plainText renders records without timestamps so assertions stay stable.
func plainText() *format.TextFormatter {
	tf := format.NewTextFormatter()
	tf.DisableTimestamp = true

	return tf
}

type closableBuffer struct {
	*bytes.Buffer
	closed bool
}

func (c *closableBuffer) Close() error {
	c.closed = true

	return nil
}

func TestNewWriterAdapter(t *testing.T) {
	cb := &closableBuffer{Buffer: bytes.NewBuffer(nil)}
	adapter := NewWriterAdapter(cb)

	_, err := adapter.Write([]byte("hello"))
	require.NoError(t, err)
	assert.Equal(t, "hello", cb.String())

	assert.NoError(t, adapter.Sync(), "sync should succeed even if unsupported")
	assert.NoError(t, adapter.Close())
	assert.True(t, cb.closed, "close should be forwarded to underlying writer")
}

func TestIsTerminal(t *testing.T) {
	assert.False(t, IsTerminal(&bytes.Buffer{}))

	f, err := os.CreateTemp(t.TempDir(), "plain")
	require.NoError(t, err)

	defer func() { _ = f.Close() }()

	assert.False(t, IsTerminal(f), "a regular file is not a terminal")
}

func TestSinkTargetedRecords(t *testing.T) {
	rt := newTestRuntime(t)

	first := NewMemorySink(MemoryOptions{Formatter: plainText(), ID: 1})
	second := NewMemorySink(MemoryOptions{Formatter: plainText(), ID: 2})
	log := newTestLogger(t, rt, "targeted", first, second)

	log.Info("for everyone")

	lk, err := rt.LockLogger(log.Handle())
	require.NoError(t, err)

	h := lk.Manager().AllocateCopy(recordPayload(t, "for the first"))
	require.True(t, h.IsValid())
	lk.Dispose()

	require.NoError(t, rt.DispatchTo(log.Handle(), h, tidelog.InfoLevel, 1))
	require.NoError(t, rt.FlushAll())

	assert.Equal(t, []string{"[ INFO] for everyone", "[ INFO] for the first"}, first.Lines())
	assert.Equal(t, []string{"[ INFO] for everyone"}, second.Lines())
}

func TestSinkSharedBetweenLoggers(t *testing.T) {
	rt := newTestRuntime(t)

	shared := NewMemorySink(MemoryOptions{Formatter: plainText()})
	alpha := newTestLogger(t, rt, "alpha", shared)
	beta := newTestLogger(t, rt, "beta", shared)

	alpha.Info("from alpha")
	beta.Warn("from beta")

	require.NoError(t, rt.FlushAll())

	assert.ElementsMatch(t,
		[]string{"[ INFO] from alpha", "[ WARN] from beta"},
		shared.Lines())
}

var errDestUnavailable = errors.New("destination unavailable")

type failingWriter struct {
	mu     sync.Mutex
	writes int
}

func (f *failingWriter) Write([]byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.writes++

	return 0, errDestUnavailable
}

func (f *failingWriter) Sync() error { return nil }

func (f *failingWriter) Close() error { return nil }

func (f *failingWriter) writeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.writes
}

type coreSink struct {
	core
}

func TestSinkEmitFailureDisablesSink(t *testing.T) {
	rt := newTestRuntime(t)

	fw := &failingWriter{}
	flaky := &coreSink{core: newCore("flaky", Broadcast, plainText(), fw)}
	healthy := NewMemorySink(MemoryOptions{Formatter: plainText()})
	log := newTestLogger(t, rt, "flaky", flaky, healthy)

	log.Info("one")
	require.NoError(t, rt.FlushAll())
	assert.Equal(t, 1, fw.writeCount())

	log.Info("two")
	require.NoError(t, rt.FlushAll())

	assert.Equal(t, 1, fw.writeCount(), "a failed sink must be skipped on later cycles")
	assert.Equal(t, []string{"[ INFO] one", "[ INFO] two"}, healthy.Lines(),
		"other sinks keep rendering after one sink dies")
}

// recordPayload builds the chunked bytes of a one-message record.
func recordPayload(t *testing.T, msg string) []byte {
	t.Helper()

	return payload.AppendMessage(nil, []byte(msg))
}
