package sinks

import (
	"bytes"
	"strings"
	"sync"

	"github.com/tidelog/tidelog"
	"github.com/tidelog/tidelog/pkg/format"
)

// MemoryOptions configures a MemorySink.
type MemoryOptions struct {
	// Formatter renders records; nil selects the text formatter.
	Formatter format.Formatter
	// ID is the sink's id for targeted records. The zero value accepts
	// broadcast records only.
	ID int32
}

// MemorySink retains rendered output in memory. Tests and examples use it
// to observe what a logger emitted.
type MemorySink struct {
	core
	store *memoryStore
}

var _ tidelog.Sink = (*MemorySink)(nil)

// NewMemorySink creates a MemorySink.
func NewMemorySink(opts MemoryOptions) *MemorySink {
	f := opts.Formatter
	if f == nil {
		f = format.NewTextFormatter()
	}

	id := opts.ID
	if id == 0 {
		id = Broadcast
	}

	store := &memoryStore{}

	return &MemorySink{
		core:  newCore("memory", id, f, store),
		store: store,
	}
}

// Contents returns everything the sink has rendered.
func (s *MemorySink) Contents() string {
	return s.store.contents()
}

// Lines returns the rendered output split into lines, without the trailing
// newline.
func (s *MemorySink) Lines() []string {
	text := strings.TrimSuffix(s.store.contents(), "\n")
	if text == "" {
		return nil
	}

	return strings.Split(text, "\n")
}

// Batches returns how many render batches reached the sink.
func (s *MemorySink) Batches() int {
	return s.store.batchCount()
}

// Syncs returns how many times the sink was flushed.
func (s *MemorySink) Syncs() int {
	return s.store.syncCount()
}

// Closed reports whether the sink was disposed.
func (s *MemorySink) Closed() bool {
	return s.store.isClosed()
}

// Reset discards the retained output.
func (s *MemorySink) Reset() {
	s.store.reset()
}

type memoryStore struct {
	mu      sync.Mutex
	buf     bytes.Buffer
	batches int
	syncs   int
	closed  bool
}

func (m *memoryStore) Write(p []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.batches++

	return m.buf.Write(p)
}

func (m *memoryStore) Sync() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.syncs++

	return nil
}

func (m *memoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true

	return nil
}

func (m *memoryStore) contents() string {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.buf.String()
}

func (m *memoryStore) batchCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.batches
}

func (m *memoryStore) syncCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.syncs
}

func (m *memoryStore) isClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.closed
}

func (m *memoryStore) reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.buf.Reset()
	m.batches = 0
}
