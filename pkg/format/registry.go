package format

import (
	"sync"

	"github.com/hyp3rd/ewrap"
)

// Names of the formatters the default registry ships with.
const (
	TextFormatterName = "text"
	JSONFormatterName = "json"
)

// Registry manages named formatters that can be referenced from
// configuration.
type Registry struct {
	mu         sync.RWMutex
	formatters map[string]Formatter
}

// NewRegistry creates an empty formatter registry.
func NewRegistry() *Registry {
	return &Registry{
		formatters: make(map[string]Formatter),
	}
}

// Register adds a formatter to the registry under the provided name.
func (r *Registry) Register(name string, f Formatter) error {
	if name == "" {
		return ewrap.New("formatter name cannot be empty")
	}

	if f == nil {
		return ewrap.New("formatter cannot be nil")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.formatters[name]; exists {
		return ewrap.New("formatter already registered").WithMetadata("name", name)
	}

	r.formatters[name] = f

	return nil
}

// Get retrieves a formatter by name.
func (r *Registry) Get(name string) (Formatter, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	f, ok := r.formatters[name]

	return f, ok
}

// MustRegister registers a formatter and panics if registration fails.
func (r *Registry) MustRegister(name string, f Formatter) {
	err := r.Register(name, f)
	if err != nil {
		panic(err)
	}
}

//nolint:gochecknoglobals // A single pre-seeded registry serves every caller.
var defaultRegistry = sync.OnceValue(func() *Registry {
	r := NewRegistry()
	r.MustRegister(TextFormatterName, NewTextFormatter())
	r.MustRegister(JSONFormatterName, NewJSONFormatter())

	return r
})

// Default returns the process-wide registry, pre-seeded with the "text"
// and "json" formatters.
func Default() *Registry {
	return defaultRegistry()
}
