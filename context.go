package tidelog

import (
	"context"
	"sync"

	"github.com/tidelog/tidelog/internal/constants"
)

// ContextExtractor transforms a context into structured fields.
type ContextExtractor func(ctx context.Context) []Field

type contextExtractorRegistry struct {
	mu         sync.RWMutex
	extractors []ContextExtractor
}

//nolint:gochecknoglobals // package-wide registry ensures consistent extractor state.
var contextExtractorRegistryOnce = sync.OnceValue(func() *contextExtractorRegistry {
	return &contextExtractorRegistry{}
})

// RegisterContextExtractor adds a global context extractor that runs for
// every WithContext call.
func RegisterContextExtractor(extractor ContextExtractor) {
	contextExtractorRegistryOnce().register(extractor)
}

// ClearContextExtractors removes all global context extractors.
func ClearContextExtractors() {
	contextExtractorRegistryOnce().reset()
}

// GlobalContextExtractors returns the currently registered global
// extractors.
func GlobalContextExtractors() []ContextExtractor {
	return contextExtractorRegistryOnce().snapshot()
}

// ApplyContextExtractors executes the provided extractors against the
// context.
func ApplyContextExtractors(ctx context.Context, extractors ...ContextExtractor) []Field {
	if len(extractors) == 0 {
		return nil
	}

	var fields []Field

	for _, extractor := range extractors {
		if extractor == nil {
			continue
		}

		if extracted := extractor(ctx); len(extracted) > 0 {
			fields = append(fields, extracted...)
		}
	}

	return fields
}

// TraceIDExtractor surfaces the trace identifier middleware placed in the
// context as a trace_id field.
func TraceIDExtractor(ctx context.Context) []Field {
	if id, ok := constants.TraceIDFrom(ctx); ok {
		return []Field{Str("trace_id", id)}
	}

	return nil
}

// RequestIDExtractor surfaces the request identifier middleware placed in
// the context as a request_id field.
func RequestIDExtractor(ctx context.Context) []Field {
	if id, ok := constants.RequestIDFrom(ctx); ok {
		return []Field{Str("request_id", id)}
	}

	return nil
}

func (r *contextExtractorRegistry) register(extractor ContextExtractor) {
	if extractor == nil {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.extractors = append(r.extractors, extractor)
}

func (r *contextExtractorRegistry) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.extractors = nil
}

func (r *contextExtractorRegistry) snapshot() []ContextExtractor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(r.extractors) == 0 {
		return nil
	}

	cloned := make([]ContextExtractor, len(r.extractors))
	copy(cloned, r.extractors)

	return cloned
}
