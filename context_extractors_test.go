package tidelog

import (
	"context"
	"testing"

	"github.com/tidelog/tidelog/internal/constants"
)

type testExtractorKey struct{}

func TestRegisterContextExtractor(t *testing.T) {
	ClearContextExtractors()
	t.Cleanup(ClearContextExtractors)

	RegisterContextExtractor(func(ctx context.Context) []Field {
		if v := ctx.Value(testExtractorKey{}); v != nil {
			return []Field{{Key: "key", Value: v}}
		}

		return nil
	})

	extractors := GlobalContextExtractors()
	if len(extractors) != 1 {
		t.Fatalf("expected 1 extractor, got %d", len(extractors))
	}

	fields := ApplyContextExtractors(context.WithValue(context.Background(), testExtractorKey{}, "value"), extractors...)
	if len(fields) != 1 || fields[0].Key != "key" || fields[0].Value != "value" {
		t.Fatalf("unexpected fields: %+v", fields)
	}
}

func TestRegisterContextExtractorIgnoresNil(t *testing.T) {
	ClearContextExtractors()
	t.Cleanup(ClearContextExtractors)

	RegisterContextExtractor(nil)

	if extractors := GlobalContextExtractors(); len(extractors) != 0 {
		t.Fatalf("expected no extractors, got %d", len(extractors))
	}
}

func TestApplyContextExtractorsSkipsNil(t *testing.T) {
	fields := ApplyContextExtractors(context.Background(), nil, func(context.Context) []Field {
		return []Field{Str("a", "b")}
	})

	if len(fields) != 1 || fields[0].Key != "a" {
		t.Fatalf("unexpected fields: %+v", fields)
	}
}

func TestTraceIDExtractor(t *testing.T) {
	ctx := constants.WithTraceID(context.Background(), "trace-9")

	fields := TraceIDExtractor(ctx)
	if len(fields) != 1 || fields[0].Key != "trace_id" || fields[0].Value != "trace-9" {
		t.Fatalf("unexpected fields: %+v", fields)
	}

	if fields := TraceIDExtractor(context.Background()); fields != nil {
		t.Fatalf("expected nil fields, got %+v", fields)
	}
}

func TestRequestIDExtractor(t *testing.T) {
	ctx := constants.WithRequestID(context.Background(), "req-3")

	fields := RequestIDExtractor(ctx)
	if len(fields) != 1 || fields[0].Key != "request_id" || fields[0].Value != "req-3" {
		t.Fatalf("unexpected fields: %+v", fields)
	}
}
