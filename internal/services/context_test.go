package services_test

import (
	"context"
	"testing"

	"hikfetch/internal/services"
)

func TestContextHelpers(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithJobID(ctx, "8f14e45f-ceea-4e7a-9e5c-2f1d7a0b9c11")
	ctx = services.WithDisplayCode(ctx, "AB12CD34")
	ctx = services.WithRequestID(ctx, "req-123")

	if id, ok := services.JobIDFromContext(ctx); !ok || id != "8f14e45f-ceea-4e7a-9e5c-2f1d7a0b9c11" {
		t.Fatalf("unexpected job id: %v %v", id, ok)
	}
	if code, ok := services.DisplayCodeFromContext(ctx); !ok || code != "AB12CD34" {
		t.Fatalf("unexpected display code: %v %v", code, ok)
	}
	if rid, ok := services.RequestIDFromContext(ctx); !ok || rid != "req-123" {
		t.Fatalf("unexpected request id: %v %v", rid, ok)
	}
}

func TestBlankValuesPreserveContext(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithJobID(ctx, "")
	ctx = services.WithDisplayCode(ctx, "")
	if _, ok := services.JobIDFromContext(ctx); ok {
		t.Fatal("expected no job id value")
	}
	if _, ok := services.DisplayCodeFromContext(ctx); ok {
		t.Fatal("expected no display code value")
	}
}
