package logging

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestOperationErrorFormatsRequestID(t *testing.T) {
	base := errors.New("connection refused")
	err := NewOperationError("repository.append", "req-9", base)

	if got, want := err.Error(), "repository.append (request_id=req-9): connection refused"; got != want {
		t.Fatalf("unexpected message: got %q want %q", got, want)
	}
	if !errors.Is(err, base) {
		t.Fatal("expected wrapped error to match base error")
	}
}

func TestNewOperationErrorNil(t *testing.T) {
	if err := NewOperationError("noop", "", nil); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
}

func TestNewLoggerFallsBackToInfo(t *testing.T) {
	logger, err := NewLogger("not-a-level")
	if err != nil {
		t.Fatalf("expected logger, got error: %v", err)
	}
	if logger.Core().Enabled(-1) {
		t.Fatal("debug should be disabled at info level")
	}
}

func TestRequestIDRoundTrip(t *testing.T) {
	ctx := ContextWithRequestID(context.Background(), "req-1")
	if got := RequestID(ctx); got != "req-1" {
		t.Fatalf("expected req-1, got %q", got)
	}
	if got := RequestID(context.Background()); got != "" {
		t.Fatalf("expected empty id, got %q", got)
	}
}

func TestEnsureRequestIDKeepsExisting(t *testing.T) {
	ctx, id := EnsureRequestID(ContextWithRequestID(context.Background(), "req-2"))
	if id != "req-2" || RequestID(ctx) != "req-2" {
		t.Fatalf("expected existing id to be kept, got %q", id)
	}

	ctx, id = EnsureRequestID(context.Background())
	if id == "" || RequestID(ctx) != id {
		t.Fatalf("expected a minted id stored in context, got %q", id)
	}
}

func TestRetriedOperationErrorReportsAttempts(t *testing.T) {
	err := NewRetriedOperationError("events.publish", "", 3, errors.New("i/o timeout"))
	if got, want := err.Error(), "events.publish after 3 attempts: i/o timeout"; got != want {
		t.Fatalf("unexpected message: got %q want %q", got, want)
	}

	fields := ErrorFields(fmt.Errorf("identify: %w", err))
	if len(fields) != 3 || fields[0].Key != "operation" || fields[2].Key != "attempts" {
		t.Fatalf("unexpected fields: %+v", fields)
	}
	if plain := ErrorFields(errors.New("boom")); len(plain) != 1 || plain[0].Key != "error" {
		t.Fatalf("unexpected fields for plain error: %+v", plain)
	}
}
