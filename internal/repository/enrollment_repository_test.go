package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/example/rekognizer/internal/logging"
	"github.com/example/rekognizer/internal/retry"
)

type transientTestError struct{}

func (transientTestError) Error() string   { return "transient" }
func (transientTestError) Timeout() bool   { return true }
func (transientTestError) Temporary() bool { return true }

func testRepository() *EnrollmentRepository {
	return &EnrollmentRepository{
		logger: zap.NewNop(),
		policy: retry.Policy{Attempts: 3, InitialBackoff: time.Millisecond, MaxBackoff: 2 * time.Millisecond},
	}
}

func TestExecuteWithRetryRetriesTransientErrors(t *testing.T) {
	repo := testRepository()

	attempts := 0
	err := repo.executeWithRetry(context.Background(), "test.operation", func() error {
		attempts++
		if attempts < 2 {
			return transientTestError{}
		}
		return nil
	})

	if err != nil {
		t.Fatalf("expected success, got error: %v", err)
	}
	if attempts != 2 {
		t.Fatalf("expected 2 attempts, got %d", attempts)
	}
}

func TestExecuteWithRetryReturnsOperationError(t *testing.T) {
	repo := testRepository()
	ctx := logging.ContextWithRequestID(context.Background(), "req-2")

	attempts := 0
	err := repo.executeWithRetry(ctx, "test.operation", func() error {
		attempts++
		return errors.New("boom")
	})

	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if attempts != 1 {
		t.Fatalf("expected 1 attempt, got %d", attempts)
	}

	var opErr *logging.OperationError
	if !errors.As(err, &opErr) {
		t.Fatalf("expected OperationError, got %T", err)
	}
	if opErr.Operation != "test.operation" {
		t.Fatalf("unexpected operation: %s", opErr.Operation)
	}
	if opErr.RequestID != "req-2" {
		t.Fatalf("unexpected request id: %s", opErr.RequestID)
	}
}

func TestEnrollmentVector(t *testing.T) {
	e := Enrollment{UserID: 7, Embedding: pq.Float64Array{0.5, -0.25}}
	v := e.Vector()
	if len(v) != 2 || v[0] != 0.5 || v[1] != -0.25 {
		t.Fatalf("unexpected vector %v", v)
	}
	if (Enrollment{}).TableName() != "embeddings" {
		t.Fatal("unexpected table name")
	}
}

func TestAppendAllWithoutEnrollmentsSkipsDatabase(t *testing.T) {
	repo := testRepository()
	if err := repo.AppendAll(context.Background(), nil); err != nil {
		t.Fatalf("expected empty batch to be a no-op, got %v", err)
	}
}
