package logging

import (
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// OperationError ties a collaborator failure to the operation and request it belongs to.
// Attempts is set when the operation was retried.
type OperationError struct {
	Operation string
	RequestID string
	Attempts  int
	Err       error
}

func (e *OperationError) Error() string {
	if e == nil || e.Err == nil {
		return ""
	}
	prefix := e.Operation
	if e.RequestID != "" {
		prefix = fmt.Sprintf("%s (request_id=%s)", prefix, e.RequestID)
	}
	if e.Attempts > 1 {
		return fmt.Sprintf("%s after %d attempts: %v", prefix, e.Attempts, e.Err)
	}
	return fmt.Sprintf("%s: %v", prefix, e.Err)
}

func (e *OperationError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Fields returns the error as structured log fields.
func (e *OperationError) Fields() []zap.Field {
	fields := []zap.Field{zap.String("operation", e.Operation), zap.Error(e.Err)}
	if e.RequestID != "" {
		fields = append(fields, zap.String("request_id", e.RequestID))
	}
	if e.Attempts > 1 {
		fields = append(fields, zap.Int("attempts", e.Attempts))
	}
	return fields
}

// NewOperationError wraps err; a nil err stays nil.
func NewOperationError(operation, requestID string, err error) error {
	return NewRetriedOperationError(operation, requestID, 1, err)
}

// NewRetriedOperationError wraps err returned by the last of attempts tries.
func NewRetriedOperationError(operation, requestID string, attempts int, err error) error {
	if err == nil {
		return nil
	}
	return &OperationError{Operation: operation, RequestID: requestID, Attempts: attempts, Err: err}
}

// ErrorFields describes err for logging, expanding the innermost OperationError when present.
func ErrorFields(err error) []zap.Field {
	var opErr *OperationError
	if errors.As(err, &opErr) && opErr.Err != nil {
		return opErr.Fields()
	}
	return []zap.Field{zap.Error(err)}
}
