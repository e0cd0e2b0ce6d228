package runcontext

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
)

type KeyContext string

var (
	keyRunID    KeyContext = "run_id"
	keyWorkerID KeyContext = "worker_id"
)

// DefaultCeiling bounds a run when the submission did not set one
const DefaultCeiling = 30 * time.Minute

// RunBegin initializes a run context with metadata and the wall-clock
// ceiling. A run that outlives the ceiling is cut off at the next stage
// boundary, not killed mid-write.
func RunBegin(parentCtx context.Context, runID uuid.UUID, workerID int, ceiling time.Duration) (context.Context, context.CancelFunc) {
	if ceiling <= 0 {
		ceiling = DefaultCeiling
	}
	ctx, cancel := context.WithTimeout(parentCtx, ceiling)

	ctx = context.WithValue(ctx, keyRunID, runID)
	ctx = context.WithValue(ctx, keyWorkerID, workerID)

	return ctx, cancel
}

// GetRunID extracts the run ID from context
func GetRunID(ctx context.Context) (uuid.UUID, bool) {
	runID, ok := ctx.Value(keyRunID).(uuid.UUID)
	return runID, ok
}

// GetWorkerID extracts the worker ID from context
func GetWorkerID(ctx context.Context) int {
	workerID, ok := ctx.Value(keyWorkerID).(int)
	if !ok {
		return -1
	}
	return workerID
}

// DeadlineExpired reports whether the run context ended because the
// wall-clock ceiling ran out, as opposed to an explicit cancellation.
func DeadlineExpired(ctx context.Context) bool {
	return ctx.Err() == context.DeadlineExceeded
}

// IsNonRetryableError checks if an engine submission error should NOT
// trigger a retry
func IsNonRetryableError(err error) bool {
	if err == nil {
		return false
	}

	errStr := strings.ToLower(err.Error())

	if strings.Contains(errStr, "400") ||
		strings.Contains(errStr, "401") ||
		strings.Contains(errStr, "403") ||
		strings.Contains(errStr, "404") ||
		strings.Contains(errStr, "invalid") ||
		strings.Contains(errStr, "bad request") {
		return true
	}

	if strings.Contains(errStr, "validation failed") ||
		strings.Contains(errStr, "malformed") ||
		strings.Contains(errStr, "parse error") {
		return true
	}

	return false
}
