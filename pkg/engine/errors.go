package engine

import (
	"fmt"

	"github.com/pkg/errors"
)

type ErrorCode string

const (
	CodeConcurrencyLimitExceeded ErrorCode = "CONCURRENCY_LIMIT_EXCEEDED"
	CodeMissingInput             ErrorCode = "MISSING_INPUT"
	CodeRunNotFound              ErrorCode = "RUN_NOT_FOUND"
	CodeInvalidStatus            ErrorCode = "INVALID_STATUS"
	CodeMaxRetriesExceeded       ErrorCode = "MAX_RETRIES_EXCEEDED"
	CodeStepExecutionFailed      ErrorCode = "STEP_EXECUTION_FAILED"
	CodeUnknownActionType        ErrorCode = "UNKNOWN_ACTION_TYPE"
	CodeExecutionTimeout         ErrorCode = "EXECUTION_TIMEOUT"
)

// ExecutionError is the engine's structural failure type.
type ExecutionError struct {
	Code      ErrorCode
	Message   string
	Retryable bool
	StepID    string
}

func (e *ExecutionError) Error() string {
	if e.StepID != "" {
		return fmt.Sprintf("%s: %s (step %s)", e.Code, e.Message, e.StepID)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func newError(code ErrorCode, format string, args ...interface{}) *ExecutionError {
	return &ExecutionError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// ErrApprovalRequired is the control-flow signal raised by approval steps.
// It is never a failure and must not be reported as one.
var ErrApprovalRequired = errors.New("approval required")
