package models

import "time"

type RunStatus string

const (
	RunningRunStatus         RunStatus = "running"
	CompletedRunStatus       RunStatus = "completed"
	FailedRunStatus          RunStatus = "failed"
	CancelledRunStatus       RunStatus = "cancelled"
	TimedOutRunStatus        RunStatus = "timed_out"
	WaitingApprovalRunStatus RunStatus = "waiting_approval"
	PausedRunStatus          RunStatus = "paused"
)

// Terminal reports whether a run in this status can never advance again.
// waiting_approval and paused are semi-terminal: the run stops but keeps
// its concurrency slot until external intervention.
func (s RunStatus) Terminal() bool {
	switch s {
	case CompletedRunStatus, FailedRunStatus, CancelledRunStatus, TimedOutRunStatus:
		return true
	}
	return false
}

type StepStatus string

const (
	RunningStepStatus         StepStatus = "running"
	RetryingStepStatus        StepStatus = "retrying"
	CompletedStepStatus       StepStatus = "completed"
	FailedStepStatus          StepStatus = "failed"
	SkippedStepStatus         StepStatus = "skipped"
	WaitingApprovalStepStatus StepStatus = "waiting_approval"
)

// RunTriggerInfo records what caused a run to start.
type RunTriggerInfo struct {
	Type    TriggerType            `json:"type"`
	ActorID string                 `json:"actor_id,omitempty"`
	Payload map[string]interface{} `json:"payload,omitempty"`
}

// RunContext is the mutable execution context of a run. StepOutputs,
// Variables and TriggerData merge into one flat lookup structure with
// precedence stepOutputs > variables > triggerData; Inputs sit under the
// "inputs" namespace.
type RunContext struct {
	Inputs      map[string]interface{} `json:"inputs"`
	StepOutputs map[string]interface{} `json:"step_outputs"`
	Variables   map[string]interface{} `json:"variables"`
	TriggerData map[string]interface{} `json:"trigger_data"`
}

// StepExecutionRecord is appended once per visited step, in exact
// execution-order, and mutated only until that step finishes.
type StepExecutionRecord struct {
	StepID     string                 `json:"step_id"`
	StepName   string                 `json:"step_name"`
	Status     StepStatus             `json:"status"`
	RetryCount int                    `json:"retry_count"`
	StartedAt  time.Time              `json:"started_at"`
	FinishedAt *time.Time             `json:"finished_at,omitempty"`
	Input      map[string]interface{} `json:"input,omitempty"`
	Output     interface{}            `json:"output,omitempty"`
	Error      string                 `json:"error,omitempty"`
	SkipReason string                 `json:"skip_reason,omitempty"`
}

// RunError is the terminal error of a failed or timed-out run.
type RunError struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable"`
}

// WorkflowRun is one execution attempt of a workflow. It is owned
// exclusively by the engine for its synchronous lifetime and never mutated
// externally.
type WorkflowRun struct {
	ID              string                `json:"id"`
	WorkflowID      string                `json:"workflow_id"`
	WorkflowVersion int                   `json:"workflow_version"`
	Status          RunStatus             `json:"status"`
	TriggeredBy     RunTriggerInfo        `json:"triggered_by"`
	Context         RunContext            `json:"context"`
	StepResults     []StepExecutionRecord `json:"step_results"`
	RetryCount      int                   `json:"retry_count"`
	MaxRetries      int                   `json:"max_retries"`
	StartedAt       time.Time             `json:"started_at"`
	FinishedAt      *time.Time            `json:"finished_at,omitempty"`
	Error           *RunError             `json:"error,omitempty"`
}

// TriggerMatch pairs a matched workflow with the trigger info and inputs
// that should seed its execution. Ephemeral: produced by the trigger engine
// and consumed immediately.
type TriggerMatch struct {
	Workflow    *WorkflowDefinition
	TriggerInfo RunTriggerInfo
	Inputs      map[string]interface{}
}
