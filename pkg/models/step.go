package models

// Built-in action types handled inline by the execution engine. Any other
// type is dispatched through the action handler registry.
const (
	ActionDelay             = "delay"
	ActionSetVariable       = "set_variable"
	ActionConditionalBranch = "conditional_branch"
	ActionApproval          = "approval"
)

type RetryBackoff string

const (
	FixedBackoff       RetryBackoff = "fixed"
	LinearBackoff      RetryBackoff = "linear"
	ExponentialBackoff RetryBackoff = "exponential"
)

// Action is a tagged variant keyed by Type. The built-in fields are used by
// the engine's inline handlers; Params carries everything a custom handler
// needs.
type Action struct {
	Type string `json:"type"`
	// delay
	DurationMs int64 `json:"duration_ms,omitempty"`
	// set_variable
	VariableName string      `json:"variable_name,omitempty"`
	Value        interface{} `json:"value,omitempty"`
	// conditional_branch
	Branches []Branch `json:"branches,omitempty"`
	// approval
	Message string `json:"message,omitempty"`
	// custom actions
	Params map[string]interface{} `json:"params,omitempty"`
}

// Branch names a conditional_branch outcome; the first branch whose
// conditions all hold wins.
type Branch struct {
	Name       string      `json:"name"`
	Conditions []Condition `json:"conditions,omitempty"`
}

type StepSettings struct {
	RetryAttempts   int          `json:"retry_attempts"`
	RetryDelayMs    int64        `json:"retry_delay_ms"`
	RetryBackoff    RetryBackoff `json:"retry_backoff,omitempty"`
	MaxRetryDelayMs int64        `json:"max_retry_delay_ms,omitempty"`
	SkipOnFailure   bool         `json:"skip_on_failure"`
	// IdempotencyKey is a template interpolated against the merged run
	// context; identical resolved keys are executed at most once per
	// engine lifetime.
	IdempotencyKey string `json:"idempotency_key,omitempty"`
}

// WorkflowStep is one unit of work within a workflow.
type WorkflowStep struct {
	ID           string            `json:"id"`
	Name         string            `json:"name"`
	Action       Action            `json:"action"`
	DependsOn    []string          `json:"depends_on,omitempty"`
	Conditions   []Condition       `json:"conditions,omitempty"`
	InputMapping map[string]string `json:"input_mapping,omitempty"` // context path -> input name
	OutputKey    string            `json:"output_key,omitempty"`
	Settings     StepSettings      `json:"settings"`
}
