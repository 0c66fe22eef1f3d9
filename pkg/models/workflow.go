package models

import "time"

type TriggerType string

const (
	EventTriggerType    TriggerType = "event"
	ScheduleTriggerType TriggerType = "schedule"
	WebhookTriggerType  TriggerType = "webhook"
	ManualTriggerType   TriggerType = "manual"
)

// TriggerConfig is a tagged variant: Type selects which of the embedded
// configurations is populated.
type TriggerConfig struct {
	Type     TriggerType      `json:"type"`
	Event    *EventTrigger    `json:"event,omitempty"`
	Schedule *ScheduleTrigger `json:"schedule,omitempty"`
	Webhook  *WebhookTrigger  `json:"webhook,omitempty"`
	Manual   *ManualTrigger   `json:"manual,omitempty"`
}

// EventTrigger matches application events by type, with optional allow-list
// filters. An empty filter means no restriction.
type EventTrigger struct {
	EventType  string      `json:"event_type"`
	ChannelIDs []string    `json:"channel_ids,omitempty"`
	UserIDs    []string    `json:"user_ids,omitempty"`
	Conditions []Condition `json:"conditions,omitempty"`
}

// ScheduleTrigger fires on a 5-field cron expression. Timezone is carried
// for forward compatibility but evaluation is UTC only.
type ScheduleTrigger struct {
	CronExpr  string     `json:"cron_expr"`
	Timezone  string     `json:"timezone,omitempty"`
	StartDate *time.Time `json:"start_date,omitempty"`
	EndDate   *time.Time `json:"end_date,omitempty"`
}

type WebhookTrigger struct {
	Methods     []string    `json:"methods,omitempty"`
	ContentType string      `json:"content_type,omitempty"`
	Conditions  []Condition `json:"conditions,omitempty"`
}

type ManualTrigger struct {
	AllowedUserIDs []string    `json:"allowed_user_ids,omitempty"`
	AllowedRoles   []string    `json:"allowed_roles,omitempty"`
	Conditions     []Condition `json:"conditions,omitempty"`
}

// InputDef declares a named workflow input. Required inputs missing at
// start time fall back to DefaultValue when present.
type InputDef struct {
	Name         string      `json:"name"`
	Required     bool        `json:"required"`
	DefaultValue interface{} `json:"default_value,omitempty"`
}

type WorkflowSettings struct {
	MaxConcurrentExecutions int   `json:"max_concurrent_executions"`
	MaxRetryAttempts        int   `json:"max_retry_attempts"`
	MaxExecutionTimeMs      int64 `json:"max_execution_time_ms"`
	ContinueOnFailure       bool  `json:"continue_on_failure"`
	AuditInputsOutputs      bool  `json:"audit_inputs_outputs"`
}

// WorkflowDefinition is a declarative workflow: one trigger plus an ordered,
// dependency-linked list of steps. Definitions are immutable for the
// lifetime of any run that references them.
type WorkflowDefinition struct {
	ID       string           `json:"id"`
	Name     string           `json:"name"`
	Version  int              `json:"version"`
	Enabled  bool             `json:"enabled"`
	Trigger  TriggerConfig    `json:"trigger"`
	Steps    []WorkflowStep   `json:"steps"`
	Inputs   []InputDef       `json:"inputs,omitempty"`
	Settings WorkflowSettings `json:"settings"`
}
