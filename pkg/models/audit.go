package models

import "time"

type AuditEventType string

const (
	AuditRunStarted    AuditEventType = "workflow.run_started"
	AuditRunCompleted  AuditEventType = "workflow.run_completed"
	AuditRunFailed     AuditEventType = "workflow.run_failed"
	AuditRunCancelled  AuditEventType = "workflow.run_cancelled"
	AuditRunRetried    AuditEventType = "workflow.run_retried"
	AuditRunTimedOut   AuditEventType = "workflow.run_timed_out"
	AuditStepCompleted AuditEventType = "workflow.step_completed"
	AuditStepFailed    AuditEventType = "workflow.step_failed"
	AuditStepSkipped   AuditEventType = "workflow.step_skipped"
	AuditStepRetried   AuditEventType = "workflow.step_retried"
)

// WorkflowAuditEntry is one append-only audit record. The in-memory log has
// no delivery or persistence guarantee; callers needing durability snapshot
// it into an archive.
type WorkflowAuditEntry struct {
	ID          string                 `json:"id"`
	EventType   AuditEventType         `json:"event_type"`
	WorkflowID  string                 `json:"workflow_id"`
	RunID       string                 `json:"run_id,omitempty"`
	StepID      string                 `json:"step_id,omitempty"`
	ActorID     string                 `json:"actor_id,omitempty"`
	Timestamp   time.Time              `json:"timestamp"`
	Description string                 `json:"description"`
	Data        map[string]interface{} `json:"data,omitempty"`
}
