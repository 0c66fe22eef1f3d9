package service

import (
	"context"

	"github.com/nself-org/flowcore/internal/log"
	"github.com/nself-org/flowcore/pkg/engine"
	"github.com/nself-org/flowcore/pkg/models"
	"github.com/nself-org/flowcore/pkg/storage"
	"github.com/nself-org/flowcore/pkg/trigger"
	"github.com/pkg/errors"
)

// ErrNoMatch is returned when a trigger evaluation rejects the request.
var ErrNoMatch = errors.New("trigger did not match")

// WorkflowService wires the trigger engine, the execution engine, the
// dispatcher and an optional archive into one embeddable facade. Finished
// runs and their audit entries are archived from the engine's completion
// callback.
type WorkflowService struct {
	triggers   *trigger.Engine
	engine     *engine.Engine
	dispatcher *engine.Dispatcher
	scheduler  *trigger.Scheduler
	archive    storage.Archive
}

// NewWorkflowService builds the full orchestration stack. archive may be nil
// for hosts that keep run history in memory only.
func NewWorkflowService(archive storage.Archive, opts ...engine.Option) *WorkflowService {
	logger := log.GetLogger()
	s := &WorkflowService{
		triggers: trigger.New(logger),
		archive:  archive,
	}

	engOpts := []engine.Option{engine.WithLogger(logger)}
	if archive != nil {
		engOpts = append(engOpts, engine.WithRunCompletedCallback(s.archiveRun))
	}
	engOpts = append(engOpts, opts...)
	s.engine = engine.New(engOpts...)
	s.dispatcher = engine.NewDispatcher(s.engine, 0, 0, logger)
	s.scheduler = trigger.NewScheduler(s.triggers, s.dispatcher, logger)
	return s
}

func (s *WorkflowService) archiveRun(run models.WorkflowRun) {
	if err := s.archive.SaveRun(run); err != nil {
		log.GetLogger().Errorf("Failed to archive run %s: %v", run.ID, err)
		return
	}
	entries := s.engine.GetAuditLog(engine.AuditFilter{RunID: run.ID})
	if err := s.archive.SaveAuditEntries(entries); err != nil {
		log.GetLogger().Errorf("Failed to archive audit entries for run %s: %v", run.ID, err)
	}
}

// StartScheduler begins minute-boundary schedule evaluation.
func (s *WorkflowService) StartScheduler() {
	s.scheduler.Start()
}

// Stop halts the scheduler and drains in-flight dispatched runs.
func (s *WorkflowService) Stop() {
	s.scheduler.Stop()
	s.dispatcher.Stop()
	if s.archive != nil {
		if err := s.archive.Close(); err != nil {
			log.GetLogger().Errorf("Failed to close archive: %v", err)
		}
	}
}

// Handlers exposes the action handler registry for custom action types.
func (s *WorkflowService) Handlers() *engine.HandlerRegistry {
	return s.engine.Handlers()
}

func (s *WorkflowService) RegisterWorkflow(wf *models.WorkflowDefinition) error {
	return s.triggers.Register(wf)
}

func (s *WorkflowService) UnregisterWorkflow(id string) {
	s.triggers.Unregister(id)
}

func (s *WorkflowService) GetWorkflow(id string) (*models.WorkflowDefinition, bool) {
	return s.triggers.Get(id)
}

func (s *WorkflowService) ListWorkflows() []*models.WorkflowDefinition {
	return s.triggers.List()
}

// PublishEvent evaluates an application event against every registered
// workflow and dispatches each match asynchronously. Returns how many runs
// were enqueued.
func (s *WorkflowService) PublishEvent(eventType string, eventData map[string]interface{}) int {
	dispatched := 0
	for _, match := range s.triggers.EvaluateEvent(eventType, eventData) {
		if err := s.dispatcher.Submit(match); err != nil {
			log.GetLogger().Errorf("Dropping event-triggered run of workflow %s: %v", match.Workflow.ID, err)
			continue
		}
		dispatched++
	}
	return dispatched
}

// HandleWebhook evaluates and, on match, synchronously executes a
// webhook-triggered workflow so the caller receives the run outcome.
func (s *WorkflowService) HandleWebhook(ctx context.Context, workflowID, method string, body map[string]interface{}, headers map[string]string) (*models.WorkflowRun, error) {
	match := s.triggers.EvaluateWebhook(workflowID, method, body, headers)
	if match == nil {
		return nil, ErrNoMatch
	}
	return s.engine.StartRun(ctx, match.Workflow, match.TriggerInfo, match.Inputs)
}

// TriggerManual evaluates a manual request and, on match, synchronously
// executes the workflow.
func (s *WorkflowService) TriggerManual(ctx context.Context, workflowID, userID string, roles []string, inputs map[string]interface{}) (*models.WorkflowRun, error) {
	match := s.triggers.EvaluateManual(workflowID, userID, roles, inputs)
	if match == nil {
		return nil, ErrNoMatch
	}
	return s.engine.StartRun(ctx, match.Workflow, match.TriggerInfo, match.Inputs)
}

func (s *WorkflowService) GetRun(runID string) (*models.WorkflowRun, error) {
	return s.engine.GetRun(runID)
}

func (s *WorkflowService) ListRuns(filter engine.RunFilter) []models.WorkflowRun {
	return s.engine.ListRuns(filter)
}

func (s *WorkflowService) CancelRun(runID string) error {
	return s.engine.CancelRun(runID)
}

// RetryRun re-executes a failed run against its workflow's current
// registered definition.
func (s *WorkflowService) RetryRun(ctx context.Context, runID string) (*models.WorkflowRun, error) {
	run, err := s.engine.GetRun(runID)
	if err != nil {
		return nil, err
	}
	wf, ok := s.triggers.Get(run.WorkflowID)
	if !ok {
		return nil, errors.Errorf("workflow %s is no longer registered", run.WorkflowID)
	}
	return s.engine.RetryRun(ctx, runID, wf)
}

func (s *WorkflowService) AuditLog(filter engine.AuditFilter) []models.WorkflowAuditEntry {
	return s.engine.GetAuditLog(filter)
}
