// Package engine is the workflow execution core: it owns run lifecycle,
// step ordering, retries, idempotency, concurrency limits, timeouts and the
// audit log. All real side effects are injected through the action handler
// registry; persistence and transport belong to collaborators.
package engine

import (
	"context"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nself-org/flowcore/pkg/condition"
	"github.com/nself-org/flowcore/pkg/models"
	"github.com/pkg/errors"
)

// Logger defines the logging interface for the Engine.
type Logger interface {
	Infof(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

type noopLogger struct{}

func (noopLogger) Infof(string, ...interface{})  {}
func (noopLogger) Errorf(string, ...interface{}) {}

// SleepFunc is the injectable suspension primitive used for retry backoff
// and the delay action, so timing is testable without wall-clock waits.
type SleepFunc func(ctx context.Context, d time.Duration) error

func defaultSleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// ApprovalCallback is fired exactly once per approval-action execution; the
// resume path is external.
type ApprovalCallback func(runID, stepID string, action models.Action)

// RunCompletedCallback is fired once per run reaching completed or failed,
// never for cancelled, timed_out, waiting_approval or paused.
type RunCompletedCallback func(run models.WorkflowRun)

// Engine is the workflow execution state machine. Safe for concurrent use:
// multiple runs may be in flight at once, bounded per workflow by
// MaxConcurrentExecutions.
type Engine struct {
	mu         sync.Mutex
	runs       map[string]*models.WorkflowRun
	runOrder   []string
	activeRuns map[string]map[string]struct{} // workflow id -> run ids

	auditMu sync.Mutex
	audit   []models.WorkflowAuditEntry

	keys     *keyTracker
	registry *HandlerRegistry

	sleep  SleepFunc
	now    func() time.Time
	logger Logger

	onApprovalRequest ApprovalCallback
	onRunCompleted    RunCompletedCallback
}

type Option func(*Engine)

func WithLogger(l Logger) Option {
	return func(e *Engine) { e.logger = l }
}

func WithSleep(s SleepFunc) Option {
	return func(e *Engine) { e.sleep = s }
}

func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func WithApprovalCallback(cb ApprovalCallback) Option {
	return func(e *Engine) { e.onApprovalRequest = cb }
}

func WithRunCompletedCallback(cb RunCompletedCallback) Option {
	return func(e *Engine) { e.onRunCompleted = cb }
}

func WithIdempotencyCapacity(n int) Option {
	return func(e *Engine) { e.keys = newKeyTracker(n) }
}

func New(opts ...Option) *Engine {
	e := &Engine{
		runs:       make(map[string]*models.WorkflowRun),
		activeRuns: make(map[string]map[string]struct{}),
		keys:       newKeyTracker(0),
		registry:   NewHandlerRegistry(),
		sleep:      defaultSleep,
		now:        time.Now,
		logger:     noopLogger{},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Handlers exposes the action handler registry for collaborator wiring.
func (e *Engine) Handlers() *HandlerRegistry {
	return e.registry
}

// Clear drops all runs, audit entries and idempotency keys. Intended for
// embedding hosts that recycle the engine between test scenarios.
func (e *Engine) Clear() {
	e.mu.Lock()
	e.runs = make(map[string]*models.WorkflowRun)
	e.runOrder = nil
	e.activeRuns = make(map[string]map[string]struct{})
	e.mu.Unlock()

	e.auditMu.Lock()
	e.audit = nil
	e.auditMu.Unlock()

	e.keys = newKeyTracker(e.keys.capacity)
}

// StartRun executes a workflow synchronously until it reaches a terminal or
// semi-terminal state, and returns a snapshot of the finished run. A non-nil
// error means no run object was created (concurrency gate or missing input).
func (e *Engine) StartRun(ctx context.Context, wf *models.WorkflowDefinition, trigger models.RunTriggerInfo, inputs map[string]interface{}) (*models.WorkflowRun, error) {
	return e.startRun(ctx, wf, trigger, inputs, 0)
}

func (e *Engine) startRun(ctx context.Context, wf *models.WorkflowDefinition, trigger models.RunTriggerInfo, inputs map[string]interface{}, retryCount int) (*models.WorkflowRun, error) {
	// The concurrency gate is checked before anything else, so a caller at
	// the limit always sees the limit error, even with invalid inputs.
	e.mu.Lock()
	active := e.activeRuns[wf.ID]
	if wf.Settings.MaxConcurrentExecutions > 0 && len(active) >= wf.Settings.MaxConcurrentExecutions {
		e.mu.Unlock()
		return nil, newError(CodeConcurrencyLimitExceeded,
			"workflow %s already has %d active runs", wf.ID, len(active))
	}
	resolved, err := e.resolveInputs(wf, inputs)
	if err != nil {
		e.mu.Unlock()
		return nil, err
	}

	run := &models.WorkflowRun{
		ID:              uuid.NewString(),
		WorkflowID:      wf.ID,
		WorkflowVersion: wf.Version,
		Status:          models.RunningRunStatus,
		TriggeredBy:     trigger,
		Context: models.RunContext{
			Inputs:      resolved,
			StepOutputs: make(map[string]interface{}),
			Variables:   make(map[string]interface{}),
			TriggerData: copyMap(trigger.Payload),
		},
		RetryCount: retryCount,
		MaxRetries: wf.Settings.MaxRetryAttempts,
		StartedAt:  e.now(),
	}

	if active == nil {
		active = make(map[string]struct{})
		e.activeRuns[wf.ID] = active
	}
	active[run.ID] = struct{}{}
	e.runs[run.ID] = run
	e.runOrder = append(e.runOrder, run.ID)
	e.mu.Unlock()

	e.appendAudit(models.WorkflowAuditEntry{
		EventType:   models.AuditRunStarted,
		WorkflowID:  wf.ID,
		RunID:       run.ID,
		ActorID:     trigger.ActorID,
		Description: "Run started",
		Data:        map[string]interface{}{"trigger_type": string(trigger.Type), "retry_count": retryCount},
	})
	e.logger.Infof("Started run %s for workflow %s (trigger %s)", run.ID, wf.ID, trigger.Type)

	execErr := e.executeSteps(ctx, wf, run)
	e.finishRun(wf, run, execErr)

	return e.snapshot(run), nil
}

// resolveInputs validates declared inputs and fills defaults for missing
// required ones.
func (e *Engine) resolveInputs(wf *models.WorkflowDefinition, inputs map[string]interface{}) (map[string]interface{}, error) {
	resolved := copyMap(inputs)
	if resolved == nil {
		resolved = make(map[string]interface{})
	}
	for _, def := range wf.Inputs {
		if _, ok := resolved[def.Name]; ok || !def.Required {
			continue
		}
		if def.DefaultValue != nil {
			resolved[def.Name] = def.DefaultValue
			continue
		}
		return nil, newError(CodeMissingInput, "required input %q missing", def.Name)
	}
	return resolved, nil
}

// finishRun settles the run's terminal state, frees the concurrency slot and
// fires the completion callback.
func (e *Engine) finishRun(wf *models.WorkflowDefinition, run *models.WorkflowRun, execErr error) {
	e.mu.Lock()
	status := run.Status
	switch {
	// Only a still-running run settles from execErr. A run already moved to
	// waiting_approval, paused, cancelled or timed_out keeps that status.
	case execErr != nil && status == models.RunningRunStatus:
		run.Status = models.FailedRunStatus
		var xe *ExecutionError
		if errors.As(execErr, &xe) {
			run.Error = &models.RunError{Code: string(xe.Code), Message: xe.Message, Retryable: xe.Retryable}
		} else {
			run.Error = &models.RunError{Code: string(CodeStepExecutionFailed), Message: execErr.Error()}
		}
	case execErr == nil && status == models.RunningRunStatus:
		run.Status = models.CompletedRunStatus
	}
	status = run.Status
	if status.Terminal() && run.FinishedAt == nil {
		t := e.now()
		run.FinishedAt = &t
	}
	if status != models.WaitingApprovalRunStatus && status != models.PausedRunStatus {
		delete(e.activeRuns[run.WorkflowID], run.ID)
	}
	e.mu.Unlock()

	switch status {
	case models.CompletedRunStatus:
		e.appendAudit(models.WorkflowAuditEntry{
			EventType:   models.AuditRunCompleted,
			WorkflowID:  wf.ID,
			RunID:       run.ID,
			Description: "Run completed",
		})
		e.logger.Infof("Run %s completed", run.ID)
	case models.FailedRunStatus:
		e.appendAudit(models.WorkflowAuditEntry{
			EventType:   models.AuditRunFailed,
			WorkflowID:  wf.ID,
			RunID:       run.ID,
			Description: "Run failed",
			Data:        map[string]interface{}{"error": run.Error.Message, "code": run.Error.Code},
		})
		e.logger.Errorf("Run %s failed: %s", run.ID, run.Error.Message)
	}

	if e.onRunCompleted != nil &&
		(status == models.CompletedRunStatus || status == models.FailedRunStatus) {
		e.onRunCompleted(*e.snapshot(run))
	}
}

// executeSteps walks the resolved execution order. Single-pass scheduling:
// a step skipped for unsatisfied dependencies never counts as executed and
// so cannot unblock its own dependents later in the walk.
func (e *Engine) executeSteps(ctx context.Context, wf *models.WorkflowDefinition, run *models.WorkflowRun) error {
	order := ResolveExecutionOrder(wf.Steps)
	// satisfied holds steps whose dependents may proceed: executed steps
	// (whatever their outcome) and idempotency-deduplicated steps. Steps
	// skipped for unmet conditions or unsatisfied dependencies do not
	// satisfy their dependents.
	satisfied := make(map[string]bool, len(order))

	for _, step := range order {
		switch e.statusOf(run) {
		case models.CancelledRunStatus, models.WaitingApprovalRunStatus:
			return nil
		}

		if !depsSatisfied(step, satisfied) {
			e.appendStepRecord(run, models.StepExecutionRecord{
				StepID:     step.ID,
				StepName:   step.Name,
				Status:     models.SkippedStepStatus,
				StartedAt:  e.now(),
				SkipReason: "Dependencies not satisfied",
			})
			continue
		}

		merged := e.lockedMergedContext(run)
		if len(step.Conditions) > 0 && !condition.EvaluateAll(step.Conditions, merged) {
			e.appendStepRecord(run, models.StepExecutionRecord{
				StepID:     step.ID,
				StepName:   step.Name,
				Status:     models.SkippedStepStatus,
				StartedAt:  e.now(),
				SkipReason: "Conditions not met",
			})
			e.appendAudit(models.WorkflowAuditEntry{
				EventType:   models.AuditStepSkipped,
				WorkflowID:  wf.ID,
				RunID:       run.ID,
				StepID:      step.ID,
				Description: "Conditions not met",
			})
			continue
		}

		if step.Settings.IdempotencyKey != "" {
			keyCtx := copyMap(merged)
			keyCtx["runId"] = run.ID
			key := interpolate(step.Settings.IdempotencyKey, keyCtx)
			if e.keys.CheckAndRecord(key) {
				e.appendStepRecord(run, models.StepExecutionRecord{
					StepID:     step.ID,
					StepName:   step.Name,
					Status:     models.SkippedStepStatus,
					StartedAt:  e.now(),
					SkipReason: "Duplicate idempotency key: " + key,
				})
				e.appendAudit(models.WorkflowAuditEntry{
					EventType:   models.AuditStepSkipped,
					WorkflowID:  wf.ID,
					RunID:       run.ID,
					StepID:      step.ID,
					Description: "Duplicate idempotency key: " + key,
				})
				satisfied[step.ID] = true
				continue
			}
		}

		err := e.executeStep(ctx, wf, run, step)
		satisfied[step.ID] = true
		if err != nil {
			return err
		}

		switch e.statusOf(run) {
		case models.WaitingApprovalRunStatus, models.PausedRunStatus:
			return nil
		}

		if wf.Settings.MaxExecutionTimeMs > 0 {
			elapsed := e.now().Sub(run.StartedAt)
			if elapsed > time.Duration(wf.Settings.MaxExecutionTimeMs)*time.Millisecond {
				e.mu.Lock()
				run.Status = models.TimedOutRunStatus
				run.Error = &models.RunError{
					Code:      string(CodeExecutionTimeout),
					Message:   "run exceeded max execution time",
					Retryable: true,
				}
				e.mu.Unlock()
				e.appendAudit(models.WorkflowAuditEntry{
					EventType:   models.AuditRunTimedOut,
					WorkflowID:  wf.ID,
					RunID:       run.ID,
					Description: "Run exceeded max execution time",
					Data:        map[string]interface{}{"elapsed_ms": elapsed.Milliseconds()},
				})
				return nil
			}
		}
	}
	return nil
}

func depsSatisfied(step models.WorkflowStep, satisfied map[string]bool) bool {
	for _, dep := range step.DependsOn {
		if !satisfied[dep] {
			return false
		}
	}
	return true
}

// executeStep runs one step with its retry loop, attempts numbered
// 1..RetryAttempts+1.
func (e *Engine) executeStep(ctx context.Context, wf *models.WorkflowDefinition, run *models.WorkflowRun, step models.WorkflowStep) error {
	rec := models.StepExecutionRecord{
		StepID:    step.ID,
		StepName:  step.Name,
		Status:    models.RunningStepStatus,
		StartedAt: e.now(),
	}
	if wf.Settings.AuditInputsOutputs {
		rec.Input = resolveInputMapping(step.InputMapping, e.lockedMergedContext(run))
	}
	idx := e.appendStepRecord(run, rec)

	attempts := step.Settings.RetryAttempts + 1
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			retry := attempt - 1
			e.updateStepRecord(run, idx, func(r *models.StepExecutionRecord) {
				r.Status = models.RetryingStepStatus
				r.RetryCount = retry
			})
			e.appendAudit(models.WorkflowAuditEntry{
				EventType:   models.AuditStepRetried,
				WorkflowID:  wf.ID,
				RunID:       run.ID,
				StepID:      step.ID,
				Description: "Step retried",
				Data:        map[string]interface{}{"attempt": attempt},
			})
			if err := e.sleep(ctx, RetryDelay(step.Settings, attempt)); err != nil {
				lastErr = err
				break
			}
		}

		result, err := e.executeAction(ctx, run, step)
		if err == nil {
			finished := e.now()
			e.mu.Lock()
			if step.OutputKey != "" {
				run.Context.StepOutputs[step.OutputKey] = result
			}
			e.mu.Unlock()
			e.updateStepRecord(run, idx, func(r *models.StepExecutionRecord) {
				r.Status = models.CompletedStepStatus
				r.FinishedAt = &finished
				if wf.Settings.AuditInputsOutputs {
					r.Output = result
				}
			})
			e.appendAudit(models.WorkflowAuditEntry{
				EventType:   models.AuditStepCompleted,
				WorkflowID:  wf.ID,
				RunID:       run.ID,
				StepID:      step.ID,
				Description: "Step completed",
				Data:        map[string]interface{}{"duration_ms": finished.Sub(rec.StartedAt).Milliseconds()},
			})
			return nil
		}

		if errors.Is(err, ErrApprovalRequired) {
			e.updateStepRecord(run, idx, func(r *models.StepExecutionRecord) {
				r.Status = models.WaitingApprovalStepStatus
			})
			e.mu.Lock()
			run.Status = models.WaitingApprovalRunStatus
			e.mu.Unlock()
			e.logger.Infof("Run %s waiting for approval at step %s", run.ID, step.ID)
			return nil
		}

		lastErr = err
		e.logger.Errorf("Step %s attempt %d/%d failed: %v", step.ID, attempt, attempts, err)
	}

	finished := e.now()
	skipped := step.Settings.SkipOnFailure || wf.Settings.ContinueOnFailure
	e.updateStepRecord(run, idx, func(r *models.StepExecutionRecord) {
		r.Status = models.FailedStepStatus
		r.FinishedAt = &finished
		r.Error = "STEP_FAILED: " + lastErr.Error()
		if skipped {
			r.Status = models.SkippedStepStatus
			r.SkipReason = "Step failed; run continued per failure policy"
		}
	})
	e.appendAudit(models.WorkflowAuditEntry{
		EventType:   models.AuditStepFailed,
		WorkflowID:  wf.ID,
		RunID:       run.ID,
		StepID:      step.ID,
		Description: "Step failed after " + strconv.Itoa(attempts) + " attempts",
		Data:        map[string]interface{}{"error": lastErr.Error(), "skipped": skipped},
	})
	if skipped {
		return nil
	}
	return &ExecutionError{
		Code:    CodeStepExecutionFailed,
		Message: lastErr.Error(),
		StepID:  step.ID,
	}
}

// CancelRun cancels a running, paused or approval-gated run. Cancellation is
// cooperative: an in-flight step finishes before it takes effect.
func (e *Engine) CancelRun(runID string) error {
	e.mu.Lock()
	run, ok := e.runs[runID]
	if !ok {
		e.mu.Unlock()
		return newError(CodeRunNotFound, "run %s not found", runID)
	}
	switch run.Status {
	case models.RunningRunStatus, models.PausedRunStatus, models.WaitingApprovalRunStatus:
	default:
		status := run.Status
		e.mu.Unlock()
		return newError(CodeInvalidStatus, "cannot cancel run in status %s", status)
	}
	run.Status = models.CancelledRunStatus
	t := e.now()
	run.FinishedAt = &t
	delete(e.activeRuns[run.WorkflowID], runID)
	workflowID := run.WorkflowID
	e.mu.Unlock()

	e.appendAudit(models.WorkflowAuditEntry{
		EventType:   models.AuditRunCancelled,
		WorkflowID:  workflowID,
		RunID:       runID,
		Description: "Run cancelled",
	})
	e.logger.Infof("Run %s cancelled", runID)
	return nil
}

// RetryRun starts a brand-new run from a failed one, reusing its original
// trigger and inputs. The original run is left untouched.
func (e *Engine) RetryRun(ctx context.Context, runID string, wf *models.WorkflowDefinition) (*models.WorkflowRun, error) {
	e.mu.Lock()
	orig, ok := e.runs[runID]
	if !ok {
		e.mu.Unlock()
		return nil, newError(CodeRunNotFound, "run %s not found", runID)
	}
	if orig.Status != models.FailedRunStatus {
		status := orig.Status
		e.mu.Unlock()
		return nil, newError(CodeInvalidStatus, "cannot retry run in status %s", status)
	}
	if orig.RetryCount >= orig.MaxRetries {
		e.mu.Unlock()
		return nil, newError(CodeMaxRetriesExceeded,
			"run %s exhausted its %d retries", runID, orig.MaxRetries)
	}
	trigger := orig.TriggeredBy
	inputs := copyMap(orig.Context.Inputs)
	retryCount := orig.RetryCount
	e.mu.Unlock()

	e.appendAudit(models.WorkflowAuditEntry{
		EventType:   models.AuditRunRetried,
		WorkflowID:  wf.ID,
		RunID:       runID,
		Description: "Run retried",
		Data:        map[string]interface{}{"retry_count": retryCount + 1},
	})
	return e.startRun(ctx, wf, trigger, inputs, retryCount+1)
}

// RunFilter narrows ListRuns results; zero values match everything.
type RunFilter struct {
	WorkflowID string
	Status     models.RunStatus
}

// AuditFilter narrows GetAuditLog results; zero values match everything.
type AuditFilter struct {
	WorkflowID string
	RunID      string
	EventType  models.AuditEventType
}

// GetRun returns a snapshot of a run.
func (e *Engine) GetRun(runID string) (*models.WorkflowRun, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	run, ok := e.runs[runID]
	if !ok {
		return nil, newError(CodeRunNotFound, "run %s not found", runID)
	}
	return snapshotLocked(run), nil
}

// ListRuns returns snapshots of all runs matching the filter, in creation
// order.
func (e *Engine) ListRuns(filter RunFilter) []models.WorkflowRun {
	e.mu.Lock()
	defer e.mu.Unlock()
	var out []models.WorkflowRun
	for _, id := range e.runOrder {
		run := e.runs[id]
		if filter.WorkflowID != "" && run.WorkflowID != filter.WorkflowID {
			continue
		}
		if filter.Status != "" && run.Status != filter.Status {
			continue
		}
		out = append(out, *snapshotLocked(run))
	}
	return out
}

// GetAuditLog returns all audit entries matching the filter, in append order.
func (e *Engine) GetAuditLog(filter AuditFilter) []models.WorkflowAuditEntry {
	e.auditMu.Lock()
	defer e.auditMu.Unlock()
	var out []models.WorkflowAuditEntry
	for _, entry := range e.audit {
		if filter.WorkflowID != "" && entry.WorkflowID != filter.WorkflowID {
			continue
		}
		if filter.RunID != "" && entry.RunID != filter.RunID {
			continue
		}
		if filter.EventType != "" && entry.EventType != filter.EventType {
			continue
		}
		out = append(out, entry)
	}
	return out
}

// ActiveRunCount reports how many runs currently occupy the workflow's
// concurrency slots.
func (e *Engine) ActiveRunCount(workflowID string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.activeRuns[workflowID])
}

// ResolveExecutionOrder computes a deterministic execution order via Kahn's
// algorithm over DependsOn edges. Ties among ready steps are broken by
// declaration order. Steps unresolvable due to a cycle are appended in their
// declaration order rather than rejected; registration-time validation in
// the trigger engine is the real guard against cycles.
func ResolveExecutionOrder(steps []models.WorkflowStep) []models.WorkflowStep {
	index := make(map[string]int, len(steps))
	for i, s := range steps {
		index[s.ID] = i
	}
	indegree := make(map[string]int, len(steps))
	dependents := make(map[string][]string)
	for _, s := range steps {
		indegree[s.ID] = 0
	}
	for _, s := range steps {
		for _, dep := range s.DependsOn {
			if _, known := index[dep]; !known {
				continue
			}
			indegree[s.ID]++
			dependents[dep] = append(dependents[dep], s.ID)
		}
	}

	var queue []string
	for _, s := range steps {
		if indegree[s.ID] == 0 {
			queue = append(queue, s.ID)
		}
	}

	placed := make(map[string]bool, len(steps))
	order := make([]models.WorkflowStep, 0, len(steps))
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		placed[id] = true
		order = append(order, steps[index[id]])
		for _, dep := range dependents[id] {
			indegree[dep]--
			if indegree[dep] == 0 {
				queue = append(queue, dep)
			}
		}
		sort.Slice(queue, func(i, j int) bool { return index[queue[i]] < index[queue[j]] })
	}

	// cyclic remainder, declaration order
	for _, s := range steps {
		if !placed[s.ID] {
			order = append(order, s)
		}
	}
	return order
}

func (e *Engine) statusOf(run *models.WorkflowRun) models.RunStatus {
	e.mu.Lock()
	defer e.mu.Unlock()
	return run.Status
}

func (e *Engine) lockedMergedContext(run *models.WorkflowRun) map[string]interface{} {
	e.mu.Lock()
	defer e.mu.Unlock()
	return mergedContext(&run.Context)
}

func (e *Engine) appendStepRecord(run *models.WorkflowRun, rec models.StepExecutionRecord) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	run.StepResults = append(run.StepResults, rec)
	return len(run.StepResults) - 1
}

func (e *Engine) updateStepRecord(run *models.WorkflowRun, idx int, mutate func(*models.StepExecutionRecord)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	mutate(&run.StepResults[idx])
}

func (e *Engine) appendAudit(entry models.WorkflowAuditEntry) {
	entry.ID = uuid.NewString()
	entry.Timestamp = e.now()
	e.auditMu.Lock()
	e.audit = append(e.audit, entry)
	e.auditMu.Unlock()
}

func (e *Engine) snapshot(run *models.WorkflowRun) *models.WorkflowRun {
	e.mu.Lock()
	defer e.mu.Unlock()
	return snapshotLocked(run)
}

func snapshotLocked(run *models.WorkflowRun) *models.WorkflowRun {
	cp := *run
	cp.StepResults = append([]models.StepExecutionRecord(nil), run.StepResults...)
	cp.Context = models.RunContext{
		Inputs:      copyMap(run.Context.Inputs),
		StepOutputs: copyMap(run.Context.StepOutputs),
		Variables:   copyMap(run.Context.Variables),
		TriggerData: copyMap(run.Context.TriggerData),
	}
	if run.Error != nil {
		errCopy := *run.Error
		cp.Error = &errCopy
	}
	return &cp
}

func copyMap(m map[string]interface{}) map[string]interface{} {
	if m == nil {
		return nil
	}
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
