// Package trigger decides which registered workflows should run in response
// to an application event, a schedule tick, a webhook call or a manual
// request. It produces TriggerMatch values; executing them is the execution
// engine's job.
package trigger

import (
	"strings"
	"sync"
	"time"

	"github.com/nself-org/flowcore/pkg/condition"
	"github.com/nself-org/flowcore/pkg/cron"
	"github.com/nself-org/flowcore/pkg/models"
	"github.com/pkg/errors"
)

// Logger defines the logging interface for the trigger engine.
type Logger interface {
	Infof(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

type noopLogger struct{}

func (noopLogger) Infof(string, ...interface{})  {}
func (noopLogger) Errorf(string, ...interface{}) {}

// Engine holds the set of registered workflow definitions. Evaluation
// iterates workflows in registration order, so multi-match results are
// deterministic.
type Engine struct {
	mu        sync.RWMutex
	workflows map[string]*models.WorkflowDefinition
	order     []string
	logger    Logger
}

func New(logger Logger) *Engine {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Engine{
		workflows: make(map[string]*models.WorkflowDefinition),
		logger:    logger,
	}
}

// Register adds or replaces a workflow definition. The step dependency graph
// is validated here: duplicate step ids, references to unknown steps and
// dependency cycles are all rejected, so the execution engine never sees
// them. Re-registering an id keeps its original position in iteration order.
func (e *Engine) Register(wf *models.WorkflowDefinition) error {
	if wf == nil || wf.ID == "" {
		return errors.New("workflow definition must have an id")
	}
	if err := validateSteps(wf.Steps); err != nil {
		return errors.Wrapf(err, "workflow %s", wf.ID)
	}

	e.mu.Lock()
	if _, exists := e.workflows[wf.ID]; !exists {
		e.order = append(e.order, wf.ID)
	}
	e.workflows[wf.ID] = wf
	e.mu.Unlock()

	e.logger.Infof("Registered workflow %s (version %d, trigger %s)", wf.ID, wf.Version, wf.Trigger.Type)
	return nil
}

// Unregister removes a workflow. Removing an unknown id is a no-op.
func (e *Engine) Unregister(id string) {
	e.mu.Lock()
	if _, ok := e.workflows[id]; ok {
		delete(e.workflows, id)
		for i, existing := range e.order {
			if existing == id {
				e.order = append(e.order[:i], e.order[i+1:]...)
				break
			}
		}
	}
	e.mu.Unlock()
}

// Get returns the registered definition for an id.
func (e *Engine) Get(id string) (*models.WorkflowDefinition, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	wf, ok := e.workflows[id]
	return wf, ok
}

// List returns all registered workflows in registration order.
func (e *Engine) List() []*models.WorkflowDefinition {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]*models.WorkflowDefinition, 0, len(e.order))
	for _, id := range e.order {
		out = append(out, e.workflows[id])
	}
	return out
}

// EvaluateEvent returns a match for every enabled event-triggered workflow
// whose event type, channel filter, user filter and conditions all accept
// the event. Empty filters mean no restriction.
func (e *Engine) EvaluateEvent(eventType string, eventData map[string]interface{}) []models.TriggerMatch {
	var matches []models.TriggerMatch
	for _, wf := range e.List() {
		cfg := wf.Trigger.Event
		if !wf.Enabled || wf.Trigger.Type != models.EventTriggerType || cfg == nil {
			continue
		}
		if cfg.EventType != eventType {
			continue
		}
		if !allowedString(cfg.ChannelIDs, stringField(eventData, "channelId")) {
			continue
		}
		actor := stringField(eventData, "userId")
		if !allowedString(cfg.UserIDs, actor) {
			continue
		}
		if !condition.EvaluateAll(cfg.Conditions, eventData) {
			continue
		}
		matches = append(matches, models.TriggerMatch{
			Workflow: wf,
			TriggerInfo: models.RunTriggerInfo{
				Type:    models.EventTriggerType,
				ActorID: actor,
				Payload: eventData,
			},
		})
	}
	if len(matches) > 0 {
		e.logger.Infof("Event %s matched %d workflow(s)", eventType, len(matches))
	}
	return matches
}

// EvaluateSchedule returns a match for every enabled schedule-triggered
// workflow whose date window contains now and whose cron expression matches
// it. Evaluation is UTC.
func (e *Engine) EvaluateSchedule(now time.Time) []models.TriggerMatch {
	var matches []models.TriggerMatch
	for _, wf := range e.List() {
		cfg := wf.Trigger.Schedule
		if !wf.Enabled || wf.Trigger.Type != models.ScheduleTriggerType || cfg == nil {
			continue
		}
		if cfg.StartDate != nil && now.Before(*cfg.StartDate) {
			continue
		}
		if cfg.EndDate != nil && now.After(*cfg.EndDate) {
			continue
		}
		if !cron.Matches(cfg.CronExpr, now, cfg.Timezone) {
			continue
		}
		matches = append(matches, models.TriggerMatch{
			Workflow: wf,
			TriggerInfo: models.RunTriggerInfo{
				Type: models.ScheduleTriggerType,
				Payload: map[string]interface{}{
					"scheduledTime": now.UTC().Format(time.RFC3339),
				},
			},
		})
	}
	return matches
}

// EvaluateWebhook checks a single workflow against an incoming webhook call.
// Returns nil when the workflow is unknown, disabled, not webhook-triggered,
// or rejects the method, content type or body. The only header the core
// inspects is Content-Type, matched case-insensitively by name.
func (e *Engine) EvaluateWebhook(workflowID, method string, body map[string]interface{}, headers map[string]string) *models.TriggerMatch {
	wf, ok := e.Get(workflowID)
	if !ok {
		return nil
	}
	cfg := wf.Trigger.Webhook
	if !wf.Enabled || wf.Trigger.Type != models.WebhookTriggerType || cfg == nil {
		return nil
	}
	if len(cfg.Methods) > 0 && !containsFold(cfg.Methods, method) {
		return nil
	}
	if cfg.ContentType != "" && !mediaTypeMatches(cfg.ContentType, headerValue(headers, "Content-Type")) {
		return nil
	}
	if !condition.EvaluateAll(cfg.Conditions, body) {
		return nil
	}
	return &models.TriggerMatch{
		Workflow: wf,
		TriggerInfo: models.RunTriggerInfo{
			Type:    models.WebhookTriggerType,
			Payload: body,
		},
	}
}

// EvaluateManual checks whether a user may start a workflow by hand. Each
// configured allow-list is a separate gate: when AllowedUserIDs is set the
// user's id must be listed, and when AllowedRoles is set the user must hold
// at least one of them. Conditions are evaluated against the provided input
// data, which also seeds the run's inputs.
func (e *Engine) EvaluateManual(workflowID, userID string, roles []string, inputData map[string]interface{}) *models.TriggerMatch {
	wf, ok := e.Get(workflowID)
	if !ok {
		return nil
	}
	cfg := wf.Trigger.Manual
	if !wf.Enabled || wf.Trigger.Type != models.ManualTriggerType || cfg == nil {
		return nil
	}
	if !manualAllowed(cfg, userID, roles) {
		return nil
	}
	if !condition.EvaluateAll(cfg.Conditions, inputData) {
		return nil
	}
	return &models.TriggerMatch{
		Workflow: wf,
		TriggerInfo: models.RunTriggerInfo{
			Type:    models.ManualTriggerType,
			ActorID: userID,
			Payload: inputData,
		},
		Inputs: inputData,
	}
}

func manualAllowed(cfg *models.ManualTrigger, userID string, roles []string) bool {
	if !allowedString(cfg.AllowedUserIDs, userID) {
		return false
	}
	if len(cfg.AllowedRoles) == 0 {
		return true
	}
	for _, allowed := range cfg.AllowedRoles {
		for _, role := range roles {
			if allowed == role {
				return true
			}
		}
	}
	return false
}

// validateSteps rejects graphs the execution engine cannot order cleanly.
func validateSteps(steps []models.WorkflowStep) error {
	ids := make(map[string]bool, len(steps))
	for _, s := range steps {
		if s.ID == "" {
			return errors.New("step with empty id")
		}
		if ids[s.ID] {
			return errors.Errorf("duplicate step id %q", s.ID)
		}
		ids[s.ID] = true
	}
	indegree := make(map[string]int, len(steps))
	dependents := make(map[string][]string)
	for _, s := range steps {
		for _, dep := range s.DependsOn {
			if !ids[dep] {
				return errors.Errorf("step %q depends on unknown step %q", s.ID, dep)
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
	placed := 0
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		placed++
		for _, dep := range dependents[id] {
			indegree[dep]--
			if indegree[dep] == 0 {
				queue = append(queue, dep)
			}
		}
	}
	if placed != len(steps) {
		return errors.New("dependency cycle in steps")
	}
	return nil
}

func stringField(m map[string]interface{}, key string) string {
	if s, ok := m[key].(string); ok {
		return s
	}
	return ""
}

// allowedString treats an empty list as "no restriction".
func allowedString(list []string, v string) bool {
	if len(list) == 0 {
		return true
	}
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}

func headerValue(headers map[string]string, name string) string {
	for k, v := range headers {
		if strings.EqualFold(k, name) {
			return v
		}
	}
	return ""
}

func containsFold(list []string, v string) bool {
	for _, item := range list {
		if strings.EqualFold(item, v) {
			return true
		}
	}
	return false
}

// mediaTypeMatches compares the media type portion only, so
// "application/json; charset=utf-8" satisfies "application/json".
func mediaTypeMatches(want, got string) bool {
	if i := strings.Index(got, ";"); i >= 0 {
		got = got[:i]
	}
	return strings.EqualFold(strings.TrimSpace(want), strings.TrimSpace(got))
}
