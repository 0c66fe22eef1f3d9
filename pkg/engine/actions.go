package engine

import (
	"context"
	"time"

	"github.com/nself-org/flowcore/pkg/condition"
	"github.com/nself-org/flowcore/pkg/models"
)

// executeAction dispatches one action attempt. Built-in types are handled
// inline, everything else goes through the handler registry by exact string
// match.
func (e *Engine) executeAction(ctx context.Context, run *models.WorkflowRun, step models.WorkflowStep) (interface{}, error) {
	action := step.Action
	merged := e.lockedMergedContext(run)

	switch action.Type {
	case models.ActionDelay:
		if err := e.sleep(ctx, time.Duration(action.DurationMs)*time.Millisecond); err != nil {
			return nil, err
		}
		return map[string]interface{}{"delayed": action.DurationMs}, nil

	case models.ActionSetVariable:
		value := action.Value
		if s, ok := value.(string); ok && isTemplate(s) {
			value = interpolate(s, merged)
		}
		e.mu.Lock()
		run.Context.Variables[action.VariableName] = value
		e.mu.Unlock()
		return map[string]interface{}{
			"variableName": action.VariableName,
			"value":        value,
		}, nil

	case models.ActionConditionalBranch:
		// first match wins, no fallthrough
		for _, branch := range action.Branches {
			if condition.EvaluateAll(branch.Conditions, merged) {
				return map[string]interface{}{"branch": branch.Name, "matched": true}, nil
			}
		}
		return map[string]interface{}{"branch": "default", "matched": false}, nil

	case models.ActionApproval:
		if e.onApprovalRequest != nil {
			e.onApprovalRequest(run.ID, step.ID, action)
		}
		return nil, ErrApprovalRequired

	default:
		handler, ok := e.registry.Get(action.Type)
		if !ok {
			return nil, &ExecutionError{
				Code:    CodeUnknownActionType,
				Message: "no handler registered for action type " + action.Type,
				StepID:  step.ID,
			}
		}
		return handler(ctx, action, merged, step)
	}
}
