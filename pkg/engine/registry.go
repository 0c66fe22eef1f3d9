package engine

import (
	"context"
	"sync"

	"github.com/nself-org/flowcore/pkg/models"
)

// ActionHandler executes a non-built-in action. It receives the action, the
// merged run context and the step being executed. Handlers must tolerate
// at-least-once invocation under retry; rely on idempotency keys where that
// matters.
type ActionHandler func(ctx context.Context, action models.Action, execCtx map[string]interface{}, step models.WorkflowStep) (interface{}, error)

// HandlerRegistry maps action-type strings to handlers. It is the seam at
// which all real side effects are injected; the engine performs no I/O of
// its own outside the built-in actions.
type HandlerRegistry struct {
	mu       sync.RWMutex
	handlers map[string]ActionHandler
}

func NewHandlerRegistry() *HandlerRegistry {
	return &HandlerRegistry{handlers: make(map[string]ActionHandler)}
}

func (r *HandlerRegistry) Register(actionType string, h ActionHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[actionType] = h
}

func (r *HandlerRegistry) Get(actionType string) (ActionHandler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[actionType]
	return h, ok
}
