package engine

import (
	"context"
	"sync"

	"github.com/nself-org/flowcore/pkg/models"
	"github.com/pkg/errors"
)

// ErrQueueFull is returned by Submit when the dispatch queue is at capacity.
// There is no backpressure in the core: callers retry or queue externally.
var ErrQueueFull = errors.New("dispatch queue full")

// ErrDispatcherStopped is returned by Submit after Stop.
var ErrDispatcherStopped = errors.New("dispatcher stopped")

// Dispatcher executes trigger matches on a pool of workers so that schedule
// ticks and webhook callers do not block on StartRun. Each worker runs one
// match at a time; per-workflow concurrency limiting stays with the engine.
type Dispatcher struct {
	engine  *Engine
	queue   chan models.TriggerMatch
	logger  Logger
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	mu      sync.Mutex
	stopped bool
}

func NewDispatcher(eng *Engine, workers, queueSize int, logger Logger) *Dispatcher {
	if workers <= 0 {
		workers = 4
	}
	if queueSize <= 0 {
		queueSize = workers * 4
	}
	if logger == nil {
		logger = noopLogger{}
	}
	ctx, cancel := context.WithCancel(context.Background())
	d := &Dispatcher{
		engine: eng,
		queue:  make(chan models.TriggerMatch, queueSize),
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
	}
	for i := 0; i < workers; i++ {
		d.wg.Add(1)
		go d.worker()
	}
	return d
}

// Submit enqueues a match without blocking. The mutex is held across the
// send so that Stop cannot close the queue between the stopped check and
// the enqueue.
func (d *Dispatcher) Submit(match models.TriggerMatch) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return ErrDispatcherStopped
	}
	select {
	case d.queue <- match:
		return nil
	default:
		return ErrQueueFull
	}
}

// Stop drains queued matches and waits for in-flight runs to settle.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return
	}
	d.stopped = true
	d.mu.Unlock()

	close(d.queue)
	d.wg.Wait()
	d.cancel()
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()
	for match := range d.queue {
		run, err := d.engine.StartRun(d.ctx, match.Workflow, match.TriggerInfo, match.Inputs)
		if err != nil {
			d.logger.Errorf("Dispatch of workflow %s rejected: %v", match.Workflow.ID, err)
			continue
		}
		d.logger.Infof("Dispatched workflow %s as run %s (%s)", match.Workflow.ID, run.ID, run.Status)
	}
}
