package trigger

import (
	"sync"
	"time"

	"github.com/nself-org/flowcore/pkg/models"
)

// Submitter accepts trigger matches for asynchronous execution.
type Submitter interface {
	Submit(match models.TriggerMatch) error
}

// Scheduler ticks on minute boundaries and submits every schedule match to
// the sink. A full sink drops the tick's match and logs it; missed schedule
// firings are not replayed.
type Scheduler struct {
	triggers *Engine
	sink     Submitter
	interval time.Duration
	logger   Logger
	stop     chan struct{}
	done     chan struct{}
	mu       sync.Mutex
	started  bool
	stopOnce sync.Once
}

func NewScheduler(triggers *Engine, sink Submitter, logger Logger) *Scheduler {
	return newScheduler(triggers, sink, logger, time.Minute)
}

func newScheduler(triggers *Engine, sink Submitter, logger Logger, interval time.Duration) *Scheduler {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Scheduler{
		triggers: triggers,
		sink:     sink,
		interval: interval,
		logger:   logger,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start begins ticking. The first tick is aligned to the next interval
// boundary so cron evaluation sees whole minutes. Starting twice is a no-op.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return
	}
	s.started = true
	go s.run()
}

// Stop halts ticking and waits for an in-flight evaluation to finish.
// Safe to call without Start and safe to call twice.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() { close(s.stop) })
	s.mu.Lock()
	started := s.started
	s.mu.Unlock()
	if started {
		<-s.done
	}
}

func (s *Scheduler) run() {
	defer close(s.done)

	now := time.Now().UTC()
	first := time.NewTimer(now.Truncate(s.interval).Add(s.interval).Sub(now))
	defer first.Stop()
	select {
	case <-s.stop:
		return
	case <-first.C:
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.evaluate(time.Now().UTC())
	for {
		select {
		case <-s.stop:
			return
		case t := <-ticker.C:
			s.evaluate(t.UTC())
		}
	}
}

func (s *Scheduler) evaluate(now time.Time) {
	for _, match := range s.triggers.EvaluateSchedule(now) {
		if err := s.sink.Submit(match); err != nil {
			s.logger.Errorf("Dropping scheduled run of workflow %s: %v", match.Workflow.ID, err)
		}
	}
}
