package trigger

import (
	"sync"
	"testing"
	"time"

	"github.com/nself-org/flowcore/pkg/models"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

type recordingSink struct {
	mu      sync.Mutex
	matches []models.TriggerMatch
	err     error
}

func (s *recordingSink) Submit(match models.TriggerMatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.matches = append(s.matches, match)
	return nil
}

func (s *recordingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.matches)
}

func everyMinuteWorkflow(id string) *models.WorkflowDefinition {
	return &models.WorkflowDefinition{
		ID:      id,
		Name:    id,
		Enabled: true,
		Trigger: models.TriggerConfig{
			Type:     models.ScheduleTriggerType,
			Schedule: &models.ScheduleTrigger{CronExpr: "* * * * *"},
		},
	}
}

func TestScheduler(t *testing.T) {
	t.Run("SubmitsMatchesOnTick", func(t *testing.T) {
		eng := New(nil)
		assert.NoError(t, eng.Register(everyMinuteWorkflow("wf1")))
		sink := &recordingSink{}

		s := newScheduler(eng, sink, nil, 10*time.Millisecond)
		s.Start()
		defer s.Stop()

		deadline := time.Now().Add(2 * time.Second)
		for sink.count() == 0 && time.Now().Before(deadline) {
			time.Sleep(5 * time.Millisecond)
		}
		assert.Greater(t, sink.count(), 0)
		sink.mu.Lock()
		assert.Equal(t, "wf1", sink.matches[0].Workflow.ID)
		assert.Equal(t, models.ScheduleTriggerType, sink.matches[0].TriggerInfo.Type)
		sink.mu.Unlock()
	})

	t.Run("FullSinkDropsMatch", func(t *testing.T) {
		eng := New(nil)
		assert.NoError(t, eng.Register(everyMinuteWorkflow("wf1")))
		sink := &recordingSink{err: errors.New("queue full")}

		s := newScheduler(eng, sink, nil, 10*time.Millisecond)
		s.Start()
		time.Sleep(50 * time.Millisecond)
		s.Stop()
		assert.Equal(t, 0, sink.count())
	})

	t.Run("StopIsIdempotentBeforeFirstTick", func(t *testing.T) {
		eng := New(nil)
		s := newScheduler(eng, &recordingSink{}, nil, time.Minute)
		s.Start()
		s.Stop()
	})
}
