package trigger_test

import (
	"testing"
	"time"

	"github.com/nself-org/flowcore/pkg/models"
	"github.com/nself-org/flowcore/pkg/trigger"
	"github.com/stretchr/testify/assert"
)

type logger struct{}

func (logger) Infof(format string, args ...interface{})  {}
func (logger) Errorf(format string, args ...interface{}) {}

func eventWorkflow(id, eventType string) *models.WorkflowDefinition {
	return &models.WorkflowDefinition{
		ID:      id,
		Name:    id,
		Version: 1,
		Enabled: true,
		Trigger: models.TriggerConfig{
			Type:  models.EventTriggerType,
			Event: &models.EventTrigger{EventType: eventType},
		},
	}
}

func TestRegister(t *testing.T) {
	t.Run("RejectsMissingID", func(t *testing.T) {
		eng := trigger.New(logger{})
		assert.Error(t, eng.Register(&models.WorkflowDefinition{}))
		assert.Error(t, eng.Register(nil))
	})

	t.Run("RejectsDuplicateStepIDs", func(t *testing.T) {
		eng := trigger.New(logger{})
		wf := eventWorkflow("wf1", "message.created")
		wf.Steps = []models.WorkflowStep{
			{ID: "s1", Name: "first"},
			{ID: "s1", Name: "second"},
		}
		err := eng.Register(wf)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "duplicate step id")
	})

	t.Run("RejectsUnknownDependency", func(t *testing.T) {
		eng := trigger.New(logger{})
		wf := eventWorkflow("wf1", "message.created")
		wf.Steps = []models.WorkflowStep{{ID: "s1", DependsOn: []string{"ghost"}}}
		err := eng.Register(wf)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "unknown step")
	})

	t.Run("RejectsDependencyCycle", func(t *testing.T) {
		eng := trigger.New(logger{})
		wf := eventWorkflow("wf1", "message.created")
		wf.Steps = []models.WorkflowStep{
			{ID: "s1", DependsOn: []string{"s2"}},
			{ID: "s2", DependsOn: []string{"s1"}},
		}
		err := eng.Register(wf)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "cycle")
	})

	t.Run("ReplaceKeepsRegistrationOrder", func(t *testing.T) {
		eng := trigger.New(logger{})
		assert.NoError(t, eng.Register(eventWorkflow("wf1", "a")))
		assert.NoError(t, eng.Register(eventWorkflow("wf2", "b")))
		updated := eventWorkflow("wf1", "a")
		updated.Version = 2
		assert.NoError(t, eng.Register(updated))

		list := eng.List()
		assert.Len(t, list, 2)
		assert.Equal(t, "wf1", list[0].ID)
		assert.Equal(t, 2, list[0].Version)
		assert.Equal(t, "wf2", list[1].ID)
	})

	t.Run("Unregister", func(t *testing.T) {
		eng := trigger.New(logger{})
		assert.NoError(t, eng.Register(eventWorkflow("wf1", "a")))
		eng.Unregister("wf1")
		eng.Unregister("missing") // no-op
		_, ok := eng.Get("wf1")
		assert.False(t, ok)
		assert.Empty(t, eng.List())
	})
}

func TestEvaluateEvent(t *testing.T) {
	data := func(channel, user string) map[string]interface{} {
		return map[string]interface{}{"channelId": channel, "userId": user, "text": "hi"}
	}

	t.Run("MatchesInRegistrationOrder", func(t *testing.T) {
		eng := trigger.New(logger{})
		assert.NoError(t, eng.Register(eventWorkflow("wf-b", "message.created")))
		assert.NoError(t, eng.Register(eventWorkflow("wf-a", "message.created")))
		assert.NoError(t, eng.Register(eventWorkflow("wf-other", "member.joined")))

		matches := eng.EvaluateEvent("message.created", data("c1", "u1"))
		assert.Len(t, matches, 2)
		assert.Equal(t, "wf-b", matches[0].Workflow.ID)
		assert.Equal(t, "wf-a", matches[1].Workflow.ID)
		assert.Equal(t, models.EventTriggerType, matches[0].TriggerInfo.Type)
		assert.Equal(t, "u1", matches[0].TriggerInfo.ActorID)
		assert.Equal(t, "hi", matches[0].TriggerInfo.Payload["text"])
	})

	t.Run("DisabledWorkflowNeverMatches", func(t *testing.T) {
		eng := trigger.New(logger{})
		wf := eventWorkflow("wf1", "message.created")
		wf.Enabled = false
		assert.NoError(t, eng.Register(wf))
		assert.Empty(t, eng.EvaluateEvent("message.created", data("c1", "u1")))
	})

	t.Run("ChannelAndUserAllowLists", func(t *testing.T) {
		eng := trigger.New(logger{})
		wf := eventWorkflow("wf1", "message.created")
		wf.Trigger.Event.ChannelIDs = []string{"c1", "c2"}
		wf.Trigger.Event.UserIDs = []string{"u1"}
		assert.NoError(t, eng.Register(wf))

		assert.Len(t, eng.EvaluateEvent("message.created", data("c1", "u1")), 1)
		assert.Empty(t, eng.EvaluateEvent("message.created", data("c3", "u1")))
		assert.Empty(t, eng.EvaluateEvent("message.created", data("c1", "u2")))
	})

	t.Run("ConditionsAgainstEventData", func(t *testing.T) {
		eng := trigger.New(logger{})
		wf := eventWorkflow("wf1", "message.created")
		wf.Trigger.Event.Conditions = []models.Condition{
			{Field: "text", Operator: models.OpContains, Value: "deploy"},
		}
		assert.NoError(t, eng.Register(wf))

		assert.Empty(t, eng.EvaluateEvent("message.created", data("c1", "u1")))
		matched := eng.EvaluateEvent("message.created", map[string]interface{}{"text": "deploy now"})
		assert.Len(t, matched, 1)
	})
}

func TestEvaluateSchedule(t *testing.T) {
	scheduled := func(id, expr string) *models.WorkflowDefinition {
		return &models.WorkflowDefinition{
			ID:      id,
			Name:    id,
			Enabled: true,
			Trigger: models.TriggerConfig{
				Type:     models.ScheduleTriggerType,
				Schedule: &models.ScheduleTrigger{CronExpr: expr},
			},
		}
	}
	threeAM := time.Date(2024, 6, 1, 3, 0, 0, 0, time.UTC)

	t.Run("CronMatch", func(t *testing.T) {
		eng := trigger.New(logger{})
		assert.NoError(t, eng.Register(scheduled("nightly", "0 3 * * *")))
		assert.NoError(t, eng.Register(scheduled("hourly", "0 * * * *")))

		matches := eng.EvaluateSchedule(threeAM)
		assert.Len(t, matches, 2)
		assert.Equal(t, threeAM.Format(time.RFC3339), matches[0].TriggerInfo.Payload["scheduledTime"])

		assert.Empty(t, eng.EvaluateSchedule(threeAM.Add(time.Minute)))
	})

	t.Run("DateWindow", func(t *testing.T) {
		eng := trigger.New(logger{})
		wf := scheduled("windowed", "0 3 * * *")
		start := threeAM.Add(24 * time.Hour)
		end := threeAM.Add(72 * time.Hour)
		wf.Trigger.Schedule.StartDate = &start
		wf.Trigger.Schedule.EndDate = &end
		assert.NoError(t, eng.Register(wf))

		assert.Empty(t, eng.EvaluateSchedule(threeAM))
		assert.Len(t, eng.EvaluateSchedule(threeAM.Add(48*time.Hour)), 1)
		assert.Empty(t, eng.EvaluateSchedule(threeAM.Add(96*time.Hour)))
	})
}

func TestEvaluateWebhook(t *testing.T) {
	hook := func(id string) *models.WorkflowDefinition {
		return &models.WorkflowDefinition{
			ID:      id,
			Name:    id,
			Enabled: true,
			Trigger: models.TriggerConfig{
				Type: models.WebhookTriggerType,
				Webhook: &models.WebhookTrigger{
					Methods:     []string{"POST"},
					ContentType: "application/json",
				},
			},
		}
	}
	body := map[string]interface{}{"action": "opened"}
	jsonHeaders := map[string]string{"Content-Type": "application/json"}

	t.Run("Match", func(t *testing.T) {
		eng := trigger.New(logger{})
		assert.NoError(t, eng.Register(hook("wh1")))

		match := eng.EvaluateWebhook("wh1", "post", body,
			map[string]string{"content-type": "application/json; charset=utf-8"})
		assert.NotNil(t, match)
		assert.Equal(t, models.WebhookTriggerType, match.TriggerInfo.Type)
		assert.Equal(t, "opened", match.TriggerInfo.Payload["action"])
	})

	t.Run("Rejections", func(t *testing.T) {
		eng := trigger.New(logger{})
		assert.NoError(t, eng.Register(hook("wh1")))
		disabled := hook("wh2")
		disabled.Enabled = false
		assert.NoError(t, eng.Register(disabled))
		assert.NoError(t, eng.Register(eventWorkflow("ev1", "x")))

		assert.Nil(t, eng.EvaluateWebhook("missing", "POST", body, jsonHeaders))
		assert.Nil(t, eng.EvaluateWebhook("wh2", "POST", body, jsonHeaders))
		assert.Nil(t, eng.EvaluateWebhook("ev1", "POST", body, jsonHeaders))
		assert.Nil(t, eng.EvaluateWebhook("wh1", "GET", body, jsonHeaders))
		assert.Nil(t, eng.EvaluateWebhook("wh1", "POST", body,
			map[string]string{"Content-Type": "text/plain"}))
		assert.Nil(t, eng.EvaluateWebhook("wh1", "POST", body, nil))
	})

	t.Run("ConditionsAgainstBody", func(t *testing.T) {
		eng := trigger.New(logger{})
		wf := hook("wh1")
		wf.Trigger.Webhook.Conditions = []models.Condition{
			{Field: "action", Operator: models.OpEquals, Value: "opened"},
		}
		assert.NoError(t, eng.Register(wf))

		assert.NotNil(t, eng.EvaluateWebhook("wh1", "POST", body, jsonHeaders))
		assert.Nil(t, eng.EvaluateWebhook("wh1", "POST",
			map[string]interface{}{"action": "closed"}, jsonHeaders))
	})
}

func TestEvaluateManual(t *testing.T) {
	manual := func(id string) *models.WorkflowDefinition {
		return &models.WorkflowDefinition{
			ID:      id,
			Name:    id,
			Enabled: true,
			Trigger: models.TriggerConfig{
				Type:   models.ManualTriggerType,
				Manual: &models.ManualTrigger{},
			},
		}
	}
	inputs := map[string]interface{}{"target": "staging"}

	t.Run("NoAllowListMeansAnyone", func(t *testing.T) {
		eng := trigger.New(logger{})
		assert.NoError(t, eng.Register(manual("m1")))

		match := eng.EvaluateManual("m1", "u1", nil, inputs)
		assert.NotNil(t, match)
		assert.Equal(t, "u1", match.TriggerInfo.ActorID)
		assert.Equal(t, inputs, match.Inputs)
	})

	t.Run("UserAllowList", func(t *testing.T) {
		eng := trigger.New(logger{})
		wf := manual("m1")
		wf.Trigger.Manual.AllowedUserIDs = []string{"u1"}
		assert.NoError(t, eng.Register(wf))

		assert.NotNil(t, eng.EvaluateManual("m1", "u1", nil, inputs))
		assert.Nil(t, eng.EvaluateManual("m1", "u2", nil, inputs))
	})

	t.Run("RoleIntersection", func(t *testing.T) {
		eng := trigger.New(logger{})
		wf := manual("m1")
		wf.Trigger.Manual.AllowedRoles = []string{"admin", "operator"}
		assert.NoError(t, eng.Register(wf))

		assert.NotNil(t, eng.EvaluateManual("m1", "u1", []string{"member", "operator"}, inputs))
		assert.Nil(t, eng.EvaluateManual("m1", "u1", []string{"member"}, inputs))
	})

	t.Run("BothAllowListsMustPass", func(t *testing.T) {
		eng := trigger.New(logger{})
		wf := manual("m1")
		wf.Trigger.Manual.AllowedUserIDs = []string{"u1"}
		wf.Trigger.Manual.AllowedRoles = []string{"admin"}
		assert.NoError(t, eng.Register(wf))

		assert.NotNil(t, eng.EvaluateManual("m1", "u1", []string{"admin"}, inputs))
		// each configured gate rejects independently
		assert.Nil(t, eng.EvaluateManual("m1", "u1", []string{"member"}, inputs))
		assert.Nil(t, eng.EvaluateManual("m1", "u2", []string{"admin"}, inputs))
		assert.Nil(t, eng.EvaluateManual("m1", "u2", []string{"member"}, inputs))
	})

	t.Run("ConditionsAgainstInputData", func(t *testing.T) {
		eng := trigger.New(logger{})
		wf := manual("m1")
		wf.Trigger.Manual.Conditions = []models.Condition{
			{Field: "target", Operator: models.OpNotEquals, Value: "production"},
		}
		assert.NoError(t, eng.Register(wf))

		assert.NotNil(t, eng.EvaluateManual("m1", "u1", nil, inputs))
		assert.Nil(t, eng.EvaluateManual("m1", "u1", nil,
			map[string]interface{}{"target": "production"}))
	})
}
