package services

import (
	"testing"
	"transferdesk/models"

	"github.com/stretchr/testify/assert"
)

func transferEvent(payload map[string]interface{}) *models.Event {
	return &models.Event{
		Type:    models.EventTransferRequested,
		Payload: payload,
	}
}

func TestEvaluate_NoConditionsAlwaysMatches(t *testing.T) {
	evaluator := NewConditionEvaluator()
	rule := &models.NotificationRule{Event: models.EventTransferRequested}

	assert.True(t, evaluator.Evaluate(rule, transferEvent(nil)))
	assert.True(t, evaluator.Evaluate(rule, transferEvent(map[string]interface{}{"priority": "high"})))
}

func TestEvaluate_Operators(t *testing.T) {
	evaluator := NewConditionEvaluator()
	event := transferEvent(map[string]interface{}{
		"priority": "high",
		"vehicle":  "2024 Honda Accord",
	})

	tests := []struct {
		name     string
		field    string
		operator models.Operator
		value    string
		want     bool
	}{
		{"equals match", "priority", models.OperatorEquals, "high", true},
		{"equals mismatch", "priority", models.OperatorEquals, "low", false},
		{"equals is case sensitive", "priority", models.OperatorEquals, "High", false},
		{"not_equals match", "priority", models.OperatorNotEquals, "low", true},
		{"not_equals mismatch", "priority", models.OperatorNotEquals, "high", false},
		{"contains match", "vehicle", models.OperatorContains, "Honda", true},
		{"contains is case sensitive", "vehicle", models.OperatorContains, "honda", false},
		{"not_contains match", "vehicle", models.OperatorNotContains, "Toyota", true},
		{"not_contains mismatch", "vehicle", models.OperatorNotContains, "Accord", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rule := &models.NotificationRule{
				Event:          models.EventTransferRequested,
				ConditionLogic: models.ConditionLogicAnd,
				Conditions: []models.RuleCondition{
					{Field: tt.field, Operator: tt.operator, Value: tt.value},
				},
			}
			assert.Equal(t, tt.want, evaluator.Evaluate(rule, event))
		})
	}
}

func TestEvaluate_AbsentFieldNeverMatches(t *testing.T) {
	evaluator := NewConditionEvaluator()
	event := transferEvent(map[string]interface{}{"priority": "high"})

	rule := &models.NotificationRule{
		Event:          models.EventTransferRequested,
		ConditionLogic: models.ConditionLogicAnd,
		Conditions: []models.RuleCondition{
			{Field: "customerWaiting", Operator: models.OperatorEquals, Value: "true"},
		},
	}
	assert.False(t, evaluator.Evaluate(rule, event))

	// not_equals also fails on an absent field: the condition is
	// unevaluable, not vacuously true.
	rule.Conditions[0].Operator = models.OperatorNotEquals
	assert.False(t, evaluator.Evaluate(rule, event))
}

func TestEvaluate_ConditionLogic(t *testing.T) {
	evaluator := NewConditionEvaluator()
	event := transferEvent(map[string]interface{}{
		"priority":        "high",
		"customerWaiting": true,
	})

	oneMatching := []models.RuleCondition{
		{Field: "priority", Operator: models.OperatorEquals, Value: "high"},
		{Field: "customerWaiting", Operator: models.OperatorEquals, Value: "false"},
	}

	andRule := &models.NotificationRule{
		Event:          models.EventTransferRequested,
		ConditionLogic: models.ConditionLogicAnd,
		Conditions:     oneMatching,
	}
	assert.False(t, evaluator.Evaluate(andRule, event))

	orRule := &models.NotificationRule{
		Event:          models.EventTransferRequested,
		ConditionLogic: models.ConditionLogicOr,
		Conditions:     oneMatching,
	}
	assert.True(t, evaluator.Evaluate(orRule, event))
}

func TestEvaluate_DefaultLogicIsAnd(t *testing.T) {
	evaluator := NewConditionEvaluator()
	event := transferEvent(map[string]interface{}{"priority": "high"})

	rule := &models.NotificationRule{
		Event: models.EventTransferRequested,
		Conditions: []models.RuleCondition{
			{Field: "priority", Operator: models.OperatorEquals, Value: "high"},
			{Field: "priority", Operator: models.OperatorEquals, Value: "low"},
		},
	}
	assert.False(t, evaluator.Evaluate(rule, event))
}

func TestEvaluate_BooleanAndNumericPayloadValues(t *testing.T) {
	evaluator := NewConditionEvaluator()
	event := transferEvent(map[string]interface{}{
		"customerWaiting": true,
		"stockNumber":     float64(4521), // JSON numbers decode as float64
	})

	rule := &models.NotificationRule{
		Event:          models.EventTransferRequested,
		ConditionLogic: models.ConditionLogicAnd,
		Conditions: []models.RuleCondition{
			{Field: "customerWaiting", Operator: models.OperatorEquals, Value: "true"},
			{Field: "stockNumber", Operator: models.OperatorEquals, Value: "4521"},
		},
	}
	assert.True(t, evaluator.Evaluate(rule, event))
}

func TestEvaluateWithExtras_ShadowsPayload(t *testing.T) {
	evaluator := NewConditionEvaluator()
	event := transferEvent(map[string]interface{}{"priority": "low"})

	rule := &models.NotificationRule{
		Event:          models.EventTransferRequested,
		ConditionLogic: models.ConditionLogicAnd,
		Conditions: []models.RuleCondition{
			{Field: "recipientOnShift", Operator: models.OperatorEquals, Value: "true"},
		},
	}

	assert.True(t, evaluator.EvaluateWithExtras(rule, event, map[string]string{
		"recipientOnShift": "true",
	}))
	assert.False(t, evaluator.EvaluateWithExtras(rule, event, map[string]string{
		"recipientOnShift": "false",
	}))
	assert.False(t, evaluator.EvaluateWithExtras(rule, event, nil))
}

func TestEvaluate_UnknownOperatorIsNonMatch(t *testing.T) {
	evaluator := NewConditionEvaluator()
	event := transferEvent(map[string]interface{}{"priority": "high"})

	rule := &models.NotificationRule{
		Event:          models.EventTransferRequested,
		ConditionLogic: models.ConditionLogicAnd,
		Conditions: []models.RuleCondition{
			{Field: "priority", Operator: "greater_than", Value: "1"},
		},
	}
	assert.False(t, evaluator.Evaluate(rule, event))
}
