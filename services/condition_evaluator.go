package services

import (
	"strings"
	"transferdesk/models"
)

// ConditionEvaluator decides whether a rule's condition set matches an
// event. It is a pure function of (rule, event): no I/O, no side effects,
// which is what lets rule evaluation fan out concurrently and the dry-run
// harness reuse it unchanged.
type ConditionEvaluator struct{}

func NewConditionEvaluator() *ConditionEvaluator {
	return &ConditionEvaluator{}
}

// Evaluate returns true when the event satisfies the rule's conditions
// under its combination logic. A rule with zero conditions always matches.
func (ce *ConditionEvaluator) Evaluate(rule *models.NotificationRule, event *models.Event) bool {
	return ce.EvaluateWithExtras(rule, event, nil)
}

// EvaluateWithExtras evaluates with additional recipient-scoped fields
// overlaid on the event payload. Recipient resolution uses this to re-run a
// rule's conditions per candidate when useConditions is set; extras shadow
// payload fields of the same name.
func (ce *ConditionEvaluator) EvaluateWithExtras(rule *models.NotificationRule, event *models.Event, extras map[string]string) bool {
	if len(rule.Conditions) == 0 {
		return true
	}

	logic := rule.ConditionLogic
	if logic == "" {
		logic = models.ConditionLogicAnd
	}

	for _, cond := range rule.Conditions {
		matched := ce.evaluateCondition(cond, event, extras)

		if logic == models.ConditionLogicAnd && !matched {
			return false
		}
		if logic == models.ConditionLogicOr && matched {
			return true
		}
	}

	return logic == models.ConditionLogicAnd
}

// evaluateCondition resolves the field and applies the operator. An absent
// field evaluates to false rather than erroring: payloads are sparse by
// event type, and unknown fields are a configuration error caught at rule
// save time, not here.
func (ce *ConditionEvaluator) evaluateCondition(cond models.RuleCondition, event *models.Event, extras map[string]string) bool {
	value, ok := extras[cond.Field]
	if !ok {
		value, ok = event.Field(cond.Field)
	}
	if !ok {
		return false
	}

	switch cond.Operator {
	case models.OperatorEquals:
		return value == cond.Value
	case models.OperatorNotEquals:
		return value != cond.Value
	case models.OperatorContains:
		return strings.Contains(value, cond.Value)
	case models.OperatorNotContains:
		return !strings.Contains(value, cond.Value)
	default:
		return false
	}
}
