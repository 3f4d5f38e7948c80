package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Operator is the comparison applied by a single rule condition. The set is
// closed: the condition builder UI and the evaluator share these four.
type Operator string

const (
	OperatorEquals      Operator = "equals"
	OperatorNotEquals   Operator = "not_equals"
	OperatorContains    Operator = "contains"
	OperatorNotContains Operator = "not_contains"
)

func (o Operator) IsValid() bool {
	switch o {
	case OperatorEquals, OperatorNotEquals, OperatorContains, OperatorNotContains:
		return true
	}
	return false
}

// ConditionLogic combines per-condition results.
type ConditionLogic string

const (
	ConditionLogicAnd ConditionLogic = "AND"
	ConditionLogicOr  ConditionLogic = "OR"
)

func (l ConditionLogic) IsValid() bool {
	return l == ConditionLogicAnd || l == ConditionLogicOr
}

// RuleCondition compares one event payload field to a literal value.
// Comparisons are case-sensitive string operations on the stringified field.
type RuleCondition struct {
	Field    string   `json:"field" bson:"field" validate:"required"`
	Operator Operator `json:"operator" bson:"operator" validate:"required,operator"`
	Value    string   `json:"value" bson:"value"`
}

// Role is a dealership staff role used by the location recipient buckets.
type Role string

const (
	RoleAdmin     Role = "admin"
	RoleManager   Role = "manager"
	RoleSales     Role = "sales"
	RoleTransport Role = "transport"
)

func (r Role) IsValid() bool {
	switch r {
	case RoleAdmin, RoleManager, RoleSales, RoleTransport:
		return true
	}
	return false
}

// RecipientConfig describes who a rule notifies. The three location buckets
// are relative to the event's vehicle: currentLocation is where the vehicle
// sits now; requesting/destination reference a transfer's from/to locations
// and are ignored for non-transfer events. UseConditions further filters
// bucket members by re-evaluating the rule's conditions per candidate; it
// composes with bucket selection, it does not replace it.
type RecipientConfig struct {
	UseConditions       bool     `json:"useConditions" bson:"useConditions"`
	CurrentLocation     []Role   `json:"currentLocation" bson:"currentLocation"`
	RequestingLocation  []Role   `json:"requestingLocation" bson:"requestingLocation"`
	DestinationLocation []Role   `json:"destinationLocation" bson:"destinationLocation"`
	SpecificUsers       []string `json:"specificUsers" bson:"specificUsers"`
	AdditionalEmails    []string `json:"additionalEmails" bson:"additionalEmails"`
	AdditionalPhones    []string `json:"additionalPhones" bson:"additionalPhones"`
}

// ChannelPriority controls dispatch ordering for a recipient who is
// addressable on both channels.
type ChannelPriority string

const (
	ChannelPriorityEmailFirst ChannelPriority = "email_first"
	ChannelPrioritySMSFirst   ChannelPriority = "sms_first"
	ChannelPriorityBoth       ChannelPriority = "both"
)

func (p ChannelPriority) IsValid() bool {
	switch p {
	case ChannelPriorityEmailFirst, ChannelPrioritySMSFirst, ChannelPriorityBoth:
		return true
	}
	return false
}

// PrimaryChannel returns the channel attempted first, or empty for "both".
func (p ChannelPriority) PrimaryChannel() Channel {
	switch p {
	case ChannelPriorityEmailFirst:
		return ChannelEmail
	case ChannelPrioritySMSFirst:
		return ChannelSMS
	}
	return ""
}

// ChannelConfig enables a delivery channel and binds it to a template.
type ChannelConfig struct {
	Enabled    bool   `json:"enabled" bson:"enabled"`
	TemplateID string `json:"templateId" bson:"templateId"`
}

// ChannelSettings holds a rule's per-channel configuration.
type ChannelSettings struct {
	Email    ChannelConfig   `json:"email" bson:"email"`
	SMS      ChannelConfig   `json:"sms" bson:"sms"`
	Priority ChannelPriority `json:"priority" bson:"priority"`
}

// Config returns the channel config for the given channel.
func (cs ChannelSettings) Config(ch Channel) ChannelConfig {
	if ch == ChannelSMS {
		return cs.SMS
	}
	return cs.Email
}

// NotificationRule is the unit of configuration: for one event type, whether
// to notify, who, and through which channels.
type NotificationRule struct {
	ID          primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	Name        string             `json:"name" bson:"name"`
	Description string             `json:"description,omitempty" bson:"description,omitempty"`
	Active      bool               `json:"active" bson:"active"`

	Event          EventType       `json:"event" bson:"event"`
	Conditions     []RuleCondition `json:"conditions" bson:"conditions"`
	ConditionLogic ConditionLogic  `json:"conditionLogic" bson:"conditionLogic"`

	Recipients RecipientConfig `json:"recipients" bson:"recipients"`
	Channels   ChannelSettings `json:"channels" bson:"channels"`

	// Trigger bookkeeping
	TriggerCount  int64      `json:"triggerCount" bson:"triggerCount"`
	LastTriggered *time.Time `json:"lastTriggered,omitempty" bson:"lastTriggered,omitempty"`

	IsDeleted bool       `json:"-" bson:"isDeleted,omitempty"`
	DeletedAt *time.Time `json:"-" bson:"deletedAt,omitempty"`
	CreatedAt time.Time  `json:"createdAt" bson:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt" bson:"updatedAt"`
}

// EnabledChannels lists the channels this rule dispatches on.
func (r *NotificationRule) EnabledChannels() []Channel {
	var channels []Channel
	if r.Channels.Email.Enabled {
		channels = append(channels, ChannelEmail)
	}
	if r.Channels.SMS.Enabled {
		channels = append(channels, ChannelSMS)
	}
	return channels
}

// Request DTOs

type CreateRuleRequest struct {
	Name           string          `json:"name" validate:"required,min=1,max=120"`
	Description    string          `json:"description" validate:"max=500"`
	Active         bool            `json:"active"`
	Event          EventType       `json:"event" validate:"required,event_type"`
	Conditions     []RuleCondition `json:"conditions" validate:"dive"`
	ConditionLogic ConditionLogic  `json:"conditionLogic" validate:"omitempty,condition_logic"`
	Recipients     RecipientConfig `json:"recipients"`
	Channels       ChannelSettings `json:"channels"`
}

type UpdateRuleRequest struct {
	Name           *string          `json:"name,omitempty" validate:"omitempty,min=1,max=120"`
	Description    *string          `json:"description,omitempty" validate:"omitempty,max=500"`
	Active         *bool            `json:"active,omitempty"`
	Conditions     *[]RuleCondition `json:"conditions,omitempty" validate:"omitempty,dive"`
	ConditionLogic *ConditionLogic  `json:"conditionLogic,omitempty" validate:"omitempty,condition_logic"`
	Recipients     *RecipientConfig `json:"recipients,omitempty"`
	Channels       *ChannelSettings `json:"channels,omitempty"`
}

type GetRulesRequest struct {
	Event    string `json:"event" form:"event"`
	Status   string `json:"status" form:"status"` // active, inactive, all
	Page     int    `json:"page" form:"page"`
	PageSize int    `json:"pageSize" form:"pageSize"`
}

// TestRuleRequest runs a rule against a sample event without dispatching.
type TestRuleRequest struct {
	Event Event `json:"event" validate:"required"`
}

// TestRuleResult is the dry-run output shown to a rule author before they
// flip the rule active.
type TestRuleResult struct {
	ConditionsMet   bool     `json:"conditionsMet"`
	EmailRecipients []string `json:"emailRecipients"`
	SMSRecipients   []string `json:"smsRecipients"`
	RecipientCount  int      `json:"recipientCount"`
	WouldDispatch   bool     `json:"wouldDispatch"`
}

// RuleStats summarizes rule configuration for the admin dashboard.
type RuleStats struct {
	TotalRules    int64            `json:"totalRules"`
	ActiveRules   int64            `json:"activeRules"`
	InactiveRules int64            `json:"inactiveRules"`
	TotalTriggers int64            `json:"totalTriggers"`
	EventCounts   map[string]int64 `json:"eventCounts"`
}
