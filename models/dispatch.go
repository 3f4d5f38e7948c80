package models

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Channel is a delivery channel.
type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelSMS   Channel = "sms"
)

// DispatchStatus is the terminal state of one delivery attempt sequence.
type DispatchStatus string

const (
	// StatusSent: the provider accepted the message.
	StatusSent DispatchStatus = "sent"
	// StatusFailed: terminal failure, or transient failures exhausted retries.
	StatusFailed DispatchStatus = "failed"
	// StatusSkipped: the item was planned but intentionally not attempted
	// (e.g. fallback made unnecessary by a primary success).
	StatusSkipped DispatchStatus = "skipped"
	// StatusTimeout: the handle deadline expired before the attempt finished.
	StatusTimeout DispatchStatus = "timeout"
)

// RenderedContent is the output of template rendering for one channel.
// Subject is empty for SMS.
type RenderedContent struct {
	Subject string `json:"subject,omitempty" bson:"subject,omitempty"`
	Body    string `json:"body" bson:"body"`
}

// Hash fingerprints the rendered content. Rendering is pure, so two rules
// sharing a template produce equal hashes for the same event and recipient,
// which is what cross-rule deduplication keys on.
func (rc RenderedContent) Hash() string {
	h := sha256.New()
	h.Write([]byte(rc.Subject))
	h.Write([]byte{0})
	h.Write([]byte(rc.Body))
	return hex.EncodeToString(h.Sum(nil))
}

// DispatchItem is one planned delivery: a channel-qualified address with its
// rendered content. RecipientKey ties together the email and SMS items of
// the same person so the dispatcher can order primary and fallback attempts.
type DispatchItem struct {
	ID            string          `json:"id"`
	RuleID        string          `json:"ruleId"`
	Channel       Channel         `json:"channel"`
	Address       string          `json:"address"`
	RecipientKey  string          `json:"recipientKey"`
	RecipientName string          `json:"recipientName,omitempty"`
	Content       RenderedContent `json:"content"`
}

// DispatchGroup is the unit of work handed to the dispatcher: the items for
// one recipient under one rule, ordered primary-first when the rule's
// channel priority requests fallback semantics.
type DispatchGroup struct {
	RecipientKey string
	RuleID       string
	Priority     ChannelPriority
	Items        []DispatchItem
}

// DispatchOutcome records the result of one planned item.
type DispatchOutcome struct {
	ItemID    string         `json:"itemId" bson:"itemId"`
	EventType EventType      `json:"eventType" bson:"eventType"`
	RuleID    string         `json:"ruleId" bson:"ruleId"`
	Channel   Channel        `json:"channel" bson:"channel"`
	Address   string         `json:"address" bson:"address"`
	Status    DispatchStatus `json:"status" bson:"status"`
	Reason    string         `json:"reason,omitempty" bson:"reason,omitempty"`
	Attempts  int            `json:"attempts" bson:"attempts"` // provider send calls actually made
	Timestamp time.Time      `json:"timestamp" bson:"timestamp"`
}

// DispatchReport aggregates per-recipient, per-channel outcomes for one
// handled event. Empty-result states (no matching rules, no recipients) are
// valid reports with zero outcomes, not errors.
type DispatchReport struct {
	ID             string            `json:"id"`
	EventType      EventType         `json:"eventType"`
	RulesEvaluated int               `json:"rulesEvaluated"`
	RulesMatched   int               `json:"rulesMatched"`
	MatchedRuleIDs []string          `json:"matchedRuleIds,omitempty"`
	Suppressed     int               `json:"suppressed"` // cross-rule duplicates merged away
	Outcomes       []DispatchOutcome `json:"outcomes"`
	ReceivedAt     time.Time         `json:"receivedAt"`
	CompletedAt    time.Time         `json:"completedAt"`
}

// SentCount returns the number of outcomes with status sent.
func (r *DispatchReport) SentCount() int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Status == StatusSent {
			n++
		}
	}
	return n
}

// FailedCount returns the number of outcomes with status failed or timeout.
func (r *DispatchReport) FailedCount() int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Status == StatusFailed || o.Status == StatusTimeout {
			n++
		}
	}
	return n
}

// DispatchLog is the persisted form of an outcome, written by the audit
// worker for the delivery log UI.
type DispatchLog struct {
	ReportID        string    `json:"reportId" bson:"reportId"`
	DispatchOutcome `bson:",inline"`
	CreatedAt       time.Time `json:"createdAt" bson:"createdAt"`
}

type GetDispatchLogsRequest struct {
	EventType string `json:"eventType" form:"eventType"`
	RuleID    string `json:"ruleId" form:"ruleId"`
	Channel   string `json:"channel" form:"channel"`
	Status    string `json:"status" form:"status"`
	Page      int    `json:"page" form:"page"`
	PageSize  int    `json:"pageSize" form:"pageSize"`
}

// DeliveryStats is an aggregation over the dispatch log.
type DeliveryStats struct {
	Total         int64            `json:"total"`
	Sent          int64            `json:"sent"`
	Failed        int64            `json:"failed"`
	Skipped       int64            `json:"skipped"`
	TimedOut      int64            `json:"timedOut"`
	ChannelCounts map[string]int64 `json:"channelCounts"`
}
