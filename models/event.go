package models

import (
	"fmt"
	"math"
	"strconv"
	"time"
)

// EventType identifies the domain event a rule can be bound to.
type EventType string

const (
	EventTransferRequested EventType = "transfer_requested"
	EventTransferApproved  EventType = "transfer_approved"
	EventTransferInTransit EventType = "transfer_in_transit"
	EventTransferDelivered EventType = "transfer_delivered"
	EventTransferCancelled EventType = "transfer_cancelled"
	EventCommentAdded      EventType = "comment_added"
	EventVehicleUpdated    EventType = "vehicle_updated"
)

// AllEventTypes lists every event type the engine accepts, in a stable order.
var AllEventTypes = []EventType{
	EventTransferRequested,
	EventTransferApproved,
	EventTransferInTransit,
	EventTransferDelivered,
	EventTransferCancelled,
	EventCommentAdded,
	EventVehicleUpdated,
}

// IsValid reports whether t is one of the known event types.
func (t EventType) IsValid() bool {
	for _, known := range AllEventTypes {
		if t == known {
			return true
		}
	}
	return false
}

// IsTransfer reports whether t is a transfer lifecycle event. Only transfer
// events carry from/to locations, so the requesting/destination recipient
// buckets are meaningful for these alone.
func (t EventType) IsTransfer() bool {
	switch t {
	case EventTransferRequested, EventTransferApproved, EventTransferInTransit,
		EventTransferDelivered, EventTransferCancelled:
		return true
	}
	return false
}

// Event is an immutable domain event raised by a collaborator (transfer
// lifecycle, comments, vehicle edits). The engine consumes it read-only and
// never persists it.
type Event struct {
	Type       EventType              `json:"eventType" validate:"required"`
	Payload    map[string]interface{} `json:"payload"`
	OccurredAt time.Time              `json:"occurredAt,omitempty"`
}

// Field resolves a payload field to its stringified value. The second return
// is false when the field is absent, which condition evaluation treats as a
// non-match rather than an error (payloads are sparse by event type).
func (e *Event) Field(name string) (string, bool) {
	if e.Payload == nil {
		return "", false
	}
	raw, ok := e.Payload[name]
	if !ok || raw == nil {
		return "", false
	}
	return StringifyPayloadValue(raw), true
}

// StringifyPayloadValue renders a payload value the way condition values and
// template tokens see it. JSON numbers arrive as float64, so whole numbers
// are printed without a decimal point.
func StringifyPayloadValue(raw interface{}) string {
	switch v := raw.(type) {
	case string:
		return v
	case bool:
		return strconv.FormatBool(v)
	case float64:
		if v == math.Trunc(v) && math.Abs(v) < 1e15 {
			return strconv.FormatInt(int64(v), 10)
		}
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	default:
		return fmt.Sprintf("%v", v)
	}
}

// Payload field names shared across event types.
const (
	FieldVehicle         = "vehicle"
	FieldVIN             = "vin"
	FieldStockNumber     = "stockNumber"
	FieldCurrentLocation = "currentLocation"
	FieldFromLocation    = "fromLocation"
	FieldToLocation      = "toLocation"
	FieldRequestedBy     = "requestedBy"
	FieldPriority        = "priority"
	FieldCustomerWaiting = "customerWaiting"
	FieldTransferStatus  = "transferStatus"
	FieldCancelReason    = "cancelReason"
	FieldCommentBy       = "commentBy"
	FieldComment         = "comment"
	FieldUpdatedBy       = "updatedBy"
	FieldChangedFields   = "changedFields"
)

var transferFields = []string{
	FieldVehicle,
	FieldVIN,
	FieldStockNumber,
	FieldCurrentLocation,
	FieldFromLocation,
	FieldToLocation,
	FieldRequestedBy,
	FieldPriority,
	FieldCustomerWaiting,
	FieldTransferStatus,
}

// EventFieldRegistry is the single source of truth for which payload fields
// each event type exposes. Both the rule-save validator and the runtime
// evaluator consult it, so the condition builder and the engine cannot drift.
var EventFieldRegistry = map[EventType][]string{
	EventTransferRequested: transferFields,
	EventTransferApproved:  transferFields,
	EventTransferInTransit: transferFields,
	EventTransferDelivered: transferFields,
	EventTransferCancelled: append(append([]string{}, transferFields...), FieldCancelReason),
	EventCommentAdded: {
		FieldVehicle, FieldVIN, FieldStockNumber, FieldCurrentLocation,
		FieldCommentBy, FieldComment,
	},
	EventVehicleUpdated: {
		FieldVehicle, FieldVIN, FieldStockNumber, FieldCurrentLocation,
		FieldUpdatedBy, FieldChangedFields,
	},
}

// Recipient-scoped condition fields, usable only when a rule sets
// useConditions: they are evaluated per candidate during recipient
// resolution, against the candidate's own attributes.
const (
	FieldRecipientRole    = "recipientRole"
	FieldRecipientName    = "recipientName"
	FieldRecipientEmail   = "recipientEmail"
	FieldRecipientOnShift = "recipientOnShift"
)

var recipientFields = []string{
	FieldRecipientRole,
	FieldRecipientName,
	FieldRecipientEmail,
	FieldRecipientOnShift,
}

// KnownField reports whether field is a valid condition field for the given
// event type. Recipient-scoped fields are accepted only when the rule opts
// into per-recipient condition filtering.
func KnownField(eventType EventType, field string, includeRecipientFields bool) bool {
	for _, f := range EventFieldRegistry[eventType] {
		if f == field {
			return true
		}
	}
	if includeRecipientFields {
		for _, f := range recipientFields {
			if f == field {
				return true
			}
		}
	}
	return false
}
