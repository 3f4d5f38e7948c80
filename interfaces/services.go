package interfaces

import (
	"context"
	"transferdesk/models"
)

// Boundary contracts between the rule engine and its collaborators. The
// engine takes these as constructor arguments so unit tests can run the full
// pipeline without Mongo, Redis, or a delivery provider.

// RuleSource provides the active rule snapshot for an event type.
type RuleSource interface {
	GetActiveByEvent(ctx context.Context, eventType models.EventType) ([]models.NotificationRule, error)
}

// TemplateSource resolves templateIds referenced by rule channel configs.
type TemplateSource interface {
	GetByID(ctx context.Context, templateID string) (*models.NotificationTemplate, error)
}

// UserDirectory is the identity collaborator used by recipient resolution.
type UserDirectory interface {
	GetUsersAtLocation(ctx context.Context, locationCode string, roles []models.Role) ([]models.User, error)
	GetUsersByIDs(ctx context.Context, userIDs []string) ([]models.User, error)
}

// DeliveryProvider performs one delivery attempt on its channel. Errors
// should be utils.DeliveryError values so the dispatcher can distinguish
// transient failures (retried) from terminal ones (recorded immediately).
type DeliveryProvider interface {
	Channel() models.Channel
	Send(ctx context.Context, address string, content models.RenderedContent) error
}

// AuditSink receives completed dispatch reports. Recording must never block
// event handling; implementations buffer and write asynchronously.
type AuditSink interface {
	RecordReport(report *models.DispatchReport)
}
