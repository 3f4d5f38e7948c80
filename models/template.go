package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// EmailTemplateContent is the email rendering of a template. Both fields
// accept {{token}} variables.
type EmailTemplateContent struct {
	Subject string `json:"subjectTemplate" bson:"subjectTemplate"`
	Body    string `json:"bodyTemplate" bson:"bodyTemplate"`
}

// SMSTemplateContent is the SMS rendering of a template.
type SMSTemplateContent struct {
	Body string `json:"bodyTemplate" bson:"bodyTemplate"`
}

// NotificationTemplate is named, reusable content referenced by rules via
// templateId. A template may define content for one or both channels; a rule
// can only enable a channel whose content exists.
type NotificationTemplate struct {
	ID   primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	Name string             `json:"name" bson:"name"`

	Email *EmailTemplateContent `json:"email,omitempty" bson:"email,omitempty"`
	SMS   *SMSTemplateContent   `json:"sms,omitempty" bson:"sms,omitempty"`

	Active bool `json:"active" bson:"active"`

	IsDeleted bool       `json:"-" bson:"isDeleted,omitempty"`
	DeletedAt *time.Time `json:"-" bson:"deletedAt,omitempty"`
	CreatedAt time.Time  `json:"createdAt" bson:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt" bson:"updatedAt"`
}

// HasChannel reports whether the template defines content for the channel.
func (t *NotificationTemplate) HasChannel(ch Channel) bool {
	if ch == ChannelSMS {
		return t.SMS != nil
	}
	return t.Email != nil
}

type CreateTemplateRequest struct {
	Name   string                `json:"name" validate:"required,min=1,max=120"`
	Email  *EmailTemplateContent `json:"email,omitempty"`
	SMS    *SMSTemplateContent   `json:"sms,omitempty"`
	Active bool                  `json:"active"`
}

type UpdateTemplateRequest struct {
	Name   *string               `json:"name,omitempty" validate:"omitempty,min=1,max=120"`
	Email  *EmailTemplateContent `json:"email,omitempty"`
	SMS    *SMSTemplateContent   `json:"sms,omitempty"`
	Active *bool                 `json:"active,omitempty"`
}

type GetTemplatesRequest struct {
	Status   string `json:"status" form:"status"`
	Page     int    `json:"page" form:"page"`
	PageSize int    `json:"pageSize" form:"pageSize"`
}
