package services

import (
	"fmt"
	"regexp"
	"strings"
	"transferdesk/models"
	"transferdesk/utils"
)

// tokenPattern matches {{fieldName}} variables, with optional inner spaces.
var tokenPattern = regexp.MustCompile(`\{\{\s*([a-zA-Z0-9_]+)\s*\}\}`)

// RecipientContext carries the per-recipient variables a template may
// reference for personalization.
type RecipientContext struct {
	Name  string
	Email string
	Phone string
}

// TemplateRenderer substitutes {{token}} variables from the event payload
// and recipient context. Rendering is pure and idempotent: identical inputs
// always yield identical output, which underpins the cross-rule content-hash
// deduplication in the engine.
type TemplateRenderer struct{}

func NewTemplateRenderer() *TemplateRenderer {
	return &TemplateRenderer{}
}

// Render produces the content for one channel of a template. It errors only
// when the template defines no content for the channel; unknown tokens in
// author-edited text render as empty strings, never as failures.
func (tr *TemplateRenderer) Render(tpl *models.NotificationTemplate, channel models.Channel, event *models.Event, rc RecipientContext) (models.RenderedContent, error) {
	switch channel {
	case models.ChannelEmail:
		if tpl.Email == nil {
			return models.RenderedContent{}, utils.NewServiceError(models.ErrCodeConfiguration,
				fmt.Sprintf("template %q has no email content", tpl.Name))
		}
		return models.RenderedContent{
			Subject: tr.substitute(tpl.Email.Subject, event, rc),
			Body:    tr.substitute(tpl.Email.Body, event, rc),
		}, nil

	case models.ChannelSMS:
		if tpl.SMS == nil {
			return models.RenderedContent{}, utils.NewServiceError(models.ErrCodeConfiguration,
				fmt.Sprintf("template %q has no sms content", tpl.Name))
		}
		return models.RenderedContent{
			Body: tr.substitute(tpl.SMS.Body, event, rc),
		}, nil
	}

	return models.RenderedContent{}, utils.NewServiceError(models.ErrCodeConfiguration,
		fmt.Sprintf("unknown channel %q", channel))
}

func (tr *TemplateRenderer) substitute(text string, event *models.Event, rc RecipientContext) string {
	return tokenPattern.ReplaceAllStringFunc(text, func(match string) string {
		token := strings.TrimSpace(match[2 : len(match)-2])

		switch token {
		case models.FieldRecipientName:
			return rc.Name
		case models.FieldRecipientEmail:
			return rc.Email
		case "recipientPhone":
			return rc.Phone
		}

		if value, ok := event.Field(token); ok {
			return value
		}
		return ""
	})
}
