package services

import (
	"testing"
	"transferdesk/models"

	"github.com/stretchr/testify/assert"
)

func sampleTemplate() *models.NotificationTemplate {
	return &models.NotificationTemplate{
		Name: "Transfer Requested",
		Email: &models.EmailTemplateContent{
			Subject: "Transfer requested: {{vehicle}}",
			Body:    "{{requestedBy}} requested {{vehicle}} from {{fromLocation}} to {{toLocation}}.",
		},
		SMS: &models.SMSTemplateContent{
			Body: "Transfer: {{vehicle}} -> {{toLocation}}",
		},
		Active: true,
	}
}

func TestRender_EmailSubstitution(t *testing.T) {
	renderer := NewTemplateRenderer()
	event := &models.Event{
		Type: models.EventTransferRequested,
		Payload: map[string]interface{}{
			"vehicle":      "2024 Honda Accord",
			"requestedBy":  "Dana Whitfield",
			"fromLocation": "L1",
			"toLocation":   "L2",
		},
	}

	content, err := renderer.Render(sampleTemplate(), models.ChannelEmail, event, RecipientContext{})
	assert.NoError(t, err)
	assert.Equal(t, "Transfer requested: 2024 Honda Accord", content.Subject)
	assert.Equal(t, "Dana Whitfield requested 2024 Honda Accord from L1 to L2.", content.Body)
}

func TestRender_SMSHasNoSubject(t *testing.T) {
	renderer := NewTemplateRenderer()
	event := &models.Event{
		Type: models.EventTransferRequested,
		Payload: map[string]interface{}{
			"vehicle":    "2024 Honda Accord",
			"toLocation": "L2",
		},
	}

	content, err := renderer.Render(sampleTemplate(), models.ChannelSMS, event, RecipientContext{})
	assert.NoError(t, err)
	assert.Empty(t, content.Subject)
	assert.Equal(t, "Transfer: 2024 Honda Accord -> L2", content.Body)
}

func TestRender_RecipientTokens(t *testing.T) {
	renderer := NewTemplateRenderer()
	tpl := &models.NotificationTemplate{
		Name: "Personalized",
		Email: &models.EmailTemplateContent{
			Subject: "Hi {{recipientName}}",
			Body:    "Reaching you at {{recipientEmail}}.",
		},
	}

	content, err := renderer.Render(tpl, models.ChannelEmail, &models.Event{Type: models.EventCommentAdded}, RecipientContext{
		Name:  "Marcus Reyes",
		Email: "marcus.reyes@transferdesk.local",
	})
	assert.NoError(t, err)
	assert.Equal(t, "Hi Marcus Reyes", content.Subject)
	assert.Equal(t, "Reaching you at marcus.reyes@transferdesk.local.", content.Body)
}

func TestRender_UnknownTokenRendersEmpty(t *testing.T) {
	renderer := NewTemplateRenderer()
	tpl := &models.NotificationTemplate{
		Name: "Sparse",
		SMS:  &models.SMSTemplateContent{Body: "Vehicle {{vehicle}} reason {{cancelReason}}"},
	}
	event := &models.Event{
		Type:    models.EventTransferCancelled,
		Payload: map[string]interface{}{"vehicle": "Civic"},
	}

	content, err := renderer.Render(tpl, models.ChannelSMS, event, RecipientContext{})
	assert.NoError(t, err)
	assert.Equal(t, "Vehicle Civic reason ", content.Body)
}

func TestRender_TokenWhitespaceTolerated(t *testing.T) {
	renderer := NewTemplateRenderer()
	tpl := &models.NotificationTemplate{
		Name: "Spaced",
		SMS:  &models.SMSTemplateContent{Body: "{{ vehicle }} arrived"},
	}
	event := &models.Event{
		Type:    models.EventTransferDelivered,
		Payload: map[string]interface{}{"vehicle": "Civic"},
	}

	content, err := renderer.Render(tpl, models.ChannelSMS, event, RecipientContext{})
	assert.NoError(t, err)
	assert.Equal(t, "Civic arrived", content.Body)
}

func TestRender_MissingChannelContentFails(t *testing.T) {
	renderer := NewTemplateRenderer()
	tpl := &models.NotificationTemplate{
		Name: "Email only",
		Email: &models.EmailTemplateContent{
			Subject: "s", Body: "b",
		},
	}

	_, err := renderer.Render(tpl, models.ChannelSMS, &models.Event{Type: models.EventCommentAdded}, RecipientContext{})
	assert.Error(t, err)
}

func TestRender_IsDeterministic(t *testing.T) {
	renderer := NewTemplateRenderer()
	event := &models.Event{
		Type:    models.EventTransferRequested,
		Payload: map[string]interface{}{"vehicle": "Civic", "toLocation": "L2"},
	}

	first, err := renderer.Render(sampleTemplate(), models.ChannelSMS, event, RecipientContext{})
	assert.NoError(t, err)
	second, err := renderer.Render(sampleTemplate(), models.ChannelSMS, event, RecipientContext{})
	assert.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, first.Hash(), second.Hash())
}
