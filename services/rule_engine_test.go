package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
	"transferdesk/models"
	"transferdesk/utils"

	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type mockRuleSource struct {
	rules []models.NotificationRule
	err   error
}

func (m *mockRuleSource) GetActiveByEvent(ctx context.Context, eventType models.EventType) ([]models.NotificationRule, error) {
	if m.err != nil {
		return nil, m.err
	}
	var matched []models.NotificationRule
	for _, r := range m.rules {
		if r.Event == eventType && r.Active {
			matched = append(matched, r)
		}
	}
	return matched, nil
}

type mockTemplateSource struct {
	templates map[string]*models.NotificationTemplate
}

func (m *mockTemplateSource) GetByID(ctx context.Context, templateID string) (*models.NotificationTemplate, error) {
	tpl, ok := m.templates[templateID]
	if !ok {
		return nil, errors.New("template not found")
	}
	return tpl, nil
}

type mockAuditSink struct {
	mu      sync.Mutex
	reports []*models.DispatchReport
}

func (m *mockAuditSink) RecordReport(report *models.DispatchReport) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reports = append(m.reports, report)
}

type engineFixture struct {
	rules     *mockRuleSource
	templates *mockTemplateSource
	directory *mockDirectory
	email     *MockEmailProvider
	sms       *MockSMSProvider
	audit     *mockAuditSink
	engine    *RuleEngine
}

func newEngineFixture() *engineFixture {
	f := &engineFixture{
		rules:     &mockRuleSource{},
		templates: &mockTemplateSource{templates: make(map[string]*models.NotificationTemplate)},
		directory: newMockDirectory(),
		email:     NewMockEmailProvider(),
		sms:       NewMockSMSProvider(),
		audit:     &mockAuditSink{},
	}

	dispatcher := NewChannelDispatcher(testDispatcherConfig(), f.email, f.sms)
	f.engine = NewRuleEngine(f.rules, f.templates, f.directory, dispatcher, f.audit, 5*time.Second)
	return f
}

func (f *engineFixture) addTemplate(tpl models.NotificationTemplate) string {
	if tpl.ID.IsZero() {
		tpl.ID = primitive.NewObjectID()
	}
	tpl.Active = true
	id := tpl.ID.Hex()
	f.templates.templates[id] = &tpl
	return id
}

func emailTemplate(subject, body string) models.NotificationTemplate {
	return models.NotificationTemplate{
		Name:  subject,
		Email: &models.EmailTemplateContent{Subject: subject, Body: body},
	}
}

func engineEvent() *models.Event {
	return &models.Event{
		Type: models.EventTransferRequested,
		Payload: map[string]interface{}{
			"vehicle":         "2022 F-150 XLT",
			"currentLocation": "L1",
			"fromLocation":    "L1",
			"toLocation":      "L2",
		},
		OccurredAt: time.Now(),
	}
}

func managerRule(templateID string) models.NotificationRule {
	return models.NotificationRule{
		ID:     primitive.NewObjectID(),
		Name:   "Notify managers on transfer request",
		Active: true,
		Event:  models.EventTransferRequested,
		Recipients: models.RecipientConfig{
			CurrentLocation: []models.Role{models.RoleManager},
		},
		Channels: models.ChannelSettings{
			Email:    models.ChannelConfig{Enabled: true, TemplateID: templateID},
			Priority: models.ChannelPriorityBoth,
		},
	}
}

func TestHandleEvent_EndToEnd(t *testing.T) {
	f := newEngineFixture()
	f.directory.addUser("L1", models.User{
		FirstName: "Dana", LastName: "Whitfield",
		Email: "dana@example.com", Role: models.RoleManager,
	})

	templateID := f.addTemplate(emailTemplate("Transfer requested", "{{vehicle}} is heading to {{toLocation}}."))
	rule := managerRule(templateID)
	f.rules.rules = []models.NotificationRule{rule}

	report, err := f.engine.HandleEvent(context.Background(), engineEvent())

	assert.NoError(t, err)
	assert.Equal(t, 1, report.RulesEvaluated)
	assert.Equal(t, 1, report.RulesMatched)
	assert.Equal(t, []string{rule.ID.Hex()}, report.MatchedRuleIDs)
	assert.Equal(t, 1, report.SentCount())
	assert.Zero(t, report.FailedCount())
	assert.False(t, report.CompletedAt.IsZero())

	assert.Equal(t, 1, f.email.SentTo("dana@example.com"))
	assert.Equal(t, "2022 F-150 XLT is heading to L2.", f.email.Sent[0].Content.Body)

	assert.Len(t, f.audit.reports, 1)
	assert.Equal(t, report.ID, f.audit.reports[0].ID)
}

func TestHandleEvent_NoMatchingRules(t *testing.T) {
	f := newEngineFixture()
	templateID := f.addTemplate(emailTemplate("Transfer requested", "body"))
	rule := managerRule(templateID)
	rule.Conditions = []models.RuleCondition{
		{Field: "priority", Operator: models.OperatorEquals, Value: "high"},
	}
	rule.ConditionLogic = models.ConditionLogicAnd
	f.rules.rules = []models.NotificationRule{rule}

	report, err := f.engine.HandleEvent(context.Background(), engineEvent())

	assert.NoError(t, err)
	assert.Equal(t, 1, report.RulesEvaluated)
	assert.Zero(t, report.RulesMatched)
	assert.NotNil(t, report.Outcomes)
	assert.Empty(t, report.Outcomes)
	assert.Len(t, f.audit.reports, 1)
}

func TestHandleEvent_UnknownEventTypeRejected(t *testing.T) {
	f := newEngineFixture()

	_, err := f.engine.HandleEvent(context.Background(), &models.Event{Type: "vehicle_teleported"})

	var svcErr utils.ServiceError
	assert.True(t, errors.As(err, &svcErr))
	assert.Equal(t, models.ErrCodeConfiguration, svcErr.Code)
	assert.Equal(t, 400, svcErr.StatusCode)
}

func TestHandleEvent_RuleLoadFailure(t *testing.T) {
	f := newEngineFixture()
	f.rules.err = errors.New("mongo unavailable")

	_, err := f.engine.HandleEvent(context.Background(), engineEvent())

	var svcErr utils.ServiceError
	assert.True(t, errors.As(err, &svcErr))
	assert.Equal(t, models.ErrCodeExternal, svcErr.Code)
}

func TestHandleEvent_CrossRuleDuplicateSuppressed(t *testing.T) {
	f := newEngineFixture()
	f.directory.addUser("L1", models.User{
		FirstName: "Dana", Email: "dana@example.com", Role: models.RoleManager,
	})

	// Two rules bound to the same template produce identical content for the
	// same address; the second is a duplicate.
	templateID := f.addTemplate(emailTemplate("Transfer requested", "{{vehicle}} is moving."))
	first := managerRule(templateID)
	second := managerRule(templateID)
	second.Name = "Redundant manager rule"
	f.rules.rules = []models.NotificationRule{first, second}

	report, err := f.engine.HandleEvent(context.Background(), engineEvent())

	assert.NoError(t, err)
	assert.Equal(t, 2, report.RulesMatched)
	assert.Equal(t, 1, report.Suppressed)
	assert.Equal(t, 1, report.SentCount())
	assert.Equal(t, 1, f.email.SentTo("dana@example.com"))
}

func TestHandleEvent_DifferentContentNotSuppressed(t *testing.T) {
	f := newEngineFixture()
	f.directory.addUser("L1", models.User{
		FirstName: "Dana", Email: "dana@example.com", Role: models.RoleManager,
	})

	first := managerRule(f.addTemplate(emailTemplate("Transfer requested", "Short notice.")))
	second := managerRule(f.addTemplate(emailTemplate("Transfer detail", "{{vehicle}} from {{fromLocation}} to {{toLocation}}.")))
	f.rules.rules = []models.NotificationRule{first, second}

	report, err := f.engine.HandleEvent(context.Background(), engineEvent())

	assert.NoError(t, err)
	assert.Zero(t, report.Suppressed)
	assert.Equal(t, 2, f.email.SentTo("dana@example.com"))
}

func TestHandleEvent_SuppressedPrimaryDropsFallback(t *testing.T) {
	f := newEngineFixture()
	f.directory.addUser("L1", models.User{
		FirstName: "Dana", Email: "dana@example.com", Phone: "(555) 010-0302",
		Role: models.RoleManager,
	})

	sharedEmail := f.addTemplate(emailTemplate("Transfer requested", "A vehicle is moving."))
	smsOnly := f.addTemplate(models.NotificationTemplate{
		Name: "Transfer SMS",
		SMS:  &models.SMSTemplateContent{Body: "Vehicle on the move."},
	})

	first := managerRule(sharedEmail)

	second := managerRule(sharedEmail)
	second.Channels.SMS = models.ChannelConfig{Enabled: true, TemplateID: smsOnly}
	second.Channels.Priority = models.ChannelPriorityEmailFirst
	f.rules.rules = []models.NotificationRule{first, second}

	report, err := f.engine.HandleEvent(context.Background(), engineEvent())

	// The second rule's email duplicates the first rule's and email is its
	// primary channel, so its SMS fallback is suppressed with it.
	assert.NoError(t, err)
	assert.Equal(t, 1, report.Suppressed)
	assert.Equal(t, 1, f.email.SentTo("dana@example.com"))
	assert.Equal(t, 0, f.sms.SentTo("+15550100302"))
}

func TestHandleEvent_SuppressedGroupDoesNotShadowLaterRule(t *testing.T) {
	f := newEngineFixture()
	f.directory.addUser("L1", models.User{
		FirstName: "Dana", Email: "dana@example.com", Phone: "(555) 010-0302",
		Role: models.RoleManager,
	})

	smsTpl := f.addTemplate(models.NotificationTemplate{
		Name: "Transfer SMS",
		SMS:  &models.SMSTemplateContent{Body: "Vehicle on the move."},
	})
	emailTpl := f.addTemplate(emailTemplate("Transfer requested", "A vehicle is moving."))

	smsOnly := managerRule(smsTpl)
	smsOnly.Channels.Email = models.ChannelConfig{}
	smsOnly.Channels.SMS = models.ChannelConfig{Enabled: true, TemplateID: smsTpl}

	// Its SMS primary duplicates the first rule's, so the whole group is
	// suppressed, including the email item that was never dispatched.
	smsFirst := managerRule(emailTpl)
	smsFirst.Channels.SMS = models.ChannelConfig{Enabled: true, TemplateID: smsTpl}
	smsFirst.Channels.Priority = models.ChannelPrioritySMSFirst

	emailOnly := managerRule(emailTpl)

	f.rules.rules = []models.NotificationRule{smsOnly, smsFirst, emailOnly}

	report, err := f.engine.HandleEvent(context.Background(), engineEvent())

	// The suppressed group's email never went out, so the third rule's
	// identical email must still be dispatched.
	assert.NoError(t, err)
	assert.Equal(t, 2, report.Suppressed)
	assert.Equal(t, 2, report.SentCount())
	assert.Equal(t, 1, f.email.SentTo("dana@example.com"))
	assert.Equal(t, 1, f.sms.SentTo("+15550100302"))
}

func TestHandleEvent_DanglingTemplateSkipsChannel(t *testing.T) {
	f := newEngineFixture()
	f.directory.addUser("L1", models.User{
		FirstName: "Dana", Email: "dana@example.com", Role: models.RoleManager,
	})

	rule := managerRule(primitive.NewObjectID().Hex())
	f.rules.rules = []models.NotificationRule{rule}

	report, err := f.engine.HandleEvent(context.Background(), engineEvent())

	assert.NoError(t, err)
	assert.Equal(t, 1, report.RulesMatched)
	assert.Empty(t, report.Outcomes)
	assert.Empty(t, f.email.Sent)
}

func TestTestRule_DryRunNeverDispatches(t *testing.T) {
	f := newEngineFixture()
	f.directory.addUser("L1", models.User{
		FirstName: "Dana", Email: "dana@example.com", Phone: "(555) 010-0302",
		Role: models.RoleManager,
	})

	rule := managerRule(f.addTemplate(emailTemplate("Transfer requested", "body")))

	result, err := f.engine.TestRule(context.Background(), &rule, engineEvent())

	assert.NoError(t, err)
	assert.True(t, result.ConditionsMet)
	assert.Equal(t, []string{"dana@example.com"}, result.EmailRecipients)
	assert.Equal(t, []string{"+15550100302"}, result.SMSRecipients)
	assert.Equal(t, 1, result.RecipientCount)
	assert.True(t, result.WouldDispatch)

	assert.Empty(t, f.email.Sent)
	assert.Empty(t, f.sms.Sent)
	assert.Empty(t, f.audit.reports)
}

func TestTestRule_ConditionsNotMetShortCircuits(t *testing.T) {
	f := newEngineFixture()
	rule := managerRule(f.addTemplate(emailTemplate("Transfer requested", "body")))
	rule.Conditions = []models.RuleCondition{
		{Field: "priority", Operator: models.OperatorEquals, Value: "high"},
	}
	rule.ConditionLogic = models.ConditionLogicAnd

	result, err := f.engine.TestRule(context.Background(), &rule, engineEvent())

	assert.NoError(t, err)
	assert.False(t, result.ConditionsMet)
	assert.False(t, result.WouldDispatch)
	assert.Empty(t, result.EmailRecipients)
	assert.Zero(t, result.RecipientCount)
}

func TestTestRule_EventTypeMismatchRejected(t *testing.T) {
	f := newEngineFixture()
	rule := managerRule(f.addTemplate(emailTemplate("Transfer requested", "body")))

	event := engineEvent()
	event.Type = models.EventVehicleUpdated

	_, err := f.engine.TestRule(context.Background(), &rule, event)

	var svcErr utils.ServiceError
	assert.True(t, errors.As(err, &svcErr))
	assert.Equal(t, models.ErrCodeConfiguration, svcErr.Code)
}
