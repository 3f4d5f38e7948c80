package services

import (
	"context"
	"net/http"
	"sync"
	"time"
	"transferdesk/interfaces"
	"transferdesk/models"
	"transferdesk/utils"

	"github.com/sirupsen/logrus"
)

// RuleEngine orchestrates event handling: it loads the active rules bound
// to an event type, evaluates their conditions, resolves recipients,
// renders templates, merges duplicates across rules, and hands the plan to
// the dispatcher. All collaborators are injected, so the whole pipeline
// runs in unit tests without network access.
type RuleEngine struct {
	rules     interfaces.RuleSource
	templates interfaces.TemplateSource

	evaluator  *ConditionEvaluator
	resolver   *RecipientResolver
	renderer   *TemplateRenderer
	dispatcher *ChannelDispatcher

	audit interfaces.AuditSink // optional

	handleTimeout time.Duration
}

func NewRuleEngine(
	rules interfaces.RuleSource,
	templates interfaces.TemplateSource,
	directory interfaces.UserDirectory,
	dispatcher *ChannelDispatcher,
	audit interfaces.AuditSink,
	handleTimeout time.Duration,
) *RuleEngine {
	if handleTimeout <= 0 {
		handleTimeout = 30 * time.Second
	}

	evaluator := NewConditionEvaluator()

	return &RuleEngine{
		rules:         rules,
		templates:     templates,
		evaluator:     evaluator,
		resolver:      NewRecipientResolver(directory, evaluator),
		renderer:      NewTemplateRenderer(),
		dispatcher:    dispatcher,
		audit:         audit,
		handleTimeout: handleTimeout,
	}
}

// HandleEvent runs the full pipeline for one event and returns the
// per-recipient, per-channel outcome report. Notification failures surface
// only through the report, never as an error: the business transaction that
// raised the event must not roll back because a notification could not be
// delivered. The returned error covers unknown event types and a failed
// rule load only.
func (re *RuleEngine) HandleEvent(ctx context.Context, event *models.Event) (*models.DispatchReport, error) {
	if event == nil || !event.Type.IsValid() {
		eventType := models.EventType("")
		if event != nil {
			eventType = event.Type
		}
		return nil, utils.NewServiceErrorWithStatus(models.ErrCodeConfiguration,
			"unknown event type: "+string(eventType), http.StatusBadRequest)
	}

	ctx, cancel := context.WithTimeout(ctx, re.handleTimeout)
	defer cancel()

	report := &models.DispatchReport{
		ID:         utils.GenerateUUID(),
		EventType:  event.Type,
		ReceivedAt: time.Now(),
	}

	rules, err := re.rules.GetActiveByEvent(ctx, event.Type)
	if err != nil {
		return nil, utils.NewServiceErrorWithCause(models.ErrCodeExternal,
			"failed to load notification rules", err)
	}

	report.RulesEvaluated = len(rules)
	matched := re.evaluateRules(rules, event)
	report.RulesMatched = len(matched)
	for _, rule := range matched {
		report.MatchedRuleIDs = append(report.MatchedRuleIDs, rule.ID.Hex())
	}

	if len(matched) == 0 {
		logrus.Debugf("No matching rules for event %s (%d evaluated)", event.Type, len(rules))
		return re.complete(report), nil
	}

	groups, suppressed := re.buildDispatchPlan(ctx, matched, event)
	report.Suppressed = suppressed

	if len(groups) == 0 {
		logrus.Debugf("Event %s matched %d rules but resolved no recipients", event.Type, len(matched))
		return re.complete(report), nil
	}

	report.Outcomes = re.dispatcher.Dispatch(ctx, event.Type, groups)

	logrus.Infof("Event %s dispatched: %d sent, %d failed, %d suppressed duplicates",
		event.Type, report.SentCount(), report.FailedCount(), suppressed)

	return re.complete(report), nil
}

// TestRule is the dry-run harness: it runs condition evaluation and
// recipient resolution only and never touches templates or the delivery
// provider, so rule authors can validate a rule before activating it.
func (re *RuleEngine) TestRule(ctx context.Context, rule *models.NotificationRule, event *models.Event) (*models.TestRuleResult, error) {
	if event == nil || !event.Type.IsValid() {
		return nil, utils.NewServiceErrorWithStatus(models.ErrCodeConfiguration,
			"unknown event type", http.StatusBadRequest)
	}
	if rule.Event != event.Type {
		return nil, utils.NewServiceErrorWithStatus(models.ErrCodeConfiguration,
			"sample event type does not match the rule's bound event", http.StatusBadRequest)
	}

	result := &models.TestRuleResult{
		ConditionsMet:   re.evaluator.Evaluate(rule, event),
		EmailRecipients: []string{},
		SMSRecipients:   []string{},
	}
	if !result.ConditionsMet {
		return result, nil
	}

	set := re.resolver.Resolve(ctx, rule, event)
	result.EmailRecipients = set.EmailAddresses()
	result.SMSRecipients = set.PhoneNumbers()
	result.RecipientCount = len(set.Recipients())

	result.WouldDispatch = (rule.Channels.Email.Enabled && len(result.EmailRecipients) > 0) ||
		(rule.Channels.SMS.Enabled && len(result.SMSRecipients) > 0)

	return result, nil
}

// evaluateRules runs condition evaluation concurrently; rules are
// independent and read-only over shared data. Results keep the original
// rule order so cross-rule deduplication is deterministic.
func (re *RuleEngine) evaluateRules(rules []models.NotificationRule, event *models.Event) []models.NotificationRule {
	if len(rules) == 0 {
		return nil
	}

	results := make([]bool, len(rules))
	var wg sync.WaitGroup
	for i := range rules {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			results[idx] = re.evaluator.Evaluate(&rules[idx], event)
		}(i)
	}
	wg.Wait()

	var matched []models.NotificationRule
	for i, ok := range results {
		if ok {
			matched = append(matched, rules[i])
		}
	}
	return matched
}

// buildDispatchPlan resolves recipients and renders content for every
// matching rule, deduplicating across rules per (channel, address, content
// hash): two rules producing identical content for the same address send
// once, while different templates legitimately produce two notifications.
func (re *RuleEngine) buildDispatchPlan(ctx context.Context, matched []models.NotificationRule, event *models.Event) ([]models.DispatchGroup, int) {
	var groups []models.DispatchGroup
	suppressed := 0
	seen := make(map[string]bool)
	templateCache := make(map[string]*models.NotificationTemplate)

	for i := range matched {
		rule := &matched[i]
		set := re.resolver.Resolve(ctx, rule, event)
		if len(set.Recipients()) == 0 {
			continue
		}

		channels := re.usableChannels(ctx, rule, templateCache)
		if len(channels) == 0 {
			continue
		}

		for _, recipient := range set.Recipients() {
			group, dupes := re.buildGroup(rule, event, recipient, channels, templateCache, seen)
			suppressed += dupes
			if len(group.Items) > 0 {
				groups = append(groups, group)
			}
		}
	}

	return groups, suppressed
}

// usableChannels returns the rule's enabled channels whose template binding
// actually resolves. A dangling or inactive template is a configuration
// error that slipped past save-time validation; the engine logs it and
// skips the channel instead of failing the event.
func (re *RuleEngine) usableChannels(ctx context.Context, rule *models.NotificationRule, cache map[string]*models.NotificationTemplate) []models.Channel {
	var usable []models.Channel
	for _, ch := range rule.EnabledChannels() {
		templateID := rule.Channels.Config(ch).TemplateID
		tpl, err := re.loadTemplate(ctx, templateID, cache)
		if err != nil {
			logrus.Warnf("Rule %s: template %s for channel %s unavailable: %v",
				rule.ID.Hex(), templateID, ch, err)
			continue
		}
		if !tpl.Active || !tpl.HasChannel(ch) {
			logrus.Warnf("Rule %s: template %s has no active %s content", rule.ID.Hex(), templateID, ch)
			continue
		}
		usable = append(usable, ch)
	}
	return usable
}

func (re *RuleEngine) loadTemplate(ctx context.Context, templateID string, cache map[string]*models.NotificationTemplate) (*models.NotificationTemplate, error) {
	if tpl, ok := cache[templateID]; ok {
		return tpl, nil
	}
	tpl, err := re.templates.GetByID(ctx, templateID)
	if err != nil {
		return nil, err
	}
	cache[templateID] = tpl
	return tpl, nil
}

// buildGroup renders this recipient's items for each usable channel and
// applies cross-rule deduplication. When the rule requests fallback
// ordering and the primary item is a duplicate of an earlier rule's, the
// whole group is suppressed: the earlier rule owns that recipient's
// primary-then-fallback sequence.
func (re *RuleEngine) buildGroup(
	rule *models.NotificationRule,
	event *models.Event,
	recipient ResolvedRecipient,
	channels []models.Channel,
	cache map[string]*models.NotificationTemplate,
	seen map[string]bool,
) (models.DispatchGroup, int) {
	group := models.DispatchGroup{
		RecipientKey: recipient.Key,
		RuleID:       rule.ID.Hex(),
		Priority:     rule.Channels.Priority,
	}
	suppressed := 0

	rc := RecipientContext{Name: recipient.Name, Email: recipient.Email, Phone: recipient.Phone}
	primaryChannel := rule.Channels.Priority.PrimaryChannel()

	// Dedup keys are staged and committed only when the group survives:
	// a suppressed group's discarded items were never dispatched, so they
	// must not shadow a later rule's identical notification.
	var stagedKeys []string

	for _, ch := range channels {
		address := recipient.Email
		if ch == models.ChannelSMS {
			address = recipient.Phone
		}
		if address == "" {
			continue
		}

		tpl := cache[rule.Channels.Config(ch).TemplateID]
		content, err := re.renderer.Render(tpl, ch, event, rc)
		if err != nil {
			logrus.Warnf("Rule %s: rendering %s content failed: %v", rule.ID.Hex(), ch, err)
			continue
		}

		dedupKey := string(ch) + "|" + address + "|" + content.Hash()
		if seen[dedupKey] {
			suppressed++
			if ch == primaryChannel {
				// Drop the fallback too; it only fires on primary failure
				// and the surviving duplicate covers that sequence.
				suppressed += len(group.Items)
				return models.DispatchGroup{}, suppressed
			}
			continue
		}
		stagedKeys = append(stagedKeys, dedupKey)

		group.Items = append(group.Items, models.DispatchItem{
			ID:            utils.GenerateUUID(),
			RuleID:        rule.ID.Hex(),
			Channel:       ch,
			Address:       address,
			RecipientKey:  recipient.Key,
			RecipientName: recipient.Name,
			Content:       content,
		})
	}

	for _, key := range stagedKeys {
		seen[key] = true
	}

	return group, suppressed
}

func (re *RuleEngine) complete(report *models.DispatchReport) *models.DispatchReport {
	report.CompletedAt = time.Now()
	if report.Outcomes == nil {
		report.Outcomes = []models.DispatchOutcome{}
	}
	if re.audit != nil {
		re.audit.RecordReport(report)
	}
	return report
}
