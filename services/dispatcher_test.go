package services

import (
	"context"
	"sync"
	"testing"
	"time"
	"transferdesk/models"
	"transferdesk/utils"

	"github.com/stretchr/testify/assert"
)

// flakyProvider fails transiently a fixed number of times per address, then
// succeeds. The package mocks return the same error on every call, which
// cannot exercise retry-then-success.
type flakyProvider struct {
	mu        sync.Mutex
	channel   models.Channel
	failures  int
	attempts  map[string]int
	succeeded map[string]bool
}

func newFlakyProvider(channel models.Channel, failures int) *flakyProvider {
	return &flakyProvider{
		channel:   channel,
		failures:  failures,
		attempts:  make(map[string]int),
		succeeded: make(map[string]bool),
	}
}

func (f *flakyProvider) Channel() models.Channel {
	return f.channel
}

func (f *flakyProvider) Send(ctx context.Context, address string, content models.RenderedContent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.attempts[address]++
	if f.attempts[address] <= f.failures {
		return utils.NewTransientDeliveryError("provider briefly unavailable", nil)
	}
	f.succeeded[address] = true
	return nil
}

func testDispatcherConfig() DispatcherConfig {
	return DispatcherConfig{
		WorkerCount:   2,
		RetryAttempts: 3,
		RetryDelay:    time.Millisecond,
	}
}

func emailItem(address string) models.DispatchItem {
	return models.DispatchItem{
		ID:           utils.GenerateUUID(),
		RuleID:       "rule-1",
		Channel:      models.ChannelEmail,
		Address:      address,
		RecipientKey: "user-1",
		Content:      models.RenderedContent{Subject: "Transfer requested", Body: "VIN 1FTEW1 is heading to Downtown."},
	}
}

func smsItem(address string) models.DispatchItem {
	return models.DispatchItem{
		ID:           utils.GenerateUUID(),
		RuleID:       "rule-1",
		Channel:      models.ChannelSMS,
		Address:      address,
		RecipientKey: "user-1",
		Content:      models.RenderedContent{Body: "VIN 1FTEW1 is heading to Downtown."},
	}
}

func findOutcome(t *testing.T, outcomes []models.DispatchOutcome, channel models.Channel) models.DispatchOutcome {
	t.Helper()
	for _, o := range outcomes {
		if o.Channel == channel {
			return o
		}
	}
	t.Fatalf("no outcome for channel %s", channel)
	return models.DispatchOutcome{}
}

func TestDispatch_SuccessfulSend(t *testing.T) {
	email := NewMockEmailProvider()
	cd := NewChannelDispatcher(testDispatcherConfig(), email)

	groups := []models.DispatchGroup{{
		RecipientKey: "user-1",
		RuleID:       "rule-1",
		Priority:     models.ChannelPriorityBoth,
		Items:        []models.DispatchItem{emailItem("dana@example.com")},
	}}

	outcomes := cd.Dispatch(context.Background(), models.EventTransferRequested, groups)

	assert.Len(t, outcomes, 1)
	assert.Equal(t, models.StatusSent, outcomes[0].Status)
	assert.Equal(t, 1, outcomes[0].Attempts)
	assert.Equal(t, 1, email.SentTo("dana@example.com"))
}

func TestDispatch_TransientFailureRetriedThenSucceeds(t *testing.T) {
	email := newFlakyProvider(models.ChannelEmail, 2)
	cd := NewChannelDispatcher(testDispatcherConfig(), email)

	groups := []models.DispatchGroup{{
		RecipientKey: "user-1",
		RuleID:       "rule-1",
		Items:        []models.DispatchItem{emailItem("dana@example.com")},
	}}

	outcomes := cd.Dispatch(context.Background(), models.EventTransferRequested, groups)

	assert.Len(t, outcomes, 1)
	assert.Equal(t, models.StatusSent, outcomes[0].Status)
	assert.Equal(t, 3, outcomes[0].Attempts)
	assert.True(t, email.succeeded["dana@example.com"])
}

func TestDispatch_TransientFailureExhaustsRetryBudget(t *testing.T) {
	email := NewMockEmailProvider()
	email.Fail["dana@example.com"] = utils.NewTransientDeliveryError("provider briefly unavailable", nil)
	cd := NewChannelDispatcher(testDispatcherConfig(), email)

	groups := []models.DispatchGroup{{
		RecipientKey: "user-1",
		RuleID:       "rule-1",
		Items:        []models.DispatchItem{emailItem("dana@example.com")},
	}}

	outcomes := cd.Dispatch(context.Background(), models.EventTransferRequested, groups)

	assert.Len(t, outcomes, 1)
	assert.Equal(t, models.StatusFailed, outcomes[0].Status)
	assert.Equal(t, 3, outcomes[0].Attempts)
	assert.Equal(t, "provider briefly unavailable", outcomes[0].Reason)
}

func TestDispatch_TerminalFailureNotRetried(t *testing.T) {
	email := NewMockEmailProvider()
	email.Fail["bad@example.com"] = utils.NewTerminalDeliveryError("mailbox does not exist", nil)
	cd := NewChannelDispatcher(testDispatcherConfig(), email)

	groups := []models.DispatchGroup{{
		RecipientKey: "user-1",
		RuleID:       "rule-1",
		Items:        []models.DispatchItem{emailItem("bad@example.com")},
	}}

	outcomes := cd.Dispatch(context.Background(), models.EventTransferRequested, groups)

	assert.Len(t, outcomes, 1)
	assert.Equal(t, models.StatusFailed, outcomes[0].Status)
	assert.Equal(t, 1, outcomes[0].Attempts)
	assert.Equal(t, "mailbox does not exist", outcomes[0].Reason)
}

func TestDispatch_BothPriorityAttemptsChannelsIndependently(t *testing.T) {
	email := NewMockEmailProvider()
	email.Fail["dana@example.com"] = utils.NewTerminalDeliveryError("mailbox does not exist", nil)
	sms := NewMockSMSProvider()
	cd := NewChannelDispatcher(testDispatcherConfig(), email, sms)

	groups := []models.DispatchGroup{{
		RecipientKey: "user-1",
		RuleID:       "rule-1",
		Priority:     models.ChannelPriorityBoth,
		Items:        []models.DispatchItem{emailItem("dana@example.com"), smsItem("+15550100302")},
	}}

	outcomes := cd.Dispatch(context.Background(), models.EventTransferRequested, groups)

	assert.Len(t, outcomes, 2)
	assert.Equal(t, models.StatusFailed, findOutcome(t, outcomes, models.ChannelEmail).Status)
	assert.Equal(t, models.StatusSent, findOutcome(t, outcomes, models.ChannelSMS).Status)
	assert.Equal(t, 1, sms.SentTo("+15550100302"))
}

func TestDispatch_EmailFirstSkipsFallbackOnSuccess(t *testing.T) {
	email := NewMockEmailProvider()
	sms := NewMockSMSProvider()
	cd := NewChannelDispatcher(testDispatcherConfig(), email, sms)

	groups := []models.DispatchGroup{{
		RecipientKey: "user-1",
		RuleID:       "rule-1",
		Priority:     models.ChannelPriorityEmailFirst,
		Items:        []models.DispatchItem{emailItem("dana@example.com"), smsItem("+15550100302")},
	}}

	outcomes := cd.Dispatch(context.Background(), models.EventTransferRequested, groups)

	assert.Len(t, outcomes, 2)
	smsOutcome := findOutcome(t, outcomes, models.ChannelSMS)
	assert.Equal(t, models.StatusSkipped, smsOutcome.Status)
	assert.Equal(t, "email delivery succeeded, fallback not needed", smsOutcome.Reason)
	assert.Equal(t, 0, sms.SentTo("+15550100302"))
}

func TestDispatch_EmailFirstFallsBackOnFailure(t *testing.T) {
	email := NewMockEmailProvider()
	email.Fail["dana@example.com"] = utils.NewTerminalDeliveryError("mailbox does not exist", nil)
	sms := NewMockSMSProvider()
	cd := NewChannelDispatcher(testDispatcherConfig(), email, sms)

	groups := []models.DispatchGroup{{
		RecipientKey: "user-1",
		RuleID:       "rule-1",
		Priority:     models.ChannelPriorityEmailFirst,
		Items:        []models.DispatchItem{emailItem("dana@example.com"), smsItem("+15550100302")},
	}}

	outcomes := cd.Dispatch(context.Background(), models.EventTransferRequested, groups)

	assert.Len(t, outcomes, 2)
	smsOutcome := findOutcome(t, outcomes, models.ChannelSMS)
	assert.Equal(t, models.StatusSent, smsOutcome.Status)
	assert.Equal(t, "fallback after email failure", smsOutcome.Reason)
	assert.Equal(t, 1, sms.SentTo("+15550100302"))
}

func TestDispatch_NoPrimaryAddressGoesStraightToFallback(t *testing.T) {
	sms := NewMockSMSProvider()
	cd := NewChannelDispatcher(testDispatcherConfig(), NewMockEmailProvider(), sms)

	// Recipient has no email: the group only carries the SMS item.
	groups := []models.DispatchGroup{{
		RecipientKey: "user-1",
		RuleID:       "rule-1",
		Priority:     models.ChannelPriorityEmailFirst,
		Items:        []models.DispatchItem{smsItem("+15550100302")},
	}}

	outcomes := cd.Dispatch(context.Background(), models.EventTransferRequested, groups)

	assert.Len(t, outcomes, 1)
	assert.Equal(t, models.StatusSent, outcomes[0].Status)
	assert.Empty(t, outcomes[0].Reason)
}

func TestDispatch_MissingProviderFailsItem(t *testing.T) {
	cd := NewChannelDispatcher(testDispatcherConfig(), NewMockEmailProvider())

	groups := []models.DispatchGroup{{
		RecipientKey: "user-1",
		RuleID:       "rule-1",
		Items:        []models.DispatchItem{smsItem("+15550100302")},
	}}

	outcomes := cd.Dispatch(context.Background(), models.EventTransferRequested, groups)

	assert.Len(t, outcomes, 1)
	assert.Equal(t, models.StatusFailed, outcomes[0].Status)
	assert.Contains(t, outcomes[0].Reason, "no delivery provider configured")
}

func TestDispatch_CancelledContextRecordsTimeout(t *testing.T) {
	email := NewMockEmailProvider()
	cd := NewChannelDispatcher(testDispatcherConfig(), email)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	groups := []models.DispatchGroup{{
		RecipientKey: "user-1",
		RuleID:       "rule-1",
		Items:        []models.DispatchItem{emailItem("dana@example.com")},
	}}

	outcomes := cd.Dispatch(ctx, models.EventTransferRequested, groups)

	assert.Len(t, outcomes, 1)
	assert.Equal(t, models.StatusTimeout, outcomes[0].Status)
	assert.Zero(t, outcomes[0].Attempts)
	assert.Equal(t, 0, email.SentTo("dana@example.com"))
}

func TestDispatch_EveryGroupProducesOutcomes(t *testing.T) {
	email := NewMockEmailProvider()
	cd := NewChannelDispatcher(testDispatcherConfig(), email)

	var groups []models.DispatchGroup
	addresses := []string{"a@example.com", "b@example.com", "c@example.com", "d@example.com", "e@example.com"}
	for _, addr := range addresses {
		groups = append(groups, models.DispatchGroup{
			RecipientKey: addr,
			RuleID:       "rule-1",
			Items:        []models.DispatchItem{emailItem(addr)},
		})
	}

	outcomes := cd.Dispatch(context.Background(), models.EventTransferRequested, groups)

	assert.Len(t, outcomes, len(addresses))
	for _, addr := range addresses {
		assert.Equal(t, 1, email.SentTo(addr))
	}
}
