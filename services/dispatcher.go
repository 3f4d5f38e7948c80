package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
	"transferdesk/interfaces"
	"transferdesk/models"
	"transferdesk/utils"

	"github.com/sirupsen/logrus"
)

// DispatcherConfig bounds the dispatch fan-out and retry budget.
type DispatcherConfig struct {
	WorkerCount   int           `json:"workerCount"`
	RetryAttempts int           `json:"retryAttempts"`
	RetryDelay    time.Duration `json:"retryDelay"`
}

func DefaultDispatcherConfig() DispatcherConfig {
	return DispatcherConfig{
		WorkerCount:   8,
		RetryAttempts: 3,
		RetryDelay:    500 * time.Millisecond,
	}
}

// ChannelDispatcher performs delivery attempts with per-channel
// retry/fallback. Groups fan out across a bounded worker pool so one slow
// recipient never delays the others; within a group the primary channel
// completes (success or failure) before any fallback is attempted.
//
// Delivery is at-most-once-intended but at-least-once-attempted: a retried
// request may have already succeeded upstream. Idempotency is the
// provider's concern.
type ChannelDispatcher struct {
	providers map[models.Channel]interfaces.DeliveryProvider
	config    DispatcherConfig
}

func NewChannelDispatcher(config DispatcherConfig, providers ...interfaces.DeliveryProvider) *ChannelDispatcher {
	if config.WorkerCount <= 0 {
		config.WorkerCount = DefaultDispatcherConfig().WorkerCount
	}
	if config.RetryAttempts <= 0 {
		config.RetryAttempts = DefaultDispatcherConfig().RetryAttempts
	}
	if config.RetryDelay <= 0 {
		config.RetryDelay = DefaultDispatcherConfig().RetryDelay
	}

	byChannel := make(map[models.Channel]interfaces.DeliveryProvider, len(providers))
	for _, p := range providers {
		byChannel[p.Channel()] = p
	}

	return &ChannelDispatcher{
		providers: byChannel,
		config:    config,
	}
}

// Dispatch attempts every group and returns one outcome per planned item.
// Items abandoned by the context deadline are recorded with status timeout,
// never silently dropped.
func (cd *ChannelDispatcher) Dispatch(ctx context.Context, eventType models.EventType, groups []models.DispatchGroup) []models.DispatchOutcome {
	if len(groups) == 0 {
		return nil
	}

	jobs := make(chan models.DispatchGroup)

	var mu sync.Mutex
	var outcomes []models.DispatchOutcome

	var wg sync.WaitGroup
	workerCount := cd.config.WorkerCount
	if workerCount > len(groups) {
		workerCount = len(groups)
	}

	for i := 0; i < workerCount; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for group := range jobs {
				results := cd.processGroup(ctx, eventType, group)
				mu.Lock()
				outcomes = append(outcomes, results...)
				mu.Unlock()
			}
		}()
	}

	for _, group := range groups {
		jobs <- group
	}
	close(jobs)
	wg.Wait()

	return outcomes
}

// processGroup handles one recipient's items under one rule. For priority
// "both" every item is attempted independently; for email_first/sms_first
// the secondary channel is attempted only when the primary fails, or
// immediately when the recipient has no primary address.
func (cd *ChannelDispatcher) processGroup(ctx context.Context, eventType models.EventType, group models.DispatchGroup) []models.DispatchOutcome {
	if group.Priority == models.ChannelPriorityBoth || group.Priority == "" || len(group.Items) == 1 {
		var results []models.DispatchOutcome
		for _, item := range group.Items {
			results = append(results, cd.attemptItem(ctx, eventType, item, ""))
		}
		return results
	}

	primaryChannel := group.Priority.PrimaryChannel()

	var primary, secondary *models.DispatchItem
	for i := range group.Items {
		if group.Items[i].Channel == primaryChannel {
			primary = &group.Items[i]
		} else {
			secondary = &group.Items[i]
		}
	}

	// No address on the primary channel: go straight to the secondary
	// without recording a primary failure.
	if primary == nil {
		return []models.DispatchOutcome{cd.attemptItem(ctx, eventType, *secondary, "")}
	}

	primaryOutcome := cd.attemptItem(ctx, eventType, *primary, "")
	results := []models.DispatchOutcome{primaryOutcome}

	if secondary == nil {
		return results
	}

	if primaryOutcome.Status == models.StatusSent {
		results = append(results, models.DispatchOutcome{
			ItemID:    secondary.ID,
			EventType: eventType,
			RuleID:    secondary.RuleID,
			Channel:   secondary.Channel,
			Address:   secondary.Address,
			Status:    models.StatusSkipped,
			Reason:    fmt.Sprintf("%s delivery succeeded, fallback not needed", primary.Channel),
			Timestamp: time.Now(),
		})
		return results
	}

	note := fmt.Sprintf("fallback after %s failure", primary.Channel)
	results = append(results, cd.attemptItem(ctx, eventType, *secondary, note))
	return results
}

// attemptItem runs the retry loop for one delivery. Transient failures are
// retried with exponential backoff up to the configured bound; terminal
// failures are recorded immediately.
func (cd *ChannelDispatcher) attemptItem(ctx context.Context, eventType models.EventType, item models.DispatchItem, note string) models.DispatchOutcome {
	outcome := models.DispatchOutcome{
		ItemID:    item.ID,
		EventType: eventType,
		RuleID:    item.RuleID,
		Channel:   item.Channel,
		Address:   item.Address,
		Timestamp: time.Now(),
	}

	provider, ok := cd.providers[item.Channel]
	if !ok {
		outcome.Status = models.StatusFailed
		outcome.Reason = fmt.Sprintf("no delivery provider configured for channel %s", item.Channel)
		return outcome
	}

	var lastErr error
	for attempt := 1; attempt <= cd.config.RetryAttempts; attempt++ {
		if ctx.Err() != nil {
			outcome.Status = models.StatusTimeout
			outcome.Reason = "handle deadline exceeded before delivery completed"
			outcome.Attempts = attempt - 1
			return outcome
		}

		outcome.Attempts = attempt
		lastErr = provider.Send(ctx, item.Address, item.Content)
		if lastErr == nil {
			outcome.Status = models.StatusSent
			outcome.Reason = note
			outcome.Timestamp = time.Now()
			return outcome
		}

		if !utils.IsTransientDelivery(lastErr) {
			logrus.Warnf("Terminal %s delivery failure to %s: %v", item.Channel, item.Address, lastErr)
			break
		}

		logrus.Debugf("Transient %s delivery failure to %s (attempt %d/%d): %v",
			item.Channel, item.Address, attempt, cd.config.RetryAttempts, lastErr)

		if attempt < cd.config.RetryAttempts {
			backoff := cd.config.RetryDelay * time.Duration(1<<(attempt-1))
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				outcome.Status = models.StatusTimeout
				outcome.Reason = "handle deadline exceeded during retry backoff"
				return outcome
			}
		}
	}

	if errors.Is(lastErr, context.DeadlineExceeded) || errors.Is(lastErr, context.Canceled) {
		outcome.Status = models.StatusTimeout
		outcome.Reason = "handle deadline exceeded before delivery completed"
		return outcome
	}

	outcome.Status = models.StatusFailed
	outcome.Reason = utils.DeliveryFailureReason(lastErr)
	if note != "" {
		outcome.Reason = note + ": " + outcome.Reason
	}
	outcome.Timestamp = time.Now()
	return outcome
}
