package workers

import (
	"context"
	"sync"
	"time"
	"transferdesk/models"

	"github.com/sirupsen/logrus"
)

// OutcomeStore persists finished dispatch outcomes.
type OutcomeStore interface {
	InsertOutcomes(ctx context.Context, reportID string, outcomes []models.DispatchOutcome) error
}

// RuleUsageStore records that a rule matched an event.
type RuleUsageStore interface {
	IncrementTriggerCount(ctx context.Context, id string) error
}

type AuditWorkerConfig struct {
	WorkerCount  int           `json:"workerCount"`
	QueueSize    int           `json:"queueSize"`
	WriteTimeout time.Duration `json:"writeTimeout"`
}

func DefaultAuditWorkerConfig() AuditWorkerConfig {
	return AuditWorkerConfig{
		WorkerCount:  2,
		QueueSize:    500,
		WriteTimeout: 10 * time.Second,
	}
}

type AuditWorkerStats struct {
	ReportsProcessed int64     `json:"reportsProcessed"`
	ReportsDropped   int64     `json:"reportsDropped"`
	WritesFailed     int64     `json:"writesFailed"`
	LastProcessedAt  time.Time `json:"lastProcessedAt"`
	QueueLength      int       `json:"queueLength"`
	StartTime        time.Time `json:"startTime"`
}

// AuditWorker persists dispatch reports off the event intake path. It
// implements interfaces.AuditSink: RecordReport never blocks the caller,
// and a full queue drops the report with a log line rather than stalling
// event handling.
type AuditWorker struct {
	outcomes OutcomeStore
	usage    RuleUsageStore

	config AuditWorkerConfig
	queue  chan *models.DispatchReport

	isRunning bool
	mutex     sync.RWMutex

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	stats      AuditWorkerStats
	statsMutex sync.RWMutex
}

func NewAuditWorker(outcomes OutcomeStore, usage RuleUsageStore, config AuditWorkerConfig) *AuditWorker {
	if config.WorkerCount <= 0 {
		config.WorkerCount = 2
	}
	if config.QueueSize <= 0 {
		config.QueueSize = 500
	}
	if config.WriteTimeout <= 0 {
		config.WriteTimeout = 10 * time.Second
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &AuditWorker{
		outcomes: outcomes,
		usage:    usage,
		config:   config,
		queue:    make(chan *models.DispatchReport, config.QueueSize),
		ctx:      ctx,
		cancel:   cancel,
		stats: AuditWorkerStats{
			StartTime: time.Now(),
		},
	}
}

func (aw *AuditWorker) Start() error {
	aw.mutex.Lock()
	defer aw.mutex.Unlock()

	if aw.isRunning {
		return nil
	}
	aw.isRunning = true

	logrus.Infof("Starting Audit Worker with %d workers", aw.config.WorkerCount)

	for i := 0; i < aw.config.WorkerCount; i++ {
		aw.wg.Add(1)
		go aw.worker(i)
	}

	return nil
}

func (aw *AuditWorker) Stop() error {
	aw.mutex.Lock()
	defer aw.mutex.Unlock()

	if !aw.isRunning {
		return nil
	}

	logrus.Info("Stopping Audit Worker...")

	aw.isRunning = false
	close(aw.queue)
	aw.wg.Wait()
	aw.cancel()

	logrus.Info("Audit Worker stopped")
	return nil
}

// RecordReport queues a report for persistence. Non-blocking: the dispatch
// report was already returned to the caller, the audit trail is best-effort.
func (aw *AuditWorker) RecordReport(report *models.DispatchReport) {
	aw.mutex.RLock()
	running := aw.isRunning
	aw.mutex.RUnlock()

	if !running || report == nil {
		return
	}

	select {
	case aw.queue <- report:
	default:
		aw.statsMutex.Lock()
		aw.stats.ReportsDropped++
		aw.statsMutex.Unlock()
		logrus.Warnf("Audit queue full, dropping report %s (%s)", report.ID, report.EventType)
	}
}

func (aw *AuditWorker) GetStats() AuditWorkerStats {
	aw.statsMutex.RLock()
	defer aw.statsMutex.RUnlock()

	stats := aw.stats
	stats.QueueLength = len(aw.queue)
	return stats
}

func (aw *AuditWorker) worker(workerID int) {
	defer aw.wg.Done()

	logrus.Debugf("Audit worker %d started", workerID)

	for {
		select {
		case report, ok := <-aw.queue:
			if !ok {
				logrus.Debugf("Audit worker %d stopping", workerID)
				return
			}
			aw.processReport(report)

		case <-aw.ctx.Done():
			logrus.Debugf("Audit worker %d stopping due to context cancellation", workerID)
			return
		}
	}
}

func (aw *AuditWorker) processReport(report *models.DispatchReport) {
	ctx, cancel := context.WithTimeout(context.Background(), aw.config.WriteTimeout)
	defer cancel()

	if err := aw.outcomes.InsertOutcomes(ctx, report.ID, report.Outcomes); err != nil {
		aw.statsMutex.Lock()
		aw.stats.WritesFailed++
		aw.statsMutex.Unlock()
		logrus.Errorf("Failed to persist dispatch outcomes for report %s: %v", report.ID, err)
		return
	}

	if aw.usage != nil {
		for _, ruleID := range report.MatchedRuleIDs {
			if err := aw.usage.IncrementTriggerCount(ctx, ruleID); err != nil {
				logrus.Warnf("Failed to bump trigger count for rule %s: %v", ruleID, err)
			}
		}
	}

	aw.statsMutex.Lock()
	aw.stats.ReportsProcessed++
	aw.stats.LastProcessedAt = time.Now()
	aw.statsMutex.Unlock()
}
