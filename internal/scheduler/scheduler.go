package scheduler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/curodigital/whatsapp-billing-relay/pkg/logger"
)

// billingValidator is a minimal internal interface for the scheduler. It
// matches ValidateCurrentMonth of ReportService and lets us unit test the
// scheduler with a small fake implementation.
type billingValidator interface {
	ValidateCurrentMonth(ctx context.Context) ([]string, error)
}

// Scheduler runs the billing validation sweep on an interval and raises an
// alert when discrepancies persist across consecutive runs. One noisy run is
// usually ingestion racing the read; the same issues twice is real.
type Scheduler struct {
	validator      billingValidator
	interval       time.Duration
	alertWebhook   string
	alertThreshold int

	// Internal state
	running  bool
	stopChan chan struct{}
	doneChan chan struct{}
	mu       sync.RWMutex

	// Statistics
	lastRunAt       time.Time
	runsCount       int64
	lastIssues      []string
	lastAlertSentAt time.Time

	consecutiveDiscrepancyCount int
}

type SchedulerStatus struct {
	Running                     bool          `json:"running"`
	LastRunAt                   time.Time     `json:"lastRunAt"`
	NextRunAt                   time.Time     `json:"nextRunAt,omitempty"`
	RunsCount                   int64         `json:"runsCount"`
	Interval                    time.Duration `json:"interval"`
	LastIssues                  []string      `json:"lastIssues"`
	ConsecutiveDiscrepancyCount int           `json:"consecutiveDiscrepancyCount"`
	LastAlertSentAt             time.Time     `json:"lastAlertSentAt,omitempty"`
}

func NewScheduler(validator billingValidator, interval time.Duration, alertWebhook string, alertThreshold int) *Scheduler {
	return &Scheduler{
		validator:      validator,
		interval:       interval,
		alertWebhook:   alertWebhook,
		alertThreshold: alertThreshold,
		running:        false,
	}
}

func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()

	if s.running {
		s.mu.Unlock()
		logger.Warnf("Validation scheduler is already running")
		return nil
	}

	s.running = true
	s.stopChan = make(chan struct{})
	s.doneChan = make(chan struct{})
	s.mu.Unlock()

	logger.Infof("Starting validation scheduler with interval: %v", s.interval)

	go s.run(ctx)

	return nil
}

func (s *Scheduler) run(ctx context.Context) {
	defer close(s.doneChan)

	s.runValidation(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.runValidation(ctx)

		case <-s.stopChan:
			logger.Warnf("Validation scheduler received stop signal")
			return

		case <-ctx.Done():
			logger.Warnf("Validation scheduler context cancelled")
			return
		}
	}
}

func (s *Scheduler) runValidation(ctx context.Context) {
	s.mu.Lock()
	s.lastRunAt = time.Now()
	s.runsCount++
	runNumber := s.runsCount
	alertWebhook := s.alertWebhook
	alertThreshold := s.alertThreshold
	s.mu.Unlock()

	logger.Infof("[Run #%d] Starting billing validation at %s", runNumber, s.lastRunAt.Format(time.RFC3339))

	issues, err := s.validator.ValidateCurrentMonth(ctx)
	if err != nil {
		logger.Errorf("[Run #%d] Billing validation failed: %v", runNumber, err)
		return
	}

	s.mu.Lock()
	s.lastIssues = issues

	if len(issues) > 0 {
		s.consecutiveDiscrepancyCount++
		logger.Warnf("[Run #%d] Billing validation found %d issue(s) (consecutive count: %d/%d)",
			runNumber, len(issues), s.consecutiveDiscrepancyCount, alertThreshold)
		for _, issue := range issues {
			logger.Warnf("[Run #%d]   %s", runNumber, issue)
		}

		if s.consecutiveDiscrepancyCount >= alertThreshold && alertThreshold > 0 && alertWebhook != "" {
			s.lastAlertSentAt = time.Now()
			go s.sendAlert(alertWebhook, runNumber, s.consecutiveDiscrepancyCount, issues)
		}
	} else {
		if s.consecutiveDiscrepancyCount > 0 {
			logger.Debugf("[Run #%d] Ledger clean again, resetting discrepancy count (was: %d)",
				runNumber, s.consecutiveDiscrepancyCount)
		}
		s.consecutiveDiscrepancyCount = 0
		logger.Infof("[Run #%d] Billing validation passed", runNumber)
	}
	s.mu.Unlock()
}

func (s *Scheduler) Stop() error {
	s.mu.Lock()

	if !s.running {
		s.mu.Unlock()
		logger.Warnf("Validation scheduler is not running")
		return nil
	}

	s.running = false
	stopChan := s.stopChan
	doneChan := s.doneChan
	s.mu.Unlock()

	// Send stop signal
	close(stopChan)

	// Wait for goroutine to finish
	<-doneChan

	logger.Infof("Validation scheduler stopped")
	return nil
}

func (s *Scheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

func (s *Scheduler) GetStatus() SchedulerStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()

	status := SchedulerStatus{
		Running:                     s.running,
		LastRunAt:                   s.lastRunAt,
		RunsCount:                   s.runsCount,
		Interval:                    s.interval,
		LastIssues:                  s.lastIssues,
		ConsecutiveDiscrepancyCount: s.consecutiveDiscrepancyCount,
		LastAlertSentAt:             s.lastAlertSentAt,
	}

	if s.running && !s.lastRunAt.IsZero() {
		status.NextRunAt = s.lastRunAt.Add(s.interval)
	}

	return status
}

func (s *Scheduler) sendAlert(webhookURL string, runNumber int64, consecutiveRuns int, issues []string) {
	alertPayload := map[string]any{
		"alert":           "billing_validation_discrepancy",
		"runNumber":       runNumber,
		"consecutiveRuns": consecutiveRuns,
		"issues":          issues,
		"timestamp":       time.Now().Format(time.RFC3339),
		"message": fmt.Sprintf(
			"Billing validation reported %d issue(s) for %d consecutive runs",
			len(issues),
			consecutiveRuns,
		),
	}

	body, err := json.Marshal(alertPayload)
	if err != nil {
		logger.Errorf("Failed to marshal alert payload: %v", err)
		return
	}

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Post(webhookURL, "application/json", bytes.NewReader(body))
	if err != nil {
		logger.Errorf("Failed to send validation alert: %v", err)
		return
	}
	defer resp.Body.Close()

	logger.Infof("Sent validation alert (status: %d)", resp.StatusCode)
}
