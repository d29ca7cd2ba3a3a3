package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/sabq4org/so7ba.ai/pkg/logger"
)

// Config scheduler settings
type Config struct {
	Location   *time.Location
	MaxRetries int
	RetryDelay time.Duration
	JobTimeout time.Duration // 0 = no per-run timeout
}

// DefaultConfig UTC, one retry after a minute, 10 minute timeout
func DefaultConfig() Config {
	return Config{
		Location:   time.UTC,
		MaxRetries: 1,
		RetryDelay: time.Minute,
		JobTimeout: 10 * time.Minute,
	}
}

// Scheduler manages scheduled jobs
// ⭐ SSOT: 스케줄 관리는 이 스케줄러에서만
type Scheduler struct {
	cron    *cron.Cron
	baseCtx context.Context
	logger  *logger.Logger
	config  Config

	mu      sync.RWMutex
	jobs    map[string]Job
	entries map[string]cron.EntryID
	running map[string]*sync.Mutex
	history map[string]*JobHistory
}

// New creates a new scheduler. Jobs run with baseCtx (cancel it to abort runs).
func New(baseCtx context.Context, config Config, log *logger.Logger) *Scheduler {
	if baseCtx == nil {
		baseCtx = context.Background()
	}
	if config.Location == nil {
		config.Location = time.UTC
	}
	log = log.WithComponent("scheduler")

	// 같은 작업의 스케줄 실행이 겹치면 건너뜀
	c := cron.New(
		cron.WithSeconds(),
		cron.WithLocation(config.Location),
		cron.WithChain(cron.SkipIfStillRunning(cronLogger{log})),
	)

	return &Scheduler{
		cron:    c,
		baseCtx: baseCtx,
		logger:  log,
		config:  config,
		jobs:    make(map[string]Job),
		entries: make(map[string]cron.EntryID),
		running: make(map[string]*sync.Mutex),
		history: make(map[string]*JobHistory),
	}
}

// AddJob adds a job to the scheduler
func (s *Scheduler) AddJob(job Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	jobName := job.Name()
	if _, exists := s.jobs[jobName]; exists {
		return fmt.Errorf("job %s already exists", jobName)
	}

	id, err := s.cron.AddFunc(job.Schedule(), func() {
		s.runJob(job)
	})
	if err != nil {
		return fmt.Errorf("failed to schedule job %s: %w", jobName, err)
	}

	s.jobs[jobName] = job
	s.entries[jobName] = id
	s.running[jobName] = &sync.Mutex{}
	s.history[jobName] = &JobHistory{}

	s.logger.WithFields(map[string]interface{}{
		"job":      jobName,
		"schedule": job.Schedule(),
		"location": s.config.Location.String(),
	}).Info("Job added to scheduler")
	return nil
}

// RemoveJob removes a job from the scheduler
func (s *Scheduler) RemoveJob(jobName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, exists := s.entries[jobName]
	if !exists {
		return fmt.Errorf("job %s not found", jobName)
	}

	s.cron.Remove(id)
	delete(s.jobs, jobName)
	delete(s.entries, jobName)
	s.logger.WithField("job", jobName).Info("Job removed from scheduler")
	return nil
}

// Start starts the scheduler
func (s *Scheduler) Start() {
	s.logger.Info("Starting scheduler")
	s.cron.Start()
}

// Stop stops the scheduler and waits for running jobs
func (s *Scheduler) Stop() {
	s.logger.Info("Stopping scheduler")
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("Scheduler stopped")
}

// RunJob runs a job immediately (outside of schedule) in the background
func (s *Scheduler) RunJob(jobName string) error {
	s.mu.RLock()
	job, exists := s.jobs[jobName]
	s.mu.RUnlock()

	if !exists {
		return fmt.Errorf("job %s not found", jobName)
	}

	go s.runJob(job)
	return nil
}

// NextRun returns the next scheduled time of a job
func (s *Scheduler) NextRun(jobName string) (time.Time, bool) {
	s.mu.RLock()
	id, exists := s.entries[jobName]
	s.mu.RUnlock()
	if !exists {
		return time.Time{}, false
	}
	return s.cron.Entry(id).Next, true
}

// runJob executes a job with retry logic. A run already in progress
// (manual trigger vs schedule) makes this call a no-op.
func (s *Scheduler) runJob(job Job) {
	jobName := job.Name()

	s.mu.RLock()
	lock := s.running[jobName]
	s.mu.RUnlock()
	if lock == nil {
		return
	}
	if !lock.TryLock() {
		s.logger.WithField("job", jobName).Warn("Job already running, skipped")
		return
	}
	defer lock.Unlock()

	startTime := time.Now()
	s.logger.WithField("job", jobName).Info("Job started")

	var lastErr error
	success := false
	attempts := 0

	for attempt := 0; attempt <= s.config.MaxRetries; attempt++ {
		if s.baseCtx.Err() != nil {
			lastErr = s.baseCtx.Err()
			break
		}
		attempts++

		err := s.runOnce(job)
		if err == nil {
			success = true
			break
		}

		lastErr = err
		s.logger.WithFields(map[string]interface{}{
			"job":     jobName,
			"attempt": attempt + 1,
			"error":   err.Error(),
		}).Warn("Job execution failed, retrying")

		if attempt < s.config.MaxRetries {
			select {
			case <-s.baseCtx.Done():
			case <-time.After(s.config.RetryDelay):
			}
		}
	}

	endTime := time.Now()
	duration := endTime.Sub(startTime)

	result := JobResult{
		JobName:   jobName,
		StartTime: startTime,
		EndTime:   endTime,
		Duration:  duration,
		Attempts:  attempts,
		Success:   success,
	}
	if !success && lastErr != nil {
		result.Error = lastErr.Error()
	}

	s.mu.Lock()
	if history, exists := s.history[jobName]; exists {
		history.AddResult(result)
	}
	s.mu.Unlock()

	if success {
		s.logger.WithFields(map[string]interface{}{
			"job":      jobName,
			"duration": duration.String(),
		}).Info("Job completed successfully")
	} else {
		s.logger.WithFields(map[string]interface{}{
			"job":      jobName,
			"duration": duration.String(),
			"error":    result.Error,
		}).Error("Job failed after all retries")
	}
}

func (s *Scheduler) runOnce(job Job) error {
	ctx := s.baseCtx
	if s.config.JobTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.config.JobTimeout)
		defer cancel()
	}
	return job.Run(ctx)
}

// GetJobHistory returns a copy of the history for a specific job
func (s *Scheduler) GetJobHistory(jobName string) (*JobHistory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history, exists := s.history[jobName]
	if !exists {
		return nil, fmt.Errorf("job %s not found", jobName)
	}

	cp := &JobHistory{Results: make([]JobResult, len(history.Results))}
	copy(cp.Results, history.Results)
	return cp, nil
}

// GetAllJobs returns all registered job names
func (s *Scheduler) GetAllJobs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	jobs := make([]string, 0, len(s.jobs))
	for jobName := range s.jobs {
		jobs = append(jobs, jobName)
	}
	return jobs
}

// GetJobStats returns statistics for all registered jobs
func (s *Scheduler) GetJobStats() map[string]JobStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := make(map[string]JobStats)

	for jobName, job := range s.jobs {
		history := s.history[jobName]
		latestResults := history.GetLatestResults(10)
		failedResults := history.GetFailedResults()

		var lastRun, lastSuccess, lastFailure *time.Time
		if len(latestResults) > 0 {
			lastResult := latestResults[len(latestResults)-1]
			lastRun = &lastResult.StartTime
			if lastResult.Success {
				lastSuccess = &lastResult.StartTime
			} else {
				lastFailure = &lastResult.StartTime
			}
		}

		var next *time.Time
		if id, ok := s.entries[jobName]; ok {
			if n := s.cron.Entry(id).Next; !n.IsZero() {
				next = &n
			}
		}

		stats[jobName] = JobStats{
			JobName:      jobName,
			Schedule:     job.Schedule(),
			TotalRuns:    len(history.Results),
			SuccessCount: len(history.Results) - len(failedResults),
			FailureCount: len(failedResults),
			SuccessRate:  history.GetSuccessRate(),
			LastRun:      lastRun,
			LastSuccess:  lastSuccess,
			LastFailure:  lastFailure,
			NextRun:      next,
		}
	}

	return stats
}

// JobStats represents statistics for a job
type JobStats struct {
	JobName      string     `json:"job_name"`
	Schedule     string     `json:"schedule"`
	TotalRuns    int        `json:"total_runs"`
	SuccessCount int        `json:"success_count"`
	FailureCount int        `json:"failure_count"`
	SuccessRate  float64    `json:"success_rate"`
	LastRun      *time.Time `json:"last_run,omitempty"`
	LastSuccess  *time.Time `json:"last_success,omitempty"`
	LastFailure  *time.Time `json:"last_failure,omitempty"`
	NextRun      *time.Time `json:"next_run,omitempty"`
}

// cronLogger routes cron's internal logging to zerolog
type cronLogger struct {
	log *logger.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.WithFields(kv(keysAndValues)).Debug("cron: " + msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.WithFields(kv(keysAndValues)).WithError(err).Error("cron: " + msg)
}

func kv(pairs []interface{}) map[string]interface{} {
	fields := make(map[string]interface{}, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		fields[fmt.Sprint(pairs[i])] = pairs[i+1]
	}
	return fields
}
