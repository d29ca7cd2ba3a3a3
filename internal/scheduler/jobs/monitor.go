package jobs

import (
	"context"
	"fmt"

	"github.com/sabq4org/so7ba.ai/internal/contracts"
	"github.com/sabq4org/so7ba.ai/pkg/logger"
)

// MonitorRunner runs one position monitor pass
type MonitorRunner interface {
	RunPass(ctx context.Context) (*contracts.MonitorReport, error)
}

// MonitorJob checks open positions during market hours
type MonitorJob struct {
	runner   MonitorRunner
	schedule string
	logger   *logger.Logger
}

// NewMonitorJob creates a new monitor job
func NewMonitorJob(runner MonitorRunner, schedule string, log *logger.Logger) *MonitorJob {
	return &MonitorJob{
		runner:   runner,
		schedule: schedule,
		logger:   log.WithComponent("monitor-job"),
	}
}

// Name returns the job name
func (j *MonitorJob) Name() string {
	return "monitor"
}

// Schedule returns the cron schedule
func (j *MonitorJob) Schedule() string {
	return j.schedule
}

// Run executes one monitor pass
func (j *MonitorJob) Run(ctx context.Context) error {
	report, err := j.runner.RunPass(ctx)
	if err != nil {
		return fmt.Errorf("monitor: %w", err)
	}

	executed := 0
	for _, t := range report.Trades {
		if t.Executed != nil && t.Executed.Filled > 0 {
			executed++
		}
	}

	j.logger.WithFields(map[string]interface{}{
		"positions": len(report.Trades),
		"alerts":    len(report.Alerts),
		"executed":  executed,
		"dry_run":   report.DryRun,
	}).Info("Scheduled monitor pass completed")

	return nil
}
