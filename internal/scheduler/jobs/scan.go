package jobs

import (
	"context"
	"fmt"

	"github.com/sabq4org/so7ba.ai/internal/pipeline"
	"github.com/sabq4org/so7ba.ai/pkg/logger"
)

// ScanRunner runs one screening pass
type ScanRunner interface {
	Run(ctx context.Context) (*pipeline.Run, error)
}

// ScanJob runs the daily screening pipeline
type ScanJob struct {
	runner   ScanRunner
	schedule string
	logger   *logger.Logger
}

// NewScanJob creates a new scan job
func NewScanJob(runner ScanRunner, schedule string, log *logger.Logger) *ScanJob {
	return &ScanJob{
		runner:   runner,
		schedule: schedule,
		logger:   log.WithComponent("scan-job"),
	}
}

// Name returns the job name
func (j *ScanJob) Name() string {
	return "scan"
}

// Schedule returns the cron schedule
func (j *ScanJob) Schedule() string {
	return j.schedule
}

// Run executes the screening pipeline
func (j *ScanJob) Run(ctx context.Context) error {
	run, err := j.runner.Run(ctx)
	if err != nil {
		return fmt.Errorf("scan: %w", err)
	}

	j.logger.WithFields(map[string]interface{}{
		"run_id":    run.ID,
		"evaluated": len(run.Scorecards),
		"calls":     len(run.Report.Calls),
		"puts":      len(run.Report.Puts),
		"warnings":  len(run.Warnings),
		"duration":  run.Duration.String(),
		"fallback":  run.UsedFallback,
	}).Info("Scheduled scan completed")

	return nil
}
