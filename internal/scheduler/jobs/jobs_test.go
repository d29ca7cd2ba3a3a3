package jobs

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sabq4org/so7ba.ai/internal/contracts"
	"github.com/sabq4org/so7ba.ai/internal/pipeline"
	"github.com/sabq4org/so7ba.ai/pkg/logger"
)

type stubScan struct {
	run *pipeline.Run
	err error
}

func (s stubScan) Run(ctx context.Context) (*pipeline.Run, error) { return s.run, s.err }

type stubMonitor struct {
	report *contracts.MonitorReport
	err    error
}

func (s stubMonitor) RunPass(ctx context.Context) (*contracts.MonitorReport, error) {
	return s.report, s.err
}

func TestScanJob(t *testing.T) {
	log := logger.NewNop()

	job := NewScanJob(stubScan{run: &pipeline.Run{ID: "r1"}}, "0 0 12 * * MON-FRI", log)
	assert.Equal(t, "scan", job.Name())
	assert.Equal(t, "0 0 12 * * MON-FRI", job.Schedule())
	require.NoError(t, job.Run(context.Background()))

	failing := NewScanJob(stubScan{err: errors.New("universe down")}, "@every 1h", log)
	err := failing.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "universe down")
}

func TestMonitorJob(t *testing.T) {
	log := logger.NewNop()

	report := &contracts.MonitorReport{
		Trades: []contracts.PositionCheck{
			{PositionID: 1, Executed: &contracts.TradeResult{Filled: 2}},
			{PositionID: 2},
		},
	}
	job := NewMonitorJob(stubMonitor{report: report}, "@every 15m", log)
	assert.Equal(t, "monitor", job.Name())
	require.NoError(t, job.Run(context.Background()))

	failing := NewMonitorJob(stubMonitor{err: errors.New("ledger locked")}, "@every 15m", log)
	assert.ErrorContains(t, failing.Run(context.Background()), "ledger locked")
}
