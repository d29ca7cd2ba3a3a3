package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/sabq4org/so7ba.ai/internal/api"
	"github.com/sabq4org/so7ba.ai/internal/api/handlers"
	"github.com/sabq4org/so7ba.ai/internal/api/stream"
	"github.com/sabq4org/so7ba.ai/internal/execution"
	"github.com/sabq4org/so7ba.ai/internal/scheduler"
	"github.com/sabq4org/so7ba.ai/internal/scheduler/jobs"
)

var serveNoScheduler bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the API server and the scan/monitor scheduler",
	Long: `Start the so7ba server

HTTP API (스캔 이력, 포지션, 잡) + WebSocket 스트림 + cron 스케줄러.
스케줄은 전략 YAML의 schedule 섹션 (초 필드 포함 cron).

Endpoints:
  GET  /health
  GET  /api/runs, /api/runs/latest, /api/runs/{id}/scorecards
  GET  /api/symbols/{symbol}/history
  GET  /api/positions, /api/trades
  GET  /api/jobs, POST /api/jobs/{name}/run
  GET  /api/stream (websocket)`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().BoolVar(&serveNoScheduler, "no-scheduler", false, "serve the API only")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()
	log := a.log

	// ========================================
	// Pipeline + monitor → hub / history
	// ========================================
	hub := stream.NewHub(log)
	defer hub.Close()

	p := a.pipeline()
	p.SetPublisher(hub)

	b, err := a.broker(ctx)
	if err != nil {
		return err
	}
	pm := a.monitor(b)
	notifiers := execution.Notifiers{hub}
	if a.history != nil {
		notifiers = append(notifiers, a.history)
	}
	pm.SetNotifier(notifiers)

	// ========================================
	// Scheduler
	// ========================================
	var sched *scheduler.Scheduler
	if !serveNoScheduler {
		sched, err = newScheduler(ctx, a)
		if err != nil {
			return err
		}
		if err := sched.AddJob(jobs.NewScanJob(p, a.strategy.Schedule.Scan, log)); err != nil {
			return err
		}
		if err := sched.AddJob(jobs.NewMonitorJob(pm, a.strategy.Schedule.Monitor, log)); err != nil {
			return err
		}
		sched.Start()
		defer sched.Stop()
	}

	// ========================================
	// HTTP
	// ========================================
	var runs handlers.RunReader
	var trades handlers.TradeReader
	if a.history != nil {
		runs, trades = a.history, a.history
	}
	h := api.Handlers{
		Runs:      handlers.NewRunHandler(runs, log),
		Positions: handlers.NewPositionHandler(a.ledger, trades, log),
		Stream:    hub,
	}
	if sched != nil {
		h.Jobs = handlers.NewJobHandler(sched, log)
	}
	server := api.New(a.cfg, log, api.NewRouter(h, log))

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	fmt.Fprintf(output, "so7ba server listening on :%s\n", a.cfg.Port)

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case <-quit:
	case err := <-errCh:
		if err != nil {
			return err
		}
	}

	log.Info("Shutting down server...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	log.Info("Server exited")
	return nil
}

// newScheduler builds the cron scheduler in the strategy's timezone
func newScheduler(ctx context.Context, a *app) (*scheduler.Scheduler, error) {
	cfg := scheduler.DefaultConfig()
	if tz := a.strategy.Schedule.Timezone; tz != "" {
		loc, err := time.LoadLocation(tz)
		if err != nil {
			return nil, fmt.Errorf("invalid schedule timezone %q: %w", tz, err)
		}
		cfg.Location = loc
	}
	return scheduler.New(ctx, cfg, a.log), nil
}
