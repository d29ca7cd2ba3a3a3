package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/sabq4org/so7ba.ai/internal/contracts"
	"github.com/sabq4org/so7ba.ai/internal/execution"
	"github.com/sabq4org/so7ba.ai/internal/external/broker"
	"github.com/sabq4org/so7ba.ai/internal/external/finviz"
	"github.com/sabq4org/so7ba.ai/internal/external/polygon"
	"github.com/sabq4org/so7ba.ai/internal/external/unusualwhales"
	"github.com/sabq4org/so7ba.ai/internal/gateway"
	"github.com/sabq4org/so7ba.ai/internal/history"
	"github.com/sabq4org/so7ba.ai/internal/ledger"
	"github.com/sabq4org/so7ba.ai/internal/market"
	"github.com/sabq4org/so7ba.ai/internal/pipeline"
	"github.com/sabq4org/so7ba.ai/internal/scanner"
	"github.com/sabq4org/so7ba.ai/internal/scorecard"
	"github.com/sabq4org/so7ba.ai/internal/selection"
	"github.com/sabq4org/so7ba.ai/internal/signals"
	"github.com/sabq4org/so7ba.ai/internal/strategyconfig"
	"github.com/sabq4org/so7ba.ai/pkg/config"
	"github.com/sabq4org/so7ba.ai/pkg/database"
	"github.com/sabq4org/so7ba.ai/pkg/logger"
	"github.com/sabq4org/so7ba.ai/pkg/redis"
)

// =============================================================================
// app
// ⭐ SSOT: 컴포넌트 조립은 여기서만 (각 커맨드는 필요한 부분만 꺼내 씀)
// =============================================================================

// app holds the wired components shared by all commands
type app struct {
	cfg      *config.Config
	strategy *strategyconfig.Config
	log      *logger.Logger

	rdb     *redis.Client
	db      *database.DB        // nil = history disabled
	history *history.Repository // nil = history disabled

	polygon *polygon.Client
	uw      *unusualwhales.Client
	finviz  *finviz.Client
	ledger  *ledger.Store
}

// newApp loads env + strategy config and connects the optional stores.
// Redis and PostgreSQL are optional: failures are logged and the command continues without them.
func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if verbose {
		cfg.LogLevel = "debug"
	}
	log := logger.New(cfg)

	path := cfg.StrategyPath
	if strategyPath != "" {
		path = strategyPath
	}
	strategy, err := strategyconfig.LoadOrDefault(path)
	if err != nil {
		return nil, err
	}
	for _, w := range strategyconfig.Warn(strategy) {
		log.WithField("code", w.Code).Warn(w.Message)
	}

	rdb, err := redis.New(cfg)
	if err != nil {
		log.WithError(err).Warn("Redis unavailable, continuing without cache")
		rdb = redis.NewFromRedis(nil)
	}

	gw := gateway.NewFromConfig(cfg, rdb, log)
	a := &app{
		cfg:      cfg,
		strategy: strategy,
		log:      log,
		rdb:      rdb,
		polygon:  polygon.NewClient(gw, log),
		uw:       unusualwhales.NewClient(gw, log),
		finviz:   finviz.NewClient(gw, log),
		ledger:   ledger.NewStore(cfg.Ledger.Path, log),
	}

	db, err := database.New(ctx, cfg)
	switch {
	case errors.Is(err, database.ErrDisabled):
		log.Debug("DATABASE_URL not set, scan history disabled")
	case err != nil:
		log.WithError(err).Warn("Database unavailable, scan history disabled")
	default:
		repo := history.NewRepository(db.Pool, log)
		if err := repo.Migrate(ctx); err != nil {
			log.WithError(err).Warn("History migration failed, scan history disabled")
			db.Close()
		} else {
			a.db, a.history = db, repo
		}
	}

	return a, nil
}

// Close releases the optional stores
func (a *app) Close() {
	if a.db != nil {
		a.db.Close()
	}
	if err := a.rdb.Close(); err != nil {
		a.log.WithError(err).Warn("Failed to close redis")
	}
}

// pipeline wires scanner → signals → selector → aggregator (+ market context)
func (a *app) pipeline() *pipeline.Pipeline {
	s := a.strategy

	scan := scanner.New(s.Scanner.Config, a.log,
		scanner.NewUWSource(a.uw, s.Scanner.UWScreener),
		scanner.NewFinvizSource(a.finviz, s.Scanner.Finviz.Bullish, s.Scanner.Finviz.Bearish),
	)
	registry, gex := signals.NewDefaultRegistry(signals.Sources{
		News:     a.polygon,
		Flow:     a.uw,
		Exposure: a.uw,
		IVRank:   a.uw,
	}, s.Signals, a.log)
	selector := selection.NewSelector(a.polygon, a.polygon, s.Selection, a.log)

	p := pipeline.New(scan, registry, selector, scorecard.NewAggregator(s.Scorecard), a.log)
	p.SetGEX(gex)
	p.SetMarketContext(market.NewContextBuilder(
		a.uw,
		market.NewIndexReconciler(a.polygon, a.cfg.Index, a.log),
		s.Market,
		a.log,
	))
	if a.history != nil {
		p.SetStore(a.history)
	}
	return p
}

// broker returns the order gateway. Paper mode mirrors the ledger's open
// positions and prices them (plus extra) from market snapshots.
func (a *app) broker(ctx context.Context, extra ...contracts.OptionContract) (execution.Broker, error) {
	if !a.cfg.Broker.Paper {
		return broker.NewClient(a.cfg.Broker, a.cfg.HTTPTimeout, a.log), nil
	}

	open, err := a.ledger.OpenPositions()
	if err != nil {
		return nil, fmt.Errorf("failed to load ledger: %w", err)
	}
	pb := execution.NewPaperBroker(a.cfg.Broker.PaperCash)
	execution.SeedPaperBroker(ctx, pb, a.polygon, open, a.log, extra...)
	a.log.WithField("open", len(open)).Info("Using paper broker")
	return pb, nil
}

// executor wires the manual trade flow
func (a *app) executor(b execution.Broker) *execution.Executor {
	s := a.strategy
	return execution.NewExecutor(
		a.polygon,
		b,
		a.ledger,
		execution.NewCapitalGate(s.Gate, a.log),
		&s.Exit,
		s.Fill,
		a.log,
	)
}

// monitor wires the position monitor
func (a *app) monitor(b execution.Broker) *execution.PositionMonitor {
	s := a.strategy
	pm := execution.NewPositionMonitor(a.ledger, a.polygon, b, &s.Exit, s.Fill, a.log)
	if a.history != nil {
		pm.SetNotifier(a.history)
	}
	return pm
}

// recordTrade stores a manual trade result when history is enabled
func (a *app) recordTrade(ctx context.Context, kind string, res *contracts.TradeResult) {
	if a.history == nil || res == nil {
		return
	}
	if err := a.history.RecordTrade(ctx, kind, res); err != nil {
		a.log.WithError(err).Warn("Failed to record trade")
	}
}
