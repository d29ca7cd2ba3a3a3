package signals

import (
	"context"
	"errors"
	"fmt"

	"github.com/sabq4org/so7ba.ai/internal/contracts"
	"github.com/sabq4org/so7ba.ai/pkg/logger"
)

// Evaluator scores one candidate. It never fails: missing data yields a
// neutral result with Available=false.
type Evaluator interface {
	Name() contracts.EvaluatorName
	MaxScore() int
	Evaluate(ctx context.Context, c contracts.Candidate) contracts.SignalResult
}

// Preparer is implemented by evaluators that fetch once per run
type Preparer interface {
	Prepare(ctx context.Context) error
}

// Registry runs the registered evaluators in registration order
// ⭐ SSOT: 평가기 등록/실행은 여기서만 (Aggregator는 결과만 소비)
type Registry struct {
	evaluators []Evaluator
	preparers  []Preparer
	logger     *logger.Logger
}

// NewRegistry creates an empty registry
func NewRegistry(log *logger.Logger) *Registry {
	return &Registry{logger: log.WithComponent("signals")}
}

// Register adds an evaluator. Extra preparers (shared feeds) can be registered with AddPreparer.
func (r *Registry) Register(e Evaluator) *Registry {
	r.evaluators = append(r.evaluators, e)
	if p, ok := e.(Preparer); ok {
		r.preparers = append(r.preparers, p)
	}
	return r
}

// AddPreparer registers a once-per-run hook that is not an evaluator
func (r *Registry) AddPreparer(p Preparer) *Registry {
	r.preparers = append(r.preparers, p)
	return r
}

// Evaluators returns the registered evaluators
func (r *Registry) Evaluators() []Evaluator {
	return r.evaluators
}

// Prepare runs every preparer. Failures are logged and returned joined;
// the affected evaluators report unavailability on their own.
func (r *Registry) Prepare(ctx context.Context) error {
	var errs []error
	for _, p := range r.preparers {
		if err := p.Prepare(ctx); err != nil {
			r.logger.WithError(err).Warn("Evaluator prepare failed")
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// EvaluateAll runs every evaluator for the candidate
func (r *Registry) EvaluateAll(ctx context.Context, c contracts.Candidate) []contracts.SignalResult {
	results := make([]contracts.SignalResult, 0, len(r.evaluators))
	for _, e := range r.evaluators {
		res := r.safeEvaluate(ctx, e, c)
		r.logger.WithFields(map[string]interface{}{
			"symbol":    c.Symbol,
			"evaluator": res.Evaluator,
			"score":     res.SubScore,
			"available": res.Available,
		}).Debug("Evaluated")
		results = append(results, res)
	}
	return results
}

func (r *Registry) safeEvaluate(ctx context.Context, e Evaluator, c contracts.Candidate) (res contracts.SignalResult) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.WithFields(map[string]interface{}{
				"symbol":    c.Symbol,
				"evaluator": e.Name(),
				"panic":     fmt.Sprint(rec),
			}).Error("Evaluator panicked")
			res = contracts.Unavailable(e.Name(), e.MaxScore(), fmt.Sprintf("%s unavailable: internal error", e.Name()))
		}
	}()

	res = e.Evaluate(ctx, c)
	res.Evaluator = e.Name()
	res.MaxScore = e.MaxScore()
	return res.Clamped()
}

func unavailable(name contracts.EvaluatorName, maxScore int, err error) contracts.SignalResult {
	return contracts.Unavailable(name, maxScore, fmt.Sprintf("%s unavailable: %v", name, err))
}
