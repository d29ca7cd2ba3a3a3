package signals

import (
	"github.com/sabq4org/so7ba.ai/pkg/logger"
)

// Sources upstream clients used by the default evaluator set
type Sources struct {
	News     newsAPI
	Flow     flowAPI
	Exposure exposureAPI
	IVRank   ivRankAPI
}

// NewDefaultRegistry registers news, flow, sweep, gex, iv_rank (in that order).
// The GEX evaluator is returned so the report can show the market summary.
func NewDefaultRegistry(src Sources, config Config, log *logger.Logger) (*Registry, *GEXEvaluator) {
	feed := NewFlowFeed(src.Flow, config.Flow)
	gex := NewGEXEvaluator(src.Exposure, config.GEX)

	r := NewRegistry(log).
		AddPreparer(feed).
		Register(NewNewsEvaluator(src.News, config.News)).
		Register(NewFlowEvaluator(feed)).
		Register(NewSweepEvaluator(feed)).
		Register(gex).
		Register(NewIVRankEvaluator(src.IVRank, config.IVRank))
	return r, gex
}
