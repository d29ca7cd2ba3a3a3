package signals

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/sabq4org/so7ba.ai/internal/contracts"
	"github.com/sabq4org/so7ba.ai/internal/external/polygon"
)

type newsAPI interface {
	News(ctx context.Context, ticker string, limit int) ([]polygon.NewsArticle, error)
}

// NewsEvaluator scores headline sentiment against the candidate direction
// and flags earnings published near now.
type NewsEvaluator struct {
	api    newsAPI
	config NewsConfig
	now    func() time.Time
}

// NewNewsEvaluator creates the news evaluator
func NewNewsEvaluator(api newsAPI, config NewsConfig) *NewsEvaluator {
	return &NewsEvaluator{api: api, config: config, now: time.Now}
}

// Name returns "news"
func (e *NewsEvaluator) Name() contracts.EvaluatorName { return contracts.EvaluatorNews }

// MaxScore is 1
func (e *NewsEvaluator) MaxScore() int { return 1 }

// Evaluate counts lexicon hits in title+description.
// Support is pos>=neg for CALL and neg>=pos for PUT, so no news supports either side.
func (e *NewsEvaluator) Evaluate(ctx context.Context, c contracts.Candidate) contracts.SignalResult {
	articles, err := e.api.News(ctx, c.Symbol, e.config.Limit)
	if err != nil {
		return unavailable(e.Name(), e.MaxScore(), err)
	}

	now := e.now()
	var pos, neg int
	earnings := false
	headlines := make([]string, 0, e.config.Headlines)

	for _, a := range articles {
		if len(headlines) < e.config.Headlines && a.Title != "" {
			headlines = append(headlines, a.Title)
		}
		text := strings.ToLower(a.Title + " " + a.Description)
		pos += countHits(text, e.config.PositiveWords)
		neg += countHits(text, e.config.NegativeWords)

		if countHits(text, e.config.EarningsKeywords) > 0 && !a.PublishedUTC.IsZero() &&
			math.Abs(now.Sub(a.PublishedUTC).Hours()) <= float64(e.config.EarningsWindowDays*24) {
			earnings = true
		}
	}

	supports := pos >= neg
	if c.Direction == contracts.DirectionPut {
		supports = neg >= pos
	}

	score := 0
	verdict := "News does not support direction"
	if supports {
		score = 1
		verdict = "News supports direction"
	}

	rationale := append([]string{fmt.Sprintf("%s (+%d/-%d)", verdict, pos, neg)}, headlines...)
	if earnings {
		rationale = append(rationale, fmt.Sprintf("Earnings within %d days", e.config.EarningsWindowDays))
	}

	return contracts.SignalResult{
		SubScore:  score,
		Rationale: rationale,
		Observations: map[string]any{
			"positive":                 pos,
			"negative":                 neg,
			"articles":                 len(articles),
			contracts.FlagEarningsRisk: earnings,
		},
		Available: true,
	}
}

func countHits(text string, words []string) int {
	n := 0
	for _, w := range words {
		if w != "" && strings.Contains(text, strings.ToLower(w)) {
			n++
		}
	}
	return n
}
