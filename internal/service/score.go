package service

import (
	"fmt"
	"math"

	"github.com/ideastockexchange/beliefgraph/internal/domain"
)

const (
	// z for a 95% confidence interval on a Bernoulli proportion.
	wilsonZ = 1.96

	// Component value used when a signal is absent. A missing signal pulls
	// the edge toward neutral instead of zeroing it out.
	neutralComponent = 0.5

	reasonRankScale = 100.0

	weightSumTolerance = 1e-9
)

// ScoreWeights blends the three signal components into one edge strength.
// The weights must sum to 1.0; the server fails fast at startup otherwise.
type ScoreWeights struct {
	ReasonRank float64
	Votes      float64
	Aspects    float64
}

func (w ScoreWeights) Validate() error {
	if w.ReasonRank < 0 || w.Votes < 0 || w.Aspects < 0 {
		return fmt.Errorf("score weights must be non-negative: %+v", w)
	}
	sum := w.ReasonRank + w.Votes + w.Aspects
	if math.Abs(sum-1.0) > weightSumTolerance {
		return fmt.Errorf("score weights must sum to 1.0, got %.12f", sum)
	}
	return nil
}

// ScoreEngine computes hybrid edge strengths. It is a pure function of the
// argument's signal aggregates: identical inputs always yield identical
// strength and breakdown.
type ScoreEngine struct {
	weights ScoreWeights
}

func NewScoreEngine(weights ScoreWeights) (*ScoreEngine, error) {
	if err := weights.Validate(); err != nil {
		return nil, err
	}
	return &ScoreEngine{weights: weights}, nil
}

// Score turns one argument's signal aggregates into a bounded strength and
// its audit breakdown.
func (e *ScoreEngine) Score(sig *domain.SignalAggregates) (float64, domain.ScoreBreakdown, error) {
	for _, r := range sig.AspectRatings {
		if r < domain.AspectRatingMin || r > domain.AspectRatingMax {
			return 0, domain.ScoreBreakdown{}, &domain.ValidationError{
				Field: "aspect_ratings",
				Msg:   fmt.Sprintf("rating %.2f outside [%g,%g]", r, domain.AspectRatingMin, domain.AspectRatingMax),
			}
		}
	}

	rr := reasonRankComponent(sig.ReasonRank)
	votes := wilsonLowerBound(sig.Upvotes, sig.Downvotes)
	aspects := aspectComponent(sig.AspectRatings)

	breakdown := domain.ScoreBreakdown{
		ReasonRank: component(sig.ReasonRank, rr, e.weights.ReasonRank),
		Votes:      component(float64(sig.Upvotes-sig.Downvotes), votes, e.weights.Votes),
		Aspects:    component(meanOf(sig.AspectRatings), aspects, e.weights.Aspects),
		Upvotes:    sig.Upvotes,
		Downvotes:  sig.Downvotes,
		RatingN:    len(sig.AspectRatings),
	}

	strength := 100 * (breakdown.ReasonRank.Weighted + breakdown.Votes.Weighted + breakdown.Aspects.Weighted)
	return clamp(strength, 0, 100), breakdown, nil
}

func component(raw, normalized, weight float64) domain.ScoreComponent {
	normalized = clamp(normalized, 0, 1)
	return domain.ScoreComponent{
		Raw:        raw,
		Normalized: normalized,
		Weight:     weight,
		Weighted:   weight * normalized,
	}
}

// reasonRankComponent normalizes a 0-100 ReasonRank score to [0,1]. An absent
// or zero score is treated as missing and defaults to neutral.
func reasonRankComponent(score float64) float64 {
	if score <= 0 {
		return neutralComponent
	}
	return clamp(score/reasonRankScale, 0, 1)
}

// wilsonLowerBound returns the 95%-confidence Wilson lower bound on the
// upvote proportion. Low-sample ratios are pulled toward 0.5 so confidence,
// not raw count, drives the component. Zero votes is defined as 0.5.
func wilsonLowerBound(upvotes, downvotes int) float64 {
	n := float64(upvotes + downvotes)
	if n == 0 {
		return neutralComponent
	}

	z := wilsonZ
	phat := float64(upvotes) / n
	denom := 1 + z*z/n
	center := phat + z*z/(2*n)
	margin := z * math.Sqrt((phat*(1-phat)+z*z/(4*n))/n)

	return clamp((center-margin)/denom, 0, 1)
}

// aspectComponent maps the mean aspect rating from its 1-5 scale to [0,1].
// No ratings defaults to neutral.
func aspectComponent(ratings []float64) float64 {
	if len(ratings) == 0 {
		return neutralComponent
	}
	mean := meanOf(ratings)
	return clamp((mean-domain.AspectRatingMin)/(domain.AspectRatingMax-domain.AspectRatingMin), 0, 1)
}

func meanOf(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
