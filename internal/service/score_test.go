package service

import (
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/ideastockexchange/beliefgraph/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func defaultEngine(t *testing.T) *ScoreEngine {
	t.Helper()
	engine, err := NewScoreEngine(ScoreWeights{ReasonRank: 0.50, Votes: 0.35, Aspects: 0.15})
	require.NoError(t, err)
	return engine
}

func TestScoreWeights_Validate(t *testing.T) {
	assert.NoError(t, ScoreWeights{ReasonRank: 0.50, Votes: 0.35, Aspects: 0.15}.Validate())
	assert.Error(t, ScoreWeights{ReasonRank: 0.50, Votes: 0.35, Aspects: 0.10}.Validate())
	assert.Error(t, ScoreWeights{ReasonRank: 1.50, Votes: -0.35, Aspects: -0.15}.Validate())

	_, err := NewScoreEngine(ScoreWeights{ReasonRank: 1, Votes: 1, Aspects: 1})
	assert.Error(t, err)
}

func TestScoreEngine_AllSignalsMissingIsNeutral(t *testing.T) {
	engine := defaultEngine(t)

	strength, breakdown, err := engine.Score(&domain.SignalAggregates{ArgumentID: uuid.New()})
	require.NoError(t, err)

	assert.InDelta(t, 50.0, strength, 1e-9)
	assert.InDelta(t, 0.5, breakdown.ReasonRank.Normalized, 1e-9)
	assert.InDelta(t, 0.5, breakdown.Votes.Normalized, 1e-9)
	assert.InDelta(t, 0.5, breakdown.Aspects.Normalized, 1e-9)
}

func TestScoreEngine_StrongArgument(t *testing.T) {
	engine := defaultEngine(t)

	strength, breakdown, err := engine.Score(&domain.SignalAggregates{
		ArgumentID:    uuid.New(),
		ReasonRank:    90,
		Upvotes:       100,
		Downvotes:     0,
		AspectRatings: []float64{5, 5, 5, 5},
	})
	require.NoError(t, err)

	// Wilson(100, 0) is about 0.963, not 1.0: unanimity still carries
	// sampling uncertainty.
	assert.InDelta(t, 0.963, breakdown.Votes.Normalized, 0.001)
	assert.InDelta(t, 93.71, strength, 0.05)
	assert.Equal(t, 100, breakdown.Upvotes)
	assert.Equal(t, 4, breakdown.RatingN)
}

func TestScoreEngine_StrengthMatchesBreakdown(t *testing.T) {
	engine := defaultEngine(t)

	strength, b, err := engine.Score(&domain.SignalAggregates{
		ArgumentID:    uuid.New(),
		ReasonRank:    42,
		Upvotes:       7,
		Downvotes:     3,
		AspectRatings: []float64{2, 4},
	})
	require.NoError(t, err)

	recomputed := 100 * (b.ReasonRank.Weighted + b.Votes.Weighted + b.Aspects.Weighted)
	assert.InDelta(t, recomputed, strength, 1e-9)
}

func TestScoreEngine_Deterministic(t *testing.T) {
	engine := defaultEngine(t)
	sig := &domain.SignalAggregates{
		ArgumentID:    uuid.New(),
		ReasonRank:    63.5,
		Upvotes:       12,
		Downvotes:     4,
		AspectRatings: []float64{3, 4, 4.5},
	}

	first, firstBreakdown, err := engine.Score(sig)
	require.NoError(t, err)
	second, secondBreakdown, err := engine.Score(sig)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, firstBreakdown, secondBreakdown)
}

func TestScoreEngine_Bounds(t *testing.T) {
	engine := defaultEngine(t)

	cases := []*domain.SignalAggregates{
		{ArgumentID: uuid.New(), ReasonRank: 1, Downvotes: 500, AspectRatings: []float64{1, 1, 1}},
		{ArgumentID: uuid.New(), ReasonRank: 100, Upvotes: 100000, AspectRatings: []float64{5}},
		{ArgumentID: uuid.New(), ReasonRank: 250, Upvotes: 1},
	}
	for _, sig := range cases {
		strength, _, err := engine.Score(sig)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, strength, 0.0)
		assert.LessOrEqual(t, strength, 100.0)
	}
}

func TestScoreEngine_RatingOutOfScale(t *testing.T) {
	engine := defaultEngine(t)

	_, _, err := engine.Score(&domain.SignalAggregates{
		ArgumentID:    uuid.New(),
		AspectRatings: []float64{6},
	})

	var verr *domain.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "aspect_ratings", verr.Field)
}

func TestWilsonLowerBound(t *testing.T) {
	assert.InDelta(t, 0.5, wilsonLowerBound(0, 0), 1e-9)

	// Same 90% ratio; the larger sample earns a tighter, higher bound.
	small := wilsonLowerBound(9, 1)
	large := wilsonLowerBound(900, 100)
	assert.Less(t, small, large)

	// Heavily downvoted content sinks toward zero.
	assert.Less(t, wilsonLowerBound(0, 100), 0.05)

	for _, bound := range []float64{wilsonLowerBound(1, 0), wilsonLowerBound(0, 1), small, large} {
		assert.GreaterOrEqual(t, bound, 0.0)
		assert.LessOrEqual(t, bound, 1.0)
	}
}
