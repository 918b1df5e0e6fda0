package domain

import (
	"context"

	"github.com/google/uuid"
)

// Rating scale for aspect ratings. Values outside the scale are rejected as
// validation errors.
const (
	AspectRatingMin = 1.0
	AspectRatingMax = 5.0
)

// SignalAggregates is a point-in-time snapshot of one argument's scoring
// inputs: vote totals, per-aspect rating values and the structural ReasonRank
// score. The engine only reads it; raw votes and ratings live upstream.
type SignalAggregates struct {
	ArgumentID    uuid.UUID `json:"argument_id"`
	ReasonRank    float64   `json:"reason_rank"`
	Upvotes       int       `json:"upvotes"`
	Downvotes     int       `json:"downvotes"`
	AspectRatings []float64 `json:"aspect_ratings"`
}

// SignalSource is the upstream collaborator owning votes, aspect ratings and
// ReasonRank scores. Reads must respect the caller's context deadline.
type SignalSource interface {
	Aggregates(ctx context.Context, argumentID uuid.UUID) (*SignalAggregates, error)
	ListActiveArgumentIDs(ctx context.Context) ([]uuid.UUID, error)
}

// BeliefResolver maps an argument to its belief endpoints. Extraction quality
// is explicitly outside this core's contract: resolved=false is a no-link
// outcome, not an error.
type BeliefResolver interface {
	Resolve(ctx context.Context, argumentID uuid.UUID) (from, to uuid.UUID, linkType LinkType, resolved bool, err error)
}
