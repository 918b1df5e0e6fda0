package domain

import (
	"context"

	"github.com/google/uuid"
)

// LinkStore is the only mutable shared resource on the request path. Upsert
// is the sole concurrency-control primitive for edge writes: a caller passing
// a stale expectedVersion gets ErrConflict and must re-read and retry.
type LinkStore interface {
	// Upsert commits a link iff the stored version equals expectedVersion.
	// expectedVersion 0 is the insert path. On success the link's Version and
	// UpdatedAt are refreshed in place.
	Upsert(ctx context.Context, link *BeliefLink, expectedVersion int64) error
	GetByArgument(ctx context.Context, argumentID uuid.UUID) (*BeliefLink, error)
	ListByFrom(ctx context.Context, beliefID uuid.UUID, linkType *LinkType, page LinkPage) ([]BeliefLink, error)
	ListByTo(ctx context.Context, beliefID uuid.UUID, linkType *LinkType, page LinkPage) ([]BeliefLink, error)
	// Delete is idempotent: deleting an absent link is not an error.
	Delete(ctx context.Context, argumentID uuid.UUID) error
	// DeleteByBelief cascades when a belief is archived upstream.
	DeleteByBelief(ctx context.Context, beliefID uuid.UUID) (int64, error)
	// ListAll returns a point-in-time read of every live link for analytics.
	ListAll(ctx context.Context) ([]BeliefLink, error)
	// ListByBeliefs returns all links incident to any of the given beliefs.
	ListByBeliefs(ctx context.Context, beliefIDs []uuid.UUID) ([]BeliefLink, error)
}

// MetricsStore persists published snapshots so a restart serves the last good
// one instead of an empty graph.
type MetricsStore interface {
	SaveSnapshot(ctx context.Context, snap *MetricsSnapshot) error
	LatestSnapshot(ctx context.Context) (*MetricsSnapshot, error)
}
