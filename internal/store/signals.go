package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/ideastockexchange/beliefgraph/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// SignalStore adapts the upstream application's aggregated signal table to
// the SignalSource and BeliefResolver contracts. The argument_signals table
// is owned by the upstream app; this store only reads it. Rows with null
// endpoints are arguments whose belief-reference extraction found no target.
type SignalStore struct {
	db *pgxpool.Pool
}

func NewSignalStore(db *pgxpool.Pool) *SignalStore {
	return &SignalStore{db: db}
}

func (s *SignalStore) Aggregates(ctx context.Context, argumentID uuid.UUID) (*domain.SignalAggregates, error) {
	sig := &domain.SignalAggregates{ArgumentID: argumentID}
	err := s.db.QueryRow(ctx,
		`SELECT reason_rank, upvotes, downvotes, aspect_ratings
		 FROM argument_signals WHERE argument_id = $1 AND deleted_at IS NULL`,
		argumentID,
	).Scan(&sig.ReasonRank, &sig.Upvotes, &sig.Downvotes, &sig.AspectRatings)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return sig, nil
}

func (s *SignalStore) ListActiveArgumentIDs(ctx context.Context) ([]uuid.UUID, error) {
	rows, err := s.db.Query(ctx,
		`SELECT argument_id FROM argument_signals WHERE deleted_at IS NULL`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *SignalStore) Resolve(ctx context.Context, argumentID uuid.UUID) (uuid.UUID, uuid.UUID, domain.LinkType, bool, error) {
	var from, to *uuid.UUID
	var linkType *string
	err := s.db.QueryRow(ctx,
		`SELECT from_belief_id, to_belief_id, link_type
		 FROM argument_signals WHERE argument_id = $1 AND deleted_at IS NULL`,
		argumentID,
	).Scan(&from, &to, &linkType)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return uuid.Nil, uuid.Nil, "", false, nil
		}
		return uuid.Nil, uuid.Nil, "", false, err
	}
	if from == nil || to == nil || linkType == nil || !domain.ValidLinkType(*linkType) {
		return uuid.Nil, uuid.Nil, "", false, nil
	}
	return *from, *to, domain.LinkType(*linkType), true, nil
}
