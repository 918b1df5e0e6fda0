package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/ideastockexchange/beliefgraph/internal/domain"
	"github.com/ideastockexchange/beliefgraph/internal/store"
	"go.uber.org/zap"
)

const (
	defaultSignalTimeout = 2 * time.Second
	defaultMaxRetries    = 3
	defaultBackoff       = 100 * time.Millisecond
)

// RecomputeService reads an argument's current signals, recomputes its edge
// strength and commits it through the link store's optimistic versioning.
// Version conflicts force a re-read so the later-observed signals always win.
type RecomputeService struct {
	links   domain.LinkStore
	signals domain.SignalSource
	engine  *ScoreEngine
	logger  *zap.Logger

	signalTimeout time.Duration
	maxRetries    int
	backoff       time.Duration
}

func NewRecomputeService(links domain.LinkStore, signals domain.SignalSource, engine *ScoreEngine, logger *zap.Logger) *RecomputeService {
	return &RecomputeService{
		links:         links,
		signals:       signals,
		engine:        engine,
		logger:        logger,
		signalTimeout: defaultSignalTimeout,
		maxRetries:    defaultMaxRetries,
		backoff:       defaultBackoff,
	}
}

func (s *RecomputeService) SetSignalTimeout(d time.Duration) { s.signalTimeout = d }
func (s *RecomputeService) SetRetryPolicy(maxRetries int, backoff time.Duration) {
	s.maxRetries = maxRetries
	s.backoff = backoff
}

// CreateEdge is the argument-created path: insert a fresh edge for the
// resolved endpoints. Redelivery is safe: if the edge already exists the
// call degrades to a targeted recompute of the existing edge.
func (s *RecomputeService) CreateEdge(ctx context.Context, argumentID, from, to uuid.UUID, linkType domain.LinkType) (*domain.BeliefLink, error) {
	sig, err := s.readSignals(ctx, argumentID)
	if err != nil {
		return nil, domain.TransientError(argumentID, err)
	}

	strength, breakdown, err := s.engine.Score(sig)
	if err != nil {
		return nil, err
	}

	link := &domain.BeliefLink{
		ArgumentID:   argumentID,
		FromBeliefID: from,
		ToBeliefID:   to,
		LinkType:     linkType,
		Strength:     strength,
		Breakdown:    breakdown,
	}

	err = s.links.Upsert(ctx, link, 0)
	if err == nil {
		return link, nil
	}
	if errors.Is(err, store.ErrConflict) {
		// Edge already exists (redelivered create); recompute it instead.
		return s.RecomputeExisting(ctx, argumentID)
	}
	return nil, err
}

// RecomputeExisting recomputes the edge backed by the argument, if any. An
// argument that never produced a link is a no-op, not an error.
func (s *RecomputeService) RecomputeExisting(ctx context.Context, argumentID uuid.UUID) (*domain.BeliefLink, error) {
	var lastErr error

	for attempt := 0; attempt <= s.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(s.backoff * time.Duration(attempt)):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		current, err := s.links.GetByArgument(ctx, argumentID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return nil, nil
			}
			lastErr = err
			continue
		}

		sig, err := s.readSignals(ctx, argumentID)
		if err != nil {
			// The edge keeps its last-known-good strength while the
			// upstream source is unavailable.
			lastErr = err
			continue
		}

		strength, breakdown, err := s.engine.Score(sig)
		if err != nil {
			return nil, err
		}

		current.Strength = strength
		current.Breakdown = breakdown

		err = s.links.Upsert(ctx, current, current.Version)
		if err == nil {
			return current, nil
		}
		if errors.Is(err, store.ErrConflict) {
			// A concurrent recompute committed first; re-read and retry
			// against the fresh version.
			lastErr = err
			continue
		}
		return nil, err
	}

	s.logger.Warn("recompute retries exhausted",
		zap.String("argument_id", argumentID.String()),
		zap.Error(lastErr))
	return nil, domain.TransientError(argumentID, lastErr)
}

// readSignals bounds the upstream read with the configured timeout.
func (s *RecomputeService) readSignals(ctx context.Context, argumentID uuid.UUID) (*domain.SignalAggregates, error) {
	ctx, cancel := context.WithTimeout(ctx, s.signalTimeout)
	defer cancel()
	return s.signals.Aggregates(ctx, argumentID)
}
