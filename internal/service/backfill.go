package service

import (
	"context"
	"errors"

	"github.com/ideastockexchange/beliefgraph/internal/domain"
	"go.uber.org/zap"
)

// BackfillResult summarizes one backfill run.
type BackfillResult struct {
	Arguments int `json:"arguments"`
	Linked    int `json:"linked"`
	NoLink    int `json:"no_link"`
	Failed    int `json:"failed"`
}

// BackfillService rebuilds the link graph from the full set of active
// arguments. Each argument goes through the same created path as live
// events, so re-running converges to the same final state instead of
// producing duplicate edges.
type BackfillService struct {
	signals   domain.SignalSource
	resolver  domain.BeliefResolver
	recompute *RecomputeService
	touched   *TouchedSet
	logger    *zap.Logger
}

func NewBackfillService(signals domain.SignalSource, resolver domain.BeliefResolver, recompute *RecomputeService, touched *TouchedSet, logger *zap.Logger) *BackfillService {
	return &BackfillService{
		signals:   signals,
		resolver:  resolver,
		recompute: recompute,
		touched:   touched,
		logger:    logger,
	}
}

func (s *BackfillService) Run(ctx context.Context) (*BackfillResult, error) {
	argumentIDs, err := s.signals.ListActiveArgumentIDs(ctx)
	if err != nil {
		return nil, err
	}

	result := &BackfillResult{Arguments: len(argumentIDs)}
	for _, argumentID := range argumentIDs {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		from, to, linkType, resolved, err := s.resolver.Resolve(ctx, argumentID)
		if err != nil {
			result.Failed++
			s.logger.Warn("backfill: resolve failed",
				zap.String("argument_id", argumentID.String()),
				zap.Error(err))
			continue
		}
		if !resolved {
			result.NoLink++
			continue
		}

		link, err := s.recompute.CreateEdge(ctx, argumentID, from, to, linkType)
		if err != nil {
			result.Failed++
			if !errors.Is(err, domain.ErrTransient) {
				s.logger.Error("backfill: create failed",
					zap.String("argument_id", argumentID.String()),
					zap.Error(err))
			}
			continue
		}
		result.Linked++
		if link != nil {
			s.touched.Add(link.FromBeliefID, link.ToBeliefID)
		}
	}

	s.logger.Info("backfill complete",
		zap.Int("arguments", result.Arguments),
		zap.Int("linked", result.Linked),
		zap.Int("no_link", result.NoLink),
		zap.Int("failed", result.Failed))
	return result, nil
}
