package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/ideastockexchange/beliefgraph/internal/domain"
	"go.uber.org/zap"
)

const (
	defaultEventWorkers   = 4
	defaultEventQueueSize = 256
	eventHandleTimeout    = 30 * time.Second
)

// Coordinator subscribes to upstream mutation events and drives targeted
// edge recomputation. It never blocks the caller beyond enqueueing; global
// aggregate freshness is the analytics loop's concern.
type Coordinator struct {
	recompute *RecomputeService
	resolver  domain.BeliefResolver
	links     domain.LinkStore
	touched   *TouchedSet
	logger    *zap.Logger

	queue   chan domain.MutationEvent
	workers int
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

func NewCoordinator(recompute *RecomputeService, resolver domain.BeliefResolver, links domain.LinkStore, touched *TouchedSet, logger *zap.Logger) *Coordinator {
	return &Coordinator{
		recompute: recompute,
		resolver:  resolver,
		links:     links,
		touched:   touched,
		logger:    logger,
		queue:     make(chan domain.MutationEvent, defaultEventQueueSize),
		workers:   defaultEventWorkers,
		stopCh:    make(chan struct{}),
	}
}

func (c *Coordinator) SetWorkers(n int) {
	if n > 0 {
		c.workers = n
	}
}

func (c *Coordinator) SetQueueSize(n int) {
	if n > 0 {
		c.queue = make(chan domain.MutationEvent, n)
	}
}

func (c *Coordinator) Start() {
	for i := 0; i < c.workers; i++ {
		c.wg.Add(1)
		go func() {
			defer c.wg.Done()
			for {
				select {
				case ev := <-c.queue:
					ctx, cancel := context.WithTimeout(context.Background(), eventHandleTimeout)
					c.handle(ctx, ev)
					cancel()
				case <-c.stopCh:
					return
				}
			}
		}()
	}
	c.logger.Info("event workers started", zap.Int("workers", c.workers))
}

func (c *Coordinator) Stop() {
	close(c.stopCh)
	c.wg.Wait()
	c.logger.Info("event workers stopped")
}

// Enqueue blocks until the event is queued or the caller's context expires.
// A full queue is backpressure, not data loss.
func (c *Coordinator) Enqueue(ctx context.Context, ev domain.MutationEvent) error {
	if ev.ReceivedAt.IsZero() {
		ev.ReceivedAt = time.Now()
	}
	select {
	case c.queue <- ev:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Coordinator) OnVoteChanged(ctx context.Context, argumentID uuid.UUID) error {
	return c.Enqueue(ctx, domain.MutationEvent{Kind: domain.EventVoteChanged, ArgumentID: argumentID})
}

func (c *Coordinator) OnAspectRatingChanged(ctx context.Context, argumentID uuid.UUID) error {
	return c.Enqueue(ctx, domain.MutationEvent{Kind: domain.EventAspectChanged, ArgumentID: argumentID})
}

func (c *Coordinator) OnArgumentChanged(ctx context.Context, argumentID uuid.UUID, change domain.ArgumentChange) error {
	return c.Enqueue(ctx, domain.MutationEvent{
		Kind:       domain.EventArgumentChanged,
		ArgumentID: argumentID,
		Change:     change,
	})
}

func (c *Coordinator) OnBeliefArchived(ctx context.Context, beliefID uuid.UUID) error {
	return c.Enqueue(ctx, domain.MutationEvent{Kind: domain.EventBeliefArchived, BeliefID: beliefID})
}

func (c *Coordinator) handle(ctx context.Context, ev domain.MutationEvent) {
	var err error

	switch {
	case ev.Kind == domain.EventArgumentChanged && ev.Change == domain.ArgumentCreated:
		err = c.handleCreated(ctx, ev.ArgumentID)
	case ev.Kind == domain.EventArgumentChanged && ev.Change == domain.ArgumentDeleted:
		err = c.handleDeleted(ctx, ev.ArgumentID)
	case ev.Kind == domain.EventVoteChanged,
		ev.Kind == domain.EventAspectChanged,
		ev.Kind == domain.EventArgumentChanged && ev.Change == domain.ArgumentEdited:
		err = c.handleRecompute(ctx, ev.ArgumentID)
	case ev.Kind == domain.EventBeliefArchived:
		err = c.handleArchived(ctx, ev.BeliefID)
	default:
		c.logger.Warn("unknown mutation event",
			zap.String("kind", string(ev.Kind)),
			zap.String("change", string(ev.Change)))
		return
	}

	if err != nil {
		level := c.logger.Error
		if errors.Is(err, domain.ErrTransient) {
			level = c.logger.Warn
		}
		level("mutation event failed",
			zap.String("kind", string(ev.Kind)),
			zap.String("change", string(ev.Change)),
			zap.String("argument_id", ev.ArgumentID.String()),
			zap.String("belief_id", ev.BeliefID.String()),
			zap.Error(err))
	}
}

// HandleCreated resolves the argument's endpoints and inserts the initial
// edge. An unresolvable argument is a no-link outcome, logged for audit.
func (c *Coordinator) handleCreated(ctx context.Context, argumentID uuid.UUID) error {
	from, to, linkType, resolved, err := c.resolver.Resolve(ctx, argumentID)
	if err != nil {
		return domain.TransientError(argumentID, err)
	}
	if !resolved {
		c.logger.Info("argument resolves to no belief link",
			zap.String("argument_id", argumentID.String()))
		return nil
	}

	link, err := c.recompute.CreateEdge(ctx, argumentID, from, to, linkType)
	if err != nil {
		return err
	}
	c.markTouched(link)
	return nil
}

func (c *Coordinator) handleDeleted(ctx context.Context, argumentID uuid.UUID) error {
	// Record the endpoints before the row disappears so the next analytics
	// pass drops the edge's contribution.
	link, err := c.links.GetByArgument(ctx, argumentID)
	if err == nil {
		c.markTouched(link)
	}

	return c.links.Delete(ctx, argumentID)
}

// handleArchived cascades an upstream belief archive: every edge incident to
// the belief is removed and both endpoints of each are marked so the next
// analytics pass drops their contributions. Redelivery finds no incident
// edges and deletes nothing.
func (c *Coordinator) handleArchived(ctx context.Context, beliefID uuid.UUID) error {
	incident, err := c.links.ListByBeliefs(ctx, []uuid.UUID{beliefID})
	if err != nil {
		return err
	}
	for i := range incident {
		c.markTouched(&incident[i])
	}

	removed, err := c.links.DeleteByBelief(ctx, beliefID)
	if err != nil {
		return err
	}
	c.logger.Info("belief archived, links removed",
		zap.String("belief_id", beliefID.String()),
		zap.Int64("removed", removed))
	return nil
}

func (c *Coordinator) handleRecompute(ctx context.Context, argumentID uuid.UUID) error {
	link, err := c.recompute.RecomputeExisting(ctx, argumentID)
	if err != nil {
		return err
	}
	c.markTouched(link)
	return nil
}

func (c *Coordinator) markTouched(link *domain.BeliefLink) {
	if link == nil {
		return
	}
	c.touched.Add(link.FromBeliefID, link.ToBeliefID)
}
