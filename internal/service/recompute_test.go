package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/ideastockexchange/beliefgraph/internal/domain"
	"go.uber.org/zap"
)

func setupRecomputeTest(t *testing.T) (*RecomputeService, *memLinkStore, *stubSignalSource) {
	t.Helper()
	links := newMemLinkStore()
	signals := newStubSignalSource()

	engine, err := NewScoreEngine(ScoreWeights{ReasonRank: 0.50, Votes: 0.35, Aspects: 0.15})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	svc := NewRecomputeService(links, signals, engine, zap.NewNop())
	svc.SetRetryPolicy(3, time.Millisecond)
	return svc, links, signals
}

func TestRecomputeService_CreateEdge(t *testing.T) {
	svc, links, signals := setupRecomputeTest(t)
	ctx := context.Background()

	argID, from, to := uuid.New(), uuid.New(), uuid.New()
	signals.set(&domain.SignalAggregates{ArgumentID: argID, ReasonRank: 80, Upvotes: 10})

	link, err := svc.CreateEdge(ctx, argID, from, to, domain.LinkSupports)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if link.Version != 1 {
		t.Fatalf("expected version 1, got %d", link.Version)
	}
	if link.Strength <= 50 {
		t.Fatalf("expected strength above neutral, got %.2f", link.Strength)
	}

	stored, err := links.GetByArgument(ctx, argID)
	if err != nil {
		t.Fatalf("expected link in store, got %v", err)
	}
	if stored.Strength != link.Strength {
		t.Fatalf("stored strength %.2f does not match returned %.2f", stored.Strength, link.Strength)
	}
}

func TestRecomputeService_CreateEdgeRedelivered(t *testing.T) {
	svc, links, signals := setupRecomputeTest(t)
	ctx := context.Background()

	argID, from, to := uuid.New(), uuid.New(), uuid.New()
	signals.set(&domain.SignalAggregates{ArgumentID: argID, ReasonRank: 80})

	if _, err := svc.CreateEdge(ctx, argID, from, to, domain.LinkSupports); err != nil {
		t.Fatalf("first create failed: %v", err)
	}

	// Redelivered create degrades to a recompute of the existing edge.
	link, err := svc.CreateEdge(ctx, argID, from, to, domain.LinkSupports)
	if err != nil {
		t.Fatalf("redelivered create failed: %v", err)
	}
	if link.Version != 2 {
		t.Fatalf("expected version 2 after redelivery, got %d", link.Version)
	}
	if links.count() != 1 {
		t.Fatalf("expected 1 link, got %d", links.count())
	}
}

func TestRecomputeService_MissingLinkIsNoop(t *testing.T) {
	svc, _, _ := setupRecomputeTest(t)

	link, err := svc.RecomputeExisting(context.Background(), uuid.New())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if link != nil {
		t.Fatalf("expected no link, got %+v", link)
	}
}

func TestRecomputeService_ConflictRetries(t *testing.T) {
	svc, links, signals := setupRecomputeTest(t)
	ctx := context.Background()

	argID := uuid.New()
	signals.set(&domain.SignalAggregates{ArgumentID: argID, ReasonRank: 40})
	if _, err := svc.CreateEdge(ctx, argID, uuid.New(), uuid.New(), domain.LinkSupports); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	signals.set(&domain.SignalAggregates{ArgumentID: argID, ReasonRank: 95})
	links.forceConflicts = 1

	link, err := svc.RecomputeExisting(ctx, argID)
	if err != nil {
		t.Fatalf("expected retry to succeed, got %v", err)
	}
	if link.Version != 2 {
		t.Fatalf("expected version 2, got %d", link.Version)
	}
}

func TestRecomputeService_RetriesExhausted(t *testing.T) {
	svc, links, signals := setupRecomputeTest(t)
	ctx := context.Background()

	argID := uuid.New()
	signals.set(&domain.SignalAggregates{ArgumentID: argID, ReasonRank: 40})
	if _, err := svc.CreateEdge(ctx, argID, uuid.New(), uuid.New(), domain.LinkSupports); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	before, _ := links.GetByArgument(ctx, argID)

	signals.set(&domain.SignalAggregates{ArgumentID: argID, ReasonRank: 95})
	links.forceConflicts = 100

	_, err := svc.RecomputeExisting(ctx, argID)
	if !errors.Is(err, domain.ErrTransient) {
		t.Fatalf("expected ErrTransient, got %v", err)
	}

	// The edge keeps its last committed strength.
	after, _ := links.GetByArgument(ctx, argID)
	if after.Strength != before.Strength || after.Version != before.Version {
		t.Fatalf("edge changed despite failed recompute: before %+v after %+v", before, after)
	}
}

func TestRecomputeService_SignalSourceDown(t *testing.T) {
	svc, links, signals := setupRecomputeTest(t)
	ctx := context.Background()

	argID := uuid.New()
	signals.set(&domain.SignalAggregates{ArgumentID: argID, ReasonRank: 70})
	if _, err := svc.CreateEdge(ctx, argID, uuid.New(), uuid.New(), domain.LinkSupports); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	before, _ := links.GetByArgument(ctx, argID)

	signals.err = errors.New("upstream unavailable")

	_, err := svc.RecomputeExisting(ctx, argID)
	if !errors.Is(err, domain.ErrTransient) {
		t.Fatalf("expected ErrTransient, got %v", err)
	}

	after, _ := links.GetByArgument(ctx, argID)
	if after.Strength != before.Strength {
		t.Fatalf("strength changed while source was down: %.2f -> %.2f", before.Strength, after.Strength)
	}
}
