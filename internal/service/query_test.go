package service

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/ideastockexchange/beliefgraph/internal/domain"
	"go.uber.org/zap"
)

func setupQueryTest() (*QueryService, *memLinkStore, *fixedSnapshots) {
	links := newMemLinkStore()
	snapshots := &fixedSnapshots{}
	svc := NewQueryService(links, snapshots, zap.NewNop())
	return svc, links, snapshots
}

func TestQueryService_IncomingOrderingAndEnrichment(t *testing.T) {
	svc, links, snapshots := setupQueryTest()
	ctx := context.Background()

	target := uuid.New()
	src1, src2, src3 := uuid.New(), uuid.New(), uuid.New()
	addLink(t, links, src1, target, domain.LinkSupports, 90)
	addLink(t, links, src2, target, domain.LinkOpposes, 50)
	addLink(t, links, src3, target, domain.LinkSupports, 10)

	snapshots.snap = &domain.MetricsSnapshot{
		Version: 7,
		Nodes: map[uuid.UUID]domain.NetworkMetrics{
			src1: {BeliefID: src1, Centrality: 123, SnapshotVersion: 7},
		},
	}

	listing, err := svc.Incoming(ctx, target, nil, domain.LinkPage{})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(listing.Links) != 3 {
		t.Fatalf("expected 3 links, got %d", len(listing.Links))
	}
	for i := 1; i < len(listing.Links); i++ {
		if listing.Links[i].Strength > listing.Links[i-1].Strength {
			t.Fatal("links are not ordered strongest first")
		}
	}
	if listing.Links[0].NeighborCentrality != 123 {
		t.Fatalf("expected neighbor centrality 123, got %.2f", listing.Links[0].NeighborCentrality)
	}
	if listing.Links[0].SnapshotVersion != 7 {
		t.Fatalf("expected snapshot version 7, got %d", listing.Links[0].SnapshotVersion)
	}
}

func TestQueryService_IncomingTypeFilter(t *testing.T) {
	svc, links, _ := setupQueryTest()
	ctx := context.Background()

	target := uuid.New()
	addLink(t, links, uuid.New(), target, domain.LinkSupports, 90)
	addLink(t, links, uuid.New(), target, domain.LinkOpposes, 50)

	opposes := domain.LinkOpposes
	listing, err := svc.Incoming(ctx, target, &opposes, domain.LinkPage{})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(listing.Links) != 1 || listing.Links[0].LinkType != domain.LinkOpposes {
		t.Fatalf("expected only the opposing link, got %+v", listing.Links)
	}
}

func TestQueryService_NoSnapshotYet(t *testing.T) {
	svc, links, _ := setupQueryTest()
	ctx := context.Background()

	target := uuid.New()
	addLink(t, links, uuid.New(), target, domain.LinkSupports, 60)

	// Edge reads work before the first analytics pass; enrichment is zero.
	listing, err := svc.Incoming(ctx, target, nil, domain.LinkPage{})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if listing.Links[0].NeighborCentrality != 0 || listing.Links[0].SnapshotVersion != 0 {
		t.Fatalf("expected zero enrichment without a snapshot, got %+v", listing.Links[0])
	}
}

func TestQueryService_CursorPagination(t *testing.T) {
	svc, links, _ := setupQueryTest()
	ctx := context.Background()

	target := uuid.New()
	for _, strength := range []float64{90, 70, 50, 30, 10} {
		addLink(t, links, uuid.New(), target, domain.LinkSupports, strength)
	}

	var seen []float64
	page := domain.LinkPage{Limit: 2}
	for pages := 0; pages < 5; pages++ {
		listing, err := svc.Incoming(ctx, target, nil, page)
		if err != nil {
			t.Fatalf("page %d failed: %v", pages, err)
		}
		for _, l := range listing.Links {
			seen = append(seen, l.Strength)
		}
		if listing.NextCursor == nil {
			break
		}
		page.Cursor = listing.NextCursor
	}

	expected := []float64{90, 70, 50, 30, 10}
	if len(seen) != len(expected) {
		t.Fatalf("expected %d links across pages, got %d (%v)", len(expected), len(seen), seen)
	}
	for i := range expected {
		if seen[i] != expected[i] {
			t.Fatalf("page walk out of order: got %v", seen)
		}
	}
}

func TestQueryService_GraphDepthValidation(t *testing.T) {
	svc, _, _ := setupQueryTest()

	for _, depth := range []int{0, -1, 4} {
		_, err := svc.Graph(context.Background(), uuid.New(), depth)
		var verr *domain.ValidationError
		if !errors.As(err, &verr) {
			t.Fatalf("depth %d: expected validation error, got %v", depth, err)
		}
	}
}

func TestQueryService_GraphExpansion(t *testing.T) {
	svc, links, _ := setupQueryTest()
	ctx := context.Background()

	a, b, c, d := uuid.New(), uuid.New(), uuid.New(), uuid.New()
	addLink(t, links, a, b, domain.LinkSupports, 80)
	addLink(t, links, b, c, domain.LinkOpposes, 60)
	addLink(t, links, c, d, domain.LinkSupports, 40)

	// Depth 1 from b: both incident edges, neighbors at one hop.
	slice, err := svc.Graph(ctx, b, 1)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(slice.Edges) != 2 || len(slice.Nodes) != 3 {
		t.Fatalf("depth 1: expected 2 edges / 3 nodes, got %d / %d", len(slice.Edges), len(slice.Nodes))
	}
	if slice.Nodes[0].BeliefID != b || slice.Nodes[0].Hops != 0 {
		t.Fatalf("expected root first at hop 0, got %+v", slice.Nodes[0])
	}

	// Depth 3 from a reaches the whole chain with each edge exactly once.
	slice, err = svc.Graph(ctx, a, 3)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(slice.Edges) != 3 {
		t.Fatalf("depth 3: expected 3 deduplicated edges, got %d", len(slice.Edges))
	}
	hops := make(map[uuid.UUID]int, len(slice.Nodes))
	for _, n := range slice.Nodes {
		hops[n.BeliefID] = n.Hops
	}
	if hops[a] != 0 || hops[b] != 1 || hops[c] != 2 || hops[d] != 3 {
		t.Fatalf("unexpected hop counts: %v", hops)
	}
}

func TestQueryService_Summary(t *testing.T) {
	svc, links, snapshots := setupQueryTest()
	ctx := context.Background()

	a, b, c := uuid.New(), uuid.New(), uuid.New()
	addLink(t, links, a, b, domain.LinkSupports, 60)
	addLink(t, links, b, c, domain.LinkOpposes, 40)

	snapshots.snap = &domain.MetricsSnapshot{
		Version: 3,
		Nodes: map[uuid.UUID]domain.NetworkMetrics{
			b: {BeliefID: b, Centrality: 100, Influence: 1.5, Dependency: 1, SnapshotVersion: 3},
		},
	}

	summary, err := svc.Summary(ctx, b)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if summary.IncomingByType[domain.LinkSupports] != 1 || summary.OutgoingByType[domain.LinkOpposes] != 1 {
		t.Fatalf("unexpected type counts: %+v", summary)
	}
	if summary.MeanStrength != 50 || summary.MedianStrength != 50 {
		t.Fatalf("expected mean/median 50, got %.2f / %.2f", summary.MeanStrength, summary.MedianStrength)
	}
	if summary.Metrics.Influence != 1.5 || summary.SnapshotVersion != 3 {
		t.Fatalf("unexpected metrics enrichment: %+v", summary)
	}
}

func TestQueryService_SummaryUnknownBelief(t *testing.T) {
	svc, _, _ := setupQueryTest()

	summary, err := svc.Summary(context.Background(), uuid.New())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if summary.MeanStrength != 0 || len(summary.IncomingByType) != 0 {
		t.Fatalf("unknown belief should have zero aggregates, got %+v", summary)
	}
}
