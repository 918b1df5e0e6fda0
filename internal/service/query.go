package service

import (
	"context"
	"sort"

	"github.com/google/uuid"
	"github.com/ideastockexchange/beliefgraph/internal/domain"
	"go.uber.org/zap"
)

// SnapshotProvider serves the latest published metrics snapshot.
type SnapshotProvider interface {
	Snapshot() *domain.MetricsSnapshot
}

// QueryService is the read side of the link graph. Edge reads always see the
// latest committed store state; metric enrichment comes from the latest
// published snapshot, whose version is surfaced so staleness is never hidden.
type QueryService struct {
	links     domain.LinkStore
	snapshots SnapshotProvider
	logger    *zap.Logger
}

func NewQueryService(links domain.LinkStore, snapshots SnapshotProvider, logger *zap.Logger) *QueryService {
	return &QueryService{links: links, snapshots: snapshots, logger: logger}
}

// Incoming lists links targeting the belief, strongest first, each enriched
// with the source node's snapshot centrality.
func (s *QueryService) Incoming(ctx context.Context, beliefID uuid.UUID, linkType *domain.LinkType, page domain.LinkPage) (*domain.LinkListing, error) {
	links, err := s.links.ListByTo(ctx, beliefID, linkType, page)
	if err != nil {
		return nil, err
	}
	return s.enrich(links, page, func(l *domain.BeliefLink) uuid.UUID { return l.FromBeliefID }), nil
}

// Outgoing is symmetric to Incoming.
func (s *QueryService) Outgoing(ctx context.Context, beliefID uuid.UUID, linkType *domain.LinkType, page domain.LinkPage) (*domain.LinkListing, error) {
	links, err := s.links.ListByFrom(ctx, beliefID, linkType, page)
	if err != nil {
		return nil, err
	}
	return s.enrich(links, page, func(l *domain.BeliefLink) uuid.UUID { return l.ToBeliefID }), nil
}

func (s *QueryService) enrich(links []domain.BeliefLink, page domain.LinkPage, neighbor func(*domain.BeliefLink) uuid.UUID) *domain.LinkListing {
	snap := s.snapshots.Snapshot()

	listing := &domain.LinkListing{Links: make([]domain.NeighborLink, len(links))}
	for i := range links {
		m := snap.MetricsFor(neighbor(&links[i]))
		listing.Links[i] = domain.NeighborLink{
			BeliefLink:         links[i],
			NeighborCentrality: m.Centrality,
			SnapshotVersion:    m.SnapshotVersion,
		}
	}

	page = page.Normalized()
	if len(links) == page.Limit {
		last := links[len(links)-1]
		listing.NextCursor = &domain.LinkCursor{Strength: last.Strength, ArgumentID: last.ArgumentID}
	}
	return listing
}

// Graph expands bidirectionally up to depth hops. Depth is bounded to keep
// dense neighborhoods from exploding a single request.
func (s *QueryService) Graph(ctx context.Context, beliefID uuid.UUID, depth int) (*domain.GraphSlice, error) {
	if depth < 1 || depth > domain.MaxGraphDepth {
		return nil, &domain.ValidationError{Field: "depth", Msg: "must be between 1 and 3"}
	}

	snap := s.snapshots.Snapshot()

	visited := map[uuid.UUID]int{beliefID: 0}
	seenEdges := make(map[uuid.UUID]struct{})
	slice := &domain.GraphSlice{Root: beliefID, Depth: depth}

	frontier := []uuid.UUID{beliefID}
	for hop := 1; hop <= depth && len(frontier) > 0; hop++ {
		edges, err := s.links.ListByBeliefs(ctx, frontier)
		if err != nil {
			return nil, err
		}

		var next []uuid.UUID
		for i := range edges {
			e := &edges[i]
			// The same edge can be reached from both endpoints; keep one copy.
			if _, ok := seenEdges[e.ArgumentID]; ok {
				continue
			}
			seenEdges[e.ArgumentID] = struct{}{}
			slice.Edges = append(slice.Edges, *e)

			for _, id := range []uuid.UUID{e.FromBeliefID, e.ToBeliefID} {
				if _, ok := visited[id]; !ok {
					visited[id] = hop
					next = append(next, id)
				}
			}
		}
		frontier = next
	}

	slice.Nodes = make([]domain.GraphNode, 0, len(visited))
	for id, hops := range visited {
		m := snap.MetricsFor(id)
		slice.Nodes = append(slice.Nodes, domain.GraphNode{BeliefID: id, Hops: hops, Metrics: &m})
	}
	sort.Slice(slice.Nodes, func(i, j int) bool {
		if slice.Nodes[i].Hops != slice.Nodes[j].Hops {
			return slice.Nodes[i].Hops < slice.Nodes[j].Hops
		}
		return slice.Nodes[i].BeliefID.String() < slice.Nodes[j].BeliefID.String()
	})
	return slice, nil
}

// Summary aggregates one node's incident links plus its latest metrics. An
// unknown belief yields zero counts, never fabricated strength.
func (s *QueryService) Summary(ctx context.Context, beliefID uuid.UUID) (*domain.LinkSummary, error) {
	edges, err := s.links.ListByBeliefs(ctx, []uuid.UUID{beliefID})
	if err != nil {
		return nil, err
	}

	summary := &domain.LinkSummary{
		BeliefID:       beliefID,
		IncomingByType: map[domain.LinkType]int{},
		OutgoingByType: map[domain.LinkType]int{},
	}

	strengths := make([]float64, 0, len(edges))
	var total float64
	for i := range edges {
		e := &edges[i]
		if e.ToBeliefID == beliefID {
			summary.IncomingByType[e.LinkType]++
		}
		if e.FromBeliefID == beliefID {
			summary.OutgoingByType[e.LinkType]++
		}
		strengths = append(strengths, e.Strength)
		total += e.Strength
	}

	if len(strengths) > 0 {
		summary.MeanStrength = total / float64(len(strengths))
		summary.MedianStrength = median(strengths)
	}

	snap := s.snapshots.Snapshot()
	m := snap.MetricsFor(beliefID)
	summary.Metrics = &m
	summary.SnapshotVersion = m.SnapshotVersion
	return summary, nil
}

func median(values []float64) float64 {
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}
