package service

import (
	"bytes"
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/ideastockexchange/beliefgraph/internal/domain"
	"github.com/ideastockexchange/beliefgraph/internal/store"
)

// memLinkStore implements domain.LinkStore with the same optimistic
// versioning semantics as the Postgres store.
type memLinkStore struct {
	mu    sync.Mutex
	links map[uuid.UUID]*domain.BeliefLink

	// forceConflicts makes the next N Upsert calls fail with ErrConflict.
	forceConflicts int
	listAllErr     error
}

func newMemLinkStore() *memLinkStore {
	return &memLinkStore{links: make(map[uuid.UUID]*domain.BeliefLink)}
}

func (m *memLinkStore) Upsert(ctx context.Context, link *domain.BeliefLink, expectedVersion int64) error {
	if err := link.Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.forceConflicts > 0 {
		m.forceConflicts--
		return store.ErrConflict
	}

	now := time.Now()
	cur, exists := m.links[link.ArgumentID]

	if expectedVersion == 0 {
		if exists {
			return store.ErrConflict
		}
		link.Version = 1
		link.CreatedAt = now
		link.UpdatedAt = now
		saved := *link
		m.links[link.ArgumentID] = &saved
		return nil
	}

	if !exists || cur.Version != expectedVersion {
		return store.ErrConflict
	}
	link.Version = expectedVersion + 1
	link.CreatedAt = cur.CreatedAt
	link.UpdatedAt = now
	saved := *link
	m.links[link.ArgumentID] = &saved
	return nil
}

func (m *memLinkStore) GetByArgument(ctx context.Context, argumentID uuid.UUID) (*domain.BeliefLink, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.links[argumentID]
	if !ok {
		return nil, store.ErrNotFound
	}
	copied := *l
	return &copied, nil
}

func (m *memLinkStore) ListByFrom(ctx context.Context, beliefID uuid.UUID, linkType *domain.LinkType, page domain.LinkPage) ([]domain.BeliefLink, error) {
	return m.listWhere(func(l *domain.BeliefLink) bool { return l.FromBeliefID == beliefID }, linkType, page), nil
}

func (m *memLinkStore) ListByTo(ctx context.Context, beliefID uuid.UUID, linkType *domain.LinkType, page domain.LinkPage) ([]domain.BeliefLink, error) {
	return m.listWhere(func(l *domain.BeliefLink) bool { return l.ToBeliefID == beliefID }, linkType, page), nil
}

func (m *memLinkStore) listWhere(match func(*domain.BeliefLink) bool, linkType *domain.LinkType, page domain.LinkPage) []domain.BeliefLink {
	m.mu.Lock()
	defer m.mu.Unlock()

	page = page.Normalized()
	var out []domain.BeliefLink
	for _, l := range m.links {
		if !match(l) {
			continue
		}
		if linkType != nil && l.LinkType != *linkType {
			continue
		}
		if c := page.Cursor; c != nil {
			after := l.Strength < c.Strength ||
				(l.Strength == c.Strength && bytes.Compare(l.ArgumentID[:], c.ArgumentID[:]) < 0)
			if !after {
				continue
			}
		}
		out = append(out, *l)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Strength != out[j].Strength {
			return out[i].Strength > out[j].Strength
		}
		return bytes.Compare(out[i].ArgumentID[:], out[j].ArgumentID[:]) > 0
	})
	if len(out) > page.Limit {
		out = out[:page.Limit]
	}
	return out
}

func (m *memLinkStore) Delete(ctx context.Context, argumentID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.links, argumentID)
	return nil
}

func (m *memLinkStore) DeleteByBelief(ctx context.Context, beliefID uuid.UUID) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, l := range m.links {
		if l.FromBeliefID == beliefID || l.ToBeliefID == beliefID {
			delete(m.links, id)
			n++
		}
	}
	return n, nil
}

func (m *memLinkStore) ListAll(ctx context.Context) ([]domain.BeliefLink, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listAllErr != nil {
		return nil, m.listAllErr
	}
	out := make([]domain.BeliefLink, 0, len(m.links))
	for _, l := range m.links {
		out = append(out, *l)
	}
	return out, nil
}

func (m *memLinkStore) ListByBeliefs(ctx context.Context, beliefIDs []uuid.UUID) ([]domain.BeliefLink, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	wanted := make(map[uuid.UUID]struct{}, len(beliefIDs))
	for _, id := range beliefIDs {
		wanted[id] = struct{}{}
	}
	var out []domain.BeliefLink
	for _, l := range m.links {
		if _, ok := wanted[l.FromBeliefID]; ok {
			out = append(out, *l)
			continue
		}
		if _, ok := wanted[l.ToBeliefID]; ok {
			out = append(out, *l)
		}
	}
	return out, nil
}

func (m *memLinkStore) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.links)
}

// stubSignalSource implements domain.SignalSource from a fixed map.
type stubSignalSource struct {
	mu   sync.Mutex
	sigs map[uuid.UUID]*domain.SignalAggregates
	err  error
}

func newStubSignalSource() *stubSignalSource {
	return &stubSignalSource{sigs: make(map[uuid.UUID]*domain.SignalAggregates)}
}

func (s *stubSignalSource) set(sig *domain.SignalAggregates) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sigs[sig.ArgumentID] = sig
}

func (s *stubSignalSource) Aggregates(ctx context.Context, argumentID uuid.UUID) (*domain.SignalAggregates, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	sig, ok := s.sigs[argumentID]
	if !ok {
		return nil, store.ErrNotFound
	}
	copied := *sig
	return &copied, nil
}

func (s *stubSignalSource) ListActiveArgumentIDs(ctx context.Context) ([]uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]uuid.UUID, 0, len(s.sigs))
	for id := range s.sigs {
		ids = append(ids, id)
	}
	return ids, nil
}

type resolvedEdge struct {
	from, to uuid.UUID
	linkType domain.LinkType
}

// stubResolver implements domain.BeliefResolver; arguments absent from the
// map resolve to no link.
type stubResolver struct {
	edges  map[uuid.UUID]resolvedEdge
	errFor map[uuid.UUID]error
}

func newStubResolver() *stubResolver {
	return &stubResolver{edges: make(map[uuid.UUID]resolvedEdge), errFor: make(map[uuid.UUID]error)}
}

func (r *stubResolver) Resolve(ctx context.Context, argumentID uuid.UUID) (uuid.UUID, uuid.UUID, domain.LinkType, bool, error) {
	if err := r.errFor[argumentID]; err != nil {
		return uuid.Nil, uuid.Nil, "", false, err
	}
	e, ok := r.edges[argumentID]
	if !ok {
		return uuid.Nil, uuid.Nil, "", false, nil
	}
	return e.from, e.to, e.linkType, true, nil
}

// memMetricsStore implements domain.MetricsStore in memory.
type memMetricsStore struct {
	mu    sync.Mutex
	snaps []*domain.MetricsSnapshot
}

func newMemMetricsStore() *memMetricsStore {
	return &memMetricsStore{}
}

func (m *memMetricsStore) SaveSnapshot(ctx context.Context, snap *domain.MetricsSnapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	snap.Version = int64(len(m.snaps) + 1)
	for id, nm := range snap.Nodes {
		nm.SnapshotVersion = snap.Version
		snap.Nodes[id] = nm
	}
	m.snaps = append(m.snaps, snap)
	return nil
}

func (m *memMetricsStore) LatestSnapshot(ctx context.Context) (*domain.MetricsSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.snaps) == 0 {
		return nil, store.ErrNotFound
	}
	return m.snaps[len(m.snaps)-1], nil
}

// fixedSnapshots serves one snapshot, or nil before the first pass.
type fixedSnapshots struct {
	snap *domain.MetricsSnapshot
}

func (f *fixedSnapshots) Snapshot() *domain.MetricsSnapshot { return f.snap }

var (
	_ domain.LinkStore      = (*memLinkStore)(nil)
	_ domain.SignalSource   = (*stubSignalSource)(nil)
	_ domain.BeliefResolver = (*stubResolver)(nil)
	_ domain.MetricsStore   = (*memMetricsStore)(nil)
	_ SnapshotProvider      = (*fixedSnapshots)(nil)
)
