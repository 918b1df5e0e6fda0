package service

import (
	"context"
	"errors"
	"math"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/ideastockexchange/beliefgraph/internal/domain"
	"github.com/ideastockexchange/beliefgraph/internal/store"
	"go.uber.org/zap"
)

const (
	defaultFullInterval        = 5 * time.Minute
	defaultIncrementalInterval = 30 * time.Second
	defaultDamping             = 0.15
	defaultMaxRounds           = 100
	defaultEpsilon             = 1e-6
	defaultTopK                = 10
	passTimeout                = 2 * time.Minute
)

var strengthBucketBounds = []float64{0, 20, 40, 60, 80, 100}

// AnalyticsService recomputes node-level network metrics off the request
// path. Each pass reads a point-in-time view of the link store, builds a
// complete snapshot and publishes it with a single pointer swap, so readers
// never observe a mixed-generation state.
type AnalyticsService struct {
	links   domain.LinkStore
	metrics domain.MetricsStore
	touched *TouchedSet
	logger  *zap.Logger

	damping      float64
	maxRounds    int
	epsilon      float64
	topK         int
	fullInterval time.Duration
	incrInterval time.Duration

	current atomic.Pointer[domain.MetricsSnapshot]
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

func NewAnalyticsService(links domain.LinkStore, metrics domain.MetricsStore, touched *TouchedSet, logger *zap.Logger) *AnalyticsService {
	return &AnalyticsService{
		links:        links,
		metrics:      metrics,
		touched:      touched,
		logger:       logger,
		damping:      defaultDamping,
		maxRounds:    defaultMaxRounds,
		epsilon:      defaultEpsilon,
		topK:         defaultTopK,
		fullInterval: defaultFullInterval,
		incrInterval: defaultIncrementalInterval,
		stopCh:       make(chan struct{}),
	}
}

func (s *AnalyticsService) SetDamping(d float64) {
	if d > 0 && d < 1 {
		s.damping = d
	}
}

func (s *AnalyticsService) SetIterationBounds(maxRounds int, epsilon float64) {
	if maxRounds > 0 {
		s.maxRounds = maxRounds
	}
	if epsilon > 0 {
		s.epsilon = epsilon
	}
}

func (s *AnalyticsService) SetTopK(k int) {
	if k > 0 {
		s.topK = k
	}
}

func (s *AnalyticsService) SetIntervals(full, incremental time.Duration) {
	if full > 0 {
		s.fullInterval = full
	}
	if incremental > 0 {
		s.incrInterval = incremental
	}
}

// Bootstrap loads the last persisted snapshot so reads after a restart serve
// the last good metrics instead of an empty graph.
func (s *AnalyticsService) Bootstrap(ctx context.Context) error {
	snap, err := s.metrics.LatestSnapshot(ctx)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		return err
	}
	s.current.Store(snap)
	s.logger.Info("restored metrics snapshot",
		zap.Int64("version", snap.Version),
		zap.Int("nodes", len(snap.Nodes)))
	return nil
}

func (s *AnalyticsService) Start() {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		full := time.NewTicker(s.fullInterval)
		defer full.Stop()
		incr := time.NewTicker(s.incrInterval)
		defer incr.Stop()

		s.logger.Info("analytics worker started",
			zap.Duration("full_interval", s.fullInterval),
			zap.Duration("incremental_interval", s.incrInterval))

		for {
			select {
			case <-full.C:
				s.runPass(true)
			case <-incr.C:
				s.runPass(false)
			case <-s.stopCh:
				s.logger.Info("analytics worker stopped")
				return
			}
		}
	}()
}

func (s *AnalyticsService) Stop() {
	close(s.stopCh)
	s.wg.Wait()
}

// Snapshot returns the latest published snapshot, or nil before the first
// pass. Snapshots are immutable; callers may share them freely.
func (s *AnalyticsService) Snapshot() *domain.MetricsSnapshot {
	return s.current.Load()
}

func (s *AnalyticsService) runPass(full bool) {
	ctx, cancel := context.WithTimeout(context.Background(), passTimeout)
	defer cancel()

	// A cancelled pass discards partial progress; the stopCh guard keeps
	// shutdown from racing a long iteration.
	go func() {
		select {
		case <-s.stopCh:
			cancel()
		case <-ctx.Done():
		}
	}()

	if !full && s.touched.Len() == 0 {
		return
	}

	if _, err := s.RunPass(ctx, full); err != nil {
		if errors.Is(err, context.Canceled) {
			s.logger.Info("analytics pass cancelled, keeping last snapshot")
			return
		}
		s.logger.Error("analytics pass failed", zap.Bool("full", full), zap.Error(err))
	}
}

// RunPass recomputes metrics for the whole graph and publishes one new
// immutable snapshot. A non-full pass warm-seeds the influence iteration from
// the current snapshot so it converges in few rounds; all three metrics per
// node still come from this same pass.
func (s *AnalyticsService) RunPass(ctx context.Context, full bool) (*domain.MetricsSnapshot, error) {
	started := time.Now()
	touched := s.touched.Drain()

	links, err := s.links.ListAll(ctx)
	if err != nil {
		// Nothing was published; re-mark the drained nodes for the next pass.
		s.touched.Add(touched...)
		return nil, err
	}

	var seed map[uuid.UUID]float64
	if !full {
		if prev := s.current.Load(); prev != nil {
			seed = make(map[uuid.UUID]float64, len(prev.Nodes))
			for id, m := range prev.Nodes {
				seed[id] = m.Influence
			}
		}
	}

	snap, err := s.compute(ctx, links, seed)
	if err != nil {
		s.touched.Add(touched...)
		return nil, err
	}

	if s.metrics != nil {
		if err := s.metrics.SaveSnapshot(ctx, snap); err != nil {
			s.touched.Add(touched...)
			return nil, err
		}
	} else {
		snap.Version = versionAfter(s.current.Load())
		for id, m := range snap.Nodes {
			m.SnapshotVersion = snap.Version
			snap.Nodes[id] = m
		}
	}

	// Single atomic publication; in-flight readers keep the old snapshot.
	s.current.Store(snap)

	s.logger.Info("analytics pass complete",
		zap.Bool("full", full),
		zap.Int64("version", snap.Version),
		zap.Int("nodes", len(snap.Nodes)),
		zap.Int("edges", len(links)),
		zap.Int("rounds", snap.Rounds),
		zap.Bool("degraded", snap.Degraded),
		zap.Duration("took", time.Since(started)))
	return snap, nil
}

func versionAfter(prev *domain.MetricsSnapshot) int64 {
	if prev == nil {
		return 1
	}
	return prev.Version + 1
}

// compute builds a full metrics snapshot from one consistent edge list.
func (s *AnalyticsService) compute(ctx context.Context, links []domain.BeliefLink, influenceSeed map[uuid.UUID]float64) (*domain.MetricsSnapshot, error) {
	nodes := make(map[uuid.UUID]*domain.NetworkMetrics)
	node := func(id uuid.UUID) *domain.NetworkMetrics {
		m, ok := nodes[id]
		if !ok {
			m = &domain.NetworkMetrics{BeliefID: id}
			nodes[id] = m
		}
		return m
	}

	// Centrality: weighted degree over incident edges, both directions.
	// Dependency inputs: max and total incoming strength per node.
	maxIn := make(map[uuid.UUID]float64)
	totalIn := make(map[uuid.UUID]float64)
	for i := range links {
		l := &links[i]
		node(l.FromBeliefID).Centrality += l.Strength
		node(l.ToBeliefID).Centrality += l.Strength
		totalIn[l.ToBeliefID] += l.Strength
		if l.Strength > maxIn[l.ToBeliefID] {
			maxIn[l.ToBeliefID] = l.Strength
		}
	}
	for id, m := range nodes {
		if total := totalIn[id]; total > 0 {
			m.Dependency = maxIn[id] / total
		}
	}

	influence, rounds, converged, err := s.iterateInfluence(ctx, nodes, links, influenceSeed)
	if err != nil {
		return nil, err
	}
	for id, m := range nodes {
		m.Influence = influence[id]
	}

	snap := &domain.MetricsSnapshot{
		ComputedAt: time.Now(),
		Degraded:   !converged,
		Rounds:     rounds,
		Nodes:      make(map[uuid.UUID]domain.NetworkMetrics, len(nodes)),
	}
	for id, m := range nodes {
		snap.Nodes[id] = *m
	}
	snap.TopInfluential = rankNodes(nodes, s.topK, func(m *domain.NetworkMetrics) float64 { return m.Influence })
	snap.MostCentral = rankNodes(nodes, s.topK, func(m *domain.NetworkMetrics) float64 { return m.Centrality })
	snap.Stats = buildStats(links, len(nodes))
	return snap, nil
}

// iterateInfluence runs the damped, sign-aware power iteration. Influence is
// normalized to sum to the node count after each round, which keeps cyclic
// support structures bounded instead of inflating without limit. Hitting the
// round cap without converging is a soft failure: the best available values
// are returned and the snapshot is marked degraded.
func (s *AnalyticsService) iterateInfluence(ctx context.Context, nodes map[uuid.UUID]*domain.NetworkMetrics, links []domain.BeliefLink, seed map[uuid.UUID]float64) (map[uuid.UUID]float64, int, bool, error) {
	n := len(nodes)
	if n == 0 {
		return map[uuid.UUID]float64{}, 0, true, nil
	}

	influence := make(map[uuid.UUID]float64, n)
	for id := range nodes {
		if v, ok := seed[id]; ok && v > 0 {
			influence[id] = v
		} else {
			influence[id] = 1
		}
	}
	normalize(influence, float64(n))

	rounds := 0
	for ; rounds < s.maxRounds; rounds++ {
		if err := ctx.Err(); err != nil {
			return nil, rounds, false, err
		}

		next := make(map[uuid.UUID]float64, n)
		for id := range nodes {
			next[id] = s.damping
		}
		for i := range links {
			l := &links[i]
			contribution := (1 - s.damping) * influence[l.FromBeliefID] * l.Strength / 100
			if l.LinkType == domain.LinkOpposes {
				contribution = -contribution
			}
			next[l.ToBeliefID] += contribution
		}
		// Opposition can push a node negative; floor at zero before
		// normalizing so the total stays meaningful.
		for id, v := range next {
			if v < 0 {
				next[id] = 0
			}
		}
		normalize(next, float64(n))

		var delta float64
		for id := range nodes {
			delta += math.Abs(next[id] - influence[id])
		}
		influence = next

		if delta < s.epsilon {
			return influence, rounds + 1, true, nil
		}
	}

	return influence, rounds, false, nil
}

// normalize scales values so they sum to total. An all-zero map is reset to
// uniform.
func normalize(values map[uuid.UUID]float64, total float64) {
	var sum float64
	for _, v := range values {
		sum += v
	}
	if sum == 0 {
		uniform := total / float64(len(values))
		for id := range values {
			values[id] = uniform
		}
		return
	}
	scale := total / sum
	for id := range values {
		values[id] *= scale
	}
}

func rankNodes(nodes map[uuid.UUID]*domain.NetworkMetrics, k int, score func(*domain.NetworkMetrics) float64) []domain.NodeRank {
	ranks := make([]domain.NodeRank, 0, len(nodes))
	for id, m := range nodes {
		ranks = append(ranks, domain.NodeRank{BeliefID: id, Score: score(m)})
	}
	sort.Slice(ranks, func(i, j int) bool {
		if ranks[i].Score != ranks[j].Score {
			return ranks[i].Score > ranks[j].Score
		}
		return ranks[i].BeliefID.String() < ranks[j].BeliefID.String()
	})
	if len(ranks) > k {
		ranks = ranks[:k]
	}
	return ranks
}

func buildStats(links []domain.BeliefLink, nodeCount int) domain.NetworkStats {
	stats := domain.NetworkStats{
		NodeCount: nodeCount,
		EdgeCount: len(links),
	}

	buckets := make([]domain.StrengthBucket, len(strengthBucketBounds)-1)
	for i := range buckets {
		buckets[i] = domain.StrengthBucket{
			Low:  strengthBucketBounds[i],
			High: strengthBucketBounds[i+1],
		}
	}

	var totalStrength float64
	for i := range links {
		l := &links[i]
		totalStrength += l.Strength
		if l.LinkType == domain.LinkSupports {
			stats.SupportCount++
		} else {
			stats.OpposeCount++
		}
		for b := range buckets {
			if l.Strength < buckets[b].High || b == len(buckets)-1 {
				buckets[b].Count++
				break
			}
		}
	}
	if len(links) > 0 {
		stats.MeanStrength = totalStrength / float64(len(links))
	}
	stats.Distribution = buckets
	return stats
}
