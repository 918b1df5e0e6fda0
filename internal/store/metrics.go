package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/ideastockexchange/beliefgraph/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type MetricsStore struct {
	db *pgxpool.Pool
}

func NewMetricsStore(db *pgxpool.Pool) *MetricsStore {
	return &MetricsStore{db: db}
}

// SaveSnapshot persists a published snapshot in one transaction. The snapshot
// header and its per-node rows always commit together so a restart never
// loads a mixed-generation state.
func (s *MetricsStore) SaveSnapshot(ctx context.Context, snap *domain.MetricsSnapshot) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	err = tx.QueryRow(ctx,
		`INSERT INTO metric_snapshots (computed_at, degraded, rounds, top_influential, most_central, stats)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING version`,
		snap.ComputedAt, snap.Degraded, snap.Rounds, snap.TopInfluential, snap.MostCentral, snap.Stats,
	).Scan(&snap.Version)
	if err != nil {
		return err
	}

	rows := make([][]any, 0, len(snap.Nodes))
	for id, m := range snap.Nodes {
		rows = append(rows, []any{snap.Version, id, m.Centrality, m.Influence, m.Dependency})
	}
	_, err = tx.CopyFrom(ctx,
		pgx.Identifier{"node_metrics"},
		[]string{"snapshot_version", "belief_id", "centrality", "influence", "dependency"},
		pgx.CopyFromRows(rows),
	)
	if err != nil {
		return err
	}

	// Stamp the in-memory copies with the assigned version.
	for id, m := range snap.Nodes {
		m.SnapshotVersion = snap.Version
		snap.Nodes[id] = m
	}

	return tx.Commit(ctx)
}

func (s *MetricsStore) LatestSnapshot(ctx context.Context) (*domain.MetricsSnapshot, error) {
	snap := &domain.MetricsSnapshot{Nodes: make(map[uuid.UUID]domain.NetworkMetrics)}
	err := s.db.QueryRow(ctx,
		`SELECT version, computed_at, degraded, rounds, top_influential, most_central, stats
		 FROM metric_snapshots ORDER BY version DESC LIMIT 1`,
	).Scan(&snap.Version, &snap.ComputedAt, &snap.Degraded, &snap.Rounds,
		&snap.TopInfluential, &snap.MostCentral, &snap.Stats)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	rows, err := s.db.Query(ctx,
		`SELECT belief_id, centrality, influence, dependency
		 FROM node_metrics WHERE snapshot_version = $1`,
		snap.Version,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		m := domain.NetworkMetrics{SnapshotVersion: snap.Version}
		if err := rows.Scan(&m.BeliefID, &m.Centrality, &m.Influence, &m.Dependency); err != nil {
			return nil, err
		}
		snap.Nodes[m.BeliefID] = m
	}
	return snap, rows.Err()
}
