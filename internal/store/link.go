package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/ideastockexchange/beliefgraph/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type LinkStore struct {
	db *pgxpool.Pool
}

func NewLinkStore(db *pgxpool.Pool) *LinkStore {
	return &LinkStore{db: db}
}

const linkColumns = `argument_id, from_belief_id, to_belief_id, link_type, strength, breakdown, version, created_at, updated_at`

func scanLink(row pgx.Row) (*domain.BeliefLink, error) {
	l := &domain.BeliefLink{}
	err := row.Scan(&l.ArgumentID, &l.FromBeliefID, &l.ToBeliefID, &l.LinkType,
		&l.Strength, &l.Breakdown, &l.Version, &l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return l, nil
}

// Upsert commits the link iff the stored version matches expectedVersion.
// expectedVersion 0 is the insert path; an existing row there is a conflict
// too (two creators raced), so the caller re-reads either way.
func (s *LinkStore) Upsert(ctx context.Context, link *domain.BeliefLink, expectedVersion int64) error {
	if err := link.Validate(); err != nil {
		return err
	}

	if expectedVersion == 0 {
		err := s.db.QueryRow(ctx,
			`INSERT INTO belief_links (argument_id, from_belief_id, to_belief_id, link_type, strength, breakdown, version)
			 VALUES ($1, $2, $3, $4, $5, $6, 1)
			 ON CONFLICT (argument_id) DO NOTHING
			 RETURNING version, created_at, updated_at`,
			link.ArgumentID, link.FromBeliefID, link.ToBeliefID, link.LinkType, link.Strength, link.Breakdown,
		).Scan(&link.Version, &link.CreatedAt, &link.UpdatedAt)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrConflict
			}
			return err
		}
		return nil
	}

	err := s.db.QueryRow(ctx,
		`UPDATE belief_links
		 SET from_belief_id = $2, to_belief_id = $3, link_type = $4,
		     strength = $5, breakdown = $6, version = version + 1, updated_at = NOW()
		 WHERE argument_id = $1 AND version = $7
		 RETURNING version, created_at, updated_at`,
		link.ArgumentID, link.FromBeliefID, link.ToBeliefID, link.LinkType,
		link.Strength, link.Breakdown, expectedVersion,
	).Scan(&link.Version, &link.CreatedAt, &link.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrConflict
		}
		return err
	}
	return nil
}

func (s *LinkStore) GetByArgument(ctx context.Context, argumentID uuid.UUID) (*domain.BeliefLink, error) {
	l, err := scanLink(s.db.QueryRow(ctx,
		`SELECT `+linkColumns+` FROM belief_links WHERE argument_id = $1`,
		argumentID,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return l, nil
}

func (s *LinkStore) ListByFrom(ctx context.Context, beliefID uuid.UUID, linkType *domain.LinkType, page domain.LinkPage) ([]domain.BeliefLink, error) {
	return s.listByEndpoint(ctx, "from_belief_id", beliefID, linkType, page)
}

func (s *LinkStore) ListByTo(ctx context.Context, beliefID uuid.UUID, linkType *domain.LinkType, page domain.LinkPage) ([]domain.BeliefLink, error) {
	return s.listByEndpoint(ctx, "to_belief_id", beliefID, linkType, page)
}

// listByEndpoint pages with a keyset cursor on (strength, argument_id) so the
// sequence stays stable while concurrent recomputes shift strengths.
func (s *LinkStore) listByEndpoint(ctx context.Context, column string, beliefID uuid.UUID, linkType *domain.LinkType, page domain.LinkPage) ([]domain.BeliefLink, error) {
	page = page.Normalized()

	query := `SELECT ` + linkColumns + ` FROM belief_links WHERE ` + column + ` = $1`
	args := []any{beliefID}

	if linkType != nil {
		args = append(args, *linkType)
		query += fmt.Sprintf(" AND link_type = $%d", len(args))
	}
	if page.Cursor != nil {
		args = append(args, page.Cursor.Strength, page.Cursor.ArgumentID)
		query += fmt.Sprintf(" AND (strength, argument_id) < ($%d, $%d)", len(args)-1, len(args))
	}

	args = append(args, page.Limit)
	query += fmt.Sprintf(" ORDER BY strength DESC, argument_id DESC LIMIT $%d", len(args))

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectLinks(rows)
}

func (s *LinkStore) Delete(ctx context.Context, argumentID uuid.UUID) error {
	_, err := s.db.Exec(ctx, `DELETE FROM belief_links WHERE argument_id = $1`, argumentID)
	return err
}

func (s *LinkStore) DeleteByBelief(ctx context.Context, beliefID uuid.UUID) (int64, error) {
	tag, err := s.db.Exec(ctx,
		`DELETE FROM belief_links WHERE from_belief_id = $1 OR to_belief_id = $1`,
		beliefID,
	)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// ListAll reads every live link inside a repeatable-read transaction so an
// analytics pass sees one point-in-time state of the graph.
func (s *LinkStore) ListAll(ctx context.Context) ([]domain.BeliefLink, error) {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	rows, err := tx.Query(ctx, `SELECT `+linkColumns+` FROM belief_links`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	links, err := collectLinks(rows)
	if err != nil {
		return nil, err
	}
	return links, tx.Commit(ctx)
}

func (s *LinkStore) ListByBeliefs(ctx context.Context, beliefIDs []uuid.UUID) ([]domain.BeliefLink, error) {
	if len(beliefIDs) == 0 {
		return nil, nil
	}
	ids := make([]string, len(beliefIDs))
	for i, id := range beliefIDs {
		ids[i] = id.String()
	}
	rows, err := s.db.Query(ctx,
		`SELECT `+linkColumns+` FROM belief_links
		 WHERE from_belief_id = ANY($1) OR to_belief_id = ANY($1)`,
		ids,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectLinks(rows)
}

func collectLinks(rows pgx.Rows) ([]domain.BeliefLink, error) {
	var links []domain.BeliefLink
	for rows.Next() {
		var l domain.BeliefLink
		if err := rows.Scan(&l.ArgumentID, &l.FromBeliefID, &l.ToBeliefID, &l.LinkType,
			&l.Strength, &l.Breakdown, &l.Version, &l.CreatedAt, &l.UpdatedAt); err != nil {
			return nil, err
		}
		links = append(links, l)
	}
	return links, rows.Err()
}
