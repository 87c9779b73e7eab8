package storage

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/talentgraph/talentgraph-go/internal/models"
)

// CollabRepo is one repository eligible for collaboration edge building.
type CollabRepo struct {
	ID       uuid.UUID `db:"id"`
	FullName string    `db:"full_name"`
}

// ListCollabRepos returns repositories with at least minLinked contributors
// linked to persons, the input set of the collaboration edge builder. When
// ecosystem is non-empty only repos tagged with that ecosystem are returned.
func (s *Store) ListCollabRepos(ctx context.Context, minLinked int, ecosystem string) ([]CollabRepo, error) {
	query := `
		SELECT r.id, r.full_name
		FROM github_repositories r
		JOIN github_contributions c ON c.repo_id = r.id
		JOIN github_profiles p ON p.id = c.github_profile_id AND p.person_id IS NOT NULL
	`
	args := []interface{}{minLinked}
	if ecosystem != "" {
		query += `
		JOIN ecosystem_repositories er ON er.repo_id = r.id
		JOIN crypto_ecosystems e ON e.id = er.ecosystem_id AND e.ecosystem_name = $2
		`
		args = append(args, ecosystem)
	}
	query += `
		GROUP BY r.id, r.full_name
		HAVING COUNT(DISTINCT p.person_id) >= $1
		ORDER BY r.full_name
	`
	var repos []CollabRepo
	if err := s.db.SelectContext(ctx, &repos, query, args...); err != nil {
		return nil, fmt.Errorf("list collab repos: %w", err)
	}
	return repos, nil
}

// UpsertCollaborationEdge folds one repo's worth of pair evidence into the
// edge. Each call carries exactly one repo in ReposList; when that repo is
// already on the edge the call is a no-op for the counters, so replaying a
// repo never double-counts. The strength is cleared so the finalize pass
// recomputes it.
func (s *Store) UpsertCollaborationEdge(ctx context.Context, e *models.CollaborationEdge) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	query := `
		INSERT INTO collaboration_edges (
			id, src_person_id, dst_person_id, shared_repos, shared_contributions,
			first_collaboration_date, last_collaboration_date, collaboration_months,
			repos_list, top_shared_repos, collaboration_strength, created_at, updated_at
		) VALUES (
			:id, :src_person_id, :dst_person_id, :shared_repos, :shared_contributions,
			:first_collaboration_date, :last_collaboration_date, :collaboration_months,
			:repos_list, :top_shared_repos, NULL, now(), now()
		)
		ON CONFLICT (src_person_id, dst_person_id) DO UPDATE SET
			shared_contributions = CASE
				WHEN collaboration_edges.repos_list @> EXCLUDED.repos_list
					THEN collaboration_edges.shared_contributions
				ELSE collaboration_edges.shared_contributions + EXCLUDED.shared_contributions
			END,
			top_shared_repos = CASE
				WHEN collaboration_edges.repos_list @> EXCLUDED.repos_list
					THEN collaboration_edges.top_shared_repos
				ELSE (
					COALESCE(collaboration_edges.top_shared_repos::jsonb, '[]'::jsonb)
					|| COALESCE(EXCLUDED.top_shared_repos::jsonb, '[]'::jsonb)
				)::text
			END,
			collaboration_months = GREATEST(collaboration_edges.collaboration_months, EXCLUDED.collaboration_months),
			repos_list = ARRAY(
				SELECT DISTINCT r FROM unnest(collaboration_edges.repos_list || EXCLUDED.repos_list) AS r
			),
			shared_repos = (
				SELECT COUNT(DISTINCT r) FROM unnest(collaboration_edges.repos_list || EXCLUDED.repos_list) AS r
			),
			first_collaboration_date = LEAST(
				COALESCE(collaboration_edges.first_collaboration_date, EXCLUDED.first_collaboration_date),
				COALESCE(EXCLUDED.first_collaboration_date, collaboration_edges.first_collaboration_date)
			),
			last_collaboration_date = GREATEST(
				COALESCE(collaboration_edges.last_collaboration_date, EXCLUDED.last_collaboration_date),
				COALESCE(EXCLUDED.last_collaboration_date, collaboration_edges.last_collaboration_date)
			),
			collaboration_strength = NULL,
			updated_at = now()
	`
	if _, err := s.db.NamedExecContext(ctx, query, e); err != nil {
		return fmt.Errorf("upsert collaboration edge %s-%s: %w", e.SrcPersonID, e.DstPersonID, err)
	}
	return nil
}

// FinalizeStrengths computes the collaboration strength for every edge the
// builder touched since the last finalize. Returns the number of edges
// scored.
func (s *Store) FinalizeStrengths(ctx context.Context) (int, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE collaboration_edges SET
			collaboration_strength = LEAST(
				  0.4 * LEAST(shared_repos / 10.0, 1.0)
				+ 0.3 * LEAST(shared_contributions / 100.0, 1.0)
				+ 0.3 * LEAST(collaboration_months / 24.0, 1.0),
				1.0
			),
			updated_at = now()
		WHERE collaboration_strength IS NULL
	`)
	if err != nil {
		return 0, fmt.Errorf("finalize collaboration strengths: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// ListEdges returns collaboration edges in stable order, strongest first.
// Used by the graph mirror and the status command.
func (s *Store) ListEdges(ctx context.Context, limit int) ([]models.CollaborationEdge, error) {
	query := `
		SELECT * FROM collaboration_edges
		ORDER BY collaboration_strength DESC NULLS LAST, shared_contributions DESC
	`
	args := []interface{}{}
	if limit > 0 {
		query += ` LIMIT $1`
		args = append(args, limit)
	}
	var edges []models.CollaborationEdge
	if err := s.db.SelectContext(ctx, &edges, query, args...); err != nil {
		return nil, fmt.Errorf("list collaboration edges: %w", err)
	}
	return edges, nil
}

// CountEdges returns the number of collaboration edges, for status.
func (s *Store) CountEdges(ctx context.Context) (int, error) {
	var n int
	if err := s.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM collaboration_edges`); err != nil {
		return 0, fmt.Errorf("count collaboration edges: %w", err)
	}
	return n, nil
}
