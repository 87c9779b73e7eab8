package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/talentgraph/talentgraph-go/internal/models"
)

// UpsertContribution inserts or merges a (profile, repo) contribution edge.
// Count-like fields take the greater of both sides; activity timestamps
// widen (earlier first date, later last date).
func (s *Store) UpsertContribution(ctx context.Context, c *models.GitHubContribution) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	query := `
		INSERT INTO github_contributions (
			id, github_profile_id, repo_id, contribution_count, merged_pr_count,
			lines_added, lines_deleted, files_changed,
			first_contribution_date, last_contribution_date,
			contribution_quality_score, created_at, updated_at
		) VALUES (
			:id, :github_profile_id, :repo_id, :contribution_count, :merged_pr_count,
			:lines_added, :lines_deleted, :files_changed,
			:first_contribution_date, :last_contribution_date,
			:contribution_quality_score, now(), now()
		)
		ON CONFLICT (github_profile_id, repo_id) DO UPDATE SET
			contribution_count = GREATEST(github_contributions.contribution_count, EXCLUDED.contribution_count),
			merged_pr_count = GREATEST(github_contributions.merged_pr_count, EXCLUDED.merged_pr_count),
			lines_added = GREATEST(github_contributions.lines_added, EXCLUDED.lines_added),
			lines_deleted = GREATEST(github_contributions.lines_deleted, EXCLUDED.lines_deleted),
			files_changed = GREATEST(github_contributions.files_changed, EXCLUDED.files_changed),
			first_contribution_date = LEAST(
				COALESCE(github_contributions.first_contribution_date, EXCLUDED.first_contribution_date),
				COALESCE(EXCLUDED.first_contribution_date, github_contributions.first_contribution_date)
			),
			last_contribution_date = GREATEST(
				COALESCE(github_contributions.last_contribution_date, EXCLUDED.last_contribution_date),
				COALESCE(EXCLUDED.last_contribution_date, github_contributions.last_contribution_date)
			),
			contribution_quality_score = COALESCE(EXCLUDED.contribution_quality_score, github_contributions.contribution_quality_score),
			updated_at = now()
	`
	if _, err := s.db.NamedExecContext(ctx, query, c); err != nil {
		return fmt.Errorf("upsert contribution profile=%s repo=%s: %w", c.GithubProfileID, c.RepoID, err)
	}
	return nil
}

// PersonContribution is one linked contributor of a repo, used by the
// collaboration edge builder.
type PersonContribution struct {
	PersonID          uuid.UUID  `db:"person_id"`
	ContributionCount int        `db:"contribution_count"`
	FirstDate         *time.Time `db:"first_contribution_date"`
	LastDate          *time.Time `db:"last_contribution_date"`
}

// ListLinkedContributions returns the contributions to a repo whose profile
// is linked to a person. Multiple profiles of the same person collapse into
// one row with summed counts.
func (s *Store) ListLinkedContributions(ctx context.Context, repoID uuid.UUID) ([]PersonContribution, error) {
	var out []PersonContribution
	err := s.db.SelectContext(ctx, &out, `
		SELECT p.person_id,
		       SUM(c.contribution_count)::int AS contribution_count,
		       MIN(c.first_contribution_date) AS first_contribution_date,
		       MAX(c.last_contribution_date) AS last_contribution_date
		FROM github_contributions c
		JOIN github_profiles p ON p.id = c.github_profile_id
		WHERE c.repo_id = $1 AND p.person_id IS NOT NULL
		GROUP BY p.person_id
	`, repoID)
	if err != nil {
		return nil, fmt.Errorf("list linked contributions %s: %w", repoID, err)
	}
	return out, nil
}

// PersonHasContributions reports whether any profile of the person has at
// least one contribution row. Drives the reconciliation deletion policy.
func (s *Store) PersonHasContributions(ctx context.Context, personID uuid.UUID) (bool, error) {
	var exists bool
	err := s.db.GetContext(ctx, &exists, `
		SELECT EXISTS (
			SELECT 1 FROM github_contributions c
			JOIN github_profiles p ON p.id = c.github_profile_id
			WHERE p.person_id = $1
		)
	`, personID)
	if err != nil {
		return false, fmt.Errorf("person has contributions %s: %w", personID, err)
	}
	return exists, nil
}
