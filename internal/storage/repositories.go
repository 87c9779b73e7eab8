package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/talentgraph/talentgraph-go/internal/models"
)

// UpsertRepository inserts or refreshes a repository keyed on the
// case-insensitive full name. On conflict mutable metadata is refreshed,
// ecosystem_ids becomes the union of both sides, and discovery_source_id is
// never overwritten once set. Counters are taken from the incoming row only
// when it carries github_updated_at, which marks a live API fetch; minimal
// taxonomy records leave previously crawled counters intact.
func (s *Store) UpsertRepository(ctx context.Context, repo *models.GitHubRepository) (uuid.UUID, error) {
	if repo.ID == uuid.Nil {
		repo.ID = uuid.New()
	}
	query := `
		INSERT INTO github_repositories (
			id, full_name, owner_username, description, language, stars, forks,
			is_fork, homepage_url, github_created_at, github_updated_at,
			github_pushed_at, ecosystem_ids, discovery_source_id,
			created_at, updated_at
		) VALUES (
			:id, :full_name, :owner_username, :description, :language, :stars, :forks,
			:is_fork, :homepage_url, :github_created_at, :github_updated_at,
			:github_pushed_at, :ecosystem_ids, :discovery_source_id,
			now(), now()
		)
		ON CONFLICT (LOWER(full_name)) DO UPDATE SET
			description = COALESCE(EXCLUDED.description, github_repositories.description),
			language = COALESCE(EXCLUDED.language, github_repositories.language),
			stars = CASE WHEN EXCLUDED.github_updated_at IS NULL
				THEN github_repositories.stars ELSE EXCLUDED.stars END,
			forks = CASE WHEN EXCLUDED.github_updated_at IS NULL
				THEN github_repositories.forks ELSE EXCLUDED.forks END,
			is_fork = CASE WHEN EXCLUDED.github_updated_at IS NULL
				THEN github_repositories.is_fork ELSE EXCLUDED.is_fork END,
			homepage_url = COALESCE(EXCLUDED.homepage_url, github_repositories.homepage_url),
			github_created_at = COALESCE(EXCLUDED.github_created_at, github_repositories.github_created_at),
			github_updated_at = COALESCE(EXCLUDED.github_updated_at, github_repositories.github_updated_at),
			github_pushed_at = COALESCE(EXCLUDED.github_pushed_at, github_repositories.github_pushed_at),
			ecosystem_ids = ARRAY(
				SELECT DISTINCT e FROM unnest(github_repositories.ecosystem_ids || EXCLUDED.ecosystem_ids) AS e
			),
			discovery_source_id = COALESCE(github_repositories.discovery_source_id, EXCLUDED.discovery_source_id),
			updated_at = now()
		RETURNING id
	`
	rows, err := s.db.NamedQueryContext(ctx, query, repo)
	if err != nil {
		return uuid.Nil, fmt.Errorf("upsert repository %s: %w", repo.FullName, err)
	}
	defer rows.Close()
	if !rows.Next() {
		return uuid.Nil, fmt.Errorf("upsert repository %s: no id returned", repo.FullName)
	}
	var id uuid.UUID
	if err := rows.Scan(&id); err != nil {
		return uuid.Nil, fmt.Errorf("upsert repository %s: %w", repo.FullName, err)
	}
	repo.ID = id
	return id, nil
}

// GetRepositoryByFullName looks a repository up by its case-insensitive
// natural key.
func (s *Store) GetRepositoryByFullName(ctx context.Context, fullName string) (*models.GitHubRepository, error) {
	var repo models.GitHubRepository
	err := s.db.GetContext(ctx, &repo,
		`SELECT * FROM github_repositories WHERE LOWER(full_name) = LOWER($1)`, fullName)
	if err != nil {
		if notFound(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get repository %s: %w", fullName, err)
	}
	return &repo, nil
}

// ListRepositoriesForTier returns repositories linked to any ecosystem at or
// above the given priority tier, most-starred first.
func (s *Store) ListRepositoriesForTier(ctx context.Context, tier, limit int) ([]models.GitHubRepository, error) {
	query := `
		SELECT DISTINCT r.* FROM github_repositories r
		JOIN ecosystem_repositories er ON er.repo_id = r.id
		JOIN crypto_ecosystems e ON e.id = er.ecosystem_id
		WHERE e.priority_score <= $1
		ORDER BY r.stars DESC
	`
	args := []interface{}{tier}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}
	var repos []models.GitHubRepository
	if err := s.db.SelectContext(ctx, &repos, query, args...); err != nil {
		return nil, fmt.Errorf("list repositories for tier %d: %w", tier, err)
	}
	return repos, nil
}

// ListRepositoriesByNames resolves explicit owner/name inputs, preserving
// only those present in the store.
func (s *Store) ListRepositoriesByNames(ctx context.Context, fullNames []string) ([]models.GitHubRepository, error) {
	if len(fullNames) == 0 {
		return nil, nil
	}
	lowered := make([]string, len(fullNames))
	for i, n := range fullNames {
		lowered[i] = strings.ToLower(n)
	}
	query, args, err := sqlx.In(
		`SELECT * FROM github_repositories WHERE LOWER(full_name) IN (?) ORDER BY stars DESC`, lowered)
	if err != nil {
		return nil, err
	}
	var repos []models.GitHubRepository
	if err := s.db.SelectContext(ctx, &repos, s.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("list repositories by names: %w", err)
	}
	return repos, nil
}

// MarkContributorSync records a completed contributor crawl. All contributor
// writes for the repo must be committed before this is called; the watermark
// only ever advances.
func (s *Store) MarkContributorSync(ctx context.Context, repoID uuid.UUID, contributorCount int) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE github_repositories
		SET contributor_count = $2,
		    last_contributor_sync = GREATEST(COALESCE(last_contributor_sync, 'epoch'::timestamptz), now()),
		    updated_at = now()
		WHERE id = $1
	`, repoID, contributorCount)
	if err != nil {
		return fmt.Errorf("mark contributor sync %s: %w", repoID, err)
	}
	return nil
}

// LoadRepositoryCache returns lowercased full_name -> id for every
// repository. Crawl loops use it to avoid per-record lookups.
func (s *Store) LoadRepositoryCache(ctx context.Context) (map[string]uuid.UUID, error) {
	rows, err := s.db.QueryxContext(ctx, `SELECT LOWER(full_name), id FROM github_repositories`)
	if err != nil {
		return nil, fmt.Errorf("load repository cache: %w", err)
	}
	defer rows.Close()
	cache := make(map[string]uuid.UUID)
	for rows.Next() {
		var name string
		var id uuid.UUID
		if err := rows.Scan(&name, &id); err != nil {
			return nil, fmt.Errorf("load repository cache: %w", err)
		}
		cache[name] = id
	}
	return cache, rows.Err()
}

// RepoEcosystemNames returns the ecosystem names linked to a repository,
// used to tag discovered contributor profiles.
func (s *Store) RepoEcosystemNames(ctx context.Context, repoID uuid.UUID) ([]string, error) {
	var names []string
	err := s.db.SelectContext(ctx, &names, `
		SELECT e.ecosystem_name FROM crypto_ecosystems e
		JOIN ecosystem_repositories er ON er.ecosystem_id = e.id
		WHERE er.repo_id = $1
	`, repoID)
	if err != nil {
		return nil, fmt.Errorf("repo ecosystem names %s: %w", repoID, err)
	}
	return names, nil
}

// TouchRepositoryTimestamp is used by tests and backfills to age watermarks
// deterministically.
func (s *Store) TouchRepositoryTimestamp(ctx context.Context, repoID uuid.UUID, syncedAt time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE github_repositories SET last_contributor_sync = $2 WHERE id = $1`, repoID, syncedAt)
	return err
}
