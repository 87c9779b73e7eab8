package storage

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/talentgraph/talentgraph-go/internal/models"
)

// UpsertEcosystem inserts or merges an ecosystem keyed on its name. The
// priority score only ever tightens (MIN) and tags are unioned, so replays
// of the taxonomy import converge.
func (s *Store) UpsertEcosystem(ctx context.Context, e *models.CryptoEcosystem) (uuid.UUID, error) {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	query := `
		INSERT INTO crypto_ecosystems (
			id, ecosystem_name, normalized_name, parent_ecosystem_id,
			priority_score, tags, taxonomy_source, created_at, updated_at
		) VALUES (
			:id, :ecosystem_name, :normalized_name, :parent_ecosystem_id,
			:priority_score, :tags, :taxonomy_source, now(), now()
		)
		ON CONFLICT (ecosystem_name) DO UPDATE SET
			priority_score = LEAST(crypto_ecosystems.priority_score, EXCLUDED.priority_score),
			parent_ecosystem_id = COALESCE(crypto_ecosystems.parent_ecosystem_id, EXCLUDED.parent_ecosystem_id),
			tags = ARRAY(
				SELECT DISTINCT t FROM unnest(crypto_ecosystems.tags || EXCLUDED.tags) AS t
			),
			taxonomy_source = COALESCE(crypto_ecosystems.taxonomy_source, EXCLUDED.taxonomy_source),
			updated_at = now()
		RETURNING id
	`
	rows, err := s.db.NamedQueryContext(ctx, query, e)
	if err != nil {
		return uuid.Nil, fmt.Errorf("upsert ecosystem %s: %w", e.EcosystemName, err)
	}
	defer rows.Close()
	if !rows.Next() {
		return uuid.Nil, fmt.Errorf("upsert ecosystem %s: no id returned", e.EcosystemName)
	}
	var id uuid.UUID
	if err := rows.Scan(&id); err != nil {
		return uuid.Nil, fmt.Errorf("upsert ecosystem %s: %w", e.EcosystemName, err)
	}
	e.ID = id
	return id, nil
}

// LinkEcosystemRepo records membership of a repo in an ecosystem. Replays
// are no-ops.
func (s *Store) LinkEcosystemRepo(ctx context.Context, ecosystemID, repoID uuid.UUID) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO ecosystem_repositories (ecosystem_id, repo_id)
		VALUES ($1, $2)
		ON CONFLICT DO NOTHING
	`, ecosystemID, repoID)
	if err != nil {
		return fmt.Errorf("link ecosystem %s repo %s: %w", ecosystemID, repoID, err)
	}
	return nil
}

// GetEcosystemByName looks an ecosystem up by exact name.
func (s *Store) GetEcosystemByName(ctx context.Context, name string) (*models.CryptoEcosystem, error) {
	var e models.CryptoEcosystem
	err := s.db.GetContext(ctx, &e,
		`SELECT * FROM crypto_ecosystems WHERE ecosystem_name = $1`, name)
	if err != nil {
		if notFound(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get ecosystem %s: %w", name, err)
	}
	return &e, nil
}

// LoadEcosystemCache returns ecosystem name -> id for the importer's
// parent-resolution pass.
func (s *Store) LoadEcosystemCache(ctx context.Context) (map[string]uuid.UUID, error) {
	rows, err := s.db.QueryxContext(ctx, `SELECT ecosystem_name, id FROM crypto_ecosystems`)
	if err != nil {
		return nil, fmt.Errorf("load ecosystem cache: %w", err)
	}
	defer rows.Close()
	cache := make(map[string]uuid.UUID)
	for rows.Next() {
		var name string
		var id uuid.UUID
		if err := rows.Scan(&name, &id); err != nil {
			return nil, fmt.Errorf("load ecosystem cache: %w", err)
		}
		cache[name] = id
	}
	return cache, rows.Err()
}

// CountEcosystems returns the number of ecosystems, optionally restricted to
// priority tiers at or above the given score. maxPriority <= 0 counts all.
func (s *Store) CountEcosystems(ctx context.Context, maxPriority int) (int, error) {
	var n int
	if err := s.db.GetContext(ctx, &n,
		`SELECT COUNT(*) FROM crypto_ecosystems WHERE $1 <= 0 OR priority_score <= $1`, maxPriority); err != nil {
		return 0, fmt.Errorf("count ecosystems: %w", err)
	}
	return n, nil
}
