package storage

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/talentgraph/talentgraph-go/internal/models"
)

// UpsertDiscoverySource finds or creates a discovery source keyed on
// (name, type) and returns its id.
func (s *Store) UpsertDiscoverySource(ctx context.Context, name, sourceType string, tier int) (uuid.UUID, error) {
	query := `
		INSERT INTO discovery_sources (id, source_name, source_type, priority_tier, created_at)
		VALUES ($1, $2, $3, $4, now())
		ON CONFLICT (source_name, source_type) DO UPDATE SET
			priority_tier = LEAST(discovery_sources.priority_tier, EXCLUDED.priority_tier)
		RETURNING id
	`
	var id uuid.UUID
	err := s.db.QueryRowxContext(ctx, query, uuid.New(), name, sourceType, tier).Scan(&id)
	if err != nil {
		return uuid.Nil, fmt.Errorf("upsert discovery source %s/%s: %w", sourceType, name, err)
	}
	return id, nil
}

// InsertEntityDiscovery appends a provenance event. The log is append-only;
// repeated discoveries of the same entity produce one row each.
func (s *Store) InsertEntityDiscovery(ctx context.Context, d *models.EntityDiscovery) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO entity_discoveries (
			id, entity_type, entity_id, source_id, discovered_via_id,
			discovery_method, metadata_json, discovered_at
		) VALUES (
			:id, :entity_type, :entity_id, :source_id, :discovered_via_id,
			:discovery_method, :metadata_json, now()
		)
	`, d)
	if err != nil {
		return fmt.Errorf("insert entity discovery %s/%s: %w", d.EntityType, d.EntityID, err)
	}
	return nil
}

// CountDiscoveries returns the number of provenance events per entity type,
// for the status command.
func (s *Store) CountDiscoveries(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.QueryxContext(ctx,
		`SELECT entity_type, COUNT(*) FROM entity_discoveries GROUP BY entity_type`)
	if err != nil {
		return nil, fmt.Errorf("count discoveries: %w", err)
	}
	defer rows.Close()
	counts := make(map[string]int)
	for rows.Next() {
		var typ string
		var n int
		if err := rows.Scan(&typ, &n); err != nil {
			return nil, fmt.Errorf("count discoveries: %w", err)
		}
		counts[typ] = n
	}
	return counts, rows.Err()
}
