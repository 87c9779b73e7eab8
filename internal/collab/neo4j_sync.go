package collab

import (
	"context"
	"fmt"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/talentgraph/talentgraph-go/internal/config"
	"github.com/talentgraph/talentgraph-go/internal/logging"
	"github.com/talentgraph/talentgraph-go/internal/models"
)

// GraphMirror mirrors the collaboration graph into Neo4j so edge-weighted
// traversals (mutual collaborators, shortest intro path) run natively. The
// persistent store stays the source of truth; the mirror is rebuilt from it.
type GraphMirror struct {
	driver   neo4j.DriverWithContext
	logger   *logging.Logger
	database string
}

// NewGraphMirror connects and verifies connectivity, failing fast on bad
// credentials.
func NewGraphMirror(ctx context.Context, cfg config.Neo4jConfig, logger *logging.Logger) (*GraphMirror, error) {
	driver, err := neo4j.NewDriverWithContext(cfg.URI,
		neo4j.BasicAuth(cfg.User, cfg.Password, ""),
		func(c *neo4j.Config) {
			c.MaxConnectionPoolSize = 25
			c.ConnectionAcquisitionTimeout = 60 * time.Second
			c.SocketConnectTimeout = 5 * time.Second
		})
	if err != nil {
		return nil, fmt.Errorf("create neo4j driver: %w", err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		driver.Close(ctx)
		return nil, fmt.Errorf("connect to neo4j at %s: %w", cfg.URI, err)
	}
	return &GraphMirror{driver: driver, logger: logger, database: "neo4j"}, nil
}

// Close closes the driver.
func (m *GraphMirror) Close(ctx context.Context) error {
	return m.driver.Close(ctx)
}

const mergeEdgeCypher = `
MERGE (a:Person {id: $src})
MERGE (b:Person {id: $dst})
MERGE (a)-[r:COLLABORATED_WITH]-(b)
SET r.shared_repos = $shared_repos,
    r.shared_contributions = $shared_contributions,
    r.collaboration_months = $months,
    r.strength = $strength,
    r.updated_at = datetime()
`

// SyncEdges merges collaboration edges into the mirror. Edges without a
// finalized strength are skipped; run the builder first.
func (m *GraphMirror) SyncEdges(ctx context.Context, edges []models.CollaborationEdge) (int, error) {
	session := m.driver.NewSession(ctx, neo4j.SessionConfig{
		DatabaseName: m.database,
		AccessMode:   neo4j.AccessModeWrite,
	})
	defer session.Close(ctx)

	synced := 0
	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		for _, e := range edges {
			if e.CollaborationStrength == nil {
				continue
			}
			params := map[string]any{
				"src":                  e.SrcPersonID.String(),
				"dst":                  e.DstPersonID.String(),
				"shared_repos":         e.SharedRepos,
				"shared_contributions": e.SharedContributions,
				"months":               e.CollaborationMonths,
				"strength":             *e.CollaborationStrength,
			}
			if _, err := tx.Run(ctx, mergeEdgeCypher, params); err != nil {
				return nil, err
			}
			synced++
		}
		return nil, nil
	})
	if err != nil {
		return synced, fmt.Errorf("sync collaboration edges: %w", err)
	}
	m.logger.Info("graph mirror synced", "edges", synced, "skipped_unscored", len(edges)-synced)
	return synced, nil
}
