package taxonomy

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talentgraph/talentgraph-go/internal/logging"
	"github.com/talentgraph/talentgraph-go/internal/models"
)

type fakeStore struct {
	ecosystems map[string]*models.CryptoEcosystem
	repos      map[string]*models.GitHubRepository
	links      map[[2]uuid.UUID]bool
	sourceID   uuid.UUID
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		ecosystems: map[string]*models.CryptoEcosystem{},
		repos:      map[string]*models.GitHubRepository{},
		links:      map[[2]uuid.UUID]bool{},
		sourceID:   uuid.New(),
	}
}

func (f *fakeStore) UpsertEcosystem(_ context.Context, e *models.CryptoEcosystem) (uuid.UUID, error) {
	if existing, ok := f.ecosystems[e.EcosystemName]; ok {
		if e.PriorityScore < existing.PriorityScore {
			existing.PriorityScore = e.PriorityScore
		}
		for _, t := range e.Tags {
			found := false
			for _, et := range existing.Tags {
				if et == t {
					found = true
				}
			}
			if !found {
				existing.Tags = append(existing.Tags, t)
			}
		}
		return existing.ID, nil
	}
	e.ID = uuid.New()
	cp := *e
	f.ecosystems[e.EcosystemName] = &cp
	return e.ID, nil
}

// UpsertRepository mirrors the store's conflict rule: counters only move
// when the incoming row carries live API metadata (github_updated_at set).
func (f *fakeStore) UpsertRepository(_ context.Context, r *models.GitHubRepository) (uuid.UUID, error) {
	if existing, ok := f.repos[r.FullName]; ok {
		if r.GithubUpdatedAt != nil {
			existing.Stars = r.Stars
			existing.Forks = r.Forks
			existing.IsFork = r.IsFork
		}
		for _, id := range r.EcosystemIDs {
			if !existing.EcosystemIDs.Contains(id) {
				existing.EcosystemIDs = append(existing.EcosystemIDs, id)
			}
		}
		return existing.ID, nil
	}
	r.ID = uuid.New()
	cp := *r
	f.repos[r.FullName] = &cp
	return r.ID, nil
}

func (f *fakeStore) LinkEcosystemRepo(_ context.Context, ecoID, repoID uuid.UUID) error {
	f.links[[2]uuid.UUID{ecoID, repoID}] = true
	return nil
}

func (f *fakeStore) UpsertDiscoverySource(_ context.Context, _, _ string, _ int) (uuid.UUID, error) {
	return f.sourceID, nil
}

func writeJSONL(t *testing.T, lines ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "taxonomy.jsonl")
	content := ""
	for _, l := range lines {
		content += l + "\n"
	}
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func testImporter(t *testing.T) (*Importer, *fakeStore) {
	t.Helper()
	logger, err := logging.New(logging.Config{Subsystem: "test"})
	require.NoError(t, err)
	store := newFakeStore()
	return NewImporter(store, logger), store
}

func TestImportSeedsEcosystemWithBranchAndRepo(t *testing.T) {
	im, store := testImporter(t)
	path := writeJSONL(t,
		`{"eco_name":"Uniswap","repo_url":"https://github.com/Uniswap/v4-core","branch":["Ethereum"],"tags":["defi"]}`,
	)

	stats, err := im.Run(context.Background(), path, false)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Ecosystems)
	assert.Equal(t, 1, stats.SubEcosystems)
	assert.Equal(t, 1, stats.Repos)
	assert.Equal(t, 1, stats.Links)
	assert.Equal(t, 0, stats.Malformed)

	uni := store.ecosystems["Uniswap"]
	require.NotNil(t, uni)
	assert.Equal(t, 2, uni.PriorityScore)
	assert.Contains(t, []string(uni.Tags), "defi")

	eth := store.ecosystems["Ethereum"]
	require.NotNil(t, eth)
	require.NotNil(t, eth.ParentEcosystemID)
	assert.Equal(t, uni.ID, *eth.ParentEcosystemID)

	repo := store.repos["Uniswap/v4-core"]
	require.NotNil(t, repo)
	assert.Equal(t, "Uniswap", repo.OwnerUsername)
	assert.Equal(t, models.UUIDArray{uni.ID}, repo.EcosystemIDs)
	require.NotNil(t, repo.DiscoverySourceID)
	assert.Equal(t, store.sourceID, *repo.DiscoverySourceID)
	assert.True(t, store.links[[2]uuid.UUID{uni.ID, repo.ID}])
}

func TestImportCountsMalformedAndContinues(t *testing.T) {
	im, store := testImporter(t)
	path := writeJSONL(t,
		`{"eco_name":"Aave","repo_url":"git@github.com:aave/aave-v3-core.git"}`,
		`not json at all`,
		`{"eco_name":"Aave","repo_url":"https://gitlab.com/aave/something"}`,
		`{"eco_name":"Aave","repo_url":"https://github.com/aave/aave-v3-core"}`,
	)

	stats, err := im.Run(context.Background(), path, false)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Malformed)
	assert.Equal(t, 1, stats.Repos)
	assert.NotNil(t, store.repos["aave/aave-v3-core"])
}

func TestImportReplayIsIdempotent(t *testing.T) {
	im, store := testImporter(t)
	path := writeJSONL(t,
		`{"eco_name":"Uniswap","repo_url":"https://github.com/Uniswap/v4-core","tags":["defi"]}`,
	)

	_, err := im.Run(context.Background(), path, false)
	require.NoError(t, err)
	_, err = im.Run(context.Background(), path, false)
	require.NoError(t, err)

	assert.Len(t, store.ecosystems, 1)
	assert.Len(t, store.repos, 1)
	assert.Len(t, store.links, 1)
	assert.Equal(t, []string{"defi"}, []string(store.ecosystems["Uniswap"].Tags))
}

func TestImportReplayKeepsCrawledCounters(t *testing.T) {
	im, store := testImporter(t)
	path := writeJSONL(t,
		`{"eco_name":"Uniswap","repo_url":"https://github.com/Uniswap/v4-core"}`,
	)

	_, err := im.Run(context.Background(), path, false)
	require.NoError(t, err)

	// a crawl refreshed the repo with live API metadata in the meantime
	fetched := time.Now()
	crawled := store.repos["Uniswap/v4-core"]
	require.NotNil(t, crawled)
	_, err = store.UpsertRepository(context.Background(), &models.GitHubRepository{
		FullName:        crawled.FullName,
		OwnerUsername:   crawled.OwnerUsername,
		Stars:           2500,
		Forks:           300,
		GithubUpdatedAt: &fetched,
	})
	require.NoError(t, err)

	_, err = im.Run(context.Background(), path, false)
	require.NoError(t, err)
	assert.Equal(t, 2500, crawled.Stars)
	assert.Equal(t, 300, crawled.Forks)
}

func TestImportPriorityOnlyFiltersLowTiers(t *testing.T) {
	im, store := testImporter(t)
	path := writeJSONL(t,
		`{"eco_name":"Ethereum","repo_url":"https://github.com/ethereum/go-ethereum"}`,
		`{"eco_name":"Obscure Chain","repo_url":"https://github.com/obscure/chain"}`,
	)

	stats, err := im.Run(context.Background(), path, true)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Ecosystems)
	assert.Equal(t, 1, stats.SkippedByTier)
	assert.NotNil(t, store.ecosystems["Ethereum"])
	assert.Nil(t, store.ecosystems["Obscure Chain"])
}

func TestParseRepoURL(t *testing.T) {
	tests := []struct {
		in    string
		owner string
		name  string
		ok    bool
	}{
		{"https://github.com/Uniswap/v4-core", "Uniswap", "v4-core", true},
		{"https://github.com/uniswap/v4-core.git", "uniswap", "v4-core", true},
		{"https://github.com/onlyowner", "", "", false},
		{"https://github.com/a/b/c", "", "", false},
		{"http://github.com/a/b", "", "", false},
		{"https://gitlab.com/a/b", "", "", false},
		{"not a url", "", "", false},
	}
	for _, tt := range tests {
		owner, name, ok := ParseRepoURL(tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
		if tt.ok {
			assert.Equal(t, tt.owner, owner, tt.in)
			assert.Equal(t, tt.name, name, tt.in)
		}
	}
}

func TestNormalizeName(t *testing.T) {
	assert.Equal(t, "uniswap", NormalizeName("Uniswap"))
	assert.Equal(t, "matter", NormalizeName("Matter Labs"))
	assert.Equal(t, "lightning", NormalizeName("Lightning Network"))
	assert.Equal(t, "near", NormalizeName("NEAR Protocol"))
	// stop-suffix alone is kept, never emptied
	assert.Equal(t, "protocol", NormalizeName("Protocol"))
	// idempotent
	assert.Equal(t, NormalizeName("Matter Labs"), NormalizeName(NormalizeName("Matter Labs")))
}

func TestPriorityFor(t *testing.T) {
	assert.Equal(t, 1, PriorityFor("Ethereum"))
	assert.Equal(t, 2, PriorityFor("uniswap"))
	assert.Equal(t, 3, PriorityFor("Unknown Ecosystem"))
}
