package collab

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talentgraph/talentgraph-go/internal/checkpoint"
	"github.com/talentgraph/talentgraph-go/internal/logging"
	"github.com/talentgraph/talentgraph-go/internal/models"
	"github.com/talentgraph/talentgraph-go/internal/storage"
)

type fakeCollabStore struct {
	repos    []storage.CollabRepo
	contribs map[uuid.UUID][]storage.PersonContribution
	edges    map[[2]uuid.UUID]*models.CollaborationEdge
	listed   []uuid.UUID
}

func newFakeCollabStore() *fakeCollabStore {
	return &fakeCollabStore{
		contribs: map[uuid.UUID][]storage.PersonContribution{},
		edges:    map[[2]uuid.UUID]*models.CollaborationEdge{},
	}
}

func (f *fakeCollabStore) ListCollabRepos(_ context.Context, _ int, _ string) ([]storage.CollabRepo, error) {
	return f.repos, nil
}

func (f *fakeCollabStore) ListLinkedContributions(_ context.Context, repoID uuid.UUID) ([]storage.PersonContribution, error) {
	f.listed = append(f.listed, repoID)
	return f.contribs[repoID], nil
}

// UpsertCollaborationEdge mirrors the store's conflict arithmetic: a repo
// already on the edge contributes nothing new.
func (f *fakeCollabStore) UpsertCollaborationEdge(_ context.Context, e *models.CollaborationEdge) error {
	key := [2]uuid.UUID{e.SrcPersonID, e.DstPersonID}
	existing, ok := f.edges[key]
	if !ok {
		cp := *e
		f.edges[key] = &cp
		return nil
	}
	newRepo := e.ReposList[0]
	if existing.ReposList.Contains(newRepo) {
		return nil
	}
	existing.ReposList = append(existing.ReposList, newRepo)
	existing.SharedRepos = len(existing.ReposList)
	existing.SharedContributions += e.SharedContributions
	if e.CollaborationMonths > existing.CollaborationMonths {
		existing.CollaborationMonths = e.CollaborationMonths
	}
	existing.CollaborationStrength = nil
	return nil
}

func (f *fakeCollabStore) FinalizeStrengths(_ context.Context) (int, error) {
	n := 0
	for _, e := range f.edges {
		if e.CollaborationStrength != nil {
			continue
		}
		repos := float64(e.SharedRepos) / 10
		if repos > 1 {
			repos = 1
		}
		contribs := float64(e.SharedContributions) / 100
		if contribs > 1 {
			contribs = 1
		}
		months := float64(e.CollaborationMonths) / 24
		if months > 1 {
			months = 1
		}
		s := 0.4*repos + 0.3*contribs + 0.3*months
		if s > 1 {
			s = 1
		}
		e.CollaborationStrength = &s
		n++
	}
	return n, nil
}

func testBuilder(t *testing.T, store Store) *Builder {
	t.Helper()
	logger, err := logging.New(logging.Config{Subsystem: "test"})
	require.NoError(t, err)
	cps, err := checkpoint.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { cps.Close() })
	return NewBuilder(store, cps, logger)
}

func date(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &t
}

func TestBuildSingleSharedRepo(t *testing.T) {
	store := newFakeCollabStore()
	repo := storage.CollabRepo{ID: uuid.New(), FullName: "uniswap/v4-core"}
	store.repos = []storage.CollabRepo{repo}
	p1, p2 := uuid.New(), uuid.New()
	store.contribs[repo.ID] = []storage.PersonContribution{
		{PersonID: p1, ContributionCount: 40, FirstDate: date(2024, 1, 1), LastDate: date(2024, 6, 1)},
		{PersonID: p2, ContributionCount: 10, FirstDate: date(2024, 3, 1), LastDate: date(2024, 9, 1)},
	}
	b := testBuilder(t, store)

	stats, err := b.Run(context.Background(), "", 2, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.ReposProcessed)
	assert.Equal(t, 1, stats.Pairs)
	assert.Equal(t, 1, stats.EdgesScored)

	require.Len(t, store.edges, 1)
	var edge *models.CollaborationEdge
	for _, e := range store.edges {
		edge = e
	}
	assert.Less(t, edge.SrcPersonID.String(), edge.DstPersonID.String())
	assert.Equal(t, models.UUIDArray{repo.ID}, edge.ReposList)
	assert.True(t, edge.ReposList.Contains(repo.ID))
	assert.Equal(t, 1, edge.SharedRepos)
	assert.Equal(t, 50, edge.SharedContributions)
	assert.Equal(t, *date(2024, 3, 1), *edge.FirstCollaborationDate)
	assert.Equal(t, *date(2024, 6, 1), *edge.LastCollaborationDate)
	assert.Equal(t, 3, edge.CollaborationMonths)
	require.NotNil(t, edge.CollaborationStrength)
	assert.InDelta(t, 0.2275, *edge.CollaborationStrength, 0.0001)
}

func TestBuildReplayDoesNotDoubleCount(t *testing.T) {
	store := newFakeCollabStore()
	repo := storage.CollabRepo{ID: uuid.New(), FullName: "aave/aave-v3-core"}
	store.repos = []storage.CollabRepo{repo}
	p1, p2 := uuid.New(), uuid.New()
	store.contribs[repo.ID] = []storage.PersonContribution{
		{PersonID: p1, ContributionCount: 5},
		{PersonID: p2, ContributionCount: 7},
	}
	b := testBuilder(t, store)

	_, err := b.Run(context.Background(), "", 2, 0)
	require.NoError(t, err)
	_, err = b.Run(context.Background(), "", 2, 0)
	require.NoError(t, err)

	require.Len(t, store.edges, 1)
	for _, e := range store.edges {
		assert.Equal(t, 1, e.SharedRepos)
		assert.Equal(t, 12, e.SharedContributions)
	}
}

func TestBuildResumesFromCheckpoint(t *testing.T) {
	store := newFakeCollabStore()
	done := storage.CollabRepo{ID: uuid.New(), FullName: "a/a"}
	pending := storage.CollabRepo{ID: uuid.New(), FullName: "b/b"}
	store.repos = []storage.CollabRepo{done, pending}
	p1, p2 := uuid.New(), uuid.New()
	store.contribs[done.ID] = []storage.PersonContribution{{PersonID: p1, ContributionCount: 1}, {PersonID: p2, ContributionCount: 1}}
	store.contribs[pending.ID] = []storage.PersonContribution{{PersonID: p1, ContributionCount: 1}, {PersonID: p2, ContributionCount: 1}}
	b := testBuilder(t, store)

	cp := checkpoint.NewCheckpoint(checkpointSubsystem)
	cp.MarkDone(done.ID.String())
	require.NoError(t, b.checkpoints.Save(cp))

	stats, err := b.Run(context.Background(), "", 2, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.ReposProcessed)
	assert.Equal(t, []uuid.UUID{pending.ID}, store.listed)
}

func TestOverlap(t *testing.T) {
	// disjoint windows
	_, _, months := overlap(date(2024, 1, 1), date(2024, 2, 1), date(2024, 5, 1), date(2024, 6, 1))
	assert.Equal(t, 0, months)

	// unknown bounds
	_, _, months = overlap(nil, date(2024, 2, 1), date(2024, 1, 1), date(2024, 6, 1))
	assert.Equal(t, 0, months)

	// same-day overlap still counts one month
	s, e, months := overlap(date(2024, 1, 1), date(2024, 1, 1), date(2024, 1, 1), date(2024, 1, 1))
	assert.Equal(t, 1, months)
	assert.Equal(t, *date(2024, 1, 1), *s)
	assert.Equal(t, *date(2024, 1, 1), *e)
}
