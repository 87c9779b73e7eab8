package skills

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talentgraph/talentgraph-go/internal/logging"
	"github.com/talentgraph/talentgraph-go/internal/models"
	"github.com/talentgraph/talentgraph-go/internal/storage"
)

type fakeContribution struct {
	personID uuid.UUID
	repoID   uuid.UUID
	count    int
}

type fakeSkillStore struct {
	skills       map[string]uuid.UUID // lowercased name/alias -> id
	untagged     []storage.RepoLanguage
	repoSkills   []models.RepositorySkill
	contribs     []fakeContribution
	evidence     []storage.PersonSkillEvidence
	personSkills map[string]*models.PersonSkill
}

func newFakeSkillStore() *fakeSkillStore {
	return &fakeSkillStore{
		skills:       map[string]uuid.UUID{},
		personSkills: map[string]*models.PersonSkill{},
	}
}

func (f *fakeSkillStore) UpsertSkill(_ context.Context, s *models.Skill) (uuid.UUID, error) {
	key := strings.ToLower(s.SkillName)
	if id, ok := f.skills[key]; ok {
		return id, nil
	}
	id := uuid.New()
	f.skills[key] = id
	for _, a := range s.Aliases {
		f.skills[strings.ToLower(a)] = id
	}
	return id, nil
}

func (f *fakeSkillStore) LoadSkillCache(_ context.Context) (map[string]uuid.UUID, error) {
	cache := make(map[string]uuid.UUID, len(f.skills))
	for k, v := range f.skills {
		cache[k] = v
	}
	return cache, nil
}

func (f *fakeSkillStore) ListReposWithoutSkills(_ context.Context) ([]storage.RepoLanguage, error) {
	return f.untagged, nil
}

func (f *fakeSkillStore) InsertRepositorySkill(_ context.Context, rs *models.RepositorySkill) error {
	f.repoSkills = append(f.repoSkills, *rs)
	return nil
}

// AggregatePersonSkillEvidence mirrors the store's join: contributions fold
// through primary repository skills only.
func (f *fakeSkillStore) AggregatePersonSkillEvidence(_ context.Context) ([]storage.PersonSkillEvidence, error) {
	if f.evidence != nil {
		return f.evidence, nil
	}
	grouped := map[[2]uuid.UUID]*storage.PersonSkillEvidence{}
	for _, c := range f.contribs {
		for _, rs := range f.repoSkills {
			if rs.RepoID != c.repoID || !rs.IsPrimary {
				continue
			}
			key := [2]uuid.UUID{c.personID, rs.SkillID}
			ev, ok := grouped[key]
			if !ok {
				ev = &storage.PersonSkillEvidence{PersonID: c.personID, SkillID: rs.SkillID}
				grouped[key] = ev
			}
			ev.RepoCount++
			ev.Contributions += c.count
		}
	}
	var out []storage.PersonSkillEvidence
	for _, ev := range grouped {
		out = append(out, *ev)
	}
	return out, nil
}

func (f *fakeSkillStore) UpsertPersonSkill(_ context.Context, ps *models.PersonSkill) error {
	cp := *ps
	f.personSkills[ps.PersonID.String()+"/"+ps.SkillID.String()] = &cp
	return nil
}

func testMapper(t *testing.T) (*Mapper, *fakeSkillStore) {
	t.Helper()
	logger, err := logging.New(logging.Config{Subsystem: "test"})
	require.NoError(t, err)
	store := newFakeSkillStore()
	return NewMapper(store, logger), store
}

func TestRunTagsKnownLanguagesAndCountsUnknown(t *testing.T) {
	m, store := testMapper(t)
	goRepo := uuid.New()
	store.untagged = []storage.RepoLanguage{
		{RepoID: goRepo, Language: "Go"},
		{RepoID: uuid.New(), Language: "solidity"}, // case-insensitive
		{RepoID: uuid.New(), Language: "Brainfuck"},
	}

	stats, err := m.Run(context.Background(), true, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.ReposTagged)
	assert.Equal(t, 1, stats.UnknownLanguages)
	require.Len(t, store.repoSkills, 2)
	first := store.repoSkills[0]
	assert.Equal(t, goRepo, first.RepoID)
	assert.True(t, first.IsPrimary)
	assert.Equal(t, 0.95, first.ConfidenceScore)
	assert.Equal(t, "github_language", first.Source)
}

func TestRunHonorsRepoLimit(t *testing.T) {
	m, store := testMapper(t)
	store.untagged = []storage.RepoLanguage{
		{RepoID: uuid.New(), Language: "Go"},
		{RepoID: uuid.New(), Language: "Rust"},
		{RepoID: uuid.New(), Language: "Python"},
	}

	stats, err := m.Run(context.Background(), true, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.ReposTagged)
	assert.Len(t, store.repoSkills, 2)
}

func TestRunDerivesPersonSkills(t *testing.T) {
	m, store := testMapper(t)
	person := uuid.New()
	skill := uuid.New()
	first := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	last := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	store.evidence = []storage.PersonSkillEvidence{
		{PersonID: person, SkillID: skill, RepoCount: 2, Contributions: 500, MergedPRs: 3, FirstSeen: &first, LastUsed: &last},
	}

	stats, err := m.Run(context.Background(), false, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.PersonSkills)

	ps := store.personSkills[person.String()+"/"+skill.String()]
	require.NotNil(t, ps)
	// 30 base + 20 breadth + 5 volume + 6 PRs
	assert.InDelta(t, 61.0, ps.ProficiencyScore, 0.001)
	assert.Equal(t, []string{"repos"}, []string(ps.EvidenceSources))
	assert.Equal(t, 2, ps.ReposUsingSkill)
	assert.Equal(t, 3, ps.MergedPRsCount)
	assert.Equal(t, &first, ps.FirstSeen)
}

func TestDeriveIgnoresNonPrimaryRepoSkills(t *testing.T) {
	m, store := testMapper(t)
	person := uuid.New()
	repo := uuid.New()
	goSkill := uuid.New()
	tsSkill := uuid.New()
	store.repoSkills = []models.RepositorySkill{
		{RepoID: repo, SkillID: goSkill, IsPrimary: true},
		{RepoID: repo, SkillID: tsSkill, IsPrimary: false},
	}
	store.contribs = []fakeContribution{{personID: person, repoID: repo, count: 120}}

	stats, err := m.Run(context.Background(), false, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.PersonSkills)
	assert.NotNil(t, store.personSkills[person.String()+"/"+goSkill.String()])
	assert.Nil(t, store.personSkills[person.String()+"/"+tsSkill.String()])
}

func TestProficiencyCaps(t *testing.T) {
	// each term saturates independently, total capped at 100
	assert.Equal(t, 100.0, Proficiency(10, 100000, 50))
	assert.Equal(t, 30.0, Proficiency(0, 0, 0))
	// repos saturate at 3
	assert.Equal(t, Proficiency(3, 0, 0), Proficiency(5, 0, 0))
	// contributions term: 1000 × 0.01 = 10
	assert.InDelta(t, 40.0, Proficiency(0, 1000, 0), 0.001)
	for _, p := range []float64{Proficiency(1, 1, 1), Proficiency(7, 9999, 13)} {
		assert.GreaterOrEqual(t, p, 0.0)
		assert.LessOrEqual(t, p, 100.0)
	}
}

func TestDerivedConfidenceBounds(t *testing.T) {
	assert.InDelta(t, 0.55, derivedConfidence(1), 0.001)
	assert.Equal(t, 0.9, derivedConfidence(50))
}
