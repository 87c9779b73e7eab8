package match

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talentgraph/talentgraph-go/internal/config"
	"github.com/talentgraph/talentgraph-go/internal/logging"
	"github.com/talentgraph/talentgraph-go/internal/models"
	"github.com/talentgraph/talentgraph-go/internal/storage"
)

type fakePerson struct {
	person   models.Person
	emails   []string
	company  string // current employer, "" for none
	location string
}

type fakeMatchStore struct {
	persons   []fakePerson
	unmatched []models.GitHubProfile
	links     map[uuid.UUID]uuid.UUID
}

func newFakeMatchStore() *fakeMatchStore {
	return &fakeMatchStore{links: map[uuid.UUID]uuid.UUID{}}
}

func (f *fakeMatchStore) addPerson(name, linkedin, company, location string, emails ...string) uuid.UUID {
	p := fakePerson{
		person:   models.Person{ID: uuid.New(), FullName: name},
		emails:   emails,
		company:  company,
		location: location,
	}
	if linkedin != "" {
		p.person.NormalizedLinkedinURL = &linkedin
	}
	if location != "" {
		p.person.Location = &location
	}
	f.persons = append(f.persons, p)
	return p.person.ID
}

func (f *fakeMatchStore) FindPersonsByEmail(_ context.Context, email string) ([]models.Person, error) {
	var out []models.Person
	for _, p := range f.persons {
		for _, e := range p.emails {
			if strings.EqualFold(e, email) {
				out = append(out, p.person)
			}
		}
	}
	return out, nil
}

func (f *fakeMatchStore) FindPersonByLinkedinSlug(_ context.Context, normalizedURL string) (*models.Person, error) {
	for _, p := range f.persons {
		if p.person.NormalizedLinkedinURL != nil && *p.person.NormalizedLinkedinURL == normalizedURL {
			person := p.person
			return &person, nil
		}
	}
	return nil, storage.ErrNotFound
}

func (f *fakeMatchStore) FindPersonsByName(_ context.Context, fullName string) ([]storage.PersonCandidate, error) {
	var out []storage.PersonCandidate
	for _, p := range f.persons {
		if strings.EqualFold(p.person.FullName, fullName) {
			c := storage.PersonCandidate{Person: p.person}
			if p.company != "" {
				company := p.company
				c.CompanyName = &company
			}
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeMatchStore) FindPersonsByNameAndLocation(_ context.Context, fullName, location string) ([]models.Person, error) {
	var out []models.Person
	for _, p := range f.persons {
		if strings.EqualFold(p.person.FullName, fullName) &&
			strings.Contains(strings.ToLower(p.location), strings.ToLower(location)) {
			out = append(out, p.person)
		}
	}
	return out, nil
}

func (f *fakeMatchStore) FindPersonsByCompany(_ context.Context, normalizedCompany string, limit int) ([]storage.PersonCandidate, error) {
	var out []storage.PersonCandidate
	for _, p := range f.persons {
		if p.company == "" {
			continue
		}
		norm := NormalizeCompany(p.company)
		if norm == "" {
			continue
		}
		if strings.Contains(normalizedCompany, norm) || strings.Contains(norm, normalizedCompany) {
			company := p.company
			out = append(out, storage.PersonCandidate{Person: p.person, CompanyName: &company})
		}
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (f *fakeMatchStore) ListUnmatchedProfiles(_ context.Context, limit int) ([]models.GitHubProfile, error) {
	if limit > 0 && limit < len(f.unmatched) {
		return f.unmatched[:limit], nil
	}
	return f.unmatched, nil
}

func (f *fakeMatchStore) LinkProfileToPerson(_ context.Context, profileID, personID uuid.UUID) error {
	if existing, ok := f.links[profileID]; ok && existing != personID {
		return assert.AnError
	}
	f.links[profileID] = personID
	return nil
}

func testResolver(t *testing.T, store Store, mode string) *Resolver {
	t.Helper()
	logger, err := logging.New(logging.Config{Subsystem: "test"})
	require.NoError(t, err)
	cfg := config.MatchConfig{AutoMatchThreshold: 0.70, Mode: mode}
	return NewResolver(store, cfg, logger)
}

func profileFixture(name, email, company, location, bioLinkedin string) models.GitHubProfile {
	p := models.GitHubProfile{ID: uuid.New(), GithubUsername: strings.ToLower(strings.ReplaceAll(name, " ", ""))}
	set := func(dst **string, v string) {
		if v != "" {
			s := v
			*dst = &s
		}
	}
	set(&p.Name, name)
	set(&p.Email, email)
	set(&p.Company, company)
	set(&p.Location, location)
	set(&p.BioLinkedinURL, bioLinkedin)
	return p
}

func TestMatchByEmail(t *testing.T) {
	store := newFakeMatchStore()
	personID := store.addPerson("Alice Doe", "", "", "", "alice@example.com")
	profile := profileFixture("Someone Else", "Alice@Example.com", "", "", "")

	r := testResolver(t, store, "normal")
	result, err := r.Match(context.Background(), &profile)
	require.NoError(t, err)
	require.NotNil(t, result.PersonID)
	assert.Equal(t, personID, *result.PersonID)
	assert.Equal(t, StrategyEmail, result.Strategy)
	assert.Equal(t, 0.95, result.Confidence)
}

func TestMatchByEmailAmbiguousIsSkipped(t *testing.T) {
	store := newFakeMatchStore()
	store.addPerson("Alice Doe", "", "", "", "shared@example.com")
	store.addPerson("Bob Roe", "", "", "", "shared@example.com")
	profile := profileFixture("X", "shared@example.com", "", "", "")

	r := testResolver(t, store, "normal")
	result, err := r.Match(context.Background(), &profile)
	require.NoError(t, err)
	assert.Nil(t, result.PersonID)
	assert.Equal(t, StrategyNoMatch, result.Strategy)
}

func TestMatchByLinkedinInBio(t *testing.T) {
	store := newFakeMatchStore()
	personID := store.addPerson("Jane Doe", "linkedin.com/in/jane-doe", "", "")
	profile := profileFixture("", "", "", "", "https://www.LinkedIn.com/in/Jane-Doe/")

	r := testResolver(t, store, "normal")
	result, err := r.Match(context.Background(), &profile)
	require.NoError(t, err)
	require.NotNil(t, result.PersonID)
	assert.Equal(t, personID, *result.PersonID)
	assert.Equal(t, StrategyLinkedin, result.Strategy)
	assert.Equal(t, 0.99, result.Confidence)
}

func TestMatchNameCompanyExact(t *testing.T) {
	store := newFakeMatchStore()
	personID := store.addPerson("John Smith", "", "Acme, Inc.", "")
	profile := profileFixture("John Smith", "", "@Acme", "", "")

	r := testResolver(t, store, "normal")
	result, err := r.Match(context.Background(), &profile)
	require.NoError(t, err)
	require.NotNil(t, result.PersonID)
	assert.Equal(t, personID, *result.PersonID)
	assert.Equal(t, StrategyNameCompanyExact, result.Strategy)
	assert.Equal(t, 0.75, result.Confidence)
}

func TestMatchNameLocation(t *testing.T) {
	store := newFakeMatchStore()
	personID := store.addPerson("Maria Silva", "", "", "Lisbon, Portugal")
	profile := profileFixture("Maria Silva", "", "", "Lisbon", "")

	r := testResolver(t, store, "normal")
	result, err := r.Match(context.Background(), &profile)
	require.NoError(t, err)
	require.NotNil(t, result.PersonID)
	assert.Equal(t, personID, *result.PersonID)
	assert.Equal(t, StrategyNameLocation, result.Strategy)
	assert.Equal(t, 0.70, result.Confidence)
}

// A near-miss name at a near-miss company clears the fuzzy gate but lands
// between the aggressive and normal thresholds: linked only in aggressive
// mode.
func TestFuzzyNameCompanyThresholds(t *testing.T) {
	store := newFakeMatchStore()
	personID := store.addPerson("John Smith", "", "Acme, Inc.", "")
	profile := profileFixture("Jon Smith", "", "@Acme Corp.", "", "")
	store.unmatched = []models.GitHubProfile{profile}

	normal := testResolver(t, store, "normal")
	result, err := normal.Match(context.Background(), &profile)
	require.NoError(t, err)
	require.NotNil(t, result.PersonID)
	assert.Equal(t, StrategyFuzzyNameCompany, result.Strategy)
	assert.InDelta(t, 0.62, result.Confidence, 0.03)
	assert.Less(t, result.Confidence, 0.70)

	stats, err := normal.ResolveAll(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Matched)
	assert.Equal(t, 1, stats.BelowBar)
	assert.Empty(t, store.links)

	aggressive := testResolver(t, store, "aggressive")
	stats, err = aggressive.ResolveAll(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Matched)
	assert.Equal(t, personID, store.links[profile.ID])
}

// A one-token display name would otherwise clear the fuzzy gate against
// "John Smith" (ratio ~0.95); the company-roster strategy refuses to fuzz it.
func TestFuzzyNameCompanySkipsSingleTokenNames(t *testing.T) {
	store := newFakeMatchStore()
	store.addPerson("John Smith", "", "Acme, Inc.", "")
	profile := profileFixture("Johnsmith", "", "@Acme", "", "")

	r := testResolver(t, store, "aggressive")
	result, err := r.Match(context.Background(), &profile)
	require.NoError(t, err)
	assert.Nil(t, result.PersonID)
	assert.Equal(t, StrategyNoMatch, result.Strategy)
}

func TestResolveAllCountsConflicts(t *testing.T) {
	store := newFakeMatchStore()
	store.addPerson("Alice Doe", "", "", "", "alice@example.com")
	other := uuid.New()
	profile := profileFixture("Alice Doe", "alice@example.com", "", "", "")
	store.unmatched = []models.GitHubProfile{profile}
	store.links[profile.ID] = other // pre-existing link to someone else

	r := testResolver(t, store, "normal")
	stats, err := r.ResolveAll(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Conflicts)
	assert.Equal(t, 0, stats.Matched)
	assert.Equal(t, other, store.links[profile.ID], "existing link is preserved")
}

func TestNormalizeLinkedIn(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"https://www.linkedin.com/in/Jane-Doe/", "linkedin.com/in/jane-doe"},
		{"linkedin.com/in/jdoe", "linkedin.com/in/jdoe"},
		{"http://linkedin.com/in/jdoe/", "linkedin.com/in/jdoe"},
		{"linkedin.com/company/acme", ""},
		{"https://example.com/in/jdoe", ""},
		{"", ""},
	}
	for _, tt := range tests {
		got := NormalizeLinkedIn(tt.in)
		assert.Equal(t, tt.want, got, tt.in)
		if got != "" {
			assert.Equal(t, got, NormalizeLinkedIn(got), "idempotent: %s", tt.in)
		}
	}
}

func TestNormalizeCompany(t *testing.T) {
	assert.Equal(t, "acme", NormalizeCompany("Acme, Inc."))
	assert.Equal(t, "acme", NormalizeCompany("@Acme"))
	assert.Equal(t, "acmecorp", NormalizeCompany("@Acme Corp."))
	assert.Equal(t, "", NormalizeCompany("Inc."))
	assert.Equal(t, NormalizeCompany("Acme, Inc."), NormalizeCompany(NormalizeCompany("Acme, Inc.")))
}

func TestSplitName(t *testing.T) {
	first, last := SplitName("Jane Q. Doe")
	assert.Equal(t, "Jane", first)
	assert.Equal(t, "Q. Doe", last)

	first, last = SplitName("  Prince ")
	assert.Equal(t, "Prince", first)
	assert.Equal(t, "", last)

	first, last = SplitName("")
	assert.Equal(t, "", first)
	assert.Equal(t, "", last)
}

func TestFuzzyRatios(t *testing.T) {
	assert.Equal(t, 1.0, TokenSortRatio("john smith", "smith john"))
	assert.InDelta(t, 0.947, NameRatio("Jon Smith", "John Smith"), 0.01)
	assert.Equal(t, 1.0, PartialRatio("acme", "acme corporation"))
	assert.Equal(t, 0.0, Ratio("", "abc"))
	assert.Greater(t, CompanyRatio("@Acme Corp.", "Acme, Inc."), 0.0)
}
