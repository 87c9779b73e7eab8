package match

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/talentgraph/talentgraph-go/internal/config"
	"github.com/talentgraph/talentgraph-go/internal/logging"
	"github.com/talentgraph/talentgraph-go/internal/models"
	"github.com/talentgraph/talentgraph-go/internal/storage"
)

// Strategy names, reported with every match decision.
const (
	StrategyEmail            = "email"
	StrategyLinkedin         = "linkedin"
	StrategyNameCompanyExact = "name_company_exact"
	StrategyNameCompanyFuzzy = "name_company_fuzzy"
	StrategyNameLocation     = "name_location"
	StrategyFuzzyNameCompany = "fuzzy_name_company"
	StrategyNoMatch          = "no_match"
)

// Candidate caps per fuzzy strategy.
const (
	nameCompanyCandidates = 20
	companyCandidates     = 50
)

// Fuzzy gates: a candidate below the gate is not considered at all.
const (
	nameCompanyFuzzyGate = 0.75
	fuzzyNameGate        = 0.80
)

// Store is the persistence surface the resolver needs.
type Store interface {
	FindPersonsByEmail(ctx context.Context, email string) ([]models.Person, error)
	FindPersonByLinkedinSlug(ctx context.Context, normalizedURL string) (*models.Person, error)
	FindPersonsByName(ctx context.Context, fullName string) ([]storage.PersonCandidate, error)
	FindPersonsByNameAndLocation(ctx context.Context, fullName, location string) ([]models.Person, error)
	FindPersonsByCompany(ctx context.Context, normalizedCompany string, limit int) ([]storage.PersonCandidate, error)
	ListUnmatchedProfiles(ctx context.Context, limit int) ([]models.GitHubProfile, error)
	LinkProfileToPerson(ctx context.Context, profileID, personID uuid.UUID) error
}

// Result is one match decision: the person found (nil for no match), the
// confidence in [0, 1], and the strategy that produced it.
type Result struct {
	PersonID   *uuid.UUID
	Confidence float64
	Strategy   string
}

// Stats counts what one resolve run did.
type Stats struct {
	Examined   int
	Matched    int
	BelowBar   int
	NoMatch    int
	Conflicts  int
	ByStrategy map[string]int
}

// Resolver links GitHub profiles to persons via a cascade of strategies
// ordered by decreasing precision. The first strategy that clears its own
// floor wins; the link is written only when the winning confidence clears
// the configured threshold.
type Resolver struct {
	store  Store
	logger *logging.Logger
	cfg    config.MatchConfig
}

func NewResolver(store Store, cfg config.MatchConfig, logger *logging.Logger) *Resolver {
	return &Resolver{store: store, cfg: cfg, logger: logger}
}

// ResolveAll matches every unmatched enriched profile and writes links at or
// above the threshold. limit <= 0 means all.
func (r *Resolver) ResolveAll(ctx context.Context, limit int) (*Stats, error) {
	stats := &Stats{ByStrategy: map[string]int{}}
	threshold := r.cfg.Threshold()

	profiles, err := r.store.ListUnmatchedProfiles(ctx, limit)
	if err != nil {
		return stats, err
	}

	for i := range profiles {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		profile := &profiles[i]
		stats.Examined++

		result, err := r.Match(ctx, profile)
		if err != nil {
			return stats, err
		}
		if result.PersonID == nil {
			stats.NoMatch++
			continue
		}
		stats.ByStrategy[result.Strategy]++
		if result.Confidence < threshold {
			stats.BelowBar++
			r.logger.Debug("match below threshold",
				"username", profile.GithubUsername,
				"strategy", result.Strategy,
				"confidence", result.Confidence,
				"threshold", threshold)
			continue
		}

		if err := r.store.LinkProfileToPerson(ctx, profile.ID, *result.PersonID); err != nil {
			// A conflicting prior link is logged for audit, never overwritten.
			stats.Conflicts++
			r.logger.Warn("match conflicts with existing link",
				"username", profile.GithubUsername,
				"strategy", result.Strategy,
				"person_id", result.PersonID.String(),
				"error", err)
			continue
		}
		stats.Matched++
		r.logger.Info("profile linked",
			"username", profile.GithubUsername,
			"person_id", result.PersonID.String(),
			"strategy", result.Strategy,
			"confidence", result.Confidence)
	}

	r.logger.Info("matching finished",
		"examined", stats.Examined,
		"matched", stats.Matched,
		"below_threshold", stats.BelowBar,
		"no_match", stats.NoMatch,
		"conflicts", stats.Conflicts)
	return stats, nil
}

// Match runs the cascade for one profile without writing anything.
func (r *Resolver) Match(ctx context.Context, profile *models.GitHubProfile) (Result, error) {
	steps := []func(context.Context, *models.GitHubProfile) (Result, error){
		r.matchEmail,
		r.matchLinkedin,
		r.matchNameCompanyExact,
		r.matchNameCompanyFuzzy,
		r.matchNameLocation,
		r.matchFuzzyNameCompany,
	}
	for _, step := range steps {
		result, err := step(ctx, profile)
		if err != nil {
			return Result{Strategy: StrategyNoMatch}, err
		}
		if result.PersonID != nil {
			return result, nil
		}
	}
	return Result{Strategy: StrategyNoMatch}, nil
}

func (r *Resolver) matchEmail(ctx context.Context, profile *models.GitHubProfile) (Result, error) {
	if profile.Email == nil || *profile.Email == "" {
		return Result{}, nil
	}
	persons, err := r.store.FindPersonsByEmail(ctx, *profile.Email)
	if err != nil {
		return Result{}, err
	}
	// An email shared by several persons is too ambiguous to act on.
	if len(persons) != 1 {
		return Result{}, nil
	}
	return Result{PersonID: &persons[0].ID, Confidence: 0.95, Strategy: StrategyEmail}, nil
}

func (r *Resolver) matchLinkedin(ctx context.Context, profile *models.GitHubProfile) (Result, error) {
	if profile.BioLinkedinURL == nil {
		return Result{}, nil
	}
	normalized := NormalizeLinkedIn(*profile.BioLinkedinURL)
	if normalized == "" {
		return Result{}, nil
	}
	person, err := r.store.FindPersonByLinkedinSlug(ctx, normalized)
	if err != nil {
		if err == storage.ErrNotFound {
			return Result{}, nil
		}
		return Result{}, err
	}
	return Result{PersonID: &person.ID, Confidence: 0.99, Strategy: StrategyLinkedin}, nil
}

func (r *Resolver) matchNameCompanyExact(ctx context.Context, profile *models.GitHubProfile) (Result, error) {
	name, company := profileNameCompany(profile)
	if name == "" || company == "" {
		return Result{}, nil
	}
	candidates, err := r.store.FindPersonsByName(ctx, name)
	if err != nil {
		return Result{}, err
	}
	for i := range candidates {
		c := &candidates[i]
		if c.CompanyName == nil {
			continue
		}
		cn := NormalizeCompany(*c.CompanyName)
		if cn == "" {
			continue
		}
		if cn == company || strings.Contains(company, cn) || strings.Contains(cn, company) {
			return Result{PersonID: &c.ID, Confidence: 0.75, Strategy: StrategyNameCompanyExact}, nil
		}
	}
	return Result{}, nil
}

func (r *Resolver) matchNameCompanyFuzzy(ctx context.Context, profile *models.GitHubProfile) (Result, error) {
	name, company := profileNameCompany(profile)
	if name == "" || company == "" {
		return Result{}, nil
	}
	candidates, err := r.store.FindPersonsByName(ctx, name)
	if err != nil {
		return Result{}, err
	}
	if len(candidates) > nameCompanyCandidates {
		candidates = candidates[:nameCompanyCandidates]
	}
	var best *storage.PersonCandidate
	bestRatio := 0.0
	for i := range candidates {
		c := &candidates[i]
		if c.CompanyName == nil {
			continue
		}
		ratio := CompanyRatio(*profile.Company, *c.CompanyName)
		if ratio >= nameCompanyFuzzyGate && ratio > bestRatio {
			best, bestRatio = c, ratio
		}
	}
	if best == nil {
		return Result{}, nil
	}
	return Result{PersonID: &best.ID, Confidence: 0.75 * bestRatio, Strategy: StrategyNameCompanyFuzzy}, nil
}

func (r *Resolver) matchNameLocation(ctx context.Context, profile *models.GitHubProfile) (Result, error) {
	if profile.Name == nil || profile.Location == nil || *profile.Location == "" {
		return Result{}, nil
	}
	name := strings.TrimSpace(*profile.Name)
	if name == "" {
		return Result{}, nil
	}
	persons, err := r.store.FindPersonsByNameAndLocation(ctx, name, *profile.Location)
	if err != nil {
		return Result{}, err
	}
	if len(persons) != 1 {
		return Result{}, nil
	}
	return Result{PersonID: &persons[0].ID, Confidence: 0.70, Strategy: StrategyNameLocation}, nil
}

func (r *Resolver) matchFuzzyNameCompany(ctx context.Context, profile *models.GitHubProfile) (Result, error) {
	name, company := profileNameCompany(profile)
	if name == "" || company == "" {
		return Result{}, nil
	}
	// A name without a last name is too ambiguous to fuzz against a whole
	// company roster.
	if _, last := SplitName(name); last == "" {
		return Result{}, nil
	}
	candidates, err := r.store.FindPersonsByCompany(ctx, company, companyCandidates)
	if err != nil {
		return Result{}, err
	}
	var best *storage.PersonCandidate
	bestRatio := 0.0
	for i := range candidates {
		c := &candidates[i]
		ratio := NameRatio(name, c.FullName)
		if ratio >= fuzzyNameGate && ratio > bestRatio {
			best, bestRatio = c, ratio
		}
	}
	if best == nil {
		return Result{}, nil
	}
	return Result{PersonID: &best.ID, Confidence: 0.65 * bestRatio, Strategy: StrategyFuzzyNameCompany}, nil
}

func profileNameCompany(profile *models.GitHubProfile) (name, normalizedCompany string) {
	if profile.Name != nil {
		name = strings.TrimSpace(*profile.Name)
	}
	if profile.Company != nil {
		normalizedCompany = NormalizeCompany(*profile.Company)
	}
	return name, normalizedCompany
}
