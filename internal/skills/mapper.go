package skills

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/talentgraph/talentgraph-go/internal/logging"
	"github.com/talentgraph/talentgraph-go/internal/models"
	"github.com/talentgraph/talentgraph-go/internal/storage"
)

// Store is the persistence surface the mapper needs.
type Store interface {
	SeedStore
	LoadSkillCache(ctx context.Context) (map[string]uuid.UUID, error)
	ListReposWithoutSkills(ctx context.Context) ([]storage.RepoLanguage, error)
	InsertRepositorySkill(ctx context.Context, rs *models.RepositorySkill) error
	AggregatePersonSkillEvidence(ctx context.Context) ([]storage.PersonSkillEvidence, error)
	UpsertPersonSkill(ctx context.Context, ps *models.PersonSkill) error
}

// Stats counts what one skill extraction run did.
type Stats struct {
	ReposTagged      int
	UnknownLanguages int
	PersonSkills     int
}

// derivedConfidence is the confidence attached to repo-derived person
// skills: a floor plus a small bonus per distinct repo, capped well below
// certainty since language inference is indirect evidence.
func derivedConfidence(repos int) float64 {
	c := 0.5 + 0.05*float64(repos)
	if c > 0.9 {
		c = 0.9
	}
	return c
}

// Proficiency scores repo-derived skill strength on a 0-100 scale: a base
// for any evidence at all, then diminishing credit for breadth (repos),
// volume (contributions) and merged PRs.
func Proficiency(repos, contributions, mergedPRs int) float64 {
	score := 30.0
	breadth := float64(repos) * 10
	if breadth > 30 {
		breadth = 30
	}
	volume := float64(contributions) * 0.01
	if volume > 20 {
		volume = 20
	}
	prs := float64(mergedPRs) * 2
	if prs > 20 {
		prs = 20
	}
	score += breadth + volume + prs
	if score > 100 {
		score = 100
	}
	return score
}

// Mapper derives skills in two phases: repositories are tagged from their
// primary language, then person skills are aggregated from contributions to
// tagged repositories.
type Mapper struct {
	store  Store
	logger *logging.Logger
}

func NewMapper(store Store, logger *logging.Logger) *Mapper {
	return &Mapper{store: store, logger: logger}
}

// TagRepositories runs phase A: every repository with a known language and
// no skill tag yet gets a primary language skill. limit > 0 bounds the
// number of repositories considered.
func (m *Mapper) TagRepositories(ctx context.Context, stats *Stats, limit int) error {
	cache, err := m.store.LoadSkillCache(ctx)
	if err != nil {
		return err
	}
	repos, err := m.store.ListReposWithoutSkills(ctx)
	if err != nil {
		return err
	}
	if limit > 0 && len(repos) > limit {
		repos = repos[:limit]
	}
	unknown := map[string]int{}
	for _, r := range repos {
		if err := ctx.Err(); err != nil {
			return err
		}
		skillID, ok := cache[strings.ToLower(r.Language)]
		if !ok {
			unknown[r.Language]++
			stats.UnknownLanguages++
			continue
		}
		err := m.store.InsertRepositorySkill(ctx, &models.RepositorySkill{
			RepoID:          r.RepoID,
			SkillID:         skillID,
			IsPrimary:       true,
			ConfidenceScore: 0.95,
			Source:          "github_language",
		})
		if err != nil {
			return err
		}
		stats.ReposTagged++
	}
	for lang, n := range unknown {
		m.logger.Debug("language not in skill catalog", "language", lang, "repos", n)
	}
	m.logger.Info("repository tagging finished",
		"tagged", stats.ReposTagged, "unknown_languages", stats.UnknownLanguages)
	return nil
}

// DerivePersonSkills runs phase B: contribution evidence is aggregated per
// (person, skill) and folded into person_skills. limit > 0 bounds the
// number of evidence rows folded.
func (m *Mapper) DerivePersonSkills(ctx context.Context, stats *Stats, limit int) error {
	evidence, err := m.store.AggregatePersonSkillEvidence(ctx)
	if err != nil {
		return err
	}
	if limit > 0 && len(evidence) > limit {
		evidence = evidence[:limit]
	}
	for _, ev := range evidence {
		if err := ctx.Err(); err != nil {
			return err
		}
		ps := &models.PersonSkill{
			PersonID:         ev.PersonID,
			SkillID:          ev.SkillID,
			ProficiencyScore: Proficiency(ev.RepoCount, ev.Contributions, ev.MergedPRs),
			ConfidenceScore:  derivedConfidence(ev.RepoCount),
			EvidenceSources:  pq.StringArray{"repos"},
			MergedPRsCount:   ev.MergedPRs,
			ReposUsingSkill:  ev.RepoCount,
			FirstSeen:        ev.FirstSeen,
			LastUsed:         ev.LastUsed,
		}
		if err := m.store.UpsertPersonSkill(ctx, ps); err != nil {
			return err
		}
		stats.PersonSkills++
	}
	m.logger.Info("person skill derivation finished", "person_skills", stats.PersonSkills)
	return nil
}

// Run seeds the catalog then executes both phases. reposOnly stops after
// phase A; limit > 0 bounds each phase's worklist.
func (m *Mapper) Run(ctx context.Context, reposOnly bool, limit int) (*Stats, error) {
	stats := &Stats{}
	if _, err := Seed(ctx, m.store); err != nil {
		return stats, err
	}
	if err := m.TagRepositories(ctx, stats, limit); err != nil {
		return stats, err
	}
	if reposOnly {
		return stats, nil
	}
	if err := m.DerivePersonSkills(ctx, stats, limit); err != nil {
		return stats, err
	}
	return stats, nil
}
