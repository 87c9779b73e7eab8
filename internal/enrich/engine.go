package enrich

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/talentgraph/talentgraph-go/internal/checkpoint"
	"github.com/talentgraph/talentgraph-go/internal/config"
	"github.com/talentgraph/talentgraph-go/internal/errors"
	"github.com/talentgraph/talentgraph-go/internal/github"
	"github.com/talentgraph/talentgraph-go/internal/logging"
	"github.com/talentgraph/talentgraph-go/internal/models"
)

// API is the slice of the GitHub client the engine consumes.
type API interface {
	GetUser(ctx context.Context, login string) (*github.User, bool, error)
	ListUserRepos(ctx context.Context, login string) ([]github.Repo, bool, error)
	GetRepoLanguages(ctx context.Context, owner, name string) (map[string]int, bool, error)
}

// Store is the persistence surface the engine needs.
type Store interface {
	GetEnrichmentBatch(ctx context.Context, n, staleDays int) ([]models.GitHubProfile, error)
	MergeEnrichedProfile(ctx context.Context, p *models.GitHubProfile) error
	MarkEnriched(ctx context.Context, profileID uuid.UUID, ok bool, errMsg string, advanceOnError bool) error
}

// Stats counts what one enrichment run did.
type Stats struct {
	Enriched int
	Gone     int
	Failures int
}

// topLanguageCount bounds both the language detail fetches (top repos by
// stars) and the persisted histogram summary.
const topLanguageCount = 5

const checkpointSubsystem = "enrich"

// Engine drains the enrichment queue: for each stale or never-enriched
// profile it fetches detailed user data and a language histogram, then
// merges the result into the profile row.
type Engine struct {
	api         API
	store       Store
	checkpoints *checkpoint.Store
	logger      *logging.Logger
	cfg         config.EnrichConfig
}

func NewEngine(api API, store Store, cps *checkpoint.Store, cfg config.EnrichConfig, logger *logging.Logger) *Engine {
	return &Engine{api: api, store: store, checkpoints: cps, cfg: cfg, logger: logger}
}

// Run enriches batches until the queue drains or MaxProfilesPerRun is hit.
// With continuous unset exactly one batch is processed.
func (e *Engine) Run(ctx context.Context, batchSize int, continuous bool) (*Stats, error) {
	if batchSize <= 0 {
		batchSize = e.cfg.BatchSize
	}
	stats := &Stats{}
	processed := 0
	started := time.Now()

	for {
		batch, err := e.store.GetEnrichmentBatch(ctx, batchSize, e.cfg.StaleDays)
		if err != nil {
			return stats, err
		}
		if len(batch) == 0 {
			e.logger.Info("enrichment queue drained", "enriched", stats.Enriched)
			return stats, nil
		}

		for i := range batch {
			if err := ctx.Err(); err != nil {
				e.save(batch[i].ID, stats)
				return stats, err
			}
			if err := e.enrichOne(ctx, &batch[i], stats); err != nil {
				if errors.IsFatal(err) {
					e.save(batch[i].ID, stats)
					return stats, err
				}
				stats.Failures++
				e.logger.Error("profile enrichment failed",
					"username", batch[i].GithubUsername, "error", err)
			}
			processed++
			if processed%25 == 0 {
				elapsed := time.Since(started)
				eta := time.Duration(0)
				if stats.Enriched > 0 {
					remaining := e.cfg.MaxProfilesPerRun - processed
					eta = elapsed / time.Duration(processed) * time.Duration(remaining)
				}
				e.logger.Info("enrichment progress",
					"processed", processed,
					"enriched", stats.Enriched,
					"failures", stats.Failures,
					"eta", eta.Round(time.Minute).String())
			}
			if processed >= e.cfg.MaxProfilesPerRun {
				e.logger.Info("per-run profile limit reached", "limit", e.cfg.MaxProfilesPerRun)
				return stats, nil
			}
		}

		if !continuous {
			return stats, nil
		}
	}
}

func (e *Engine) enrichOne(ctx context.Context, profile *models.GitHubProfile, stats *Stats) error {
	user, found, err := e.api.GetUser(ctx, profile.GithubUsername)
	if err != nil {
		if markErr := e.store.MarkEnriched(ctx, profile.ID, false, err.Error(), false); markErr != nil {
			e.logger.Warn("failed to record enrichment error", "username", profile.GithubUsername, "error", markErr)
		}
		return err
	}
	if !found {
		// The account was deleted or renamed. Advance the watermark so the
		// queue does not retry it every run; keep the row for its edges.
		stats.Gone++
		return e.store.MarkEnriched(ctx, profile.ID, false, "user_gone", true)
	}

	merged := mergeUser(profile, user)

	repos, _, err := e.api.ListUserRepos(ctx, profile.GithubUsername)
	if err != nil {
		if errors.IsFatal(err) {
			return err
		}
		// Profile fields are still worth keeping without the repo histogram.
		e.logger.Warn("repo listing failed, merging profile fields only",
			"username", profile.GithubUsername, "error", err)
	} else {
		merged.PublicRepos = maxInt(merged.PublicRepos, len(repos))
		histogram, err := e.languageHistogram(ctx, repos)
		if err != nil {
			return err
		}
		if summary := topLanguagesJSON(histogram); summary != "" {
			merged.TopLanguages = &summary
		}
	}

	if err := e.store.MergeEnrichedProfile(ctx, merged); err != nil {
		return err
	}
	if err := e.store.MarkEnriched(ctx, profile.ID, true, "", false); err != nil {
		return err
	}
	stats.Enriched++
	e.logger.Debug("profile enriched",
		"username", profile.GithubUsername,
		"followers", merged.Followers,
		"public_repos", merged.PublicRepos)
	return nil
}

// languageHistogram counts language -> owned-repo occurrences. Every repo
// contributes its primary language; the most-starred few also contribute
// their full language breakdown.
func (e *Engine) languageHistogram(ctx context.Context, repos []github.Repo) (map[string]int, error) {
	histogram := make(map[string]int)
	for _, r := range repos {
		if r.Language != nil && *r.Language != "" {
			histogram[*r.Language]++
		}
	}

	byStars := make([]github.Repo, len(repos))
	copy(byStars, repos)
	sort.Slice(byStars, func(i, j int) bool { return byStars[i].Stars > byStars[j].Stars })
	if len(byStars) > topLanguageCount {
		byStars = byStars[:topLanguageCount]
	}

	counter := langCounter{m: histogram}
	g, gctx := errgroup.WithContext(ctx)
	for _, r := range byStars {
		r := r
		g.Go(func() error {
			langs, found, err := e.api.GetRepoLanguages(gctx, r.Owner, r.Name)
			if err != nil || !found {
				return err
			}
			primary := ""
			if r.Language != nil {
				primary = *r.Language
			}
			for lang := range langs {
				if lang == primary {
					continue
				}
				counter.add(lang)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return histogram, nil
}

type langCounter struct {
	mu sync.Mutex
	m  map[string]int
}

func (c *langCounter) add(lang string) {
	c.mu.Lock()
	c.m[lang]++
	c.mu.Unlock()
}

// mergeUser folds fetched user fields into a copy of the stored profile.
// The store applies COALESCE semantics, so fresh values only land where the
// row is still empty, except for counters which take the maximum.
func mergeUser(profile *models.GitHubProfile, user *github.User) *models.GitHubProfile {
	merged := *profile
	merged.Name = user.Name
	merged.Email = user.Email
	merged.Bio = user.Bio
	merged.Company = user.Company
	merged.Location = user.Location
	merged.Blog = user.Blog
	merged.TwitterUsername = user.TwitterUsername
	merged.AvatarURL = user.AvatarURL
	merged.Hireable = user.Hireable
	merged.Followers = user.Followers
	merged.Following = user.Following
	merged.PublicRepos = user.PublicRepos
	merged.GithubCreatedAt = user.CreatedAt
	merged.GithubUpdatedAt = user.UpdatedAt
	if user.Bio != nil {
		if url := ExtractLinkedinURL(*user.Bio); url != "" {
			merged.BioLinkedinURL = &url
		}
	}
	return &merged
}

var linkedinBioPattern = regexp.MustCompile(`(?i)linkedin\.com/(in|company)/([A-Za-z0-9\-_%.]+)`)

// ExtractLinkedinURL pulls the first LinkedIn profile or company URL out of
// free-form bio text, normalized to "linkedin.com/<kind>/<slug>".
func ExtractLinkedinURL(bio string) string {
	m := linkedinBioPattern.FindStringSubmatch(bio)
	if m == nil {
		return ""
	}
	slug := strings.TrimRight(m[2], "/.")
	if slug == "" {
		return ""
	}
	return fmt.Sprintf("linkedin.com/%s/%s", strings.ToLower(m[1]), strings.ToLower(slug))
}

// topLanguagesJSON renders the top languages by repo count as a stable JSON
// object, largest first, ties broken alphabetically.
func topLanguagesJSON(histogram map[string]int) string {
	if len(histogram) == 0 {
		return ""
	}
	type entry struct {
		lang  string
		count int
	}
	entries := make([]entry, 0, len(histogram))
	for l, c := range histogram {
		entries = append(entries, entry{l, c})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].count != entries[j].count {
			return entries[i].count > entries[j].count
		}
		return entries[i].lang < entries[j].lang
	})
	if len(entries) > topLanguageCount {
		entries = entries[:topLanguageCount]
	}
	top := make(map[string]int, len(entries))
	for _, e := range entries {
		top[e.lang] = e.count
	}
	data, err := json.Marshal(top)
	if err != nil {
		return ""
	}
	return string(data)
}

func (e *Engine) save(lastID uuid.UUID, stats *Stats) {
	cp := checkpoint.NewCheckpoint(checkpointSubsystem)
	cp.LastID = lastID.String()
	cp.Counters = map[string]int{
		"enriched": stats.Enriched,
		"gone":     stats.Gone,
		"failures": stats.Failures,
	}
	if err := e.checkpoints.Save(cp); err != nil {
		e.logger.Warn("checkpoint save failed", "error", err)
	}
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
