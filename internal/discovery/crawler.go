package discovery

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/talentgraph/talentgraph-go/internal/checkpoint"
	"github.com/talentgraph/talentgraph-go/internal/config"
	"github.com/talentgraph/talentgraph-go/internal/github"
	"github.com/talentgraph/talentgraph-go/internal/logging"
	"github.com/talentgraph/talentgraph-go/internal/models"
)

// API is the slice of the GitHub client the crawler consumes.
type API interface {
	GetRepo(ctx context.Context, owner, name string) (*github.Repo, bool, error)
	ListOrgRepos(ctx context.Context, org string) ([]github.Repo, bool, error)
	ListRepoContributors(ctx context.Context, owner, name string, maxPages int) ([]github.Contributor, bool, error)
}

// Store is the persistence surface the crawler needs.
type Store interface {
	UpsertRepository(ctx context.Context, repo *models.GitHubRepository) (uuid.UUID, error)
	ListRepositoriesForTier(ctx context.Context, tier, limit int) ([]models.GitHubRepository, error)
	ListRepositoriesByNames(ctx context.Context, fullNames []string) ([]models.GitHubRepository, error)
	MarkContributorSync(ctx context.Context, repoID uuid.UUID, contributorCount int) error
	UpsertProfileMinimal(ctx context.Context, username, avatarURL string, tags []string) (uuid.UUID, bool, error)
	UpsertContribution(ctx context.Context, c *models.GitHubContribution) error
	LoadProfileCache(ctx context.Context) (map[string]uuid.UUID, error)
	RepoEcosystemNames(ctx context.Context, repoID uuid.UUID) ([]string, error)
	UpsertDiscoverySource(ctx context.Context, name, sourceType string, tier int) (uuid.UUID, error)
	InsertEntityDiscovery(ctx context.Context, d *models.EntityDiscovery) error
}

// Seen is an optional cross-run cache of already-discovered usernames.
type Seen interface {
	Seen(ctx context.Context, username string) bool
	Mark(ctx context.Context, username string)
}

// Stats counts what one crawl did.
type Stats struct {
	ReposProcessed int
	ReposSkipped   int
	Contributors   int
	NewProfiles    int
	Contributions  int
	Failures       int
}

// Crawler walks repositories and fans out to their contributors, creating
// minimal profiles and contribution edges. Runs are resumable: processed
// repo ids are checkpointed and skipped on the next invocation.
type Crawler struct {
	api         API
	store       Store
	seen        Seen // may be nil
	checkpoints *checkpoint.Store
	logger      *logging.Logger
	cfg         config.DiscoveryConfig

	DryRun bool
}

func NewCrawler(api API, store Store, seen Seen, cps *checkpoint.Store, cfg config.DiscoveryConfig, logger *logging.Logger) *Crawler {
	return &Crawler{api: api, store: store, seen: seen, checkpoints: cps, cfg: cfg, logger: logger}
}

const checkpointSubsystem = "discovery"

// DiscoverRepos resolves the requested repositories against the live API and
// upserts them. Exactly one of org or repoFullName is set.
func (c *Crawler) DiscoverRepos(ctx context.Context, org, repoFullName string) (*Stats, error) {
	stats := &Stats{}
	sourceID, err := c.store.UpsertDiscoverySource(ctx, "cli", models.SourceManualImport, 3)
	if err != nil {
		return stats, err
	}

	var repos []github.Repo
	switch {
	case org != "":
		list, found, err := c.api.ListOrgRepos(ctx, org)
		if err != nil {
			return stats, err
		}
		if !found {
			return stats, fmt.Errorf("organization %q not found", org)
		}
		repos = list
	case repoFullName != "":
		owner, name, ok := splitFullName(repoFullName)
		if !ok {
			return stats, fmt.Errorf("invalid repository %q: want owner/name", repoFullName)
		}
		repo, found, err := c.api.GetRepo(ctx, owner, name)
		if err != nil {
			return stats, err
		}
		if !found {
			return stats, fmt.Errorf("repository %q not found", repoFullName)
		}
		repos = []github.Repo{*repo}
	default:
		return stats, fmt.Errorf("either an organization or a repository is required")
	}

	for i := range repos {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		record := repoRecord(&repos[i], sourceID)
		if c.DryRun {
			c.logger.Info("dry-run: would upsert repository", "repo", record.FullName, "stars", record.Stars)
			stats.ReposProcessed++
			continue
		}
		if _, err := c.store.UpsertRepository(ctx, record); err != nil {
			c.logger.Error("repository upsert failed", "repo", record.FullName, "error", err)
			stats.Failures++
			continue
		}
		stats.ReposProcessed++
	}
	c.logger.Info("repository discovery finished", "repos", stats.ReposProcessed, "failures", stats.Failures)
	return stats, nil
}

// RefreshTierRepos re-fetches stored repositories of a priority tier from
// the live API so stars, language and activity timestamps stay current.
func (c *Crawler) RefreshTierRepos(ctx context.Context, tier, limit int) (*Stats, error) {
	stats := &Stats{}
	repos, err := c.store.ListRepositoriesForTier(ctx, tier, limit)
	if err != nil {
		return stats, err
	}
	if len(repos) == 0 {
		c.logger.Info("no repositories to refresh", "tier", tier)
		return stats, nil
	}

	sourceID, err := c.store.UpsertDiscoverySource(ctx, "tier_refresh", models.SourceManualImport, tier)
	if err != nil {
		return stats, err
	}

	for i := range repos {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		owner, name, ok := splitFullName(repos[i].FullName)
		if !ok {
			c.logger.Warn("invalid stored full name", "repo", repos[i].FullName)
			stats.Failures++
			continue
		}
		fresh, found, err := c.api.GetRepo(ctx, owner, name)
		if err != nil {
			if ctx.Err() != nil {
				return stats, ctx.Err()
			}
			c.logger.Error("repository refresh failed", "repo", repos[i].FullName, "error", err)
			stats.Failures++
			continue
		}
		if !found {
			c.logger.Warn("repository gone from github", "repo", repos[i].FullName)
			stats.ReposSkipped++
			continue
		}
		record := repoRecord(fresh, sourceID)
		if c.DryRun {
			c.logger.Info("dry-run: would refresh repository", "repo", record.FullName, "stars", record.Stars)
			stats.ReposProcessed++
			continue
		}
		if _, err := c.store.UpsertRepository(ctx, record); err != nil {
			c.logger.Error("repository upsert failed", "repo", record.FullName, "error", err)
			stats.Failures++
			continue
		}
		stats.ReposProcessed++
	}
	c.logger.Info("tier refresh finished",
		"tier", tier, "repos", stats.ReposProcessed, "gone", stats.ReposSkipped, "failures", stats.Failures)
	return stats, nil
}

// DiscoverContributors crawls contributor lists for the given tier or
// explicit repos, most-starred first. Fresh repos (synced within the
// freshness window) are skipped.
func (c *Crawler) DiscoverContributors(ctx context.Context, tier, limit int, repoNames []string) (*Stats, error) {
	stats := &Stats{}

	var repos []models.GitHubRepository
	var err error
	if len(repoNames) > 0 {
		repos, err = c.store.ListRepositoriesByNames(ctx, repoNames)
	} else {
		repos, err = c.store.ListRepositoriesForTier(ctx, tier, limit)
	}
	if err != nil {
		return stats, err
	}
	if len(repos) == 0 {
		c.logger.Info("no repositories to crawl", "tier", tier)
		return stats, nil
	}

	cp, err := c.checkpoints.Load(checkpointSubsystem)
	if err != nil {
		return stats, err
	}
	if cp.Tier != tier {
		// A tier switch restarts the walk.
		cp = &checkpoint.Checkpoint{Subsystem: checkpointSubsystem, Tier: tier, Counters: map[string]int{}}
	}
	done := cp.DoneSet()

	profileCache, err := c.store.LoadProfileCache(ctx)
	if err != nil {
		return stats, err
	}

	sourceID, err := c.store.UpsertDiscoverySource(ctx, "contributor_crawl", models.SourceContributorExpansion, tier)
	if err != nil {
		return stats, err
	}

	freshness := time.Duration(c.cfg.FreshnessDays) * 24 * time.Hour
	for i := range repos {
		repo := &repos[i]
		if err := ctx.Err(); err != nil {
			c.save(cp, stats)
			return stats, err
		}
		if done[repo.ID.String()] {
			continue
		}
		if repo.LastContributorSync != nil && time.Since(*repo.LastContributorSync) < freshness {
			stats.ReposSkipped++
			continue
		}

		if err := c.crawlRepo(ctx, repo, sourceID, profileCache, stats); err != nil {
			if ctx.Err() != nil {
				c.save(cp, stats)
				return stats, ctx.Err()
			}
			c.logger.Error("contributor crawl failed", "repo", repo.FullName, "error", err)
			stats.Failures++
			continue
		}
		stats.ReposProcessed++
		cp.MarkDone(repo.ID.String())
		cp.LastID = repo.ID.String()
		c.save(cp, stats)
		c.logger.Info("repo contributors synced",
			"repo", repo.FullName,
			"progress", fmt.Sprintf("%d/%d", stats.ReposProcessed+stats.ReposSkipped, len(repos)),
			"new_profiles", stats.NewProfiles)
	}

	// Full pass complete: the next run starts clean.
	if !c.DryRun {
		if err := c.checkpoints.Clear(checkpointSubsystem); err != nil {
			c.logger.Warn("checkpoint clear failed", "error", err)
		}
	}
	c.logger.Info("contributor discovery finished",
		"repos", stats.ReposProcessed,
		"skipped_fresh", stats.ReposSkipped,
		"contributors", stats.Contributors,
		"new_profiles", stats.NewProfiles,
		"failures", stats.Failures)
	return stats, nil
}

func (c *Crawler) crawlRepo(ctx context.Context, repo *models.GitHubRepository, sourceID uuid.UUID, profileCache map[string]uuid.UUID, stats *Stats) error {
	owner, name, ok := splitFullName(repo.FullName)
	if !ok {
		return fmt.Errorf("invalid stored full name %q", repo.FullName)
	}

	contributors, found, err := c.api.ListRepoContributors(ctx, owner, name, c.cfg.MaxContributorPages)
	if err != nil {
		return err
	}
	if !found {
		c.logger.Warn("repository gone from github", "repo", repo.FullName)
		if !c.DryRun {
			return c.store.MarkContributorSync(ctx, repo.ID, 0)
		}
		return nil
	}

	tags, err := c.store.RepoEcosystemNames(ctx, repo.ID)
	if err != nil {
		return err
	}

	if c.DryRun {
		c.logger.Info("dry-run: would sync contributors",
			"repo", repo.FullName, "contributors", len(contributors), "tags", strings.Join(tags, ","))
		stats.Contributors += len(contributors)
		return nil
	}

	for i, con := range contributors {
		if err := ctx.Err(); err != nil {
			return err
		}
		login := strings.ToLower(con.Login)
		if isBot(login) {
			continue
		}

		// Contributor lists are contribution-ordered. The head of the list is
		// always refreshed; the long tail only creates rows we have never seen.
		if i >= c.cfg.TopContributors {
			if _, known := profileCache[login]; known {
				continue
			}
			if c.seen != nil && c.seen.Seen(ctx, login) {
				continue
			}
		}

		profileID, inserted, err := c.store.UpsertProfileMinimal(ctx, con.Login, con.AvatarURL, tags)
		if err != nil {
			return err
		}
		profileCache[login] = profileID
		if c.seen != nil {
			c.seen.Mark(ctx, login)
		}
		stats.Contributors++
		if inserted {
			stats.NewProfiles++
			meta := fmt.Sprintf(`{"repo":%q,"contributions":%d}`, repo.FullName, con.Contributions)
			if err := c.store.InsertEntityDiscovery(ctx, &models.EntityDiscovery{
				EntityType:      "github_profile",
				EntityID:        profileID,
				SourceID:        sourceID,
				DiscoveredViaID: &repo.ID,
				DiscoveryMethod: "repo_contributors",
				MetadataJSON:    &meta,
			}); err != nil {
				return err
			}
		}

		if err := c.store.UpsertContribution(ctx, &models.GitHubContribution{
			GithubProfileID:   profileID,
			RepoID:            repo.ID,
			ContributionCount: con.Contributions,
		}); err != nil {
			return err
		}
		stats.Contributions++
	}

	// All contributor writes above are committed before the watermark moves.
	return c.store.MarkContributorSync(ctx, repo.ID, len(contributors))
}

func (c *Crawler) save(cp *checkpoint.Checkpoint, stats *Stats) {
	if c.DryRun {
		return
	}
	cp.Counters = map[string]int{
		"repos_processed": stats.ReposProcessed,
		"new_profiles":    stats.NewProfiles,
		"contributions":   stats.Contributions,
		"failures":        stats.Failures,
	}
	if err := c.checkpoints.Save(cp); err != nil {
		c.logger.Warn("checkpoint save failed", "error", err)
	}
}

// isBot filters the machine accounts that dominate contributor lists.
func isBot(login string) bool {
	return strings.HasSuffix(login, "[bot]") ||
		strings.HasSuffix(login, "-bot") ||
		login == "dependabot" || login == "renovate" || login == "github-actions"
}

func splitFullName(fullName string) (owner, name string, ok bool) {
	parts := strings.SplitN(fullName, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", false
	}
	return parts[0], parts[1], true
}

func repoRecord(r *github.Repo, sourceID uuid.UUID) *models.GitHubRepository {
	return &models.GitHubRepository{
		FullName:          r.FullName,
		OwnerUsername:     r.Owner,
		Description:       r.Description,
		Language:          r.Language,
		Stars:             r.Stars,
		Forks:             r.Forks,
		IsFork:            r.IsFork,
		HomepageURL:       r.HomepageURL,
		GithubCreatedAt:   r.CreatedAt,
		GithubUpdatedAt:   r.UpdatedAt,
		GithubPushedAt:    r.PushedAt,
		DiscoverySourceID: &sourceID,
	}
}
