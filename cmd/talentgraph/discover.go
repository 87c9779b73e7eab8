package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/talentgraph/talentgraph-go/internal/cache"
	"github.com/talentgraph/talentgraph-go/internal/discovery"
	"github.com/talentgraph/talentgraph-go/internal/github"
)

var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "Discover repositories and contributors on GitHub",
}

var discoverReposCmd = &cobra.Command{
	Use:   "repos",
	Short: "Fetch repository metadata from GitHub",
	Long: `Fetch repository metadata for a whole organization, a single
repository, or every stored repository of a priority tier, and upsert it
into the store.

Examples:
  talentgraph discover repos --org uniswap
  talentgraph discover repos --repo ethereum/go-ethereum
  talentgraph discover repos --priority-tier 1 --limit 100`,
	RunE: runDiscoverRepos,
}

var discoverContributorsCmd = &cobra.Command{
	Use:   "contributors",
	Short: "Crawl contributor lists for stored repositories",
	Long: `Crawl contributor lists for repositories of a priority tier (or an
explicit repo list), creating minimal profiles and contribution edges.
Repositories synced within the freshness window are skipped, and an
interrupted crawl resumes where it stopped.

Examples:
  talentgraph discover contributors --priority-tier 1
  talentgraph discover contributors --priority-tier 2 --limit 50
  talentgraph discover contributors --repo uniswap/v4-core --dry-run`,
	RunE: runDiscoverContributors,
}

func init() {
	discoverReposCmd.Flags().String("org", "", "GitHub organization to fetch")
	discoverReposCmd.Flags().String("repo", "", "single repository (owner/name)")
	discoverReposCmd.Flags().Int("priority-tier", 0, "refresh stored repositories of this tier")
	discoverReposCmd.Flags().Int("limit", 0, "max repositories to refresh (0 = all, with --priority-tier)")
	discoverReposCmd.Flags().Bool("dry-run", false, "log what would be written without writing")

	discoverContributorsCmd.Flags().Int("priority-tier", 1, "ecosystem priority tier to crawl")
	discoverContributorsCmd.Flags().Int("limit", 0, "max repositories to crawl (0 = all)")
	discoverContributorsCmd.Flags().StringSlice("repo", nil, "explicit repositories (owner/name), overrides --priority-tier")
	discoverContributorsCmd.Flags().Bool("dry-run", false, "log what would be written without writing")

	discoverCmd.AddCommand(discoverReposCmd)
	discoverCmd.AddCommand(discoverContributorsCmd)
}

func newCrawler(app *app, dryRun bool) *discovery.Crawler {
	client := github.NewClient(cfg.GitHub, app.logger, nil)

	var seen discovery.Seen
	if cfg.Redis.Enabled() {
		sc, err := cache.NewSeenCache(cfg.Redis, app.logger)
		if err != nil {
			// The seen-cache is an optimization; crawl without it.
			app.logger.Warn("redis seen-cache unavailable", "error", err)
		} else {
			seen = sc
		}
	}

	crawler := discovery.NewCrawler(client, app.store, seen, app.checkpoints, cfg.Discovery, app.logger)
	crawler.DryRun = dryRun
	return crawler
}

func runDiscoverRepos(cmd *cobra.Command, args []string) error {
	org, _ := cmd.Flags().GetString("org")
	repo, _ := cmd.Flags().GetString("repo")
	tier, _ := cmd.Flags().GetInt("priority-tier")
	limit, _ := cmd.Flags().GetInt("limit")
	dryRun, _ := cmd.Flags().GetBool("dry-run")

	modes := 0
	for _, set := range []bool{org != "", repo != "", tier > 0} {
		if set {
			modes++
		}
	}
	if modes != 1 {
		return fmt.Errorf("exactly one of --org, --repo or --priority-tier is required")
	}

	app, err := openApp(cmd.Context(), "discovery")
	if err != nil {
		return err
	}
	defer app.close()

	crawler := newCrawler(app, dryRun)
	var stats *discovery.Stats
	if tier > 0 {
		stats, err = crawler.RefreshTierRepos(cmd.Context(), tier, limit)
	} else {
		stats, err = crawler.DiscoverRepos(cmd.Context(), org, repo)
	}
	if stats != nil {
		fmt.Printf("Repositories upserted: %d (failures: %d)\n", stats.ReposProcessed, stats.Failures)
	}
	return err
}

func runDiscoverContributors(cmd *cobra.Command, args []string) error {
	tier, _ := cmd.Flags().GetInt("priority-tier")
	limit, _ := cmd.Flags().GetInt("limit")
	repoNames, _ := cmd.Flags().GetStringSlice("repo")
	dryRun, _ := cmd.Flags().GetBool("dry-run")

	app, err := openApp(cmd.Context(), "discovery")
	if err != nil {
		return err
	}
	defer app.close()

	stats, err := newCrawler(app, dryRun).DiscoverContributors(cmd.Context(), tier, limit, repoNames)
	if stats != nil {
		fmt.Printf("Repos crawled:   %d (skipped fresh: %d)\n", stats.ReposProcessed, stats.ReposSkipped)
		fmt.Printf("Contributors:    %d (new profiles: %d)\n", stats.Contributors, stats.NewProfiles)
		fmt.Printf("Contributions:   %d\n", stats.Contributions)
		fmt.Printf("Failures:        %d\n", stats.Failures)
		if !dryRun {
			app.report("discovery", map[string]int{
				"repos_processed": stats.ReposProcessed,
				"repos_skipped":   stats.ReposSkipped,
				"contributors":    stats.Contributors,
				"new_profiles":    stats.NewProfiles,
				"contributions":   stats.Contributions,
				"failures":        stats.Failures,
			})
		}
	}
	return err
}
