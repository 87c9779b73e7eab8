package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/talentgraph/talentgraph-go/internal/enrich"
	"github.com/talentgraph/talentgraph-go/internal/github"
	"github.com/talentgraph/talentgraph-go/internal/match"
)

var enrichCmd = &cobra.Command{
	Use:   "enrich",
	Short: "Enrich discovered profiles",
}

var enrichGithubCmd = &cobra.Command{
	Use:   "github",
	Short: "Enrich GitHub profiles with full user and language data",
	Long: `Enrich drains the queue of never-enriched and stale profiles: each
profile gets the full GitHub user record, a LinkedIn URL extracted from
the bio when present, and a language histogram from its repositories.

Examples:
  talentgraph enrich github
  talentgraph enrich github --batch-size 50 --continuous
  talentgraph enrich github --with-matching
  talentgraph enrich github --status-only`,
	RunE: runEnrichGithub,
}

func init() {
	enrichGithubCmd.Flags().Int("batch-size", 0, "profiles per batch (0 = configured default)")
	enrichGithubCmd.Flags().Bool("continuous", false, "keep draining batches until the queue is empty")
	enrichGithubCmd.Flags().Bool("with-matching", false, "run profile-to-person matching after enrichment")
	enrichGithubCmd.Flags().Bool("status-only", false, "print queue status and exit")
	enrichCmd.AddCommand(enrichGithubCmd)
}

func runEnrichGithub(cmd *cobra.Command, args []string) error {
	batchSize, _ := cmd.Flags().GetInt("batch-size")
	continuous, _ := cmd.Flags().GetBool("continuous")
	withMatching, _ := cmd.Flags().GetBool("with-matching")
	statusOnly, _ := cmd.Flags().GetBool("status-only")
	if batchSize <= 0 {
		batchSize = cfg.Enrich.BatchSize
	}

	app, err := openApp(cmd.Context(), "enrich")
	if err != nil {
		return err
	}
	defer app.close()

	if statusOnly {
		st, err := app.store.GetEnrichmentStatus(cmd.Context(), cfg.Enrich.StaleDays)
		if err != nil {
			return err
		}
		fmt.Printf("Profiles:   %d total\n", st.Total)
		fmt.Printf("Enriched:   %d (%d stale)\n", st.Enriched, st.Stale)
		fmt.Printf("Unenriched: %d\n", st.Unenriched)
		fmt.Printf("Linked:     %d\n", st.Linked)
		return nil
	}

	client := github.NewClient(cfg.GitHub, app.logger, nil)
	engine := enrich.NewEngine(client, app.store, app.checkpoints, cfg.Enrich, app.logger)

	stats, err := engine.Run(cmd.Context(), batchSize, continuous)
	counters := map[string]int{}
	if stats != nil {
		fmt.Printf("Enriched: %d (gone: %d, failures: %d)\n", stats.Enriched, stats.Gone, stats.Failures)
		counters["enriched"] = stats.Enriched
		counters["gone"] = stats.Gone
		counters["failures"] = stats.Failures
	}
	if err != nil {
		app.report("enrich", counters)
		return err
	}

	if withMatching {
		resolver := match.NewResolver(app.store, cfg.Match, app.logger)
		mstats, merr := resolver.ResolveAll(cmd.Context(), 0)
		if mstats != nil {
			fmt.Printf("Matched:  %d of %d examined\n", mstats.Matched, mstats.Examined)
			counters["match_examined"] = mstats.Examined
			counters["match_matched"] = mstats.Matched
		}
		if merr != nil {
			app.report("enrich", counters)
			return merr
		}
	}

	app.report("enrich", counters)
	return nil
}
