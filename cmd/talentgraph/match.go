package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/talentgraph/talentgraph-go/internal/match"
)

var matchCmd = &cobra.Command{
	Use:   "match",
	Short: "Link GitHub profiles to known persons",
}

var matchProfilesCmd = &cobra.Command{
	Use:   "profiles",
	Short: "Run the profile-to-person match cascade",
	Long: `Match runs unlinked enriched profiles through a cascade of strategies
ordered by decreasing precision (email, LinkedIn, name+company, fuzzy).
Links are written only above the auto-match threshold; existing links
are never overwritten.

Examples:
  talentgraph match profiles --limit 500
  talentgraph match profiles --all
  talentgraph match profiles --all --aggressive`,
	RunE: runMatchProfiles,
}

func init() {
	matchProfilesCmd.Flags().Int("limit", 100, "max profiles to examine")
	matchProfilesCmd.Flags().Bool("all", false, "examine every unlinked enriched profile")
	matchProfilesCmd.Flags().Bool("aggressive", false, "lower the auto-match threshold to 0.60")
	matchCmd.AddCommand(matchProfilesCmd)
}

func runMatchProfiles(cmd *cobra.Command, args []string) error {
	limit, _ := cmd.Flags().GetInt("limit")
	all, _ := cmd.Flags().GetBool("all")
	aggressive, _ := cmd.Flags().GetBool("aggressive")
	if all {
		limit = 0
	}

	app, err := openApp(cmd.Context(), "match")
	if err != nil {
		return err
	}
	defer app.close()

	matchCfg := cfg.Match
	if aggressive {
		matchCfg.Mode = "aggressive"
	}

	resolver := match.NewResolver(app.store, matchCfg, app.logger)
	stats, err := resolver.ResolveAll(cmd.Context(), limit)
	if stats != nil {
		fmt.Printf("Examined:  %d\n", stats.Examined)
		fmt.Printf("Matched:   %d (below threshold: %d, no match: %d)\n", stats.Matched, stats.BelowBar, stats.NoMatch)
		fmt.Printf("Conflicts: %d\n", stats.Conflicts)

		strategies := make([]string, 0, len(stats.ByStrategy))
		for s := range stats.ByStrategy {
			strategies = append(strategies, s)
		}
		sort.Strings(strategies)
		for _, s := range strategies {
			fmt.Printf("  %-20s %d\n", s, stats.ByStrategy[s])
		}

		app.report("match", map[string]int{
			"examined":  stats.Examined,
			"matched":   stats.Matched,
			"below_bar": stats.BelowBar,
			"no_match":  stats.NoMatch,
			"conflicts": stats.Conflicts,
		})
	}
	return err
}
