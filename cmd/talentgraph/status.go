package main

import (
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/talentgraph/talentgraph-go/internal/github"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show pipeline progress",
	Long: `Status summarizes every pipeline stage: taxonomy size, enrichment
queue, matching coverage, derived skills, collaboration edges, and any
resumable checkpoints.`,
	RunE: runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	app, err := openApp(cmd.Context(), "status")
	if err != nil {
		return err
	}
	defer app.close()

	ctx := cmd.Context()

	ecosystems, err := app.store.CountEcosystems(ctx, 0)
	if err != nil {
		return err
	}
	priority, err := app.store.CountEcosystems(ctx, 2)
	if err != nil {
		return err
	}
	fmt.Printf("Ecosystems:     %d (%d priority tier 1-2)\n", ecosystems, priority)

	discoveries, err := app.store.CountDiscoveries(ctx)
	if err != nil {
		return err
	}
	types := make([]string, 0, len(discoveries))
	for t := range discoveries {
		types = append(types, t)
	}
	sort.Strings(types)
	for _, t := range types {
		fmt.Printf("Discovered:     %d %s\n", discoveries[t], t)
	}

	st, err := app.store.GetEnrichmentStatus(ctx, cfg.Enrich.StaleDays)
	if err != nil {
		return err
	}
	fmt.Printf("Profiles:       %d total, %d enriched (%d stale), %d unenriched\n",
		st.Total, st.Enriched, st.Stale, st.Unenriched)
	fmt.Printf("Linked:         %d profiles matched to persons\n", st.Linked)

	personSkills, err := app.store.CountPersonSkills(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("Person skills:  %d\n", personSkills)

	edges, err := app.store.CountEdges(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("Collab edges:   %d\n", edges)

	client := github.NewClient(cfg.GitHub, app.logger, nil)
	if remaining, resetAt, err := client.CheckRateLimit(ctx); err != nil {
		fmt.Printf("API budget:     unavailable (%v)\n", err)
	} else {
		fmt.Printf("API budget:     %d requests, resets in %s\n",
			remaining, time.Until(resetAt).Round(time.Minute))
	}

	cps, err := app.checkpoints.All()
	if err != nil {
		return err
	}
	if len(cps) > 0 {
		fmt.Println("\nResumable checkpoints:")
		for _, cp := range cps {
			fmt.Printf("  %-10s last=%s done=%d updated=%s\n",
				cp.Subsystem, cp.LastID, len(cp.Done), cp.UpdatedAt.Format("2006-01-02 15:04:05"))
		}
	}
	return nil
}
