package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/talentgraph/talentgraph-go/internal/reconcile"
)

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Reconcile persons against external scrape results",
}

var reconcilePersonsCmd = &cobra.Command{
	Use:   "persons",
	Short: "Apply LinkedIn scraper verdicts to the person store",
	Long: `Reconcile reads a scraper result CSV and handles persons whose
LinkedIn profile no longer exists: persons without GitHub contributions
are deleted, persons with contributions are flagged for review.

Examples:
  talentgraph reconcile persons --csv scrape_results.csv --dry-run
  talentgraph reconcile persons --csv scrape_results.csv`,
	RunE: runReconcilePersons,
}

func init() {
	reconcilePersonsCmd.Flags().String("csv", "", "path to the scraper result CSV (required)")
	reconcilePersonsCmd.Flags().Bool("dry-run", false, "print planned actions without applying them")
	reconcilePersonsCmd.MarkFlagRequired("csv")
	reconcileCmd.AddCommand(reconcilePersonsCmd)
}

func runReconcilePersons(cmd *cobra.Command, args []string) error {
	path, _ := cmd.Flags().GetString("csv")
	dryRun, _ := cmd.Flags().GetBool("dry-run")

	app, err := openApp(cmd.Context(), "reconcile")
	if err != nil {
		return err
	}
	defer app.close()

	r := reconcile.NewReconciler(app.store, app.logger)
	r.DryRun = dryRun

	stats, err := r.Run(cmd.Context(), path)
	if stats != nil {
		if dryRun && len(stats.Actions) > 0 {
			fmt.Print(stats.Diff())
		}
		fmt.Printf("Rows:     %d (flagged gone: %d)\n", stats.Rows, stats.Flagged)
		fmt.Printf("Deleted:  %d\n", stats.Deleted)
		fmt.Printf("Reviewed: %d\n", stats.Reviewed)
		fmt.Printf("Unknown:  %d\n", stats.NotFound)
		if !dryRun {
			app.report("reconcile", map[string]int{
				"rows":     stats.Rows,
				"flagged":  stats.Flagged,
				"deleted":  stats.Deleted,
				"reviewed": stats.Reviewed,
				"unknown":  stats.NotFound,
			})
		}
	}
	return err
}
