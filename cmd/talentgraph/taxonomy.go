package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/talentgraph/talentgraph-go/internal/taxonomy"
)

var taxonomyCmd = &cobra.Command{
	Use:   "taxonomy",
	Short: "Manage the crypto ecosystem taxonomy",
}

var taxonomyImportCmd = &cobra.Command{
	Use:   "import",
	Short: "Import an ecosystem taxonomy export (JSONL)",
	Long: `Import reads a crypto-ecosystems JSONL export and seeds ecosystems,
sub-ecosystems, repositories and their links. Re-running the same import
is a no-op.

Examples:
  talentgraph taxonomy import --jsonl exports.jsonl
  talentgraph taxonomy import --jsonl exports.jsonl --priority-only`,
	RunE: runTaxonomyImport,
}

func init() {
	taxonomyImportCmd.Flags().String("jsonl", "", "path to the taxonomy JSONL export (required)")
	taxonomyImportCmd.Flags().Bool("priority-only", false, "import only priority tier 1-2 ecosystems")
	taxonomyImportCmd.MarkFlagRequired("jsonl")
	taxonomyCmd.AddCommand(taxonomyImportCmd)
}

func runTaxonomyImport(cmd *cobra.Command, args []string) error {
	path, _ := cmd.Flags().GetString("jsonl")
	priorityOnly, _ := cmd.Flags().GetBool("priority-only")

	app, err := openApp(cmd.Context(), "taxonomy")
	if err != nil {
		return err
	}
	defer app.close()

	importer := taxonomy.NewImporter(app.store, app.logger)
	stats, err := importer.Run(cmd.Context(), path, priorityOnly)
	if stats != nil {
		fmt.Printf("Ecosystems:     %d (%d sub-ecosystems)\n", stats.Ecosystems, stats.SubEcosystems)
		fmt.Printf("Repositories:   %d (%d links)\n", stats.Repos, stats.Links)
		fmt.Printf("Malformed rows: %d\n", stats.Malformed)
		if priorityOnly {
			fmt.Printf("Skipped (tier): %d\n", stats.SkippedByTier)
		}
		app.report("taxonomy", map[string]int{
			"ecosystems":      stats.Ecosystems,
			"sub_ecosystems":  stats.SubEcosystems,
			"repositories":    stats.Repos,
			"links":           stats.Links,
			"malformed":       stats.Malformed,
			"skipped_by_tier": stats.SkippedByTier,
		})
	}
	return err
}
