package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/talentgraph/talentgraph-go/internal/skills"
)

var skillsCmd = &cobra.Command{
	Use:   "skills",
	Short: "Derive skills from repository languages",
}

var skillsExtractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Tag repositories with language skills and derive person skills",
	Long: `Extract seeds the language skill catalog, tags repositories by their
primary language, and aggregates contribution evidence into per-person
skill records with proficiency scores.

Examples:
  talentgraph skills extract
  talentgraph skills extract --repos-only --limit 500
  talentgraph skills extract --all`,
	RunE: runSkillsExtract,
}

func init() {
	skillsExtractCmd.Flags().Bool("repos-only", false, "tag repositories without deriving person skills")
	skillsExtractCmd.Flags().Int("limit", 1000, "max records per phase")
	skillsExtractCmd.Flags().Bool("all", false, "process everything, ignoring --limit")
	skillsCmd.AddCommand(skillsExtractCmd)
}

func runSkillsExtract(cmd *cobra.Command, args []string) error {
	reposOnly, _ := cmd.Flags().GetBool("repos-only")
	limit, _ := cmd.Flags().GetInt("limit")
	all, _ := cmd.Flags().GetBool("all")
	if all {
		limit = 0
	}

	app, err := openApp(cmd.Context(), "skills")
	if err != nil {
		return err
	}
	defer app.close()

	mapper := skills.NewMapper(app.store, app.logger)
	stats, err := mapper.Run(cmd.Context(), reposOnly, limit)
	if stats != nil {
		fmt.Printf("Repos tagged:      %d (unknown languages: %d)\n", stats.ReposTagged, stats.UnknownLanguages)
		if !reposOnly {
			fmt.Printf("Person skills:     %d\n", stats.PersonSkills)
		}
		app.report("skills", map[string]int{
			"repos_tagged":      stats.ReposTagged,
			"unknown_languages": stats.UnknownLanguages,
			"person_skills":     stats.PersonSkills,
		})
	}
	return err
}
