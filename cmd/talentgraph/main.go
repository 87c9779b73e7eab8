package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/talentgraph/talentgraph-go/internal/config"
)

var (
	// Version information (set by build flags)
	Version   = "dev"
	BuildTime = "unknown"

	cfgFile string
	verbose bool
	log     *logrus.Logger
	cfg     *config.Config
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			fmt.Fprintln(os.Stderr, "interrupted: checkpoint written, re-run the same command to resume")
			os.Exit(130)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "talentgraph",
	Short: "TalentGraph - GitHub-centric talent graph enrichment pipeline",
	Long: `TalentGraph ingests crypto ecosystem taxonomies, crawls GitHub for
repositories and contributors, enriches profiles, links them to known
persons, and derives skills and collaboration edges.`,
	Version: Version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		log = logrus.New()
		if verbose {
			log.SetLevel(logrus.DebugLevel)
		} else {
			log.SetLevel(logrus.InfoLevel)
		}

		var err error
		cfg, err = config.Load(cfgFile)
		if err != nil {
			log.Warnf("Failed to load config: %v, using defaults", err)
			cfg = config.Default()
		}
		return cfg.Validate()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: .talentgraph/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	rootCmd.SetVersionTemplate(`TalentGraph {{.Version}}
Build time: ` + BuildTime + `
`)

	rootCmd.AddCommand(taxonomyCmd)
	rootCmd.AddCommand(discoverCmd)
	rootCmd.AddCommand(enrichCmd)
	rootCmd.AddCommand(matchCmd)
	rootCmd.AddCommand(skillsCmd)
	rootCmd.AddCommand(collabCmd)
	rootCmd.AddCommand(reconcileCmd)
	rootCmd.AddCommand(statusCmd)
}
