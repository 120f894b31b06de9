package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/modtroubleshooter/engine/internal/conflict"
	"github.com/modtroubleshooter/engine/internal/pipeline"
)

var (
	conflictsSlug          string
	conflictsRevision      int
	conflictsIncludeHashes bool
)

var conflictsCmd = &cobra.Command{
	Use:   "conflicts",
	Short: "Analyzes file conflicts across the mods in a Nexus collection revision",
	RunE: func(cmd *cobra.Command, args []string) error {
		cliCfg := parseCLIConfig(cmd)
		env, err := buildPipelineEnv(cliCfg)
		if err != nil {
			return err
		}

		ctx := context.Background()
		extractor := pipeline.NewConflictExtractor(env.downloader)
		analyzer := conflict.NewAnalyzer()

		var result *conflict.AnalysisResult
		err = runWithSpinner(fmt.Sprintf("Analyzing conflicts for %s revision %d...", conflictsSlug, conflictsRevision), func() error {
			revisionDetails, err := env.client.GetCollectionRevisionMods(ctx, conflictsSlug, conflictsRevision)
			if err != nil {
				return fmt.Errorf("fetch collection revision: %w", err)
			}

			collection, err := env.client.GetCollection(ctx, conflictsSlug)
			if err != nil {
				return fmt.Errorf("fetch collection: %w", err)
			}

			modManifests, err := extractor.ExtractManifests(ctx, env.client, collection.Game.DomainName, revisionDetails, conflictsIncludeHashes)
			if err != nil {
				var modErr *pipeline.ModFailureError
				if errors.As(err, &modErr) {
					return fmt.Errorf("conflict analysis aborted, could not fetch %s: %w", modErr.ModName, modErr.Err)
				}
				return fmt.Errorf("extract manifests: %w", err)
			}

			if len(modManifests) < 2 {
				return fmt.Errorf("at least two mods with extractable manifests are required for conflict analysis")
			}

			result, err = analyzer.Analyze(ctx, modManifests)
			if err != nil {
				return fmt.Errorf("analyze conflicts: %w", err)
			}
			return nil
		})
		if err != nil {
			return err
		}

		printConflictReport(result)
		return nil
	},
}

func printConflictReport(result *conflict.AnalysisResult) {
	s := result.Stats
	pterm.Println()
	pterm.DefaultSection.Println("Conflict Summary")
	pterm.Printf("Files: %d total, %d unique\n", s.TotalFiles, s.UniqueFiles)
	pterm.Printf("Conflicts: %d (%d critical, %d high, %d medium, %d low)\n",
		s.TotalConflicts, s.CriticalCount, s.HighCount, s.MediumCount, s.LowCount)

	if len(result.Conflicts) == 0 {
		pterm.Success.Println("No file conflicts detected")
		return
	}

	tableData := pterm.TableData{{"Severity", "Path", "Winner", "Losers"}}
	for _, c := range result.Conflicts {
		path := c.Path
		switch c.Severity {
		case conflict.SeverityCritical, conflict.SeverityHigh:
			path = pterm.Red(path)
		case conflict.SeverityMedium:
			path = pterm.Yellow(path)
		}

		winner := ""
		if c.Winner != nil {
			winner = c.Winner.ModName
		}
		losers := ""
		for i, l := range c.Losers {
			if i > 0 {
				losers += ", "
			}
			losers += l.ModName
		}

		tableData = append(tableData, []string{string(c.Severity), path, winner, losers})
	}
	_ = pterm.DefaultTable.WithHasHeader().WithData(tableData).Render()
}

func init() {
	conflictsCmd.Flags().StringVar(&conflictsSlug, "slug", "", "collection slug or URL")
	conflictsCmd.Flags().IntVar(&conflictsRevision, "revision", 0, "collection revision number")
	conflictsCmd.Flags().BoolVar(&conflictsIncludeHashes, "include-hashes", false, "enable content-hash based duplicate detection (slower)")
	conflictsCmd.MarkFlagRequired("slug")
	conflictsCmd.MarkFlagRequired("revision")
	rootCmd.AddCommand(conflictsCmd)
}
