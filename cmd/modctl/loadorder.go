package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/modtroubleshooter/engine/internal/loadorder"
	"github.com/modtroubleshooter/engine/internal/pipeline"
)

var (
	loadOrderSlug     string
	loadOrderRevision int
)

var loadOrderCmd = &cobra.Command{
	Use:   "loadorder",
	Short: "Analyzes the plugin load order of a Nexus collection revision",
	RunE: func(cmd *cobra.Command, args []string) error {
		cliCfg := parseCLIConfig(cmd)
		env, err := buildPipelineEnv(cliCfg)
		if err != nil {
			return err
		}

		ctx := context.Background()
		extractor := pipeline.NewLoadOrderExtractor(env.downloader, env.extractor)
		analyzer := loadorder.NewAnalyzer()

		var result *loadorder.AnalysisResult
		err = runWithSpinner(fmt.Sprintf("Analyzing load order for %s revision %d...", loadOrderSlug, loadOrderRevision), func() error {
			revisionDetails, err := env.client.GetCollectionRevisionMods(ctx, loadOrderSlug, loadOrderRevision)
			if err != nil {
				return fmt.Errorf("fetch collection revision: %w", err)
			}

			collection, err := env.client.GetCollection(ctx, loadOrderSlug)
			if err != nil {
				return fmt.Errorf("fetch collection: %w", err)
			}

			pluginFiles, err := extractor.ExtractPlugins(ctx, env.client, collection.Game.DomainName, revisionDetails)
			if err != nil {
				var modErr *pipeline.ModFailureError
				if errors.As(err, &modErr) {
					return fmt.Errorf("load order analysis aborted, could not fetch %s: %w", modErr.ModName, modErr.Err)
				}
				return fmt.Errorf("extract plugins: %w", err)
			}

			result, err = analyzer.Analyze(ctx, pluginFiles)
			if err != nil {
				return fmt.Errorf("analyze load order: %w", err)
			}
			return nil
		})
		if err != nil {
			return err
		}

		printLoadOrderReport(result)
		return nil
	},
}

func printLoadOrderReport(result *loadorder.AnalysisResult) {
	s := result.Stats
	pterm.Println()
	pterm.DefaultSection.Println("Load Order Summary")
	pterm.Printf("Plugins: %d (%d ESM, %d ESP, %d ESL)\n", s.TotalPlugins, s.ESMCount, s.ESPCount, s.ESLCount)
	pterm.Printf("Issues: %d (%d errors, %d warnings)\n", s.TotalIssues, s.ErrorCount, s.WarningCount)
	pterm.Printf("Duplicate plugins: %d\n", s.DuplicatePlugins)

	if len(result.Issues) == 0 {
		pterm.Success.Println("No load order issues detected")
		return
	}

	tableData := pterm.TableData{{"Severity", "Type", "Plugin", "Related", "Message"}}
	for _, issue := range result.Issues {
		plugin := issue.Plugin
		related := issue.RelatedPlugin
		if issue.Severity == loadorder.SeverityError {
			plugin = pterm.Red(plugin)
		} else {
			plugin = pterm.Yellow(plugin)
		}
		tableData = append(tableData, []string{string(issue.Severity), string(issue.Type), plugin, related, issue.Message})
	}
	_ = pterm.DefaultTable.WithHasHeader().WithData(tableData).Render()
}

func init() {
	loadOrderCmd.Flags().StringVar(&loadOrderSlug, "slug", "", "collection slug or URL")
	loadOrderCmd.Flags().IntVar(&loadOrderRevision, "revision", 0, "collection revision number")
	loadOrderCmd.MarkFlagRequired("slug")
	loadOrderCmd.MarkFlagRequired("revision")
	rootCmd.AddCommand(loadOrderCmd)
}
