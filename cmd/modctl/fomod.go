package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/modtroubleshooter/engine/internal/fomod"
	"github.com/modtroubleshooter/engine/internal/handlers"
)

var (
	fomodGame   string
	fomodModID  int
	fomodFileID int
)

var fomodCmd = &cobra.Command{
	Use:   "fomod",
	Short: "Downloads a mod archive and reports its FOMOD installer configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cliCfg := parseCLIConfig(cmd)
		env, err := buildPipelineEnv(cliCfg)
		if err != nil {
			return err
		}

		ctx := context.Background()
		gameDomain := handlers.GetNexusDomain(fomodGame)

		var hasFomod bool
		var data *fomod.FomodData
		var archivePath, outputDir string

		err = runWithSpinner("Fetching download links and archive...", func() error {
			links, err := env.client.GetModFileDownloadLinks(ctx, gameDomain, fomodModID, fomodFileID)
			if err != nil {
				return fmt.Errorf("fetch download links: %w", err)
			}
			if len(links) == 0 {
				return fmt.Errorf("no download links available")
			}

			result, err := env.downloader.Download(ctx, links[0].URI, nil)
			if err != nil {
				return fmt.Errorf("download archive: %w", err)
			}
			archivePath = result.FilePath

			hasFomod, err = env.extractor.HasFomod(ctx, archivePath)
			if err != nil {
				return fmt.Errorf("inspect archive: %w", err)
			}
			if !hasFomod {
				return nil
			}

			extractResult, err := env.extractor.ExtractFomod(ctx, archivePath)
			if err != nil {
				return fmt.Errorf("extract FOMOD data: %w", err)
			}
			outputDir = extractResult.OutputDir

			parser, err := fomod.NewParser(outputDir)
			if err != nil {
				return fmt.Errorf("parse FOMOD data: %w", err)
			}
			data, err = parser.Parse()
			if err != nil {
				return fmt.Errorf("parse FOMOD data: %w", err)
			}
			return nil
		})
		if archivePath != "" {
			defer env.downloader.CleanupPath(archivePath)
		}
		if outputDir != "" {
			defer env.extractor.Cleanup(outputDir)
		}
		if err != nil {
			return err
		}

		if !hasFomod {
			pterm.Warning.Println("No FOMOD installer found in this archive")
			return nil
		}

		pterm.Success.Printf("FOMOD installer: %q\n", data.Config.ModuleName)
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(data)
	},
}

func init() {
	fomodCmd.Flags().StringVar(&fomodGame, "game", "", "game ID, e.g. skyrim")
	fomodCmd.Flags().IntVar(&fomodModID, "mod-id", 0, "Nexus mod ID")
	fomodCmd.Flags().IntVar(&fomodFileID, "file-id", 0, "Nexus file ID")
	fomodCmd.MarkFlagRequired("game")
	fomodCmd.MarkFlagRequired("mod-id")
	fomodCmd.MarkFlagRequired("file-id")
	rootCmd.AddCommand(fomodCmd)
}
