package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/modtroubleshooter/engine/internal/archive"
	"github.com/modtroubleshooter/engine/internal/config"
	"github.com/modtroubleshooter/engine/internal/nexus"
)

// cliConfig holds the flags shared by every modctl subcommand.
type cliConfig struct {
	APIKey  string
	DataDir string
}

var rootCmd = &cobra.Command{
	Use:   "modctl",
	Short: "Runs mod-analysis pipelines against Nexus Mods collections from a terminal",
	Long:  `A command-line companion to the mod troubleshooter HTTP API, for operators without the browser UI.`,
}

// Execute initializes the root command tree and delegates to Cobra for
// argument parsing and subcommand dispatch.
func Execute() {
	if !term.IsTerminal(int(os.Stdout.Fd())) || os.Getenv("NO_COLOR") != "" {
		pterm.DisableStyling()
		pterm.RawOutput = true
	}
	if err := rootCmd.Execute(); err != nil {
		pterm.Error.Println(err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("api-key", "", "Nexus Mods API key (overrides NEXUS_API_KEY)")
	rootCmd.PersistentFlags().String("data-dir", "", "Scratch directory for downloads/extraction (overrides DATA_DIR)")
}

func parseCLIConfig(cmd *cobra.Command) cliConfig {
	cfg := cliConfig{}
	cfg.APIKey, _ = cmd.Flags().GetString("api-key")
	cfg.DataDir, _ = cmd.Flags().GetString("data-dir")
	return cfg
}

// pipelineEnv bundles the constructed dependencies every subcommand needs:
// a Nexus client, a downloader, and an extractor, sized from the same
// configuration the HTTP server uses.
type pipelineEnv struct {
	client     *nexus.Client
	downloader *archive.Downloader
	extractor  *archive.Extractor
}

func buildPipelineEnv(cliCfg cliConfig) (*pipelineEnv, error) {
	appCfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}

	apiKey := cliCfg.APIKey
	if apiKey == "" {
		apiKey = appCfg.NexusAPIKey
	}
	if apiKey == "" {
		return nil, fmt.Errorf("a Nexus API key is required: pass --api-key or set NEXUS_API_KEY")
	}

	dataDir := cliCfg.DataDir
	if dataDir == "" {
		dataDir = appCfg.DataDir
	}

	client, err := nexus.NewClient(nexus.ClientConfig{
		APIKey:         apiKey,
		MaxRetries:     appCfg.MaxRetries,
		InitialBackoff: appCfg.InitialBackoff,
		MaxBackoff:     appCfg.MaxBackoff,
	})
	if err != nil {
		return nil, fmt.Errorf("create Nexus client: %w", err)
	}

	downloader, err := archive.NewDownloader(archive.DownloaderConfig{
		TempDir:     filepath.Join(dataDir, "downloads"),
		MaxFileSize: appCfg.MaxDownloadBytes,
	})
	if err != nil {
		return nil, fmt.Errorf("create downloader: %w", err)
	}

	extractor, err := archive.NewExtractor(archive.ExtractorConfig{
		TempDir:      filepath.Join(dataDir, "extracted"),
		MaxFileSize:  appCfg.MaxExtractedFileBytes,
		MaxTotalSize: appCfg.MaxExtractedTotalBytes,
	})
	if err != nil {
		return nil, fmt.Errorf("create extractor: %w", err)
	}

	return &pipelineEnv{client: client, downloader: downloader, extractor: extractor}, nil
}

// runWithSpinner executes work under a pterm spinner when stdout is a TTY,
// or as plain info/success/error lines otherwise.
func runWithSpinner(startMsg string, work func() error) error {
	if pterm.RawOutput {
		pterm.Info.Println(startMsg)
		err := work()
		if err != nil {
			pterm.Error.Println(err)
			return err
		}
		pterm.Success.Println("Done")
		return nil
	}

	spinner, _ := pterm.DefaultSpinner.Start(startMsg)
	err := work()
	if err != nil {
		spinner.Fail(err.Error())
		return err
	}
	spinner.Success("Done")
	return nil
}

func formatDuration(d time.Duration) string {
	return d.Round(time.Millisecond).String()
}
