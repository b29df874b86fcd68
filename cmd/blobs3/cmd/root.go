package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/galxe/blobs3/internal/zerolog"
	"github.com/galxe/blobs3/pkg/config"
	"github.com/galxe/blobs3/pkg/version"
)

var (
	// Global flags
	cfgFile   string
	debugMode bool
	logFormat string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "blobs3",
	Short: "Token-gated blob storage gateway",
	Long: `blobs3 serves blobs from an object store and decides access from
on-chain token ownership.

Rules grant CREATE, READ or UPDATE on storage paths to holders of ERC20,
ERC721 or ERC1155 tokens, or to everyone. Chains are health checked and
rules on unhealthy chains never grant.

Configuration:
  --config /path/to/blobs3.yaml, overridden by BLOBS3_BLOCKCHAIN_CONFIG,
  BLOBS3_ACCESS_CONFIG, BLOBS3_CORS_ALLOWED_ORIGINS and BLOBS3_DEBUG`,
	Version:       fmt.Sprintf("%s (Build: %s, Commit: %s)", version.Version, version.BuildTime, version.GitCommit),
	SilenceUsage:  true,
	SilenceErrors: false,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"config file (defaults and BLOBS3_* environment variables are used when empty)")
	rootCmd.PersistentFlags().BoolVar(&debugMode, "debug", false,
		"enable debug logging")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", zerolog.FormatConsole,
		"log format, json or console")

	rootCmd.SetVersionTemplate(`Version: {{.Version}}
`)
}

// loadConfig reads the config file and applies the global flags
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfig(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if debugMode {
		cfg.Logging.Debug = true
	}
	format := logFormat
	if !rootCmd.PersistentFlags().Changed("log-format") && cfg.Logging.Format != "" {
		format = cfg.Logging.Format
	}
	zerolog.InitLogger(cfg.Logging.Debug, format)
	return cfg, nil
}
