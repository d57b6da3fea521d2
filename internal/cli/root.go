// Package cli provides the command-line interface for the offload client:
// download, pause, and list commands against the archive download driver.
// The root command carries persistent flags and initializes a
// package-level logger in PersistentPreRun before any subcommand runs.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/offloadhq/offload-client/internal/api"
	"github.com/offloadhq/offload-client/internal/config"
	"github.com/offloadhq/offload-client/internal/driver"
	"github.com/offloadhq/offload-client/internal/events"
	"github.com/offloadhq/offload-client/internal/logging"
	"github.com/offloadhq/offload-client/internal/tasks"
	"github.com/offloadhq/offload-client/internal/version"
)

var (
	cfgFile    string
	apiBaseURL string
	masterKey  string
	verbose    bool

	logger   *logging.Logger
	registry *tasks.Registry
	bus      *events.Bus
)

// NewRootCmd builds the offload-cli command tree.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "offload-cli",
		Short: "Download and decrypt archives from the offload storage service",
		Long: `offload-cli ` + version.Version + `

Downloads an encrypted, chunked archive, verifies and reassembles its
parts, and decrypts the result locally with a master key you control.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logger = logging.New()
			if verbose {
				logger.Infof("verbose logging enabled")
			}
			registry = tasks.NewRegistry()
			bus = events.NewBus()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "Configuration file path")
	rootCmd.PersistentFlags().StringVar(&apiBaseURL, "api-url", "", "Service base URL (overrides config)")
	rootCmd.PersistentFlags().StringVar(&masterKey, "master-key", "", "Master key (overrides config and prompt)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")

	rootCmd.AddCommand(newDownloadCmd())
	rootCmd.AddCommand(newPauseCmd())
	rootCmd.AddCommand(newListCmd())
	rootCmd.AddCommand(newBatchCmd())

	return rootCmd
}

// Execute runs the root command.
func Execute() error {
	cmd := NewRootCmd()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return err
	}
	return nil
}

// loadDriver builds the process-wide Driver from configuration and any
// CLI overrides, prompting for the master key if none is configured.
func loadDriver() (*driver.Driver, error) {
	cfg, err := config.LoadCSV(cfgFile)
	if err != nil {
		return nil, err
	}
	if apiBaseURL != "" {
		cfg.APIBaseURL = apiBaseURL
	}
	if masterKey != "" {
		cfg.MasterKey = masterKey
	}
	if cfg.MasterKey == "" {
		key, err := promptMasterKey()
		if err != nil {
			return nil, err
		}
		cfg.MasterKey = key
	}

	apiClient, err := api.NewClient(cfg)
	if err != nil {
		return nil, err
	}

	return driver.New(cfg, apiClient, registry, bus), nil
}
