package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"askcode/config"
	"askcode/internal/bootstrap"
)

var (
	cfgFile   string
	cfg       *config.Config
	rootDir   string
	sessionID string
)

var rootCmd = &cobra.Command{
	Use:   "askcode",
	Short: "Ask grounded questions about an ingested codebase",
	Long: `askcode answers questions about a previously ingested codebase. Answers cite
the retrieved chunks they rely on; anything that cannot be grounded is refused.

Example usage:
  askcode query -s demo -q "where is the config loaded?"
  askcode suggest -s demo -q "add rate limiting to the API"
  askcode docs -s demo --type architecture --audience pm
  askcode serve --addr :8080`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error

		if rootDir == "" {
			rootDir, err = os.Getwd()
			if err != nil {
				return fmt.Errorf("failed to get working directory: %w", err)
			}
		}

		if cfgFile != "" {
			cfg, err = config.Load(cfgFile)
		} else {
			cfg, err = config.LoadFromDir(rootDir)
		}
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		return nil
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./askcode.yaml)")
	rootCmd.PersistentFlags().StringVarP(&rootDir, "dir", "d", "", "directory to look for config in (default is current directory)")
}

func GetConfig() *config.Config {
	return cfg
}

// withContainer builds the engine container for one command and releases it
// afterwards.
func withContainer(fn func(c *bootstrap.Container) error) error {
	c, err := bootstrap.NewProvider(GetConfig()).Get()
	if err != nil {
		return err
	}
	defer c.Close()
	return fn(c)
}

// addSessionFlag registers the required --session flag on cmd.
func addSessionFlag(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&sessionID, "session", "s", "", "session id of the ingested codebase (required)")
	_ = cmd.MarkFlagRequired("session")
}
