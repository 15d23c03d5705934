package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ramonehamilton/cardsynergy/internal/config"
	"github.com/ramonehamilton/cardsynergy/internal/logging"
	"github.com/ramonehamilton/cardsynergy/internal/version"
)

// cli carries state shared by all commands.
type cli struct {
	configPath string
	config     *config.Config
}

func newRootCmd() *cobra.Command {
	c := &cli{}

	rootCmd := &cobra.Command{
		Use:   version.Service,
		Short: "Magic: The Gathering card synergy and similarity recommendations",
		Long: `cardsynergy scores how well cards work together, finds look-alike
cards, and tags cards with strategic themes.

Examples:
  # Load a Scryfall bulk file and start the API
  cardsynergy import --file oracle-cards.json.gz
  cardsynergy serve

  # Ask for synergies from the command line
  cardsynergy recommend <card-id> --type synergy --limit 10`,
		Version:       version.Version,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return c.load()
		},
	}

	rootCmd.PersistentFlags().StringVar(&c.configPath, "config", "", "config file (default is ~/.cardsynergy/config.toml)")

	rootCmd.AddCommand(newServeCmd(c))
	rootCmd.AddCommand(newMigrateCmd(c))
	rootCmd.AddCommand(newImportCmd(c))
	rootCmd.AddCommand(newClassifyCmd(c))
	rootCmd.AddCommand(newRecommendCmd(c))
	rootCmd.AddCommand(newResetThemesCmd(c))
	rootCmd.AddCommand(newBackupCmd(c))
	rootCmd.AddCommand(newConfigCmd(c))

	return rootCmd
}

// load reads the configuration and initializes logging.
func (c *cli) load() error {
	if c.configPath == "" {
		path, err := config.DefaultPath()
		if err != nil {
			return err
		}
		c.configPath = path
	}

	cfg, err := config.Load(c.configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	c.config = cfg

	logging.Init(logging.Config{
		Level:     cfg.Log.Level,
		Format:    cfg.Log.Format,
		Caller:    cfg.Log.Caller,
		Timestamp: cfg.Log.Timestamp,
	})
	return nil
}
