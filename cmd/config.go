package cmd

import (
	"io"

	"github.com/cockroachdb/errors"
	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/stormalone/reedline/pkg/config"
)

// configCmd groups configuration commands
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect rlhist configuration",
	Long: `Inspect the effective rlhist configuration.

Settings come from ~/.config/rlhist/config.toml (or --config), a .rlhist.toml
in the current project, and RLHIST_* environment variables, in increasing
precedence.`,
}

// configShowCmd prints the effective configuration
var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration as TOML",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return errors.Wrap(err, "failed to load configuration")
		}
		return runConfigShow(cmd.OutOrStdout(), cfg, viper.ConfigFileUsed())
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
}

func runConfigShow(out io.Writer, cfg *config.Config, source string) error {
	if source != "" {
		if _, err := io.WriteString(out, "# Loaded from "+source+"\n"); err != nil {
			return err
		}
	}

	enc := toml.NewEncoder(out)
	enc.SetIndentTables(true)
	return errors.Wrap(enc.Encode(cfg), "failed to encode configuration")
}
