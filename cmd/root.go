package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/stormalone/reedline/pkg/bootstrap"
	"github.com/stormalone/reedline/pkg/config"
	histerrors "github.com/stormalone/reedline/pkg/errors"
)

var cfgFile string
var verbose bool
var appConfig *config.Config

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "rlhist",
	Short: "rlhist - persistent shell command history",
	Long: `rlhist records executed shell commands with their context (working directory,
host, session, exit status and duration) in a SQLite database and lets you
search, inspect, update and export them.

Hook 'rlhist record' and 'rlhist update' into your shell's preexec/precmd
functions to build a searchable history shared by all your sessions.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	// Pre-parse global flags so the configuration is loaded before any
	// command runs.
	cfgFile, verbose = bootstrap.PreParseGlobalFlags(os.Args)

	if err := initConfig(); err != nil {
		fmt.Fprintln(os.Stderr, histerrors.FormatUserError(err))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, histerrors.FormatUserError(err))
		stop()
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(func() {
		_ = initConfig()
	})

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "C", "", "config file (default is $HOME/.config/rlhist/config.toml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output (debug logging)")
}

// initConfig reads in config file and ENV variables if set.
func initConfig() error {
	var err error
	appConfig, verbose, err = bootstrap.InitConfig(cfgFile, verbose)
	return err
}

// loadConfig returns the already loaded configuration or loads it if it hasn't been yet.
func loadConfig() (*config.Config, error) {
	if appConfig != nil {
		return appConfig, nil
	}
	return config.Load()
}

// resetConfig clears the cached configuration.
// This is primarily used in tests to ensure each test starts with a fresh config.
func resetConfig() {
	appConfig = nil
	bootstrap.Reset()
	viper.Reset()
}
