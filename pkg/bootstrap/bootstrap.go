package bootstrap

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/stormalone/reedline/pkg/config"
	histerrors "github.com/stormalone/reedline/pkg/errors"
)

// EnvPrefix is prepended to every environment override, e.g.
// RLHIST_HISTORY_DATABASE_PATH.
const EnvPrefix = "RLHIST"

// LocalConfigName is the per-project config file merged over the user config.
const LocalConfigName = ".rlhist.toml"

var (
	lastLoadedConfig  string
	lastLoadedVerbose bool
	loadedConfig      *config.Config
)

// PreParseGlobalFlags manually scans os.Args for --config and --verbose flags
// before the main Cobra execution. This is a bootstrap step for configuration.
// It stops scanning as soon as it hits a non-flag argument or the "--" marker.
func PreParseGlobalFlags(args []string) (string, bool) {
	var cfgFile string
	var verbose bool

	for i := 1; i < len(args); i++ {
		arg := args[i]

		// Stop parsing at the standard end-of-options marker
		if arg == "--" {
			break
		}

		// Stop parsing at the first non-flag argument (the subcommand)
		if !strings.HasPrefix(arg, "-") {
			break
		}

		switch {
		case arg == "--config" || arg == "-C":
			if i+1 < len(args) {
				cfgFile = args[i+1]
				i++
			}
		case strings.HasPrefix(arg, "--config="):
			cfgFile = strings.TrimPrefix(arg, "--config=")
		case strings.HasPrefix(arg, "-C="):
			cfgFile = strings.TrimPrefix(arg, "-C=")
		case strings.HasPrefix(arg, "-C") && len(arg) > 2:
			cfgFile = arg[2:]
		case arg == "--verbose" || arg == "-v":
			verbose = true
		}
	}

	return cfgFile, verbose
}

// InitConfig reads in config file and ENV variables if set.
// It returns the loaded config and the actual verbosity state.
func InitConfig(cfgFile string, verbose bool) (*config.Config, bool, error) {
	// Skip if already loaded with same parameters (unless in test)
	if os.Getenv("GO_TEST") != "true" && loadedConfig != nil && cfgFile == lastLoadedConfig && verbose == lastLoadedVerbose {
		return loadedConfig, verbose, nil
	}

	// Reset Viper state to avoid carrying over stale settings from previous loads.
	viper.Reset()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(filepath.Dir(config.DefaultConfigPath()))
		viper.SetConfigType("toml")
		viper.SetConfigName("config")
	}

	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	err := viper.ReadInConfig()
	switch {
	case err == nil:
		if verbose {
			fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
		}
	case cfgFile != "":
		// An explicitly named file must exist and parse.
		return nil, verbose, histerrors.NewConfigErrorWithCause("", "could not read config file "+cfgFile, err)
	}

	// Load project-local config (.rlhist.toml) if present
	LoadLocalConfig(verbose)

	cfg, err := config.Load()
	if err != nil {
		return nil, verbose, err
	}

	// Update state
	lastLoadedConfig = cfgFile
	lastLoadedVerbose = verbose
	loadedConfig = cfg

	return cfg, verbose, nil
}

// LoadLocalConfig merges .rlhist.toml from the git root and the current
// directory, in that order, over the user config.
func LoadLocalConfig(verbose bool) {
	var localConfigPaths []string

	if gitRoot, err := FindGitRoot(); err == nil && gitRoot != "" {
		localConfigPaths = append(localConfigPaths, filepath.Join(gitRoot, LocalConfigName))
		cwd, _ := os.Getwd()
		if cwd != gitRoot {
			localConfigPaths = append(localConfigPaths, LocalConfigName)
		}
	} else {
		localConfigPaths = append(localConfigPaths, LocalConfigName)
	}

	for _, configPath := range localConfigPaths {
		if _, err := os.Stat(configPath); err != nil {
			continue
		}

		localViper := viper.New()
		localViper.SetConfigFile(configPath)

		if err := localViper.ReadInConfig(); err != nil {
			if verbose {
				fmt.Fprintf(os.Stderr, "Warning: could not read local config %s: %v\n", configPath, err)
			}
			continue
		}

		if verbose {
			fmt.Fprintf(os.Stderr, "Using project config: %s\n", configPath)
		}

		if err := viper.MergeConfigMap(localViper.AllSettings()); err != nil {
			if verbose {
				fmt.Fprintf(os.Stderr, "Warning: could not merge local config: %v\n", err)
			}
		}
	}
}

// FindGitRoot finds the root of the current git repository
func FindGitRoot() (string, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return "", err
	}

	dir := cwd
	for {
		gitPath := filepath.Join(dir, ".git")
		if info, err := os.Stat(gitPath); err == nil {
			if info.IsDir() || info.Mode().IsRegular() {
				return dir, nil
			}
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", nil
		}
		dir = parent
	}
}

// Reset clears the cached configuration state.
func Reset() {
	lastLoadedConfig = ""
	lastLoadedVerbose = false
	loadedConfig = nil
}
