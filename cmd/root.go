package cmd

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/pders01/restodash/internal/config"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/subosito/gotenv"
)

var (
	cfgFile string

	// flagBindings are applied on every initConfig, after viper is set up
	flagBindings []func() error
)

var rootCmd = &cobra.Command{
	Use:   "restodash",
	Short: "Manage your restaurant from the command line",
	Long: `restodash is a client for the restaurant management API:
  - show and edit the profile customers see
  - register a new restaurant and its manager
  - run a local stand-in API for development

Profile edits are applied to the local view right away and rolled back
if the API rejects them.`,
	SilenceUsage: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default is $HOME/.config/restodash/config.toml)")
	flags.String("api-url", "", "restaurant API endpoint")
	flags.String("locale", "", "language of notifications: en|pt-BR")
	flags.Bool("verbose", false, "show error details in notifications")
	flags.String("log-level", "", "log level: debug|info|warn|error")
	flags.Bool("metrics", false, "print collected metrics to stderr when the command ends")
	flags.Bool("trace", false, "print a trace span for every API request to stderr")

	bindFlags(flags, map[string]string{
		"api.url":           "api-url",
		"ui.locale":         "locale",
		"ui.verbose":        "verbose",
		"log.level":         "log-level",
		"telemetry.metrics": "metrics",
		"telemetry.trace":   "trace",
	})
}

// bindFlags ties config keys to flags so a flag set on the command line wins
func bindFlags(flags *pflag.FlagSet, keys map[string]string) {
	flagBindings = append(flagBindings, func() error {
		for key, name := range keys {
			if err := viper.BindPFlag(key, flags.Lookup(name)); err != nil {
				return fmt.Errorf("failed to bind flag %s: %w", name, err)
			}
		}
		return nil
	})
}

func initConfig() {
	// Secrets such as RESTODASH_API_TOKEN may live in a local .env file
	if err := gotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintln(os.Stderr, "Warning: failed to load .env:", err)
	}

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}

		viper.AddConfigPath(filepath.Join(home, ".config", "restodash"))
		viper.SetConfigType("toml")
		viper.SetConfigName("config")
	}

	viper.SetEnvPrefix(config.EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	config.SetDefaults()
	for _, bind := range flagBindings {
		if err := bind(); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	}

	readErr := viper.ReadInConfig()

	setupLogging(os.Stderr)

	if readErr == nil {
		slog.Debug("using config file", "path", viper.ConfigFileUsed())
	} else if cfgFile != "" {
		slog.Warn("failed to read config file", "path", cfgFile, "error", readErr)
	}
}

// setupLogging installs the default slog logger from log.level and log.format
func setupLogging(w io.Writer) {
	level, err := config.ParseLogLevel(viper.GetString("log.level"))
	if err != nil {
		fmt.Fprintln(os.Stderr, "Warning:", err)
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	switch viper.GetString("log.format") {
	case "json":
		handler = slog.NewJSONHandler(w, opts)
	default:
		handler = slog.NewTextHandler(w, opts)
	}

	slog.SetDefault(slog.New(handler))
}
