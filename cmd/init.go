package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

// initFs is where init writes the config file
var initFs afero.Fs = afero.NewOsFs()

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the default configuration",
	Long: `Create a default config file at ~/.config/restodash/config.toml.

An existing file is left alone unless --force is given.`,
	Args: cobra.NoArgs,
	RunE: runInit,
}

type defaultConfig struct {
	API struct {
		URL     string `toml:"url"`
		Timeout string `toml:"timeout"`
	} `toml:"api"`
	UI struct {
		Locale  string `toml:"locale"`
		Verbose bool   `toml:"verbose"`
	} `toml:"ui"`
	Log struct {
		Level  string `toml:"level"`
		Format string `toml:"format"`
	} `toml:"log"`
	Mutation struct {
		Policy string `toml:"policy"`
	} `toml:"mutation"`
	DevServer struct {
		Addr           string `toml:"addr"`
		RestaurantName string `toml:"restaurant_name"`
		FailWrites     int    `toml:"fail_writes"`
		AlwaysFail     bool   `toml:"always_fail"`
		Latency        string `toml:"latency"`
	} `toml:"devserver"`
}

func init() {
	rootCmd.AddCommand(initCmd)

	initCmd.Flags().BoolVar(&initForce, "force", false, "Overwrite an existing config file")
}

func runInit(cmd *cobra.Command, args []string) error {
	home, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("failed to get home directory: %w", err)
	}

	configDir := filepath.Join(home, ".config", "restodash")
	configPath := filepath.Join(configDir, "config.toml")
	out := cmd.OutOrStdout()

	exists, err := afero.Exists(initFs, configPath)
	if err != nil {
		return fmt.Errorf("failed to check config file: %w", err)
	}
	if exists && !initForce {
		fmt.Fprintf(out, "Config already exists: %s\n", configPath)
		return nil
	}

	if err := initFs.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := initFs.OpenFile(configPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	if err := toml.NewEncoder(f).Encode(newDefaultConfig()); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	fmt.Fprintf(out, "✓ Created default config: %s\n", configPath)
	fmt.Fprintln(out, "  Set api.token or RESTODASH_API_TOKEN before talking to a real API")
	return nil
}

func newDefaultConfig() defaultConfig {
	var c defaultConfig
	c.API.URL = "http://localhost:3333"
	c.API.Timeout = "10s"
	c.UI.Locale = "en"
	c.Log.Level = "warn"
	c.Log.Format = "text"
	c.Mutation.Policy = "concurrent"
	c.DevServer.Addr = "localhost:3333"
	c.DevServer.RestaurantName = "Pizza Shop"
	c.DevServer.Latency = "0s"
	return c
}
