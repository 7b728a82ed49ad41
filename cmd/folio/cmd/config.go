package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Rohianon/folio/cmd/folio/internal/output"
	"github.com/Rohianon/folio/pkg/config"
	apperrors "github.com/Rohianon/folio/pkg/errors"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration commands",
	Long:  "View and modify CLI configuration.",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Long:  "Display the effective configuration after file, environment and defaults are merged.",
	RunE:  runConfigShow,
}

var configSetCmd = &cobra.Command{
	Use:   "set KEY VALUE",
	Short: "Set a configuration value",
	Long: `Set a configuration value in ~/.folio/folio.yaml.

Available keys:
  api.url            Backend base URL (default: http://localhost:8093/api)
  api.timeout        Per-request timeout (default: 10s)
  refresh.interval   Dashboard refresh interval (default: 30s)
  refresh.schedule   Cron schedule for 'folio watch' (default: @every 30s)
  history.capacity   Points kept for the value chart (default: 20)
  display.currency   Currency code for amounts (default: INR)
  display.format     Default output format: table, json (default: table)
  charts.dir         Where chart files are written
  charts.format      png or svg (default: png)
  storage.path       Watchlist and alert file (default: ~/.folio/local.json)
  logging.level      debug, info, warn, error (default: info)
  logging.file       Log file (the dashboard defaults to ~/.folio/folio.log)`,
	Args: cobra.ExactArgs(2),
	RunE: runConfigSet,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show config file path",
	Long:  "Display the path to the configuration file.",
	RunE:  runConfigPath,
}

var settableKeys = []string{
	"api.url",
	"api.timeout",
	"refresh.interval",
	"refresh.schedule",
	"history.capacity",
	"display.currency",
	"display.format",
	"charts.dir",
	"charts.format",
	"storage.path",
	"logging.level",
	"logging.file",
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configPathCmd)
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	if isJSON() {
		return output.JSON(cfg)
	}

	output.Header("Configuration")
	output.Blank()
	output.KeyValue([][]string{
		{"api.url", cfg.API.URL},
		{"api.timeout", cfg.API.Timeout.String()},
		{"refresh.interval", cfg.Refresh.Interval.String()},
		{"refresh.schedule", cfg.Refresh.Schedule},
		{"history.capacity", fmt.Sprintf("%d", cfg.History.Capacity)},
		{"display.currency", cfg.Display.Currency},
		{"display.format", cfg.Display.Format},
		{"charts.dir", cfg.Charts.Dir},
		{"charts.format", cfg.Charts.Format},
		{"storage.path", orDash(cfg.Storage.Path)},
		{"logging.level", cfg.Logging.Level},
		{"logging.file", orDash(cfg.Logging.File)},
	})

	if viper.ConfigFileUsed() != "" {
		output.Blank()
		output.Info("Config file: " + viper.ConfigFileUsed())
	}

	return nil
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	key := strings.ToLower(args[0])
	value := args[1]

	if !slices.Contains(settableKeys, key) {
		return apperrors.ErrValidation.
			WithMessage(fmt.Sprintf("unknown config key %s", key)).
			WithDetails(settableKeys)
	}

	// Validate the merged result before anything is written.
	viper.Set(key, value)
	if _, err := config.Decode(viper.GetViper()); err != nil {
		return err
	}

	path, err := configFilePath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("could not create config directory: %w", err)
	}

	// Only the file's own keys plus this one are written, so defaults and
	// environment overrides don't get frozen into it.
	file := viper.New()
	file.SetConfigFile(path)
	if _, err := os.Stat(path); err == nil {
		if err := file.ReadInConfig(); err != nil {
			return fmt.Errorf("could not read config: %w", err)
		}
	}
	file.Set(key, value)
	if err := file.WriteConfigAs(path); err != nil {
		return fmt.Errorf("could not save config: %w", err)
	}

	output.Success(fmt.Sprintf("Set %s = %s", key, value))
	return nil
}

func runConfigPath(cmd *cobra.Command, args []string) error {
	path, err := configFilePath()
	if err != nil {
		return err
	}

	if isJSON() {
		return output.JSON(map[string]string{
			"config_file": path,
			"config_dir":  filepath.Dir(path),
		})
	}

	output.Println(path)
	return nil
}

// configFilePath is the file in use, or ~/.folio/folio.yaml.
func configFilePath() (string, error) {
	if used := viper.ConfigFileUsed(); used != "" {
		return used, nil
	}
	dir, err := config.Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, configName+".yaml"), nil
}
