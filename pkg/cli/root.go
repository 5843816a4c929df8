package cli

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const (
	// Version is the current version of flowmod
	Version = "0.3.0"

	envConfigDir = "FLOWMOD_CONFIG_DIR"
	envPrefix    = "FLOWMOD"
)

// Config holds the resolved configuration of one CLI invocation.
type Config struct {
	ConfigDir    string
	Debug        bool
	DatabasePath string
	DiagramDir   string
}

// NewRootCommand creates the root cobra command for flowmod
func NewRootCommand() *cobra.Command {
	cfg := &Config{}

	cmd := &cobra.Command{
		Use:   "flowmod",
		Short: "flowmod - Stage and submit process instance modifications",
		Long: `flowmod stages token and variable modifications against a running process
instance, previews the resulting modification request and records every
submitted request in a local history.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := initConfig(cmd, cfg); err != nil {
				return fmt.Errorf("failed to initialize configuration: %w", err)
			}
			setupLogging(cmd.ErrOrStderr(), cfg.Debug)
			return nil
		},
	}

	cmd.PersistentFlags().BoolVar(&cfg.Debug, "debug", false, "Enable debug logging")
	cmd.PersistentFlags().StringVar(&cfg.ConfigDir, "config-dir", "", "Configuration directory (default: ~/.flowmod)")

	cmd.AddCommand(newPlanCommand(cfg))
	cmd.AddCommand(newSubmitCommand(cfg))
	cmd.AddCommand(newHistoryCommand(cfg))
	cmd.AddCommand(newDiagramCommand(cfg))

	return cmd
}

// initConfig resolves the config directory, creates it with a default
// config file on first run, and loads settings through viper.
//
// Priority per key: FLOWMOD_* environment variable, config.yaml, default.
// The config directory itself comes from FLOWMOD_CONFIG_DIR, then
// --config-dir, then ~/.flowmod.
func initConfig(cmd *cobra.Command, cfg *Config) error {
	if envDir := os.Getenv(envConfigDir); envDir != "" {
		cfg.ConfigDir = envDir
	} else if cfg.ConfigDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("failed to get user home directory: %w", err)
		}
		cfg.ConfigDir = filepath.Join(homeDir, ".flowmod")
	}

	if err := os.MkdirAll(cfg.ConfigDir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	configFile := filepath.Join(cfg.ConfigDir, "config.yaml")
	if _, err := os.Stat(configFile); errors.Is(err, os.ErrNotExist) {
		if err := writeDefaultConfig(configFile); err != nil {
			return err
		}
	}

	v := viper.New()
	v.SetConfigType("yaml")
	v.SetConfigFile(configFile)
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()
	v.SetDefault("database_path", filepath.Join(cfg.ConfigDir, "history.db"))
	v.SetDefault("diagram_dir", filepath.Join(cfg.ConfigDir, "diagrams"))
	v.SetDefault("debug", false)

	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	// An explicit --debug always wins over the file.
	if !cmd.Flags().Changed("debug") {
		cfg.Debug = v.GetBool("debug")
	}
	cfg.DatabasePath = v.GetString("database_path")
	cfg.DiagramDir = v.GetString("diagram_dir")

	return nil
}

func writeDefaultConfig(path string) error {
	defaultConfig := map[string]any{
		"version": "1.0",
		"debug":   false,
	}
	data, err := yaml.Marshal(defaultConfig)
	if err != nil {
		return fmt.Errorf("failed to marshal default config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write default config: %w", err)
	}
	return nil
}

// setupLogging installs the default slog logger. Debug logs everything to
// w; otherwise only warnings and errors are shown.
func setupLogging(w io.Writer, debug bool) {
	level := slog.LevelWarn
	if debug {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
		Level:     level,
		AddSource: debug,
	})))
}

// Execute runs the root command
func Execute() error {
	return NewRootCommand().Execute()
}
