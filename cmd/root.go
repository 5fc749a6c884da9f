package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/joescharf/crev/internal/config"
	"github.com/joescharf/crev/internal/output"
)

// Package-level shared dependencies, initialized in cobra.OnInitialize.
var (
	ui *output.UI

	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "crev",
	Short: "AI code review - upload a source file, get a structured review",
	Long: `crev sends a single source file to an LLM (Anthropic or Gemini) and
returns a validated review report: summary, execution prediction, quality
scores and a list of prioritized issues.

Run 'crev serve' for the HTTP API, 'crev review FILE' for a one-off review
in the terminal, or 'crev mcp' to expose reviews as MCP tools.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	DisableAutoGenTag: true,
}

// Execute is the main entry point called from main.go.
func Execute(version, commit, date string) {
	buildVersion = version
	buildCommit = commit
	buildDate = date

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig, initDeps)

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")
	rootCmd.PersistentFlags().String("config", "", "Config file (default ~/.config/crev/config.yaml)")
	rootCmd.PersistentFlags().String("provider", "", "LLM provider: anthropic or gemini (default: detected from API keys)")
	rootCmd.PersistentFlags().String("model", "", "Model identifier (default depends on provider)")
	_ = viper.BindPFlag("provider", rootCmd.PersistentFlags().Lookup("provider"))
	_ = viper.BindPFlag("model", rootCmd.PersistentFlags().Lookup("model"))
}

func initConfig() {
	// .env files only fill variables that are not already set.
	config.LoadDotEnv("")

	// If --config is explicitly set, use that file
	if cfgFile, _ := rootCmd.PersistentFlags().GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else if dir, err := configDirFunc(); err == nil {
		viper.AddConfigPath(dir)
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	config.SetDefaults(viper.GetViper())
	config.BindEnv(viper.GetViper())

	// Read config file if it exists (optional)
	_ = viper.ReadInConfig()
}

func initDeps() {
	ui = output.New()
	ui.Verbose = verbose
}

// loadConfig builds the effective configuration from flags, env and file.
func loadConfig() (config.Config, error) {
	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		return config.Config{}, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

// newLogger returns the structured logger for server-side diagnostics.
// Logs go to stderr so stdout stays clean for review output and MCP framing.
func newLogger(cfg config.Config) *slog.Logger {
	return cfg.Log.NewLogger(os.Stderr)
}

// configDirFunc returns the config directory path, replaceable in tests.
var configDirFunc = defaultConfigDir

func defaultConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "crev"), nil
}
