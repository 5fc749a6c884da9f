package cmd

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/template"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/joescharf/crev/internal/config"
)

var (
	configForce  bool
	configDryRun bool
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or manage configuration",
	Long: `Show or manage crev configuration.

Running bare 'crev config' is the same as 'crev config show'.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return configShowRun()
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create config file with commented defaults",
	RunE: func(cmd *cobra.Command, args []string) error {
		return configInitRun()
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show effective configuration with sources",
	RunE: func(cmd *cobra.Command, args []string) error {
		return configShowRun()
	},
}

func init() {
	configInitCmd.Flags().BoolVar(&configForce, "force", false, "Overwrite existing config file")
	configInitCmd.Flags().BoolVarP(&configDryRun, "dry-run", "n", false, "Print the file instead of writing it")
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	rootCmd.AddCommand(configCmd)
}

// configTemplate is the template for generating config.yaml with comments.
// API keys are not written here; they belong in the environment or .env.
const configTemplate = `# crev configuration
# See: crev config show (for effective values and sources)

# LLM provider: anthropic or gemini (empty: detect from ANTHROPIC_API_KEY / GEMINI_API_KEY)
provider: "{{ .Provider }}"

# Model identifier (empty: provider default)
model: "{{ .Model }}"

llm:
  # Retries for rate limits, 5xx and network errors (0 disables)
  max_retries: {{ .MaxRetries }}
  # Output token budget per review
  max_tokens: {{ .MaxTokens }}

server:
  addr: "{{ .Addr }}"
  cors_origins: [{{ .CORSOrigins }}]
  shutdown_timeout: {{ .ShutdownTimeout }}

review:
  # Largest accepted upload in bytes
  max_upload_bytes: {{ .MaxUploadBytes }}
  # Upper bound on one model call
  timeout: {{ .Timeout }}
  # Source beyond this many bytes is truncated before prompting
  max_source_bytes: {{ .MaxSourceBytes }}
  # Mask credentials found in the source before it leaves the host
  redact_secrets: {{ .RedactSecrets }}

log:
  level: {{ .LogLevel }}
  # text or json
  format: {{ .LogFormat }}
`

type configTemplateData struct {
	Provider        string
	Model           string
	MaxRetries      int
	MaxTokens       int
	Addr            string
	CORSOrigins     string
	ShutdownTimeout string
	MaxUploadBytes  int64
	Timeout         string
	MaxSourceBytes  int
	RedactSecrets   bool
	LogLevel        string
	LogFormat       string
}

func configFilePath() (string, error) {
	dir, err := configDirFunc()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

func configInitRun() error {
	cfgPath, err := configFilePath()
	if err != nil {
		return err
	}

	// Check if file already exists
	if _, err := os.Stat(cfgPath); err == nil {
		if !configForce {
			return fmt.Errorf("config file already exists: %s (use --force to overwrite)", cfgPath)
		}
		ui.Warning("Overwriting existing config file")
	}

	origins := config.StringList(viper.GetViper(), "server.cors_origins")
	quoted := make([]string, len(origins))
	for i, o := range origins {
		quoted[i] = fmt.Sprintf("%q", o)
	}

	// Build template data from current viper values
	data := configTemplateData{
		Provider:        viper.GetString("provider"),
		Model:           viper.GetString("model"),
		MaxRetries:      viper.GetInt("llm.max_retries"),
		MaxTokens:       viper.GetInt("llm.max_tokens"),
		Addr:            viper.GetString("server.addr"),
		CORSOrigins:     strings.Join(quoted, ", "),
		ShutdownTimeout: viper.GetDuration("server.shutdown_timeout").String(),
		MaxUploadBytes:  viper.GetInt64("review.max_upload_bytes"),
		Timeout:         viper.GetDuration("review.timeout").String(),
		MaxSourceBytes:  viper.GetInt("review.max_source_bytes"),
		RedactSecrets:   viper.GetBool("review.redact_secrets"),
		LogLevel:        viper.GetString("log.level"),
		LogFormat:       viper.GetString("log.format"),
	}

	tmpl, err := template.New("config").Parse(configTemplate)
	if err != nil {
		return fmt.Errorf("template parse error: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return fmt.Errorf("template execute error: %w", err)
	}

	if configDryRun {
		ui.Warning("[DRY-RUN] Would create config file: %s", cfgPath)
		fmt.Fprintln(ui.Out)
		fmt.Fprint(ui.Out, buf.String())
		return nil
	}

	// Create config directory
	dir := filepath.Dir(cfgPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(cfgPath, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	ui.Success("Config file created: %s", cfgPath)
	fmt.Fprintln(ui.Out)
	fmt.Fprint(ui.Out, buf.String())
	return nil
}

// configKeyInfo describes a config key for display purposes.
type configKeyInfo struct {
	Key    string
	Secret bool
}

var configKeys = []configKeyInfo{
	{Key: "provider"},
	{Key: "model"},
	{Key: "api_key", Secret: true},
	{Key: "base_url"},
	{Key: "llm.max_retries"},
	{Key: "llm.max_tokens"},
	{Key: "server.addr"},
	{Key: "server.cors_origins"},
	{Key: "server.shutdown_timeout"},
	{Key: "review.max_upload_bytes"},
	{Key: "review.timeout"},
	{Key: "review.max_source_bytes"},
	{Key: "review.redact_secrets"},
	{Key: "log.level"},
	{Key: "log.format"},
}

// envVarFor returns the environment variable bound to a dotted key.
func envVarFor(key string) string {
	return config.EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

func configShowRun() error {
	cfgPath, err := configFilePath()
	if err != nil {
		return err
	}
	if used := viper.ConfigFileUsed(); used != "" {
		cfgPath = used
	}

	// Check if config file exists
	if _, err := os.Stat(cfgPath); err == nil {
		ui.Info("Config file: %s", cfgPath)
	} else {
		ui.Info("Config file: (none)")
	}
	fmt.Fprintln(ui.Out)

	// Read config file values to determine file source
	fileValues := readConfigFileValues(cfgPath)

	for _, k := range configKeys {
		envVar := envVarFor(k.Key)
		val := viper.Get(k.Key)
		if k.Secret {
			val = maskSecret(viper.GetString(k.Key))
		}
		source := detectSource(k.Key, envVar, fileValues)
		fmt.Fprintf(ui.Out, "  %-26s %v  %s\n", k.Key, val, source)
	}

	// The effective provider and key may come from vendor variables.
	if cfg, err := config.Load(viper.GetViper()); err == nil {
		fmt.Fprintln(ui.Out)
		ui.Info("Effective provider: %s, model: %s", cfg.Provider, cfg.Model)
		if cfg.APIKeyConfigured() {
			ui.Success("API key configured (%s)", maskSecret(cfg.APIKey))
		} else {
			ui.Warning("No API key configured")
		}
	} else {
		ui.Error("%v", err)
	}

	return nil
}

// maskSecret keeps only the last four characters of a credential.
func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 8 {
		return "****"
	}
	return "****" + s[len(s)-4:]
}

// readConfigFileValues reads the raw YAML file and returns a flat map of keys present in it.
func readConfigFileValues(path string) map[string]bool {
	result := make(map[string]bool)

	data, err := os.ReadFile(path)
	if err != nil {
		return result
	}

	var parsed map[string]any
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return result
	}

	// Flatten nested keys with dot notation
	flattenKeys("", parsed, result)
	return result
}

// flattenKeys recursively flattens a nested map to dot-notation keys.
func flattenKeys(prefix string, m map[string]any, result map[string]bool) {
	for key, val := range m {
		fullKey := key
		if prefix != "" {
			fullKey = prefix + "." + key
		}
		if nested, ok := val.(map[string]any); ok {
			flattenKeys(fullKey, nested, result)
		} else {
			result[fullKey] = true
		}
	}
}

// detectSource determines where a config value is coming from.
func detectSource(key, envVar string, fileValues map[string]bool) string {
	if _, ok := os.LookupEnv(envVar); ok {
		return fmt.Sprintf("(env: %s)", envVar)
	}
	if fileValues[key] {
		return "(file)"
	}
	return "(default)"
}
