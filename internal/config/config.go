package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"github.com/ikcoding/roastplus-signing/internal/envfile"
)

const (
	defaultStoreFile      = "android/app/roastplus-new-key.keystore"
	defaultKeyAlias       = "roastplus-key-alias"
	defaultPropertiesFile = "android/key.properties"
	defaultLogLevel       = "info"
)

// Config aggregates runtime configuration resolved from multiple sources.
// Precedence: CLI flags > YAML config > Environment variables > Defaults
type Config struct {
	StoreFile      string   `yaml:"store_file"`
	KeyAlias       string   `yaml:"key_alias"`
	PropertiesFile string   `yaml:"properties_file"`
	EnvFiles       []string `yaml:"env_files"`
	LogLevel       string   `yaml:"log_level"`
}

// yamlConfig represents the YAML configuration file structure.
type yamlConfig struct {
	Signing  yamlSigning `yaml:"signing"`
	EnvFiles []string    `yaml:"env_files"`
	LogLevel string      `yaml:"log_level"`
}

// yamlSigning represents the signing section in YAML.
type yamlSigning struct {
	StoreFile      string `yaml:"store_file"`
	KeyAlias       string `yaml:"key_alias"`
	PropertiesFile string `yaml:"properties_file"`
}

// CLIOverrides holds command-line flag overrides.
type CLIOverrides struct {
	ConfigFile     string
	StoreFile      *string
	KeyAlias       *string
	PropertiesFile *string
	EnvFiles       []string
	LogLevel       *string
}

// Load extracts configuration from multiple sources with precedence:
// CLI flags > YAML config > Environment variables > Defaults
func Load(overrides *CLIOverrides) (Config, error) {
	return LoadFS(afero.NewOsFs(), overrides)
}

// LoadFS is Load with the YAML config file read from fs.
func LoadFS(fs afero.Fs, overrides *CLIOverrides) (Config, error) {
	cfg := defaultConfig()

	// Apply environment variables
	applyEnvConfig(&cfg)

	// Load from YAML file if specified (overrides environment)
	if overrides != nil && overrides.ConfigFile != "" {
		yamlCfg, err := loadFromFile(fs, overrides.ConfigFile)
		if err != nil {
			return Config{}, fmt.Errorf("load YAML config: %w", err)
		}
		applyYAMLConfig(&cfg, yamlCfg)
	}

	// Apply CLI overrides (highest precedence)
	if overrides != nil {
		applyCLIOverrides(&cfg, overrides)
	}

	if err := validateConfig(cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// defaultConfig returns a Config with default values.
func defaultConfig() Config {
	return Config{
		StoreFile:      defaultStoreFile,
		KeyAlias:       defaultKeyAlias,
		PropertiesFile: defaultPropertiesFile,
		EnvFiles:       envfile.DefaultCandidates(),
		LogLevel:       defaultLogLevel,
	}
}

// loadFromFile loads configuration from a YAML file.
func loadFromFile(fs afero.Fs, path string) (*yamlConfig, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}

	var yamlCfg yamlConfig
	if err := yaml.Unmarshal(data, &yamlCfg); err != nil {
		return nil, fmt.Errorf("parse YAML: %w", err)
	}

	return &yamlCfg, nil
}

// applyYAMLConfig applies YAML configuration to the Config struct. Relative
// paths in the file are taken relative to the working directory.
func applyYAMLConfig(cfg *Config, yamlCfg *yamlConfig) {
	if v := strings.TrimSpace(yamlCfg.Signing.StoreFile); v != "" {
		cfg.StoreFile = v
	}

	if v := strings.TrimSpace(yamlCfg.Signing.KeyAlias); v != "" {
		cfg.KeyAlias = v
	}

	if v := strings.TrimSpace(yamlCfg.Signing.PropertiesFile); v != "" {
		cfg.PropertiesFile = v
	}

	if files := cleanList(yamlCfg.EnvFiles); len(files) > 0 {
		cfg.EnvFiles = files
	}

	if v := strings.TrimSpace(yamlCfg.LogLevel); v != "" {
		cfg.LogLevel = v
	}
}

// applyEnvConfig applies environment variable configuration.
func applyEnvConfig(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv("SIGNING_STORE_FILE")); v != "" {
		cfg.StoreFile = v
	}

	if v := strings.TrimSpace(os.Getenv("SIGNING_KEY_ALIAS")); v != "" {
		cfg.KeyAlias = v
	}

	if v := strings.TrimSpace(os.Getenv("SIGNING_PROPERTIES_FILE")); v != "" {
		cfg.PropertiesFile = v
	}

	if raw := strings.TrimSpace(os.Getenv("SIGNING_ENV_FILES")); raw != "" {
		if files := cleanList(strings.Split(raw, ",")); len(files) > 0 {
			cfg.EnvFiles = files
		}
	}

	if v := strings.TrimSpace(os.Getenv("LOG_LEVEL")); v != "" {
		cfg.LogLevel = v
	}
}

// applyCLIOverrides applies command-line flag overrides.
func applyCLIOverrides(cfg *Config, overrides *CLIOverrides) {
	if overrides.StoreFile != nil && *overrides.StoreFile != "" {
		cfg.StoreFile = *overrides.StoreFile
	}

	if overrides.KeyAlias != nil && *overrides.KeyAlias != "" {
		cfg.KeyAlias = *overrides.KeyAlias
	}

	if overrides.PropertiesFile != nil && *overrides.PropertiesFile != "" {
		cfg.PropertiesFile = *overrides.PropertiesFile
	}

	if files := cleanList(overrides.EnvFiles); len(files) > 0 {
		cfg.EnvFiles = files
	}

	if overrides.LogLevel != nil && *overrides.LogLevel != "" {
		cfg.LogLevel = *overrides.LogLevel
	}
}

// validateConfig validates the final configuration.
func validateConfig(cfg Config) error {
	if strings.TrimSpace(cfg.StoreFile) == "" {
		return fmt.Errorf("keystore path cannot be empty")
	}
	if strings.TrimSpace(cfg.KeyAlias) == "" {
		return fmt.Errorf("key alias cannot be empty")
	}
	if _, err := zapcore.ParseLevel(cfg.LogLevel); err != nil {
		return fmt.Errorf("invalid log level %q: %w", cfg.LogLevel, err)
	}
	return nil
}

// cleanList trims entries and drops blanks.
func cleanList(raw []string) []string {
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		out = append(out, filepath.Clean(item))
	}
	return out
}
