package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/alecthomas/kingpin/v2"
	"github.com/magiconair/properties"
	"github.com/spf13/afero"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/ikcoding/roastplus-signing/internal/application"
	"github.com/ikcoding/roastplus-signing/internal/config"
	"github.com/ikcoding/roastplus-signing/internal/logging"
	"github.com/ikcoding/roastplus-signing/internal/manifest"
	"github.com/ikcoding/roastplus-signing/internal/signing"
)

var formats = []string{string(signing.FormatProperties), string(signing.FormatYAML), string(signing.FormatJSON)}

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "roastplus-signing: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdout, stderr io.Writer) error {
	kingpinApp := kingpin.New("roastplus-signing", "RoastPlus release signing - resolves and validates keystore credentials for Android packaging")
	kingpinApp.UsageWriter(stderr)
	kingpinApp.ErrorWriter(stderr)

	configFile := kingpinApp.Flag("config", "Path to YAML configuration file").String()
	storeFile := kingpinApp.Flag("store-file", "Path to the release keystore").String()
	keyAlias := kingpinApp.Flag("key-alias", "Alias of the signing key").String()
	propertiesFile := kingpinApp.Flag("properties", "Path to key.properties").String()
	envFiles := kingpinApp.Flag("env-file", "Candidate app_config.env location (repeatable, first existing wins)").Strings()
	logLevel := kingpinApp.Flag("log-level", "Log level (debug, info, warn, error)").String()

	resolveCmd := kingpinApp.Command("resolve", "Resolve signing credentials and emit the signing configuration")
	output := resolveCmd.Flag("output", "Write the signing configuration to this file (mode 0600)").Short('o').String()
	resolveFormat := resolveCmd.Flag("format", "Output format").Default(string(signing.FormatProperties)).Enum(formats...)
	reveal := resolveCmd.Flag("reveal", "Print passwords when writing to stdout").Bool()

	placeholdersCmd := kingpinApp.Command("placeholders", "Print manifest placeholders for a build type")
	buildType := placeholdersCmd.Flag("build-type", "Android build type").Default(string(manifest.Release)).Enum(string(manifest.Release), string(manifest.Debug))
	placeholdersFormat := placeholdersCmd.Flag("format", "Output format").Default(string(signing.FormatProperties)).Enum(formats...)

	command, err := kingpinApp.Parse(args)
	if err != nil {
		return err
	}

	overrides := &config.CLIOverrides{
		ConfigFile: *configFile,
		EnvFiles:   *envFiles,
	}

	if *storeFile != "" {
		overrides.StoreFile = storeFile
	}

	if *keyAlias != "" {
		overrides.KeyAlias = keyAlias
	}

	if *propertiesFile != "" {
		overrides.PropertiesFile = propertiesFile
	}

	if *logLevel != "" {
		overrides.LogLevel = logLevel
	}

	cfg, err := config.Load(overrides)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	app, err := application.New(cfg, logger)
	if err != nil {
		return err
	}

	switch command {
	case resolveCmd.FullCommand():
		format, err := signing.ParseFormat(*resolveFormat)
		if err != nil {
			return err
		}
		return resolve(app, logger, stdout, *output, format, *reveal)
	case placeholdersCmd.FullCommand():
		bt, err := manifest.ParseBuildType(*buildType)
		if err != nil {
			return err
		}
		format, err := signing.ParseFormat(*placeholdersFormat)
		if err != nil {
			return err
		}
		placeholders, err := app.Placeholders(bt)
		if err != nil {
			return err
		}
		return writePlaceholders(stdout, placeholders, format)
	}

	return fmt.Errorf("unknown command %q", command)
}

func resolve(app *application.App, logger *zap.Logger, stdout io.Writer, output string, format signing.Format, reveal bool) error {
	signingCfg, err := app.SigningConfig()
	if err != nil {
		return err
	}

	if output != "" {
		if err := signing.WriteFile(afero.NewOsFs(), output, signingCfg, format); err != nil {
			return err
		}
		logger.Info("wrote signing configuration",
			zap.String("path", output),
			zap.String("format", string(format)),
			zap.String("source", signingCfg.Source),
		)
		return nil
	}

	if !reveal {
		signingCfg = signingCfg.Redacted()
	}
	return signing.Write(stdout, signingCfg, format)
}

func writePlaceholders(w io.Writer, placeholders manifest.Placeholders, format signing.Format) error {
	switch format {
	case signing.FormatProperties:
		p := properties.NewProperties()
		p.DisableExpansion = true
		for _, key := range placeholders.Keys() {
			if _, _, err := p.Set(key, placeholders[key]); err != nil {
				return fmt.Errorf("set %s: %w", key, err)
			}
		}
		_, err := p.Write(w, properties.UTF8)
		return err
	case signing.FormatYAML:
		enc := yaml.NewEncoder(w)
		if err := enc.Encode(map[string]string(placeholders)); err != nil {
			return err
		}
		return enc.Close()
	case signing.FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(placeholders)
	}
	return fmt.Errorf("%w: %q", signing.ErrUnknownFormat, format)
}
