package application

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/ikcoding/roastplus-signing/internal/config"
	"github.com/ikcoding/roastplus-signing/internal/credentials"
	"github.com/ikcoding/roastplus-signing/internal/envfile"
	"github.com/ikcoding/roastplus-signing/internal/manifest"
	"github.com/ikcoding/roastplus-signing/internal/resolver"
	"github.com/ikcoding/roastplus-signing/internal/signing"
)

// App encapsulates the inputs read once at startup and the resolver built on them.
type App struct {
	cfg        config.Config
	logger     *zap.Logger
	fs         afero.Fs
	getenv     func(string) string
	properties credentials.SigningProperties
	envValues  envfile.Values
	resolver   *resolver.Resolver
}

// Option configures App construction.
type Option func(*App)

// WithFs overrides the filesystem, primarily for tests.
func WithFs(fs afero.Fs) Option {
	return func(a *App) {
		a.fs = fs
	}
}

// WithGetenv overrides the process environment lookup, primarily for tests.
func WithGetenv(getenv func(string) string) Option {
	return func(a *App) {
		a.getenv = getenv
	}
}

// New reads key.properties and app_config.env once and wires the credential
// sources into a resolver.
func New(cfg config.Config, logger *zap.Logger, opts ...Option) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	a := &App{
		cfg:    cfg,
		logger: logger,
		fs:     afero.NewOsFs(),
		getenv: os.Getenv,
	}
	for _, opt := range opts {
		opt(a)
	}

	props, err := credentials.LoadProperties(a.fs, cfg.PropertiesFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load signing properties: %w", err)
	}
	if props.Found() {
		logger.Debug("loaded signing properties", zap.String("path", props.Path))
	}

	values, err := envfile.Load(a.fs, cfg.EnvFiles)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", envfile.DefaultName, err)
	}
	if values.Path() != "" {
		logger.Debug("loaded side-channel config", zap.String("path", values.Path()), zap.Int("entries", values.Len()))
	}
	for _, line := range values.Skipped() {
		logger.Debug("skipped unreadable side-channel config line", zap.String("path", values.Path()), zap.Int("line", line))
	}

	a.properties = props
	a.envValues = values
	a.resolver = resolver.New(a.fs, credentials.DefaultSources(props, values, a.getenv), logger)
	return a, nil
}

// KeystorePath returns the keystore location, honouring a storeFile override
// from key.properties. A relative storeFile is resolved against the directory
// of the configured keystore (android/app by default), as Gradle does.
func (a *App) KeystorePath() string {
	if path := a.properties.StorePath(filepath.Dir(a.cfg.StoreFile)); path != "" {
		return path
	}
	return a.cfg.StoreFile
}

// KeyAlias returns the key alias, honouring a keyAlias override from key.properties.
func (a *App) KeyAlias() string {
	if a.properties.KeyAlias != "" {
		return a.properties.KeyAlias
	}
	return a.cfg.KeyAlias
}

// SigningConfig resolves and validates the release signing credentials.
func (a *App) SigningConfig() (signing.Config, error) {
	path, alias := a.KeystorePath(), a.KeyAlias()

	result, err := a.resolver.Resolve(path, alias)
	if err != nil {
		return signing.Config{}, err
	}
	if !result.Report.AliasVerified {
		a.logger.Warn("keystore does not expose key aliases; alias not verified",
			zap.String("keystore", path),
			zap.String("alias", alias),
		)
	}

	return signing.FromResult(path, alias, result), nil
}

// Placeholders computes the manifest placeholders for a build type.
func (a *App) Placeholders(buildType manifest.BuildType) (manifest.Placeholders, error) {
	return manifest.Resolve(buildType, a.getenv, a.envValues)
}
