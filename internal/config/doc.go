// Package config loads runtime configuration from multiple sources (YAML files,
// environment variables, CLI flags) with precedence: CLI flags > YAML config >
// Environment variables > Defaults. It locates the release keystore, the
// key.properties file and the app_config.env candidates for the rest of the
// application.
package config
