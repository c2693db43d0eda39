// Package application provides application initialization and dependency wiring.
// It reads the signing inputs once (key.properties, app_config.env, the process
// environment), builds the credential resolver over them and exposes the
// operations the CLI runs, keeping the main package focused on flag parsing
// and output.
package application
