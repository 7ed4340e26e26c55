// Package config loads runtime configuration from multiple sources (YAML
// files, environment variables, CLI flags) with precedence: CLI flags > YAML
// config > Environment variables > Defaults. It also provides the reloadable
// snapshot store the security pipeline reads its settings from.
package config
