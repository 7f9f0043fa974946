// Package config loads and validates the application configuration from YAML.
//
// Structural sections (server, adapters, history backend) are read once at
// startup. The tracker tuning section may be hot-reloaded through the Loader's
// file watcher so operators can adjust smoothing and staleness thresholds
// without a restart.
package config
