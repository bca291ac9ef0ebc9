// Package config provides configuration management for scanagent.
//
// Configuration comes from three layers, in increasing precedence:
//   - Built-in defaults (the Default* constants)
//   - The .scanagent YAML file with per-server overrides
//   - CLI flags
//
// The package also resolves XDG base directories for the scan journal
// and validates the assembled configuration before a session starts.
package config
