// Package config provides user configuration management for the
// VisionAir tools.
//
// This package manages a YAML-based configuration file that stores
// per-device link settings (direct BLE or WebSocket relay), nicknames,
// poll cadence, and the MQTT broker preferences used by the Home
// Assistant bridge. The configuration follows OS-specific conventions
// for storage location.
//
// # Configuration File Location
//
// The configuration file is stored in platform-appropriate locations:
//   - Linux: $XDG_CONFIG_HOME/visionair/config.yaml or $HOME/.config/visionair/config.yaml
//   - macOS: $HOME/.config/visionair/config.yaml
//   - Windows: %LOCALAPPDATA%\visionair\config.yaml
//
// # Thread Safety
//
// The global registry uses sync.Once for safe initialization across
// goroutines. File operations are protected by a mutex to ensure atomic
// writes.
package config
