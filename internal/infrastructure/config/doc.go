// Package config provides 12-factor configuration for the shell.
//
// Configuration is loaded from environment variables with sensible defaults.
// A YAML or TOML file can overlay the environment, and CLI flags override
// both.
//
// Configuration Sections:
//   - Server: websocket host address, allowed browser origin and rate limit
//   - Logging: log level and output format
//   - Speech: dictation chunk size, work dir, assets and capture source
//   - Update: update index location and the running build's version code
//   - Script: embedded script host limits
//
// Example Usage:
//
//	cfg := config.LoadOrDefault()
//	fmt.Printf("Bridge listening on %s\n", cfg.Server.Addr())
//
// Environment Variables:
//   - HOST, PORT, BRIDGE_ORIGIN, BRIDGE_RATE_LIMIT, BRIDGE_RATE_BURST
//   - LOG_LEVEL, LOG_DEV
//   - SPEECH_CHUNK_SIZE, SPEECH_WORKDIR, SPEECH_ASSETS, SPEECH_ASSET_PATTERNS,
//     SPEECH_SOURCE
//   - UPDATE_BASE_URL, UPDATE_BRANCH, UPDATE_CHANNEL, UPDATE_BUILD_TYPE,
//     UPDATE_VERSION_CODE, UPDATE_TIMEOUT, UPDATE_MIN_INTERVAL
//   - SCRIPT_TIMEOUT
package config
