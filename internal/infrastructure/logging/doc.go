// Package logging provides structured logging for the Dynalite bridge service.
//
// This package wraps Go's standard log/slog package to provide
// consistent, structured logging across the service.
//
// # Features
//
//   - JSON output for production (machine-parsable)
//   - Text output for development (human-readable)
//   - Size-rotated log files via lumberjack
//   - Default fields (service, version) on all log entries
//   - Per-bridge level overrides through WithLevel
//
// # Configuration
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "file"     # stdout, stderr, file
//	  file:
//	    path: "./logs/dynalite-bridge.log"
//	    max_size: 50
//
// # Usage
//
//	logger := logging.New(cfg.Logging, "1.0.0")
//	defer logger.Close()
//	bridgeLogger := logger.With("bridge", host).WithLevel(bridgeCfg.LogLevel)
//	bridgeLogger.Debug("preset received", "area", 2, "preset", 4)
//
// Never log secrets such as the MQTT password or InfluxDB token.
package logging
