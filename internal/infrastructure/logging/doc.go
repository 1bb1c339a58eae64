// Package logging provides structured logging for mysnode.
//
// It wraps log/slog so every entry carries the service name and build
// version. JSON is the default format; "text" is easier to read on a
// terminal.
//
// Configuration (config.yaml):
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// Usage:
//
//	logger := logging.New(cfg.Logging, version)
//	logger.Component("session").Info("node ready", "node_id", id)
//
// Never log broker passwords or the InfluxDB token.
package logging
