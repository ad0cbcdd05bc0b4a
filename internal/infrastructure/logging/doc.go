// Package logging configures the structured slog logger shared by the
// evaluation engine, store, scheduler, MQTT feeds and HTTP API.
//
// Entries carry the service name and version so temple-stack log
// aggregation can isolate this service; components add their own tag via
// With("component", ...). Format (json/text), level and destination come
// from the logging section of config.yaml:
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// Never log credentials or tokens; this service handles none, but the
// rule applies to anything added later.
package logging
