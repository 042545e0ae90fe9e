// Package api implements the diagnostics HTTP API of the Dynalite bridge
// service.
//
// This package provides:
//   - GET /api/v1/health for database and MQTT health
//   - GET /api/v1/metrics for runtime, bridge and registry counters
//   - Read-only listings of bridges, entities, areas and devices
//   - Middleware stack (request ID, logging, recovery)
//
// The API is read-only. Commands reach entities over MQTT, never over HTTP.
//
// Lifecycle:
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
package api
