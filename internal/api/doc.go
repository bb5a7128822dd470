// Package api hosts the HTTP server and middleware for the relay. Routes:
//   - <server.path> (default /api/ogrelay), any method, for lookups; OPTIONS
//     answers the CORS pre-flight.
//   - GET /healthz and /readyz for probes.
//   - GET /metrics for Prometheus scraping when metrics are enabled.
package api
