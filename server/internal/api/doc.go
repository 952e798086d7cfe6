// Package api implements the HTTP surface of the relay.
//
// New(cfg, forwarder, guard, metrics) returns an http.Handler that serves:
//
//	POST {server.path}  default /api/v1/alerts; forwards one alert to the webhook
//	GET  /healthz       liveness probe, {"status":"ok"}
//	GET  /metrics       Prometheus exposition (only when metrics are enabled)
//
// The alert endpoint:
//   - Responds with Content-Type: text/plain
//   - Returns 405 for non-POST methods and 413 for bodies over server.max_body_bytes
//   - Is wrapped by the auth guard; /healthz and /metrics are not
//
// Every request gets an X-Request-ID and one access log line. No external
// HTTP framework is used.
package api
