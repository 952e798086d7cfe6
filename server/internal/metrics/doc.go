// Package metrics instruments the relay with Prometheus collectors on a
// dedicated registry: inbound requests by outcome, webhook delivery latency,
// rules per alert, build info, and the Go runtime and process collectors.
package metrics
