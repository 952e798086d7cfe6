// Package auth guards the alert endpoint with a static function key.
//
// NewGuard(cfg, metrics) builds a Guard whose Middleware compares the key from
// the configured header (default "x-functions-key") or the "code" query
// parameter against the key held in the configured environment variable.
//
// When mode != "apikey" or the key is empty, all requests pass through (useful
// for local development with auth disabled). A missing or incorrect key gets
// 401 immediately, before the body is read.
package auth
