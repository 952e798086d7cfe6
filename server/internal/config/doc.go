// Package config loads the alertrelay configuration from config.yaml.
//
// Config fields:
//   - Server.HTTPPort     port for the alert endpoint (default 8080)
//   - Server.Path         route that accepts alert POSTs (default /api/v1/alerts)
//   - Server.MaxBodyBytes inbound body cap (default 1 MiB)
//   - Auth.Mode           "apikey" or "none"
//   - Auth.KeyEnv         environment variable holding the function key
//   - Auth.Header         HTTP header name (default "x-functions-key")
//   - Webhook.URLEnv      environment variable holding the destination URL
//   - Webhook.Format      "text", "teams" or "discord" (default "text")
//   - Webhook.Timeout     bound on one delivery attempt (default 10s)
//   - Webhook.Auth/TLS    credentials and TLS options for the webhook call
//   - Metrics.Enabled     serve /metrics (default true)
//   - Log.Level, Format   slog level and handler
//
// Secrets never live in the file: every secret is named by an *_env key and
// read from the environment. Load(path) applies defaults before
// unmarshalling, then validates. Watch(ctx, path, fn) reloads the file on
// change.
package config
