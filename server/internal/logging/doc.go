// Package logging builds the relay's slog logger and carries request IDs
// through request contexts so every log line of a request can be correlated.
package logging
