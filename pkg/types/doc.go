// Package types defines the alert payload shapes shared by the relay server
// and the render CLI.
//
// Incoming payloads are loosely structured: every field is optional and a
// value of the wrong JSON type is treated as absent rather than rejected.
// Field carries one optional scalar; Or resolves it against a default.
package types
