// Package alerts turns inbound security-alert payloads into Markdown chat
// messages and delivers them to a single webhook. Render builds the message;
// Forwarder posts it (text, Teams MessageCard, or Discord body) and maps the
// delivery outcome onto the status returned to the caller.
package alerts
