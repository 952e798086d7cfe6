package alerts

import (
	"fmt"
	"strings"
	"time"

	"github.com/alertrelay/alertrelay/pkg/types"
)

const (
	// NotAvailable replaces any field missing from the payload.
	NotAvailable = "N/A"

	// NoRules is rendered in place of the rule list when it is empty.
	NoRules = "No rules violated."

	timestampLayout = "2006-01-02 15:04:05"
	payloadIndent   = "    "
)

// ISO-8601 forms accepted for record["@timestamp"]. Fractional seconds are
// optional in every layout when parsing.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05Z0700",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// Summary holds the display tokens extracted from an alert record.
// Every token is either the payload's value or NotAvailable.
type Summary struct {
	Timestamp  string
	RequestID  string
	Message    string
	SourceIP   string
	SourcePort string
	DestIP     string
	DestPort   string
	Path       string
	Rules      []string
}

// Summarize extracts the display tokens from rec.
func Summarize(rec types.Record) Summary {
	s := Summary{
		Timestamp:  FormatTimestamp(rec.Timestamp),
		RequestID:  rec.RequestID.Or(NotAvailable),
		Message:    rec.Msg.Or(NotAvailable),
		SourceIP:   rec.Source.IP.Or(NotAvailable),
		SourcePort: rec.Source.PortNum.Or(NotAvailable),
		DestIP:     rec.Destination.IP.Or(NotAvailable),
		DestPort:   rec.Destination.PortNum.Or(NotAvailable),
		Path:       rec.Path.Or(NotAvailable),
	}
	for _, r := range rec.Rules {
		s.Rules = append(s.Rules, FormatRule(r))
	}
	return s
}

// FormatTimestamp parses an ISO-8601 timestamp and renders it as
// "YYYY-MM-DD HH:MM:SS" in the offset it was given in. Absent or unparsable
// values yield NotAvailable.
func FormatTimestamp(f types.Field) string {
	if !f.Present() {
		return NotAvailable
	}
	v := strings.TrimSpace(f.String())
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return t.Format(timestampLayout)
		}
	}
	return NotAvailable
}

// FormatRule renders one rule line. Missing sub-fields render as NotAvailable.
func FormatRule(r types.Rule) string {
	return fmt.Sprintf(" - Rule %s: %s (Severity: %s)",
		r.ID.Or(NotAvailable),
		r.Message.Or(NotAvailable),
		r.Severity.Or(NotAvailable),
	)
}

// RulesBlock joins the formatted rule lines, or returns NoRules.
func (s Summary) RulesBlock() string {
	if len(s.Rules) == 0 {
		return NoRules
	}
	return strings.Join(s.Rules, "\n")
}

// Render builds the Markdown chat message for p.
func Render(p *types.AlertPayload) string {
	return render(p, Summarize(p.Record))
}

func render(p *types.AlertPayload, s Summary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "## 🚨 Security Alert: %s\n\n", s.Message)
	fmt.Fprintf(&b, "**Timestamp**: %s\n", s.Timestamp)
	fmt.Fprintf(&b, "**Request ID**: %s\n", s.RequestID)
	fmt.Fprintf(&b, "**Source IP/Port**: %s:%s\n", s.SourceIP, s.SourcePort)
	fmt.Fprintf(&b, "**Destination IP/Port**: %s:%s\n", s.DestIP, s.DestPort)
	fmt.Fprintf(&b, "**Rules Violated**:\n%s\n", s.RulesBlock())
	fmt.Fprintf(&b, "**Path**: %s\n\n", s.Path)
	b.WriteString("---\n")
	b.WriteString("**Full JSON Payload**:\n")
	fmt.Fprintf(&b, "```json\n%s\n```", p.Indent(payloadIndent))
	return b.String()
}
