package alerts

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/alertrelay/alertrelay/pkg/types"
	"github.com/alertrelay/alertrelay/server/internal/config"
)

// discordContentLimit is Discord's maximum message length in characters.
const discordContentLimit = 2000

var (
	// ErrNoWebhookURL means the configured URL environment variable is empty.
	ErrNoWebhookURL = errors.New("no webhook URL configured")

	// ErrWebhookStatus matches any *StatusError.
	ErrWebhookStatus = errors.New("webhook returned non-success status")
)

// StatusError reports a non-2xx response from the destination webhook.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("webhook returned HTTP %d", e.Code)
}

// Is lets errors.Is(err, ErrWebhookStatus) match.
func (e *StatusError) Is(target error) bool {
	return target == ErrWebhookStatus
}

// buildBody encodes the Markdown message for the configured webhook format.
func buildBody(format, markdown string, s Summary, rules types.Rules) ([]byte, error) {
	switch format {
	case config.FormatTeams:
		return json.Marshal(teamsCard(markdown, s, rules))
	case config.FormatDiscord:
		return json.Marshal(map[string]string{
			"content": truncate(markdown, discordContentLimit),
		})
	default:
		return json.Marshal(types.OutboundMessage{Text: markdown})
	}
}

// teamsCard wraps the message in an Office 365 connector MessageCard.
func teamsCard(markdown string, s Summary, rules types.Rules) map[string]interface{} {
	return map[string]interface{}{
		"@type":      "MessageCard",
		"@context":   "http://schema.org/extensions",
		"themeColor": severityColor(topSeverity(rules)),
		"summary":    s.Message,
		"title":      fmt.Sprintf("Security Alert: %s", s.Message),
		"text":       markdown,
	}
}

// post sends body to url and drains the response. A non-2xx status is
// returned as a *StatusError.
func (f *Forwarder) post(ctx context.Context, url string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return fmt.Errorf("http post: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &StatusError{Code: resp.StatusCode}
	}
	return nil
}

// severityRank orders rule severities; unknown values rank lowest.
func severityRank(s string) int {
	switch strings.ToLower(s) {
	case "critical":
		return 5
	case "high", "error":
		return 4
	case "medium", "warning":
		return 3
	case "low", "notice":
		return 2
	case "info":
		return 1
	default:
		return 0
	}
}

// topSeverity returns the highest severity among rules, or "" when none is set.
func topSeverity(rules types.Rules) string {
	top, rank := "", 0
	for _, r := range rules {
		s := r.Severity.String()
		if n := severityRank(s); n > rank {
			top, rank = strings.ToLower(s), n
		}
	}
	return top
}

func severityColor(s string) string {
	switch s {
	case "critical":
		return "8B0000"
	case "high", "error":
		return "FF4F6A"
	case "medium", "warning":
		return "FFAB40"
	case "low", "notice":
		return "FFE066"
	default:
		return "00D4FF"
	}
}

// truncate shortens s to at most limit runes, ending with an ellipsis.
func truncate(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return string(runes[:limit-1]) + "…"
}
