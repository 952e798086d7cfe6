package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/spf13/cobra"

	"github.com/alertrelay/alertrelay/pkg/types"
	"github.com/alertrelay/alertrelay/server/internal/alerts"
)

func newRenderCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "render [file]",
		Short: "Print the chat message an alert payload would produce",
		Long: `Reads an alert payload from file (or stdin when file is omitted or "-")
and prints the rendered Markdown message without sending it.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := readPayload(cmd, args)
			if err != nil {
				return err
			}
			p, err := types.Parse(body)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), alerts.Render(p))
			return nil
		},
	}
}

func newSendCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "send [file]",
		Short: "Forward one alert payload to the configured webhook",
		Long: `Reads an alert payload from file (or stdin when file is omitted or "-"),
forwards it exactly as the server would, and prints the response body.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			setupLogging(cfg)

			body, err := readPayload(cmd, args)
			if err != nil {
				return err
			}

			f, err := alerts.New(cfg.Webhook, alerts.WithUserAgent(userAgent()))
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), cfg.Webhook.Timeout)
			defer cancel()

			res := f.Handle(ctx, body)
			fmt.Fprintln(cmd.OutOrStdout(), res.Body)
			if res.Status != http.StatusOK {
				return fmt.Errorf("send: HTTP %d", res.Status)
			}
			return nil
		},
	}
}

// readPayload reads the named file, or the command's stdin for "" and "-".
func readPayload(cmd *cobra.Command, args []string) ([]byte, error) {
	if len(args) == 0 || args[0] == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	body, err := os.ReadFile(args[0])
	if err != nil {
		return nil, fmt.Errorf("read payload: %w", err)
	}
	return body, nil
}
