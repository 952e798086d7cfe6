package main

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"

	"github.com/prometheus/common/version"
	"github.com/spf13/cobra"

	"github.com/alertrelay/alertrelay/server/internal/config"
	"github.com/alertrelay/alertrelay/server/internal/logging"
)

const defaultConfigPath = "config.yaml"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "alertrelay",
		Short: "Relay security alerts to a chat webhook",
		Long: `alertrelay accepts security-alert JSON over HTTP, renders it as a
Markdown chat message, and posts it to a single incoming webhook.`,
		Version:      appVersion(),
		SilenceUsage: true,
	}
	root.SetVersionTemplate(version.Print("alertrelay") + "\n")
	root.PersistentFlags().StringP("config", "c", defaultConfigPath, "path to config file")

	root.AddCommand(newServeCmd(), newRenderCmd(), newSendCmd())
	return root
}

// loadConfig reads the --config file. A missing file at the default path
// falls back to built-in defaults; watchPath is then empty.
func loadConfig(cmd *cobra.Command) (cfg *config.Config, watchPath string, err error) {
	path, _ := cmd.Flags().GetString("config")

	cfg, err = config.Load(path)
	if err == nil {
		return cfg, path, nil
	}
	if errors.Is(err, fs.ErrNotExist) && !cmd.Flags().Changed("config") {
		return config.Default(), "", nil
	}
	return nil, "", err
}

// setupLogging installs the configured slog logger as the default and
// returns its level so it can be changed on reload.
func setupLogging(cfg *config.Config) *slog.LevelVar {
	level := new(slog.LevelVar)
	level.Set(logging.ParseLevel(cfg.Log.Level))
	slog.SetDefault(logging.New(os.Stderr, level, cfg.Log.Format))
	return level
}

// appVersion is set at build time with
// -ldflags "-X github.com/prometheus/common/version.Version=...".
func appVersion() string {
	if version.Version != "" {
		return version.Version
	}
	return "dev"
}

func userAgent() string {
	return "alertrelay/" + appVersion()
}
