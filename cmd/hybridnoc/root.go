package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/encodeous/tint"
	slogmulti "github.com/samber/slog-multi"
	"github.com/sarchlab/hybridnoc/noc"
	"github.com/spf13/cobra"
	"github.com/tebeka/atexit"
)

var (
	logLevel string
	logPath  string
)

var rootCmd = &cobra.Command{
	Use:   "hybridnoc",
	Short: "Cycle-accurate hybrid TDM/BE network-on-chip",
	Long: `hybridnoc simulates a 2D mesh NoC in which guaranteed-service TDM
channels and best-effort packets share the links. Channels are set up through
the NoC control module, exactly as the host would do on the chip.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return setupLogging(logLevel, logPath)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn",
		"log level: debug, trace, info, warn or error")
	rootCmd.PersistentFlags().StringVar(&logPath, "log-file", "",
		"also write the log to this file")
}

func parseLevel(s string) (slog.Level, error) {
	switch s {
	case "trace":
		return noc.LevelTrace, nil
	default:
		var l slog.Level
		if err := l.UnmarshalText([]byte(s)); err != nil {
			return 0, fmt.Errorf("log level %q: %w", s, err)
		}

		return l, nil
	}
}

// setupLogging writes colored logs to stderr and, if a path is given, plain
// text logs to a file.
func setupLogging(level, path string) error {
	l, err := parseLevel(level)
	if err != nil {
		return err
	}

	handlers := []slog.Handler{
		tint.NewHandler(os.Stderr, &tint.Options{
			Level:        l,
			CustomPrefix: "hybridnoc",
			ReplaceAttr: func(groups []string, attr slog.Attr) slog.Attr {
				if attr.Key == slog.TimeKey {
					return slog.Attr{}
				}

				return attr
			},
		}),
	}

	if path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return err
		}

		f, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0o644)
		if err != nil {
			return err
		}

		atexit.Register(func() { _ = f.Close() })
		handlers = append(handlers, slog.NewTextHandler(f, &slog.HandlerOptions{Level: l}))
	}

	slog.SetDefault(slog.New(slogmulti.Fanout(handlers...)))

	return nil
}
