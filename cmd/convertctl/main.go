// Command convertctl runs conversions against the template workbook from the shell.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"portalia/internal/config"
	"portalia/internal/engine/excel"
	"portalia/internal/service/convert"
	"portalia/internal/service/fallback"
	"portalia/internal/workbook"
)

var (
	configPath string
	verbose    bool
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "convertctl",
		Short:         "TJM / brut / net conversions through the PORTALIA workbook",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	root.PersistentFlags().StringVar(&configPath, "config", "", "config file (default $CONFIG_PATH or ./config/local.yaml)")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logs on stderr")

	root.AddCommand(newConvertCmd(), newInspectCmd(), newFallbackCmd())
	return root
}

func loadConfig() *config.Config {
	if configPath != "" {
		os.Setenv("CONFIG_PATH", configPath)
	}
	return config.MustConfig()
}

func newLogger(w io.Writer) *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

func newService(cfg *config.Config, log *slog.Logger) *convert.Service {
	eng := excel.New(log, excel.Options{
		Command:      cfg.Engine.Command,
		MacroCommand: cfg.Engine.MacroCommand,
		StartTimeout: cfg.Engine.StartTimeout,
	})
	sessions := workbook.NewManager(log, eng, cfg.Workbook.TemplatePath, cfg.Workbook.WorkDir, cfg.Workbook.CandidateGlobs)
	return convert.NewService(log, sessions, convert.Options{CommuneSheet: cfg.Workbook.CommuneSheet})
}

func ratesFromConfig(cfg *config.Config) fallback.Rates {
	return fallback.Rates{
		WorkedDays:     cfg.Fallback.WorkedDays,
		FixedFeeRate:   cfg.Fallback.FixedFeeRate,
		ProvisionRate:  cfg.Fallback.ProvisionRate,
		EmployeeRate:   cfg.Fallback.EmployeeRate,
		EmployerRate:   cfg.Fallback.EmployerRate,
		FixedAllowance: cfg.Fallback.FixedAllowance,
	}
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	return nil
}
