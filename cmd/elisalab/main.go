package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/nvandessel/elisalab/internal/config"
	"github.com/nvandessel/elisalab/internal/logging"
	"github.com/spf13/cobra"
)

var (
	version = "0.1.0-dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "elisalab",
		Short: "ELISA assay simulator and analysis toolkit",
		Long: `elisalab simulates ELISA plates, fits standard curves and teaches
assay troubleshooting.

It generates standards, blanks, controls and unknowns from a known truth
curve, injects common bench errors, fits linear, log-linear or 4PL curves,
back-calculates unknowns and computes CV, LOD/LOQ and cut-off calls.`,
		SilenceUsage: true,
	}

	// Global flags
	rootCmd.PersistentFlags().Bool("json", false, "Output as JSON (for agent consumption)")
	rootCmd.PersistentFlags().String("config", "", "Config file (default ~/.elisalab/config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: info, debug or trace (overrides config)")

	rootCmd.AddCommand(
		newVersionCmd(),
		newSimulateCmd(),
		newPresetsCmd(),
		newFitCmd(),
		newInvertCmd(),
		newCVCmd(),
		newLimitsCmd(),
		newClassifyCmd(),
		newConfigCmd(),
		newMCPServerCmd(),
	)

	return rootCmd
}

// loadSettings resolves configuration for a command: the --config file if
// given, otherwise the default locations, then the --log-level override.
func loadSettings(cmd *cobra.Command) (*config.ElisaConfig, error) {
	path, _ := cmd.Flags().GetString("config")

	var (
		cfg *config.ElisaConfig
		err error
	)
	if path != "" {
		cfg, err = config.LoadFromFile(path)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if level, _ := cmd.Flags().GetString("log-level"); level != "" {
		cfg.Logging.Level = level
	}
	return cfg, nil
}

// newLogger returns the operational logger for a command. Logs always go to
// stderr so --json output stays machine-readable.
func newLogger(cmd *cobra.Command, cfg *config.ElisaConfig) *slog.Logger {
	return logging.NewLogger(cfg.Logging.Level, cmd.ErrOrStderr())
}

// stateDir returns ~/.elisalab, where the run ledger and MCP audit log live.
func stateDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(homeDir, ".elisalab"), nil
}

func jsonOutput(cmd *cobra.Command) bool {
	jsonOut, _ := cmd.Flags().GetBool("json")
	return jsonOut
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// parseFloats parses a comma-separated list of numbers.
func parseFloats(s string) ([]float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	out := make([]float64, 0, len(parts))
	for _, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid number %q", strings.TrimSpace(p))
		}
		out = append(out, f)
	}
	return out, nil
}

// formatFloat renders NaN as "n/a" for human-readable tables.
func formatFloat(v float64, prec int) string {
	if math.IsNaN(v) {
		return "n/a"
	}
	return strconv.FormatFloat(v, 'f', prec, 64)
}
