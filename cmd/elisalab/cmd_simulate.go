package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/nvandessel/elisalab/internal/config"
	"github.com/nvandessel/elisalab/internal/errinject"
	"github.com/nvandessel/elisalab/internal/logging"
	"github.com/nvandessel/elisalab/internal/plot"
	"github.com/nvandessel/elisalab/internal/simulation"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newSimulateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Simulate a plate, fit the standard curve and back-calculate unknowns",
		Long: `Generate a simulated ELISA plate from the configured truth curve,
optionally inject bench errors, fit the standards and report CVs,
back-calculated unknowns, detection limits and cut-off calls.

Examples:
  elisalab simulate                              # Clean run with config defaults
  elisalab simulate --preset wrong-dilution      # Troubleshooting scenario
  elisalab simulate --fit log --seed 7 --json    # Log-linear fit, JSON report
  elisalab simulate --preset outlier --yaml      # Full report as YAML
  elisalab simulate --contamination 0.15 --subtract-blank
  elisalab simulate --chart curve.png --residuals residuals.svg`,
		RunE: runSimulate,
	}

	cmd.Flags().Uint64("seed", 0, "Random seed (default from config)")
	cmd.Flags().Int("levels", 0, "Number of standard levels")
	cmd.Flags().Int("replicates", 0, "Replicates per well group")
	cmd.Flags().Float64("noise", 0, "Per-well noise standard deviation")
	cmd.Flags().Float64("background", 0, "Background signal added to every well")
	cmd.Flags().String("fit", "", "Fit kind: linear, log or 4pl")
	cmd.Flags().Bool("subtract-blank", false, "Subtract the mean blank before fitting")
	cmd.Flags().String("preset", "", "Troubleshooting preset (see 'elisalab presets')")

	cmd.Flags().Int("pipetting-level", 0, "Standard level with a pipetting bias")
	cmd.Flags().Float64("pipetting-fraction", 0.25, "Relative pipetting bias in [-0.5, 0.5]")
	cmd.Flags().Float64("reagent-scale", 0, "Reagent failure signal multiplier in (0, 1]")
	cmd.Flags().Float64("contamination", 0, "Signal added to every well")
	cmd.Flags().Int("outlier-level", 0, "Standard level carrying one outlier well")
	cmd.Flags().Int("outlier-replicate", 0, "Replicate index of the outlier well")
	cmd.Flags().Float64("outlier-amount", 0.8, "Signal added to the outlier well")
	cmd.Flags().Bool("wrong-dilution", false, "Dilute unknown 1 ten-fold too much")

	cmd.Flags().String("chart", "", "Write the standard curve chart (.png or .svg)")
	cmd.Flags().String("residuals", "", "Write the residual chart (.png or .svg)")
	cmd.Flags().Bool("yaml", false, "Output the full report as YAML")

	return cmd
}

func runSimulate(cmd *cobra.Command, args []string) error {
	cfg, err := loadSettings(cmd)
	if err != nil {
		return err
	}
	if err := applySimulateFlags(cmd, cfg); err != nil {
		return err
	}

	sc, err := cfg.ToScenario()
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	sc.Name, _ = cmd.Flags().GetString("preset")
	sc.Logger = newLogger(cmd, cfg)

	report, err := simulation.Run(sc)
	if err != nil {
		return err
	}

	if dir, err := stateDir(); err == nil {
		ledger := logging.NewRunLedger(dir, cfg.Logging.Level)
		ledger.Record(map[string]any{
			"run_id":        report.RunID,
			"source":        "cli",
			"seed":          report.Seed,
			"fit_kind":      string(report.FitKind),
			"fit_ok":        report.FitOK(),
			"active_errors": report.ActiveErrors,
			"flagged":       len(report.Flagged()),
		})
		ledger.Close()
	}

	chartPath, _ := cmd.Flags().GetString("chart")
	if chartPath == "" {
		chartPath = cfg.Output.Chart
	}
	if chartPath != "" {
		if err := writeChart(chartPath, report, plot.RenderCurve); err != nil {
			return err
		}
	}
	if residualPath, _ := cmd.Flags().GetString("residuals"); residualPath != "" {
		if err := writeChart(residualPath, report, plot.RenderResiduals); err != nil {
			return err
		}
	}

	if jsonOutput(cmd) {
		return writeJSON(cmd.OutOrStdout(), report)
	}
	if yamlOut, _ := cmd.Flags().GetBool("yaml"); yamlOut {
		data, err := yaml.Marshal(report)
		if err != nil {
			return fmt.Errorf("failed to marshal report: %w", err)
		}
		_, err = cmd.OutOrStdout().Write(data)
		return err
	}
	printReport(cmd.OutOrStdout(), report)
	return nil
}

// applySimulateFlags layers explicitly set flags over the loaded config.
// A preset replaces the configured errors; individual error flags then add
// to whatever is active.
func applySimulateFlags(cmd *cobra.Command, cfg *config.ElisaConfig) error {
	flags := cmd.Flags()

	if flags.Changed("seed") {
		cfg.Assay.Seed, _ = flags.GetUint64("seed")
	}
	if flags.Changed("levels") {
		cfg.Assay.Levels, _ = flags.GetInt("levels")
	}
	if flags.Changed("replicates") {
		cfg.Assay.Replicates, _ = flags.GetInt("replicates")
	}
	if flags.Changed("noise") {
		cfg.Assay.NoiseSD, _ = flags.GetFloat64("noise")
	}
	if flags.Changed("background") {
		cfg.Assay.Background, _ = flags.GetFloat64("background")
	}
	if flags.Changed("fit") {
		cfg.Fit.Kind, _ = flags.GetString("fit")
	}
	if flags.Changed("subtract-blank") {
		cfg.Assay.SubtractBlank, _ = flags.GetBool("subtract-blank")
	}

	if name, _ := flags.GetString("preset"); name != "" {
		preset, ok := simulation.LookupPreset(name)
		if !ok {
			return fmt.Errorf("unknown preset %q (valid: %s)", name, strings.Join(presetNames(), ", "))
		}
		cfg.Errors = preset.Errors
	}

	if flags.Changed("pipetting-level") {
		level, _ := flags.GetInt("pipetting-level")
		fraction, _ := flags.GetFloat64("pipetting-fraction")
		cfg.Errors.PipettingBias = &errinject.PipettingBias{Level: level, Fraction: fraction}
	}
	if flags.Changed("reagent-scale") {
		scale, _ := flags.GetFloat64("reagent-scale")
		cfg.Errors.ReagentFailure = &errinject.ReagentFailure{Scale: scale}
	}
	if flags.Changed("contamination") {
		add, _ := flags.GetFloat64("contamination")
		cfg.Errors.Contamination = &errinject.Contamination{Add: add}
	}
	if flags.Changed("outlier-level") {
		level, _ := flags.GetInt("outlier-level")
		replicate, _ := flags.GetInt("outlier-replicate")
		amount, _ := flags.GetFloat64("outlier-amount")
		cfg.Errors.Outlier = &errinject.Outlier{Level: level, Replicate: replicate, Amount: amount}
	}
	if wrong, _ := flags.GetBool("wrong-dilution"); wrong {
		cfg.Errors.WrongDilution = &errinject.WrongDilution{}
	}

	return nil
}

type renderFunc func(w io.Writer, r simulation.Report, f plot.Format) error

func writeChart(path string, report simulation.Report, render renderFunc) error {
	format, err := plot.FormatFromPath(path)
	if err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create chart file: %w", err)
	}
	if err := render(f, report, format); err != nil {
		f.Close()
		return fmt.Errorf("failed to render %s: %w", path, err)
	}
	return f.Close()
}

func printReport(w io.Writer, r simulation.Report) {
	fmt.Fprintf(w, "Run %s (seed %d)\n", r.RunID, r.Seed)
	if len(r.ActiveErrors) > 0 {
		fmt.Fprintf(w, "Injected errors: %s\n", strings.Join(r.ActiveErrors, ", "))
	} else {
		fmt.Fprintln(w, "Injected errors: none")
	}
	if r.BlankSubtracted {
		fmt.Fprintf(w, "Blank subtracted: %.4f\n", r.BlankMean)
	}
	fmt.Fprintln(w)

	if r.FitOK() {
		fmt.Fprintf(w, "Fit: %s\n", r.Fit)
	} else {
		fmt.Fprintf(w, "Fit failed: %s\n", r.FitError)
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Standards:")
	fmt.Fprintf(w, "  %-5s %10s %8s %9s %9s %7s\n", "level", "conc", "mean", "pred", "resid", "cv%")
	for i, p := range r.Curve {
		cv := "n/a"
		if i < len(r.StandardCV) {
			cv = formatFloat(r.StandardCV[i].CV, 1)
		}
		fmt.Fprintf(w, "  %-5d %10.3f %8.4f %9s %9s %7s\n",
			p.Level, p.Concentration, p.Mean, formatFloat(p.Predicted, 4), formatFloat(p.Residual, 4), cv)
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Unknowns:")
	for _, b := range r.BackCalc {
		line := fmt.Sprintf("  unknown %d: signal %.4f -> %s (true %.3f, error %s%%)",
			b.Unknown, b.MeanSignal, formatFloat(b.CalcConc, 3), b.TrueConc, formatFloat(b.PctError, 1))
		if b.Flag != simulation.FlagNone {
			line += " [" + b.Flag + "]"
		}
		fmt.Fprintln(w, line)
	}
	fmt.Fprintln(w)

	if r.Limits != nil {
		fmt.Fprintf(w, "LOD: signal %.4f, conc %s\n", r.Limits.LODSignal, formatFloat(r.Limits.LODConc, 4))
		fmt.Fprintf(w, "LOQ: signal %.4f, conc %s\n", r.Limits.LOQSignal, formatFloat(r.Limits.LOQConc, 4))
	} else if r.LimitsError != "" {
		fmt.Fprintf(w, "Detection limits unavailable: %s\n", r.LimitsError)
	}

	status := "PASS"
	if !r.Positive.Pass {
		status = "FAIL"
	}
	fmt.Fprintf(w, "Positive control: mean %.4f, expected %.4f, ratio %s [%s]\n",
		r.Positive.Mean, r.Positive.Expected, formatFloat(r.Positive.Ratio, 2), status)

	fmt.Fprintf(w, "%s\n", r.Cutoff)
	for _, c := range r.Calls {
		fmt.Fprintf(w, "  %-12s %8.4f  %s\n", c.Group(), c.Signal, c.Status)
	}

	if len(r.Flagged()) > 0 || !r.Positive.Pass || !r.FitOK() {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Troubleshooting hints:")
		for _, h := range r.Hints {
			fmt.Fprintf(w, "  - %s\n", h)
		}
	}
}

func presetNames() []string {
	names := make([]string, len(simulation.Presets))
	for i, p := range simulation.Presets {
		names[i] = p.Name
	}
	return names
}

func newPresetsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "presets",
		Short: "List troubleshooting presets",
		RunE: func(cmd *cobra.Command, args []string) error {
			if jsonOutput(cmd) {
				return writeJSON(cmd.OutOrStdout(), simulation.Presets)
			}
			w := cmd.OutOrStdout()
			for _, p := range simulation.Presets {
				fmt.Fprintf(w, "  %-16s %s\n", p.Name, p.Description)
			}
			return nil
		},
	}
}
