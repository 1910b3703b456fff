package main

import (
	"fmt"

	"github.com/nvandessel/elisalab/internal/config"
	"github.com/nvandessel/elisalab/internal/curvefit"
	"github.com/nvandessel/elisalab/internal/models"
	"github.com/nvandessel/elisalab/internal/qc"
	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/stat"
)

func newFitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fit",
		Short: "Fit a standard curve to concentrations and signals",
		Long: `Fit a linear, log-linear or four-parameter logistic curve.

Examples:
  elisalab fit --conc 1,2,5,10 --signal 0.12,0.22,0.51,0.98 --kind linear
  elisalab fit --conc 0.1,1,10,100,1000 --signal 0.06,0.2,1.3,2.3,2.5 --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadSettings(cmd)
			if err != nil {
				return err
			}

			conc, signals, err := concSignalFlags(cmd)
			if err != nil {
				return err
			}
			kindName, _ := cmd.Flags().GetString("kind")
			if kindName == "" {
				kindName = cfg.Fit.Kind
			}
			kind, err := curvefit.ParseKind(kindName)
			if err != nil {
				return err
			}

			params, predicted, err := curvefit.Fit(conc, signals, kind)
			if err != nil {
				return fmt.Errorf("fit failed: %w", err)
			}
			residuals := curvefit.Residuals(signals, predicted)
			newLogger(cmd, cfg).Debug("fit", "kind", kind, "params", params.String())

			if jsonOutput(cmd) {
				return writeJSON(cmd.OutOrStdout(), map[string]any{
					"params":    params,
					"summary":   params.String(),
					"predicted": predicted,
					"residuals": residuals,
				})
			}

			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "Fit: %s\n\n", params)
			fmt.Fprintf(w, "  %10s %9s %9s %9s\n", "conc", "signal", "pred", "resid")
			for i := range conc {
				fmt.Fprintf(w, "  %10.4g %9.4f %9.4f %9.4f\n", conc[i], signals[i], predicted[i], residuals[i])
			}
			return nil
		},
	}

	cmd.Flags().String("conc", "", "Comma-separated standard concentrations (required)")
	cmd.Flags().String("signal", "", "Comma-separated mean signals (required)")
	cmd.Flags().String("kind", "", "Fit kind: linear, log or 4pl (default from config)")
	cmd.MarkFlagRequired("conc")
	cmd.MarkFlagRequired("signal")

	return cmd
}

func concSignalFlags(cmd *cobra.Command) (conc, signals []float64, err error) {
	concStr, _ := cmd.Flags().GetString("conc")
	signalStr, _ := cmd.Flags().GetString("signal")
	if conc, err = parseFloats(concStr); err != nil {
		return nil, nil, fmt.Errorf("--conc: %w", err)
	}
	if signals, err = parseFloats(signalStr); err != nil {
		return nil, nil, fmt.Errorf("--signal: %w", err)
	}
	return conc, signals, nil
}

// addCurveFlags registers the flags describing an already-fitted curve.
func addCurveFlags(cmd *cobra.Command) {
	cmd.Flags().String("kind", "", "Curve kind: linear, log or 4pl (required)")
	cmd.Flags().Float64("slope", 0, "Slope (linear, log)")
	cmd.Flags().Float64("intercept", 0, "Intercept (linear, log)")
	cmd.Flags().Float64("bottom", 0, "Lower asymptote (4pl)")
	cmd.Flags().Float64("top", 0, "Upper asymptote (4pl)")
	cmd.Flags().Float64("ec50", 0, "Inflection concentration (4pl)")
	cmd.Flags().Float64("hill", 0, "Hill slope (4pl)")
	cmd.MarkFlagRequired("kind")
}

func curveFromFlags(cmd *cobra.Command) (curvefit.Params, error) {
	var t config.TruthConfig
	t.Kind, _ = cmd.Flags().GetString("kind")
	t.Slope, _ = cmd.Flags().GetFloat64("slope")
	t.Intercept, _ = cmd.Flags().GetFloat64("intercept")
	t.Bottom, _ = cmd.Flags().GetFloat64("bottom")
	t.Top, _ = cmd.Flags().GetFloat64("top")
	t.EC50, _ = cmd.Flags().GetFloat64("ec50")
	t.Hill, _ = cmd.Flags().GetFloat64("hill")

	params, err := t.Params()
	if err != nil {
		return curvefit.Params{}, err
	}
	if err := params.Validate(); err != nil {
		return curvefit.Params{}, fmt.Errorf("invalid curve: %w", err)
	}
	return params, nil
}

func newInvertCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "invert",
		Short: "Convert signals into concentrations through a fitted curve",
		Long: `Back-calculate concentrations from signals.

Examples:
  elisalab invert --signal 0.5,1.2 --kind linear --slope 0.02 --intercept 0.05
  elisalab invert --signal 1.5 --kind 4pl --bottom 0.05 --top 2.5 --ec50 5 --hill 1.2`,
		RunE: func(cmd *cobra.Command, args []string) error {
			params, err := curveFromFlags(cmd)
			if err != nil {
				return err
			}
			signalStr, _ := cmd.Flags().GetString("signal")
			signals, err := parseFloats(signalStr)
			if err != nil {
				return fmt.Errorf("--signal: %w", err)
			}

			conc, errs := curvefit.InvertAll(signals, params)

			if jsonOutput(cmd) {
				results := make([]map[string]any, len(signals))
				for i := range signals {
					results[i] = map[string]any{
						"signal":        signals[i],
						"concentration": models.Finite(conc[i]),
					}
					if errs[i] != nil {
						results[i]["error"] = errs[i].Error()
					}
				}
				return writeJSON(cmd.OutOrStdout(), map[string]any{"results": results})
			}

			w := cmd.OutOrStdout()
			for i := range signals {
				if errs[i] != nil {
					fmt.Fprintf(w, "  %9.4f -> %s\n", signals[i], errs[i])
					continue
				}
				fmt.Fprintf(w, "  %9.4f -> %.4g\n", signals[i], conc[i])
			}
			return nil
		},
	}

	cmd.Flags().String("signal", "", "Comma-separated signals (required)")
	cmd.MarkFlagRequired("signal")
	addCurveFlags(cmd)

	return cmd
}

func newCVCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cv <value>[,<value>...]",
		Short: "Compute the coefficient of variation of replicate signals",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			values, err := parseFloats(args[0])
			if err != nil {
				return err
			}

			sd := qc.SampleSD(values)
			cv := qc.CV(values)
			mean := 0.0
			if len(values) > 0 {
				mean = stat.Mean(values, nil)
			}

			if jsonOutput(cmd) {
				return writeJSON(cmd.OutOrStdout(), map[string]any{
					"n":      len(values),
					"mean":   models.Finite(mean),
					"sd":     sd,
					"cv_pct": models.Finite(cv),
				})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "n=%d mean=%.4f sd=%.4f cv=%s%%\n", len(values), mean, sd, formatFloat(cv, 2))
			return nil
		},
	}
}

func newLimitsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "limits",
		Short: "Compute LOD and LOQ from blank signals",
		Long: `Compute the limit of detection (blank mean + 3 SD) and limit of
quantitation (blank mean + 10 SD) and convert both through a fitted curve.

Example:
  elisalab limits --blanks 0.05,0.06,0.04 --kind linear --slope 0.5 --intercept 0.05`,
		RunE: func(cmd *cobra.Command, args []string) error {
			params, err := curveFromFlags(cmd)
			if err != nil {
				return err
			}
			blankStr, _ := cmd.Flags().GetString("blanks")
			blanks, err := parseFloats(blankStr)
			if err != nil {
				return fmt.Errorf("--blanks: %w", err)
			}

			limits, err := qc.DetectionLimits(blanks, params)
			if err != nil {
				return err
			}

			if jsonOutput(cmd) {
				return writeJSON(cmd.OutOrStdout(), limits)
			}
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "Blank: mean %.4f, sd %.4f\n", limits.BlankMean, limits.BlankSD)
			fmt.Fprintf(w, "LOD: signal %.4f, conc %s\n", limits.LODSignal, limitConc(limits.LODConc, limits.LODErr))
			fmt.Fprintf(w, "LOQ: signal %.4f, conc %s\n", limits.LOQSignal, limitConc(limits.LOQConc, limits.LOQErr))
			return nil
		},
	}

	cmd.Flags().String("blanks", "", "Comma-separated blank signals (required)")
	cmd.MarkFlagRequired("blanks")
	addCurveFlags(cmd)

	return cmd
}

func limitConc(conc float64, err error) string {
	if err != nil {
		return "n/a (" + err.Error() + ")"
	}
	return formatFloat(conc, 4)
}
