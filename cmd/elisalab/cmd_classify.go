package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/nvandessel/elisalab/internal/models"
	"github.com/nvandessel/elisalab/internal/practice"
	"github.com/nvandessel/elisalab/internal/qc"
	"github.com/nvandessel/elisalab/internal/sanitize"
	"github.com/spf13/cobra"
)

func newClassifyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "classify",
		Short: "Classify wells as Positive, Negative or Equivocal against a cut-off",
		Long: `Compute the cut-off value (COV) as the multiplier times the mean of the
negative controls and classify each well with an equivocal band of
±margin around it.

Without --well, a six-well practice plate is built for --format and
--preset and classified with Neg 1 and Neg 2 as negatives.

Examples:
  elisalab classify                                     # Indirect ELISA, clean preset
  elisalab classify --format competitive --preset borderline
  elisalab classify --well "Neg 1=0.10" --well "Neg 2=0.12" --well A=0.5 \
      --negative "Neg 1" --negative "Neg 2"`,
		RunE: runClassify,
	}

	cmd.Flags().StringArray("well", nil, "Well as name=signal (repeatable)")
	cmd.Flags().StringArray("negative", nil, "Negative-control well name (repeatable)")
	cmd.Flags().Float64("multiplier", 0, "Cut-off multiplier (default from config)")
	cmd.Flags().Float64("margin", -1, "Equivocal half-width (default from config)")
	cmd.Flags().String("format", string(practice.FormatIndirect), "Practice plate format: indirect, sandwich, direct or competitive")
	cmd.Flags().String("preset", "clean", "Practice plate preset: clean, borderline, weak-positives or high-background")

	return cmd
}

func runClassify(cmd *cobra.Command, args []string) error {
	cfg, err := loadSettings(cmd)
	if err != nil {
		return err
	}

	multiplier, _ := cmd.Flags().GetFloat64("multiplier")
	if multiplier == 0 {
		multiplier = cfg.QC.CutoffMultiplier
	}
	margin, _ := cmd.Flags().GetFloat64("margin")
	if margin < 0 {
		margin = cfg.QC.EquivocalMargin
	}

	wellArgs, _ := cmd.Flags().GetStringArray("well")
	negatives, _ := cmd.Flags().GetStringArray("negative")
	negatives = sanitize.Labels(negatives)

	var (
		wells []models.Well
		hint  string
	)
	if len(wellArgs) > 0 {
		wells, err = parseWells(wellArgs)
		if err != nil {
			return err
		}
	} else {
		formatName, _ := cmd.Flags().GetString("format")
		format, err := practice.ParseFormat(formatName)
		if err != nil {
			return err
		}
		presetName, _ := cmd.Flags().GetString("preset")
		preset, ok := practice.LookupPreset(presetName)
		if !ok {
			return fmt.Errorf("unknown practice preset %q", presetName)
		}
		wells = practice.Plate(format, preset.Background, preset.LevelA, preset.LevelB)
		if len(negatives) == 0 {
			negatives = practice.DefaultNegatives
		}
		hint = format.Hint()
	}

	cutoff := qc.ComputeCutoff(wells, negatives, multiplier)
	calls := qc.Classify(wells, cutoff, margin)

	if jsonOutput(cmd) {
		return writeJSON(cmd.OutOrStdout(), map[string]any{
			"cutoff": cutoff,
			"margin": margin,
			"calls":  calls,
			"hint":   hint,
		})
	}

	w := cmd.OutOrStdout()
	if hint != "" {
		fmt.Fprintln(w, hint)
		fmt.Fprintln(w)
	}
	fmt.Fprintln(w, cutoff)
	for _, c := range calls {
		fmt.Fprintf(w, "  %-12s %8.3f  %s\n", c.Position, c.Signal, c.Status)
	}
	return nil
}

// parseWells parses name=signal pairs into sample wells.
func parseWells(args []string) ([]models.Well, error) {
	wells := make([]models.Well, 0, len(args))
	for _, arg := range args {
		name, value, ok := strings.Cut(arg, "=")
		name = sanitize.Label(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid --well %q (want name=signal)", arg)
		}
		signal, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid signal in --well %q", arg)
		}
		wells = append(wells, models.Well{Position: name, Type: models.WellTypeSample, Signal: signal})
	}
	return wells, nil
}
