package simulation

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"math"

	"github.com/google/uuid"
	"github.com/nvandessel/elisalab/internal/constants"
	"github.com/nvandessel/elisalab/internal/curvefit"
	"github.com/nvandessel/elisalab/internal/errinject"
	"github.com/nvandessel/elisalab/internal/generator"
	"github.com/nvandessel/elisalab/internal/models"
	"github.com/nvandessel/elisalab/internal/qc"
	"gonum.org/v1/gonum/stat"
)

// runNamespace scopes run IDs so they never collide with other SHA1 UUIDs.
var runNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://github.com/nvandessel/elisalab/run"))

// Run executes the scenario and returns its report.
//
// Only configuration problems return an error. A curve that cannot be fitted
// is recorded in Report.FitErr and the steps that need it are skipped.
func Run(sc Scenario) (Report, error) {
	if err := sc.Validate(); err != nil {
		return Report{}, fmt.Errorf("scenario %q: %w", sc.Name, err)
	}
	sc = sc.withDefaults()
	logger := sc.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	// Phase 1: generate and perturb the plate.
	raw, err := generator.Generate(sc.Assay, sc.Seed)
	if err != nil {
		return Report{}, fmt.Errorf("generating plate: %w", err)
	}
	data, err := errinject.Apply(raw, sc.Errors)
	if err != nil {
		return Report{}, fmt.Errorf("injecting errors: %w", err)
	}

	report := Report{
		RunID:           RunID(sc),
		Name:            sc.Name,
		Seed:            sc.Seed,
		ActiveErrors:    sc.Errors.Active(),
		BlankSubtracted: sc.SubtractBlank,
		FitKind:         sc.FitKind,
		Hints:           DiagnosisHints,
	}
	logger.Info("simulation run",
		"run_id", report.RunID,
		"seed", sc.Seed,
		"fit", sc.FitKind,
		"errors", report.ActiveErrors)

	// Phase 2: blank handling.
	blankMean, _ := generator.BlankMean(data.Wells)
	report.BlankMean = blankMean
	if sc.SubtractBlank {
		data = generator.SubtractBlank(data)
	}
	report.Dataset = data

	// Phase 3: fit the standard curve on level means.
	report.StandardCV = qc.GroupStats(data.Wells, models.WellTypeStandard)
	report.UnknownCV = qc.GroupStats(data.Wells, models.WellTypeUnknown)
	conc, means := qc.StandardCurve(data.Wells)

	fit, predicted, fitErr := curvefit.Fit(conc, means, sc.FitKind)
	report.Curve = make([]CurvePoint, len(conc))
	for i := range conc {
		report.Curve[i] = CurvePoint{
			Level:         report.StandardCV[i].Level,
			Concentration: conc[i],
			Mean:          means[i],
			Predicted:     math.NaN(),
			Residual:      math.NaN(),
		}
	}
	if fitErr != nil {
		report.FitErr = fitErr
		report.FitError = fitErr.Error()
		logger.Warn("curve fit failed", "run_id", report.RunID, "kind", sc.FitKind, "error", fitErr)
	} else {
		report.Fit = fit
		residuals := curvefit.Residuals(means, predicted)
		for i := range report.Curve {
			report.Curve[i].Predicted = predicted[i]
			report.Curve[i].Residual = residuals[i]
		}
		logger.Debug("curve fitted", "run_id", report.RunID, "params", fit.String())
	}

	// Phase 4: back-calculate unknowns.
	report.BackCalc = backCalculate(report.UnknownCV, data, report.Fit, fitErr)
	for _, b := range report.Flagged() {
		logger.Debug("back-calculation flagged", "run_id", report.RunID, "unknown", b.Unknown, "flag", b.Flag)
	}

	// Phase 5: detection limits from blanks on the same scale as the curve.
	if fitErr != nil {
		report.LimitsError = "skipped: " + fitErr.Error()
	} else {
		blanks := models.Signals(models.Filter(data.Wells, models.WellTypeBlank))
		if sc.SubtractBlank {
			for i := range blanks {
				blanks[i] -= blankMean
			}
		}
		limits, err := qc.DetectionLimits(blanks, report.Fit)
		if err != nil {
			report.LimitsError = err.Error()
		} else {
			report.Limits = &limits
		}
	}

	// Phase 6: controls and qualitative calls.
	report.Positive = positiveControl(data, sc.SubtractBlank)
	report.Cutoff = qc.ComputeCutoff(data.Wells, sc.Negatives, sc.Multiplier)
	var called []models.Well
	for _, w := range data.Wells {
		if w.Type == models.WellTypeUnknown || w.Type == models.WellTypePositive {
			called = append(called, w)
		}
	}
	report.Calls = qc.Classify(called, report.Cutoff, *sc.Margin)

	logger.Debug("simulation complete",
		"run_id", report.RunID,
		"fit_ok", report.FitOK(),
		"flagged", len(report.Flagged()),
		"positive_pass", report.Positive.Pass)
	return report, nil
}

// RunID derives a stable identifier from the scenario. Equal scenarios get
// equal IDs.
func RunID(sc Scenario) string {
	key, err := json.Marshal(sc)
	if err != nil {
		key = fmt.Appendf(nil, "%s|%d|%s", sc.Name, sc.Seed, sc.FitKind)
	}
	return uuid.NewSHA1(runNamespace, key).String()
}

func backCalculate(unknowns []qc.GroupStat, data generator.Dataset, fit curvefit.Params, fitErr error) []BackCalc {
	out := make([]BackCalc, 0, len(unknowns))
	for _, g := range unknowns {
		b := BackCalc{
			Unknown:    g.Unknown,
			MeanSignal: g.Mean,
			CalcConc:   math.NaN(),
			TrueConc:   g.Concentration,
			PctError:   math.NaN(),
		}
		if g.Unknown >= 1 && g.Unknown <= len(data.UnknownConcentrations) {
			b.TrueConc = data.UnknownConcentrations[g.Unknown-1]
		}

		if fitErr != nil {
			b.Flag = FlagFitFailed
			out = append(out, b)
			continue
		}

		calc, err := curvefit.Invert(g.Mean, fit)
		switch {
		case err != nil || math.IsNaN(calc):
			b.Flag = FlagOutOfRange
		default:
			b.CalcConc = calc
			if b.TrueConc != 0 {
				b.PctError = (calc - b.TrueConc) / b.TrueConc * 100
			}
			if calc < data.Config.MinConc || calc > data.Config.MaxConc {
				b.Flag = FlagExtrapolated
			}
		}
		out = append(out, b)
	}
	return out
}

// positiveControl compares the positive wells with the signal the
// generative curve promises at the control's concentration.
func positiveControl(data generator.Dataset, subtracted bool) PositiveControl {
	signals := models.Signals(models.Filter(data.Wells, models.WellTypePositive))
	cfg := data.Config
	pc := PositiveControl{
		Concentration: data.PositiveConcentration,
		Mean:          math.NaN(),
		CV:            qc.CV(signals),
		Expected:      cfg.Truth.Predict(data.PositiveConcentration),
		Ratio:         math.NaN(),
	}
	if !subtracted {
		pc.Expected += cfg.Background
	}
	if len(signals) > 0 {
		pc.Mean = stat.Mean(signals, nil)
	}
	if pc.Expected > 0 && !math.IsNaN(pc.Mean) {
		pc.Ratio = pc.Mean / pc.Expected
		pc.Pass = pc.Ratio >= constants.PositiveControlMinRatio
	}
	return pc
}
