package mcp

import (
	"context"
	"fmt"
	"time"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/nvandessel/elisalab/internal/config"
	"github.com/nvandessel/elisalab/internal/curvefit"
	"github.com/nvandessel/elisalab/internal/models"
	"github.com/nvandessel/elisalab/internal/practice"
	"github.com/nvandessel/elisalab/internal/qc"
	"github.com/nvandessel/elisalab/internal/ratelimit"
	"github.com/nvandessel/elisalab/internal/sanitize"
	"github.com/nvandessel/elisalab/internal/simulation"
	"gonum.org/v1/gonum/stat"
)

// registerTools registers all elisalab MCP tools with the server.
func (s *Server) registerTools() {
	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "elisa_simulate",
		Description: "Simulate an ELISA plate with optional injected errors, fit the standard curve and back-calculate the unknowns",
	}, s.handleElisaSimulate)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "elisa_fit",
		Description: "Fit a linear, log-linear or four-parameter logistic curve to standard concentrations and signals",
	}, s.handleElisaFit)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "elisa_invert",
		Description: "Convert signals into concentrations through a fitted curve",
	}, s.handleElisaInvert)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "elisa_cv",
		Description: "Compute the coefficient of variation of replicate signals",
	}, s.handleElisaCV)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "elisa_detection_limits",
		Description: "Compute LOD (blank mean + 3 SD) and LOQ (blank mean + 10 SD) and convert them to concentrations",
	}, s.handleElisaDetectionLimits)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "elisa_cutoff_classify",
		Description: "Compute a cut-off from negative controls and classify wells as Positive, Negative or Equivocal",
	}, s.handleElisaCutoffClassify)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "elisa_practice_plate",
		Description: "Build and classify the six-well practice plate for a given ELISA format and preset",
	}, s.handleElisaPracticePlate)
}

// handleElisaSimulate implements the elisa_simulate tool.
func (s *Server) handleElisaSimulate(ctx context.Context, req *sdk.CallToolRequest, args ElisaSimulateInput) (_ *sdk.CallToolResult, _ ElisaSimulateOutput, retErr error) {
	start := time.Now()
	defer func() {
		params := map[string]any{
			"fit_kind": args.FitKind, "preset": args.Preset,
			"levels": args.Levels, "replicates": args.Replicates, "subtract_blank": args.SubtractBlank,
		}
		if args.Seed != nil {
			params["seed"] = *args.Seed
		}
		s.auditTool("elisa_simulate", start, retErr, sanitizeToolParams(params))
	}()

	if err := ratelimit.CheckLimit(s.toolLimiters, "elisa_simulate"); err != nil {
		return nil, ElisaSimulateOutput{}, err
	}

	sc, err := s.scenarioFor(args)
	if err != nil {
		return nil, ElisaSimulateOutput{}, err
	}
	sc.Logger = s.logger

	report, err := simulation.Run(sc)
	if err != nil {
		return nil, ElisaSimulateOutput{}, fmt.Errorf("simulation failed: %w", err)
	}

	s.ledger.Record(map[string]any{
		"run_id":        report.RunID,
		"source":        "mcp",
		"seed":          report.Seed,
		"fit_kind":      string(report.FitKind),
		"fit_ok":        report.FitOK(),
		"active_errors": report.ActiveErrors,
		"flagged":       len(report.Flagged()),
	})

	return nil, simulateOutput(report), nil
}

// scenarioFor merges tool arguments over the server's configured defaults.
func (s *Server) scenarioFor(args ElisaSimulateInput) (simulation.Scenario, error) {
	cfg := *s.settings
	if args.Seed != nil {
		cfg.Assay.Seed = *args.Seed
	}
	if args.Levels != 0 {
		cfg.Assay.Levels = args.Levels
	}
	if args.MinConc != 0 {
		cfg.Assay.MinConc = args.MinConc
	}
	if args.MaxConc != 0 {
		cfg.Assay.MaxConc = args.MaxConc
	}
	if args.Replicates != 0 {
		cfg.Assay.Replicates = args.Replicates
	}
	if args.Background != nil {
		cfg.Assay.Background = *args.Background
	}
	if args.NoiseSD != nil {
		cfg.Assay.NoiseSD = *args.NoiseSD
	}
	if args.Truth != nil {
		cfg.Truth = truthConfig(*args.Truth)
	}
	if args.FitKind != "" {
		cfg.Fit.Kind = args.FitKind
	}
	if args.SubtractBlank {
		cfg.Assay.SubtractBlank = true
	}
	if args.Preset != "" {
		p, ok := simulation.LookupPreset(args.Preset)
		if !ok {
			return simulation.Scenario{}, fmt.Errorf("unknown preset %q", args.Preset)
		}
		cfg.Errors = p.Errors
	}
	if args.Errors != nil {
		cfg.Errors = *args.Errors
	}

	sc, err := cfg.ToScenario()
	if err != nil {
		return simulation.Scenario{}, fmt.Errorf("invalid arguments: %w", err)
	}
	sc.Name = sanitize.Label(args.Preset)
	return sc, nil
}

func simulateOutput(r simulation.Report) ElisaSimulateOutput {
	out := ElisaSimulateOutput{
		RunID:        r.RunID,
		Seed:         r.Seed,
		ActiveErrors: r.ActiveErrors,
		FitKind:      string(r.FitKind),
		FitError:     r.FitError,
		StandardCV:   groupOutputs(r.StandardCV),
		UnknownCV:    groupOutputs(r.UnknownCV),
		PositiveControl: PositiveControlOutput{
			Mean:     r.Positive.Mean,
			Expected: r.Positive.Expected,
			Ratio:    models.Finite(r.Positive.Ratio),
			Pass:     r.Positive.Pass,
		},
		Hints: r.Hints,
	}
	if out.ActiveErrors == nil {
		out.ActiveErrors = []string{}
	}
	if r.FitOK() {
		out.Fit = r.Fit.String()
	}
	for _, p := range r.Curve {
		out.Curve = append(out.Curve, CurvePointOutput{
			Level:         p.Level,
			Concentration: p.Concentration,
			Mean:          p.Mean,
			Predicted:     models.Finite(p.Predicted),
			Residual:      models.Finite(p.Residual),
		})
	}
	for _, b := range r.BackCalc {
		out.BackCalc = append(out.BackCalc, BackCalcOutput{
			Unknown:    b.Unknown,
			MeanSignal: b.MeanSignal,
			CalcConc:   models.Finite(b.CalcConc),
			TrueConc:   b.TrueConc,
			PctError:   models.Finite(b.PctError),
			Flag:       b.Flag,
		})
	}
	if r.Limits != nil {
		l := limitsOutput(*r.Limits)
		out.Limits = &l
	}
	return out
}

func groupOutputs(groups []qc.GroupStat) []GroupOutput {
	out := make([]GroupOutput, len(groups))
	for i, g := range groups {
		out[i] = GroupOutput{Group: g.Group, N: g.N, Mean: g.Mean, SD: g.SD, CV: models.Finite(g.CV)}
	}
	return out
}

func limitsOutput(l qc.Limits) LimitsOutput {
	return LimitsOutput{
		BlankMean: l.BlankMean,
		BlankSD:   l.BlankSD,
		LODSignal: l.LODSignal,
		LOQSignal: l.LOQSignal,
		LODConc:   models.Finite(l.LODConc),
		LOQConc:   models.Finite(l.LOQConc),
		LODError:  models.ErrString(l.LODErr),
		LOQError:  models.ErrString(l.LOQErr),
	}
}

func truthConfig(p CurveParams) config.TruthConfig {
	return config.TruthConfig{
		Kind:      p.Kind,
		Slope:     p.Slope,
		Intercept: p.Intercept,
		Bottom:    p.Bottom,
		Top:       p.Top,
		EC50:      p.EC50,
		Hill:      p.Hill,
	}
}

// curveParams converts tool arguments into validated curve parameters.
func curveParams(p CurveParams) (curvefit.Params, error) {
	params, err := truthConfig(p).Params()
	if err != nil {
		return curvefit.Params{}, err
	}
	if err := params.Validate(); err != nil {
		return curvefit.Params{}, err
	}
	return params, nil
}

func toCurveParams(p curvefit.Params) CurveParams {
	return CurveParams{
		Kind:      string(p.Kind),
		Slope:     p.Slope,
		Intercept: p.Intercept,
		Bottom:    p.FourPL.Bottom,
		Top:       p.FourPL.Top,
		EC50:      p.FourPL.EC50,
		Hill:      p.FourPL.Hill,
	}
}

// handleElisaFit implements the elisa_fit tool.
func (s *Server) handleElisaFit(ctx context.Context, req *sdk.CallToolRequest, args ElisaFitInput) (_ *sdk.CallToolResult, _ ElisaFitOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool("elisa_fit", start, retErr, sanitizeToolParams(map[string]any{
			"concentrations": args.Concentrations, "signals": args.Signals, "kind": args.Kind,
		}))
	}()

	if err := ratelimit.CheckLimit(s.toolLimiters, "elisa_fit"); err != nil {
		return nil, ElisaFitOutput{}, err
	}

	kindName := args.Kind
	if kindName == "" {
		kindName = s.settings.Fit.Kind
	}
	kind, err := curvefit.ParseKind(kindName)
	if err != nil {
		return nil, ElisaFitOutput{}, err
	}

	params, predicted, err := curvefit.Fit(args.Concentrations, args.Signals, kind)
	if err != nil {
		return nil, ElisaFitOutput{}, fmt.Errorf("fit failed: %w", err)
	}
	s.logger.Debug("fit", "kind", kind, "params", params.String())

	return nil, ElisaFitOutput{
		Params:    toCurveParams(params),
		Summary:   params.String(),
		Predicted: predicted,
		Residuals: curvefit.Residuals(args.Signals, predicted),
	}, nil
}

// handleElisaInvert implements the elisa_invert tool.
func (s *Server) handleElisaInvert(ctx context.Context, req *sdk.CallToolRequest, args ElisaInvertInput) (_ *sdk.CallToolResult, _ ElisaInvertOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool("elisa_invert", start, retErr, sanitizeToolParams(map[string]any{
			"signals": args.Signals, "kind": args.Params.Kind,
		}))
	}()

	if err := ratelimit.CheckLimit(s.toolLimiters, "elisa_invert"); err != nil {
		return nil, ElisaInvertOutput{}, err
	}

	params, err := curveParams(args.Params)
	if err != nil {
		return nil, ElisaInvertOutput{}, fmt.Errorf("invalid params: %w", err)
	}

	conc, errs := curvefit.InvertAll(args.Signals, params)
	out := ElisaInvertOutput{Results: make([]InvertResult, len(conc))}
	for i := range conc {
		out.Results[i] = InvertResult{
			Signal:        args.Signals[i],
			Concentration: models.Finite(conc[i]),
			Error:         models.ErrString(errs[i]),
		}
	}
	return nil, out, nil
}

// handleElisaCV implements the elisa_cv tool.
func (s *Server) handleElisaCV(ctx context.Context, req *sdk.CallToolRequest, args ElisaCVInput) (_ *sdk.CallToolResult, _ ElisaCVOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool("elisa_cv", start, retErr, sanitizeToolParams(map[string]any{"values": args.Values}))
	}()

	if err := ratelimit.CheckLimit(s.toolLimiters, "elisa_cv"); err != nil {
		return nil, ElisaCVOutput{}, err
	}

	out := ElisaCVOutput{
		N:  len(args.Values),
		SD: qc.SampleSD(args.Values),
		CV: models.Finite(qc.CV(args.Values)),
	}
	if len(args.Values) > 0 {
		out.Mean = models.Finite(stat.Mean(args.Values, nil))
	}
	return nil, out, nil
}

// handleElisaDetectionLimits implements the elisa_detection_limits tool.
func (s *Server) handleElisaDetectionLimits(ctx context.Context, req *sdk.CallToolRequest, args ElisaDetectionLimitsInput) (_ *sdk.CallToolResult, _ LimitsOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool("elisa_detection_limits", start, retErr, sanitizeToolParams(map[string]any{
			"blanks": args.Blanks, "kind": args.Params.Kind,
		}))
	}()

	if err := ratelimit.CheckLimit(s.toolLimiters, "elisa_detection_limits"); err != nil {
		return nil, LimitsOutput{}, err
	}

	params, err := curveParams(args.Params)
	if err != nil {
		return nil, LimitsOutput{}, fmt.Errorf("invalid params: %w", err)
	}

	limits, err := qc.DetectionLimits(args.Blanks, params)
	if err != nil {
		return nil, LimitsOutput{}, err
	}
	return nil, limitsOutput(limits), nil
}

// handleElisaCutoffClassify implements the elisa_cutoff_classify tool.
func (s *Server) handleElisaCutoffClassify(ctx context.Context, req *sdk.CallToolRequest, args ElisaCutoffClassifyInput) (_ *sdk.CallToolResult, _ ElisaCutoffClassifyOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool("elisa_cutoff_classify", start, retErr, sanitizeToolParams(map[string]any{
			"wells": args.Wells, "negatives": args.Negatives, "multiplier": args.Multiplier,
		}))
	}()

	if err := ratelimit.CheckLimit(s.toolLimiters, "elisa_cutoff_classify"); err != nil {
		return nil, ElisaCutoffClassifyOutput{}, err
	}

	multiplier := args.Multiplier
	if multiplier == 0 {
		multiplier = s.settings.QC.CutoffMultiplier
	}
	margin := s.settings.QC.EquivocalMargin
	if args.Margin != nil {
		margin = *args.Margin
	}
	if multiplier < 0 || margin < 0 {
		return nil, ElisaCutoffClassifyOutput{}, fmt.Errorf("multiplier and margin must be non-negative")
	}

	wells := make([]models.Well, len(args.Wells))
	for i, w := range args.Wells {
		wells[i] = models.Well{Position: sanitize.Label(w.Name), Type: models.WellTypeSample, Signal: w.Signal}
	}

	return nil, classifyOutput(wells, sanitize.Labels(args.Negatives), multiplier, margin), nil
}

func classifyOutput(wells []models.Well, negatives []string, multiplier, margin float64) ElisaCutoffClassifyOutput {
	cutoff := qc.ComputeCutoff(wells, negatives, multiplier)
	classified := qc.Classify(wells, cutoff, margin)

	out := ElisaCutoffClassifyOutput{
		Cutoff:      models.Finite(cutoff.Value),
		AvgNegative: models.Finite(cutoff.AvgNegative),
		Defined:     cutoff.Defined,
		Calls:       make([]CallOutput, len(classified)),
		Summary:     make(map[string]int),
	}
	for i, c := range classified {
		out.Calls[i] = CallOutput{Name: c.Position, Signal: c.Signal, Status: c.Status.String()}
	}
	for status, n := range qc.Summary(classified) {
		out.Summary[status.String()] = n
	}
	return out
}

// handleElisaPracticePlate implements the elisa_practice_plate tool.
func (s *Server) handleElisaPracticePlate(ctx context.Context, req *sdk.CallToolRequest, args ElisaPracticePlateInput) (_ *sdk.CallToolResult, _ ElisaPracticePlateOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool("elisa_practice_plate", start, retErr, sanitizeToolParams(map[string]any{
			"format": args.Format, "preset": args.Preset,
		}))
	}()

	if err := ratelimit.CheckLimit(s.toolLimiters, "elisa_practice_plate"); err != nil {
		return nil, ElisaPracticePlateOutput{}, err
	}

	format := practice.FormatIndirect
	if args.Format != "" {
		f, err := practice.ParseFormat(args.Format)
		if err != nil {
			return nil, ElisaPracticePlateOutput{}, err
		}
		format = f
	}

	presetName := args.Preset
	if presetName == "" {
		presetName = "clean"
	}
	preset, ok := practice.LookupPreset(presetName)
	if !ok {
		return nil, ElisaPracticePlateOutput{}, fmt.Errorf("unknown practice preset %q", presetName)
	}
	if args.Background != nil {
		preset.Background = *args.Background
	}
	if args.LevelA != nil {
		preset.LevelA = *args.LevelA
	}
	if args.LevelB != nil {
		preset.LevelB = *args.LevelB
	}

	wells := practice.Plate(format, preset.Background, preset.LevelA, preset.LevelB)
	classified := classifyOutput(wells, practice.DefaultNegatives, s.settings.QC.CutoffMultiplier, s.settings.QC.EquivocalMargin)

	return nil, ElisaPracticePlateOutput{
		Format: string(format),
		Hint:   format.Hint(),
		Cutoff: classified.Cutoff,
		Calls:  classified.Calls,
	}, nil
}
