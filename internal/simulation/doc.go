// Package simulation runs the full troubleshooting pipeline for one plate:
// generate, inject errors, optionally subtract blanks, fit the standard
// curve, back-calculate the unknowns and compute QC statistics.
//
// A run is a pure function of its Scenario. Equal scenarios produce equal
// reports, including the run ID.
//
// Usage:
//
//	report, err := simulation.Run(simulation.Scenario{
//	    Name:    "reagent-failure",
//	    Assay:   simulation.DefaultAssay(),
//	    Seed:    42,
//	    FitKind: curvefit.KindFourPL,
//	    Errors:  errinject.Config{ReagentFailure: &errinject.ReagentFailure{Scale: 0.6}},
//	})
//	if err != nil {
//	    return err // configuration problem
//	}
//	if report.FitErr != nil {
//	    // the curve could not be fitted; back-calculation was skipped
//	}
package simulation
