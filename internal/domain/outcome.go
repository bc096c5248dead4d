package domain

// Stage names for the validation pipeline, in execution order.
const (
	StageIngest           = "ingest"
	StageVolumeAnalysis   = "volume_analysis"
	StageRangeDetection   = "range_detection"
	StagePhaseClassify    = "phase_classification"
	StagePatternDetection = "pattern_detection"
	StageRiskValidation   = "risk_validation"
	StageSignalGeneration = "signal_generation"
)

// PipelineStages lists the stage names in strict execution order.
var PipelineStages = []string{
	StageIngest,
	StageVolumeAnalysis,
	StageRangeDetection,
	StagePhaseClassify,
	StagePatternDetection,
	StageRiskValidation,
	StageSignalGeneration,
}

// ValidationOutcome is the single, final result for a pattern that
// entered the pipeline. Exactly one outcome exists per pattern; a
// rejected pattern never reaches signal generation and there is no
// override path.
type ValidationOutcome struct {
	Pattern   Pattern          `json:"pattern"`
	Validated bool             `json:"validated"`
	Score     *ConfidenceScore `json:"score,omitempty"`
	Sizing    *PositionSizing  `json:"sizing,omitempty"`

	// Rejection details, set only when Validated is false
	Stage  string `json:"stage,omitempty"`
	Reason string `json:"reason,omitempty"`
}

// Accepted builds a validated outcome.
func Accepted(p Pattern, score ConfidenceScore, sizing PositionSizing) ValidationOutcome {
	return ValidationOutcome{
		Pattern:   p,
		Validated: true,
		Score:     &score,
		Sizing:    &sizing,
	}
}

// Rejected builds a terminal rejection at the named stage.
func Rejected(p Pattern, stage, reason string) ValidationOutcome {
	return ValidationOutcome{
		Pattern:   p,
		Validated: false,
		Stage:     stage,
		Reason:    reason,
	}
}
