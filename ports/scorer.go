package ports

import (
	"gocalib/domain/elicitation"
	"gocalib/domain/scoring"
)

// CalibrationScorer turns a finite PIT sample into a scalar score where higher
// means better calibrated. Implementations must return an error rather than a
// non-finite score.
type CalibrationScorer interface {
	Method() scoring.CalibrationMethod
	Score(pit []float64, levels elicitation.Levels) (scoring.CalibrationResult, error)
}

// ScorerRegistry resolves the scorer for a configured method
type ScorerRegistry interface {
	Scorer(method scoring.CalibrationMethod) (CalibrationScorer, error)
}
