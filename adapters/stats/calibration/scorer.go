package calibration

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"gocalib/domain/core"
	"gocalib/domain/elicitation"
	"gocalib/domain/scoring"
	"gocalib/internal"
	"gocalib/ports"

	"golang.org/x/sync/errgroup"
)

// Engine holds one scorer per calibration method. It is safe for concurrent
// use: every scorer is a pure function of its input.
type Engine struct {
	scorers map[scoring.CalibrationMethod]ports.CalibrationScorer
	order   []scoring.CalibrationMethod
}

// NewEngine creates an engine with all five calibration scores
func NewEngine(logger *internal.Logger) *Engine {
	logger = logger.With("calibration")
	return NewEngineWith(
		NewCookeScorer(logger),
		NewCRPSScorer(),
		NewKSScorer(),
		NewCVMScorer(),
		NewADScorer(logger),
	)
}

// NewEngineWith creates an engine from explicit scorers, replacing any
// earlier scorer registered for the same method.
func NewEngineWith(scorers ...ports.CalibrationScorer) *Engine {
	e := &Engine{scorers: make(map[scoring.CalibrationMethod]ports.CalibrationScorer, len(scorers))}
	for _, s := range scorers {
		if _, dup := e.scorers[s.Method()]; !dup {
			e.order = append(e.order, s.Method())
		}
		e.scorers[s.Method()] = s
	}
	return e
}

// Scorer returns the scorer for a method
func (e *Engine) Scorer(method scoring.CalibrationMethod) (ports.CalibrationScorer, error) {
	s, ok := e.scorers[method]
	if !ok {
		return nil, fmt.Errorf("%w: no scorer for method %q", core.ErrInvalidSettings, method)
	}
	return s, nil
}

// Methods returns the registered methods in registration order
func (e *Engine) Methods() []scoring.CalibrationMethod {
	return append([]scoring.CalibrationMethod(nil), e.order...)
}

// Score runs a single method
func (e *Engine) Score(method scoring.CalibrationMethod, pit []float64, levels elicitation.Levels) (scoring.CalibrationResult, error) {
	s, err := e.Scorer(method)
	if err != nil {
		return scoring.CalibrationResult{}, err
	}
	return s.Score(pit, levels)
}

// ScoreAll runs every registered method on the same sample concurrently.
// The first failure is returned.
func (e *Engine) ScoreAll(ctx context.Context, pit []float64, levels elicitation.Levels) (map[scoring.CalibrationMethod]scoring.CalibrationResult, error) {
	results := make(map[scoring.CalibrationMethod]scoring.CalibrationResult, len(e.order))
	var mu sync.Mutex

	g, ctx := errgroup.WithContext(ctx)
	for _, method := range e.order {
		scorer := e.scorers[method]
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			res, err := scorer.Score(pit, levels)
			if err != nil {
				return err
			}
			mu.Lock()
			results[scorer.Method()] = res
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// checkSample rejects empty samples and values outside [0,1]
func checkSample(method scoring.CalibrationMethod, pit []float64) error {
	if len(pit) == 0 {
		return fmt.Errorf("%w: %s needs at least one PIT value", core.ErrInsufficientData, method)
	}
	for i, u := range pit {
		if math.IsNaN(u) || u < 0 || u > 1 {
			return fmt.Errorf("%w: %s PIT value %d = %v", core.ErrInvalidSample, method, i, u)
		}
	}
	return nil
}

// finalize enforces the finite-score contract
func finalize(res scoring.CalibrationResult) (scoring.CalibrationResult, error) {
	if math.IsNaN(res.Score) || math.IsInf(res.Score, 0) {
		return scoring.CalibrationResult{}, core.NewNonFiniteScoreError(string(res.Method), res.Score)
	}
	return res, nil
}

func sortedCopy(pit []float64) []float64 {
	u := append([]float64(nil), pit...)
	sort.Float64s(u)
	return u
}

func clamp01(x float64) float64 {
	return math.Max(0, math.Min(1, x))
}
