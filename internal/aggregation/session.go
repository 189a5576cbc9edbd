package aggregation

import (
	"context"
	"fmt"
	"sync"

	"gocalib/domain/core"
	"gocalib/domain/elicitation"
	"gocalib/domain/scoring"
)

// State is the position of a Session in its configure/compute/remove cycle
type State int

const (
	StateIdle State = iota
	StateScoringConfigured
	StateDMComputed
	StateRemoved
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateScoringConfigured:
		return "scoring_configured"
	case StateDMComputed:
		return "dm_computed"
	case StateRemoved:
		return "removed"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// MaxSynthetic is the number of decision makers a roster may hold at once
const MaxSynthetic = 2

// Session owns the roster of one case and cycles synthetic decision makers
// through it. Every method holds the session lock, so one add/score/remove
// cycle never interleaves with another on the same roster.
type Session struct {
	mu sync.Mutex

	evaluator *Evaluator
	roster    *elicitation.Project
	real      int
	synthetic []core.ExpertID

	state       State
	settings    scoring.Settings
	userWeights map[core.ExpertID]float64
	evaluations map[core.ExpertID]*Evaluation
}

// NewSession clones project into a new roster of real experts
func NewSession(evaluator *Evaluator, project *elicitation.Project) (*Session, error) {
	if err := project.Validate(); err != nil {
		return nil, err
	}
	roster := project.Clone()
	return &Session{
		evaluator:   evaluator,
		roster:      roster,
		real:        len(roster.Experts),
		evaluations: make(map[core.ExpertID]*Evaluation),
	}, nil
}

// State returns the current state
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// RosterIDs returns the ids of all experts, synthetic ones last
func (s *Session) RosterIDs() []core.ExpertID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.roster.ExpertIDs()
}

// RealCount returns the number of real experts
func (s *Session) RealCount() int {
	return s.real
}

// Evaluation returns the evaluation that produced a synthetic expert
func (s *Session) Evaluation(id core.ExpertID) (*Evaluation, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ev, ok := s.evaluations[id]
	return ev, ok
}

// Configure sets the scoring settings for the next decision maker
func (s *Session) Configure(settings scoring.Settings) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.configure(settings)
}

func (s *Session) configure(settings scoring.Settings) error {
	if err := settings.Validate(); err != nil {
		return err
	}
	s.settings = settings.With(settings.Distribution, settings.CalibrationMethod)
	s.state = StateScoringConfigured
	return nil
}

// InjectExternalWeights fixes the raw weights used by the next user-weighted
// decision maker. Every real expert needs a weight. A rejected map leaves the
// previous weights in place.
func (s *Session) InjectExternalWeights(weights map[core.ExpertID]float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, e := range s.realExperts() {
		if _, ok := weights[e.ID]; !ok {
			return fmt.Errorf("%w: no weight for expert %s", core.ErrInvalidSettings, e.ID)
		}
	}
	injected := make(map[core.ExpertID]float64, len(weights))
	for id, w := range weights {
		if _, err := s.roster.Expert(id); err != nil || s.isSynthetic(id) {
			return fmt.Errorf("%w: weight for unknown expert %s", core.ErrInvalidSettings, id)
		}
		injected[id] = w
	}
	s.userWeights = injected
	return nil
}

// ComputeDecisionMaker scores the real experts under the configured settings,
// pools them and appends the decision maker to the roster.
func (s *Session) ComputeDecisionMaker(ctx context.Context) (*Evaluation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.compute(ctx)
}

// ComputeWithUserWeights configures settings as a user-weighted pass and
// computes its decision maker from the injected weights.
func (s *Session) ComputeWithUserWeights(ctx context.Context, settings scoring.Settings) (*Evaluation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.userWeights == nil {
		return nil, fmt.Errorf("%w: no external weights injected", core.ErrInvalidState)
	}
	settings.WeightType = scoring.WeightUser
	settings.Optimisation = false
	if err := s.configure(settings); err != nil {
		return nil, err
	}
	return s.compute(ctx)
}

func (s *Session) compute(ctx context.Context) (*Evaluation, error) {
	if s.state != StateScoringConfigured {
		return nil, fmt.Errorf("%w: compute from %s", core.ErrInvalidState, s.state)
	}
	if len(s.synthetic) >= MaxSynthetic {
		return nil, fmt.Errorf("%w: roster already holds %d decision makers", core.ErrInvalidState, len(s.synthetic))
	}
	id := core.ExpertID(s.settings.ID)
	if _, err := s.roster.Expert(id); err == nil {
		return nil, fmt.Errorf("%w: expert %s already on the roster", core.ErrInvalidState, id)
	}

	opts := Options{DMID: id}
	if s.settings.WeightType == scoring.WeightUser {
		opts.UserWeights = s.userWeights
	}
	ev, err := s.evaluator.Evaluate(ctx, s.realView(), s.settings, opts)
	if err != nil {
		return nil, err
	}

	s.roster.Experts = append(s.roster.Experts, ev.DecisionMaker)
	s.synthetic = append(s.synthetic, id)
	s.evaluations[id] = ev
	if err := s.checkRoster(); err != nil {
		return nil, err
	}
	s.state = StateDMComputed
	return ev, nil
}

// RemoveSyntheticExpert removes a decision maker from the roster. An empty id
// removes the most recently added one.
func (s *Session) RemoveSyntheticExpert(id core.ExpertID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.synthetic) == 0 {
		return fmt.Errorf("%w: no decision maker on the roster", core.ErrInvalidState)
	}
	if id == "" {
		id = s.synthetic[len(s.synthetic)-1]
	}
	idx := -1
	for i, sid := range s.synthetic {
		if sid == id {
			idx = i
		}
	}
	if idx < 0 {
		return fmt.Errorf("%w: %s is not a decision maker", core.ErrInvalidState, id)
	}
	if err := s.roster.RemoveExpert(id); err != nil {
		return err
	}
	s.synthetic = append(s.synthetic[:idx], s.synthetic[idx+1:]...)
	delete(s.evaluations, id)
	if err := s.checkRoster(); err != nil {
		return err
	}
	s.state = StateRemoved
	return nil
}

// Scores scores every roster expert, decision makers included, under
// settings. Item ranges come from the real experts only.
func (s *Session) Scores(ctx context.Context, settings scoring.Settings) ([]scoring.ExpertScore, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.evaluator.ScoreExperts(ctx, s.realView(), s.roster.Experts, settings)
}

// RealizationPercentiles returns, per roster expert, the percentile each
// realization takes in the expert's fitted distribution.
func (s *Session) RealizationPercentiles(ctx context.Context, settings scoring.Settings) (map[core.ExpertID]map[core.ItemID]float64, error) {
	scores, err := s.Scores(ctx, settings)
	if err != nil {
		return nil, err
	}
	out := make(map[core.ExpertID]map[core.ItemID]float64, len(scores))
	for _, sc := range scores {
		out[sc.ExpertID] = sc.Percentiles()
	}
	return out, nil
}

// realView is the project restricted to real experts. It shares expert
// pointers with the roster and must not be mutated.
func (s *Session) realView() *elicitation.Project {
	view := *s.roster
	view.Experts = s.realExperts()
	return &view
}

func (s *Session) realExperts() []*elicitation.Expert {
	return s.roster.Experts[:s.real:s.real]
}

func (s *Session) isSynthetic(id core.ExpertID) bool {
	for _, sid := range s.synthetic {
		if sid == id {
			return true
		}
	}
	return false
}

func (s *Session) checkRoster() error {
	if len(s.roster.Experts) != s.real+len(s.synthetic) || len(s.synthetic) > MaxSynthetic {
		return core.NewRosterError(len(s.roster.Experts), s.real, len(s.synthetic))
	}
	return nil
}
