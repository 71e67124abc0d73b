package ace

import (
	"context"
	"sync"

	"github.com/shelfsense/shelfsense/pkg/core"
	"github.com/shelfsense/shelfsense/pkg/errors"
	"github.com/shelfsense/shelfsense/pkg/logging"
)

// State is the loop's current stage.
type State string

const (
	StateIdle       State = "idle"
	StateGenerating State = "generating"
	StateReflecting State = "reflecting"
	StateCurating   State = "curating"
)

// StageError records a stage whose retries exhausted.
type StageError struct {
	Stage State  `json:"stage"`
	Err   string `json:"error"`
}

// Result is one full pass of the loop. Reflection and Curation may be nil
// when a later stage degraded; Partial reports that.
type Result struct {
	Analysis    *AnalysisResult   `json:"analysis"`
	Reflection  *ReflectionReport `json:"reflection,omitempty"`
	Curation    *CurationSummary  `json:"curation,omitempty"`
	Partial     bool              `json:"partial"`
	StageErrors []StageError      `json:"stage_errors,omitempty"`
}

// Loop runs Generator, Reflector, and Curator in sequence with bounded
// retries per stage. A failed Generator fails the run; a failed later stage
// degrades the result to partial, keeping everything produced so far.
type Loop struct {
	generator *Generator
	reflector *Reflector
	curator   *Curator
	retry     core.RetryPolicy

	mu    sync.Mutex
	state State
}

// NewLoop assembles a loop from its three stages.
func NewLoop(generator *Generator, reflector *Reflector, curator *Curator, retry core.RetryPolicy) *Loop {
	return &Loop{
		generator: generator,
		reflector: reflector,
		curator:   curator,
		retry:     retry,
		state:     StateIdle,
	}
}

// State returns the loop's current stage.
func (l *Loop) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

func (l *Loop) setState(s State) {
	l.mu.Lock()
	l.state = s
	l.mu.Unlock()
}

// Run executes one full pass for the given input. Only one pass runs at a
// time per loop; concurrent callers serialize.
func (l *Loop) Run(ctx context.Context, in GenerateInput) (*Result, error) {
	l.mu.Lock()
	if l.state != StateIdle {
		l.mu.Unlock()
		return nil, errors.New(errors.InvalidWorkflowState, "loop already running")
	}
	l.state = StateGenerating
	l.mu.Unlock()
	defer l.setState(StateIdle)

	logger := logging.GetLogger()
	result := &Result{}

	err := l.retry.Do(ctx, "ace.generate", func(ctx context.Context) error {
		analysis, err := l.generator.Analyze(ctx, in)
		if err != nil {
			return err
		}
		result.Analysis = analysis
		return nil
	})
	if err != nil {
		// Nothing useful was produced, so there is nothing to degrade to.
		return nil, errors.Wrap(err, errors.CodeOf(err), "generation failed")
	}

	l.setState(StateReflecting)
	err = l.retry.Do(ctx, "ace.reflect", func(ctx context.Context) error {
		report, err := l.reflector.Reflect(ctx, result.Analysis, in.Playbook)
		if err != nil {
			return err
		}
		result.Reflection = report
		return nil
	})
	if err != nil {
		logger.Warn(ctx, "reflection exhausted retries, returning analysis without playbook update: %v", err)
		result.Partial = true
		result.StageErrors = append(result.StageErrors, StageError{Stage: StateReflecting, Err: err.Error()})
		return result, nil
	}

	l.setState(StateCurating)
	err = l.retry.Do(ctx, "ace.curate", func(ctx context.Context) error {
		summary, err := l.curator.Curate(ctx, result.Reflection)
		if err != nil {
			return err
		}
		result.Curation = summary
		return nil
	})
	if err != nil {
		logger.Warn(ctx, "curation exhausted retries, playbook unchanged for this run: %v", err)
		result.Partial = true
		result.StageErrors = append(result.StageErrors, StageError{Stage: StateCurating, Err: err.Error()})
		return result, nil
	}

	return result, nil
}
