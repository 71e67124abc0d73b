// Package engine coordinates one analysis request end to end: validation,
// the ACE pipeline, the specialist-agent pipeline, and the merge of both
// outputs into a unified result.
package engine

import (
	"context"
	"encoding/json"

	"github.com/sourcegraph/conc"

	"github.com/shelfsense/shelfsense/pkg/ace"
	"github.com/shelfsense/shelfsense/pkg/agents"
	"github.com/shelfsense/shelfsense/pkg/core"
	"github.com/shelfsense/shelfsense/pkg/errors"
	"github.com/shelfsense/shelfsense/pkg/logging"
	"github.com/shelfsense/shelfsense/pkg/merge"
	"github.com/shelfsense/shelfsense/pkg/playbook"
	"github.com/shelfsense/shelfsense/pkg/scoring"
)

// Status is the overall outcome of one request.
type Status string

const (
	StatusOK      Status = "ok"
	StatusPartial Status = "partial"
	StatusError   Status = "error"
)

// Request is one analysis to run. At least one pipeline must be requested.
type Request struct {
	Product          scoring.Product `json:"product"`
	ImageDescription string          `json:"image_description,omitempty"`
	ObjectiveKey     string          `json:"objective_key"`
	RunACE           bool            `json:"run_ace"`
	RunSpecialists   bool            `json:"run_specialists"`
}

// StepError is one degraded step, attributed to its pipeline.
type StepError struct {
	Step string `json:"step"`
	Err  string `json:"error"`
}

// Response carries the unified result plus enough status detail for a
// caller to tell a full analysis from a degraded one.
type Response struct {
	Status     Status               `json:"status"`
	Unified    *merge.UnifiedResult `json:"unified,omitempty"`
	StepErrors []StepError          `json:"step_errors,omitempty"`
}

// Engine wires the pipelines to their shared dependencies. It is safe for
// concurrent use; per-request state lives in Analyze.
type Engine struct {
	llm        core.LLM
	store      *playbook.Store
	retriever  agents.Retriever
	objectives map[string]scoring.Objective
	retry      core.RetryPolicy
}

// Options configures an Engine.
type Options struct {
	// Retriever backs the research agent and the Reflector's evidence
	// lookups. Nil degrades those paths instead of failing requests.
	Retriever agents.Retriever
	// Objectives overrides the built-in objective catalog.
	Objectives map[string]scoring.Objective
	// Retry bounds each generative stage. Zero value uses the default.
	Retry core.RetryPolicy
}

// New creates an engine over the given completion provider and playbook.
func New(llm core.LLM, store *playbook.Store, opts Options) *Engine {
	objectives := opts.Objectives
	if objectives == nil {
		objectives = scoring.DefaultObjectives()
	}
	retry := opts.Retry
	if retry.MaxAttempts == 0 {
		retry = core.DefaultRetryPolicy()
	}
	return &Engine{
		llm:        llm,
		store:      store,
		retriever:  opts.Retriever,
		objectives: objectives,
		retry:      retry,
	}
}

// Analyze runs the requested pipelines and merges their output. Validation
// failures return an error before any provider call; pipeline failures
// degrade the response instead.
func (e *Engine) Analyze(ctx context.Context, req Request) (*Response, error) {
	if !req.RunACE && !req.RunSpecialists {
		return nil, errors.New(errors.InvalidInput, "request selects no pipeline")
	}

	objective, ok := e.objectives[req.ObjectiveKey]
	if !ok {
		return nil, errors.WithFields(
			errors.New(errors.ValidationFailed, "unknown objective"),
			errors.Fields{"objective_key": req.ObjectiveKey})
	}
	if err := objective.Validate(); err != nil {
		return nil, err
	}
	if err := req.Product.Validate(); err != nil {
		return nil, err
	}

	logger := logging.GetLogger()

	var (
		aceResult *ace.Result
		aceErr    error

		essenceResult *agents.WorkflowResult
		essenceErr    error
	)

	var wg conc.WaitGroup
	if req.RunACE {
		wg.Go(func() {
			aceResult, aceErr = e.runACE(ctx, req, objective)
		})
	}
	if req.RunSpecialists {
		wg.Go(func() {
			essenceResult, essenceErr = e.runSpecialists(ctx, req)
		})
	}
	wg.Wait()

	response := &Response{}

	aceSource := merge.Source{Name: merge.SourceACE}
	if req.RunACE {
		if aceErr != nil {
			logger.Error(ctx, "ace pipeline failed: %v", aceErr)
			aceSource.Err = aceErr
			response.StepErrors = append(response.StepErrors, StepError{Step: "ace", Err: aceErr.Error()})
		} else {
			aceSource.Tree = toTree(aceResult)
			for _, stageErr := range aceResult.StageErrors {
				response.StepErrors = append(response.StepErrors, StepError{
					Step: "ace." + string(stageErr.Stage),
					Err:  stageErr.Err,
				})
			}
		}
	}

	essenceSource := merge.Source{Name: merge.SourceEssence}
	if req.RunSpecialists {
		if essenceErr != nil {
			logger.Error(ctx, "specialist pipeline failed: %v", essenceErr)
			essenceSource.Err = essenceErr
			response.StepErrors = append(response.StepErrors, StepError{Step: "specialists", Err: essenceErr.Error()})
		} else {
			essenceSource.Tree = toTree(essenceResult.Outputs)
			for _, failure := range essenceResult.Failures {
				response.StepErrors = append(response.StepErrors, StepError{
					Step: "specialists." + failure.AgentType,
					Err:  failure.Err,
				})
			}
		}
	}

	response.Unified = merge.Merge(aceSource, essenceSource)

	ranACE := req.RunACE && aceErr == nil
	ranSpecialists := req.RunSpecialists && essenceErr == nil
	switch {
	case !ranACE && !ranSpecialists:
		response.Status = StatusError
	case len(response.StepErrors) > 0:
		response.Status = StatusPartial
	default:
		response.Status = StatusOK
	}

	return response, nil
}

// runACE builds a fresh loop per request so concurrent requests never share
// loop state. The product name and brand extend the playbook policy check.
func (e *Engine) runACE(ctx context.Context, req Request, objective scoring.Objective) (*ace.Result, error) {
	var evidence ace.Evidence
	if e.retriever != nil {
		evidence = e.retriever
	}

	loop := ace.NewLoop(
		ace.NewGenerator(e.llm),
		ace.NewReflector(e.llm, evidence),
		ace.NewCurator(e.store, req.Product.Name, req.Product.Brand),
		e.retry,
	)
	return loop.Run(ctx, ace.GenerateInput{
		Product:          req.Product,
		ImageDescription: req.ImageDescription,
		Objective:        objective,
		Playbook:         e.store.Snapshot(),
	})
}

func (e *Engine) runSpecialists(ctx context.Context, req Request) (*agents.WorkflowResult, error) {
	orch := agents.NewOrchestrator(
		agents.NewMarketAgent(e.llm),
		agents.NewResearchAgent(e.retriever),
		agents.NewStrategyAgent(e.llm),
	)
	return orch.Run(ctx, agents.Context{"product": req.Product})
}

// toTree converts a typed result into the generic tree the merger walks.
func toTree(v interface{}) map[string]interface{} {
	encoded, err := json.Marshal(v)
	if err != nil {
		return map[string]interface{}{}
	}
	var tree map[string]interface{}
	if err := json.Unmarshal(encoded, &tree); err != nil {
		return map[string]interface{}{}
	}
	return tree
}
