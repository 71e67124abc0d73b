package agents

import (
	"context"
	"fmt"
	"sync"

	"github.com/shelfsense/shelfsense/pkg/errors"
	"github.com/shelfsense/shelfsense/pkg/logging"
)

// WorkflowStatus is the overall state of one orchestrated run.
type WorkflowStatus string

const (
	WorkflowNotStarted         WorkflowStatus = "not_started"
	WorkflowRunning            WorkflowStatus = "running"
	WorkflowCompleted          WorkflowStatus = "completed"
	WorkflowPartiallyCompleted WorkflowStatus = "partially_completed"
	WorkflowFailed             WorkflowStatus = "failed"
)

// StepFailure records one degraded step.
type StepFailure struct {
	AgentType string `json:"agent_type"`
	Err       string `json:"error"`
}

// WorkflowResult is the outcome of one orchestrated run. Outputs always
// holds an entry per step; failed steps contribute labeled placeholders.
type WorkflowResult struct {
	Status   WorkflowStatus                    `json:"status"`
	Tasks    []*AgentTask                      `json:"tasks"`
	Outputs  map[string]map[string]interface{} `json:"outputs"`
	Failures []StepFailure                     `json:"failures,omitempty"`
}

// Orchestrator runs an ordered list of agent steps, handing each step the
// accumulated context. A failing step is recorded and replaced with a
// labeled placeholder; the workflow continues and finishes as
// partially_completed instead of aborting.
type Orchestrator struct {
	steps []Agent

	mu          sync.Mutex
	status      WorkflowStatus
	currentStep int
}

// NewOrchestrator creates an orchestrator over the given steps, in order.
func NewOrchestrator(steps ...Agent) *Orchestrator {
	return &Orchestrator{steps: steps, status: WorkflowNotStarted}
}

// Status returns the workflow status and, while running, the current step
// index.
func (o *Orchestrator) Status() (WorkflowStatus, int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.status, o.currentStep
}

func (o *Orchestrator) setStatus(s WorkflowStatus, step int) {
	o.mu.Lock()
	o.status = s
	o.currentStep = step
	o.mu.Unlock()
}

// Run executes every step in order. It returns an error only for invalid
// invocations; step failures degrade the result instead.
func (o *Orchestrator) Run(ctx context.Context, initial Context) (*WorkflowResult, error) {
	if len(o.steps) == 0 {
		return nil, errors.New(errors.InvalidInput, "orchestrator has no steps")
	}

	o.mu.Lock()
	if o.status == WorkflowRunning {
		o.mu.Unlock()
		return nil, errors.New(errors.InvalidWorkflowState, "workflow already running")
	}
	o.status = WorkflowRunning
	o.currentStep = 0
	o.mu.Unlock()

	logger := logging.GetLogger()

	working := initial.Clone()
	result := &WorkflowResult{
		Outputs: make(map[string]map[string]interface{}, len(o.steps)),
	}

	for i, agent := range o.steps {
		o.setStatus(WorkflowRunning, i)

		task := NewTask(agent.Type())
		result.Tasks = append(result.Tasks, task)
		if err := task.Start(); err != nil {
			return nil, err
		}

		output, err := agent.Run(ctx, working, task)
		if err != nil {
			logger.Warn(ctx, "step %s failed, continuing with placeholder: %v", agent.Type(), err)
			_ = task.Fail(err)
			output = PlaceholderResult(agent.Type(), err)
			result.Failures = append(result.Failures, StepFailure{
				AgentType: agent.Type(),
				Err:       err.Error(),
			})
		} else {
			if err := task.Complete(output); err != nil {
				return nil, err
			}
		}

		result.Outputs[agent.Type()] = output
		working[agent.Type()] = output
	}

	switch len(result.Failures) {
	case 0:
		result.Status = WorkflowCompleted
	case len(o.steps):
		result.Status = WorkflowFailed
	default:
		result.Status = WorkflowPartiallyCompleted
	}
	o.setStatus(result.Status, len(o.steps))

	return result, nil
}

// PlaceholderResult stands in for a failed step's output so downstream steps
// and the merger always see a value. The placeholder flag makes it
// unmistakable in merged output.
func PlaceholderResult(agentType string, cause error) map[string]interface{} {
	return map[string]interface{}{
		"placeholder": true,
		"agent_type":  agentType,
		"reason":      cause.Error(),
		"note":        fmt.Sprintf("step %s did not run; this is a labeled placeholder, not analysis output", agentType),
	}
}
