// Package agents runs the specialist-agent workflow: market intelligence,
// retrieval-grounded research, and marketing-strategy synthesis, coordinated
// by an orchestrator that tolerates partial failure.
package agents

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/shelfsense/shelfsense/pkg/errors"
)

// TaskStatus is the lifecycle state of one agent step.
type TaskStatus string

const (
	TaskPending   TaskStatus = "pending"
	TaskRunning   TaskStatus = "running"
	TaskCompleted TaskStatus = "completed"
	TaskFailed    TaskStatus = "failed"
)

// AgentTask tracks one scheduled agent step. Transitions are guarded:
// pending to running to completed or failed, and terminal states are final.
type AgentTask struct {
	mu sync.Mutex

	TaskID    string                 `json:"task_id"`
	AgentType string                 `json:"agent_type"`
	Status    TaskStatus             `json:"status"`
	Result    map[string]interface{} `json:"result,omitempty"`
	Err       string                 `json:"error,omitempty"`
	Logs      []string               `json:"logs,omitempty"`
}

// NewTask creates a pending task for the given agent type.
func NewTask(agentType string) *AgentTask {
	return &AgentTask{
		TaskID:    uuid.New().String(),
		AgentType: agentType,
		Status:    TaskPending,
	}
}

// Start moves the task from pending to running.
func (t *AgentTask) Start() error {
	return t.transition(TaskPending, TaskRunning)
}

// Complete moves the task from running to completed and attaches its result.
func (t *AgentTask) Complete(result map[string]interface{}) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.Status != TaskRunning {
		return t.badTransition(TaskCompleted)
	}
	t.Status = TaskCompleted
	t.Result = result
	return nil
}

// Fail moves the task from running to failed and records the cause.
func (t *AgentTask) Fail(cause error) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.Status != TaskRunning {
		return t.badTransition(TaskFailed)
	}
	t.Status = TaskFailed
	if cause != nil {
		t.Err = cause.Error()
	}
	return nil
}

// Log appends a timestamped reasoning or action entry.
func (t *AgentTask) Log(format string, args ...interface{}) {
	t.mu.Lock()
	defer t.mu.Unlock()
	entry := fmt.Sprintf("%s %s", time.Now().UTC().Format(time.RFC3339), fmt.Sprintf(format, args...))
	t.Logs = append(t.Logs, entry)
}

// CurrentStatus returns the task's status.
func (t *AgentTask) CurrentStatus() TaskStatus {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.Status
}

func (t *AgentTask) transition(from, to TaskStatus) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.Status != from {
		return t.badTransition(to)
	}
	t.Status = to
	return nil
}

// badTransition must be called with t.mu held.
func (t *AgentTask) badTransition(to TaskStatus) error {
	return errors.WithFields(
		errors.New(errors.InvalidWorkflowState, "illegal task transition"),
		errors.Fields{"task_id": t.TaskID, "from": t.Status, "to": to})
}
