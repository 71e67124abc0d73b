package agents

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shelfsense/shelfsense/pkg/errors"
)

func TestTaskLifecycle(t *testing.T) {
	task := NewTask(TypeMarket)
	assert.NotEmpty(t, task.TaskID)
	assert.Equal(t, TaskPending, task.CurrentStatus())

	require.NoError(t, task.Start())
	assert.Equal(t, TaskRunning, task.CurrentStatus())

	require.NoError(t, task.Complete(map[string]interface{}{"ok": true}))
	assert.Equal(t, TaskCompleted, task.CurrentStatus())
	assert.Equal(t, true, task.Result["ok"])
}

func TestTaskFailure(t *testing.T) {
	task := NewTask(TypeResearch)
	require.NoError(t, task.Start())
	require.NoError(t, task.Fail(errors.New(errors.DependencyUnavailable, "index offline")))

	assert.Equal(t, TaskFailed, task.CurrentStatus())
	assert.Contains(t, task.Err, "index offline")
}

func TestTaskGuardedTransitions(t *testing.T) {
	t.Run("complete before start", func(t *testing.T) {
		task := NewTask(TypeMarket)
		err := task.Complete(nil)
		require.Error(t, err)
		assert.Equal(t, errors.InvalidWorkflowState, errors.CodeOf(err))
	})

	t.Run("terminal states are final", func(t *testing.T) {
		task := NewTask(TypeMarket)
		require.NoError(t, task.Start())
		require.NoError(t, task.Complete(nil))

		assert.Error(t, task.Start())
		assert.Error(t, task.Fail(errors.New(errors.Unknown, "late failure")))
		assert.Equal(t, TaskCompleted, task.CurrentStatus())
	})

	t.Run("double start", func(t *testing.T) {
		task := NewTask(TypeMarket)
		require.NoError(t, task.Start())
		assert.Error(t, task.Start())
	})
}

func TestTaskLog(t *testing.T) {
	task := NewTask(TypeStrategy)
	task.Log("considering %d options", 3)
	task.Log("chose premium positioning")

	require.Len(t, task.Logs, 2)
	assert.Contains(t, task.Logs[0], "considering 3 options")
	assert.Contains(t, task.Logs[1], "chose premium positioning")
}
