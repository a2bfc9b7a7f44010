package taskqueue

import (
	"fmt"
	"path/filepath"
	"slices"

	"github.com/Iron-Ham/otto/internal/logging"
	"github.com/Iron-Ham/otto/internal/state"
)

// Queue is a view over the task queue stored in a run's workflow state.
// It is not safe for concurrent use; a run has a single driver.
type Queue struct {
	store  *state.Store
	logger *logging.Logger
}

// New creates a Queue backed by store.
func New(store *state.Store, logger *logging.Logger) *Queue {
	return &Queue{store: store, logger: logger}
}

// Tasks returns a copy of the queued task paths.
func (q *Queue) Tasks() []string {
	return slices.Clone(q.store.State().Workflow.TaskQueue)
}

// Load returns the persisted queue, rebuilding it from runDir when it is
// empty or force is set.
func (q *Queue) Load(runDir string, force bool) ([]string, error) {
	if existing := q.Tasks(); !force && len(existing) > 0 {
		return existing, nil
	}
	tasks, err := Scan(runDir)
	if err != nil {
		return nil, fmt.Errorf("failed to scan tasks in %s: %w", runDir, err)
	}
	if err := q.set(tasks); err != nil {
		return nil, err
	}
	q.logger.Info("task queue loaded", "count", len(tasks), "forced", force)
	return slices.Clone(tasks), nil
}

// AddToFront inserts task at the head of the queue.
func (q *Queue) AddToFront(task string) error {
	q.logger.Debug("task queued at front", "task", filepath.Base(task))
	return q.set(append([]string{task}, q.Tasks()...))
}

// AddToBack appends task to the queue.
func (q *Queue) AddToBack(task string) error {
	q.logger.Debug("task queued at back", "task", filepath.Base(task))
	return q.set(append(q.Tasks(), task))
}

// RemoveCurrent drops the head of the queue. It is a no-op when empty.
func (q *Queue) RemoveCurrent() error {
	tasks := q.Tasks()
	if len(tasks) == 0 {
		return nil
	}
	return q.set(tasks[1:])
}

// HasMore reports whether any task is queued.
func (q *Queue) HasMore() bool {
	return len(q.store.State().Workflow.TaskQueue) > 0
}

// Current returns the head of the queue.
func (q *Queue) Current() (string, bool) {
	tasks := q.store.State().Workflow.TaskQueue
	if len(tasks) == 0 {
		return "", false
	}
	return tasks[0], true
}

func (q *Queue) set(tasks []string) error {
	if tasks == nil {
		tasks = []string{}
	}
	return q.store.Update(func(s *state.State) {
		s.Workflow.TaskQueue = tasks
	})
}
