package event

import "time"

// Event types published by the workflow.
const (
	TypePhaseChanged    = "phase.changed"
	TypeTaskStarted     = "task.started"
	TypeTaskDecided     = "task.decided"
	TypeIntegrationStep = "integration.step"
	TypeRunnerInvoked   = "runner.invoked"
)

// Event is implemented by every published event.
type Event interface {
	// EventType is a "category.action" identifier.
	EventType() string
	Timestamp() time.Time
}

type baseEvent struct {
	eventType string
	timestamp time.Time
}

func (e baseEvent) EventType() string    { return e.eventType }
func (e baseEvent) Timestamp() time.Time { return e.timestamp }

func newBaseEvent(eventType string) baseEvent {
	return baseEvent{eventType: eventType, timestamp: time.Now()}
}

// PhaseChangedEvent is published after a phase transition is persisted.
type PhaseChangedEvent struct {
	baseEvent
	RunID string
	From  string
	To    string
}

// NewPhaseChangedEvent creates a PhaseChangedEvent.
func NewPhaseChangedEvent(runID, from, to string) PhaseChangedEvent {
	return PhaseChangedEvent{
		baseEvent: newBaseEvent(TypePhaseChanged),
		RunID:     runID,
		From:      from,
		To:        to,
	}
}

// TaskStartedEvent is published when the task loop picks up a task.
type TaskStartedEvent struct {
	baseEvent
	TaskFile  string
	Remaining int // tasks queued after this one
}

// NewTaskStartedEvent creates a TaskStartedEvent.
func NewTaskStartedEvent(taskFile string, remaining int) TaskStartedEvent {
	return TaskStartedEvent{
		baseEvent: newBaseEvent(TypeTaskStarted),
		TaskFile:  taskFile,
		Remaining: remaining,
	}
}

// TaskDecidedEvent is published once the lead's decision has been applied.
type TaskDecidedEvent struct {
	baseEvent
	TaskFile string
	Decision string
	Output   string // outcome, remediation or restarted task path
}

// NewTaskDecidedEvent creates a TaskDecidedEvent.
func NewTaskDecidedEvent(taskFile, decision, output string) TaskDecidedEvent {
	return TaskDecidedEvent{
		baseEvent: newBaseEvent(TypeTaskDecided),
		TaskFile:  taskFile,
		Decision:  decision,
		Output:    output,
	}
}

// IntegrationStepEvent reports the outcome of one integration step.
type IntegrationStepEvent struct {
	baseEvent
	Step    string
	Outcome string
	Detail  string
}

// NewIntegrationStepEvent creates an IntegrationStepEvent.
func NewIntegrationStepEvent(step, outcome, detail string) IntegrationStepEvent {
	return IntegrationStepEvent{
		baseEvent: newBaseEvent(TypeIntegrationStep),
		Step:      step,
		Outcome:   outcome,
		Detail:    detail,
	}
}

// RunnerInvokedEvent is published after every agent runner call.
type RunnerInvokedEvent struct {
	baseEvent
	Role            string
	Phase           string
	Success         bool
	ContextOverflow bool
	TimedOut        bool
	Duration        time.Duration
}

// NewRunnerInvokedEvent creates a RunnerInvokedEvent.
func NewRunnerInvokedEvent(role, phase string, success, overflow, timedOut bool, d time.Duration) RunnerInvokedEvent {
	return RunnerInvokedEvent{
		baseEvent:       newBaseEvent(TypeRunnerInvoked),
		Role:            role,
		Phase:           phase,
		Success:         success,
		ContextOverflow: overflow,
		TimedOut:        timedOut,
		Duration:        d,
	}
}
