package workflow

import (
	"context"

	"github.com/Iron-Ham/otto/internal/errors"
	"github.com/Iron-Ham/otto/internal/event"
	"github.com/Iron-Ham/otto/internal/state"
)

// MaxSteps bounds phase transitions in a single Run.
const MaxSteps = 50

// Run drives the run from its persisted phase until it reaches cleanup or
// stops early. Each transition is persisted before the next handler runs,
// so an interrupted run resumes at the phase it was in. It returns the
// phase the run stopped at.
func (rt *Runtime) Run(ctx context.Context) (state.Phase, error) {
	for range MaxSteps {
		if err := ctx.Err(); err != nil {
			return rt.phase(), err
		}
		phase := rt.phase()
		log := rt.logger.WithPhase(string(phase))
		log.Debug("running phase")

		next, stop, err := rt.step(ctx, phase)
		if err != nil {
			log.Error("phase failed", "error", err.Error())
			return phase, err
		}
		if stop {
			log.Info("workflow stopped")
			return phase, nil
		}
		if err := rt.setPhase(next); err != nil {
			return phase, err
		}
	}
	return rt.phase(), errors.ErrMaxSteps
}

func (rt *Runtime) phase() state.Phase {
	if p := rt.State().Workflow.Phase; p != "" {
		return p
	}
	return state.PhaseTicketCreated
}

func (rt *Runtime) setPhase(next state.Phase) error {
	prev := rt.phase()
	if err := rt.update(func(s *state.State) { s.Workflow.Phase = next }); err != nil {
		return err
	}
	rt.logger.Info("phase changed", "from", string(prev), "to", string(next))
	rt.publish(event.NewPhaseChangedEvent(rt.State().RunID, string(prev), string(next)))
	return nil
}

// step runs the handler for phase and returns the phase to move to, or
// stop when the run should end at phase.
func (rt *Runtime) step(ctx context.Context, phase state.Phase) (state.Phase, bool, error) {
	switch phase {
	case state.PhaseTicketCreated:
		return state.PhaseTicketIngested, false, rt.ingestTicket(ctx)

	case state.PhaseTicketIngested:
		_, err := rt.ensureDecisionCards(ctx)
		return state.PhaseDecisionCards, false, err

	case state.PhaseDecisionCards:
		return state.PhasePlanCreated, false, rt.runCardGate(ctx)

	case state.PhasePlanCreated:
		return state.PhaseTaskSplitting, false, rt.planFeedback(ctx)

	case state.PhaseTaskSplitting:
		return state.PhaseTaskFeedback, false, rt.splitTasks(ctx)

	case state.PhaseTaskFeedback:
		return state.PhaseExecution, false, rt.taskFeedback(ctx)

	case state.PhaseExecution:
		return state.PhaseUserFeedback, false, rt.runTaskLoop(ctx)

	case state.PhaseUserFeedback:
		added, err := rt.userFeedback(ctx)
		if added {
			return state.PhaseExecution, false, err
		}
		return state.PhaseIntegration, false, err

	case state.PhaseIntegration:
		res, err := rt.runIntegration(ctx)
		switch {
		case err != nil:
			return "", false, err
		case res.tasksCreated:
			return state.PhaseExecution, false, nil
		case res.aborted:
			return "", true, nil
		}
		return state.PhaseFinalize, false, nil

	case state.PhaseFinalize:
		return state.PhaseCleanup, false, rt.finalize(ctx)

	case state.PhaseCleanup:
		return "", true, rt.cleanup(ctx)
	}
	return "", false, errors.NewWorkflowError("unknown workflow phase: "+string(phase), nil)
}
