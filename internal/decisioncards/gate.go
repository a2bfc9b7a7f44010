package decisioncards

import (
	"context"

	"github.com/Iron-Ham/otto/internal/errors"
)

// MaxGatePasses bounds review passes before the gate gives up.
const MaxGatePasses = 5

// ErrGateExhausted is returned when every pass still required a plan update.
var ErrGateExhausted = errors.New("Decision cards gate exceeded max iterations.")

// GateSteps are the operations one gate pass is built from.
type GateSteps interface {
	// Ensure returns the current valid cards, generating them if needed.
	Ensure(ctx context.Context) (*Document, error)
	// Review runs one interactive pass over the cards.
	Review(ctx context.Context, doc *Document) (ReviewSummary, error)
	// UpdatePlan sends feedback to the lead and regenerates the cards.
	UpdatePlan(ctx context.Context, feedback string, cards *Document) error
}

// RunGate loops until a review pass needs no plan update.
func RunGate(ctx context.Context, steps GateSteps) error {
	for range MaxGatePasses {
		doc, err := steps.Ensure(ctx)
		if err != nil {
			return err
		}
		summary, err := steps.Review(ctx, doc)
		if err != nil {
			return err
		}
		if !summary.NeedsPlanUpdate {
			return nil
		}
		if err := steps.UpdatePlan(ctx, FeedbackText(summary), summary.Cards); err != nil {
			return err
		}
	}
	return ErrGateExhausted
}
