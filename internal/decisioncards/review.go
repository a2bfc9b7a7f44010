package decisioncards

import (
	"context"
	"fmt"
	"strings"

	"github.com/Iron-Ham/otto/internal/prompt"
)

// AnsweredQuestion is an open question answered during a review pass.
type AnsweredQuestion struct {
	ID       string
	Question string
	Answer   string
}

// DecisionFeedback is feedback given on a decision during a review pass.
type DecisionFeedback struct {
	ID             string
	ProposedChange string
	Feedback       string
}

// ReviewSummary is the outcome of one review pass.
type ReviewSummary struct {
	Cards            *Document
	NeedsPlanUpdate  bool
	OpenQuestions    []AnsweredQuestion
	DecisionFeedback []DecisionFeedback
}

// Review walks the operator through unanswered questions and unapproved
// decisions. Every answer is written to path before the next prompt.
func Review(ctx context.Context, p prompt.Adapter, doc *Document, path string) (ReviewSummary, error) {
	summary := ReviewSummary{Cards: doc}

	for i := range doc.OpenQuestions {
		q := &doc.OpenQuestions[i]
		if strings.TrimSpace(q.UserAnswer) != "" {
			continue
		}
		answer := ""
		for strings.TrimSpace(answer) == "" {
			var err error
			answer, err = p.Text(ctx, q.ID+": "+q.Question, "")
			if err != nil {
				return summary, err
			}
		}
		q.UserAnswer = strings.TrimSpace(answer)
		summary.OpenQuestions = append(summary.OpenQuestions, AnsweredQuestion{
			ID:       q.ID,
			Question: q.Question,
			Answer:   q.UserAnswer,
		})
		summary.NeedsPlanUpdate = true
		if err := Write(path, doc); err != nil {
			return summary, err
		}
	}

	for i := range doc.Decisions {
		d := &doc.Decisions[i]
		existing := strings.TrimSpace(d.UserFeedback)
		if existing == "" && d.Approved() {
			continue
		}

		message := FormatDecision(*d) + "\n\nFeedback on " + d.ID + "? (empty to accept)"
		feedback, err := p.Text(ctx, message, existing)
		if err != nil {
			return summary, err
		}
		feedback = strings.TrimSpace(feedback)
		if feedback != "" {
			d.UserFeedback = feedback
			d.ApprovedHash = ""
			summary.DecisionFeedback = append(summary.DecisionFeedback, DecisionFeedback{
				ID:             d.ID,
				ProposedChange: d.ProposedChange,
				Feedback:       feedback,
			})
			summary.NeedsPlanUpdate = true
		} else {
			d.UserFeedback = ""
			d.ApprovedHash = Hash(*d)
		}
		if err := Write(path, doc); err != nil {
			return summary, err
		}
	}

	return summary, nil
}

// FormatDecision renders a decision for the operator.
func FormatDecision(d Decision) string {
	return strings.Join([]string{
		fmt.Sprintf("%s: %s", d.ID, d.ProposedChange),
		"Why: " + d.Why,
		"Alternatives: " + d.Alternatives,
		"Assumptions: " + d.Assumptions,
		"Future state: " + d.FutureState,
	}, "\n")
}

// FeedbackText aggregates a review pass into the input the lead uses to
// update the plan.
func FeedbackText(s ReviewSummary) string {
	var lines []string
	if len(s.OpenQuestions) > 0 {
		lines = append(lines, "Open questions:")
		for _, q := range s.OpenQuestions {
			lines = append(lines, "- "+q.ID+": "+q.Question, "  Answer: "+q.Answer)
		}
	}
	if len(s.DecisionFeedback) > 0 {
		lines = append(lines, "Decision feedback:")
		for _, d := range s.DecisionFeedback {
			lines = append(lines, "- "+d.ID+": "+d.ProposedChange, "  Feedback: "+d.Feedback)
		}
	}
	return strings.Join(lines, "\n")
}
