package workflow

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Iron-Ham/otto/internal/artifacts"
	"github.com/Iron-Ham/otto/internal/runner"
	"github.com/Iron-Ham/otto/internal/util"
)

const decisionTimeout = 10 * time.Minute

// taskResult is what the decision step weighs.
type taskResult struct {
	reportPath    string
	reviewPath    string
	reportSummary string
	reviewSummary string
	qualityPassed bool
}

// decision is the lead's verdict and the file it points at: the new
// remediation task, the outcome file, or the base task to restart.
type decision struct {
	verdict artifacts.Decision
	output  string
}

type decisionContext struct {
	base            artifacts.BaseTask
	remaining       int
	remediationPath string
	outcomePath     string
	allowed         []artifacts.Decision
}

func (rt *Runtime) decisionContext(taskFile string) decisionContext {
	base := artifacts.BaseTaskInfo(taskFile)
	remaining := artifacts.AttemptsRemaining(base.Attempt, rt.maxRemediationAttempts)
	return decisionContext{
		base:            base,
		remaining:       remaining,
		remediationPath: artifacts.RemediationTaskPath(rt.RunDir(), base.Name, base.Attempt+1),
		outcomePath:     artifacts.OutcomePath(rt.RunDir(), taskFile),
		allowed:         artifacts.AllowedDecisions(remaining),
	}
}

func (dc decisionContext) canRemediate() bool { return dc.remaining > 0 }

// decide asks the lead to accept or reject the task. A nil decision means
// the lead did not produce a usable verdict.
func (rt *Runtime) decide(ctx context.Context, taskFile string, tr taskResult) (*decision, error) {
	dc := rt.decisionContext(taskFile)

	res, err := rt.invoke(ctx, call{
		role:    runner.RoleLead,
		phase:   "tech-lead-decision",
		prompt:  rt.decisionPrompt(taskFile, tr, dc),
		timeout: decisionTimeout,
		slot:    leadSlot(),
	})
	if err != nil {
		return nil, err
	}
	if !res.Success {
		return nil, nil
	}

	verdict, ok := ExtractDecision(res.Output, dc.allowed)
	if !ok {
		tags := make([]string, len(dc.allowed))
		for i, d := range dc.allowed {
			tags[i] = "<DECISION>" + string(d) + "</DECISION>"
		}
		reply, replied := rt.microRetryReply(ctx, microRetry{
			role:      runner.RoleLead,
			sessionID: res.SessionID,
			message:   "Provide your decision tag.",
			replyWith: strings.Join(tags, " OR "),
			required:  decisionPattern(dc.allowed),
		})
		if !replied {
			return nil, nil
		}
		verdict, _ = ExtractDecision(reply.Output, dc.allowed)
	}

	if !rt.ensureDecisionFile(ctx, verdict, dc) {
		return nil, nil
	}

	d := &decision{verdict: verdict}
	switch verdict {
	case artifacts.DecisionRemediation:
		d.output = dc.remediationPath
	case artifacts.DecisionAcceptance:
		d.output = dc.outcomePath
	default:
		d.output = dc.base.Path
	}
	return d, nil
}

// ensureDecisionFile checks that the file a verdict promises exists,
// asking the lead once to create it.
func (rt *Runtime) ensureDecisionFile(ctx context.Context, verdict artifacts.Decision, dc decisionContext) bool {
	var path string
	switch verdict {
	case artifacts.DecisionAcceptance:
		path = dc.outcomePath
	case artifacts.DecisionRemediation:
		path = dc.remediationPath
	default:
		return true
	}
	if util.FileHasContent(path) {
		return true
	}
	rt.microRetry(ctx, microRetry{
		role:      runner.RoleLead,
		sessionID: rt.State().Workflow.TechLeadSessionID,
		message:   fmt.Sprintf("Create the %s file: %s", decisionFileNoun(verdict), path),
	})
	return util.FileHasContent(path)
}

func decisionFileNoun(verdict artifacts.Decision) string {
	if verdict == artifacts.DecisionAcceptance {
		return "outcome"
	}
	return "remediation"
}

func summaryBlock(tag, content string) string {
	content = strings.TrimSpace(content)
	if content == "" {
		return ""
	}
	return "<" + tag + ">\n" + content + "\n</" + tag + ">"
}

func (rt *Runtime) decisionPrompt(taskFile string, tr taskResult, dc decisionContext) string {
	budget := "Remediation limit reached."
	rejectLine := `Reply "<DECISION>failed</DECISION>" to discard pending work and restart from the original task`
	guidance := []string{
		"- If you do not accept the changes:",
		`  - Reply with "<DECISION>failed</DECISION>" ONLY.`,
	}
	if dc.canRemediate() {
		budget = fmt.Sprintf("You have %d remediation attempt(s) remaining.", dc.remaining)
		rejectLine = "Create remediation → `" + dc.remediationPath + "` → reply \"<DECISION>remediation</DECISION>\""
		guidance = []string{
			"- If you do not accept the changes:",
			"  - Create a remediation task and save it to `" + dc.remediationPath + "`.",
			`  - Reply with "<DECISION>remediation</DECISION>" ONLY.`,
		}
	}
	guidance = append(guidance,
		"- If you accept the changes:",
		"  - Write a brief outcome summary to `"+dc.outcomePath+"`.",
		`  - Reply with "<DECISION>acceptance</DECISION>" ONLY.`,
	)

	lines := []string{
		rt.reminder(runner.RoleLead) + "\n\n" + budget,
		"<INSTRUCTIONS>",
		"Review the task against your acceptance criteria.",
		"Inputs: task, report, review.",
		"Reference at least one bullet from BOTH summaries when justifying your decision.",
		"Reject: " + rejectLine,
		"Accept: write outcome → `" + dc.outcomePath + "` → reply \"<DECISION>acceptance</DECISION>\"",
	}
	if !tr.qualityPassed {
		lines = append(lines, "Quality checks are still failing; the full report lists the unresolved failures.")
	}
	lines = append(lines,
		"</INSTRUCTIONS>",
		summaryBlock("REPORT_SUMMARY", tr.reportSummary),
		summaryBlock("REVIEW_SUMMARY", tr.reviewSummary),
		"<INPUT_TASK>",
		taskFile,
		"</INPUT_TASK>",
		"<INPUT_REPORT>",
		tr.reportPath,
		"</INPUT_REPORT>",
		"<INPUT_REVIEW>",
		tr.reviewPath,
		"</INPUT_REVIEW>",
		"<OUTPUT>",
		strings.Join(guidance, "\n"),
		"</OUTPUT>",
	)

	kept := lines[:0]
	for _, l := range lines {
		if l != "" {
			kept = append(kept, l)
		}
	}
	return strings.Join(kept, "\n")
}
