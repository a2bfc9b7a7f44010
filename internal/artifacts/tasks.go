package artifacts

import (
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/Iron-Ham/otto/internal/util"
)

// DefaultMaxRemediationAttempts bounds remediation tasks per base task.
const DefaultMaxRemediationAttempts = 3

// Decision is the lead's verdict on a completed task.
type Decision string

const (
	DecisionAcceptance  Decision = "acceptance"
	DecisionRemediation Decision = "remediation"
	DecisionFailed      Decision = "failed"
)

var remediationSuffix = regexp.MustCompile(`-remediation-(\d+)$`)

// ReportPath returns runDir/report-<task basename>.
func ReportPath(runDir, taskFile string) string {
	return filepath.Join(runDir, "report-"+filepath.Base(taskFile))
}

// ReviewPath returns runDir/review-<task basename>.
func ReviewPath(runDir, taskFile string) string {
	return filepath.Join(runDir, "review-"+filepath.Base(taskFile))
}

// OutcomePath returns runDir/outcome-<task basename>.
func OutcomePath(runDir, taskFile string) string {
	return filepath.Join(runDir, "outcome-"+filepath.Base(taskFile))
}

// SummaryPath returns the summary sibling of a report or review file.
func SummaryPath(artifact string) string {
	return filepath.Join(filepath.Dir(artifact), "summary-"+filepath.Base(artifact))
}

// RemediationTaskPath returns runDir/<base>-remediation-<attempt>.md.
func RemediationTaskPath(runDir, baseTaskName string, attempt int) string {
	return filepath.Join(runDir, baseTaskName+"-remediation-"+strconv.Itoa(attempt)+".md")
}

// BaseTask identifies the original task a (possibly remediation) task
// file belongs to.
type BaseTask struct {
	Path    string
	Name    string
	Attempt int
}

// BaseTaskInfo strips any remediation suffix from taskFile.
func BaseTaskInfo(taskFile string) BaseTask {
	abs, err := filepath.Abs(taskFile)
	if err != nil {
		abs = taskFile
	}
	name := strings.TrimSuffix(filepath.Base(abs), ".md")
	attempt := 0
	if m := remediationSuffix.FindStringSubmatch(name); m != nil {
		attempt, _ = strconv.Atoi(m[1])
		name = strings.TrimSuffix(name, m[0])
	}
	return BaseTask{
		Path:    filepath.Join(filepath.Dir(abs), name+".md"),
		Name:    name,
		Attempt: attempt,
	}
}

// AttemptsRemaining returns how many remediations are left after attempt.
// A negative max uses the default.
func AttemptsRemaining(attempt, maxAttempts int) int {
	if maxAttempts < 0 {
		maxAttempts = DefaultMaxRemediationAttempts
	}
	return max(0, maxAttempts-attempt)
}

// AllowedDecisions returns the decisions the lead may make given the
// remaining remediation budget.
func AllowedDecisions(remaining int) []Decision {
	if remaining > 0 {
		return []Decision{DecisionRemediation, DecisionAcceptance}
	}
	return []Decision{DecisionFailed, DecisionAcceptance}
}

// ClearTaskArtifacts removes the report, review and summaries for
// taskFile so the task runs again from scratch.
func ClearTaskArtifacts(runDir, taskFile string) error {
	report := ReportPath(runDir, taskFile)
	review := ReviewPath(runDir, taskFile)
	for _, p := range []string{report, review, SummaryPath(report), SummaryPath(review)} {
		if err := util.RemoveIfExists(p); err != nil {
			return err
		}
	}
	return nil
}

// HasContent reports whether path is a non-empty file.
func HasContent(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir() && info.Size() > 0
}
