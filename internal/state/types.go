package state

import "slices"

// Version is the only supported state document version.
const Version = 1

// Phase is a step of the workflow state machine.
type Phase string

// Workflow phases in their forward order.
const (
	PhaseTicketCreated  Phase = "ticket-created"
	PhaseTicketIngested Phase = "ticket-ingested"
	PhaseDecisionCards  Phase = "decision-cards"
	PhasePlanCreated    Phase = "plan-created"
	PhaseTaskSplitting  Phase = "task-splitting"
	PhaseTaskFeedback   Phase = "task-feedback"
	PhaseExecution      Phase = "execution"
	PhaseUserFeedback   Phase = "user-feedback"
	PhaseIntegration    Phase = "integration"
	PhaseFinalize       Phase = "finalize"
	PhaseCleanup        Phase = "cleanup"
)

// Phases returns every phase in forward order.
func Phases() []Phase {
	return []Phase{
		PhaseTicketCreated,
		PhaseTicketIngested,
		PhaseDecisionCards,
		PhasePlanCreated,
		PhaseTaskSplitting,
		PhaseTaskFeedback,
		PhaseExecution,
		PhaseUserFeedback,
		PhaseIntegration,
		PhaseFinalize,
		PhaseCleanup,
	}
}

// Valid reports whether p is a known phase.
func (p Phase) Valid() bool {
	return slices.Contains(Phases(), p)
}

// legacyPhases maps phase names written by older releases.
var legacyPhases = map[string]Phase{
	"ask-created":  PhaseTicketCreated,
	"ask-ingested": PhaseTicketIngested,
}

// Ticket identifies the ticket a run was created from.
type Ticket struct {
	Date     string `json:"date"`
	Slug     string `json:"slug"`
	FilePath string `json:"filePath"`
}

// Worktree describes the isolated checkout a run works in.
type Worktree struct {
	WorktreePath string `json:"worktreePath"`
	BranchName   string `json:"branchName"`
	BaseBranch   string `json:"baseBranch"`
}

// Workflow is the mutable part of a run. Session maps are keyed by base
// task path; an empty session id means the next call starts fresh.
type Workflow struct {
	Phase             Phase             `json:"phase"`
	NeedsUserInput    bool              `json:"needsUserInput"`
	RunDir            string            `json:"runDir,omitempty"`
	PlanFilePath      string            `json:"planFilePath,omitempty"`
	DecisionCardsPath string            `json:"decisionCardsPath,omitempty"`
	TechLeadSessionID string            `json:"techLeadSessionId,omitempty"`
	TaskQueue         []string          `json:"taskQueue"`
	TaskAgentSessions map[string]string `json:"taskAgentSessions"`
	ReviewerSessions  map[string]string `json:"reviewerSessions"`
	AutoRetryCounts   map[string]int    `json:"autoRetryCounts"`
}

// State is the complete persisted document for one run.
type State struct {
	Version         int               `json:"version"`
	RunID           string            `json:"runId"`
	CreatedAt       string            `json:"createdAt"`
	ConfigPath      string            `json:"configPath,omitempty"`
	MainRepoPath    string            `json:"mainRepoPath"`
	ArtifactRootDir string            `json:"artifactRootDir"`
	StateFilePath   string            `json:"stateFilePath"`
	RunDir          string            `json:"runDir"`
	LockFilePath    string            `json:"lockFilePath"`
	Workflow        Workflow          `json:"workflow"`
	Ticket          Ticket            `json:"ticket"`
	Worktree        Worktree          `json:"worktree"`
	Env             map[string]string `json:"env,omitempty"`
	TestEnv         map[string]string `json:"testEnv,omitempty"`
}

// normalize fills nil collections so callers can mutate them directly.
func (s *State) normalize() {
	wf := &s.Workflow
	if wf.Phase == "" {
		wf.Phase = PhaseTicketCreated
	}
	if wf.TaskQueue == nil {
		wf.TaskQueue = []string{}
	}
	if wf.TaskAgentSessions == nil {
		wf.TaskAgentSessions = map[string]string{}
	}
	if wf.ReviewerSessions == nil {
		wf.ReviewerSessions = map[string]string{}
	}
	if wf.AutoRetryCounts == nil {
		wf.AutoRetryCounts = map[string]int{}
	}
}
