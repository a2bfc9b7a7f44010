package state

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/Iron-Ham/otto/internal/errors"
	"github.com/Iron-Ham/otto/internal/util"
)

// Store is the owned handle to one run's state document. Callers mutate
// the document through Update, which persists before returning.
type Store struct {
	mu    sync.Mutex
	path  string
	state *State
}

// NewStore wraps an in-memory state that will be persisted at path.
func NewStore(path string, s *State) *Store {
	s.normalize()
	return &Store{path: path, state: s}
}

// Open loads the state at path and returns a Store for it.
func Open(path string) (*Store, error) {
	s, err := Load(path)
	if err != nil {
		return nil, err
	}
	return NewStore(path, s), nil
}

// Path returns the state file path.
func (st *Store) Path() string { return st.path }

// State returns the live document. Mutations made directly must be followed
// by Save; prefer Update.
func (st *Store) State() *State { return st.state }

// Save atomically rewrites the state file.
func (st *Store) Save() error {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.saveLocked()
}

func (st *Store) saveLocked() error {
	if err := util.WriteJSONAtomic(st.path, st.state); err != nil {
		return errors.NewRunError("failed to save state", err).
			WithRunID(st.state.RunID).
			WithStatePath(st.path)
	}
	return nil
}

// Update applies fn to the document and persists the result. The mutation
// is visible in memory even when the write fails.
func (st *Store) Update(fn func(s *State)) error {
	st.mu.Lock()
	defer st.mu.Unlock()
	fn(st.state)
	st.state.normalize()
	return st.saveLocked()
}

// rawState accepts both the current and the legacy "ask" layout.
type rawState struct {
	State
	Ask *Ticket `json:"ask,omitempty"`
}

// Load reads, migrates and validates a state file.
func Load(path string) (*State, error) {
	resolved, err := filepath.Abs(path)
	if err != nil {
		resolved = path
	}

	data, err := os.ReadFile(resolved)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewNotFoundError("run state", resolved).WithCause(errors.ErrRunNotFound)
		}
		return nil, fmt.Errorf("failed to read state: %w", err)
	}

	var raw rawState
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, errors.NewValidationError(fmt.Sprintf("Invalid state JSON at %s", resolved)).
			WithCause(errors.ErrUnsupportedState)
	}

	s := raw.State
	if s.Ticket.FilePath == "" && raw.Ask != nil {
		s.Ticket = *raw.Ask
	}
	if mapped, ok := legacyPhases[string(s.Workflow.Phase)]; ok {
		s.Workflow.Phase = mapped
	}
	if s.StateFilePath == "" {
		s.StateFilePath = resolved
	}
	if s.RunDir == "" && s.ArtifactRootDir != "" && IsRunIDSafe(s.RunID) {
		s.RunDir = filepath.Join(s.ArtifactRootDir, RunsDir, s.RunID)
	}
	if s.LockFilePath == "" && s.ArtifactRootDir != "" && IsRunIDSafe(s.RunID) {
		s.LockFilePath = filepath.Join(s.ArtifactRootDir, LocksDir, "run-"+s.RunID+".json")
	}

	if err := Validate(&s); err != nil {
		return nil, err
	}
	s.normalize()
	return &s, nil
}

// Validate checks the version and required string fields.
func Validate(s *State) error {
	if s.Version != Version {
		return errors.NewValidationError(fmt.Sprintf("Unsupported state version: %d (expected %d)", s.Version, Version)).
			WithField("version").
			WithValue(s.Version).
			WithCause(errors.ErrUnsupportedState)
	}

	required := []struct {
		name  string
		value string
	}{
		{"runId", s.RunID},
		{"createdAt", s.CreatedAt},
		{"mainRepoPath", s.MainRepoPath},
		{"artifactRootDir", s.ArtifactRootDir},
		{"ticket.date", s.Ticket.Date},
		{"ticket.slug", s.Ticket.Slug},
		{"ticket.filePath", s.Ticket.FilePath},
		{"worktree.worktreePath", s.Worktree.WorktreePath},
		{"worktree.branchName", s.Worktree.BranchName},
		{"worktree.baseBranch", s.Worktree.BaseBranch},
	}
	for _, f := range required {
		if strings.TrimSpace(f.value) == "" {
			return errors.NewValidationError(fmt.Sprintf("Invalid state: expected %s to be a non-empty string", f.name)).
				WithField(f.name).
				WithCause(errors.ErrUnsupportedState)
		}
	}

	if s.Workflow.Phase != "" && !s.Workflow.Phase.Valid() {
		return errors.NewValidationError(fmt.Sprintf("Invalid state: unknown phase %q", s.Workflow.Phase)).
			WithField("workflow.phase").
			WithCause(errors.ErrUnsupportedState)
	}
	return nil
}

// BuildOptions describes a new run.
type BuildOptions struct {
	MainRepoPath    string
	ArtifactRootDir string
	ConfigPath      string
	TicketID        string
	TicketFilePath  string
	WorktreePath    string
	BranchName      string
	BaseBranch      string
	CreatedAt       time.Time
	Env             map[string]string
	TestEnv         map[string]string
}

// Build creates the initial state for a run. The run id is the ticket id.
func Build(opts BuildOptions) (*State, error) {
	runID := opts.TicketID
	date, slug, ok := SplitTicketID(runID)
	if !ok {
		return nil, errors.NewValidationError(fmt.Sprintf("Ticket id must start with YYYY-MM-DD-: %s", runID)).
			WithField("ticketId").
			WithCause(errors.ErrInvalidTicketID)
	}

	root := absOr(opts.ArtifactRootDir)
	statePath, err := FilePathFor(root, runID)
	if err != nil {
		return nil, err
	}
	runDir, _ := RunDirFor(root, runID)
	lockPath, _ := LockFilePathFor(root, runID)

	createdAt := opts.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	configPath := ""
	if opts.ConfigPath != "" {
		configPath = absOr(opts.ConfigPath)
	}

	s := &State{
		Version:         Version,
		RunID:           runID,
		CreatedAt:       createdAt.UTC().Format(time.RFC3339Nano),
		ConfigPath:      configPath,
		MainRepoPath:    absOr(opts.MainRepoPath),
		ArtifactRootDir: root,
		StateFilePath:   statePath,
		RunDir:          runDir,
		LockFilePath:    lockPath,
		Workflow:        Workflow{Phase: PhaseTicketCreated},
		Ticket: Ticket{
			Date:     date,
			Slug:     slug,
			FilePath: absOr(opts.TicketFilePath),
		},
		Worktree: Worktree{
			WorktreePath: absOr(opts.WorktreePath),
			BranchName:   opts.BranchName,
			BaseBranch:   opts.BaseBranch,
		},
		Env:     opts.Env,
		TestEnv: opts.TestEnv,
	}
	s.normalize()
	if err := Validate(s); err != nil {
		return nil, err
	}
	return s, nil
}

// CreatedTime parses CreatedAt, returning the zero time when unparsable.
func (s *State) CreatedTime() time.Time {
	t, err := time.Parse(time.RFC3339Nano, s.CreatedAt)
	if err != nil {
		return time.Time{}
	}
	return t
}

func absOr(p string) string {
	if p == "" {
		return p
	}
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return p
}
