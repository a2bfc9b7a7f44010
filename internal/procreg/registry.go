// Package procreg tracks the subprocesses a run spawns so they can be torn
// down together when the run is interrupted.
//
// The registry is best-effort bookkeeping. Correctness never depends on it:
// entries are removed when a process exits, and KillAll signals whatever is
// still registered.
package procreg

import (
	"os"
	"os/signal"
	"sort"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/Iron-Ham/otto/internal/logging"
)

// DefaultSweepDelay is how long KillAll waits after SIGTERM before sending
// SIGKILL to processes that are still registered.
const DefaultSweepDelay = 250 * time.Millisecond

// Entry describes a registered subprocess.
type Entry struct {
	ID       string
	PID      int
	Label    string
	Cmd      []string
	Cwd      string
	Detached bool
}

type registered struct {
	entry Entry
	proc  *os.Process
}

// Registry is a set of live subprocesses. It is safe for concurrent use.
type Registry struct {
	mu         sync.Mutex
	entries    map[string]registered
	sweepDelay time.Duration
	logger     *logging.Logger
}

// New creates an empty Registry.
func New(logger *logging.Logger) *Registry {
	return &Registry{
		entries:    make(map[string]registered),
		sweepDelay: DefaultSweepDelay,
		logger:     logger,
	}
}

// Register adds a started process and returns a function that removes it.
// A nil process registers nothing.
func (r *Registry) Register(proc *os.Process, e Entry) (unregister func()) {
	if r == nil || proc == nil {
		return func() {}
	}
	e.ID = uuid.NewString()
	e.PID = proc.Pid

	r.mu.Lock()
	r.entries[e.ID] = registered{entry: e, proc: proc}
	r.mu.Unlock()

	r.logger.Debug("process registered", "pid", e.PID, "label", e.Label, "detached", e.Detached)

	var once sync.Once
	return func() {
		once.Do(func() {
			r.mu.Lock()
			delete(r.entries, e.ID)
			r.mu.Unlock()
		})
	}
}

// Size returns the number of registered processes.
func (r *Registry) Size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Entries returns a snapshot of registered processes ordered by pid.
func (r *Registry) Entries() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Entry, 0, len(r.entries))
	for _, reg := range r.entries {
		out = append(out, reg.entry)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PID < out[j].PID })
	return out
}

func (r *Registry) snapshot() []registered {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]registered, 0, len(r.entries))
	for _, reg := range r.entries {
		out = append(out, reg)
	}
	return out
}

// KillAll sends SIGTERM to every registered process (its process group when
// detached) and SIGKILL to those still registered after the sweep delay. The
// returned channel closes once the sweep has run.
func (r *Registry) KillAll(reason string) <-chan struct{} {
	done := make(chan struct{})
	if r == nil {
		close(done)
		return done
	}

	entries := r.snapshot()
	r.logger.Warn("killing registered processes", "reason", reason, "count", len(entries))
	for _, reg := range entries {
		terminate(reg.proc, reg.entry.Detached)
	}

	time.AfterFunc(r.sweepDelay, func() {
		defer close(done)
		for _, reg := range r.snapshot() {
			kill(reg.proc, reg.entry.Detached)
		}
	})
	return done
}

// InstallSignalHandlers kills registered processes on SIGINT or SIGTERM and
// then calls exit with 130 or 143. The returned function uninstalls the
// handlers.
func (r *Registry) InstallSignalHandlers(exit func(code int)) (stop func()) {
	if exit == nil {
		exit = os.Exit
	}
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	quit := make(chan struct{})

	go func() {
		select {
		case sig := <-sigCh:
			code := 130
			if sig == syscall.SIGTERM {
				code = 143
			}
			<-r.KillAll(sig.String())
			exit(code)
		case <-quit:
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			signal.Stop(sigCh)
			close(quit)
		})
	}
}
