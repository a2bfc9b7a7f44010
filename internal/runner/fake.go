package runner

import (
	"context"
	"sync"
)

// Fake is a scripted Runner for tests. Handler decides each Result; when
// nil every call succeeds with an <OK> reply.
type Fake struct {
	mu      sync.Mutex
	calls   []Options
	Handler func(opts Options) Result
}

// Kind implements Runner.
func (*Fake) Kind() Kind { return KindEcho }

// Run records the call and returns the Handler's result.
func (f *Fake) Run(_ context.Context, opts Options) Result {
	f.mu.Lock()
	f.calls = append(f.calls, opts)
	h := f.Handler
	f.mu.Unlock()
	if h == nil {
		return Result{Success: true, SessionID: "fake-session", Output: "<OK>"}
	}
	return h(opts)
}

// Calls returns a copy of the recorded invocations.
func (f *Fake) Calls() []Options {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Options(nil), f.calls...)
}

// Phases returns the phase of each recorded invocation.
func (f *Fake) Phases() []string {
	calls := f.Calls()
	out := make([]string, len(calls))
	for i, c := range calls {
		out[i] = c.Phase
	}
	return out
}
