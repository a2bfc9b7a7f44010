package execx

import (
	"context"
	"strings"
	"sync"
)

// Call records one invocation made through a Fake.
type Call struct {
	Argv []string
	Opts Options
}

// Fake is a scripted Runner for tests. Handler decides each Result; when
// nil every command succeeds with empty output.
type Fake struct {
	mu      sync.Mutex
	calls   []Call
	Handler func(argv []string, opts Options) Result
}

// Run records the call and returns the Handler's result.
func (f *Fake) Run(_ context.Context, argv []string, opts Options) Result {
	f.mu.Lock()
	f.calls = append(f.calls, Call{Argv: append([]string(nil), argv...), Opts: opts})
	h := f.Handler
	f.mu.Unlock()
	if h == nil {
		return Result{}
	}
	return h(argv, opts)
}

// Calls returns a copy of the recorded invocations.
func (f *Fake) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Call(nil), f.calls...)
}

// Commands returns each recorded argv joined by spaces.
func (f *Fake) Commands() []string {
	calls := f.Calls()
	out := make([]string, len(calls))
	for i, c := range calls {
		out[i] = strings.Join(c.Argv, " ")
	}
	return out
}
