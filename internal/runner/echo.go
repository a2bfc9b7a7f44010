package runner

import "context"

// Echo returns the prompt followed by the completion sentinel. It is used
// for dry runs and tests.
type Echo struct{}

// NewEcho creates an Echo runner.
func NewEcho() *Echo { return &Echo{} }

// Kind implements Runner.
func (*Echo) Kind() Kind { return KindEcho }

// Run implements Runner.
func (*Echo) Run(_ context.Context, opts Options) Result {
	session := opts.SessionID
	if session == "" {
		session = "echo-session"
	}
	return Result{
		Success:   true,
		SessionID: session,
		Output:    opts.Prompt + "\n\n<OK>\n",
	}
}
