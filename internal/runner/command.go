package runner

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Iron-Ham/otto/internal/config"
	"github.com/Iron-Ham/otto/internal/errors"
	"github.com/Iron-Ham/otto/internal/execx"
	"github.com/Iron-Ham/otto/internal/logging"
)

var sessionLine = regexp.MustCompile(`(?m)^OTTO_SESSION_ID=(\S+)\s*$`)

// Command runs an arbitrary executable as an agent. The prompt is written
// to stdin and the role, phase and session are exported as OTTO_ROLE,
// OTTO_PHASE and OTTO_SESSION_ID. A line "OTTO_SESSION_ID=<id>" on stdout
// replaces the session id; otherwise the incoming id (or a new one) is
// kept.
type Command struct {
	command string
	args    []string
	model   string
	exec    execx.Runner
	logger  *logging.Logger
}

// NewCommand creates a Command runner.
func NewCommand(rc config.RunnerConfig, exec execx.Runner, logger *logging.Logger) *Command {
	return &Command{
		command: rc.Command,
		args:    rc.Args,
		model:   rc.Model,
		exec:    exec,
		logger:  logger,
	}
}

// Kind implements Runner.
func (*Command) Kind() Kind { return KindCommand }

// Run implements Runner.
func (c *Command) Run(ctx context.Context, opts Options) Result {
	session := opts.SessionID
	if session == "" {
		session = uuid.NewString()
	}
	env := map[string]string{
		"OTTO_ROLE":       string(opts.Role),
		"OTTO_PHASE":      opts.Phase,
		"OTTO_SESSION_ID": session,
	}
	if opts.SessionID == "" {
		env["OTTO_NEW_SESSION"] = "1"
	}
	if c.model != "" {
		env["OTTO_MODEL"] = c.model
	}

	start := time.Now()
	res := c.exec.Run(ctx, append([]string{c.command}, c.args...), execx.Options{
		Cwd:     opts.Cwd,
		Env:     env,
		Timeout: opts.Timeout,
		Stdin:   withSchema(opts.Prompt, opts.JSONSchema),
		Label:   "runner:" + opts.Phase,
	})

	if m := sessionLine.FindStringSubmatch(res.Stdout); m != nil {
		session = m[1]
	}
	out := Result{
		Success:   res.OK(),
		SessionID: session,
		Output:    strings.TrimSpace(sessionLine.ReplaceAllString(res.Stdout, "")) + "\n",
		TimedOut:  res.TimedOut,
	}
	if !out.Success {
		out.Error = res.Output()
		if res.TimedOut {
			out.Error = errors.NewTimeoutError("runner "+opts.Phase, opts.Timeout).Error()
		}
		out.ContextOverflow = IsContextOverflow(res.Stdout + "\n" + res.Stderr)
	}

	c.logger.Info("command runner finished",
		"phase", opts.Phase,
		"success", out.Success,
		"exit_code", res.ExitCode,
		"duration", time.Since(start).Round(time.Millisecond))
	return out
}
