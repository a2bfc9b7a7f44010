package runner

import (
	"bufio"
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/Iron-Ham/otto/internal/config"
	"github.com/Iron-Ham/otto/internal/errors"
	"github.com/Iron-Ham/otto/internal/execx"
	"github.com/Iron-Ham/otto/internal/logging"
)

// ClaudeCode runs prompts through the claude CLI in print mode with
// stream-json output. The prompt is sent on stdin.
type ClaudeCode struct {
	command string
	args    []string
	model   string
	exec    execx.Runner
	logger  *logging.Logger
}

// NewClaudeCode creates a ClaudeCode runner.
func NewClaudeCode(rc config.RunnerConfig, exec execx.Runner, logger *logging.Logger) *ClaudeCode {
	command := rc.Command
	if command == "" {
		command = "claude"
	}
	return &ClaudeCode{
		command: command,
		args:    rc.Args,
		model:   rc.Model,
		exec:    exec,
		logger:  logger,
	}
}

// Kind implements Runner.
func (*ClaudeCode) Kind() Kind { return KindClaudeCode }

// BuildArgs returns the argv for an invocation.
func (c *ClaudeCode) BuildArgs(sessionID string) []string {
	argv := []string{c.command, "--print", "--output-format", "stream-json", "--verbose", "--dangerously-skip-permissions"}
	if c.model != "" {
		argv = append(argv, "--model", c.model)
	}
	if sessionID != "" {
		argv = append(argv, "--resume", sessionID)
	}
	return append(argv, c.args...)
}

// Run implements Runner.
func (c *ClaudeCode) Run(ctx context.Context, opts Options) Result {
	start := time.Now()
	res := c.exec.Run(ctx, c.BuildArgs(opts.SessionID), execx.Options{
		Cwd:     opts.Cwd,
		Timeout: opts.Timeout,
		Stdin:   withSchema(opts.Prompt, opts.JSONSchema),
		Label:   "claude:" + opts.Phase,
	})

	stream := ParseStream(res.Stdout)
	out := Result{
		SessionID: stream.SessionID,
		Output:    stream.Text(),
		TimedOut:  res.TimedOut,
	}
	if out.SessionID == "" {
		out.SessionID = opts.SessionID
	}

	failed := res.ExitCode != 0 || res.TimedOut || stream.IsError
	combined := stream.Result + "\n" + res.Stderr
	out.ContextOverflow = failed && IsContextOverflow(combined)
	out.Success = !failed
	if failed {
		switch {
		case res.TimedOut:
			out.Error = errors.NewTimeoutError("claude "+opts.Phase, opts.Timeout).Error()
		case stream.IsError && stream.Result != "":
			out.Error = stream.Result
		default:
			out.Error = res.Output()
		}
	}

	c.logger.Info("claude run finished",
		"phase", opts.Phase,
		"success", out.Success,
		"overflow", out.ContextOverflow,
		"timed_out", out.TimedOut,
		"cost_usd", stream.CostUSD,
		"duration", time.Since(start).Round(time.Millisecond))
	return out
}

// Stream is the digest of a stream-json transcript.
type Stream struct {
	SessionID string
	// Messages are the assistant text blocks in order.
	Messages []string
	// Result is the final "result" event text.
	Result  string
	IsError bool
	CostUSD float64
}

// Text returns the final result when present, otherwise every assistant
// text block joined by newlines.
func (s Stream) Text() string {
	if s.Result != "" {
		return s.Result
	}
	return strings.Join(s.Messages, "\n")
}

type streamEvent struct {
	Type      string  `json:"type"`
	Subtype   string  `json:"subtype"`
	SessionID string  `json:"session_id"`
	Result    string  `json:"result"`
	IsError   bool    `json:"is_error"`
	CostUSD   float64 `json:"total_cost_usd"`
	Message   struct {
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
	} `json:"message"`
}

// ParseStream digests newline-delimited stream-json output. Lines that are
// not JSON are ignored.
func ParseStream(stdout string) Stream {
	var s Stream
	sc := bufio.NewScanner(strings.NewReader(stdout))
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || line[0] != '{' {
			continue
		}
		var ev streamEvent
		if err := json.Unmarshal([]byte(line), &ev); err != nil {
			continue
		}
		if ev.SessionID != "" {
			s.SessionID = ev.SessionID
		}
		switch ev.Type {
		case "assistant":
			for _, block := range ev.Message.Content {
				if block.Type == "text" && block.Text != "" {
					s.Messages = append(s.Messages, block.Text)
				}
			}
		case "result":
			s.Result = ev.Result
			s.IsError = ev.IsError || (ev.Subtype != "" && ev.Subtype != "success")
			s.CostUSD = ev.CostUSD
		}
	}
	return s
}
