// Package quality runs the configured check commands (lint, tests, type
// checks) inside a worktree and reports which of them failed.
package quality

import (
	"context"
	"fmt"
	"maps"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/Iron-Ham/otto/internal/config"
	"github.com/Iron-Ham/otto/internal/errors"
	"github.com/Iron-Ham/otto/internal/execx"
	"github.com/Iron-Ham/otto/internal/logging"
	"github.com/Iron-Ham/otto/internal/util"
)

// Check is one command to run.
type Check struct {
	Name    string
	Cmd     []string
	Timeout time.Duration
	Env     map[string]string
}

// CheckResult is the outcome of one check.
type CheckResult struct {
	Name   string
	OK     bool
	Stdout string
	Stderr string
	// Err is a *errors.TimeoutError when the check ran out of time.
	Err error
}

// Report is the outcome of a set of checks.
type Report struct {
	OK      bool
	Results []CheckResult
}

// Failed returns the results that did not pass.
func (r Report) Failed() []CheckResult {
	var out []CheckResult
	for _, res := range r.Results {
		if !res.OK {
			out = append(out, res)
		}
	}
	return out
}

// FailureLines formats failures as "- name" bullets. With detail set, each
// bullet is followed by the first line of the check's output.
func (r Report) FailureLines(detail bool) string {
	var b strings.Builder
	for i, res := range r.Failed() {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString("- " + res.Name)
		if detail {
			reason := ""
			if res.Err != nil {
				reason = res.Err.Error()
			}
			out := util.FirstLine(util.FirstNonEmpty(reason, strings.TrimSpace(res.Stderr), strings.TrimSpace(res.Stdout)))
			b.WriteString("\n  " + out)
		}
	}
	return b.String()
}

// Gate runs checks in a worktree.
type Gate interface {
	RunChecks(ctx context.Context, worktreePath string, checks []Check) (Report, error)
}

// ChecksFromConfig converts configured checks.
func ChecksFromConfig(cfgs []config.CheckConfig) []Check {
	out := make([]Check, 0, len(cfgs))
	for _, c := range cfgs {
		out = append(out, Check{
			Name:    c.Name,
			Cmd:     append([]string(nil), c.Cmd...),
			Timeout: c.Timeout(),
			Env:     maps.Clone(c.Env),
		})
	}
	return out
}

// CommandGate runs each check as a subprocess, in order, with the worktree
// as working directory. A check passes when it exits zero without timing
// out.
type CommandGate struct {
	exec    execx.Runner
	envFile string
	logger  *logging.Logger
}

// NewCommandGate creates a CommandGate. envFile, when set, is a dotenv file
// resolved against the worktree whose values are exported to every check;
// a check's own env wins on conflict.
func NewCommandGate(exec execx.Runner, envFile string, logger *logging.Logger) *CommandGate {
	return &CommandGate{exec: exec, envFile: envFile, logger: logger}
}

// RunChecks implements Gate.
func (g *CommandGate) RunChecks(ctx context.Context, worktreePath string, checks []Check) (Report, error) {
	base, err := g.loadEnvFile(worktreePath)
	if err != nil {
		return Report{}, err
	}

	report := Report{OK: true, Results: make([]CheckResult, 0, len(checks))}
	for _, check := range checks {
		env := maps.Clone(base)
		if env == nil {
			env = map[string]string{}
		}
		maps.Copy(env, check.Env)

		res := g.exec.Run(ctx, check.Cmd, execx.Options{
			Cwd:     worktreePath,
			Env:     env,
			Timeout: check.Timeout,
			Label:   "quality:" + check.Name,
		})
		cr := CheckResult{
			Name:   check.Name,
			OK:     res.OK(),
			Stdout: res.Stdout,
			Stderr: res.Stderr,
		}
		if res.TimedOut {
			cr.Err = errors.NewTimeoutError("quality check "+check.Name, check.Timeout)
		}
		if !cr.OK {
			report.OK = false
		}
		g.logger.Info("quality check finished",
			"check", check.Name,
			"ok", cr.OK,
			"exit_code", res.ExitCode,
			"timed_out", res.TimedOut)
		report.Results = append(report.Results, cr)
	}
	return report, nil
}

func (g *CommandGate) loadEnvFile(worktreePath string) (map[string]string, error) {
	if g.envFile == "" {
		return nil, nil
	}
	path := g.envFile
	if !filepath.IsAbs(path) {
		path = filepath.Join(worktreePath, path)
	}
	env, err := godotenv.Read(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read quality env file %s: %w", path, err)
	}
	return env, nil
}
