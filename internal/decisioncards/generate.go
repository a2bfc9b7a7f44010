package decisioncards

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/Iron-Ham/otto/internal/errors"
	"github.com/Iron-Ham/otto/internal/logging"
	"github.com/Iron-Ham/otto/internal/runner"
	"github.com/Iron-Ham/otto/internal/util"
)

const generateTimeout = 5 * time.Minute

// InvokeFunc runs one lead invocation. Implementations may resume, reset
// and persist sessions; SessionID in the options is only a hint.
type InvokeFunc func(ctx context.Context, opts runner.Options) (runner.Result, error)

// GenerateOptions configures a lead invocation that produces cards.
type GenerateOptions struct {
	// Invoke, when set, is used instead of Runner.
	Invoke    InvokeFunc
	Runner    runner.Runner
	Reminder  string // tech lead planning reminder prepended to the prompt
	PlanPath  string
	CardsPath string
	Cwd       string
	SessionID string
	// Existing cards are shown to the lead and merged into the result. When
	// nil, the file at CardsPath is used if it is valid.
	Existing *Document
	Logger   *logging.Logger
}

// Generate asks the lead for a fresh document, merges it with the existing
// one and writes it to CardsPath.
func Generate(ctx context.Context, opts GenerateOptions) (*Document, error) {
	plan, err := os.ReadFile(opts.PlanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read plan: %w", err)
	}
	existing := opts.Existing
	if existing == nil {
		existing, _ = Read(opts.CardsPath)
	}

	prompt, err := generatePrompt(opts.Reminder, string(plan), existing)
	if err != nil {
		return nil, err
	}

	invoke := opts.Invoke
	if invoke == nil {
		invoke = func(ctx context.Context, ro runner.Options) (runner.Result, error) {
			return opts.Runner.Run(ctx, ro), nil
		}
	}
	start := time.Now()
	result, err := invoke(ctx, runner.Options{
		Role:       runner.RoleLead,
		Phase:      "decision-cards",
		Prompt:     prompt,
		Cwd:        opts.Cwd,
		SessionID:  opts.SessionID,
		Timeout:    generateTimeout,
		JSONSchema: Schema,
	})
	if err != nil {
		return nil, err
	}
	opts.Logger.Info("decision cards generated",
		"success", result.Success,
		"duration", time.Since(start).String(),
	)
	if !result.Success || strings.TrimSpace(result.Output) == "" {
		return nil, errors.New(util.FirstNonEmpty(result.Error, "Failed to generate decision cards."))
	}

	next, err := Parse([]byte(extractJSON(result.Output)))
	if err != nil {
		return nil, err
	}
	merged := Merge(next, existing)
	if err := Write(opts.CardsPath, merged); err != nil {
		return nil, err
	}
	if !util.FileHasContent(opts.CardsPath) {
		return nil, errors.New("Decision cards: failed to write decision-cards.json")
	}
	return merged, nil
}

// Ensure returns the valid document at CardsPath, generating one when the
// file is missing or invalid.
func Ensure(ctx context.Context, opts GenerateOptions) (*Document, error) {
	doc, err := Read(opts.CardsPath)
	if err == nil && doc != nil {
		return doc, nil
	}
	if err != nil {
		opts.Logger.Warn("discarding invalid decision cards", "path", opts.CardsPath, "error", err.Error())
	}
	opts.Existing = nil
	if _, err := Generate(ctx, opts); err != nil {
		return nil, err
	}
	doc, err = Read(opts.CardsPath)
	if err != nil || doc == nil {
		return nil, errors.New("Decision cards missing or invalid after regeneration.")
	}
	return doc, nil
}

func generatePrompt(reminder, plan string, existing *Document) (string, error) {
	idHint := "Use stable IDs like D1, D2... and Q1, Q2..."
	if existing != nil {
		idHint = "You may keep stable IDs from the existing cards when appropriate."
	}
	lines := []string{
		reminder,
		"",
		"You are Otto (tech lead).",
		"",
		"Generate decision cards as strict JSON.",
		"- Output ONLY JSON. No markdown, no commentary.",
		"- Do NOT write any files; Otto will persist your JSON.",
		"- Include at least 1 decision.",
		"- Keep each field concise (1-3 sentences).",
		"",
		idHint,
		"",
		"<PLAN>",
		strings.TrimRight(plan, " \t\r\n"),
		"</PLAN>",
		"",
	}
	if existing != nil {
		data, err := json.MarshalIndent(existing, "", "  ")
		if err != nil {
			return "", fmt.Errorf("failed to encode existing cards: %w", err)
		}
		lines = append(lines, "<EXISTING_CARDS>", string(data), "</EXISTING_CARDS>", "")
	}
	return strings.Join(lines, "\n"), nil
}

// extractJSON strips a markdown fence around the runner's reply.
func extractJSON(output string) string {
	s := strings.TrimSpace(output)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
