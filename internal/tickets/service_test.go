package tickets

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/Iron-Ham/otto/internal/runner"
)

func newTestService(t *testing.T, handler func(runner.Options) runner.Result) (*Service, *runner.Fake, *SessionStore, string) {
	t.Helper()
	root := t.TempDir()
	fake := &runner.Fake{Handler: handler}
	sessions := NewSessionStore(filepath.Join(root, "sessions"))
	svc := NewService(root, NewProjectLead(fake, sessions, root, nil), nil)
	svc.SetClock(func() time.Time { return testDate })
	return svc, fake, sessions, root
}

func TestSessionStore(t *testing.T) {
	store := NewSessionStore(filepath.Join(t.TempDir(), "sessions"))

	if id, err := store.Load(); err != nil || id != "" {
		t.Fatalf("Load(missing) = %q, %v", id, err)
	}
	if err := store.Save("sess-1"); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if id, _ := store.Load(); id != "sess-1" {
		t.Errorf("Load() = %q, want sess-1", id)
	}

	if err := os.WriteFile(store.Path(), []byte(`{"sessionId":"  "}`), 0o644); err != nil {
		t.Fatal(err)
	}
	if id, _ := store.Load(); id != "" {
		t.Errorf("Load(blank) = %q, want empty", id)
	}

	if err := store.Clear(); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}
	if err := store.Clear(); err != nil {
		t.Fatalf("Clear(missing) error = %v", err)
	}
}

func TestProjectLead_ClearsFailedSession(t *testing.T) {
	var sessions []string
	svc, _, store, _ := newTestService(t, func(opts runner.Options) runner.Result {
		sessions = append(sessions, opts.SessionID)
		if opts.SessionID == "stale" {
			return runner.Result{Success: false, Error: "session not found"}
		}
		return runner.Result{Success: true, SessionID: "fresh", Output: "<OK>"}
	})
	if err := store.Save("stale"); err != nil {
		t.Fatal(err)
	}

	res := svc.lead.Run(context.Background(), PhaseCreate, "prompt")
	if !res.Success {
		t.Fatalf("Run() = %+v", res)
	}
	if strings.Join(sessions, ",") != "stale," {
		t.Errorf("sessions used = %q, want stale then fresh", sessions)
	}
	if id, _ := store.Load(); id != "fresh" {
		t.Errorf("stored session = %q, want fresh", id)
	}
}

func TestProjectLead_FreshFailureKeepsNoSession(t *testing.T) {
	svc, fake, store, _ := newTestService(t, func(runner.Options) runner.Result {
		return runner.Result{Success: false, Error: "boom"}
	})

	if res := svc.lead.Run(context.Background(), PhaseCreate, "prompt"); res.Success {
		t.Fatal("expected failure")
	}
	if n := len(fake.Calls()); n != 1 {
		t.Errorf("calls = %d, want 1 without a stored session", n)
	}
	if id, _ := store.Load(); id != "" {
		t.Errorf("stored session = %q, want none", id)
	}
}

func TestService_Create(t *testing.T) {
	svc, fake, _, root := newTestService(t, func(opts runner.Options) runner.Result {
		if opts.Role != runner.RoleProjectLead {
			t.Errorf("role = %q", opts.Role)
		}
		return runner.Result{Success: true, SessionID: "s", Output: "<SLUG>add response caching</SLUG>\n<CONTENT>\n# Cache\n</CONTENT>"}
	})

	res, err := svc.Create(context.Background(), "  cache the API responses  ")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if res.TicketID != "2026-02-01-add-response-caching" {
		t.Errorf("TicketID = %q", res.TicketID)
	}
	prompt := fake.Calls()[0].Prompt
	if !strings.Contains(prompt, "<INPUT>\ncache the API responses\n</INPUT>") {
		t.Errorf("prompt missing trimmed input:\n%s", prompt)
	}
	if ids, _ := List(root); len(ids) != 1 {
		t.Errorf("tickets = %v", ids)
	}
}

func TestService_RetriesInvalidReply(t *testing.T) {
	replies := []string{
		"<SLUG>caching</SLUG><CONTENT>x</CONTENT>",
		"<SLUG>add response caching</SLUG><CONTENT>x</CONTENT>",
	}
	var prompts []string
	svc, _, _, _ := newTestService(t, func(opts runner.Options) runner.Result {
		prompts = append(prompts, opts.Prompt)
		out := replies[len(prompts)-1]
		return runner.Result{Success: true, SessionID: "s", Output: out}
	})

	if _, err := svc.Create(context.Background(), "cache things"); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if len(prompts) != 2 {
		t.Fatalf("prompts = %d, want 2", len(prompts))
	}
	if !strings.Contains(prompts[1], "<RETRY>\nPrevious response was invalid: Ticket slug must be 3-5 words.\nReturn the tags exactly as requested.\n</RETRY>") {
		t.Errorf("retry prompt:\n%s", prompts[1])
	}
	if !strings.HasPrefix(prompts[1], "You are the project lead for this repository.") {
		t.Error("retry prompt should repeat the base prompt")
	}
}

func TestService_GivesUpAfterSecondInvalidReply(t *testing.T) {
	svc, fake, _, _ := newTestService(t, func(runner.Options) runner.Result {
		return runner.Result{Success: true, Output: "no tags here"}
	})

	_, err := svc.Create(context.Background(), "cache things")
	if err == nil || err.Error() != "Ticket creation missing <SLUG> tag." {
		t.Fatalf("Create() error = %v", err)
	}
	if n := len(fake.Calls()); n != 2 {
		t.Errorf("calls = %d, want 2", n)
	}
}

func TestService_IngestAndAmend(t *testing.T) {
	svc, fake, _, root := newTestService(t, func(opts runner.Options) runner.Result {
		switch opts.Phase {
		case PhaseIngest:
			return runner.Result{Success: true, Output: "<SLUG>legacy billing notes</SLUG>"}
		case PhaseAmend:
			return runner.Result{Success: true, Output: "<CONTENT>amended</CONTENT>"}
		}
		return runner.Result{Success: false, Error: "unexpected phase " + opts.Phase}
	})

	src := filepath.Join(t.TempDir(), "billing.md")
	if err := os.WriteFile(src, []byte("# Billing\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	ingested, err := svc.Ingest(context.Background(), src)
	if err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}

	if _, err := svc.Amend(context.Background(), ingested.TicketID, "shorter please"); err != nil {
		t.Fatalf("Amend() error = %v", err)
	}
	amendPrompt := fake.Calls()[1].Prompt
	for _, want := range []string{
		"<TICKET_ID>" + ingested.TicketID + "</TICKET_ID>",
		"<EXISTING>\n# Billing\n</EXISTING>",
		"<AMEND_INSTRUCTIONS>\nshorter please\n</AMEND_INSTRUCTIONS>",
	} {
		if !strings.Contains(amendPrompt, want) {
			t.Errorf("amend prompt missing %q", want)
		}
	}
	if got, _ := Read(root, ingested.TicketID); got != "amended\n" {
		t.Errorf("ticket = %q", got)
	}
}

func TestService_LeadFailure(t *testing.T) {
	svc, _, _, _ := newTestService(t, func(runner.Options) runner.Result {
		return runner.Result{Success: false, Error: "runner crashed"}
	})
	_, err := svc.Create(context.Background(), "cache things")
	if err == nil || !strings.Contains(err.Error(), "runner crashed") {
		t.Fatalf("Create() error = %v", err)
	}
}
