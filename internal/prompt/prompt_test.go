package prompt

import (
	"context"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/Iron-Ham/otto/internal/errors"
)

func TestHeadless(t *testing.T) {
	ctx := context.Background()
	h := New(ModeHeadless)
	if _, err := h.Confirm(ctx, "x", true); !errors.Is(err, errors.ErrPromptUnavailable) {
		t.Errorf("Confirm err = %v", err)
	}
	if _, err := h.Text(ctx, "x", ""); !errors.Is(err, errors.ErrPromptUnavailable) {
		t.Errorf("Text err = %v", err)
	}
	if _, err := h.Select(ctx, "x", []string{"a"}, "a"); !errors.Is(err, errors.ErrPromptUnavailable) {
		t.Errorf("Select err = %v", err)
	}
	if got := errors.ErrPromptUnavailable.Error(); got != "Prompt UI unavailable (no TTY). Use non-interactive commands." {
		t.Errorf("message = %q", got)
	}
}

func TestIsCI(t *testing.T) {
	tests := map[string]bool{"true": true, "TRUE": true, "1": true, "": false, "0": false, "false": false}
	for v, want := range tests {
		if got := isCI(v); got != want {
			t.Errorf("isCI(%q) = %v, want %v", v, got, want)
		}
	}
}

func TestIsInteractiveUnderCI(t *testing.T) {
	t.Setenv("CI", "true")
	if IsInteractive() {
		t.Error("IsInteractive() should be false under CI")
	}
	if _, ok := New(ModeAuto).(Headless); !ok {
		t.Error("auto mode under CI should be headless")
	}
}

func key(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "down":
		return tea.KeyMsg{Type: tea.KeyDown}
	case "up":
		return tea.KeyMsg{Type: tea.KeyUp}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestChoiceModel(t *testing.T) {
	m := newChoiceModel("Pick", []string{"Yes", "No"}, "No")
	if m.cursor != 1 {
		t.Fatalf("default cursor = %d", m.cursor)
	}

	next, _ := m.Update(key("down"))
	m = next.(choiceModel)
	if m.cursor != 0 {
		t.Errorf("cursor after wrap = %d", m.cursor)
	}
	next, _ = m.Update(key("up"))
	m = next.(choiceModel)
	if m.cursor != 1 {
		t.Errorf("cursor after up = %d", m.cursor)
	}
	if view := m.View(); view == "" {
		t.Error("View() should render before completion")
	}

	next, cmd := m.Update(key("enter"))
	m = next.(choiceModel)
	if !m.done || cmd == nil {
		t.Error("enter should complete")
	}
	if m.View() != "" {
		t.Error("View() should be empty after completion")
	}

	cancelled, _ := newChoiceModel("Pick", []string{"a"}, "").Update(key("esc"))
	if !cancelled.(choiceModel).cancelled {
		t.Error("esc should cancel")
	}
}

func TestTextModel(t *testing.T) {
	m := newTextModel("Feedback", "draft")
	if m.input.Value() != "draft" {
		t.Errorf("default value = %q", m.input.Value())
	}
	next, _ := m.Update(key("!"))
	m = next.(textModel)
	if m.input.Value() != "draft!" {
		t.Errorf("value = %q", m.input.Value())
	}
	next, _ = m.Update(key("enter"))
	if !next.(textModel).done {
		t.Error("enter should complete")
	}
}

func TestScripted(t *testing.T) {
	ctx := context.Background()
	s := NewScripted(Yes(), Say("answer"), Answer{Err: ErrCancelled})

	if ok, err := s.Confirm(ctx, "first?", false); !ok || err != nil {
		t.Errorf("Confirm = %v, %v", ok, err)
	}
	if v, err := s.Text(ctx, "second?", ""); v != "answer" || err != nil {
		t.Errorf("Text = %q, %v", v, err)
	}
	if _, err := s.Select(ctx, "third?", nil, ""); !errors.Is(err, ErrCancelled) {
		t.Errorf("Select err = %v", err)
	}
	if _, err := s.Confirm(ctx, "fourth?", true); err == nil {
		t.Error("exhausted script should fail")
	}
	if got := s.Messages(); len(got) != 4 || got[0] != "first?" {
		t.Errorf("Messages() = %v", got)
	}
}
