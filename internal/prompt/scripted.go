package prompt

import (
	"context"
	"fmt"
	"sync"
)

// Answer is one scripted reply. Err, when set, is returned instead.
type Answer struct {
	Confirm bool
	Text    string
	Err     error
}

// Scripted replays answers in order and records every message asked. When
// the script runs out, prompts fail.
type Scripted struct {
	mu       sync.Mutex
	answers  []Answer
	messages []string
}

// NewScripted creates a Scripted adapter.
func NewScripted(answers ...Answer) *Scripted {
	return &Scripted{answers: answers}
}

// Messages returns the prompts asked so far.
func (s *Scripted) Messages() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.messages...)
}

func (s *Scripted) next(message string) (Answer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, message)
	if len(s.answers) == 0 {
		return Answer{}, fmt.Errorf("unexpected prompt: %s", message)
	}
	a := s.answers[0]
	s.answers = s.answers[1:]
	return a, a.Err
}

// Confirm implements Adapter.
func (s *Scripted) Confirm(_ context.Context, message string, _ bool) (bool, error) {
	a, err := s.next(message)
	return a.Confirm, err
}

// Text implements Adapter.
func (s *Scripted) Text(_ context.Context, message string, _ string) (string, error) {
	a, err := s.next(message)
	return a.Text, err
}

// Select implements Adapter.
func (s *Scripted) Select(_ context.Context, message string, _ []string, _ string) (string, error) {
	a, err := s.next(message)
	return a.Text, err
}

// Yes is a Confirm(true) answer.
func Yes() Answer { return Answer{Confirm: true} }

// No is a Confirm(false) answer.
func No() Answer { return Answer{Confirm: false} }

// Say is a Text or Select answer.
func Say(text string) Answer { return Answer{Text: text} }
