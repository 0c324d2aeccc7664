package llm

import (
	"context"
	"fmt"
	"sync"
)

// Scripted replays canned completions in order. It is used for demos and
// tests; once the script is exhausted the last entry repeats, or an error is
// returned when the script is empty.
type Scripted struct {
	mu      sync.Mutex
	replies []string
	idx     int
	prompts []string
}

// NewScripted returns a Model that answers with replies in order.
func NewScripted(replies ...string) *Scripted {
	return &Scripted{replies: replies}
}

// Generate returns the next scripted reply.
func (s *Scripted) Generate(ctx context.Context, prompt string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prompts = append(s.prompts, prompt)
	if len(s.replies) == 0 {
		return "", fmt.Errorf("scripted: %w", ErrEmptyCompletion)
	}
	i := s.idx
	if i >= len(s.replies) {
		i = len(s.replies) - 1
	} else {
		s.idx++
	}
	return s.replies[i], nil
}

// Prompts returns every prompt received so far.
func (s *Scripted) Prompts() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.prompts...)
}
