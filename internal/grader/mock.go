package grader

import (
	"context"
	"sync"
)

// Compile-time assertion that Mock implements Grader.
var _ Grader = (*Mock)(nil)

// Mock is a test double for Grader. Scores are returned in sequence; the
// final score repeats once the sequence is exhausted. Set Err to inject a
// failure on every call.
type Mock struct {
	mu sync.Mutex

	// Scores is the sequence of scores to return, one per Grade call.
	Scores []float64

	// Err, if non-nil, is returned from every Grade call.
	Err error

	// Calls records the artifacts passed to Grade, in order.
	Calls []Artifact

	next int
}

// Grade implements Grader.
func (m *Mock) Grade(_ context.Context, artifact Artifact) (Report, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Calls = append(m.Calls, artifact)
	if m.Err != nil {
		return Report{}, m.Err
	}
	if len(m.Scores) == 0 {
		return Report{}, nil
	}
	i := m.next
	if i >= len(m.Scores) {
		i = len(m.Scores) - 1
	}
	m.next++
	score := m.Scores[i]
	return Report{Score: score, Grade: LetterGrade(score / 100.0)}, nil
}

// CallCount returns how many times Grade has been invoked.
func (m *Mock) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}
