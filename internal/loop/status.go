package loop

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Phase is the state of one transcript's convergence loop.
type Phase string

const (
	PhaseRunning   Phase = "running"
	PhaseConverged Phase = "converged"
	PhaseFailed    Phase = "failed"
)

// IsTerminal reports whether the loop has stopped in this phase.
func (p Phase) IsTerminal() bool {
	return p == PhaseConverged || p == PhaseFailed
}

// Status is the monitoring record re-written in place after every iteration
// (and re-stamped by the heartbeat during long external calls). External
// monitors poll the file; the loop itself never reads it back.
type Status struct {
	Phase          Phase     `json:"phase"`
	IterationIndex int       `json:"iteration_index"`
	LastScore      float64   `json:"last_score"`
	Reason         string    `json:"reason,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
	RunID          string    `json:"run_id"`
}

// statusFile serializes updates to a single status.json. The heartbeat
// goroutine and the iteration driver both write through it, so every write
// holds the mutex and goes through an atomic rename.
type statusFile struct {
	mu   sync.Mutex
	path string
	cur  Status
}

func newStatusFile(path, runID string) *statusFile {
	return &statusFile{
		path: path,
		cur:  Status{Phase: PhaseRunning, RunID: runID},
	}
}

// update overwrites the record with fresh fields and persists it.
func (s *statusFile) update(phase Phase, iteration int, score float64, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cur.Phase = phase
	s.cur.IterationIndex = iteration
	s.cur.LastScore = score
	s.cur.Reason = reason
	return s.writeLocked()
}

// touch re-stamps the timestamp without changing any other field. Used by the
// heartbeat so a stalled external call still shows forward-moving liveness.
func (s *statusFile) touch() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writeLocked()
}

func (s *statusFile) writeLocked() error {
	s.cur.Timestamp = time.Now().UTC()

	data, err := json.MarshalIndent(s.cur, "", "  ")
	if err != nil {
		return fmt.Errorf("loop: marshal status: %w", err)
	}
	data = append(data, '\n')

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".status-*.json")
	if err != nil {
		return fmt.Errorf("loop: write status: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("loop: write status: %w", err)
	}
	if err := tmp.Chmod(0o644); err != nil {
		tmp.Close()
		return fmt.Errorf("loop: write status: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("loop: write status: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("loop: write status: %w", err)
	}
	return nil
}
