package canon

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/testimony-project/testimony/internal/cluster"
)

// mappingFile is the on-disk JSON schema for a persisted mapping table.
// The file retains original identifying strings and is the only artifact
// that does; treat it with the same care as the raw transcript.
type mappingFile struct {
	GeneratedAt time.Time        `json:"generated_at"`
	RunID       string           `json:"run_id,omitempty"`
	Sensitive   bool             `json:"sensitive"`
	Codes       map[string]Entry `json:"codes"`
}

// WriteFile persists the table as JSON at path with permissions restricted
// to the owning user.
func (t *Table) WriteFile(path, runID string) error {
	payload := mappingFile{
		GeneratedAt: time.Now().UTC(),
		RunID:       runID,
		Sensitive:   true,
		Codes:       t.Codes,
	}
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return fmt.Errorf("canon: marshal mapping table: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o600); err != nil {
		return fmt.Errorf("canon: write mapping table %q: %w", path, err)
	}
	return nil
}

// LoadFile reads a persisted mapping table from path. Used by the grader's
// leak scan; the cleaning pipeline itself always builds tables fresh.
func LoadFile(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("canon: read mapping table %q: %w", path, err)
	}
	var payload mappingFile
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("canon: parse mapping table %q: %w", path, err)
	}

	t := &Table{Codes: payload.Codes}
	for label := range payload.Codes {
		t.order = append(t.order, label)
	}
	// File order is map order; restore the label ordering Assign produces.
	sort.Slice(t.order, func(i, j int) bool {
		ei, ej := payload.Codes[t.order[i]], payload.Codes[t.order[j]]
		if ei.Type != ej.Type {
			return typeRank(ei.Type) < typeRank(ej.Type)
		}
		return codeNumber(t.order[i]) < codeNumber(t.order[j])
	})
	return t, nil
}

// typeRank mirrors the fixed type order used when assigning labels.
func typeRank(t cluster.EntityType) int {
	switch t {
	case cluster.TypePerson:
		return 0
	case cluster.TypeOrganization:
		return 1
	case cluster.TypeLocation:
		return 2
	case cluster.TypeTribe:
		return 3
	}
	return 4
}

// codeNumber extracts the numeric suffix of a code label; 0 if malformed.
func codeNumber(label string) int {
	n := 0
	for i := len(label) - 1; i >= 0; i-- {
		if label[i] == '_' {
			fmt.Sscanf(label[i+1:], "%d", &n)
			break
		}
	}
	return n
}
