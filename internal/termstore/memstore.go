package termstore

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// MemStore is an in-memory [Store]. It is immutable after construction and
// therefore trivially safe for concurrent use.
type MemStore struct {
	terms map[string]Term
}

// Compile-time interface check.
var _ Store = (*MemStore)(nil)

// NewMemStore builds a [MemStore] from a term list. Keys are matched against
// normalized candidate surfaces case-insensitively.
func NewMemStore(terms []Term) *MemStore {
	m := make(map[string]Term, len(terms))
	for _, t := range terms {
		m[normKey(t.Name)] = t
	}
	return &MemStore{terms: m}
}

// Lookup implements [Store].
func (s *MemStore) Lookup(_ context.Context, normalized string) (Term, bool, error) {
	t, ok := s.terms[normKey(normalized)]
	return t, ok, nil
}

// Len returns the number of terms in the store.
func (s *MemStore) Len() int {
	return len(s.terms)
}

// termFile is the YAML schema for a term file.
type termFile struct {
	Terms []Term `yaml:"terms"`
}

// LoadTermFile reads a YAML term file from path and returns a [MemStore].
func LoadTermFile(path string) (*MemStore, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("termstore: open %q: %w", path, err)
	}
	defer f.Close()

	store, err := LoadTermsFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("termstore: parse %q: %w", path, err)
	}
	return store, nil
}

// LoadTermsFromReader decodes a YAML term file from r. Useful in tests where
// term files are constructed from string literals.
func LoadTermsFromReader(r io.Reader) (*MemStore, error) {
	var tf termFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&tf); err != nil {
		return nil, fmt.Errorf("termstore: decode yaml: %w", err)
	}
	for i, t := range tf.Terms {
		if t.Name == "" {
			return nil, fmt.Errorf("termstore: terms[%d].name is required", i)
		}
		if !t.Kind.IsValid() {
			return nil, fmt.Errorf("termstore: terms[%d].kind %q is invalid; valid values: tribe, place", i, t.Kind)
		}
	}
	return NewMemStore(tf.Terms), nil
}

func normKey(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
