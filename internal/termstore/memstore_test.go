package termstore_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/testimony-project/testimony/internal/termstore"
)

func TestMemStoreLookupIsCaseInsensitive(t *testing.T) {
	t.Parallel()

	store := termstore.NewMemStore([]termstore.Term{
		{Name: "Ho-Chunk", Kind: termstore.KindTribe},
		{Name: "Standing Rock", Kind: termstore.KindPlace},
	})

	term, ok, err := store.Lookup(context.Background(), "ho-chunk")
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("ho-chunk not found")
	}
	if term.Name != "Ho-Chunk" || term.Kind != termstore.KindTribe {
		t.Errorf("term = %+v", term)
	}

	if _, ok, _ := store.Lookup(context.Background(), "madison"); ok {
		t.Error("madison unexpectedly found")
	}
}

func TestLoadTermsFromReader(t *testing.T) {
	t.Parallel()

	const doc = `
terms:
  - name: Yupik
    kind: tribe
  - name: Bethel
    kind: place
`
	store, err := termstore.LoadTermsFromReader(strings.NewReader(doc))
	if err != nil {
		t.Fatal(err)
	}
	if store.Len() != 2 {
		t.Errorf("len = %d, want 2", store.Len())
	}
	if _, ok, _ := store.Lookup(context.Background(), "yupik"); !ok {
		t.Error("yupik not found")
	}
}

func TestLoadTermsFromReaderRejectsBadInput(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		doc  string
	}{
		{"missing name", "terms:\n  - kind: tribe\n"},
		{"invalid kind", "terms:\n  - name: Yupik\n    kind: nation\n"},
		{"unknown field", "term:\n  - name: Yupik\n"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if _, err := termstore.LoadTermsFromReader(strings.NewReader(tc.doc)); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestLoadTermFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "terms.yaml")
	if err := os.WriteFile(path, []byte("terms:\n  - name: Oneida\n    kind: tribe\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	store, err := termstore.LoadTermFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok, _ := store.Lookup(context.Background(), "oneida"); !ok {
		t.Error("oneida not found")
	}

	if _, err := termstore.LoadTermFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}
