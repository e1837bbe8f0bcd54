package health

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/testimony-project/testimony/internal/termstore"
	"github.com/testimony-project/testimony/pkg/provider/ner"
	"github.com/testimony-project/testimony/pkg/provider/ner/mock"
)

func TestTermStoreChecker(t *testing.T) {
	store := termstore.NewMemStore([]termstore.Term{{Name: "Anishinaabe", Kind: termstore.KindTribe}})

	c := TermStore(store)
	if c.Name != "term_store" {
		t.Errorf("name = %q, want %q", c.Name, "term_store")
	}
	if err := c.Check(context.Background()); err != nil {
		t.Errorf("check failed: %v", err)
	}
}

func TestRecognizerChecker(t *testing.T) {
	p := &mock.Provider{Candidates: []ner.Candidate{}}

	c := Recognizer(p)
	if c.Name != "recognizer" {
		t.Errorf("name = %q, want %q", c.Name, "recognizer")
	}
	if err := c.Check(context.Background()); err != nil {
		t.Errorf("check failed: %v", err)
	}
	if len(p.Calls) != 1 {
		t.Errorf("recognize calls = %d, want 1", len(p.Calls))
	}
}

func TestRecognizerCheckerReportsFailure(t *testing.T) {
	p := &mock.Provider{Err: errors.New("backend down")}

	err := Recognizer(p).Check(context.Background())
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "backend down") {
		t.Errorf("error = %v, want cause included", err)
	}
}
