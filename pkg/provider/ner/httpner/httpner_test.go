package httpner_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/testimony-project/testimony/pkg/provider/ner"
	"github.com/testimony-project/testimony/pkg/provider/ner/httpner"
)

func TestRecognize(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/ner" {
			t.Errorf("path = %q, want /ner", r.URL.Path)
		}
		var req struct {
			Text  string `json:"text"`
			Model string `json:"model"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.Model != "en_core_web_md" {
			t.Errorf("model = %q", req.Model)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"entities": []map[string]any{
				{"text": "Sarah Brache", "start": 0, "end": 12, "label": "PERSON"},
				{"text": "Ho-Chunk", "start": 30, "end": 38, "label": "NORP"},
				{"text": "Series B", "start": 50, "end": 58, "label": "EVENT"},
			},
		})
	}))
	defer srv.Close()

	p, err := httpner.New(srv.URL, httpner.WithModel("en_core_web_md"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	got, err := p.Recognize(context.Background(), "Sarah Brache works with the Ho-Chunk Nation.")
	if err != nil {
		t.Fatalf("Recognize: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("candidate count = %d, want 3", len(got))
	}
	if got[0].Type != ner.Person || got[0].Surface != "Sarah Brache" {
		t.Errorf("candidate 0 = %+v", got[0])
	}
	if got[1].Type != ner.Tribe {
		t.Errorf("NORP label mapped to %s, want tribe", got[1].Type)
	}
	if got[2].Type != ner.Unknown {
		t.Errorf("unmapped label mapped to %s, want unknown", got[2].Type)
	}
}

func TestRecognizeChunksLongInput(t *testing.T) {
	t.Parallel()

	var requests int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		json.NewEncoder(w).Encode(map[string]any{
			"entities": []map[string]any{
				{"text": "x", "start": 1, "end": 2, "label": "PERSON"},
			},
		})
	}))
	defer srv.Close()

	p, err := httpner.New(srv.URL, httpner.WithChunkSize(10))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	got, err := p.Recognize(context.Background(), "0123456789abcdefghij")
	if err != nil {
		t.Fatalf("Recognize: %v", err)
	}
	if requests != 2 {
		t.Errorf("request count = %d, want 2", requests)
	}
	// Second chunk's offsets must be rebased into the full text.
	if len(got) != 2 || got[1].Start != 11 || got[1].End != 12 {
		t.Errorf("candidates = %+v", got)
	}
}

func TestRecognizeServerError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusInternalServerError)
	}))
	defer srv.Close()

	p, err := httpner.New(srv.URL)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := p.Recognize(context.Background(), "text"); err == nil {
		t.Error("Recognize succeeded against failing server")
	}
}

func TestNewRejectsEmptyURL(t *testing.T) {
	t.Parallel()

	if _, err := httpner.New(""); err == nil {
		t.Error("New accepted empty URL")
	}
}
