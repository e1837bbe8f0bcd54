// Package httpner provides an entity candidate source backed by a remote
// NER server.
//
// It targets the common spaCy-server shape: POST /ner with a JSON body
// containing the text, returning a flat entity list with character offsets
// and model labels. Long transcripts are submitted in chunks below the
// server's document limit and offsets are rebased before returning.
//
// Usage:
//
//	p, err := httpner.New("http://localhost:8000",
//	    httpner.WithModel("en_core_web_md"),
//	)
//	candidates, err := p.Recognize(ctx, text)
package httpner

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/testimony-project/testimony/pkg/provider/ner"
)

const (
	defaultTimeout   = 2 * time.Minute
	defaultChunkSize = 100_000
)

// Compile-time assertion that Provider implements ner.Provider.
var _ ner.Provider = (*Provider)(nil)

// labelMap translates model label schemes (spaCy, OntoNotes, CoNLL) to
// candidate types. NORP maps to tribe because nationality/religious/
// political-group labels are where models put tribal affiliations.
var labelMap = map[string]ner.EntityType{
	"PERSON":       ner.Person,
	"PER":          ner.Person,
	"ORG":          ner.Organization,
	"ORGANIZATION": ner.Organization,
	"GPE":          ner.Location,
	"LOC":          ner.Location,
	"LOCATION":     ner.Location,
	"FAC":          ner.Location,
	"NORP":         ner.Tribe,
}

// Option is a functional option for configuring a Provider.
type Option func(*Provider)

// WithModel sets the model identifier forwarded to the server. When empty
// the server uses whichever model it was started with — this is the default.
func WithModel(model string) Option {
	return func(p *Provider) {
		p.model = model
	}
}

// WithHTTPClient replaces the default HTTP client, e.g. to tighten the
// timeout or add instrumentation.
func WithHTTPClient(c *http.Client) Option {
	return func(p *Provider) {
		p.client = c
	}
}

// WithChunkSize overrides the maximum document size submitted per request.
// Defaults to 100 000 bytes.
func WithChunkSize(n int) Option {
	return func(p *Provider) {
		if n > 0 {
			p.chunkSize = n
		}
	}
}

// Provider implements ner.Provider against a remote NER HTTP server.
type Provider struct {
	serverURL string
	model     string
	chunkSize int
	client    *http.Client
}

// New returns a Provider talking to the NER server at serverURL.
func New(serverURL string, opts ...Option) (*Provider, error) {
	if serverURL == "" {
		return nil, fmt.Errorf("httpner: server URL must not be empty")
	}
	p := &Provider{
		serverURL: strings.TrimRight(serverURL, "/"),
		chunkSize: defaultChunkSize,
		client:    &http.Client{Timeout: defaultTimeout},
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// Name implements ner.Provider.
func (p *Provider) Name() string { return "http" }

type nerRequest struct {
	Text  string `json:"text"`
	Model string `json:"model,omitempty"`
}

type nerEntity struct {
	Text  string `json:"text"`
	Start int    `json:"start"`
	End   int    `json:"end"`
	Label string `json:"label"`
}

type nerResponse struct {
	Entities []nerEntity `json:"entities"`
}

// Recognize implements ner.Provider.
func (p *Provider) Recognize(ctx context.Context, text string) ([]ner.Candidate, error) {
	var out []ner.Candidate
	for offset := 0; offset < len(text); offset += p.chunkSize {
		end := offset + p.chunkSize
		if end > len(text) {
			end = len(text)
		}
		entities, err := p.recognizeChunk(ctx, text[offset:end])
		if err != nil {
			return nil, err
		}
		for _, e := range entities {
			t, ok := labelMap[strings.ToUpper(e.Label)]
			if !ok {
				t = ner.Unknown
			}
			out = append(out, ner.Candidate{
				Surface: e.Text,
				Start:   offset + e.Start,
				End:     offset + e.End,
				Type:    t,
			})
		}
	}
	return out, nil
}

func (p *Provider) recognizeChunk(ctx context.Context, chunk string) ([]nerEntity, error) {
	body, err := json.Marshal(nerRequest{Text: chunk, Model: p.model})
	if err != nil {
		return nil, fmt.Errorf("httpner: encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.serverURL+"/ner", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("httpner: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("httpner: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("httpner: server returned %s: %s", resp.Status, strings.TrimSpace(string(payload)))
	}

	var parsed nerResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("httpner: decode response: %w", err)
	}
	return parsed.Entities, nil
}
