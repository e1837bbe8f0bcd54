// Package llm provides an entity candidate source backed by
// github.com/mozilla-ai/any-llm-go, a unified multi-provider interface that
// supports OpenAI, Anthropic, Gemini, Ollama, DeepSeek, Mistral, Groq, and
// more.
//
// The model is asked for a strict JSON array of mentions; surfaces the
// model returns are located in the source text by search, so a surface the
// model paraphrased rather than quoted carries offset -1 per the ner
// contract.
//
// Usage:
//
//	p, err := llm.New("openai", "gpt-4o")
//	candidates, err := p.Recognize(ctx, text)
package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	anyllmlib "github.com/mozilla-ai/any-llm-go"
	"github.com/mozilla-ai/any-llm-go/providers/anthropic"
	"github.com/mozilla-ai/any-llm-go/providers/gemini"
	"github.com/mozilla-ai/any-llm-go/providers/mistral"
	"github.com/mozilla-ai/any-llm-go/providers/ollama"
	anyllmoai "github.com/mozilla-ai/any-llm-go/providers/openai"

	"github.com/testimony-project/testimony/pkg/provider/ner"
)

const systemPrompt = `You extract named-entity mentions from interview transcripts.
Return ONLY a JSON array, no prose and no code fences. Each element:
{"surface": "<exact text as it appears>", "type": "person|organization|location|tribe|unknown"}
Quote surfaces exactly, character for character. Include every mention of
people, organizations, places, and tribal nations. Do not include speaker
codes like Person_1 or placeholder tokens in square brackets.`

const defaultMaxTokens = 4096

// Compile-time assertion that Provider implements ner.Provider.
var _ ner.Provider = (*Provider)(nil)

// Provider implements ner.Provider by prompting a chat model.
type Provider struct {
	backend anyllmlib.Provider
	model   string
}

// New creates a Provider backed by the given LLM provider name.
//
// providerName is one of: "openai", "anthropic", "gemini", "ollama",
// "mistral". model is the specific model to use (e.g., "gpt-4o"). opts are
// any-llm-go configuration options (e.g., anyllmlib.WithAPIKey); without an
// API key option the backend falls back to its environment variable.
func New(providerName, model string, opts ...anyllmlib.Option) (*Provider, error) {
	if providerName == "" {
		return nil, fmt.Errorf("nerllm: providerName must not be empty")
	}
	if model == "" {
		return nil, fmt.Errorf("nerllm: model must not be empty")
	}
	backend, err := createBackend(providerName, opts...)
	if err != nil {
		return nil, fmt.Errorf("nerllm: create %q backend: %w", providerName, err)
	}
	return &Provider{backend: backend, model: model}, nil
}

func createBackend(providerName string, opts ...anyllmlib.Option) (anyllmlib.Provider, error) {
	switch strings.ToLower(providerName) {
	case "openai":
		return anyllmoai.New(opts...)
	case "anthropic":
		return anthropic.New(opts...)
	case "gemini":
		return gemini.New(opts...)
	case "ollama":
		return ollama.New(opts...)
	case "mistral":
		return mistral.New(opts...)
	default:
		return nil, fmt.Errorf("unsupported provider %q; supported: openai, anthropic, gemini, ollama, mistral", providerName)
	}
}

// Name implements ner.Provider.
func (p *Provider) Name() string { return "llm" }

type mention struct {
	Surface string `json:"surface"`
	Type    string `json:"type"`
}

// Recognize implements ner.Provider. Temperature is pinned to zero: entity
// extraction wants the model's most literal reading, and repeat runs over
// the same transcript should propose the same candidates.
func (p *Provider) Recognize(ctx context.Context, text string) ([]ner.Candidate, error) {
	temperature := 0.0
	maxTokens := defaultMaxTokens
	params := anyllmlib.CompletionParams{
		Model: p.model,
		Messages: []anyllmlib.Message{
			{Role: anyllmlib.RoleSystem, Content: systemPrompt},
			{Role: anyllmlib.RoleUser, Content: text},
		},
		Temperature: &temperature,
		MaxTokens:   &maxTokens,
	}

	resp, err := p.backend.Completion(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("nerllm: completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("nerllm: empty choices in response")
	}

	mentions, err := parseMentions(resp.Choices[0].Message.ContentString())
	if err != nil {
		return nil, err
	}

	out := make([]ner.Candidate, 0, len(mentions))
	for _, m := range mentions {
		surface := strings.TrimSpace(m.Surface)
		if surface == "" {
			continue
		}
		t := ner.EntityType(strings.ToLower(m.Type))
		if !t.IsValid() {
			t = ner.Unknown
		}
		start, end := locate(text, surface)
		out = append(out, ner.Candidate{
			Surface: surface,
			Start:   start,
			End:     end,
			Type:    t,
		})
	}
	return out, nil
}

// parseMentions decodes the model output, tolerating the code fences some
// models emit despite instructions.
func parseMentions(content string) ([]mention, error) {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	content = strings.TrimSpace(content)

	var mentions []mention
	if err := json.Unmarshal([]byte(content), &mentions); err != nil {
		return nil, fmt.Errorf("nerllm: parse model output: %w", err)
	}
	return mentions, nil
}

// locate finds the first occurrence of surface in text, falling back to a
// case-insensitive search. Returns (-1, -1) when the surface never appears.
func locate(text, surface string) (int, int) {
	if i := strings.Index(text, surface); i >= 0 {
		return i, i + len(surface)
	}
	if i := strings.Index(strings.ToLower(text), strings.ToLower(surface)); i >= 0 {
		return i, i + len(surface)
	}
	return -1, -1
}
