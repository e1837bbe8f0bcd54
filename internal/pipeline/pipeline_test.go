package pipeline_test

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/testimony-project/testimony/internal/pipeline"
	"github.com/testimony-project/testimony/pkg/provider/ner"
	nermock "github.com/testimony-project/testimony/pkg/provider/ner/mock"
)

func newPipeline(t *testing.T, provider ner.Provider, opts ...pipeline.Option) *pipeline.Pipeline {
	t.Helper()
	p, err := pipeline.New(provider, opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return p
}

func TestCleanFuzzyVariantsShareOneCode(t *testing.T) {
	t.Parallel()

	provider := &nermock.Provider{Candidates: []ner.Candidate{
		{Surface: "Burshia", Type: ner.Person},
		{Surface: "Brache", Type: ner.Person},
	}}
	p := newPipeline(t, provider)

	text := "Person_9: Burshia led the effort.\nPerson_9: Later Brache confirmed it."
	result, err := p.Clean(context.Background(), "interview.txt", "run-1", text)
	if err != nil {
		t.Fatalf("Clean: %v", err)
	}

	labels := result.Table.Labels()
	if len(labels) != 1 || labels[0] != "Person_1" {
		t.Fatalf("labels = %v, want [Person_1]", labels)
	}
	if strings.Contains(result.Text, "Burshia") || strings.Contains(result.Text, "Brache") {
		t.Errorf("variant surfaces leaked:\n%s", result.Text)
	}
	if !strings.Contains(result.Text, "Person_1") {
		t.Errorf("code missing from output:\n%s", result.Text)
	}
}

func TestCleanDeterministicUnderCandidateOrder(t *testing.T) {
	t.Parallel()

	candidates := []ner.Candidate{
		{Surface: "Sarah Brache", Type: ner.Person},
		{Surface: "Ho-Chunk Nation", Type: ner.Tribe},
		{Surface: "Flagstaff", Type: ner.Location},
		{Surface: "Ricardo Ariza", Type: ner.Person},
	}
	reversed := make([]ner.Candidate, len(candidates))
	for i, c := range candidates {
		reversed[len(candidates)-1-i] = c
	}

	text := "Person_1: Sarah Brache met Ricardo Ariza in Flagstaff with the Ho-Chunk Nation."

	run := func(cs []ner.Candidate) *pipeline.Result {
		p := newPipeline(t, &nermock.Provider{Candidates: cs})
		result, err := p.Clean(context.Background(), "in.txt", "run", text)
		if err != nil {
			t.Fatalf("Clean: %v", err)
		}
		return result
	}

	a, b := run(candidates), run(reversed)
	if a.Text != b.Text {
		t.Errorf("output differs under candidate order:\n%s\n---\n%s", a.Text, b.Text)
	}
	al, bl := a.Table.Labels(), b.Table.Labels()
	if strings.Join(al, ",") != strings.Join(bl, ",") {
		t.Errorf("labels differ: %v vs %v", al, bl)
	}
	for _, label := range al {
		if a.Table.Codes[label].Canonical != b.Table.Codes[label].Canonical {
			t.Errorf("label %s maps to different canonicals", label)
		}
	}
}

func TestCleanEmptyCandidateSetStillNumbers(t *testing.T) {
	t.Parallel()

	p := newPipeline(t, &nermock.Provider{})
	result, err := p.Clean(context.Background(), "in.txt", "run", "Person_1: Nothing sensitive here.")
	if err != nil {
		t.Fatalf("Clean: %v", err)
	}

	if len(result.Table.Labels()) != 0 {
		t.Errorf("labels = %v, want none", result.Table.Labels())
	}
	if !strings.Contains(result.Text, "[A.1] Nothing sensitive here.") {
		t.Errorf("numbering missing:\n%s", result.Text)
	}
}

func TestCleanNoLeakage(t *testing.T) {
	t.Parallel()

	provider := &nermock.Provider{Candidates: []ner.Candidate{
		{Surface: "Sarah Brache", Type: ner.Person},
		{Surface: "Sarah", Type: ner.Person},
		{Surface: "Oneida Farms Cooperative", Type: ner.Organization},
	}}
	p := newPipeline(t, provider)

	text := "Person_1: Sarah Brache runs Oneida Farms Cooperative.\nPerson_2: Yes, Sarah does."
	result, err := p.Clean(context.Background(), "in.txt", "run", text)
	if err != nil {
		t.Fatalf("Clean: %v", err)
	}

	for _, label := range result.Table.Labels() {
		for _, member := range result.Table.Codes[label].Members {
			if strings.Contains(result.Text, member) {
				t.Errorf("member %q of %s appears in output", member, label)
			}
		}
	}
}

func TestCleanAppliesMisspellingPrePass(t *testing.T) {
	t.Parallel()

	// The corrector rewrites "Burshia" to "Brache" before recognition, so
	// the provider only ever sees the corrected spelling.
	provider := &nermock.Provider{Candidates: []ner.Candidate{
		{Surface: "Brache", Type: ner.Person},
	}}
	p := newPipeline(t, provider)

	result, err := p.Clean(context.Background(), "in.txt", "run", "Person_1: Burshia spoke.")
	if err != nil {
		t.Fatalf("Clean: %v", err)
	}

	if seen := provider.Calls[0].Text; strings.Contains(seen, "Burshia") {
		t.Errorf("provider saw uncorrected text: %q", seen)
	}
	if result.Summary.Corrections != 1 {
		t.Errorf("corrections = %d, want 1", result.Summary.Corrections)
	}
	if strings.Contains(result.Text, "Brache") {
		t.Errorf("corrected surface leaked:\n%s", result.Text)
	}
}

func TestCleanWebVTTInput(t *testing.T) {
	t.Parallel()

	vtt := strings.Join([]string{
		"WEBVTT",
		"",
		"1",
		"00:00:01.900 --> 00:00:12.490",
		"Person_1: Welcome to the interview.",
		"",
		"2",
		"00:00:13.000 --> 00:00:20.110",
		"Person_2: Glad to be here.",
	}, "\n")

	p := newPipeline(t, &nermock.Provider{})
	result, err := p.Clean(context.Background(), "in.vtt", "run", vtt)
	if err != nil {
		t.Fatalf("Clean: %v", err)
	}

	if strings.Contains(result.Text, "WEBVTT") || strings.Contains(result.Text, "-->") {
		t.Errorf("caption plumbing leaked:\n%s", result.Text)
	}
	for _, want := range []string{"[A.1] Welcome to the interview.", "00:00:01", "00:00:13"} {
		if !strings.Contains(result.Text, want) {
			t.Errorf("missing %q:\n%s", want, result.Text)
		}
	}
}

func TestCleanFileWritesArtifactSet(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	input := filepath.Join(dir, "session.txt")
	if err := os.WriteFile(input, []byte("Person_1: Sarah Brache was there."), 0o644); err != nil {
		t.Fatalf("write input: %v", err)
	}

	provider := &nermock.Provider{Candidates: []ner.Candidate{
		{Surface: "Sarah Brache", Type: ner.Person},
	}}
	p := newPipeline(t, provider)

	outDir := filepath.Join(dir, "out")
	result, arts, err := p.CleanFile(context.Background(), input, outDir, "run-7")
	if err != nil {
		t.Fatalf("CleanFile: %v", err)
	}

	for _, path := range []string{arts.DeidentifiedPath, arts.MappingPath, arts.TagsPath, arts.SummaryPath} {
		if _, err := os.Stat(path); err != nil {
			t.Errorf("artifact missing: %v", err)
		}
	}
	if got := filepath.Base(arts.DeidentifiedPath); got != "session_deidentified.txt" {
		t.Errorf("deidentified name = %q", got)
	}

	var summary pipeline.Summary
	data, err := os.ReadFile(arts.SummaryPath)
	if err != nil {
		t.Fatalf("read summary: %v", err)
	}
	if err := json.Unmarshal(data, &summary); err != nil {
		t.Fatalf("parse summary: %v", err)
	}
	if summary.RunID != "run-7" || summary.Classes != 1 {
		t.Errorf("summary = %+v", summary)
	}
	if summary.TotalTags != len(result.Tags) {
		t.Errorf("summary tags = %d, result tags = %d", summary.TotalTags, len(result.Tags))
	}
}

// Not parallel: swaps the global tracer provider.
func TestCleanEmitsTraceSpan(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	provider := &nermock.Provider{Candidates: []ner.Candidate{
		{Surface: "Sarah Brache", Type: ner.Person},
	}}
	p := newPipeline(t, provider)

	if _, err := p.Clean(context.Background(), "in.txt", "run", "Person_1: Sarah Brache spoke."); err != nil {
		t.Fatalf("Clean: %v", err)
	}

	for _, span := range recorder.Ended() {
		if span.Name() == "pipeline.Clean" {
			return
		}
	}
	t.Error("no pipeline.Clean span recorded")
}
