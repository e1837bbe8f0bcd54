package replace_test

import (
	"strings"
	"testing"

	"github.com/testimony-project/testimony/internal/canon"
	"github.com/testimony-project/testimony/internal/cluster"
	"github.com/testimony-project/testimony/internal/replace"
)

func buildTable(t *testing.T, classes []cluster.EquivalenceClass) *canon.Table {
	t.Helper()
	return canon.Assign(classes)
}

func personClass(canonical string, members ...string) cluster.EquivalenceClass {
	m := make(map[string]int, len(members))
	for _, s := range members {
		m[s]++
	}
	return cluster.EquivalenceClass{Type: cluster.TypePerson, Members: m, Canonical: canonical}
}

func TestRewriteSubstitutesAllMembers(t *testing.T) {
	t.Parallel()

	table := buildTable(t, []cluster.EquivalenceClass{
		personClass("Sarah Brache", "Sarah Brache", "Sarah", "Brache"),
	})
	eng, err := replace.New(table)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	in := "Sarah Brache spoke first. Later sarah answered, and BRACHE agreed."
	out, stats := eng.Rewrite(in)

	if strings.Contains(out, "Sarah") || strings.Contains(out, "Brache") {
		t.Errorf("member surfaces survived replacement: %q", out)
	}
	if want := 3; stats.Entities != want {
		t.Errorf("entity count = %d, want %d", stats.Entities, want)
	}
	if !strings.Contains(out, "Person_1") {
		t.Errorf("output missing code label: %q", out)
	}
}

func TestRewriteOverlappingSuffixMember(t *testing.T) {
	t.Parallel()

	// A class routinely holds both the full name and the bare surname; the
	// surname then also matches inside every full-name occurrence. Only the
	// outer match may be applied, and only applied substitutions counted.
	table := buildTable(t, []cluster.EquivalenceClass{
		personClass("Sarah Brache", "Sarah Brache", "Brache"),
	})
	eng, err := replace.New(table)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	out, stats := eng.Rewrite("Sarah Brache farmed the plot. Brache later sold it.")
	if want := "Person_1 farmed the plot. Person_1 later sold it."; out != want {
		t.Errorf("Rewrite = %q, want %q", out, want)
	}
	if stats.Entities != 2 {
		t.Errorf("entity count = %d, want 2", stats.Entities)
	}
}

func TestRewriteLeftmostLongestWins(t *testing.T) {
	t.Parallel()

	table := buildTable(t, []cluster.EquivalenceClass{
		personClass("Sarah Brache", "Sarah Brache", "Sarah"),
	})
	eng, err := replace.New(table)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	out, _ := eng.Rewrite("Sarah Brache arrived.")
	if want := "Person_1 arrived."; out != want {
		t.Errorf("Rewrite = %q, want %q", out, want)
	}
}

func TestRewriteRespectsWordBoundaries(t *testing.T) {
	t.Parallel()

	table := buildTable(t, []cluster.EquivalenceClass{
		personClass("Art", "Art"),
	})
	eng, err := replace.New(table)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	out, _ := eng.Rewrite("Art made artwork, a smart Art.")
	if want := "Person_1 made artwork, a smart Person_1."; out != want {
		t.Errorf("Rewrite = %q, want %q", out, want)
	}
}

func TestRewriteIdempotent(t *testing.T) {
	t.Parallel()

	table := buildTable(t, []cluster.EquivalenceClass{
		personClass("Sarah Brache", "Sarah Brache", "Sarah"),
		{
			Type:      cluster.TypeTribe,
			Members:   map[string]int{"Ho-Chunk Nation": 2},
			Canonical: "Ho-Chunk Nation",
		},
	})
	eng, err := replace.New(table, replace.WithAmbiguousWords([]string{"Will"}))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	in := "Sarah met Will at the Ho-Chunk Nation office in 1998 with a $5,000 grant."
	once, _ := eng.Rewrite(in)
	twice, stats := eng.Rewrite(once)

	if once != twice {
		t.Errorf("second pass changed output:\n once: %q\ntwice: %q", once, twice)
	}
	if stats.Entities != 0 || stats.Financial != 0 || stats.Years != 0 || stats.ReviewMark != 0 {
		t.Errorf("second pass reported work: %+v", stats)
	}
}

func TestRewriteNumericLiterals(t *testing.T) {
	t.Parallel()

	table := buildTable(t, nil)
	eng, err := replace.New(table)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "large dollar amount",
			in:   "We received $1,250,000 that cycle.",
			want: "We received [Financial_Amount] that cycle.",
		},
		{
			name: "scaled amount",
			in:   "about $1.5 million in funding",
			want: "about [Financial_Amount] in funding",
		},
		{
			name: "spelled out dollars",
			in:   "nearly 2 million dollars total",
			want: "nearly [Financial_Amount] total",
		},
		{
			name: "small amount kept",
			in:   "a $20 registration fee",
			want: "a $20 registration fee",
		},
		{
			name: "four digit year",
			in:   "Back in 1987 we started.",
			want: "Back in [Year] we started.",
		},
		{
			name: "code suffix untouched",
			in:   "Person_2019 said so.",
			want: "Person_2019 said so.",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, _ := eng.Rewrite(tt.in)
			if got != tt.want {
				t.Errorf("Rewrite(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestRewriteMarksAmbiguousWords(t *testing.T) {
	t.Parallel()

	table := buildTable(t, nil)
	eng, err := replace.New(table, replace.WithAmbiguousWords([]string{"Will", "May"}))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	out, stats := eng.Rewrite("Will said he will come in May, maybe.")
	want := "[REVIEW: Will] said he will come in [REVIEW: May], maybe."
	if out != want {
		t.Errorf("Rewrite = %q, want %q", out, want)
	}
	if stats.ReviewMark != 2 {
		t.Errorf("review marker count = %d, want 2", stats.ReviewMark)
	}
}

type alwaysCommon struct{}

func (alwaysCommon) IsProperNoun(string, int, string) bool { return false }

func TestContextPolicyUsesSignal(t *testing.T) {
	t.Parallel()

	table := buildTable(t, nil)
	eng, err := replace.New(table,
		replace.WithAmbiguousWords([]string{"Will"}),
		replace.WithPolicy(replace.PolicyContext),
		replace.WithProperNounSignal(alwaysCommon{}),
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	out, stats := eng.Rewrite("Will you join?")
	if out != "Will you join?" || stats.ReviewMark != 0 {
		t.Errorf("signal ignored: out=%q stats=%+v", out, stats)
	}
}

func TestNewRejectsUnknownPolicy(t *testing.T) {
	t.Parallel()

	if _, err := replace.New(buildTable(t, nil), replace.WithPolicy("guess")); err == nil {
		t.Error("New accepted unknown policy")
	}
}

func TestCorrectorRewritesMisspellings(t *testing.T) {
	t.Parallel()

	c := replace.NewCorrector(replace.DefaultCorrections())
	out, n := c.Apply("Ms. Burshia visited the ho-chump community center.")
	want := "Ms. Brache visited the Ho-Chunk community center."
	if out != want {
		t.Errorf("Apply = %q, want %q", out, want)
	}
	if n != 2 {
		t.Errorf("correction count = %d, want 2", n)
	}
}

func TestCorrectorOverlappingPatterns(t *testing.T) {
	t.Parallel()

	c := replace.NewCorrector(map[string]string{
		"sara brache": "Sarah Brache",
		"brache":      "Brache",
	})
	out, n := c.Apply("sara brache signed the lease.")
	if want := "Sarah Brache signed the lease."; out != want {
		t.Errorf("Apply = %q, want %q", out, want)
	}
	if n != 1 {
		t.Errorf("correction count = %d, want 1", n)
	}
}

func TestCorrectorEmpty(t *testing.T) {
	t.Parallel()

	c := replace.NewCorrector(nil)
	out, n := c.Apply("unchanged text")
	if out != "unchanged text" || n != 0 {
		t.Errorf("Apply = %q (%d), want passthrough", out, n)
	}
}
