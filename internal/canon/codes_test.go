package canon_test

import (
	"path/filepath"
	"slices"
	"testing"

	"github.com/testimony-project/testimony/internal/canon"
	"github.com/testimony-project/testimony/internal/cluster"
)

func class(typ cluster.EntityType, canonical string, members ...string) cluster.EquivalenceClass {
	m := make(map[string]int, len(members))
	for _, s := range members {
		m[s]++
	}
	return cluster.EquivalenceClass{Type: typ, Canonical: canonical, Members: m}
}

func TestAssignNumbersWithinTypeBySortedCanonical(t *testing.T) {
	t.Parallel()

	table := canon.Assign([]cluster.EquivalenceClass{
		class(cluster.TypePerson, "Sattler", "Sattler"),
		class(cluster.TypeLocation, "Madison", "Madison"),
		class(cluster.TypePerson, "Burshia", "Burshia", "Bursha"),
	})

	want := []string{"Person_1", "Person_2", "Location_1"}
	if got := table.Labels(); !slices.Equal(got, want) {
		t.Fatalf("labels = %v, want %v", got, want)
	}
	if table.Codes["Person_1"].Canonical != "Burshia" {
		t.Errorf("Person_1 = %q, want Burshia (sorts before Sattler)", table.Codes["Person_1"].Canonical)
	}
}

func TestAssignIsOrderIndependent(t *testing.T) {
	t.Parallel()

	classes := []cluster.EquivalenceClass{
		class(cluster.TypePerson, "Sattler", "Sattler"),
		class(cluster.TypeTribe, "Ho-Chunk", "Ho-Chunk", "Hochunk"),
		class(cluster.TypePerson, "Burshia", "Burshia"),
	}
	reversed := make([]cluster.EquivalenceClass, len(classes))
	for i, c := range classes {
		reversed[len(classes)-1-i] = c
	}

	a, b := canon.Assign(classes), canon.Assign(reversed)
	if !slices.Equal(a.Labels(), b.Labels()) {
		t.Fatalf("labels differ: %v vs %v", a.Labels(), b.Labels())
	}
	for _, label := range a.Labels() {
		if a.Codes[label].Canonical != b.Codes[label].Canonical {
			t.Errorf("%s: %q vs %q", label, a.Codes[label].Canonical, b.Codes[label].Canonical)
		}
	}
}

func TestAssignSkipsUnknownClasses(t *testing.T) {
	t.Parallel()

	table := canon.Assign([]cluster.EquivalenceClass{
		class(cluster.TypeUnknown, "Mystery", "Mystery"),
		class(cluster.TypePerson, "Burshia", "Burshia"),
	})
	if got := table.Labels(); !slices.Equal(got, []string{"Person_1"}) {
		t.Fatalf("labels = %v, want only Person_1", got)
	}
}

func TestAssignFlagsCanonicalCollisions(t *testing.T) {
	t.Parallel()

	// Two distinct people both ended up canonicalized as "Chris".
	table := canon.Assign([]cluster.EquivalenceClass{
		class(cluster.TypePerson, "Chris", "Chris", "Christopher"),
		class(cluster.TypePerson, "chris", "chris", "Kris"),
	})

	if got := table.Labels(); !slices.Equal(got, []string{"Person_1"}) {
		t.Fatalf("labels = %v, want single merged entry", got)
	}
	entry := table.Codes["Person_1"]
	if !entry.Ambiguous {
		t.Error("merged entry not flagged ambiguous")
	}
	want := []string{"Chris", "chris", "Christopher", "Kris"}
	if !slices.Equal(entry.Members, want) {
		t.Errorf("members = %v, want %v", entry.Members, want)
	}
}

func TestSurfaceMapCoversEveryMember(t *testing.T) {
	t.Parallel()

	table := canon.Assign([]cluster.EquivalenceClass{
		class(cluster.TypePerson, "Burshia", "Burshia", "Bursha"),
		class(cluster.TypeTribe, "Ho-Chunk", "Ho-Chunk"),
	})

	m := table.SurfaceMap()
	want := map[string]string{
		"Burshia":  "Person_1",
		"Bursha":   "Person_1",
		"Ho-Chunk": "Tribe_1",
	}
	if len(m) != len(want) {
		t.Fatalf("surface map = %v, want %v", m, want)
	}
	for surface, label := range want {
		if m[surface] != label {
			t.Errorf("m[%q] = %q, want %q", surface, m[surface], label)
		}
	}
}

func TestIsCodeLabel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want bool
	}{
		{"Person_3", true},
		{"Organization_12", true},
		{"Tribe_1", true},
		{"Person_", false},
		{"_3", false},
		{"Widget_3", false},
		{"Person_3a", false},
		{"Person 3", false},
	}
	for _, tc := range tests {
		if got := canon.IsCodeLabel(tc.in); got != tc.want {
			t.Errorf("IsCodeLabel(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestWriteAndLoadFileRoundTrip(t *testing.T) {
	t.Parallel()

	table := canon.Assign([]cluster.EquivalenceClass{
		class(cluster.TypePerson, "Sattler", "Sattler"),
		class(cluster.TypePerson, "Burshia", "Burshia", "Bursha"),
		class(cluster.TypeLocation, "Madison", "Madison"),
	})

	path := filepath.Join(t.TempDir(), "mapping.json")
	if err := table.WriteFile(path, "run-7"); err != nil {
		t.Fatal(err)
	}

	loaded, err := canon.LoadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(loaded.Labels(), table.Labels()) {
		t.Errorf("labels = %v, want %v", loaded.Labels(), table.Labels())
	}
	for _, label := range table.Labels() {
		if loaded.Codes[label].Canonical != table.Codes[label].Canonical {
			t.Errorf("%s canonical = %q, want %q",
				label, loaded.Codes[label].Canonical, table.Codes[label].Canonical)
		}
	}
}
