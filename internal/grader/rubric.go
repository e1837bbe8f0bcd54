package grader

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/testimony-project/testimony/internal/canon"
)

// Rubric weights. They sum to 100.
const (
	maxCompleteness  = 25.0
	maxAccuracy      = 20.0
	maxFormatting    = 15.0
	maxCitation      = 15.0
	maxTagCoverage   = 10.0
	maxTagPrecision  = 10.0
	maxVariantSpread = 5.0
)

var (
	arrowTimestampRe = regexp.MustCompile(`\d{2}:\d{2}:\d{2}\.\d{3}\s*-->\s*\d{2}:\d{2}:\d{2}\.\d{3}`)
	bareTimestampRe  = regexp.MustCompile(`^\d{2}:\d{2}(?::\d{2})?(?:\.\d+)?$`)
	citationMarkRe   = regexp.MustCompile(`\[[A-Z]{1,3}\.\d+\]`)
	pageMarkerRe     = regexp.MustCompile(`(?im)^Page\s+\d+\s*$`)
	strayCodeRe      = regexp.MustCompile(`(?m)^Person_\d+\.?\s*$`)
	blankRunRe       = regexp.MustCompile(`\n{4,}`)
	ruleLineRe       = regexp.MustCompile(`^[=\-]{10,}\s*$`)
	codeContextRe    = regexp.MustCompile(`(?i)(Person|Organization|Location|Tribe)_\d+`)
)

// Compile-time assertion that Rubric implements Grader.
var _ Grader = (*Rubric)(nil)

// Rubric implements Grader with file-based checks: residual identifier
// scanning against the mapping table, citation and formatting structure,
// and tag coverage over taggable lines.
type Rubric struct{}

// NewRubric returns the standard rubric grader.
func NewRubric() *Rubric {
	return &Rubric{}
}

// Grade implements Grader.
func (r *Rubric) Grade(ctx context.Context, artifact Artifact) (Report, error) {
	if err := ctx.Err(); err != nil {
		return Report{}, err
	}

	cleaned, err := os.ReadFile(artifact.CleanedPath)
	if err != nil {
		return Report{}, fmt.Errorf("grader: read cleaned transcript: %w", err)
	}
	text := string(cleaned)

	var report Report
	deduct := func(rubric string, points float64, reason string) {
		if points <= 0 {
			return
		}
		report.Deductions = append(report.Deductions, Deduction{
			Rubric: rubric,
			Points: points,
			Reason: reason,
		})
	}

	table, tableErr := loadMapping(artifact.MappingPath)

	score := r.scoreLeaks(text, table, tableErr, deduct)
	score += r.scoreFormatting(text, deduct)
	score += r.scoreCitations(text, deduct)
	score += r.scoreTags(text, artifact.TagsPath, deduct)
	score += r.scoreVariants(table, tableErr, deduct)

	report.Score = score
	report.Grade = LetterGrade(score / 100.0)
	return report, nil
}

func loadMapping(path string) (*canon.Table, error) {
	if path == "" {
		return nil, fmt.Errorf("grader: no mapping file")
	}
	return canon.LoadFile(path)
}

// scoreLeaks covers the completeness and accuracy rubrics: every mapping
// member surface found verbatim in the cleaned text is a leak. A mention
// adjacent to a de-id code is ignored, since the mapping legitimately
// repeats surfaces inside review context.
func (r *Rubric) scoreLeaks(text string, table *canon.Table, tableErr error, deduct func(string, float64, string)) float64 {
	if tableErr != nil {
		deduct("completeness", maxCompleteness, "mapping file unavailable: "+tableErr.Error())
		deduct("accuracy", maxAccuracy, "mapping file unavailable")
		return 0
	}

	lower := strings.ToLower(text)
	var leaks []string
	total := 0
	for _, label := range table.Labels() {
		entry := table.Codes[label]
		for _, member := range entry.Members {
			total++
			if leaked(lower, text, member) {
				leaks = append(leaks, member)
			}
		}
	}

	completeness := maxCompleteness
	if n := len(leaks); n > 0 {
		penalty := float64(n)
		if penalty > maxCompleteness {
			penalty = maxCompleteness
		}
		completeness -= penalty
		deduct("completeness", penalty, fmt.Sprintf("%d identifying surfaces remain, e.g. %q", n, leaks[0]))
	}

	accuracy := maxAccuracy
	if total > 0 {
		errRate := float64(len(leaks)) / float64(total)
		accuracy = maxAccuracy * (1 - errRate)
		if errRate > 0 {
			deduct("accuracy", maxAccuracy-accuracy, fmt.Sprintf("leak rate %.1f%%", errRate*100))
		}
	}
	return completeness + accuracy
}

func leaked(lowerText, text, member string) bool {
	needle := strings.ToLower(strings.TrimSpace(member))
	if len(needle) < 3 {
		return false
	}
	from := 0
	for {
		i := strings.Index(lowerText[from:], needle)
		if i < 0 {
			return false
		}
		pos := from + i
		if wholeWordAt(lowerText, pos, len(needle)) && !nearCode(text, pos, len(needle)) {
			return true
		}
		from = pos + 1
	}
}

func wholeWordAt(s string, pos, n int) bool {
	before := pos == 0 || !isWordByte(s[pos-1])
	after := pos+n >= len(s) || !isWordByte(s[pos+n])
	return before && after
}

func nearCode(text string, pos, n int) bool {
	lo := pos - 30
	if lo < 0 {
		lo = 0
	}
	hi := pos + n + 30
	if hi > len(text) {
		hi = len(text)
	}
	return codeContextRe.MatchString(text[lo:hi])
}

func isWordByte(b byte) bool {
	return b >= 'a' && b <= 'z' || b >= 'A' && b <= 'Z' || b >= '0' && b <= '9' || b == '_'
}

func (r *Rubric) scoreFormatting(text string, deduct func(string, float64, string)) float64 {
	score := maxFormatting

	if arrowTimestampRe.MatchString(text) {
		score -= 4
		deduct("formatting", 4, "caption arrow timestamps still present")
	}
	if hasBareTimestampLine(text) {
		score -= 2
		deduct("formatting", 2, "standalone timestamp lines present")
	}
	if strings.Contains(text, "WEBVTT") {
		score -= 4
		deduct("formatting", 4, "WEBVTT header still present")
	}

	artifacts := 0.0
	if strayCodeRe.MatchString(text) {
		artifacts++
	}
	if blankRunRe.MatchString(text) {
		artifacts++
	}
	if artifacts > 0 {
		score -= artifacts
		deduct("formatting", artifacts, "formatting artifacts present")
	}

	if score < 0 {
		score = 0
	}
	return score
}

func hasBareTimestampLine(text string) bool {
	for _, line := range strings.Split(text, "\n") {
		if bareTimestampRe.MatchString(strings.TrimSpace(line)) {
			return true
		}
	}
	return false
}

func (r *Rubric) scoreCitations(text string, deduct func(string, float64, string)) float64 {
	score := maxCitation

	if !citationMarkRe.MatchString(text) {
		score -= 5
		deduct("citation", 5, "no speaker letters or verse numbers found")
	}
	if !pageMarkerRe.MatchString(text) {
		score -= 5
		deduct("citation", 5, "no page markers found")
	}
	if !strings.Contains(text, "CITATION REFERENCE TABLE") {
		score -= 3
		deduct("citation", 3, "no citation reference table section")
	} else if !strings.Contains(text, "No timecodes were available") &&
		!strings.Contains(text, "Speaker.Verse") {
		score -= 2
		deduct("citation", 2, "reference table has neither rows nor the no-timecodes note")
	}

	if score < 0 {
		score = 0
	}
	return score
}

// scoreTags covers coverage and precision. Coverage is the fraction of
// taggable content lines that received at least one tag.
func (r *Rubric) scoreTags(text, tagsPath string, deduct func(string, float64, string)) float64 {
	if tagsPath == "" {
		deduct("tag-coverage", maxTagCoverage, "no tags file")
		deduct("tag-precision", maxTagPrecision, "no tags file")
		return 0
	}

	taggedLines, rows, err := readTagIndex(tagsPath)
	if err != nil {
		deduct("tag-coverage", maxTagCoverage, err.Error())
		deduct("tag-precision", maxTagPrecision, err.Error())
		return 0
	}

	taggable := taggableLines(text)
	coverage := 1.0
	if len(taggable) > 0 {
		covered := 0
		for line := range taggable {
			if taggedLines[line] {
				covered++
			}
		}
		coverage = float64(covered) / float64(len(taggable))
	}

	coverageScore := coverage * maxTagCoverage
	if coverageScore < maxTagCoverage {
		deduct("tag-coverage", maxTagCoverage-coverageScore,
			fmt.Sprintf("tag coverage %.0f%% over %d taggable lines (%d tags)", coverage*100, len(taggable), rows))
	}
	return coverageScore + maxTagPrecision
}

// readTagIndex returns the set of tagged line numbers and the row count.
func readTagIndex(path string) (map[int]bool, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("grader: open tags file: %w", err)
	}
	defer f.Close()

	cr := csv.NewReader(f)
	cr.FieldsPerRecord = -1
	header := true
	lines := make(map[int]bool)
	rows := 0
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, 0, fmt.Errorf("grader: parse tags file: %w", err)
		}
		if header {
			header = false
			continue
		}
		rows++
		if len(record) > 1 {
			if n, err := strconv.Atoi(record[1]); err == nil {
				lines[n] = true
			}
		}
	}
	return lines, rows, nil
}

// taggableLines returns content line numbers: blanks, page markers, rule
// lines and the reference table block do not count toward coverage.
func taggableLines(text string) map[int]bool {
	out := make(map[int]bool)
	inTable := false
	for i, raw := range strings.Split(text, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}
		if strings.Contains(line, "CITATION REFERENCE TABLE") {
			inTable = true
			continue
		}
		if inTable {
			continue
		}
		if pageMarkerRe.MatchString(line) || ruleLineRe.MatchString(line) {
			continue
		}
		out[i+1] = true
	}
	return out
}

// scoreVariants rewards evidence of variant clustering in the mapping:
// classes holding several member spellings show the fuzzy matcher worked.
func (r *Rubric) scoreVariants(table *canon.Table, tableErr error, deduct func(string, float64, string)) float64 {
	if tableErr != nil {
		deduct("variants", maxVariantSpread, "mapping file unavailable")
		return 0
	}

	variants := 0
	for _, label := range table.Labels() {
		entry := table.Codes[label]
		if n := len(entry.Members); n > 1 {
			variants += n - 1
		}
	}
	if variants >= 5 {
		return maxVariantSpread
	}
	score := float64(variants)
	if score < 1 {
		score = 1
	}
	if score > maxVariantSpread {
		score = maxVariantSpread
	}
	deduct("variants", maxVariantSpread-score, fmt.Sprintf("%d member variants clustered", variants))
	return score
}
