// Package tags scans rewritten, numbered transcript text for research-
// relevant content and emits one tag per (category, line) match.
//
// Categories are independent facets, not exclusive classifications: a line
// about a pandemic-era grant legitimately tags Finance, COVID, and
// Q9_COVID at once. Broad common words (job, problem, issue, help, year)
// only tag when their surrounding context supports the research meaning,
// and a small negative-pattern list suppresses idioms like "no problem".
package tags

import (
	"encoding/csv"
	"fmt"
	"io"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// contextRadius is the number of characters captured on each side of a
// match for the tag's context window.
const contextRadius = 50

// negativeRadius bounds the window inspected for negative patterns.
const negativeRadius = 30

// Tag is one (category, line) match.
type Tag struct {
	Category string // e.g. CATEGORY_Finance, QUESTION_Q3_WebsiteSocial, METRIC_Members
	Line     int    // 1-based line number in the scanned text
	Matched  string
	Context  string
}

// contextAware lists broad keywords that skip plain keyword matching in
// both taxonomies and are handled by context rules only.
var contextAware = map[string]struct{}{
	"job": {}, "problem": {}, "issue": {}, "help": {}, "year": {},
}

type keywordPattern struct {
	category string
	re       *regexp.Regexp
}

type contextRule struct {
	category string
	re       *regexp.Regexp
}

type metricRule struct {
	category string
	re       *regexp.Regexp
	minValue float64 // 0 means no significance floor
}

// Option is a functional option for configuring an [Extractor].
type Option func(*options)

type options struct {
	categories map[string][]string
	questions  map[string][]string
	indigenous []string
}

// WithResearchCategories replaces the research-theme taxonomy.
func WithResearchCategories(m map[string][]string) Option {
	return func(o *options) { o.categories = m }
}

// WithSurveyQuestions replaces the survey-question taxonomy.
func WithSurveyQuestions(m map[string][]string) Option {
	return func(o *options) { o.questions = m }
}

// WithIndigenousTerms replaces the standalone term list.
func WithIndigenousTerms(terms []string) Option {
	return func(o *options) { o.indigenous = terms }
}

// Extractor holds the compiled patterns for one tagging configuration.
// Construct once with [New]; safe for concurrent use afterwards.
type Extractor struct {
	keywords  []keywordPattern // taxonomy keywords, deterministic order
	contexts  []contextRule
	negatives map[string][]*regexp.Regexp
	metrics   []metricRule
}

// New compiles an Extractor. Keyword patterns are word-boundary anchored
// and case-insensitive; multi-word phrases match across runs of whitespace.
func New(opts ...Option) (*Extractor, error) {
	o := options{
		categories: DefaultResearchCategories(),
		questions:  DefaultSurveyQuestions(),
		indigenous: DefaultIndigenousTerms(),
	}
	for _, fn := range opts {
		fn(&o)
	}

	e := &Extractor{
		negatives: negativePatterns(),
		contexts:  contextRules(),
		metrics:   metricRules(),
	}
	if err := e.compileTaxonomy("CATEGORY_", o.categories); err != nil {
		return nil, err
	}
	if err := e.compileTaxonomy("QUESTION_", o.questions); err != nil {
		return nil, err
	}
	for _, term := range o.indigenous {
		re, err := compileKeyword(term)
		if err != nil {
			return nil, fmt.Errorf("tags: compile term %q: %w", term, err)
		}
		e.keywords = append(e.keywords, keywordPattern{category: "INDIGENOUS_TERM", re: re})
	}
	return e, nil
}

// compileTaxonomy appends keyword patterns for every category, iterating
// category names in sorted order so tag output never depends on map order.
func (e *Extractor) compileTaxonomy(prefix string, taxonomy map[string][]string) error {
	names := make([]string, 0, len(taxonomy))
	for name := range taxonomy {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		for _, keyword := range taxonomy[name] {
			if _, broad := contextAware[strings.ToLower(keyword)]; broad {
				continue
			}
			re, err := compileKeyword(keyword)
			if err != nil {
				return fmt.Errorf("tags: compile keyword %q: %w", keyword, err)
			}
			e.keywords = append(e.keywords, keywordPattern{category: prefix + name, re: re})
		}
	}
	return nil
}

func compileKeyword(keyword string) (*regexp.Regexp, error) {
	parts := strings.Fields(keyword)
	escaped := make([]string, len(parts))
	for i, p := range parts {
		escaped[i] = regexp.QuoteMeta(p)
	}
	return regexp.Compile(`(?i)\b` + strings.Join(escaped, `\s+`) + `\b`)
}

// Extract scans text line by line and returns every tag, ordered by the
// compiled pattern order and then by line.
func (e *Extractor) Extract(text string) []Tag {
	lines := strings.Split(text, "\n")
	var out []Tag

	for _, kp := range e.keywords {
		for i, line := range lines {
			for _, loc := range kp.re.FindAllStringIndex(line, -1) {
				matched := line[loc[0]:loc[1]]
				if e.inNegativeContext(line, loc[0], loc[1], matched) {
					continue
				}
				out = append(out, Tag{
					Category: kp.category,
					Line:     i + 1,
					Matched:  matched,
					Context:  window(line, loc[0], loc[1], contextRadius),
				})
			}
		}
	}

	for _, cr := range e.contexts {
		for i, line := range lines {
			for _, loc := range cr.re.FindAllStringIndex(line, -1) {
				out = append(out, Tag{
					Category: cr.category,
					Line:     i + 1,
					Matched:  line[loc[0]:loc[1]],
					Context:  window(line, loc[0], loc[1], contextRadius),
				})
			}
		}
	}

	out = append(out, e.extractMetrics(lines)...)
	return out
}

// extractMetrics runs the numeric-metric pass: counts of members,
// employees, partners and grants, plus dollar amounts over the
// significance floor.
func (e *Extractor) extractMetrics(lines []string) []Tag {
	var out []Tag
	for _, mr := range e.metrics {
		for i, line := range lines {
			for _, loc := range mr.re.FindAllStringSubmatchIndex(line, -1) {
				if mr.minValue > 0 && !metricAboveFloor(line, loc, mr.minValue) {
					continue
				}
				out = append(out, Tag{
					Category: mr.category,
					Line:     i + 1,
					Matched:  line[loc[0]:loc[1]],
					Context:  window(line, loc[0], loc[1], contextRadius),
				})
			}
		}
	}
	return out
}

func metricAboveFloor(line string, loc []int, floor float64) bool {
	if len(loc) < 4 || loc[2] < 0 {
		return false
	}
	raw := strings.ReplaceAll(line[loc[2]:loc[3]], ",", "")
	v, err := strconv.ParseFloat(raw, 64)
	return err == nil && v >= floor
}

// inNegativeContext reports whether a keyword occurrence sits inside an
// idiom that voids its research meaning ("no problem", "good job").
func (e *Extractor) inNegativeContext(line string, start, end int, matched string) bool {
	patterns, ok := e.negatives[strings.ToLower(matched)]
	if !ok {
		return false
	}
	win := window(line, start, end, negativeRadius)
	for _, re := range patterns {
		if re.MatchString(win) {
			return true
		}
	}
	return false
}

func window(line string, start, end, radius int) string {
	lo := start - radius
	if lo < 0 {
		lo = 0
	}
	hi := end + radius
	if hi > len(line) {
		hi = len(line)
	}
	return line[lo:hi]
}

// CountByCategory aggregates tag counts for the run summary.
func CountByCategory(ts []Tag) map[string]int {
	counts := make(map[string]int)
	for _, t := range ts {
		counts[t.Category]++
	}
	return counts
}

// WriteCSV writes tags in the archival index format, sorted by category
// then line.
func WriteCSV(w io.Writer, ts []Tag) error {
	sorted := make([]Tag, len(ts))
	copy(sorted, ts)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Category != sorted[j].Category {
			return sorted[i].Category < sorted[j].Category
		}
		return sorted[i].Line < sorted[j].Line
	})

	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"Tag_Category", "Line_Number", "Matched_Text", "Context"}); err != nil {
		return fmt.Errorf("tags: write csv header: %w", err)
	}
	for _, t := range sorted {
		row := []string{t.Category, strconv.Itoa(t.Line), t.Matched, t.Context}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("tags: write csv row: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("tags: flush csv: %w", err)
	}
	return nil
}

func negativePatterns() map[string][]*regexp.Regexp {
	compile := func(pats ...string) []*regexp.Regexp {
		out := make([]*regexp.Regexp, len(pats))
		for i, p := range pats {
			out[i] = regexp.MustCompile(`(?i)` + p)
		}
		return out
	}
	return map[string][]*regexp.Regexp{
		"job":      compile(`no\s+job`, `huge\s+job`, `big\s+job`, `hard\s+job`, `good\s+job`),
		"jobs":     compile(`no\s+jobs`),
		"problem":  compile(`no\s+problem`, `not\s+a\s+problem`),
		"problems": compile(`no\s+problem`),
		"issue":    compile(`no\s+issue`, `not\s+an\s+issue`),
		"issues":   compile(`no\s+issue`),
		"help":     compile(`can't\s+help`, `couldn't\s+help`),
		"year":     compile(`this\s+year`, `next\s+year`, `last\s+year`, `every\s+year`),
		"years":    compile(`recent\s+years`),
	}
}

func contextRules() []contextRule {
	rule := func(category, pattern string) contextRule {
		return contextRule{category: category, re: regexp.MustCompile(`(?i)` + pattern)}
	}
	return []contextRule{
		rule("CATEGORY_Employment", `\b(my|their|our|his|her|the)\s+job\s+(is|was|to|of)`),
		rule("CATEGORY_Employment", `\bjob\s+(title|description|duties|responsibilities|role)`),
		rule("CATEGORY_Employment", `\b(employee|staff|worker)\s+job`),
		rule("CATEGORY_Risk", `\b(solve|address|fix|resolve|deal\s+with|face|have|encounter)\s+(a|the|this|that)\s+problem`),
		rule("CATEGORY_Risk", `\bproblem\s+(with|in|of|facing|encountered)`),
		rule("CATEGORY_Risk", `\b(face|address|deal\s+with|have|encounter|identify)\s+(a|an|the|this|that)\s+issue`),
		rule("CATEGORY_Risk", `\bissue\s+(with|in|of|facing|encountered|regarding)`),
		rule("QUESTION_Q4_OutsideAssistance", `\b(need|get|receive|provide|offer|give|seek)\s+help\s+(with|from|to|for)`),
		rule("CATEGORY_Timeline", `\b(founded|established|started|began|created|incorporated)\s+(in\s+)?\d{4}\b`),
		rule("CATEGORY_Timeline", `\b(since|from)\s+\d{4}\b`),
		rule("CATEGORY_Timeline", `\b\d{4}\s+(was|is|marked|saw)\b`),
	}
}

func metricRules() []metricRule {
	rule := func(category, pattern string, floor float64) metricRule {
		return metricRule{category: category, re: regexp.MustCompile(`(?i)` + pattern), minValue: floor}
	}
	return []metricRule{
		rule("METRIC_Members", `\b(\d+)\s+members?\b`, 0),
		rule("METRIC_Employees", `\b(\d+)\s+employees?\b`, 0),
		rule("METRIC_Partners", `\b(\d+)\s+partners?\b`, 0),
		rule("METRIC_Grants", `\b(\d+)\s+grants?\b`, 0),
		rule("METRIC_DollarAmount", `\$(\d+(?:,\d+)*(?:\.\d+)?)`, 1000),
	}
}
