// Package citation numbers de-identified transcripts for precise reference.
//
// Every speaker turn receives a stable address of the form [Letter.Verse]:
// the letter identifies the speaker, the verse counts that speaker's turns
// from 1. Letters are assigned from the sorted numeric suffixes of the
// speaker codes, never from order of first utterance, so a person who both
// speaks and is referenced by name carries matching identifiers (speaker B
// is always Person_2). Page markers and a trailing timestamp table make the
// output quotable without exposing who said what.
package citation

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// DefaultLinesPerPage is how many emitted lines share one page marker.
const DefaultLinesPerPage = 50

// noTimecodesNote replaces the timestamp table when the source transcript
// carried no recoverable timecodes. Its presence is a complete, valid
// output, not a degraded one.
const noTimecodesNote = "No timecodes were available in the source transcript; timestamps are unavailable for this file."

var (
	speakerLineRe   = regexp.MustCompile(`^(Person_\d+):\s*(.*)$`)
	bareSpeakerRe   = regexp.MustCompile(`^Person_\d+\s*[.,;:!?]*\s*$`)
	personSuffixRe  = regexp.MustCompile(`^Person_(\d+)$`)
	segmentNumberRe = regexp.MustCompile(`^\d+$`)
)

// Turn is one numbered utterance.
type Turn struct {
	Speaker   string // speaker code, e.g. Person_2
	Letter    string // citation letter, e.g. B
	Verse     int    // 1-based per speaker
	Text      string
	Timestamp string // empty when the source had no timecode for this turn
}

// Address returns the turn's citation address, e.g. "B.3".
func (t Turn) Address() string {
	return t.Letter + "." + strconv.Itoa(t.Verse)
}

// Document is a numbered transcript ready for rendering.
type Document struct {
	Turns   []Turn
	Letters map[string]string // speaker code -> letter

	body         []string
	linesPerPage int
}

// Option is a functional option for configuring a [Numberer].
type Option func(*Numberer)

// WithLinesPerPage overrides the page size. Values below 1 keep the default.
func WithLinesPerPage(n int) Option {
	return func(nb *Numberer) {
		if n >= 1 {
			nb.linesPerPage = n
		}
	}
}

// Numberer assigns citation addresses to speaker-coded transcript text.
type Numberer struct {
	linesPerPage int
}

// New returns a Numberer with default pagination.
func New(opts ...Option) *Numberer {
	n := &Numberer{linesPerPage: DefaultLinesPerPage}
	for _, o := range opts {
		o(n)
	}
	return n
}

// Number partitions text into speaker turns and assigns addresses.
// Timestamps from segments are matched to dialogue turns by position, since
// the text has already been rewritten and can no longer be matched by
// content. A transcript with no speaker-coded lines at all falls back to
// prose numbering: every non-empty line becomes a verse of speaker A.
func (n *Numberer) Number(text string, segments []Segment) *Document {
	lines := strings.Split(text, "\n")
	letters := assignLetters(lines)

	doc := &Document{
		Letters:      letters,
		linesPerPage: n.linesPerPage,
	}
	if len(letters) == 0 {
		n.numberProse(doc, lines)
		return doc
	}

	verses := make(map[string]int, len(letters))
	segmentIdx := 0
	page := 1
	emitted := 0

	emit := func(line string) {
		if emitted > 0 && emitted%n.linesPerPage == 0 {
			page++
			doc.body = append(doc.body, "", fmt.Sprintf("Page %d", page), "")
		}
		doc.body = append(doc.body, line)
		emitted++
	}

	doc.body = append(doc.body, "Page 1", "")
	for _, raw := range lines {
		line := strings.TrimSpace(raw)
		if line == "" || bareSpeakerRe.MatchString(line) {
			continue
		}

		m := speakerLineRe.FindStringSubmatch(line)
		if m == nil {
			// Non-dialogue line: keep it, unless it is a stray cue number.
			if !segmentNumberRe.MatchString(line) {
				emit(line)
			}
			continue
		}

		speaker, body := m[1], m[2]
		verses[speaker]++
		turn := Turn{
			Speaker: speaker,
			Letter:  letters[speaker],
			Verse:   verses[speaker],
			Text:    body,
		}
		if segmentIdx < len(segments) {
			turn.Timestamp = segments[segmentIdx].Timestamp
			segmentIdx++
		}
		doc.Turns = append(doc.Turns, turn)
		emit("[" + turn.Address() + "] " + body)
	}
	return doc
}

// numberProse numbers a transcript that has no speaker-coded dialogue:
// every content line becomes a verse of the default speaker A. Timestamps
// are not attributed in this mode.
func (n *Numberer) numberProse(doc *Document, lines []string) {
	doc.Letters = map[string]string{}
	doc.body = append(doc.body, "Page 1", "")
	page := 1
	emitted := 0
	verse := 0

	for _, raw := range lines {
		line := strings.TrimSpace(raw)
		if line == "" || segmentNumberRe.MatchString(line) {
			continue
		}
		verse++
		if emitted > 0 && emitted%n.linesPerPage == 0 {
			page++
			doc.body = append(doc.body, "", fmt.Sprintf("Page %d", page), "")
		}
		turn := Turn{Speaker: "A", Letter: "A", Verse: verse, Text: line}
		doc.Turns = append(doc.Turns, turn)
		doc.body = append(doc.body, "["+turn.Address()+"] "+line)
		emitted++
	}
}

// Render produces the final numbered text: paginated body followed by the
// citation reference table, or the no-timecodes note when no turn carries a
// timestamp.
func (d *Document) Render() string {
	var b strings.Builder
	b.WriteString(strings.Join(d.body, "\n"))

	rule := strings.Repeat("=", 80)
	b.WriteString("\n\n")
	b.WriteString(rule)
	b.WriteString("\nCITATION REFERENCE TABLE\n")
	b.WriteString(rule)
	b.WriteString("\n\n")

	rows := d.timestampRows()
	if len(rows) == 0 {
		b.WriteString(noTimecodesNote)
		b.WriteString("\n")
		return b.String()
	}

	fmt.Fprintf(&b, "%-15s %-12s\n", "Speaker.Verse", "Timestamp")
	b.WriteString(strings.Repeat("-", 80))
	b.WriteString("\n")
	for _, t := range rows {
		fmt.Fprintf(&b, "%-15s %-12s\n", t.Address(), t.Timestamp)
	}
	return b.String()
}

// timestampRows returns the turns that carry a timestamp, ordered by letter
// then verse.
func (d *Document) timestampRows() []Turn {
	rows := make([]Turn, 0, len(d.Turns))
	for _, t := range d.Turns {
		if t.Timestamp != "" {
			rows = append(rows, t)
		}
	}
	sort.Slice(rows, func(i, j int) bool {
		li, lj := letterIndex(rows[i].Letter), letterIndex(rows[j].Letter)
		if li != lj {
			return li < lj
		}
		return rows[i].Verse < rows[j].Verse
	})
	return rows
}

// letterIndex is the inverse of [Letter]: A -> 0, Z -> 25, AA -> 26. Keeps
// two-letter speakers after Z instead of lexicographically before B.
func letterIndex(s string) int {
	n := 0
	for i := 0; i < len(s); i++ {
		n = n*26 + int(s[i]-'A'+1)
	}
	return n - 1
}

// Letter converts a zero-based speaker index to its Excel-style label:
// 0 -> A, 25 -> Z, 26 -> AA.
func Letter(i int) string {
	var out []byte
	for {
		r := i % 26
		out = append(out, byte('A'+r))
		i = i/26 - 1
		if i < 0 {
			break
		}
	}
	for l, r := 0, len(out)-1; l < r; l, r = l+1, r-1 {
		out[l], out[r] = out[r], out[l]
	}
	return string(out)
}

// assignLetters pre-scans for distinct turn-owner codes and assigns letters
// by ascending numeric suffix. Sorting before assignment keeps letters
// independent of utterance order.
func assignLetters(lines []string) map[string]string {
	seen := make(map[string]struct{})
	for _, raw := range lines {
		if m := speakerLineRe.FindStringSubmatch(strings.TrimSpace(raw)); m != nil {
			seen[m[1]] = struct{}{}
		}
	}
	if len(seen) == 0 {
		return nil
	}

	codes := make([]string, 0, len(seen))
	for code := range seen {
		codes = append(codes, code)
	}
	sort.Slice(codes, func(i, j int) bool {
		ni, oki := personSuffix(codes[i])
		nj, okj := personSuffix(codes[j])
		if oki && okj {
			return ni < nj
		}
		if oki != okj {
			return oki
		}
		return codes[i] < codes[j]
	})

	letters := make(map[string]string, len(codes))
	for i, code := range codes {
		letters[code] = Letter(i)
	}
	return letters
}

func personSuffix(code string) (int, bool) {
	m := personSuffixRe.FindStringSubmatch(code)
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return n, true
}
