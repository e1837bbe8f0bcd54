package citation

import (
	"regexp"
	"strings"
)

// Segment is one caption cue recovered from the source transcript: the cue
// start time truncated to HH:MM:SS, and the cue text joined to a single line.
type Segment struct {
	Timestamp string
	Text      string
}

var (
	cueTimeRe   = regexp.MustCompile(`^(\d{2}:\d{2}:\d{2})\.\d{3}\s*-->\s*\d{2}:\d{2}:\d{2}\.\d{3}`)
	bareTimeRe  = regexp.MustCompile(`^(\d{2}:\d{2}:\d{2})(?:\.\d+)?$`)
	digitsRe    = regexp.MustCompile(`^\d+$`)
	headerRe    = regexp.MustCompile(`(?m)^WEBVTT[^\n]*\n`)
	cueNumberRe = regexp.MustCompile(`(?m)^\d+[ \t]*\n`)
	timeRangeRe = regexp.MustCompile(`\d{2}:\d{2}:\d{2}\.\d{3}\s*-->\s*\d{2}:\d{2}:\d{2}\.\d{3}[ \t]*\n?`)
	timeLineRe  = regexp.MustCompile(`(?m)^\d{2}:\d{2}:\d{2}(?:\.\d+)?[ \t]*\n`)
	blankRunRe  = regexp.MustCompile(`\n{3,}`)
)

// IsWebVTT reports whether text carries a WebVTT caption header. A leading
// byte-order mark is tolerated; caption exporters frequently emit one.
func IsWebVTT(text string) bool {
	return strings.HasPrefix(strings.TrimLeft(text, "\uFEFF \t\r\n"), "WEBVTT")
}

// StripTimeFragments removes caption plumbing from transcript text: the
// WEBVTT header, cue numbers, time-range lines, and orphaned standalone
// timestamps left behind by caption-to-text extraction. Runs of blank lines
// are collapsed so stripping does not leave holes in the body.
func StripTimeFragments(text string) string {
	text = headerRe.ReplaceAllString(text, "")
	text = timeRangeRe.ReplaceAllString(text, "")
	text = cueNumberRe.ReplaceAllString(text, "")
	text = timeLineRe.ReplaceAllString(text, "")
	text = blankRunRe.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}

// ParseWebVTT recovers timestamped segments from a WebVTT caption track.
// Cue numbers are optional; the cue start time is truncated to HH:MM:SS
// since sub-second precision adds nothing to a citation table.
func ParseWebVTT(text string) []Segment {
	lines := strings.Split(text, "\n")
	var segments []Segment

	i := 0
	for i < len(lines) {
		trimmed := strings.TrimSpace(lines[i])
		if trimmed == "" || strings.HasPrefix(trimmed, "WEBVTT") {
			i++
			continue
		}
		if digitsRe.MatchString(trimmed) {
			i++
			continue
		}

		m := cueTimeRe.FindStringSubmatch(trimmed)
		if m == nil {
			i++
			continue
		}
		timestamp := m[1]
		i++

		var body []string
		for i < len(lines) {
			cur := strings.TrimSpace(lines[i])
			if cur == "" || digitsRe.MatchString(cur) || cueTimeRe.MatchString(cur) {
				break
			}
			body = append(body, cur)
			i++
		}
		if len(body) > 0 {
			segments = append(segments, Segment{
				Timestamp: timestamp,
				Text:      strings.Join(body, " "),
			})
		}
	}
	return segments
}

// ParseStandaloneTimestamps handles transcripts where a bare HH:MM:SS line
// precedes each utterance instead of a caption cue. It returns the dialogue
// rewritten as alternating speaker-coded lines plus the recovered segments.
// Without any diarization signal in this format, alternation between two
// speakers is the best available attribution; downstream review markers
// still apply.
func ParseStandaloneTimestamps(text string) (string, []Segment) {
	lines := strings.Split(text, "\n")

	var (
		out       []string
		segments  []Segment
		current   string
		dialogue  []string
		lastFirst bool
	)

	flush := func() {
		if current == "" || len(dialogue) == 0 {
			return
		}
		body := strings.Join(dialogue, " ")
		speaker := "Person_1"
		if lastFirst {
			speaker = "Person_2"
		}
		lastFirst = !lastFirst
		out = append(out, speaker+": "+body)
		segments = append(segments, Segment{Timestamp: current, Text: body})
	}

	for _, raw := range lines {
		line := strings.TrimSpace(raw)
		if m := bareTimeRe.FindStringSubmatch(line); m != nil {
			flush()
			current = m[1]
			dialogue = dialogue[:0]
			continue
		}
		if current != "" {
			if line != "" {
				dialogue = append(dialogue, line)
			}
			continue
		}
		// Header or metadata before the first timestamp stays untouched.
		out = append(out, raw)
	}
	flush()

	return strings.Join(out, "\n"), segments
}
