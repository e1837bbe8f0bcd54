package replace

import (
	"regexp"
	"strconv"
	"strings"
)

// financialFloor is the smallest dollar amount treated as identifying.
// Small figures ("the $20 registration fee") appear in too many transcripts
// to narrow anyone down; large ones (grant sizes, budgets) do.
const financialFloor = 1000

var (
	// $1,250,000 / $1.5 million / $40000
	dollarAmountRe = regexp.MustCompile(`\$\s?([\d,]+(?:\.\d+)?)(\s*(?:thousand|million|billion))?`)

	// 1.5 million dollars / 40 thousand dollars
	spelledAmountRe = regexp.MustCompile(`(?i)\b[\d,]+(?:\.\d+)?\s*(?:thousand|million|billion)\s+dollars?\b`)

	yearRe = regexp.MustCompile(`\b(?:19|20)\d{2}\b`)
)

// replaceFinancial substitutes identifying dollar amounts with the
// [Financial_Amount] placeholder. Amounts below the floor are kept unless a
// scale word (thousand, million, billion) lifts them over it.
func replaceFinancial(text string) (string, int) {
	n := 0
	out := dollarAmountRe.ReplaceAllStringFunc(text, func(m string) string {
		sub := dollarAmountRe.FindStringSubmatch(m)
		if !amountIsIdentifying(sub[1], sub[2]) {
			return m
		}
		n++
		return "[Financial_Amount]"
	})
	out = spelledAmountRe.ReplaceAllStringFunc(out, func(string) string {
		n++
		return "[Financial_Amount]"
	})
	return out, n
}

// replaceYears substitutes literal four-digit years (1900-2099) with the
// [Year] placeholder. Underscore counts as a word character in the boundary
// assertion, so code suffixes like Person_2 never match.
func replaceYears(text string) (string, int) {
	n := 0
	out := yearRe.ReplaceAllStringFunc(text, func(string) string {
		n++
		return "[Year]"
	})
	return out, n
}

func amountIsIdentifying(digits, scale string) bool {
	if strings.TrimSpace(scale) != "" {
		return true
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(digits, ",", ""), 64)
	if err != nil {
		return false
	}
	return v >= financialFloor
}
