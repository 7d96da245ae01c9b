package extract

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

var (
	supplementaryRunes = regexp.MustCompile(`[\x{10000}-\x{10FFFF}]`)
	hashtags           = regexp.MustCompile(`#[\p{L}\p{N}_]+`)
	nonTextRunes       = regexp.MustCompile(`[^\p{L}\p{N}_\s.,!?;:()\-@/]`)
	spaceRuns          = regexp.MustCompile(` +`)
	punctuationOnly    = regexp.MustCompile(`^[.,:;\-–— ]*$`)
)

// CleanCaption produces a compact plain-text preview of a caption for terminal
// output: emoji and hashtags are removed, unicode is NFKC-normalized, and
// decorative or blank lines are dropped. Reports always show the raw caption.
func CleanCaption(caption string) string {
	if caption == "" {
		return ""
	}

	text := supplementaryRunes.ReplaceAllString(caption, "")
	text = hashtags.ReplaceAllString(text, "")
	text = norm.NFKC.String(text)
	text = nonTextRunes.ReplaceAllString(text, "")
	text = spaceRuns.ReplaceAllString(text, " ")

	var kept []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line != "" && punctuationOnly.MatchString(line) {
			continue
		}
		if len([]rune(line)) == 1 && !isAlnum(line) {
			continue
		}
		// No consecutive blank lines
		if line == "" && (len(kept) == 0 || kept[len(kept)-1] == "") {
			continue
		}
		kept = append(kept, line)
	}

	return strings.TrimSpace(strings.Join(kept, "\n"))
}

func isAlnum(s string) bool {
	for _, r := range s {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}
