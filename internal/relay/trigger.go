package relay

import "strings"

// ShouldRelay reports whether extracted text should enter the relay
// pipeline: true iff at least one phrase occurs in the text as a literal,
// case-sensitive substring. An empty phrase set never matches.
func ShouldRelay(text string, phrases []string) bool {
	for _, phrase := range phrases {
		if phrase == "" {
			continue
		}
		if strings.Contains(text, phrase) {
			return true
		}
	}
	return false
}
