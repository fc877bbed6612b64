package shared

import "unicode/utf8"

// Truncate shortens s to at most maxRunes runes, appending "..." when cut.
// A non-positive maxRunes leaves s unchanged.
func Truncate(s string, maxRunes int) string {
	if maxRunes <= 0 || utf8.RuneCountInString(s) <= maxRunes {
		return s
	}
	if maxRunes <= 3 {
		return string([]rune(s)[:maxRunes])
	}
	return string([]rune(s)[:maxRunes-3]) + "..."
}
